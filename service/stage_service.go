package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"go.uber.org/zap"
)

var ErrNoActiveStage = errors.New("no active sale stage")

// StageService caches the active stage with simple freshness tracking. A
// failed refresh keeps the cached stage; callers only see an error when no
// stage was ever loaded.
type StageService struct {
	repo   *repository.StageRepository
	maxAge time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	cached    *model.Stage
	fetchedAt time.Time
}

func NewStageService(repo *repository.StageRepository, maxAge time.Duration, logger *zap.Logger) *StageService {
	return &StageService{repo: repo, maxAge: maxAge, logger: logger}
}

// ActiveStage returns the current stage, refreshing only when the cache is
// older than the freshness window.
func (s *StageService) ActiveStage(ctx context.Context) (*model.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.fetchedAt) < s.maxAge {
		return s.cached, nil
	}

	stage, err := s.repo.FindActive(ctx, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// a definitive empty result invalidates the cache; an ended
			// stage must not keep accepting purchases
			s.cached = nil
			s.fetchedAt = time.Time{}
			return nil, ErrNoActiveStage
		}
		if s.cached != nil {
			s.logger.Warn("active stage refresh failed, serving cached", zap.Error(err))
			return s.cached, nil
		}
		return nil, err
	}

	s.cached = stage
	s.fetchedAt = time.Now()
	return stage, nil
}

// FetchedAt reports when the cached stage was last refreshed.
func (s *StageService) FetchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchedAt
}

// Invalidate drops the cache so the next read hits the database.
func (s *StageService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}
