package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"go.uber.org/zap"
)

// CatalogService merges the built-in payment token list with
// operator-managed PaymentToken records. Backend records win on id clashes.
type CatalogService struct {
	repo   *repository.PaymentTokenRepository
	logger *zap.Logger

	mu      sync.RWMutex
	items   []model.CurrencyItem
	coinIDs map[string]string
}

func NewCatalogService(repo *repository.PaymentTokenRepository, logger *zap.Logger) *CatalogService {
	coinIDs := make(map[string]string, len(model.CoinIDs))
	for id, cid := range model.CoinIDs {
		coinIDs[id] = cid
	}
	return &CatalogService{repo: repo, logger: logger, items: model.TokenList, coinIDs: coinIDs}
}

// Reload merges database records into the catalog. A failed read keeps the
// current catalog.
func (s *CatalogService) Reload(ctx context.Context) error {
	records, err := s.repo.ListEnabled(ctx)
	if err != nil {
		s.logger.Warn("payment token reload failed, keeping catalog", zap.Error(err))
		return err
	}

	merged := make([]model.CurrencyItem, 0, len(model.TokenList)+len(records))
	seen := map[string]bool{}
	for _, rec := range records {
		item := model.FromPaymentToken(rec)
		merged = append(merged, item)
		seen[strings.ToLower(item.ID)] = true
	}
	for _, item := range model.TokenList {
		if !seen[strings.ToLower(item.ID)] {
			merged = append(merged, item)
		}
	}

	coinIDs := make(map[string]string, len(model.CoinIDs)+len(records))
	for id, cid := range model.CoinIDs {
		coinIDs[id] = cid
	}
	for _, rec := range records {
		if rec.CoinID != "" {
			coinIDs[rec.ID] = rec.CoinID
		}
	}

	s.mu.Lock()
	s.items = merged
	s.coinIDs = coinIDs
	s.mu.Unlock()
	return nil
}

// Run reloads the catalog on a fixed cadence so operator-added payment
// tokens appear without a restart. onReload runs after each successful
// reload.
func (s *CatalogService) Run(ctx context.Context, every time.Duration, onReload func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				continue
			}
			if onReload != nil {
				onReload()
			}
		}
	}
}

// Items returns the current catalog.
func (s *CatalogService) Items() []model.CurrencyItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CurrencyItem, len(s.items))
	copy(out, s.items)
	return out
}

// CoinIDs maps catalog ids to price feed coin identifiers, including the
// operator-added tokens, so the poller can price everything purchasable.
func (s *CatalogService) CoinIDs() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.coinIDs))
	for id, cid := range s.coinIDs {
		out[id] = cid
	}
	return out
}

// Find resolves a token by id. Unknown ids return a placeholder item so
// display layers degrade instead of erroring.
func (s *CatalogService) Find(id string) (model.CurrencyItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if item, ok := model.FindToken(s.items, id); ok {
		return item, true
	}
	return model.CurrencyItem{
		ID:       id,
		Name:     id,
		Symbol:   strings.ToUpper(id),
		ImageURL: model.PlaceholderTokenImage,
	}, false
}
