package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/presale_portal/repository"
)

// ReferralService exposes a referrer's stats and the share link the portal
// renders on the referrals page.
type ReferralService struct {
	repo        *repository.ReferralRepository
	stages      *StageService
	frontendURL string
}

func NewReferralService(repo *repository.ReferralRepository, stages *StageService, frontendURL string) *ReferralService {
	return &ReferralService{repo: repo, stages: stages, frontendURL: frontendURL}
}

type ReferralSummary struct {
	Stats     *repository.ReferralStats `json:"stats"`
	Earn      float64                   `json:"earn"`
	Spend     float64                   `json:"spend"`
	ShareURL  string                    `json:"share_url"`
	ShareText string                    `json:"share_text"`
}

func (s *ReferralService) Summary(ctx context.Context, userID string) (*ReferralSummary, error) {
	stats, err := s.repo.StatsByReferrer(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &ReferralSummary{
		Stats:    stats,
		ShareURL: fmt.Sprintf("%s/register?referral=%s", s.frontendURL, url.QueryEscape(userID)),
	}

	// The stage's referral config is optional; stats still render without
	// it.
	if stage, err := s.stages.ActiveStage(ctx); err == nil && stage.Bonuses.Referrals != nil {
		out.Earn = stage.Bonuses.Referrals.Earn
		out.Spend = stage.Bonuses.Referrals.Spend
		out.ShareText = fmt.Sprintf("Use my referral link to get $%.0f", out.Earn)
	}
	return out, nil
}
