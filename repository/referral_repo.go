package repository

import (
	"context"

	"github.com/presale_portal/model"
	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) Create(ctx context.Context, ref *model.Referral) error {
	return r.db.WithContext(ctx).Create(ref).Error
}

func (r *ReferralRepository) FindByReferred(ctx context.Context, referredID string) (*model.Referral, error) {
	var ref model.Referral
	if err := r.db.WithContext(ctx).Where("referred_id = ?", referredID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

// Qualify marks the referred user's referral as earned with the given
// reward. A referral only qualifies once.
func (r *ReferralRepository) Qualify(ctx context.Context, referredID string, reward float64) error {
	return r.db.WithContext(ctx).Model(&model.Referral{}).
		Where("referred_id = ? AND qualified = ?", referredID, false).
		Updates(map[string]interface{}{"qualified": true, "reward_fiat": reward}).Error
}

// ReferralStats summarises a referrer's performance.
type ReferralStats struct {
	TotalReferred int64   `json:"total_referred"`
	Qualified     int64   `json:"qualified"`
	EarnedFiat    float64 `json:"earned_fiat"`
}

func (r *ReferralRepository) StatsByReferrer(ctx context.Context, referrerID string) (*ReferralStats, error) {
	stats := &ReferralStats{}
	if err := r.db.WithContext(ctx).Model(&model.Referral{}).
		Where("referrer_id = ?", referrerID).Count(&stats.TotalReferred).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Referral{}).
		Where("referrer_id = ? AND qualified = ?", referrerID, true).
		Count(&stats.Qualified).Error; err != nil {
		return nil, err
	}
	var earned *float64
	err := r.db.WithContext(ctx).Model(&model.Referral{}).
		Select("SUM(reward_fiat)").
		Where("referrer_id = ? AND qualified = ?", referrerID, true).
		Scan(&earned).Error
	if err != nil {
		return nil, err
	}
	if earned != nil {
		stats.EarnedFiat = *earned
	}
	return stats, nil
}
