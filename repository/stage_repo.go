package repository

import (
	"context"
	"time"

	"github.com/presale_portal/model"
	"gorm.io/gorm"
)

type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

// FindActive returns the enabled stage whose window contains now. When
// windows overlap the earliest-starting stage wins.
func (r *StageRepository) FindActive(ctx context.Context, now time.Time) (*model.Stage, error) {
	var stage model.Stage
	err := r.db.WithContext(ctx).
		Where("disabled = ? AND start_date <= ? AND end_date > ?", false, now, now).
		Order("start_date asc").
		First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *StageRepository) FindByID(ctx context.Context, id string) (*model.Stage, error) {
	var stage model.Stage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stage).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *StageRepository) Create(ctx context.Context, stage *model.Stage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

func (r *StageRepository) AddSoldTokens(ctx context.Context, id string, tokens float64) error {
	return r.db.WithContext(ctx).Model(&model.Stage{}).Where("id = ?", id).
		Update("sold_tokens", gorm.Expr("sold_tokens + ?", tokens)).Error
}

type PaymentTokenRepository struct {
	db *gorm.DB
}

func NewPaymentTokenRepository(db *gorm.DB) *PaymentTokenRepository {
	return &PaymentTokenRepository{db: db}
}

func (r *PaymentTokenRepository) ListEnabled(ctx context.Context) ([]model.PaymentToken, error) {
	var tokens []model.PaymentToken
	if err := r.db.WithContext(ctx).Where("disabled = ?", false).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}
