package repository

import (
	"context"
	"time"

	"github.com/presale_portal/model"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	var txn model.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// TransactionPage is one page of a user's history plus the cursors the
// client echoes back to move forwards or backwards.
type TransactionPage struct {
	Data   []*model.Transaction `json:"data"`
	After  *string              `json:"after,omitempty"`
	Before *string              `json:"before,omitempty"`
}

// ListByUser pages through a user's transactions newest first. The after
// cursor returns rows created before the named transaction, the before
// cursor rows created after it.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID, after, before string, size int) (*TransactionPage, error) {
	if size <= 0 {
		size = 10
	}

	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if after != "" {
		pivot, err := r.FindByID(ctx, after)
		if err != nil {
			return nil, err
		}
		q = q.Where("created_at < ?", pivot.CreatedAt)
	} else if before != "" {
		pivot, err := r.FindByID(ctx, before)
		if err != nil {
			return nil, err
		}
		q = q.Where("created_at > ?", pivot.CreatedAt)
	}

	var list []*model.Transaction
	if err := q.Order("created_at desc").Limit(size + 1).Find(&list).Error; err != nil {
		return nil, err
	}

	page := &TransactionPage{}
	hasMore := len(list) > size
	if hasMore {
		list = list[:size]
	}
	page.Data = list

	if len(list) > 0 {
		if hasMore {
			id := list[len(list)-1].ID
			page.After = &id
		}
		if after != "" || before != "" {
			id := list[0].ID
			page.Before = &id
		}
	}
	return page, nil
}

// Latest returns the user's most recent transactions, newest first.
func (r *TransactionRepository) Latest(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	var list []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status model.TransactionStatus) error {
	return r.db.WithContext(ctx).Model(&model.Transaction{}).Where("id = ?", id).
		Update("status", status).Error
}

// ExpirePendingBefore marks every pending transaction created before cutoff
// as expired and reports how many rows changed.
func (r *TransactionRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("status = ? AND created_at < ?", model.TxnPending, cutoff).
		Update("status", model.TxnExpired)
	return res.RowsAffected, res.Error
}

// SumFiatByUser totals a user's purchases in the given statuses.
func (r *TransactionRepository) SumFiatByUser(ctx context.Context, userID string, statuses []model.TransactionStatus) (float64, error) {
	var sum *float64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("SUM(initial_purchase_amount_fiat)").
		Where("user_id = ? AND status IN ?", userID, statuses).
		Scan(&sum).Error
	if err != nil || sum == nil {
		return 0, err
	}
	return *sum, nil
}

type WalletAddressRepository struct {
	db *gorm.DB
}

func NewWalletAddressRepository(db *gorm.DB) *WalletAddressRepository {
	return &WalletAddressRepository{db: db}
}

// NextIndex hands out the next derivation index for a chain. Indexes are
// per chain and never reused.
func (r *WalletAddressRepository) NextIndex(ctx context.Context, chain string) (uint32, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.WalletAddress{}).
		Where("chain = ?", chain).Count(&count).Error; err != nil {
		return 0, err
	}
	return uint32(count), nil
}

func (r *WalletAddressRepository) Create(ctx context.Context, addr *model.WalletAddress) error {
	return r.db.WithContext(ctx).Create(addr).Error
}
