package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNoPrice       = errors.New("no price available for payment token")
	ErrBelowMinimum  = errors.New("purchase amount below stage minimum")
	ErrAboveMaximum  = errors.New("purchase amount above stage maximum")
	ErrInvalidAmount = errors.New("purchase amount must be positive")
)

// recentCap bounds the per-user recent transaction list; the newest entry
// is prepended and the oldest dropped.
const recentCap = 5

const recentKeyPrefix = "portal:recent-txns:"

// TransactionService turns a finalized quote into a persisted pending
// transaction with an assigned payment address. Status transitions after
// creation belong to the payment pipeline; the only transition owned here
// is the pending -> expired sweep.
type TransactionService struct {
	txns      *repository.TransactionRepository
	users     *repository.UserRepository
	referrals *repository.ReferralRepository
	stages    *StageService
	prices    *PriceService
	catalog   *CatalogService
	addresses *AddressService
	rdb       *redis.Client
	logger    *zap.Logger
	expiry    time.Duration
}

func NewTransactionService(
	txns *repository.TransactionRepository,
	users *repository.UserRepository,
	referrals *repository.ReferralRepository,
	stages *StageService,
	prices *PriceService,
	catalog *CatalogService,
	addresses *AddressService,
	rdb *redis.Client,
	logger *zap.Logger,
	expiry time.Duration,
) *TransactionService {
	return &TransactionService{
		txns:      txns,
		users:     users,
		referrals: referrals,
		stages:    stages,
		prices:    prices,
		catalog:   catalog,
		addresses: addresses,
		rdb:       rdb,
		logger:    logger,
		expiry:    expiry,
	}
}

type CreateTransactionArgs struct {
	PurchaseAmount  float64 `json:"purchase_amount"`
	PurchaseTokenID string  `json:"purchase_token_id"`
}

// Create validates the purchase against the active stage, derives a payment
// address and persists the pending transaction. Nothing is mutated on
// failure.
func (s *TransactionService) Create(ctx context.Context, user *model.User, args CreateTransactionArgs) (*model.Transaction, error) {
	amount := sanitizeAmount(args.PurchaseAmount)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	stage, err := s.stages.ActiveStage(ctx)
	if err != nil {
		return nil, err
	}
	if stage.MinFiatAmount != nil && amount < *stage.MinFiatAmount {
		return nil, ErrBelowMinimum
	}
	if stage.MaxFiatAmount != nil && amount > *stage.MaxFiatAmount {
		return nil, ErrAboveMaximum
	}

	// Unknown tokens are allowed through; the UI falls back to a
	// placeholder display. A price is still required to quote the crypto
	// amount.
	token, _ := s.catalog.Find(args.PurchaseTokenID)
	price := s.prices.Price(token.Symbol)
	if price <= 0 {
		return nil, ErrNoPrice
	}

	signup := user.SignupDate()
	breakdown := CalculateBonuses(BonusInput{
		Amount:     amount,
		Token:      token,
		Bonuses:    stage.Bonuses,
		SignupDate: &signup,
		Purchased:  user.Purchased,
		Now:        time.Now(),
	})

	baseTokens := TruncateToken(safeDiv(amount, stage.TokenPrice))
	bonusTokens := TruncateToken(safeDiv(breakdown.TotalFiat, stage.TokenPrice))

	addr, err := s.addresses.NextAddress(ctx, token.Chain)
	if err != nil {
		return nil, fmt.Errorf("assign payment address: %w", err)
	}

	txn := &model.Transaction{
		ID:                          uuid.New().String(),
		UserID:                      user.ID,
		StageID:                     stage.ID,
		Status:                      model.TxnPending,
		PaymentTokenID:              token.ID,
		PaymentAddress:              addr.Address,
		InitialPurchaseAmountFiat:   RoundFiat(amount),
		InitialPurchaseAmountCrypto: TruncateToken(safeDiv(amount, price)),
		Tokens: model.TokenAmounts{
			Base:    baseTokens,
			Bonuses: bonusTokens,
			Total:   baseTokens + bonusTokens,
		},
		TokenPrice: stage.TokenPrice,
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, err
	}

	s.afterCreate(ctx, user, stage, txn)
	return txn, nil
}

// afterCreate runs the best-effort side effects of a successful submission.
func (s *TransactionService) afterCreate(ctx context.Context, user *model.User, stage *model.Stage, txn *model.Transaction) {
	if !user.Purchased {
		if err := s.users.MarkPurchased(ctx, user.ID); err != nil {
			s.logger.Warn("mark purchased failed", zap.String("user", user.ID), zap.Error(err))
		}
	}

	if err := s.pushRecent(ctx, user.ID, txn.ID); err != nil {
		s.logger.Debug("recent list update failed", zap.Error(err))
	}

	if ref := stage.Bonuses.Referrals; ref != nil && user.ReferredBy != nil &&
		txn.InitialPurchaseAmountFiat >= ref.Spend {
		if err := s.referrals.Qualify(ctx, user.ID, ref.Earn); err != nil {
			s.logger.Warn("referral qualify failed", zap.String("user", user.ID), zap.Error(err))
		}
	}
}

func (s *TransactionService) pushRecent(ctx context.Context, userID, txnID string) error {
	if s.rdb == nil {
		return nil
	}
	key := recentKeyPrefix + userID
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, txnID)
	pipe.LTrim(ctx, key, 0, recentCap-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Recent returns the user's capped recent transaction list, newest first.
// When the cache is cold it falls back to the database.
func (s *TransactionService) Recent(ctx context.Context, userID string) ([]*model.Transaction, error) {
	if s.rdb != nil {
		ids, err := s.rdb.LRange(ctx, recentKeyPrefix+userID, 0, recentCap-1).Result()
		if err == nil && len(ids) > 0 {
			list := make([]*model.Transaction, 0, len(ids))
			for _, id := range ids {
				txn, err := s.txns.FindByID(ctx, id)
				if err != nil {
					continue
				}
				list = append(list, txn)
			}
			if len(list) > 0 {
				return list, nil
			}
		}
	}
	return s.txns.Latest(ctx, userID, recentCap)
}

// List pages through a user's transaction history.
func (s *TransactionService) List(ctx context.Context, userID, after, before string, size int) (*repository.TransactionPage, error) {
	return s.txns.ListByUser(ctx, userID, after, before, size)
}

// Get fetches one transaction, restricted to its owner.
func (s *TransactionService) Get(ctx context.Context, userID, id string) (*model.Transaction, error) {
	txn, err := s.txns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return txn, nil
}

// PaymentURI builds the QR-encodable payment string for a transaction.
func (s *TransactionService) PaymentURI(txn *model.Transaction) string {
	token, _ := s.catalog.Find(txn.PaymentTokenID)
	return txn.PaymentURI(token.Chain)
}

// RunExpiry sweeps pending transactions older than the expiry window on a
// fixed cadence until ctx is done.
func (s *TransactionService) RunExpiry(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.expiry)
			n, err := s.txns.ExpirePendingBefore(ctx, cutoff)
			if err != nil {
				s.logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("expired stale pending transactions", zap.Int64("count", n))
			}
		}
	}
}
