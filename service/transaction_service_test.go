package service

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type txnTestEnv struct {
	db        *gorm.DB
	svc       *TransactionService
	users     *repository.UserRepository
	txns      *repository.TransactionRepository
	referrals *repository.ReferralRepository
	catalog   *CatalogService
	server    *httptest.Server
}

func newTxnTestEnv(t *testing.T) *txnTestEnv {
	t.Helper()
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	server := newPriceTestServer(t, nil)
	t.Cleanup(server.Close)

	logger := zap.NewNop()
	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	referralRepo := repository.NewReferralRepository(db)

	catalog := NewCatalogService(repository.NewPaymentTokenRepository(db), logger)
	require.NoError(t, catalog.Reload(ctx))

	prices := NewPriceService(server.URL, "usd", time.Minute, catalog.Items(), testCoinIDs, nil, logger)
	require.NoError(t, prices.Refresh(ctx))

	stages := NewStageService(repository.NewStageRepository(db), time.Minute, logger)
	minAmt, maxAmt := 50.0, 5000.0
	require.NoError(t, repository.NewStageRepository(db).Create(ctx, &model.Stage{
		ID:            "stage-1",
		Name:          "Stage 1",
		TokenPrice:    0.05,
		StartDate:     time.Now().Add(-time.Hour),
		EndDate:       time.Now().Add(time.Hour),
		TotalTokens:   1_000_000_000,
		MinFiatAmount: &minAmt,
		MaxFiatAmount: &maxAmt,
		Bonuses: model.StageBonuses{
			BasePercentage: 5,
			Referrals:      &model.ReferralBonus{Earn: 50, Spend: 500},
		},
	}))

	addresses, err := NewAddressService(testMnemonic, repository.NewWalletAddressRepository(db))
	require.NoError(t, err)

	svc := NewTransactionService(txnRepo, userRepo, referralRepo,
		stages, prices, catalog, addresses, nil, logger, 2*time.Hour)

	return &txnTestEnv{
		db:        db,
		svc:       svc,
		users:     userRepo,
		txns:      txnRepo,
		referrals: referralRepo,
		catalog:   catalog,
		server:    server,
	}
}

func (e *txnTestEnv) createUser(t *testing.T, id string, referredBy *string) *model.User {
	t.Helper()
	user := &model.User{
		ID:           id,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        id + "@example.com",
		PasswordHash: "irrelevant",
		ReferredBy:   referredBy,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func TestCreateTransactionHappyPath(t *testing.T) {
	env := newTxnTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "user-1", nil)

	txn, err := env.svc.Create(ctx, user, CreateTransactionArgs{
		PurchaseAmount:  1000,
		PurchaseTokenID: "eth",
	})
	require.NoError(t, err)

	assert.Equal(t, model.TxnPending, txn.Status)
	assert.Equal(t, "stage-1", txn.StageID)
	assert.Equal(t, "eth", txn.PaymentTokenID)
	assert.Equal(t, 1000.0, txn.InitialPurchaseAmountFiat)
	// $1000 at $2000/ETH
	assert.Equal(t, 0.5, txn.InitialPurchaseAmountCrypto)
	// $1000 at $0.05/token, plus 5% base bonus worth $50
	assert.Equal(t, 20000.0, txn.Tokens.Base)
	assert.Equal(t, 1000.0, txn.Tokens.Bonuses)
	assert.Equal(t, 21000.0, txn.Tokens.Total)
	assert.Equal(t, 0.05, txn.TokenPrice)

	assert.True(t, strings.HasPrefix(txn.PaymentAddress, "0x"))
	assert.Equal(t, "ethereum:"+txn.PaymentAddress, env.svc.PaymentURI(txn))

	updated, err := env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.Purchased)
}

func TestCreateTransactionBitcoinAddressAndURI(t *testing.T) {
	env := newTxnTestEnv(t)
	user := env.createUser(t, "user-btc", nil)

	txn, err := env.svc.Create(context.Background(), user, CreateTransactionArgs{
		PurchaseAmount:  500,
		PurchaseTokenID: "btc",
	})
	require.NoError(t, err)

	assert.False(t, strings.HasPrefix(txn.PaymentAddress, "0x"))
	assert.NotEmpty(t, txn.PaymentAddress)
	assert.Equal(t, "bitcoin:"+txn.PaymentAddress, env.svc.PaymentURI(txn))
}

func TestCreateTransactionAssignsDistinctAddresses(t *testing.T) {
	env := newTxnTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Create(ctx, env.createUser(t, "user-a", nil),
		CreateTransactionArgs{PurchaseAmount: 100, PurchaseTokenID: "eth"})
	require.NoError(t, err)
	second, err := env.svc.Create(ctx, env.createUser(t, "user-b", nil),
		CreateTransactionArgs{PurchaseAmount: 100, PurchaseTokenID: "eth"})
	require.NoError(t, err)

	assert.NotEqual(t, first.PaymentAddress, second.PaymentAddress)
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTxnTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "user-v", nil)

	_, err := env.svc.Create(ctx, user, CreateTransactionArgs{PurchaseAmount: 0, PurchaseTokenID: "eth"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.svc.Create(ctx, user, CreateTransactionArgs{PurchaseAmount: 10, PurchaseTokenID: "eth"})
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = env.svc.Create(ctx, user, CreateTransactionArgs{PurchaseAmount: 6000, PurchaseTokenID: "eth"})
	assert.ErrorIs(t, err, ErrAboveMaximum)

	// a token without a quoted rate cannot produce a payable crypto amount
	_, err = env.svc.Create(ctx, user, CreateTransactionArgs{PurchaseAmount: 100, PurchaseTokenID: "unknown-token"})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestCreateTransactionQualifiesReferral(t *testing.T) {
	env := newTxnTestEnv(t)
	ctx := context.Background()

	referrer := env.createUser(t, "referrer-1", nil)
	referred := env.createUser(t, "referred-1", &referrer.ID)
	require.NoError(t, env.referrals.Create(ctx, &model.Referral{
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
	}))

	// below the $500 spend threshold: no qualification
	_, err := env.svc.Create(ctx, referred, CreateTransactionArgs{PurchaseAmount: 200, PurchaseTokenID: "eth"})
	require.NoError(t, err)
	ref, err := env.referrals.FindByReferred(ctx, referred.ID)
	require.NoError(t, err)
	assert.False(t, ref.Qualified)

	_, err = env.svc.Create(ctx, referred, CreateTransactionArgs{PurchaseAmount: 600, PurchaseTokenID: "eth"})
	require.NoError(t, err)
	ref, err = env.referrals.FindByReferred(ctx, referred.ID)
	require.NoError(t, err)
	assert.True(t, ref.Qualified)
	assert.Equal(t, 50.0, ref.RewardFiat)

	stats, err := env.referrals.StatsByReferrer(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalReferred)
	assert.Equal(t, int64(1), stats.Qualified)
	assert.Equal(t, 50.0, stats.EarnedFiat)
}

func TestGetTransactionRestrictedToOwner(t *testing.T) {
	env := newTxnTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner-1", nil)
	other := env.createUser(t, "other-1", nil)

	txn, err := env.svc.Create(ctx, owner, CreateTransactionArgs{PurchaseAmount: 100, PurchaseTokenID: "eth"})
	require.NoError(t, err)

	got, err := env.svc.Get(ctx, owner.ID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)

	_, err = env.svc.Get(ctx, other.ID, txn.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecentFallsBackToDatabaseCappedAtFive(t *testing.T) {
	env := newTxnTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "user-recent", nil)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		require.NoError(t, env.txns.Create(ctx, &model.Transaction{
			ID:             fmt.Sprintf("txn-%d", i),
			UserID:         user.ID,
			StageID:        "stage-1",
			Status:         model.TxnCompleted,
			PaymentTokenID: "eth",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := env.svc.Recent(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "txn-6", list[0].ID)
	assert.Equal(t, "txn-2", list[4].ID)
}
