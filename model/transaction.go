package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TxnPending    TransactionStatus = "pending"
	TxnProcessing TransactionStatus = "processing"
	TxnCompleted  TransactionStatus = "completed"
	TxnExpired    TransactionStatus = "expired"
	TxnFailed     TransactionStatus = "failed"
)

// TokenAmounts is the purchased-token breakdown of a transaction.
type TokenAmounts struct {
	Base    float64 `json:"base"`
	Bonuses float64 `json:"bonuses"`
	Total   float64 `json:"total"`
}

// Transaction records a single purchase. Status transitions are owned by
// the payment pipeline; clients only ever read the latest value.
type Transaction struct {
	ID                        string            `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	UserID                    string            `gorm:"column:user_id;type:varchar(64);index;not null" json:"user_id"`
	StageID                   string            `gorm:"column:stage_id;type:varchar(64);not null" json:"stage_id"`
	Status                    TransactionStatus `gorm:"column:status;type:varchar(16);index;not null;default:pending" json:"status"`
	PaymentTokenID            string            `gorm:"column:payment_token_id;type:varchar(64);not null" json:"payment_token_id"`
	PaymentAddress            string            `gorm:"column:payment_address;type:varchar(256)" json:"payment_address"`
	InitialPurchaseAmountFiat float64           `gorm:"column:initial_purchase_amount_fiat;not null" json:"initial_purchase_amount_fiat"`
	InitialPurchaseAmountCrypto float64         `gorm:"column:initial_purchase_amount_crypto;not null" json:"initial_purchase_amount_crypto"`
	Tokens                    TokenAmounts      `gorm:"column:tokens;serializer:json" json:"tokens"`
	TokenPrice                float64           `gorm:"column:token_price;not null" json:"token_price"`
	CreatedAt                 time.Time         `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt                 time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// PaymentURI is the QR-encodable payment string for a pending transaction.
// Bitcoin has its own URI scheme; everything else uses the generic
// EVM-style form.
func (t *Transaction) PaymentURI(chain string) string {
	scheme := "ethereum"
	if chain == ChainBTC {
		scheme = "bitcoin"
	}
	return fmt.Sprintf("%s:%s", scheme, t.PaymentAddress)
}

// WalletAddress tracks every derived payment address so derivation indexes
// are never reused.
type WalletAddress struct {
	ID             uint64    `gorm:"primaryKey;column:id" json:"id"`
	Chain          string    `gorm:"column:chain;type:varchar(16);not null" json:"chain"`
	DerivationPath string    `gorm:"column:derivation_path;type:varchar(128)" json:"derivation_path"`
	Address        string    `gorm:"column:address;type:varchar(256);uniqueIndex" json:"address"`
	TransactionID  string    `gorm:"column:transaction_id;type:varchar(64)" json:"transaction_id"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// Referral links a referred signup to its referrer. Qualified flips once
// the referred user spends at least the stage's referral threshold.
type Referral struct {
	ID         uint64    `gorm:"primaryKey;column:id" json:"id"`
	ReferrerID string    `gorm:"column:referrer_id;type:varchar(64);index;not null" json:"referrer_id"`
	ReferredID string    `gorm:"column:referred_id;type:varchar(64);uniqueIndex;not null" json:"referred_id"`
	Qualified  bool      `gorm:"column:qualified;not null;default:false" json:"qualified"`
	RewardFiat float64   `gorm:"column:reward_fiat;default:0" json:"reward_fiat"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// AutoMigrate creates all portal tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Stage{},
		&PaymentToken{},
		&Transaction{},
		&WalletAddress{},
		&Referral{},
	)
}
