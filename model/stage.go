package model

import (
	"time"
)

// Stage is a time-boxed phase of the token sale with its own price and
// bonus rules. Bonuses are stored as a single JSON column and replaced
// wholesale; missing pieces of the structure mean "no such bonus".
type Stage struct {
	ID            string       `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	Name          string       `gorm:"column:name;type:varchar(128);not null" json:"name"`
	TokenPrice    float64      `gorm:"column:token_price;not null" json:"token_price"`
	StartDate     time.Time    `gorm:"column:start_date;index" json:"start_date"`
	EndDate       time.Time    `gorm:"column:end_date;index" json:"end_date"`
	TotalTokens   float64      `gorm:"column:total_tokens" json:"total_tokens"`
	SoldTokens    float64      `gorm:"column:sold_tokens;default:0" json:"sold_tokens"`
	Disabled      bool         `gorm:"column:disabled;not null;default:false" json:"disabled"`
	MinFiatAmount *float64     `gorm:"column:min_fiat_amount" json:"min_fiat_amount"`
	MaxFiatAmount *float64     `gorm:"column:max_fiat_amount" json:"max_fiat_amount"`
	Bonuses       StageBonuses `gorm:"column:bonuses;serializer:json" json:"bonuses"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

type StageBonuses struct {
	BasePercentage float64             `json:"base_percentage"`
	TieredFiat     []TieredBonus       `json:"tiered_fiat,omitempty"`
	PaymentTokens  []PaymentTokenBonus `json:"payment_tokens,omitempty"`
	LimitedTime    *LimitedTimeBonus   `json:"limited_time,omitempty"`
	Signup         *SignupBonuses      `json:"signup,omitempty"`
	Referrals      *ReferralBonus      `json:"referrals,omitempty"`
}

// TieredBonus unlocks Percentage once the purchase fiat amount reaches
// Amount. Highest qualifying threshold wins, tiers never stack.
type TieredBonus struct {
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type PaymentTokenBonus struct {
	TokenID    string  `json:"token_id"`
	Percentage float64 `json:"percentage"`
}

type LimitedTimeBonus struct {
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Percentage float64   `json:"percentage"`
}

type SignupBonuses struct {
	FirstPurchasePercentage float64             `json:"first_purchase_percentage"`
	LimitedTime             *LimitedSignupBonus `json:"limited_time,omitempty"`
}

// LimitedSignupBonus is available only within MinutesAfterSignup of the
// user's registration.
type LimitedSignupBonus struct {
	MinutesAfterSignup int     `json:"minutes_after_signup"`
	Percentage         float64 `json:"percentage"`
}

type ReferralBonus struct {
	Earn  float64 `json:"earn"`
	Spend float64 `json:"spend"`
}
