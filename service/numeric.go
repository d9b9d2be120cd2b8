package service

import (
	"math"

	"github.com/shopspring/decimal"
)

// TokenDecimals caps the precision shown for token quantities. Values are
// truncated, not rounded, so the display never promises more than the user
// will receive.
const TokenDecimals = 5

// FiatDecimals is standard cent precision for fiat display values.
const FiatDecimals = 2

// TruncateToken cuts a token quantity to TokenDecimals places.
func TruncateToken(v float64) float64 {
	v = sanitizeAmount(v)
	f, _ := decimal.NewFromFloat(v).Truncate(TokenDecimals).Float64()
	return f
}

// RoundFiat rounds a fiat value to cents.
func RoundFiat(v float64) float64 {
	v = sanitizeAmount(v)
	f, _ := decimal.NewFromFloat(v).Round(FiatDecimals).Float64()
	return f
}

// sanitizeAmount coerces negative, NaN and infinite inputs to 0. Input
// validation belongs to the HTTP layer; the engines must stay total.
func sanitizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// safeDiv guards division by a zero or missing price: the quote engines
// yield 0 instead of propagating NaN or Inf.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
