package service

import (
	"sort"
	"strings"
	"time"

	"github.com/presale_portal/model"
)

// Bonus line labels, in evaluation order.
const (
	LabelBaseBonus          = "Base Bonus"
	LabelBuyBonus           = "Buy Bonus"
	LabelTokenBonus         = "Token Bonus"
	LabelFirstPurchaseBonus = "First Purchase Bonus"
	LabelSignupBonus        = "Signup Bonus"
	LabelLimitedTimeBonus   = "Limited Time Bonus"
)

// BonusLine is one applicable bonus. FiatValue is always
// percentage/100 x purchase amount, so the breakdown never needs a server
// round trip to render.
type BonusLine struct {
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
	FiatValue  float64 `json:"fiat_value"`
}

// BonusBreakdown lists the non-zero bonuses for a candidate purchase plus
// their combined effect. The total is not an entry; it is appended by the
// display layer.
type BonusBreakdown struct {
	Entries         []BonusLine `json:"entries"`
	TotalPercentage float64     `json:"total_percentage"`
	TotalFiat       float64     `json:"total_fiat"`
}

// BonusInput is a candidate purchase to price bonuses for. Now is explicit
// so the time-limited rules are testable; SignupDate is nil for anonymous
// quoting.
type BonusInput struct {
	Amount     float64
	Token      model.CurrencyItem
	Bonuses    model.StageBonuses
	SignupDate *time.Time
	Purchased  bool
	Now        time.Time
}

// CalculateBonuses evaluates every bonus rule of the active stage against a
// candidate purchase. Missing config is zero-effect, invalid amounts count
// as 0; the function never fails.
func CalculateBonuses(in BonusInput) BonusBreakdown {
	amount := sanitizeAmount(in.Amount)

	var entries []BonusLine
	add := func(label string, pct float64) {
		if pct <= 0 {
			return
		}
		entries = append(entries, BonusLine{
			Label:      label,
			Percentage: pct,
			FiatValue:  RoundFiat(pct / 100 * amount),
		})
	}

	add(LabelBaseBonus, in.Bonuses.BasePercentage)
	add(LabelBuyBonus, tieredPercentage(in.Bonuses.TieredFiat, amount))
	add(LabelTokenBonus, paymentTokenPercentage(in.Bonuses.PaymentTokens, in.Token))

	if s := in.Bonuses.Signup; s != nil {
		if !in.Purchased {
			add(LabelFirstPurchaseBonus, s.FirstPurchasePercentage)
		}
		if s.LimitedTime != nil && LimitedSignupBonusValid(in.SignupDate, *s.LimitedTime, in.Now) {
			add(LabelSignupBonus, s.LimitedTime.Percentage)
		}
	}

	if lt := in.Bonuses.LimitedTime; lt != nil && in.Now.Before(lt.EndDate) {
		add(LabelLimitedTimeBonus, lt.Percentage)
	}

	out := BonusBreakdown{Entries: entries}
	for _, e := range entries {
		out.TotalPercentage += e.Percentage
		out.TotalFiat += e.FiatValue
	}
	out.TotalFiat = RoundFiat(out.TotalFiat)
	return out
}

// tieredPercentage picks the single highest tier whose threshold the
// purchase meets. Tiers do not stack.
func tieredPercentage(tiers []model.TieredBonus, amount float64) float64 {
	if len(tiers) == 0 {
		return 0
	}
	sorted := make([]model.TieredBonus, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Amount < sorted[j].Amount })

	pct := 0.0
	for _, tier := range sorted {
		if tier.Amount <= amount {
			pct = tier.Percentage
		}
	}
	return pct
}

// paymentTokenPercentage matches the chosen token against the stage's
// per-token bonuses. The catalog id is the canonical key, compared
// case-insensitively; first match wins.
func paymentTokenPercentage(bonuses []model.PaymentTokenBonus, token model.CurrencyItem) float64 {
	for _, b := range bonuses {
		if strings.EqualFold(b.TokenID, token.ID) {
			return b.Percentage
		}
	}
	return 0
}

// LimitedSignupBonusValid reports whether now is still inside the
// post-registration bonus window.
func LimitedSignupBonusValid(signupDate *time.Time, bonus model.LimitedSignupBonus, now time.Time) bool {
	if signupDate == nil {
		return false
	}
	end := signupDate.Add(time.Duration(bonus.MinutesAfterSignup) * time.Minute)
	return now.Before(end)
}

// LimitedSignupBonusTimeLeft returns how long the window has left, negative
// once it has closed. The countdown shown next to the signup bonus is
// derived from this.
func LimitedSignupBonusTimeLeft(signupDate *time.Time, bonus model.LimitedSignupBonus, now time.Time) time.Duration {
	if signupDate == nil {
		return 0
	}
	end := signupDate.Add(time.Duration(bonus.MinutesAfterSignup) * time.Minute)
	return end.Sub(now)
}
