package service

import (
	"sync"

	"github.com/presale_portal/model"
)

type EditedField string

const (
	EditedFiat  EditedField = "fiat"
	EditedToken EditedField = "token"
)

// PriceSource is the slice of the price feed the quote engine needs.
type PriceSource interface {
	Price(symbol string) float64
}

// Quote is a consistent snapshot of the two linked amount fields.
type Quote struct {
	FiatAmount  float64            `json:"fiat_amount"`
	TokenAmount float64            `json:"token_amount"`
	Token       model.CurrencyItem `json:"token"`
	LastEdited  EditedField        `json:"last_edited"`
}

// QuoteEngine keeps a fiat amount and a payment-token amount mutually
// consistent under the live price, remembering which side the user edited
// last. Price refreshes arrive from the poller goroutine, so state is
// mutex-guarded.
type QuoteEngine struct {
	mu         sync.Mutex
	prices     PriceSource
	fiat       float64
	tokens     float64
	token      model.CurrencyItem
	lastEdited EditedField
}

func NewQuoteEngine(prices PriceSource, token model.CurrencyItem) *QuoteEngine {
	return &QuoteEngine{
		prices:     prices,
		token:      token,
		lastEdited: EditedFiat,
	}
}

// SetFiatAmount records a fiat-side edit and re-derives the token amount.
func (q *QuoteEngine) SetFiatAmount(amount float64) Quote {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.fiat = sanitizeAmount(amount)
	q.lastEdited = EditedFiat
	q.tokens = TruncateToken(safeDiv(q.fiat, q.price()))
	return q.snapshot()
}

// SetTokenAmount records a token-side edit and re-derives the fiat amount.
func (q *QuoteEngine) SetTokenAmount(amount float64) Quote {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tokens = sanitizeAmount(amount)
	q.lastEdited = EditedToken
	q.fiat = RoundFiat(q.price() * q.tokens)
	return q.snapshot()
}

// SetToken switches the payment token. The user's most recent input is
// kept; only the derived side is recomputed at the new token's price.
func (q *QuoteEngine) SetToken(token model.CurrencyItem) Quote {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.token = token
	q.rederive()
	return q.snapshot()
}

// OnPriceRefresh re-derives the non-last-edited field after a feed update.
// The side the user is typing into is never silently overwritten.
func (q *QuoteEngine) OnPriceRefresh() Quote {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rederive()
	return q.snapshot()
}

func (q *QuoteEngine) Snapshot() Quote {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

func (q *QuoteEngine) rederive() {
	if q.lastEdited == EditedToken {
		q.fiat = RoundFiat(q.price() * q.tokens)
		return
	}
	q.tokens = TruncateToken(safeDiv(q.fiat, q.price()))
}

func (q *QuoteEngine) price() float64 {
	if q.prices == nil {
		return 0
	}
	return q.prices.Price(q.token.Symbol)
}

func (q *QuoteEngine) snapshot() Quote {
	return Quote{
		FiatAmount:  q.fiat,
		TokenAmount: q.tokens,
		Token:       q.token,
		LastEdited:  q.lastEdited,
	}
}
