package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	ChainERC20 = "ERC20"
	ChainBEP20 = "BEP20"
	ChainTRC20 = "TRC20"
	ChainBTC   = "BTC"
)

// PlaceholderTokenImage is shown for payment tokens missing from the
// catalog.
const PlaceholderTokenImage = "/image/placeholder/token.png"

// CurrencyItem is a cryptocurrency accepted for payment. Symbols are not
// unique across chains (USDT exists on several), so ID is the canonical
// identifier everywhere, including bonus lookups.
type CurrencyItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	ImageURL string `json:"imageUrl"`
	Chain    string `json:"chain,omitempty"`
}

// PaymentToken is the persisted form of a catalog entry, extendable by
// operators without a redeploy.
type PaymentToken struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(128);not null" json:"name"`
	ShortName string    `gorm:"column:short_name;type:varchar(16);not null" json:"short_name"`
	Chain     string    `gorm:"column:chain;type:varchar(16)" json:"chain"`
	ImageURL  string    `gorm:"column:image_url;type:varchar(512)" json:"image_url"`
	CoinID    string    `gorm:"column:coin_id;type:varchar(64)" json:"coin_id"`
	Disabled  bool      `gorm:"column:disabled;not null;default:false" json:"disabled"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// FromPaymentToken maps a backend record onto the catalog shape. Unknown
// image URLs fall back to a placeholder rather than erroring.
func FromPaymentToken(pt PaymentToken) CurrencyItem {
	image := pt.ImageURL
	if image == "" {
		image = PlaceholderTokenImage
	}
	return CurrencyItem{
		ID:       pt.ID,
		Name:     pt.Name,
		Symbol:   strings.ToUpper(pt.ShortName),
		ImageURL: image,
		Chain:    pt.Chain,
	}
}

// TokenList is the built-in payment token catalog.
var TokenList = []CurrencyItem{
	{ID: "eth", Name: "Ethereum", Symbol: "ETH", ImageURL: "https://assets.coingecko.com/coins/images/279/small/ethereum.png", Chain: ChainERC20},
	{ID: "btc", Name: "Bitcoin", Symbol: "BTC", ImageURL: "https://assets.coingecko.com/coins/images/1/small/bitcoin.png", Chain: ChainBTC},
	{ID: "usdt-erc20", Name: "Tether", Symbol: "USDT", ImageURL: "https://assets.coingecko.com/coins/images/325/small/Tether-logo.png", Chain: ChainERC20},
	{ID: "usdt-trc20", Name: "Tether", Symbol: "USDT", ImageURL: "https://assets.coingecko.com/coins/images/325/small/Tether-logo.png", Chain: ChainTRC20},
	{ID: "ltc", Name: "Litecoin", Symbol: "LTC", ImageURL: "https://assets.coingecko.com/coins/images/2/small/litecoin.png", Chain: ChainERC20},
	{ID: "doge", Name: "Dogecoin", Symbol: "DOGE", ImageURL: "https://assets.coingecko.com/coins/images/5/small/dogecoin.png", Chain: ChainERC20},
	{ID: "matic", Name: "Polygon", Symbol: "MATIC", ImageURL: "https://assets.coingecko.com/coins/images/4713/small/matic-token-icon.png", Chain: ChainERC20},
}

// CoinIDs maps catalog ids to the price feed's coin identifiers.
var CoinIDs = map[string]string{
	"eth":        "ethereum",
	"btc":        "bitcoin",
	"usdt-erc20": "tether",
	"usdt-trc20": "tether",
	"ltc":        "litecoin",
	"doge":       "dogecoin",
	"matic":      "matic-network",
}

// FindToken resolves a catalog entry by id, case-insensitively. The bool is
// false when the token is unknown; callers display a placeholder instead of
// failing.
func FindToken(list []CurrencyItem, id string) (CurrencyItem, bool) {
	for _, item := range list {
		if strings.EqualFold(item.ID, id) {
			return item, true
		}
	}
	return CurrencyItem{}, false
}

// TokenLabel disambiguates duplicate symbols by appending the chain, the
// same rule the portal token selector uses.
func TokenLabel(list []CurrencyItem, item CurrencyItem) string {
	for _, other := range list {
		if other.Symbol == item.Symbol && other.ID != item.ID {
			return fmt.Sprintf("%s (%s)", item.Name, item.Chain)
		}
	}
	return item.Name
}
