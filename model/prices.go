package model

// PriceTable maps a payment token symbol to its fiat exchange rates
// (currency code -> rate). Tables are replaced wholesale on refresh, never
// patched.
type PriceTable map[string]map[string]float64

// Rate returns the rate for symbol in currency, or 0 when either is
// missing. Callers treat 0 as "no price" and guard divisions accordingly.
func (p PriceTable) Rate(symbol, currency string) float64 {
	rates, ok := p[symbol]
	if !ok {
		return 0
	}
	return rates[currency]
}

// Clone deep-copies the table so a cached snapshot can never be mutated by
// a later refresh.
func (p PriceTable) Clone() PriceTable {
	if p == nil {
		return nil
	}
	out := make(PriceTable, len(p))
	for sym, rates := range p {
		cp := make(map[string]float64, len(rates))
		for cur, v := range rates {
			cp[cur] = v
		}
		out[sym] = cp
	}
	return out
}
