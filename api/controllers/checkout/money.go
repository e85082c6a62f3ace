package checkout

import "github.com/shopspring/decimal"

// Prices are computed at full precision and rounded to paise only here.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func optionalMoney(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}
