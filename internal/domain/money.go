package domain

import "github.com/shopspring/decimal"

// Money is a currency-tagged decimal amount.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currencyCode"`
}

func NewMoney(amount string, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: d, Currency: currency}, nil
}

func MoneyFromDecimal(d decimal.Decimal, currency string) Money {
	return Money{Amount: d, Currency: currency}
}

// Normalize truncates to 2 decimal places. Truncation, not rounding:
// presented refund amounts must never exceed the computed value.
func Normalize(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}
