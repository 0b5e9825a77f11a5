// Package money provides exact decimal arithmetic over (amount, currency)
// pairs. Every processor decision that asks "is there anything left to
// reserve/charge/refund" goes through HasBalance and the sign checks here,
// so there is no epsilon tolerance anywhere.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func New(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func Zero(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// NewFromString builds a Money from a decimal string.
func NewFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("NewFromString: %q: %w", amount, err)
	}
	return Money{Amount: d, Currency: currency}, nil
}

// MustParse builds a Money from a decimal string. It is a convenience for
// tests and fixtures; malformed input panics.
func MustParse(amount string, currency Currency) Money {
	return Money{Amount: decimal.RequireFromString(amount), Currency: currency}
}

// assertSameCurrency guards every binary operation. Mixing currencies is a
// programming error upstream, not a recoverable condition.
func (m Money) assertSameCurrency(o Money) {
	if m.Currency != o.Currency {
		panic(fmt.Sprintf("money: currency mismatch %s vs %s", m.Currency, o.Currency))
	}
}

func (m Money) Plus(o Money) Money {
	m.assertSameCurrency(o)
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}
}

func (m Money) Minus(o Money) Money {
	m.assertSameCurrency(o)
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}
}

func (m Money) Abs() Money {
	return Money{Amount: m.Amount.Abs(), Currency: m.Currency}
}

// Compare returns -1, 0 or 1 as m is less than, equal to or greater than o.
func (m Money) Compare(o Money) int {
	m.assertSameCurrency(o)
	return m.Amount.Cmp(o.Amount)
}

func (m Money) Equal(o Money) bool {
	return m.Compare(o) == 0
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// HasBalance reports whether the amount is non-zero.
func (m Money) HasBalance() bool {
	return !m.Amount.IsZero()
}

// ResetToZero zeroes the amount in place, keeping the currency.
func (m *Money) ResetToZero() {
	m.Amount = decimal.Zero
}

// Decrease subtracts o from m in place.
func (m *Money) Decrease(o Money) {
	m.assertSameCurrency(o)
	m.Amount = m.Amount.Sub(o.Amount)
}

// Clone returns an independent copy. Money is a value type, so this is a
// plain copy; it exists so call sites can be explicit about detaching a
// running total from its source.
func (m Money) Clone() Money {
	return Money{Amount: m.Amount.Copy(), Currency: m.Currency}
}

func (m Money) String() string {
	return m.Amount.String() + " " + string(m.Currency)
}
