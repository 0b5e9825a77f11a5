package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		a    Money
		b    Money
		op   func(Money, Money) Money
		want string
	}{
		{
			name: "plus",
			a:    MustParse("10.50", CurrencyUSD),
			b:    MustParse("0.25", CurrencyUSD),
			op:   Money.Plus,
			want: "10.75",
		},
		{
			name: "minus",
			a:    MustParse("10.50", CurrencyUSD),
			b:    MustParse("10.50", CurrencyUSD),
			op:   Money.Minus,
			want: "0",
		},
		{
			name: "minus below zero",
			a:    MustParse("5", CurrencyUSD),
			b:    MustParse("7.25", CurrencyUSD),
			op:   Money.Minus,
			want: "-2.25",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.op(tc.a, tc.b)
			assert.True(t, got.Amount.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
			assert.Equal(t, CurrencyUSD, got.Currency)
		})
	}
}

func TestCurrencyMismatchPanics(t *testing.T) {
	usd := MustParse("1", CurrencyUSD)
	eur := MustParse("1", CurrencyEUR)

	require.Panics(t, func() { usd.Plus(eur) })
	require.Panics(t, func() { usd.Minus(eur) })
	require.Panics(t, func() { usd.Compare(eur) })
	require.Panics(t, func() {
		m := usd
		m.Decrease(eur)
	})
}

func TestSignChecks(t *testing.T) {
	tests := []struct {
		name       string
		m          Money
		positive   bool
		negative   bool
		hasBalance bool
	}{
		{name: "positive", m: MustParse("0.01", CurrencyUSD), positive: true, hasBalance: true},
		{name: "negative", m: MustParse("-0.01", CurrencyUSD), negative: true, hasBalance: true},
		{name: "zero", m: Zero(CurrencyUSD)},
		// exactness matters: a tiny residue still has balance
		{name: "tiny residue", m: MustParse("0.0000001", CurrencyUSD), positive: true, hasBalance: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.positive, tc.m.IsPositive())
			assert.Equal(t, tc.negative, tc.m.IsNegative())
			assert.Equal(t, tc.hasBalance, tc.m.HasBalance())
		})
	}
}

func TestInPlaceOps(t *testing.T) {
	m := MustParse("100", CurrencyUSD)
	m.Decrease(MustParse("60", CurrencyUSD))
	assert.True(t, m.Equal(MustParse("40", CurrencyUSD)))

	m.ResetToZero()
	assert.False(t, m.HasBalance())
	assert.Equal(t, CurrencyUSD, m.Currency)
}

func TestCloneIsIndependent(t *testing.T) {
	orig := MustParse("100", CurrencyUSD)
	c := orig.Clone()
	c.Decrease(MustParse("40", CurrencyUSD))

	assert.True(t, orig.Equal(MustParse("100", CurrencyUSD)))
	assert.True(t, c.Equal(MustParse("60", CurrencyUSD)))
}

func TestAbsAndCompare(t *testing.T) {
	neg := MustParse("-3.50", CurrencyGBP)
	assert.True(t, neg.Abs().Equal(MustParse("3.50", CurrencyGBP)))

	assert.Equal(t, -1, MustParse("1", CurrencyUSD).Compare(MustParse("2", CurrencyUSD)))
	assert.Equal(t, 0, MustParse("2", CurrencyUSD).Compare(MustParse("2.00", CurrencyUSD)))
	assert.Equal(t, 1, MustParse("3", CurrencyUSD).Compare(MustParse("2", CurrencyUSD)))
}
