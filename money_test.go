package statement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoneyRoundBank(t *testing.T) {
	tests := []struct {
		in   string
		cur  string
		want string
	}{
		{"12.825", "EUR", "12.82"},
		{"12.835", "EUR", "12.84"},
		{"12.8180", "EUR", "12.82"},
		{"1234.5", "JPY", "1234"},
		{"1235.5", "JPY", "1236"},
		{"0.125", "XYZ", "0.12"},
	}
	for _, tt := range tests {
		got := M(decimal.RequireFromString(tt.in), tt.cur).RoundBank()
		assert.Equal(t, tt.want, got.Amount().String(), "%s %s", tt.in, tt.cur)
		assert.Equal(t, tt.cur, got.Currency())
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := M(152.74, "AUD")
	tax := M(-22.91, "AUD")

	assert.True(t, a.Add(tax).Equal(M(129.83, "AUD")))
	assert.True(t, a.Sub(tax.Abs()).Equal(M(129.83, "AUD")))
	assert.True(t, M(0, "").Add(a).Equal(a), "no currency takes the other one")
	assert.True(t, tax.Neg().IsPositive())
	assert.False(t, a.Equal(M(152.74, "EUR")))
	assert.Panics(t, func() { a.Add(M(1, "EUR")) })
}

func TestQuantity(t *testing.T) {
	assert.Equal(t, "-60", Q(-60).String())
	assert.True(t, Q(-60).IsNegative())
	assert.True(t, Q(decimal.Zero).IsZero())
	b, err := Q(1.5).MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "1.5", string(b))
}
