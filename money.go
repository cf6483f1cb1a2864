package statement

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

type number interface {
	int | int64 | float64 | decimal.Decimal
}

func toDecimal[T number](v T) decimal.Decimal {
	switch x := any(v).(type) {
	case decimal.Decimal:
		return x
	case float64:
		return decimal.NewFromFloat(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	}
	panic("unreachable")
}

// Money is a signed amount in a currency, in major units.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// M returns amount in currency.
func M[T number](amount T, currency string) Money {
	return Money{amount: toDecimal(amount), currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

// Fraction returns the number of minor unit digits of the currency, 2 when
// the currency is unknown.
func (m Money) Fraction() int32 {
	if c := money.GetCurrency(m.currency); c != nil {
		return int32(c.Fraction)
	}
	return 2
}

// RoundBank rounds to the minor unit of the currency, half to even.
func (m Money) RoundBank() Money { return Money{m.amount.RoundBank(m.Fraction()), m.currency} }

func (m Money) Equal(n Money) bool { return m.currency == n.currency && m.amount.Equal(n.amount) }
func (m Money) IsZero() bool       { return m.amount.IsZero() }
func (m Money) IsPositive() bool   { return m.amount.IsPositive() }
func (m Money) IsNegative() bool   { return m.amount.IsNegative() }
func (m Money) Neg() Money         { return Money{m.amount.Neg(), m.currency} }
func (m Money) Abs() Money         { return Money{m.amount.Abs(), m.currency} }

// Add returns m+n. A Money without currency takes the currency of the other
// operand, distinct currencies panic.
func (m Money) Add(n Money) Money { return Money{m.amount.Add(n.amount), sameCurrency(m, n)} }

// Sub returns m-n, with the currency rules of Add.
func (m Money) Sub(n Money) Money { return Money{m.amount.Sub(n.amount), sameCurrency(m, n)} }

func sameCurrency(m, n Money) string {
	switch {
	case m.currency == "":
		return n.currency
	case n.currency == "", m.currency == n.currency:
		return m.currency
	}
	panic(fmt.Sprintf("currency mismatch: %s and %s", m.currency, n.currency))
}

// String formats m with the symbol of its currency, like "€72.64".
func (m Money) String() string {
	c := money.GetCurrency(m.currency)
	if c == nil {
		return m.amount.StringFixed(2) + " " + m.currency
	}
	minor := m.amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return c.Formatter().Format(minor)
}

// Quantity is a signed number of units of a security, positive when bought.
type Quantity struct {
	value decimal.Decimal
}

// Q returns a Quantity.
func Q[T number](value T) Quantity { return Quantity{toDecimal(value)} }

func (q Quantity) Equal(p Quantity) bool        { return q.value.Equal(p.value) }
func (q Quantity) IsZero() bool                 { return q.value.IsZero() }
func (q Quantity) IsNegative() bool             { return q.value.IsNegative() }
func (q Quantity) String() string               { return q.value.String() }
func (q Quantity) MarshalJSON() ([]byte, error) { return q.value.MarshalJSON() }
