/*
Package generic provides the domain-agnostic primitives of the budget engine.

PURPOSE:
  Money, calendar dates and date ranges, plus the error vocabulary shared by
  every domain package. Nothing in here knows about buckets or paychecks.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: a currency amount always held at cent precision
  - Every arithmetic result is rounded half away from zero to two places,
    so no operation can leave a value with more than two decimal digits

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. Closure: Add/Sub/Mul/Div all return rounded Money
  3. Zero value is usable (0.00)

USAGE:
  price := generic.NewMoney(4.99)
  left := balance.Sub(price)
  perDay := left.DivInt(5)

SEE ALSO:
  - time.go: Date primitive
  - period.go: Date ranges
  - errors.go: Sentinel errors
*/
package generic

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount at cent precision
// =============================================================================

// Money is a single-currency amount rounded to the cent.
type Money struct {
	d decimal.Decimal
}

const centPlaces = 2

var hundred = decimal.NewFromInt(100)

// Zero is 0.00.
var Zero = Money{}

func NewMoney(value float64) Money             { return Money{d: decimal.NewFromFloat(value).Round(centPlaces)} }
func NewMoneyFromInt(value int64) Money        { return Money{d: decimal.NewFromInt(value)} }
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{d: d.Round(centPlaces)} }

// ParseMoney parses a decimal string such as "12.345" and rounds it to the cent.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d), nil
}

// MustParseMoney is ParseMoney for literals. It panics on invalid input.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money        { return Money{d: m.d.Add(o.d).Round(centPlaces)} }
func (m Money) Sub(o Money) Money        { return Money{d: m.d.Sub(o.d).Round(centPlaces)} }
func (m Money) Neg() Money               { return Money{d: m.d.Neg()} }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool    { return m.d.LessThan(o.d) }
func (m Money) Cmp(o Money) int          { return m.d.Cmp(o.d) }
func (m Money) Decimal() decimal.Decimal { return m.d }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}

// Max returns the larger of m and o.
func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}

// Percent returns m * pct / 100, rounded to the cent.
func (m Money) Percent(pct decimal.Decimal) Money {
	return Money{d: m.d.Mul(pct).Div(hundred).Round(centPlaces)}
}

// DivInt splits m into n equal parts, rounded to the cent. n must be positive.
func (m Money) DivInt(n int) Money {
	if n <= 0 {
		return Zero
	}
	return Money{d: m.d.Div(decimal.NewFromInt(int64(n))).Round(centPlaces)}
}

// FloorChunks returns the largest whole multiple of chunk that fits in m.
// Non-positive m or chunk yields Zero.
func (m Money) FloorChunks(chunk Money) Money {
	if !m.IsPositive() || !chunk.IsPositive() {
		return Zero
	}
	n := m.d.Div(chunk.d).Floor()
	return Money{d: n.Mul(chunk.d).Round(centPlaces)}
}

// NonNegative clamps negative values to Zero.
func (m Money) NonNegative() Money {
	if m.IsNegative() {
		return Zero
	}
	return m
}

func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String renders with exactly two decimals ("12.50").
func (m Money) String() string { return m.d.StringFixed(centPlaces) }

// MarshalJSON writes a bare JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number, a quoted decimal string, or null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		*m = Zero
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SumMoney adds all values.
func SumMoney(values ...Money) Money {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
