/*
Package generic provides the domain-agnostic building blocks of the subsidy desk.

PURPOSE:
  Types shared by every package that must not depend on the subsidy domain:
  money amounts, identifiers, calendar dates, comparison periods, the change
  feed used for push updates, and the error taxonomy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary quantity with a unit (JPY for this system)
  - OfficeID / ClientID / ApplicationID: Type-safe identifiers
  - Change: A committed write, published to subscribers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors.
     The 3% wage test compares exact percentages; 36000/1200000*100 must be 3.
  2. Type Safety: Strong typing for IDs prevents mixing office/client IDs
  3. Rounding only at the edges: intermediate sums stay unrounded

USAGE:
  base := generic.NewYen(200000)
  total := base.Add(generic.NewYen(10000))
  total.Round() // whole yen

SEE ALSO:
  - time.go: Calendar date normalization and day differences
  - period.go: Six-month comparison windows around a conversion date
  - store.go: Change feed for subscribers
*/
package generic

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Monetary quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitYen Unit = "JPY"
)

func NewAmountFromInt(value int64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(value), Unit: unit}
}

// NewYen is shorthand for a whole-yen amount.
func NewYen(value int64) Amount {
	return NewAmountFromInt(value, UnitYen)
}

// ZeroYen returns 0 JPY.
func ZeroYen() Amount {
	return Amount{Value: decimal.Zero, Unit: UnitYen}
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Div(s decimal.Decimal) Amount { return Amount{Value: a.Value.Div(s), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }

// Round returns the amount rounded half-away-from-zero to whole currency units.
func (a Amount) Round() Amount { return Amount{Value: a.Value.Round(0), Unit: a.Unit} }

// Int64 returns the amount rounded to whole units.
func (a Amount) Int64() int64 { return a.Value.Round(0).IntPart() }

// String formats the amount with thousands separators, e.g. "1,260,000".
func (a Amount) String() string {
	return FormatThousands(a.Value.Round(0).IntPart())
}

// FormatThousands renders n with comma separators.
func FormatThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	out := make([]byte, 0, len(digits)+len(digits)/3+1)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// OfficeID identifies the labor consultant office owning a set of records.
// Every stored record is keyed by it.
type OfficeID string

type ClientID string
type ApplicationID string
