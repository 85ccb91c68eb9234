/*
Package generic provides the domain-agnostic primitives of the billing engine.

PURPOSE:
  Calendar-day arithmetic, inclusive periods, decimal quantities and the
  error taxonomy shared by the billing, worklog and planning packages.
  Nothing in here knows what an invoice or a task is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (8 hours, 1500.00 currency)
  - Budget: Bounded(hours) | Unbounded, the estimate of a task and the
    balance derived from it
  - Typed identifiers

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal, never float64, for hours and money
  2. No sentinels: an unbounded estimate is a distinct variant, not +Inf
  3. Type Safety: strong ID types prevent mixing task/entry/invoice IDs

SEE ALSO:
  - time.go: TimePoint and business-day arithmetic
  - period.go: Period
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours Unit = "hours"
	UnitDays  Unit = "days"
	// UnitMoney is the company's currency in the major unit (not cents).
	UnitMoney Unit = "money"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func Hours(value float64) Amount { return NewAmount(value, UnitHours) }
func Money(value float64) Amount { return NewAmount(value, UnitMoney) }

// ParseAmount parses a decimal string; malformed input is an error.
func ParseAmount(s string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("amount %q: %w", s, ErrInvalidInput)
	}
	return Amount{Value: d, Unit: unit}, nil
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) String() string               { return a.Value.String() }

// Float64 is for display and JSON only; arithmetic stays in decimal.
func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}

// MaxCount is the largest value CeilDiv returns.
const MaxCount = math.MaxInt32

var maxCount = decimal.NewFromInt(MaxCount)

// CeilDiv returns ceil(a / b) as an integer count, saturating at MaxCount.
// b must be positive.
func (a Amount) CeilDiv(b Amount) int {
	if !b.IsPositive() || !a.IsPositive() {
		return 0
	}
	q := a.Value.Div(b.Value).Ceil()
	if q.GreaterThan(maxCount) {
		return MaxCount
	}
	return int(q.IntPart())
}

// =============================================================================
// BUDGET - Bounded(hours) | Unbounded
// =============================================================================

// Budget is either a finite number of hours or unbounded (unscoped, ad-hoc
// tasks). The zero value is Bounded(0 hours).
//
// Unbounded never participates in arithmetic: callers must branch on Hours().
type Budget struct {
	hours     Amount
	unbounded bool
}

func Bounded(hours Amount) Budget { return Budget{hours: hours} }
func Unbounded() Budget           { return Budget{unbounded: true} }

// BoundedHours is a shorthand for Bounded(Hours(h)).
func BoundedHours(h float64) Budget { return Bounded(Hours(h)) }

func (b Budget) IsUnbounded() bool { return b.unbounded }

// Hours returns the finite value and true, or a zero amount and false when unbounded.
func (b Budget) Hours() (Amount, bool) {
	if b.unbounded {
		return Amount{Value: decimal.Zero, Unit: UnitHours}, false
	}
	if b.hours.Unit == "" {
		return Amount{Value: b.hours.Value, Unit: UnitHours}, true
	}
	return b.hours, true
}

// Less subtracts consumed hours from a bounded budget; unbounded stays unbounded.
func (b Budget) Less(consumed Amount) Budget {
	h, ok := b.Hours()
	if !ok {
		return b
	}
	return Bounded(h.Sub(consumed))
}

// IsOver reports a bounded budget that has gone negative.
func (b Budget) IsOver() bool {
	h, ok := b.Hours()
	return ok && h.IsNegative()
}

func (b Budget) Equal(other Budget) bool {
	if b.unbounded || other.unbounded {
		return b.unbounded == other.unbounded
	}
	bh, _ := b.Hours()
	oh, _ := other.Hours()
	return bh.Equal(oh)
}

func (b Budget) String() string {
	if b.unbounded {
		return "unbounded"
	}
	h, _ := b.Hours()
	return h.String()
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CompanyID string
type ProjectID string
type TaskID string
type EntryID string
type InvoiceID string
type ReminderID string
type UserID string
