package billing

import (
	"fmt"
	"strings"

	"github.com/warp/billing-engine/generic"
)

// =============================================================================
// CYCLE - Company billing-day configuration
// =============================================================================

// Cycle is a company's cyclic billing configuration. Zero or out-of-range days
// mean "not configured": StartDay defaults to 1 and EndDay to the last day of
// the month, i.e. a calendar-month period.
//
// When StartDay > EndDay the cycle crosses a month boundary: a period starts
// in one month and ends in the next (26 -> 25 gives Feb 26 - Mar 25).
type Cycle struct {
	StartDay int
	EndDay   int
}

const (
	DefaultStartDay = 1
	// DefaultEndDay is clamped to the last day of each month.
	DefaultEndDay = 31
)

// Resolve applies the documented defaults. It never fails.
func (c Cycle) Resolve() Cycle {
	if c.StartDay < 1 || c.StartDay > 31 {
		c.StartDay = DefaultStartDay
	}
	if c.EndDay < 1 || c.EndDay > 31 {
		c.EndDay = DefaultEndDay
	}
	return c
}

// CrossesMonth reports a cycle whose periods span two consecutive months.
// StartDay == EndDay is a (degenerate) single-day, non-crossing period.
func (c Cycle) CrossesMonth() bool {
	r := c.Resolve()
	return r.StartDay > r.EndDay
}

// CompanyConfig is what a company stores about its billing. A company with no
// stored configuration uses the zero value, so every default applies.
type CompanyConfig struct {
	CompanyID generic.CompanyID
	Cycle     Cycle
	// DailyCapacity is hours per business day for schedules. Zero means "use the default".
	DailyCapacity generic.Amount
}

// Window is an inclusive range of month offsets relative to the current month.
type Window struct {
	From int
	To   int
}

// DefaultWindow covers last month through one year ahead.
var DefaultWindow = Window{From: -1, To: 12}

const (
	// MaxWindowMonths bounds how many periods one window may produce.
	MaxWindowMonths = 240
	// MaxMonthOffset bounds how far from the current month a window may reach.
	MaxMonthOffset = 1200
)

// Validate rejects inverted windows, windows wider than MaxWindowMonths and
// offsets beyond MaxMonthOffset in either direction.
func (w Window) Validate() error {
	switch {
	case w.From > w.To:
		return fmt.Errorf("offsets %d..%d: %w", w.From, w.To, generic.ErrInvalidOffsetRange)
	case w.From < -MaxMonthOffset || w.To > MaxMonthOffset:
		return fmt.Errorf("offsets %d..%d exceed +/-%d months: %w",
			w.From, w.To, MaxMonthOffset, generic.ErrInvalidOffsetRange)
	case w.To-w.From+1 > MaxWindowMonths:
		return fmt.Errorf("offsets %d..%d span more than %d months: %w",
			w.From, w.To, MaxWindowMonths, generic.ErrInvalidOffsetRange)
	}
	return nil
}

// =============================================================================
// BILLING PERIOD
// =============================================================================

// BillingPeriod is never persisted: it is recomputed from the Cycle on demand.
type BillingPeriod struct {
	generic.Period
	Label string
	// Key is "startISO_endISO", an opaque equality key for joins against invoices.
	Key string
}

// LabelLayout renders dates in the product's display locale (pt-BR).
const LabelLayout = "02/01/2006"

// NewBillingPeriod validates the bounds and derives label and key.
func NewBillingPeriod(start, end generic.TimePoint) (BillingPeriod, error) {
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return BillingPeriod{}, err
	}
	return BillingPeriod{Period: p, Label: PeriodLabel(p), Key: PeriodKey(p)}, nil
}

func PeriodKey(p generic.Period) string {
	return p.Start.String() + "_" + p.End.String()
}

func PeriodLabel(p generic.Period) string {
	return p.Start.Format(LabelLayout) + " - " + p.End.Format(LabelLayout)
}

// ParsePeriodKey reverses PeriodKey. Consumers normally compare keys as
// strings; this exists for addressing a period in a URL.
func ParsePeriodKey(key string) (BillingPeriod, error) {
	start, end, ok := strings.Cut(key, "_")
	if !ok {
		return BillingPeriod{}, fmt.Errorf("period key %q: %w", key, generic.ErrInvalidInput)
	}
	p, err := generic.ParsePeriod(start, end)
	if err != nil {
		return BillingPeriod{}, err
	}
	return BillingPeriod{Period: p, Label: PeriodLabel(p), Key: PeriodKey(p)}, nil
}

// =============================================================================
// GENERATOR
// =============================================================================

// PeriodAt returns the period for one month offset from now.
//
// baseMonth is the first of now's month moved by offset months. A
// non-crossing cycle is clamped within baseMonth. A crossing cycle ends in
// baseMonth and starts in the month before it, so offset 0 is the period
// containing the current cycle's end (now = March 2024, 26 -> 25 gives
// 2024-02-26 .. 2024-03-25).
func (c Cycle) PeriodAt(now generic.TimePoint, offset int) BillingPeriod {
	r := c.Resolve()
	base := generic.StartOfMonth(now.Year(), now.Month()).AddMonths(offset)

	var start, end generic.TimePoint
	if r.StartDay > r.EndDay {
		prev := base.AddMonths(-1)
		start = generic.ClampDay(prev.Year(), prev.Month(), r.StartDay)
		end = generic.ClampDay(base.Year(), base.Month(), r.EndDay)
	} else {
		start = generic.ClampDay(base.Year(), base.Month(), r.StartDay)
		end = generic.ClampDay(base.Year(), base.Month(), r.EndDay)
	}

	p := generic.Period{Start: start, End: end}
	return BillingPeriod{Period: p, Label: PeriodLabel(p), Key: PeriodKey(p)}
}

// GeneratePeriods returns one period per offset in w, in ascending order.
func GeneratePeriods(c Cycle, now generic.TimePoint, w Window) ([]BillingPeriod, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	periods := make([]BillingPeriod, 0, w.To-w.From+1)
	for i := w.From; i <= w.To; i++ {
		periods = append(periods, c.PeriodAt(now, i))
	}
	return periods, nil
}

// PeriodFor returns the period containing date. Non-crossing cycles that do
// not cover the whole month (5 -> 20) leave gaps; ok is false for a date in one.
func PeriodFor(c Cycle, date generic.TimePoint) (BillingPeriod, bool) {
	for _, offset := range []int{0, 1, -1} {
		if p := c.PeriodAt(date, offset); p.Contains(date) {
			return p, true
		}
	}
	return BillingPeriod{}, false
}
