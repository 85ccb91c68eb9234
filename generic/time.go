package generic

import (
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar-date format used at every boundary.
const DateLayout = "2006-01-02"

// TimeOfDayLayout is the zero-padded HH:MM time-of-day format.
const TimeOfDayLayout = "15:04"

// =============================================================================
// TIME POINT - Calendar day (all period math is day based)
// =============================================================================

// TimePoint is a calendar date. The wrapped time is always midnight UTC so that
// day arithmetic never crosses a DST boundary.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime returns the calendar date of t as observed in t's own location.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar date in loc (UTC when loc is nil).
func Today(loc *time.Location) TimePoint {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(time.Now().In(loc))
}

// ParseDate parses a YYYY-MM-DD string. Dates that overflow (2024-02-30) are
// rejected instead of normalized.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return TimePoint{}, &InvalidDateError{Value: s, Err: err}
	}
	return FromTime(t), nil
}

// MustParseDate is ParseDate for fixtures; it panics on malformed input.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// ValidTimeOfDay reports whether s is empty or a zero-padded HH:MM value.
func ValidTimeOfDay(s string) bool {
	if s == "" {
		return true
	}
	if len(s) != len(TimeOfDayLayout) {
		return false
	}
	_, err := time.Parse(TimeOfDayLayout, s)
	return err == nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// AddMonths moves n calendar months, clamping the day to the target month's
// last day (Jan 31 + 1 month = Feb 28/29, never Mar 2/3).
func (tp TimePoint) AddMonths(n int) TimePoint {
	first := NewTimePoint(tp.Year(), tp.Month(), 1).Time.AddDate(0, n, 0)
	return ClampDay(first.Year(), first.Month(), tp.Day())
}

// AddYears moves n years with the same clamping rule as AddMonths (Feb 29 -> Feb 28).
func (tp TimePoint) AddYears(n int) TimePoint { return tp.AddMonths(12 * n) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (tp TimePoint) IsWorkday() bool { return !tp.IsWeekend() }
func (tp TimePoint) IsZero() bool    { return tp.Time.IsZero() }

// String returns the ISO date; this is the lexicographically sortable form.
func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

// Format renders the date with a Go layout (display only).
func (tp TimePoint) Format(layout string) string { return tp.Time.Format(layout) }

// =============================================================================
// MONTH HELPERS
// =============================================================================

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return TimePoint{Time: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

func DaysInMonth(year int, month time.Month) int { return EndOfMonth(year, month).Day() }

// ClampDay builds year-month-day, using the month's last day when day overflows it.
// Days below 1 clamp to the first.
func ClampDay(year int, month time.Month, day int) TimePoint {
	if day < 1 {
		day = 1
	}
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return NewTimePoint(year, month, day)
}

func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }

// =============================================================================
// BUSINESS DAYS - Saturdays and Sundays are skipped, holidays are not modeled
// =============================================================================

// NextWorkday returns tp if it is a weekday, otherwise the following Monday.
func (tp TimePoint) NextWorkday() TimePoint {
	for tp.IsWeekend() {
		tp = tp.AddDays(1)
	}
	return tp
}

// PrevWorkday returns tp if it is a weekday, otherwise the preceding Friday.
func (tp TimePoint) PrevWorkday() TimePoint {
	for tp.IsWeekend() {
		tp = tp.AddDays(-1)
	}
	return tp
}

// AddWorkdays moves n business days forward (n < 0 moves backward) from tp,
// which is first rolled onto a business day in the direction of travel.
func (tp TimePoint) AddWorkdays(n int) TimePoint {
	step := 1
	if n < 0 {
		step, n = -1, -n
		tp = tp.PrevWorkday()
	} else {
		tp = tp.NextWorkday()
	}
	for n > 0 {
		tp = tp.AddDays(step)
		if tp.IsWorkday() {
			n--
		}
	}
	return tp
}

// WorkdaysBetween counts business days in the inclusive range [from, to].
func WorkdaysBetween(from, to TimePoint) int {
	count := 0
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if d.IsWorkday() {
			count++
		}
	}
	return count
}
