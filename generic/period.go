package generic

// =============================================================================
// PERIOD - Inclusive calendar range
// =============================================================================

// Period is an inclusive [Start, End] range of calendar days.
//
// Examples:
//   - Calendar month: Mar 1 - Mar 31
//   - Billing cycle crossing months: Feb 26 - Mar 25
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates the bounds. An end before the start is a hard failure.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ParsePeriod parses two ISO dates into a validated Period.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	return NewPeriod(s, e)
}

// Validate returns an *InvalidPeriodError when End is before Start or a bound is unset.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return ErrMissingPeriod
	}
	if p.End.Before(p.Start) {
		return &InvalidPeriodError{Start: p.Start, End: p.End}
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Equal compares both bounds.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Length is the number of calendar days in the period.
func (p Period) Length() int { return DaysBetween(p.Start, p.End) + 1 }

// SpansMonths reports whether Start and End fall in different calendar months.
func (p Period) SpansMonths() bool {
	return p.Start.Year() != p.End.Year() || p.Start.Month() != p.End.Month()
}

// Shift applies the same date offset to both bounds.
func (p Period) Shift(offset func(TimePoint) TimePoint) Period {
	return Period{Start: offset(p.Start), End: offset(p.End)}
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
