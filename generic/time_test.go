package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) generic.TimePoint {
	return generic.MustParseDate(s)
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseDate_RejectsOverflow(t *testing.T) {
	_, err := generic.ParseDate("2024-02-30")

	var de *generic.InvalidDateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "2024-02-30", de.Value)
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
	assert.True(t, generic.IsClientError(err))
}

func TestParseDate_RoundTripsISO(t *testing.T) {
	tp, err := generic.ParseDate(" 2024-03-05 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", tp.String())
	assert.Equal(t, "", generic.TimePoint{}.String())
}

func TestValidTimeOfDay(t *testing.T) {
	for _, ok := range []string{"", "00:00", "09:30", "23:59"} {
		assert.True(t, generic.ValidTimeOfDay(ok), ok)
	}
	for _, bad := range []string{"9:30", "24:00", "12:60", "noon", "12:00:00"} {
		assert.False(t, generic.ValidTimeOfDay(bad), bad)
	}
}

// =============================================================================
// MONTH ARITHMETIC
// =============================================================================

func TestAddMonths_ClampsToLastDay(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-01-31", 2, "2024-03-31"},
		{"2024-03-31", -1, "2024-02-29"},
		{"2024-12-15", 1, "2025-01-15"},
		{"2024-01-15", -1, "2023-12-15"},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, d(tt.from).AddMonths(tt.n).String())
		})
	}
}

func TestAddYears_LeapDay(t *testing.T) {
	assert.Equal(t, "2025-02-28", d("2024-02-29").AddYears(1).String())
	assert.Equal(t, "2028-02-29", d("2024-02-29").AddYears(4).String())
}

func TestClampDay(t *testing.T) {
	assert.Equal(t, "2023-02-28", generic.ClampDay(2023, time.February, 31).String())
	assert.Equal(t, "2024-04-30", generic.ClampDay(2024, time.April, 31).String())
	assert.Equal(t, "2024-04-01", generic.ClampDay(2024, time.April, 0).String())
	assert.Equal(t, 29, generic.DaysInMonth(2024, time.February))
}

// =============================================================================
// BUSINESS DAYS
// =============================================================================

func TestAddWorkdays_SkipsWeekends(t *testing.T) {
	// 2024-03-08 is a Friday
	friday := d("2024-03-08")

	assert.Equal(t, "2024-03-08", friday.AddWorkdays(0).String())
	assert.Equal(t, "2024-03-11", friday.AddWorkdays(1).String())
	assert.Equal(t, "2024-03-15", friday.AddWorkdays(5).String())
	assert.Equal(t, "2024-03-07", friday.AddWorkdays(-1).String())

	// Weekend origins roll in the direction of travel first
	saturday := d("2024-03-09")
	assert.Equal(t, "2024-03-11", saturday.AddWorkdays(0).String())
	assert.Equal(t, "2024-03-12", saturday.AddWorkdays(1).String())
	assert.Equal(t, "2024-03-07", saturday.AddWorkdays(-1).String())
}

func TestWorkdaysBetween_Inclusive(t *testing.T) {
	assert.Equal(t, 5, generic.WorkdaysBetween(d("2024-03-04"), d("2024-03-10")))
	assert.Equal(t, 0, generic.WorkdaysBetween(d("2024-03-09"), d("2024-03-10")))
	assert.Equal(t, 1, generic.WorkdaysBetween(d("2024-03-04"), d("2024-03-04")))
}

func TestNextPrevWorkday(t *testing.T) {
	assert.Equal(t, "2024-03-11", d("2024-03-10").NextWorkday().String())
	assert.Equal(t, "2024-03-08", d("2024-03-10").PrevWorkday().String())
	assert.Equal(t, "2024-03-06", d("2024-03-06").NextWorkday().String())
}
