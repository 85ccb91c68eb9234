package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
)

func baseDraft(due string) billing.InvoiceDraft {
	return billing.InvoiceDraft{
		CompanyID: "acme",
		ProjectID: "site",
		Title:     "Fatura",
		Amount:    generic.Money(1500),
		DueDate:   date(due),
		Period:    generic.Period{Start: date("2024-01-01"), End: date("2024-01-31")},
	}
}

func dueDates(invoices []billing.Invoice) []string {
	out := make([]string, len(invoices))
	for i, inv := range invoices {
		out[i] = inv.DueDate.String()
	}
	return out
}

func reminderDates(inv billing.Invoice) []string {
	out := make([]string, len(inv.Reminders))
	for i, r := range inv.Reminders {
		out[i] = r.Date.String()
	}
	return out
}

// =============================================================================
// SERIES SHAPE
// =============================================================================

func TestExpand_SingleOccurrence(t *testing.T) {
	// GIVEN: count=1 with a frequency set
	// THEN: One invoice, due date unchanged, no title suffix, frequency ignored

	out, err := billing.Expand(billing.RecurrenceInput{
		Base:      baseDraft("2024-01-15"),
		Frequency: billing.FreqMonthly,
		Count:     1,
	})
	require.NoError(t, err)
	require.Len(t, out.Invoices, 1)

	inv := out.Invoices[0]
	assert.Equal(t, "2024-01-15", inv.DueDate.String())
	assert.Equal(t, "Fatura", inv.Title)
	assert.Equal(t, billing.InvoicePending, inv.Status)
	assert.Equal(t, generic.UnitMoney, inv.Amount.Unit)
	require.Len(t, inv.Reminders, 1)
	assert.True(t, inv.Reminders[0].Implicit)
}

func TestExpand_MonthlySeries(t *testing.T) {
	out, err := billing.Expand(billing.RecurrenceInput{
		Base:      baseDraft("2024-01-15"),
		Frequency: billing.FreqMonthly,
		Count:     3,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-15", "2024-02-15", "2024-03-15"}, dueDates(out.Invoices))
	assert.Equal(t, "Fatura (1/3)", out.Invoices[0].Title)
	assert.Equal(t, "Fatura (3/3)", out.Invoices[2].Title)

	// Occurrences are independent: no shared reminder slices
	out.Invoices[0].Reminders[0].Title = "changed"
	assert.Equal(t, billing.ReceivePaymentTitle, out.Invoices[1].Reminders[0].Title)
}

func TestExpand_Frequencies(t *testing.T) {
	tests := []struct {
		freq billing.Frequency
		due  string
		want []string
	}{
		{billing.FreqWeekly, "2024-01-01", []string{"2024-01-01", "2024-01-08", "2024-01-15"}},
		{billing.FreqBiweekly, "2024-01-01", []string{"2024-01-01", "2024-01-15", "2024-01-29"}},
		{billing.FreqMonthly, "2024-01-31", []string{"2024-01-31", "2024-02-29", "2024-03-31"}},
		{billing.FreqYearly, "2024-02-29", []string{"2024-02-29", "2025-02-28", "2026-02-28"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			out, err := billing.Expand(billing.RecurrenceInput{
				Base:      baseDraft(tt.due),
				Frequency: tt.freq,
				Count:     3,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, dueDates(out.Invoices))
		})
	}
}

func TestExpand_DueDatesStrictlyIncrease(t *testing.T) {
	freqs := []billing.Frequency{billing.FreqWeekly, billing.FreqBiweekly, billing.FreqMonthly, billing.FreqYearly}
	dues := []string{"2024-01-29", "2024-01-30", "2024-01-31", "2024-02-29", "2023-12-31"}

	for _, f := range freqs {
		for _, due := range dues {
			out, err := billing.Expand(billing.RecurrenceInput{Base: baseDraft(due), Frequency: f, Count: 24})
			require.NoError(t, err)
			for i := 1; i < len(out.Invoices); i++ {
				require.True(t, out.Invoices[i].DueDate.After(out.Invoices[i-1].DueDate),
					"%s from %s: occurrence %d not after %d", f, due, i, i-1)
			}
		}
	}
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestExpand_RelativeReminder_FollowsEachDueDate(t *testing.T) {
	out, err := billing.Expand(billing.RecurrenceInput{
		Base:      baseDraft("2024-01-15"),
		Frequency: billing.FreqMonthly,
		Count:     2,
		Reminders: []billing.ReminderTemplate{
			billing.RelativeReminder{Title: "Enviar NF", DaysBefore: 3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-12", "2024-01-15"}, reminderDates(out.Invoices[0]))
	assert.Equal(t, []string{"2024-02-12", "2024-02-15"}, reminderDates(out.Invoices[1]))
	assert.Equal(t, "Enviar NF", out.Invoices[1].Reminders[0].Title)
}

func TestExpand_FixedReminder_RepeatsInLockstep(t *testing.T) {
	// GIVEN: A fixed reminder on Jan 10 for a monthly series
	// THEN: Occurrence 2 gets Feb 10, not Jan 10 again

	out, err := billing.Expand(billing.RecurrenceInput{
		Base:      baseDraft("2024-01-15"),
		Frequency: billing.FreqMonthly,
		Count:     2,
		Reminders: []billing.ReminderTemplate{
			billing.FixedReminder{Title: "Conferir horas", Date: "2024-01-10"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-10", "2024-01-15"}, reminderDates(out.Invoices[0]))
	assert.Equal(t, []string{"2024-02-10", "2024-02-15"}, reminderDates(out.Invoices[1]))
}

func TestExpand_InvalidFixedReminder_DroppedAlone(t *testing.T) {
	bad := billing.FixedReminder{Title: "Broken", Date: "2024-02-30"}
	out, err := billing.Expand(billing.RecurrenceInput{
		Base:  baseDraft("2024-03-15"),
		Count: 1,
		Reminders: []billing.ReminderTemplate{
			bad,
			billing.RelativeReminder{DaysBefore: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Invoices, 1)

	reminders := out.Invoices[0].Reminders
	require.Len(t, reminders, 2)
	assert.Equal(t, billing.DefaultReminderTitle, reminders[0].Title)
	assert.Equal(t, "2024-03-14", reminders[0].Date.String())
	assert.Equal(t, billing.ReceivePaymentTitle, reminders[1].Title)
	assert.Equal(t, []billing.ReminderTemplate{bad}, out.Dropped)
}

func TestExpand_ImplicitReminderAlwaysLast(t *testing.T) {
	templates := []billing.ReminderTemplate{
		billing.RelativeReminder{Title: "a", DaysBefore: 5},
		billing.RelativeReminder{Title: "b", DaysBefore: 2},
		billing.FixedReminder{Title: "c", Date: "2024-01-01"},
	}
	out, err := billing.Expand(billing.RecurrenceInput{Base: baseDraft("2024-01-15"), Count: 1, Reminders: templates})
	require.NoError(t, err)

	reminders := out.Invoices[0].Reminders
	require.Len(t, reminders, 4)
	last := reminders[3]
	assert.True(t, last.Implicit)
	assert.Equal(t, billing.ReceivePaymentTitle, last.Title)
	assert.Equal(t, "2024-01-15", last.Date.String())
}

// =============================================================================
// PERIODS
// =============================================================================

func TestExpand_PeriodKeptUnlessShifted(t *testing.T) {
	in := billing.RecurrenceInput{Base: baseDraft("2024-02-05"), Frequency: billing.FreqMonthly, Count: 2}

	out, err := billing.Expand(in)
	require.NoError(t, err)
	assert.Equal(t, out.Invoices[0].Period, out.Invoices[1].Period)

	in.ShiftPeriod = true
	out, err = billing.Expand(in)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", out.Invoices[1].Period.Start.String())
	assert.Equal(t, "2024-02-29", out.Invoices[1].Period.End.String())
}

// =============================================================================
// FAILURES
// =============================================================================

func TestExpand_HardFailures(t *testing.T) {
	t.Run("count below one", func(t *testing.T) {
		_, err := billing.Expand(billing.RecurrenceInput{Base: baseDraft("2024-01-15"), Count: 0})
		assert.ErrorIs(t, err, generic.ErrInvalidOccurrenceCount)
	})

	t.Run("missing period", func(t *testing.T) {
		draft := baseDraft("2024-01-15")
		draft.Period = generic.Period{}
		_, err := billing.Expand(billing.RecurrenceInput{Base: draft, Count: 1})
		assert.ErrorIs(t, err, generic.ErrMissingPeriod)
	})

	t.Run("inverted period", func(t *testing.T) {
		draft := baseDraft("2024-01-15")
		draft.Period = generic.Period{Start: date("2024-02-01"), End: date("2024-01-01")}
		_, err := billing.Expand(billing.RecurrenceInput{Base: draft, Count: 1})
		assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
	})

	t.Run("missing due date", func(t *testing.T) {
		draft := baseDraft("2024-01-15")
		draft.DueDate = generic.TimePoint{}
		_, err := billing.Expand(billing.RecurrenceInput{Base: draft, Count: 1})
		assert.ErrorIs(t, err, generic.ErrInvalidDate)
	})

	t.Run("series without frequency", func(t *testing.T) {
		_, err := billing.Expand(billing.RecurrenceInput{Base: baseDraft("2024-01-15"), Count: 2})
		assert.ErrorIs(t, err, generic.ErrInvalidFrequency)
	})
}
