package billing

import (
	"fmt"

	"github.com/warp/billing-engine/generic"
)

// =============================================================================
// RECURRENCE ENGINE - One definition -> N independent invoices
// =============================================================================

// InvoiceDraft holds the fields shared by every occurrence of a series.
type InvoiceDraft struct {
	CompanyID generic.CompanyID
	ProjectID generic.ProjectID
	TaskID    generic.TaskID
	UserID    generic.UserID

	Title       string
	Amount      generic.Amount
	DueDate     generic.TimePoint
	Period      generic.Period // mandatory
	Status      InvoiceStatus  // defaults to pending
	HoursWorked generic.Amount
}

// RecurrenceInput describes a series. Count 1 (or a Frequency with Count < 2)
// yields a single invoice with no offsetting.
type RecurrenceInput struct {
	Base      InvoiceDraft
	Frequency Frequency
	Count     int
	Reminders []ReminderTemplate

	// ShiftPeriod moves each occurrence's period bounds by the same offset as
	// its due date. Off by default: every occurrence keeps the base period.
	ShiftPeriod bool
}

// Expansion is the result of Expand.
type Expansion struct {
	Invoices []Invoice
	// Dropped lists templates that could not be resolved (unparseable fixed
	// date). They are skipped on every occurrence; the series still succeeds.
	Dropped []ReminderTemplate
}

// Expand produces in.Count invoices. Occurrence i is due at the base due date
// advanced by i periods of the frequency; its reminders are resolved against
// that due date and it always ends with an implicit "receive payment"
// reminder dated on the due date.
//
// Hard failures: Count < 1, missing or inverted period bounds, missing due
// date, unknown frequency with Count > 1.
func Expand(in RecurrenceInput) (Expansion, error) {
	if in.Count < 1 {
		return Expansion{}, fmt.Errorf("count %d: %w", in.Count, generic.ErrInvalidOccurrenceCount)
	}
	if err := in.Base.Period.Validate(); err != nil {
		return Expansion{}, err
	}
	if in.Base.DueDate.IsZero() {
		return Expansion{}, &generic.InvalidDateError{Field: "due_date"}
	}
	if in.Count > 1 && !in.Frequency.Valid() {
		return Expansion{}, fmt.Errorf("frequency %q: %w", in.Frequency, generic.ErrInvalidFrequency)
	}

	status := in.Base.Status
	if status == "" {
		status = InvoicePending
	}
	amount := in.Base.Amount
	if amount.Unit == "" {
		amount.Unit = generic.UnitMoney
	}
	hours := in.Base.HoursWorked
	if hours.Unit == "" {
		hours.Unit = generic.UnitHours
	}

	var out Expansion
	for _, t := range in.Reminders {
		if _, ok := t.resolve(in.Base.DueDate, identity); !ok {
			out.Dropped = append(out.Dropped, t)
		}
	}

	out.Invoices = make([]Invoice, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		offset := occurrenceOffset(in.Frequency, in.Count, i)
		due := offset(in.Base.DueDate)

		period := in.Base.Period
		if in.ShiftPeriod {
			period = period.Shift(offset)
		}

		out.Invoices = append(out.Invoices, Invoice{
			CompanyID:   in.Base.CompanyID,
			ProjectID:   in.Base.ProjectID,
			TaskID:      in.Base.TaskID,
			UserID:      in.Base.UserID,
			Title:       OccurrenceTitle(in.Base.Title, i, in.Count),
			Amount:      amount,
			DueDate:     due,
			Period:      period,
			Status:      status,
			HoursWorked: hours,
			Reminders:   expandReminders(in.Reminders, due, offset),
		})
	}
	return out, nil
}

// OccurrenceTitle appends "(i+1/count)" for multi-occurrence series.
func OccurrenceTitle(title string, i, count int) string {
	if count <= 1 {
		return title
	}
	return fmt.Sprintf("%s (%d/%d)", title, i+1, count)
}

func identity(d generic.TimePoint) generic.TimePoint { return d }

func occurrenceOffset(f Frequency, count, i int) func(generic.TimePoint) generic.TimePoint {
	if count < 2 || i == 0 {
		return identity
	}
	return func(d generic.TimePoint) generic.TimePoint { return f.Advance(d, i) }
}

func expandReminders(templates []ReminderTemplate, due generic.TimePoint, offset func(generic.TimePoint) generic.TimePoint) []Reminder {
	reminders := make([]Reminder, 0, len(templates)+1)
	for _, t := range templates {
		date, ok := t.resolve(due, offset)
		if !ok {
			continue
		}
		title := t.title()
		if title == "" {
			title = DefaultReminderTitle
		}
		reminders = append(reminders, Reminder{Title: title, Date: date})
	}
	return append(reminders, Reminder{Title: ReceivePaymentTitle, Date: due, Implicit: true})
}
