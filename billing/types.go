/*
Package billing turns company billing configuration into calendar periods,
expands recurring invoice definitions, and resolves period status.

PURPOSE:
  Every function in this package is pure: inputs in, values out, no clock,
  no store, no logging. Callers fetch from the persistence collaborator,
  call in here, and persist the results themselves.

COMPONENTS:
  cycle.go:      BillingPeriodGenerator (Cycle -> []BillingPeriod)
  recurrence.go: RecurrenceEngine (one definition -> N invoices + reminders)
  status.go:     PeriodStatusResolver (invoice statuses -> aggregate status)

SEE ALSO:
  - accounting/service.go: Orchestrates fetch -> compute -> persist
  - factory/invoice.go: JSON definitions -> RecurrenceInput
*/
package billing

import (
	"time"

	"github.com/warp/billing-engine/generic"
)

// =============================================================================
// INVOICE
// =============================================================================

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoiceGenerated InvoiceStatus = "generated"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCanceled  InvoiceStatus = "canceled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoiceGenerated, InvoicePaid, InvoiceCanceled:
		return true
	}
	return false
}

// Invoice is one billable document. Occurrences of a recurring series are
// independent rows with no parent link.
type Invoice struct {
	ID        generic.InvoiceID
	CompanyID generic.CompanyID
	ProjectID generic.ProjectID
	TaskID    generic.TaskID
	UserID    generic.UserID

	Title   string
	Amount  generic.Amount
	DueDate generic.TimePoint
	Period  generic.Period
	Status  InvoiceStatus

	// HoursWorked is the hours snapshot at creation time.
	HoursWorked generic.Amount

	Reminders []Reminder
	CreatedAt time.Time
}

// =============================================================================
// REMINDER
// =============================================================================

// Reminder is a dated, completable note attached to one invoice occurrence.
type Reminder struct {
	ID        generic.ReminderID
	InvoiceID generic.InvoiceID
	Title     string
	Date      generic.TimePoint
	Completed bool
	// Implicit marks the "receive payment" reminder every occurrence gets.
	Implicit bool
}

const (
	// ReceivePaymentTitle titles the implicit reminder dated on the due date.
	ReceivePaymentTitle = "Receber pagamento"
	// DefaultReminderTitle is used when a template has no title.
	DefaultReminderTitle = "Lembrete"
)

// ReminderTemplate is a closed sum: RelativeReminder | FixedReminder.
type ReminderTemplate interface {
	// resolve returns the reminder date for an occurrence, or false when the
	// template cannot be resolved (the reminder is dropped).
	resolve(due generic.TimePoint, offset func(generic.TimePoint) generic.TimePoint) (generic.TimePoint, bool)
	title() string
}

// RelativeReminder fires DaysBefore days before each occurrence's due date.
type RelativeReminder struct {
	Title      string
	DaysBefore int
}

// FixedReminder is an absolute date given once; each occurrence re-projects
// it by the same offset as the due date.
type FixedReminder struct {
	Title string
	Date  string // YYYY-MM-DD, validated at expansion time
}

func (r RelativeReminder) resolve(due generic.TimePoint, _ func(generic.TimePoint) generic.TimePoint) (generic.TimePoint, bool) {
	return due.AddDays(-r.DaysBefore), true
}

func (r RelativeReminder) title() string { return r.Title }

func (r FixedReminder) resolve(_ generic.TimePoint, offset func(generic.TimePoint) generic.TimePoint) (generic.TimePoint, bool) {
	d, err := generic.ParseDate(r.Date)
	if err != nil {
		return generic.TimePoint{}, false
	}
	return offset(d), true
}

func (r FixedReminder) title() string { return r.Title }

// =============================================================================
// FREQUENCY
// =============================================================================

type Frequency string

const (
	FreqWeekly   Frequency = "weekly"
	FreqBiweekly Frequency = "biweekly"
	FreqMonthly  Frequency = "monthly"
	FreqYearly   Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FreqWeekly, FreqBiweekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

// Advance moves d forward by n periods of the frequency. Monthly and yearly
// steps clamp the day to the target month.
func (f Frequency) Advance(d generic.TimePoint, n int) generic.TimePoint {
	switch f {
	case FreqWeekly:
		return d.AddDays(7 * n)
	case FreqBiweekly:
		return d.AddDays(14 * n)
	case FreqMonthly:
		return d.AddMonths(n)
	case FreqYearly:
		return d.AddYears(n)
	default:
		return d
	}
}

// =============================================================================
// PERIOD STATUS
// =============================================================================

type PeriodStatus string

const (
	PeriodNoInvoices    PeriodStatus = "no_invoices"
	PeriodPaid          PeriodStatus = "paid"
	PeriodGenerated     PeriodStatus = "generated"
	PeriodPartiallyPaid PeriodStatus = "partially_paid"
	PeriodPending       PeriodStatus = "pending"
)
