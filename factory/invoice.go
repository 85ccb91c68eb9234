/*
Package factory converts JSON definitions into typed billing inputs.

PURPOSE:
  Invoice definitions arrive from the HTTP API and from demo scenarios as
  loosely typed JSON. The factory turns them into billing.RecurrenceInput,
  resolving the reminder DTOs into the closed RelativeReminder |
  FixedReminder variants so the recurrence engine never checks which
  optional field happens to be present.

JSON SCHEMA (invoice definition):
  {
    "company_id": "acme",
    "project_id": "site-redesign",
    "title": "Fatura mensal",
    "amount": "1500.00",
    "due_date": "2024-01-15",
    "period_start": "2024-01-01",      // or "period": "2024-01-01_2024-01-31"
    "period_end": "2024-01-31",
    "hours_worked": 42,
    "frequency": "monthly",            // weekly, biweekly, monthly, yearly
    "count": 3,                        // omitted means 1
    "shift_period": false,
    "reminders": [
      {"title": "Enviar NF", "days_before": 3},
      {"title": "Conferir horas", "date": "2024-01-10"}
    ]
  }

  A reminder must carry exactly one of days_before or date.

JSON SCHEMA (company billing configuration):
  {"start_day": 26, "end_day": 25, "daily_capacity": 8}

USAGE:
  f := factory.NewInvoiceFactory()
  in, err := f.ParseRecurrence(jsonStr)
  expansion, err := billing.Expand(in)

SEE ALSO:
  - billing/recurrence.go: Expand
  - api/scenarios.go: Demo definitions built with ToJSON
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RecurrenceJSON is the JSON representation of an invoice definition.
type RecurrenceJSON struct {
	CompanyID string `json:"company_id"`
	ProjectID string `json:"project_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`

	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	PeriodKey   string          `json:"period,omitempty"`
	PeriodStart string          `json:"period_start,omitempty"`
	PeriodEnd   string          `json:"period_end,omitempty"`
	Status      string          `json:"status,omitempty"`
	HoursWorked decimal.Decimal `json:"hours_worked"`

	Frequency   string         `json:"frequency,omitempty"`
	Count       *int           `json:"count,omitempty"`
	ShiftPeriod bool           `json:"shift_period,omitempty"`
	Reminders   []ReminderJSON `json:"reminders,omitempty"`
}

// ReminderJSON is the loosely typed reminder DTO.
type ReminderJSON struct {
	Title      string `json:"title,omitempty"`
	DaysBefore *int   `json:"days_before,omitempty"`
	Date       string `json:"date,omitempty"`
}

// CompanyConfigJSON is the JSON representation of a company's billing configuration.
type CompanyConfigJSON struct {
	StartDay      int             `json:"start_day"`
	EndDay        int             `json:"end_day"`
	DailyCapacity decimal.Decimal `json:"daily_capacity"`
}

// =============================================================================
// INVOICE FACTORY
// =============================================================================

// InvoiceFactory converts JSON definitions to billing inputs.
type InvoiceFactory struct{}

func NewInvoiceFactory() *InvoiceFactory {
	return &InvoiceFactory{}
}

// ParseRecurrence parses a JSON string into a RecurrenceInput.
func (f *InvoiceFactory) ParseRecurrence(jsonStr string) (billing.RecurrenceInput, error) {
	var rj RecurrenceJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return billing.RecurrenceInput{}, fmt.Errorf("failed to parse invoice JSON: %w: %v", generic.ErrInvalidInput, err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RecurrenceJSON to a RecurrenceInput. Only the shape is
// checked here; count, period and frequency rules are enforced by billing.Expand.
func (f *InvoiceFactory) FromJSON(rj RecurrenceJSON) (billing.RecurrenceInput, error) {
	due, err := optionalDate(rj.DueDate, "due_date")
	if err != nil {
		return billing.RecurrenceInput{}, err
	}

	period, err := parsePeriod(rj)
	if err != nil {
		return billing.RecurrenceInput{}, err
	}

	status := billing.InvoiceStatus(rj.Status)
	if status != "" && !status.Valid() {
		return billing.RecurrenceInput{}, fmt.Errorf("status %q: %w", rj.Status, generic.ErrInvalidInput)
	}

	count := 1
	if rj.Count != nil {
		count = *rj.Count
	}

	reminders := make([]billing.ReminderTemplate, 0, len(rj.Reminders))
	for i, r := range rj.Reminders {
		t, err := ReminderFromJSON(r)
		if err != nil {
			return billing.RecurrenceInput{}, fmt.Errorf("reminders[%d]: %w", i, err)
		}
		reminders = append(reminders, t)
	}

	return billing.RecurrenceInput{
		Base: billing.InvoiceDraft{
			CompanyID:   generic.CompanyID(rj.CompanyID),
			ProjectID:   generic.ProjectID(rj.ProjectID),
			TaskID:      generic.TaskID(rj.TaskID),
			UserID:      generic.UserID(rj.UserID),
			Title:       rj.Title,
			Amount:      generic.NewAmountFromDecimal(rj.Amount, generic.UnitMoney),
			DueDate:     due,
			Period:      period,
			Status:      status,
			HoursWorked: generic.NewAmountFromDecimal(rj.HoursWorked, generic.UnitHours),
		},
		Frequency:   billing.Frequency(rj.Frequency),
		Count:       count,
		Reminders:   reminders,
		ShiftPeriod: rj.ShiftPeriod,
	}, nil
}

// ToJSON converts a RecurrenceInput back to its JSON representation.
func (f *InvoiceFactory) ToJSON(in billing.RecurrenceInput) RecurrenceJSON {
	count := in.Count
	rj := RecurrenceJSON{
		CompanyID:   string(in.Base.CompanyID),
		ProjectID:   string(in.Base.ProjectID),
		TaskID:      string(in.Base.TaskID),
		UserID:      string(in.Base.UserID),
		Title:       in.Base.Title,
		Amount:      in.Base.Amount.Value,
		DueDate:     in.Base.DueDate.String(),
		PeriodStart: in.Base.Period.Start.String(),
		PeriodEnd:   in.Base.Period.End.String(),
		Status:      string(in.Base.Status),
		HoursWorked: in.Base.HoursWorked.Value,
		Frequency:   string(in.Frequency),
		Count:       &count,
		ShiftPeriod: in.ShiftPeriod,
	}
	for _, t := range in.Reminders {
		rj.Reminders = append(rj.Reminders, ReminderToJSON(t))
	}
	return rj
}

// =============================================================================
// REMINDERS - DTO <-> tagged variant
// =============================================================================

// ReminderFromJSON resolves the DTO into exactly one template variant. The
// fixed date is not parsed here: an unparseable date drops only that
// reminder at expansion time.
func ReminderFromJSON(r ReminderJSON) (billing.ReminderTemplate, error) {
	switch {
	case r.DaysBefore != nil && r.Date != "":
		return nil, fmt.Errorf("reminder %q has both days_before and date: %w", r.Title, generic.ErrInvalidInput)
	case r.DaysBefore != nil:
		return billing.RelativeReminder{Title: r.Title, DaysBefore: *r.DaysBefore}, nil
	case r.Date != "":
		return billing.FixedReminder{Title: r.Title, Date: r.Date}, nil
	default:
		return nil, fmt.Errorf("reminder %q needs days_before or date: %w", r.Title, generic.ErrInvalidInput)
	}
}

func ReminderToJSON(t billing.ReminderTemplate) ReminderJSON {
	switch r := t.(type) {
	case billing.RelativeReminder:
		days := r.DaysBefore
		return ReminderJSON{Title: r.Title, DaysBefore: &days}
	case billing.FixedReminder:
		return ReminderJSON{Title: r.Title, Date: r.Date}
	default:
		return ReminderJSON{}
	}
}

// =============================================================================
// COMPANY CONFIGURATION
// =============================================================================

// ParseCompanyConfig parses a JSON configuration. Out-of-range days are kept
// as given; billing.Cycle.Resolve applies the defaults when periods are built.
func ParseCompanyConfig(companyID generic.CompanyID, jsonStr string) (billing.CompanyConfig, error) {
	var cj CompanyConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return billing.CompanyConfig{}, fmt.Errorf("failed to parse billing config JSON: %w: %v", generic.ErrInvalidInput, err)
	}
	return CompanyConfigFromJSON(companyID, cj), nil
}

func CompanyConfigFromJSON(companyID generic.CompanyID, cj CompanyConfigJSON) billing.CompanyConfig {
	return billing.CompanyConfig{
		CompanyID:     companyID,
		Cycle:         billing.Cycle{StartDay: cj.StartDay, EndDay: cj.EndDay},
		DailyCapacity: generic.NewAmountFromDecimal(cj.DailyCapacity, generic.UnitHours),
	}
}

func CompanyConfigToJSON(c billing.CompanyConfig) CompanyConfigJSON {
	return CompanyConfigJSON{
		StartDay:      c.Cycle.StartDay,
		EndDay:        c.Cycle.EndDay,
		DailyCapacity: c.DailyCapacity.Value,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// optionalDate parses s, returning the zero TimePoint for an empty string.
func optionalDate(s, field string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, generic.WithField(err, field)
	}
	return tp, nil
}

// parsePeriod accepts either a period key or explicit bounds. Missing bounds
// stay zero so that Expand reports ErrMissingPeriod.
func parsePeriod(rj RecurrenceJSON) (generic.Period, error) {
	if rj.PeriodKey != "" {
		bp, err := billing.ParsePeriodKey(rj.PeriodKey)
		if err != nil {
			return generic.Period{}, err
		}
		return bp.Period, nil
	}

	start, err := optionalDate(rj.PeriodStart, "period_start")
	if err != nil {
		return generic.Period{}, err
	}
	end, err := optionalDate(rj.PeriodEnd, "period_end")
	if err != nil {
		return generic.Period{}, err
	}
	return generic.Period{Start: start, End: end}, nil
}
