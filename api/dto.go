/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMATS:
  - Dates are "YYYY-MM-DD"; times of day are "HH:MM"
  - Hours and money are decimals (shopspring/decimal JSON), money in the
    major currency unit
  - An unbounded budget is null with "unbounded": true, never a huge number

TYPES:
  Periods:   PeriodDTO, PeriodSummaryDTO, OverviewDTO, BillingConfigDTO
  Invoices:  InvoiceDTO, ReminderDTO, CreateInvoicesResponse, InvoiceStatusRequest
  Projects:  ProjectDTO, CreateProjectRequest
  Tasks:     TaskDTO, CreateTaskRequest
  Entries:   WorkEntryDTO, WorkEntryRequest
  Ledger:    LedgerRowDTO, TaskLedgerDTO
  Schedule:  ScheduleItemDTO, ScheduleDTO
  Scenarios: ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and the service, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/invoice.go: RecurrenceJSON, the invoice creation body
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/accounting"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/planning"
	"github.com/warp/billing-engine/worklog"
)

// =============================================================================
// PERIODS
// =============================================================================

// PeriodDTO is one billing period.
type PeriodDTO struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// PeriodSummaryDTO is a period with its resolved invoice status.
type PeriodSummaryDTO struct {
	PeriodDTO
	Status   string          `json:"status"`
	Invoices int             `json:"invoices"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
	Current  bool            `json:"current"`
}

// OverviewDTO is the period overview of one company.
type OverviewDTO struct {
	CompanyID string             `json:"company_id"`
	Current   *PeriodDTO         `json:"current,omitempty"`
	Periods   []PeriodSummaryDTO `json:"periods"`
}

// BillingConfigDTO wraps the stored configuration of one company.
type BillingConfigDTO struct {
	CompanyID string                    `json:"company_id"`
	Config    factory.CompanyConfigJSON `json:"config"`
}

// =============================================================================
// INVOICES
// =============================================================================

// ReminderDTO is one reminder of an invoice.
type ReminderDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Implicit  bool   `json:"implicit"`
}

// InvoiceDTO is one invoice occurrence.
type InvoiceDTO struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	ProjectID   string          `json:"project_id,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	PeriodKey   string          `json:"period"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Status      string          `json:"status"`
	HoursWorked decimal.Decimal `json:"hours_worked"`
	Reminders   []ReminderDTO   `json:"reminders"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// CreateInvoicesResponse lists the stored occurrences and any reminder
// templates that could not be resolved.
type CreateInvoicesResponse struct {
	Invoices []InvoiceDTO           `json:"invoices"`
	Dropped  []factory.ReminderJSON `json:"dropped,omitempty"`
}

// InvoiceStatusRequest changes an invoice's status.
type InvoiceStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// PROJECTS & TASKS
// =============================================================================

// ProjectDTO represents a project in API responses.
type ProjectDTO struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"company_id"`
	Name       string          `json:"name"`
	StartDate  string          `json:"start_date,omitempty"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	CreatedAt  string          `json:"created_at,omitempty"`
}

// CreateProjectRequest is the request to create a project.
type CreateProjectRequest struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"company_id"`
	Name       string          `json:"name"`
	StartDate  string          `json:"start_date"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
}

// TaskDTO is a task with its current ledger position.
type TaskDTO struct {
	ID            string           `json:"id"`
	ProjectID     string           `json:"project_id"`
	Title         string           `json:"title"`
	Estimate      *decimal.Decimal `json:"estimate"`
	Unbounded     bool             `json:"unbounded"`
	Cost          decimal.Decimal  `json:"cost"`
	CostOverride  *decimal.Decimal `json:"cost_override,omitempty"`
	Consumed      decimal.Decimal  `json:"consumed"`
	Remaining     *decimal.Decimal `json:"remaining"`
	OverBudget    bool             `json:"over_budget"`
	Entries       int              `json:"entries"`
	LastWorked    string           `json:"last_worked,omitempty"`
	Status        string           `json:"status"`
	Position      int              `json:"position"`
	StartOverride string           `json:"start_override,omitempty"`
	EndOverride   string           `json:"end_override,omitempty"`
	CreatedAt     string           `json:"created_at,omitempty"`
}

// CreateTaskRequest creates a task. A missing estimate means unbounded.
type CreateTaskRequest struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Estimate      *decimal.Decimal `json:"estimate"`
	CostOverride  *decimal.Decimal `json:"cost_override"`
	Status        string           `json:"status"`
	Position      int              `json:"position"`
	StartOverride string           `json:"start_override"`
	EndOverride   string           `json:"end_override"`
}

// =============================================================================
// WORK ENTRIES & LEDGER
// =============================================================================

// WorkEntryDTO represents a stored work entry.
type WorkEntryDTO struct {
	ID               string           `json:"id"`
	TaskID           string           `json:"task_id"`
	UserID           string           `json:"user_id,omitempty"`
	Date             string           `json:"date"`
	TimeOfDay        string           `json:"time_of_day,omitempty"`
	Hours            decimal.Decimal  `json:"hours"`
	EstimateSnapshot *decimal.Decimal `json:"estimate_snapshot"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        string           `json:"created_at,omitempty"`
}

// WorkEntryRequest logs or edits a work entry.
type WorkEntryRequest struct {
	UserID    string          `json:"user_id"`
	Date      string          `json:"date"`
	TimeOfDay string          `json:"time_of_day"`
	Hours     decimal.Decimal `json:"hours"`
	Notes     string          `json:"notes"`
}

// LedgerRowDTO is one ledger row: hours available before the entry, hours
// used by it and the balance after.
type LedgerRowDTO struct {
	EntryID   string           `json:"entry_id"`
	Date      string           `json:"date"`
	TimeOfDay string           `json:"time_of_day,omitempty"`
	Available *decimal.Decimal `json:"available"`
	Used      decimal.Decimal  `json:"used"`
	Remaining *decimal.Decimal `json:"remaining"`
	Unbounded bool             `json:"unbounded"`
}

// TaskLedgerDTO is a task with its ledger rows in ledger order.
type TaskLedgerDTO struct {
	Task TaskDTO        `json:"task"`
	Rows []LedgerRowDTO `json:"rows"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

type ScheduleItemDTO struct {
	TaskID     string   `json:"task_id"`
	Title      string   `json:"title"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Days       int      `json:"days"`
	Overridden bool     `json:"overridden,omitempty"`
	Missing    bool     `json:"missing,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

type ScheduleDTO struct {
	ProjectID string            `json:"project_id"`
	Capacity  decimal.Decimal   `json:"capacity"`
	End       string            `json:"end,omitempty"`
	Items     []ScheduleItemDTO `json:"items"`
}

// RecomputeResponse reports how many tasks were rewritten.
type RecomputeResponse struct {
	Tasks int `json:"tasks"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPeriodDTO(p billing.BillingPeriod) PeriodDTO {
	return PeriodDTO{Key: p.Key, Label: p.Label, Start: p.Start.String(), End: p.End.String()}
}

func toOverviewDTO(o accounting.Overview) OverviewDTO {
	dto := OverviewDTO{CompanyID: string(o.CompanyID), Periods: make([]PeriodSummaryDTO, len(o.Periods))}
	if o.Current != nil {
		cur := toPeriodDTO(*o.Current)
		dto.Current = &cur
	}
	for i, s := range o.Periods {
		dto.Periods[i] = PeriodSummaryDTO{
			PeriodDTO: toPeriodDTO(s.Period),
			Status:    string(s.Status),
			Invoices:  s.Invoices,
			Total:     s.Total.Value,
			Paid:      s.Paid.Value,
			Current:   s.Current,
		}
	}
	return dto
}

func toInvoiceDTO(inv billing.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:          string(inv.ID),
		CompanyID:   string(inv.CompanyID),
		ProjectID:   string(inv.ProjectID),
		TaskID:      string(inv.TaskID),
		UserID:      string(inv.UserID),
		Title:       inv.Title,
		Amount:      inv.Amount.Value,
		DueDate:     inv.DueDate.String(),
		PeriodKey:   billing.PeriodKey(inv.Period),
		PeriodStart: inv.Period.Start.String(),
		PeriodEnd:   inv.Period.End.String(),
		Status:      string(inv.Status),
		HoursWorked: inv.HoursWorked.Value,
		Reminders:   make([]ReminderDTO, len(inv.Reminders)),
	}
	if !inv.CreatedAt.IsZero() {
		dto.CreatedAt = inv.CreatedAt.Format(time.RFC3339)
	}
	for i, r := range inv.Reminders {
		dto.Reminders[i] = ReminderDTO{
			ID:        string(r.ID),
			Title:     r.Title,
			Date:      r.Date.String(),
			Completed: r.Completed,
			Implicit:  r.Implicit,
		}
	}
	return dto
}

func toInvoiceDTOs(invoices []billing.Invoice) []InvoiceDTO {
	out := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		out[i] = toInvoiceDTO(inv)
	}
	return out
}

func toProjectDTO(p worklog.Project) ProjectDTO {
	dto := ProjectDTO{
		ID:         string(p.ID),
		CompanyID:  string(p.CompanyID),
		Name:       p.Name,
		StartDate:  p.StartDate.String(),
		HourlyRate: p.HourlyRate.Value,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// budgetPtr is nil for an unbounded budget.
func budgetPtr(b generic.Budget) *decimal.Decimal {
	h, ok := b.Hours()
	if !ok {
		return nil
	}
	v := h.Value
	return &v
}

func toTaskDTO(t worklog.Task, s worklog.TaskSummary, rate generic.Amount) TaskDTO {
	dto := TaskDTO{
		ID:            string(t.ID),
		ProjectID:     string(t.ProjectID),
		Title:         t.Title,
		Estimate:      budgetPtr(t.Estimate),
		Unbounded:     t.Estimate.IsUnbounded(),
		Cost:          t.Cost(rate).Value,
		Consumed:      s.Consumed.Value,
		Remaining:     budgetPtr(s.Remaining),
		OverBudget:    s.OverBudget,
		Entries:       s.Entries,
		LastWorked:    s.LastWorked.String(),
		Status:        string(t.Status),
		Position:      t.Position,
		StartOverride: t.StartOverride,
		EndOverride:   t.EndOverride,
	}
	if t.CostOverride != nil {
		v := t.CostOverride.Value
		dto.CostOverride = &v
	}
	if !t.CreatedAt.IsZero() {
		dto.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toWorkEntryDTO(e worklog.WorkEntry) WorkEntryDTO {
	dto := WorkEntryDTO{
		ID:               string(e.ID),
		TaskID:           string(e.TaskID),
		UserID:           string(e.UserID),
		Date:             e.Date.String(),
		TimeOfDay:        e.TimeOfDay,
		Hours:            e.Hours.Value,
		EstimateSnapshot: budgetPtr(e.EstimateSnapshot),
		Notes:            e.Notes,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toLedgerRowDTO(r worklog.EntryBalance) LedgerRowDTO {
	return LedgerRowDTO{
		EntryID:   string(r.EntryID),
		Date:      r.Date.String(),
		TimeOfDay: r.TimeOfDay,
		Available: budgetPtr(r.Available),
		Used:      r.Used.Value,
		Remaining: budgetPtr(r.Remaining),
		Unbounded: r.Available.IsUnbounded(),
	}
}

func toScheduleDTO(projectID generic.ProjectID, res planning.Result) ScheduleDTO {
	dto := ScheduleDTO{
		ProjectID: string(projectID),
		Capacity:  res.Capacity.Value,
		End:       res.End.String(),
		Items:     make([]ScheduleItemDTO, len(res.Items)),
	}
	for i, it := range res.Items {
		dto.Items[i] = ScheduleItemDTO{
			TaskID:     string(it.TaskID),
			Title:      it.Title,
			Start:      it.Start.String(),
			End:        it.End.String(),
			Days:       it.Days,
			Overridden: it.Overridden,
			Missing:    it.Missing,
			Warnings:   it.Warnings,
		}
	}
	return dto
}
