// Package worklog models tasks, the work entries logged against them, and the
// hour ledger that derives each entry's balance.
package worklog

import (
	"fmt"
	"time"

	"github.com/warp/billing-engine/generic"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskInProgress || s == TaskDone
}

// Project groups tasks for one client company.
type Project struct {
	ID        generic.ProjectID
	CompanyID generic.CompanyID
	Name      string
	// StartDate anchors the schedule when the caller gives none.
	StartDate generic.TimePoint
	// HourlyRate prices tasks without a cost override.
	HourlyRate generic.Amount
	CreatedAt  time.Time
}

// Cost is the task's billable amount: the override when set, otherwise the
// estimate priced at rate. Unbounded tasks without an override cost nothing
// up front.
func (t Task) Cost(rate generic.Amount) generic.Amount {
	if t.CostOverride != nil {
		return *t.CostOverride
	}
	h, ok := t.Estimate.Hours()
	if !ok {
		return generic.Money(0)
	}
	return generic.NewAmountFromDecimal(h.Value.Mul(rate.Value), generic.UnitMoney)
}

// MaxEstimateHours is the largest bounded estimate a task accepts.
const MaxEstimateHours = 100000

// Task is a unit of billable work owned by a project.
type Task struct {
	ID        generic.TaskID
	ProjectID generic.ProjectID
	Title     string

	// Estimate is Unbounded for unscoped / ad-hoc tasks.
	Estimate generic.Budget
	// CostOverride replaces the computed cost when set.
	CostOverride *generic.Amount
	// Consumed is the accumulated hours, rewritten on every ledger recompute.
	Consumed generic.Amount
	Status   TaskStatus

	// Position orders tasks within the project schedule.
	Position int
	// Optional schedule pins, YYYY-MM-DD. Invalid values are ignored by the scheduler.
	StartOverride string
	EndOverride   string

	CreatedAt time.Time
}

// WorkEntry is one act of logging time against a task.
type WorkEntry struct {
	ID     generic.EntryID
	TaskID generic.TaskID
	UserID generic.UserID

	Date generic.TimePoint
	// TimeOfDay is "" or zero-padded "HH:MM".
	TimeOfDay string
	Hours     generic.Amount

	// EstimateSnapshot is the task estimate in force when the entry was created.
	// It is captured once and never recomputed.
	EstimateSnapshot generic.Budget

	Notes     string
	CreatedAt time.Time
}

// ValidateEstimate rejects negative estimates and estimates above
// MaxEstimateHours. Unbounded is always valid.
func ValidateEstimate(b generic.Budget) error {
	h, ok := b.Hours()
	if !ok {
		return nil
	}
	if h.IsNegative() || h.GreaterThan(generic.NewAmountFromInt(MaxEstimateHours, generic.UnitHours)) {
		return fmt.Errorf("estimate %s (allowed 0..%d hours): %w", h, MaxEstimateHours, generic.ErrInvalidInput)
	}
	return nil
}

// Validate checks the fields a caller must provide when logging work.
func (e WorkEntry) Validate() error {
	if e.TaskID == "" {
		return fmt.Errorf("task id is required: %w", generic.ErrInvalidInput)
	}
	if e.Date.IsZero() {
		return &generic.InvalidDateError{Field: "date"}
	}
	if !generic.ValidTimeOfDay(e.TimeOfDay) {
		return fmt.Errorf("time of day %q (use HH:MM): %w", e.TimeOfDay, generic.ErrInvalidInput)
	}
	if e.Hours.IsNegative() {
		return fmt.Errorf("hours %s: %w", e.Hours, generic.ErrInvalidInput)
	}
	return nil
}
