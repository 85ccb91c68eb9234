// Package memory provides an in-memory accounting.Repository for tests and
// the demo server.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/billing-engine/accounting"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

var _ accounting.Repository = (*Memory)(nil)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table as a map plus an insertion-order slice, so list
// methods return rows in creation order.
type Memory struct {
	mu sync.RWMutex

	projects     map[generic.ProjectID]worklog.Project
	projectOrder []generic.ProjectID

	tasks     map[generic.TaskID]worklog.Task
	taskOrder []generic.TaskID

	entries    map[generic.EntryID]worklog.WorkEntry
	entryOrder []generic.EntryID

	invoices     map[generic.InvoiceID]billing.Invoice
	invoiceOrder []generic.InvoiceID
	reminders    map[generic.ReminderID]generic.InvoiceID

	configs map[generic.CompanyID]billing.CompanyConfig
}

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

// Reset drops every row.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

func (m *Memory) resetLocked() {
	m.projects = make(map[generic.ProjectID]worklog.Project)
	m.projectOrder = nil
	m.tasks = make(map[generic.TaskID]worklog.Task)
	m.taskOrder = nil
	m.entries = make(map[generic.EntryID]worklog.WorkEntry)
	m.entryOrder = nil
	m.invoices = make(map[generic.InvoiceID]billing.Invoice)
	m.invoiceOrder = nil
	m.reminders = make(map[generic.ReminderID]generic.InvoiceID)
	m.configs = make(map[generic.CompanyID]billing.CompanyConfig)
}

// =============================================================================
// PROJECTS & TASKS
// =============================================================================

func (m *Memory) CreateProject(_ context.Context, p worklog.Project) (worklog.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = generic.ProjectID(uuid.NewString())
	}
	if _, exists := m.projects[p.ID]; exists {
		return worklog.Project{}, fmt.Errorf("project %q already exists: %w", p.ID, generic.ErrInvalidInput)
	}
	m.projects[p.ID] = p
	m.projectOrder = append(m.projectOrder, p.ID)
	return p, nil
}

func (m *Memory) GetProject(_ context.Context, id generic.ProjectID) (worklog.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return worklog.Project{}, generic.NotFound("project", string(id))
	}
	return p, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]worklog.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]worklog.Project, 0, len(m.projectOrder))
	for _, id := range m.projectOrder {
		result = append(result, m.projects[id])
	}
	return result, nil
}

func (m *Memory) CreateTask(_ context.Context, t worklog.Task) (worklog.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[t.ProjectID]; !ok {
		return worklog.Task{}, generic.NotFound("project", string(t.ProjectID))
	}
	if t.ID == "" {
		t.ID = generic.TaskID(uuid.NewString())
	}
	if _, exists := m.tasks[t.ID]; exists {
		return worklog.Task{}, fmt.Errorf("task %q already exists: %w", t.ID, generic.ErrInvalidInput)
	}
	m.tasks[t.ID] = t
	m.taskOrder = append(m.taskOrder, t.ID)
	return t, nil
}

func (m *Memory) GetTask(_ context.Context, id generic.TaskID) (worklog.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return worklog.Task{}, generic.NotFound("task", string(id))
	}
	return t, nil
}

func (m *Memory) ListTasksByProject(_ context.Context, id generic.ProjectID) ([]worklog.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []worklog.Task
	for _, tid := range m.taskOrder {
		if t := m.tasks[tid]; t.ProjectID == id {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *Memory) UpdateTaskConsumed(_ context.Context, id generic.TaskID, consumed generic.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return generic.NotFound("task", string(id))
	}
	t.Consumed = consumed
	m.tasks[id] = t
	return nil
}

// =============================================================================
// WORK ENTRIES
// =============================================================================

func (m *Memory) CreateWorkEntry(_ context.Context, e worklog.WorkEntry) (worklog.WorkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[e.TaskID]; !ok {
		return worklog.WorkEntry{}, generic.NotFound("task", string(e.TaskID))
	}
	if e.ID == "" {
		e.ID = generic.EntryID(uuid.NewString())
	}
	if _, exists := m.entries[e.ID]; exists {
		return worklog.WorkEntry{}, fmt.Errorf("work entry %q already exists: %w", e.ID, generic.ErrInvalidInput)
	}
	m.entries[e.ID] = e
	m.entryOrder = append(m.entryOrder, e.ID)
	return e, nil
}

func (m *Memory) GetWorkEntry(_ context.Context, id generic.EntryID) (worklog.WorkEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return worklog.WorkEntry{}, generic.NotFound("work entry", string(id))
	}
	return e, nil
}

func (m *Memory) UpdateWorkEntry(_ context.Context, e worklog.WorkEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.entries[e.ID]
	if !ok {
		return generic.NotFound("work entry", string(e.ID))
	}
	stored.Date = e.Date
	stored.TimeOfDay = e.TimeOfDay
	stored.Hours = e.Hours
	stored.Notes = e.Notes
	m.entries[e.ID] = stored
	return nil
}

func (m *Memory) DeleteWorkEntry(_ context.Context, id generic.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return generic.NotFound("work entry", string(id))
	}
	delete(m.entries, id)
	for i, eid := range m.entryOrder {
		if eid == id {
			m.entryOrder = append(m.entryOrder[:i], m.entryOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ListWorkEntriesByTask(_ context.Context, id generic.TaskID) ([]worklog.WorkEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []worklog.WorkEntry
	for _, eid := range m.entryOrder {
		if e := m.entries[eid]; e.TaskID == id {
			result = append(result, e)
		}
	}
	return result, nil
}

// ListWorkEntriesByProject returns entries whose task belongs to the project.
func (m *Memory) ListWorkEntriesByProject(_ context.Context, id generic.ProjectID) ([]worklog.WorkEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []worklog.WorkEntry
	for _, eid := range m.entryOrder {
		e := m.entries[eid]
		if t, ok := m.tasks[e.TaskID]; ok && t.ProjectID == id {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoices validates the whole batch before writing any of it.
func (m *Memory) CreateInvoices(_ context.Context, invoices []billing.Invoice) ([]billing.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]billing.Invoice, len(invoices))
	seen := make(map[generic.InvoiceID]bool, len(invoices))
	for i, inv := range invoices {
		if inv.ID == "" {
			inv.ID = generic.InvoiceID(uuid.NewString())
		}
		if _, exists := m.invoices[inv.ID]; exists || seen[inv.ID] {
			return nil, fmt.Errorf("invoice %q already exists: %w", inv.ID, generic.ErrInvalidInput)
		}
		seen[inv.ID] = true

		reminders := make([]billing.Reminder, len(inv.Reminders))
		for j, r := range inv.Reminders {
			if r.ID == "" {
				r.ID = generic.ReminderID(uuid.NewString())
			}
			r.InvoiceID = inv.ID
			reminders[j] = r
		}
		inv.Reminders = reminders
		out[i] = inv
	}

	for _, inv := range out {
		m.invoices[inv.ID] = inv
		m.invoiceOrder = append(m.invoiceOrder, inv.ID)
		for _, r := range inv.Reminders {
			m.reminders[r.ID] = inv.ID
		}
	}
	return cloneInvoices(out), nil
}

func (m *Memory) GetInvoice(_ context.Context, id generic.InvoiceID) (billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return billing.Invoice{}, generic.NotFound("invoice", string(id))
	}
	return cloneInvoice(inv), nil
}

func (m *Memory) ListInvoicesByCompany(_ context.Context, id generic.CompanyID) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Invoice
	for _, iid := range m.invoiceOrder {
		if inv := m.invoices[iid]; inv.CompanyID == id {
			result = append(result, cloneInvoice(inv))
		}
	}
	return result, nil
}

func (m *Memory) UpdateInvoiceStatus(_ context.Context, id generic.InvoiceID, status billing.InvoiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return generic.NotFound("invoice", string(id))
	}
	inv.Status = status
	m.invoices[id] = inv
	return nil
}

func (m *Memory) CompleteReminder(_ context.Context, id generic.ReminderID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	invID, ok := m.reminders[id]
	if !ok {
		return generic.NotFound("reminder", string(id))
	}
	inv := cloneInvoice(m.invoices[invID])
	for i := range inv.Reminders {
		if inv.Reminders[i].ID == id {
			inv.Reminders[i].Completed = true
		}
	}
	m.invoices[invID] = inv
	return nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func (m *Memory) GetBillingConfig(_ context.Context, id generic.CompanyID) (billing.CompanyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[id]
	if !ok {
		return billing.CompanyConfig{CompanyID: id}, nil
	}
	return cfg, nil
}

func (m *Memory) SaveBillingConfig(_ context.Context, cfg billing.CompanyConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.CompanyID] = cfg
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// cloneInvoice copies the reminder slice so callers cannot mutate stored rows.
func cloneInvoice(inv billing.Invoice) billing.Invoice {
	inv.Reminders = append([]billing.Reminder(nil), inv.Reminders...)
	return inv
}

func cloneInvoices(in []billing.Invoice) []billing.Invoice {
	out := make([]billing.Invoice, len(in))
	for i, inv := range in {
		out[i] = cloneInvoice(inv)
	}
	return out
}
