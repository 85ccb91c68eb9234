/*
repository.go - Persistence collaborator for the billing core

PURPOSE:
  The pure components in billing/, worklog/ and planning/ never touch
  storage. The accounting Service fetches their inputs through this
  interface and persists their outputs through it.

KEY INTERFACES:
  ProjectStore:   Projects and tasks (tasks carry accumulated hours)
  WorkEntryStore: Work entries, readable per task or per project
  InvoiceStore:   Invoices with their reminders, written atomically
  ConfigStore:    Per-company billing configuration
  Repository:     All of the above

CONTRACT:
  - Missing rows return an error wrapping generic.ErrNotFound.
  - A company with no stored configuration returns the zero CompanyConfig
    (defaults apply downstream), not an error.
  - Records created with an empty ID get a generated uuid.
  - List methods return rows in a stable order (creation order) but callers
    must not rely on it for ledger ordering; worklog sorts for itself.

IMPLEMENTATIONS:
  - store/memory:   In-memory, for tests and the demo server
  - store/sqlite:   Embedded database (mattn/go-sqlite3)
  - store/postgres: PostgreSQL via pgx connection pool

SEE ALSO:
  - service.go: The only consumer
*/
package accounting

import (
	"context"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

// ProjectStore persists projects and their tasks.
type ProjectStore interface {
	CreateProject(ctx context.Context, p worklog.Project) (worklog.Project, error)
	GetProject(ctx context.Context, id generic.ProjectID) (worklog.Project, error)
	ListProjects(ctx context.Context) ([]worklog.Project, error)

	CreateTask(ctx context.Context, t worklog.Task) (worklog.Task, error)
	GetTask(ctx context.Context, id generic.TaskID) (worklog.Task, error)
	ListTasksByProject(ctx context.Context, id generic.ProjectID) ([]worklog.Task, error)
	// UpdateTaskConsumed overwrites the task's accumulated hours.
	UpdateTaskConsumed(ctx context.Context, id generic.TaskID, consumed generic.Amount) error
}

// WorkEntryStore persists work entries.
type WorkEntryStore interface {
	CreateWorkEntry(ctx context.Context, e worklog.WorkEntry) (worklog.WorkEntry, error)
	GetWorkEntry(ctx context.Context, id generic.EntryID) (worklog.WorkEntry, error)
	// UpdateWorkEntry rewrites date, time of day, hours and notes. The
	// estimate snapshot and creation time are never changed.
	UpdateWorkEntry(ctx context.Context, e worklog.WorkEntry) error
	DeleteWorkEntry(ctx context.Context, id generic.EntryID) error
	ListWorkEntriesByTask(ctx context.Context, id generic.TaskID) ([]worklog.WorkEntry, error)
	ListWorkEntriesByProject(ctx context.Context, id generic.ProjectID) ([]worklog.WorkEntry, error)
}

// InvoiceStore persists invoices and reminders.
type InvoiceStore interface {
	// CreateInvoices writes every invoice and its reminders, all or nothing,
	// and returns them with identifiers assigned.
	CreateInvoices(ctx context.Context, invoices []billing.Invoice) ([]billing.Invoice, error)
	GetInvoice(ctx context.Context, id generic.InvoiceID) (billing.Invoice, error)
	ListInvoicesByCompany(ctx context.Context, id generic.CompanyID) ([]billing.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id generic.InvoiceID, status billing.InvoiceStatus) error
	CompleteReminder(ctx context.Context, id generic.ReminderID) error
}

// ConfigStore persists company billing configuration.
type ConfigStore interface {
	GetBillingConfig(ctx context.Context, id generic.CompanyID) (billing.CompanyConfig, error)
	SaveBillingConfig(ctx context.Context, cfg billing.CompanyConfig) error
}

// Repository is the full persistence collaborator.
type Repository interface {
	ProjectStore
	WorkEntryStore
	InvoiceStore
	ConfigStore
}
