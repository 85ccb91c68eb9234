/*
Package sqlite provides a SQLite-backed implementation of accounting.Repository.

PURPOSE:
  Persists projects, tasks, work entries, invoices with their reminders and
  per-company billing configuration. The pure components never see this
  package; the accounting Service is the only caller.

KEY TABLES:
  projects:        Client projects with hourly rate and schedule anchor
  tasks:           Tasks with estimate, accumulated hours and schedule pins
  work_entries:    One row per act of logging time, with the estimate snapshot
  invoices:        Independent invoice rows (recurring series have no parent)
  reminders:       Dated notes owned by one invoice (cascade on delete)
  billing_configs: Cycle days and daily capacity per company

ENCODING:
  - Decimals are TEXT (shopspring/decimal String form), never REAL
  - Calendar dates are ISO TEXT (YYYY-MM-DD), so they sort lexicographically
  - created_at is RFC3339Nano UTC; list order is rowid (insertion) order
  - An unbounded estimate is a NULL estimate column, never a sentinel number

WORK ENTRY SNAPSHOTS:
  estimate_snapshot is written by CreateWorkEntry only. UpdateWorkEntry
  touches date, time_of_day, hours and notes; the snapshot and created_at
  survive every edit.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, plus a single open connection so an
  in-memory database is shared by every statement.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/billing.db", logger)
  if err != nil {
      return err
  }
  defer store.Close()

  svc := accounting.NewService(store, logger, accounting.Options{})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - accounting/repository.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - store/postgres: Same schema on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/billing-engine/accounting"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

var _ accounting.Repository = (*Store)(nil)

// Store implements accounting.Repository using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *zap.Logger
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, log: log}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("Database connection established", zap.String("driver", "sqlite"), zap.String("path", dbPath))
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT,
		hourly_rate TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_company
		ON projects(company_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		estimate TEXT,
		cost_override TEXT,
		consumed TEXT NOT NULL,
		status TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		start_override TEXT,
		end_override TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project
		ON tasks(project_id);

	-- Ledger reads sort in Go; this index only serves per-task lookups
	CREATE TABLE IF NOT EXISTS work_entries (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		user_id TEXT,
		entry_date TEXT NOT NULL,
		time_of_day TEXT,
		hours TEXT NOT NULL,
		estimate_snapshot TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_entries_task_date
		ON work_entries(task_id, entry_date);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		project_id TEXT,
		task_id TEXT,
		user_id TEXT,
		title TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		hours_worked TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_company_period
		ON invoices(company_id, period_start, period_end);

	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		reminder_date TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		implicit INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_invoice
		ON reminders(invoice_id);

	CREATE TABLE IF NOT EXISTS billing_configs (
		company_id TEXT PRIMARY KEY,
		start_day INTEGER NOT NULL DEFAULT 0,
		end_day INTEGER NOT NULL DEFAULT 0,
		daily_capacity TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Store) CreateProject(ctx context.Context, p worklog.Project) (worklog.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = generic.ProjectID(uuid.NewString())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, company_id, name, start_date, hourly_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.Name,
		nullString(p.StartDate.String()),
		p.HourlyRate.Value.String(),
		formatTime(p.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return worklog.Project{}, fmt.Errorf("project %q already exists: %w", p.ID, generic.ErrInvalidInput)
		}
		return worklog.Project{}, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

const projectColumns = `id, company_id, name, start_date, hourly_rate, created_at`

func (s *Store) GetProject(ctx context.Context, id generic.ProjectID) (worklog.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return worklog.Project{}, generic.NotFound("project", string(id))
	}
	return p, err
}

func (s *Store) ListProjects(ctx context.Context) ([]worklog.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []worklog.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func scanProject(row scanner) (worklog.Project, error) {
	var (
		p         worklog.Project
		startDate sql.NullString
		rate      string
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &startDate, &rate, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan project: %w", err)
	}
	var cols columns
	p.StartDate = cols.date(startDate.String)
	p.HourlyRate = cols.amount(rate, generic.UnitMoney)
	p.CreatedAt = cols.time(createdAt)
	if cols.err != nil {
		return p, fmt.Errorf("failed to decode project %s: %w", p.ID, cols.err)
	}
	return p, nil
}

// =============================================================================
// TASKS
// =============================================================================

func (s *Store) CreateTask(ctx context.Context, t worklog.Task) (worklog.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRow(ctx, s.db, "projects", "project", string(t.ProjectID)); err != nil {
		return worklog.Task{}, err
	}
	if t.ID == "" {
		t.ID = generic.TaskID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Consumed.Unit == "" {
		t.Consumed = generic.Hours(0)
	}

	var override sql.NullString
	if t.CostOverride != nil {
		override = sql.NullString{String: t.CostOverride.Value.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks
		(id, project_id, title, estimate, cost_override, consumed, status, position,
		 start_override, end_override, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title,
		budgetValue(t.Estimate),
		override,
		t.Consumed.Value.String(),
		string(t.Status),
		t.Position,
		nullString(t.StartOverride),
		nullString(t.EndOverride),
		formatTime(t.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return worklog.Task{}, fmt.Errorf("task %q already exists: %w", t.ID, generic.ErrInvalidInput)
		}
		return worklog.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

const taskColumns = `id, project_id, title, estimate, cost_override, consumed, status, position,
	start_override, end_override, created_at`

func (s *Store) GetTask(ctx context.Context, id generic.TaskID) (worklog.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return worklog.Task{}, generic.NotFound("task", string(id))
	}
	return t, err
}

func (s *Store) ListTasksByProject(ctx context.Context, id generic.ProjectID) ([]worklog.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []worklog.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTaskConsumed(ctx context.Context, id generic.TaskID, consumed generic.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET consumed = ? WHERE id = ?`, consumed.Value.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(res, "task", string(id))
}

func scanTask(row scanner) (worklog.Task, error) {
	var (
		t         worklog.Task
		estimate  sql.NullString
		override  sql.NullString
		consumed  string
		status    string
		startPin  sql.NullString
		endPin    sql.NullString
		createdAt string
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &estimate, &override, &consumed,
		&status, &t.Position, &startPin, &endPin, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("failed to scan task: %w", err)
	}
	var cols columns
	t.Estimate = cols.budget(estimate)
	if override.Valid {
		cost := cols.amount(override.String, generic.UnitMoney)
		t.CostOverride = &cost
	}
	t.Consumed = cols.amount(consumed, generic.UnitHours)
	t.Status = worklog.TaskStatus(status)
	t.StartOverride = startPin.String
	t.EndOverride = endPin.String
	t.CreatedAt = cols.time(createdAt)
	if cols.err != nil {
		return t, fmt.Errorf("failed to decode task %s: %w", t.ID, cols.err)
	}
	return t, nil
}

// =============================================================================
// WORK ENTRIES
// =============================================================================

func (s *Store) CreateWorkEntry(ctx context.Context, e worklog.WorkEntry) (worklog.WorkEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRow(ctx, s.db, "tasks", "task", string(e.TaskID)); err != nil {
		return worklog.WorkEntry{}, err
	}
	if e.ID == "" {
		e.ID = generic.EntryID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_entries
		(id, task_id, user_id, entry_date, time_of_day, hours, estimate_snapshot, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID,
		nullString(string(e.UserID)),
		e.Date.String(),
		nullString(e.TimeOfDay),
		e.Hours.Value.String(),
		budgetValue(e.EstimateSnapshot),
		nullString(e.Notes),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return worklog.WorkEntry{}, fmt.Errorf("work entry %q already exists: %w", e.ID, generic.ErrInvalidInput)
		}
		return worklog.WorkEntry{}, fmt.Errorf("failed to create work entry: %w", err)
	}
	return e, nil
}

const entryColumns = `w.id, w.task_id, w.user_id, w.entry_date, w.time_of_day, w.hours,
	w.estimate_snapshot, w.notes, w.created_at`

func (s *Store) GetWorkEntry(ctx context.Context, id generic.EntryID) (worklog.WorkEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM work_entries w WHERE w.id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return worklog.WorkEntry{}, generic.NotFound("work entry", string(id))
	}
	return e, err
}

// UpdateWorkEntry never writes estimate_snapshot or created_at.
func (s *Store) UpdateWorkEntry(ctx context.Context, e worklog.WorkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE work_entries
		SET entry_date = ?, time_of_day = ?, hours = ?, notes = ?
		WHERE id = ?`,
		e.Date.String(),
		nullString(e.TimeOfDay),
		e.Hours.Value.String(),
		nullString(e.Notes),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update work entry: %w", err)
	}
	return requireAffected(res, "work entry", string(e.ID))
}

func (s *Store) DeleteWorkEntry(ctx context.Context, id generic.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM work_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete work entry: %w", err)
	}
	return requireAffected(res, "work entry", string(id))
}

func (s *Store) ListWorkEntriesByTask(ctx context.Context, id generic.TaskID) ([]worklog.WorkEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM work_entries w WHERE w.task_id = ? ORDER BY w.rowid`, id)
}

func (s *Store) ListWorkEntriesByProject(ctx context.Context, id generic.ProjectID) ([]worklog.WorkEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM work_entries w
		JOIN tasks t ON t.id = w.task_id
		WHERE t.project_id = ?
		ORDER BY w.rowid`, id)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]worklog.WorkEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work entries: %w", err)
	}
	defer rows.Close()

	var entries []worklog.WorkEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row scanner) (worklog.WorkEntry, error) {
	var (
		e         worklog.WorkEntry
		userID    sql.NullString
		date      string
		timeOfDay sql.NullString
		hours     string
		snapshot  sql.NullString
		notes     sql.NullString
		createdAt string
	)
	err := row.Scan(&e.ID, &e.TaskID, &userID, &date, &timeOfDay, &hours, &snapshot, &notes, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan work entry: %w", err)
	}
	var cols columns
	e.UserID = generic.UserID(userID.String)
	e.Date = cols.date(date)
	e.TimeOfDay = timeOfDay.String
	e.Hours = cols.amount(hours, generic.UnitHours)
	e.EstimateSnapshot = cols.budget(snapshot)
	e.Notes = notes.String
	e.CreatedAt = cols.time(createdAt)
	if cols.err != nil {
		return e, fmt.Errorf("failed to decode work entry %s: %w", e.ID, cols.err)
	}
	return e, nil
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoices writes the batch in one transaction: a failure on any row
// leaves no invoice or reminder behind.
func (s *Store) CreateInvoices(ctx context.Context, invoices []billing.Invoice) ([]billing.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	out := make([]billing.Invoice, len(invoices))
	for i, inv := range invoices {
		created, err := s.insertInvoice(ctx, sqlTx, inv)
		if err != nil {
			return nil, err
		}
		out[i] = created
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invoices: %w", err)
	}
	s.log.Debug("Invoices stored", zap.Int("count", len(out)))
	return out, nil
}

func (s *Store) insertInvoice(ctx context.Context, db execer, inv billing.Invoice) (billing.Invoice, error) {
	if inv.ID == "" {
		inv.ID = generic.InvoiceID(uuid.NewString())
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO invoices
		(id, company_id, project_id, task_id, user_id, title, amount, due_date,
		 period_start, period_end, status, hours_worked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CompanyID,
		nullString(string(inv.ProjectID)),
		nullString(string(inv.TaskID)),
		nullString(string(inv.UserID)),
		inv.Title,
		inv.Amount.Value.String(),
		inv.DueDate.String(),
		inv.Period.Start.String(),
		inv.Period.End.String(),
		string(inv.Status),
		inv.HoursWorked.Value.String(),
		formatTime(inv.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.Invoice{}, fmt.Errorf("invoice %q already exists: %w", inv.ID, generic.ErrInvalidInput)
		}
		return billing.Invoice{}, fmt.Errorf("failed to create invoice: %w", err)
	}

	reminders := make([]billing.Reminder, len(inv.Reminders))
	for i, r := range inv.Reminders {
		if r.ID == "" {
			r.ID = generic.ReminderID(uuid.NewString())
		}
		r.InvoiceID = inv.ID
		_, err := db.ExecContext(ctx, `
			INSERT INTO reminders (id, invoice_id, title, reminder_date, completed, implicit, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.InvoiceID, r.Title, r.Date.String(), r.Completed, r.Implicit, i,
		)
		if err != nil {
			return billing.Invoice{}, fmt.Errorf("failed to create reminder: %w", err)
		}
		reminders[i] = r
	}
	inv.Reminders = reminders
	return inv, nil
}

const invoiceColumns = `id, company_id, project_id, task_id, user_id, title, amount, due_date,
	period_start, period_end, status, hours_worked, created_at`

func (s *Store) GetInvoice(ctx context.Context, id generic.InvoiceID) (billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Invoice{}, generic.NotFound("invoice", string(id))
	}
	if err != nil {
		return billing.Invoice{}, err
	}

	byInvoice, err := s.loadReminders(ctx, `WHERE invoice_id = ?`, id)
	if err != nil {
		return billing.Invoice{}, err
	}
	inv.Reminders = byInvoice[inv.ID]
	return inv, nil
}

func (s *Store) ListInvoicesByCompany(ctx context.Context, id generic.CompanyID) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE company_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}

	var invoices []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// The single connection must be released before the reminder query.
	rows.Close()

	byInvoice, err := s.loadReminders(ctx,
		`WHERE invoice_id IN (SELECT id FROM invoices WHERE company_id = ?)`, id)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Reminders = byInvoice[invoices[i].ID]
	}
	return invoices, nil
}

func (s *Store) UpdateInvoiceStatus(ctx context.Context, id generic.InvoiceID, status billing.InvoiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE invoices SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return requireAffected(res, "invoice", string(id))
}

func (s *Store) CompleteReminder(ctx context.Context, id generic.ReminderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET completed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to complete reminder: %w", err)
	}
	return requireAffected(res, "reminder", string(id))
}

func (s *Store) loadReminders(ctx context.Context, where string, args ...any) (map[generic.InvoiceID][]billing.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, title, reminder_date, completed, implicit
		FROM reminders `+where+`
		ORDER BY invoice_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	result := make(map[generic.InvoiceID][]billing.Reminder)
	for rows.Next() {
		var (
			r    billing.Reminder
			date string
		)
		if err := rows.Scan(&r.ID, &r.InvoiceID, &r.Title, &date, &r.Completed, &r.Implicit); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		var cols columns
		r.Date = cols.date(date)
		if cols.err != nil {
			return nil, fmt.Errorf("failed to decode reminder %s: %w", r.ID, cols.err)
		}
		result[r.InvoiceID] = append(result[r.InvoiceID], r)
	}
	return result, rows.Err()
}

func scanInvoice(row scanner) (billing.Invoice, error) {
	var (
		inv         billing.Invoice
		projectID   sql.NullString
		taskID      sql.NullString
		userID      sql.NullString
		amount      string
		dueDate     string
		periodStart string
		periodEnd   string
		status      string
		hours       string
		createdAt   string
	)
	err := row.Scan(&inv.ID, &inv.CompanyID, &projectID, &taskID, &userID, &inv.Title,
		&amount, &dueDate, &periodStart, &periodEnd, &status, &hours, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inv, err
		}
		return inv, fmt.Errorf("failed to scan invoice: %w", err)
	}
	inv.ProjectID = generic.ProjectID(projectID.String)
	inv.TaskID = generic.TaskID(taskID.String)
	inv.UserID = generic.UserID(userID.String)
	var cols columns
	inv.Amount = cols.amount(amount, generic.UnitMoney)
	inv.DueDate = cols.date(dueDate)
	inv.Period = generic.Period{Start: cols.date(periodStart), End: cols.date(periodEnd)}
	inv.Status = billing.InvoiceStatus(status)
	inv.HoursWorked = cols.amount(hours, generic.UnitHours)
	inv.CreatedAt = cols.time(createdAt)
	if cols.err != nil {
		return inv, fmt.Errorf("failed to decode invoice %s: %w", inv.ID, cols.err)
	}
	return inv, nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// GetBillingConfig returns the zero configuration for unknown companies.
func (s *Store) GetBillingConfig(ctx context.Context, id generic.CompanyID) (billing.CompanyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := billing.CompanyConfig{CompanyID: id}
	var capacity sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT start_day, end_day, daily_capacity FROM billing_configs WHERE company_id = ?`, id,
	).Scan(&cfg.Cycle.StartDay, &cfg.Cycle.EndDay, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return billing.CompanyConfig{}, fmt.Errorf("failed to load billing config: %w", err)
	}
	if capacity.Valid {
		var cols columns
		cfg.DailyCapacity = cols.amount(capacity.String, generic.UnitHours)
		if cols.err != nil {
			return billing.CompanyConfig{}, fmt.Errorf("failed to decode billing config %s: %w", id, cols.err)
		}
	}
	return cfg, nil
}

func (s *Store) SaveBillingConfig(ctx context.Context, cfg billing.CompanyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var capacity sql.NullString
	if !cfg.DailyCapacity.IsZero() {
		capacity = sql.NullString{String: cfg.DailyCapacity.Value.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_configs (company_id, start_day, end_day, daily_capacity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			start_day = excluded.start_day,
			end_day = excluded.end_day,
			daily_capacity = excluded.daily_capacity`,
		cfg.CompanyID, cfg.Cycle.StartDay, cfg.Cycle.EndDay, capacity,
	)
	if err != nil {
		return fmt.Errorf("failed to save billing config: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"reminders", "invoices", "work_entries", "tasks", "projects", "billing_configs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) requireRow(ctx context.Context, db execer, table, kind, id string) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&count); err != nil {
		return fmt.Errorf("failed to look up %s: %w", kind, err)
	}
	if count == 0 {
		return generic.NotFound(kind, id)
	}
	return nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NotFound(kind, id)
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}


// budgetValue stores an unbounded budget as NULL.
func budgetValue(b generic.Budget) sql.NullString {
	h, ok := b.Hours()
	if !ok {
		return sql.NullString{}
	}
	return sql.NullString{String: h.Value.String(), Valid: true}
}


func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// columns decodes stored TEXT columns and keeps the first failure, so a scan
// function can convert every column and check once.
type columns struct {
	err error
}

func (c *columns) fail(kind, value string, err error) {
	if c.err == nil {
		c.err = fmt.Errorf("stored %s %q: %w", kind, value, err)
	}
}

func (c *columns) amount(value string, unit generic.Unit) generic.Amount {
	d, err := decimal.NewFromString(value)
	if err != nil {
		c.fail("amount", value, err)
		return generic.Amount{Value: decimal.Zero, Unit: unit}
	}
	return generic.NewAmountFromDecimal(d, unit)
}

// budget reads NULL as unbounded.
func (c *columns) budget(v sql.NullString) generic.Budget {
	if !v.Valid {
		return generic.Unbounded()
	}
	return generic.Bounded(c.amount(v.String, generic.UnitHours))
}

// date reads "" as the zero date.
func (c *columns) date(s string) generic.TimePoint {
	if s == "" {
		return generic.TimePoint{}
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		c.fail("date", s, err)
	}
	return tp
}

func (c *columns) time(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		c.fail("timestamp", s, err)
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
