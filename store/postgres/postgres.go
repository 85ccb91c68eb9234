/*
Package postgres provides a PostgreSQL implementation of accounting.Repository
on a pgx connection pool.

SCHEMA:
  migrations/*.sql are embedded and applied in lexical order by Migrate; each
  file runs once and is recorded in schema_migrations.

ENCODING:
  - Hours and money are NUMERIC, exchanged as text so shopspring/decimal
    never round-trips through float64
  - Calendar dates are DATE, read back as ISO text
  - An unbounded estimate is a NULL estimate column
  - seq (BIGSERIAL) keeps list methods in insertion order

SEE ALSO:
  - store/sqlite: Same contract on an embedded database
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/warp/billing-engine/accounting"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ accounting.Repository = (*Store)(nil)

// Store implements accounting.Repository on PostgreSQL.
type Store struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPool opens a connection pool sized for a single API process.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, config)
}

// New wraps an open pool. Call Migrate before first use.
func New(pool *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{Pool: pool, log: log}
}

// Open connects, migrates and returns a ready store.
func Open(ctx context.Context, databaseURL string, log *zap.Logger) (*Store, error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := New(pool, log)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.log.Info("Database connection established", zap.String("driver", "postgres"))
	return s, nil
}

func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

// Migrate applies the embedded SQL files that have not run yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		version := f[len("migrations/"):]

		var exists bool
		err := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		sqlBytes, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		tx, err := s.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("exec migration %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES ($1, $2)`, version, time.Now().UTC()); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
		s.log.Info("Applied migration", zap.String("version", version))
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `TRUNCATE reminders, invoices, work_entries, tasks, projects, billing_configs`)
	return err
}

// =============================================================================
// PROJECTS & TASKS
// =============================================================================

func (s *Store) CreateProject(ctx context.Context, p worklog.Project) (worklog.Project, error) {
	if p.ID == "" {
		p.ID = generic.ProjectID(uuid.NewString())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO projects (id, company_id, name, start_date, hourly_rate, created_at)
		VALUES ($1, $2, $3, $4::date, $5::numeric, $6)`,
		string(p.ID), string(p.CompanyID), p.Name,
		dateArg(p.StartDate), p.HourlyRate.Value.String(), p.CreatedAt,
	)
	if err != nil {
		return worklog.Project{}, insertError(err, "project", string(p.ID))
	}
	return p, nil
}

const projectColumns = `id, company_id, name, start_date::text, hourly_rate::text, created_at`

func (s *Store) GetProject(ctx context.Context, id generic.ProjectID) (worklog.Project, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, string(id))
	p, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return worklog.Project{}, generic.NotFound("project", string(id))
	}
	return p, err
}

func (s *Store) ListProjects(ctx context.Context) ([]worklog.Project, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []worklog.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProject(row pgx.Row) (worklog.Project, error) {
	var (
		p           worklog.Project
		id, company string
		startDate   *string
		rate        string
	)
	if err := row.Scan(&id, &company, &p.Name, &startDate, &rate, &p.CreatedAt); err != nil {
		return p, err
	}
	p.ID = generic.ProjectID(id)
	p.CompanyID = generic.CompanyID(company)
	p.StartDate = parseDate(startDate)
	p.HourlyRate = parseAmount(rate, generic.UnitMoney)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *Store) CreateTask(ctx context.Context, t worklog.Task) (worklog.Task, error) {
	if t.ID == "" {
		t.ID = generic.TaskID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	var override *string
	if t.CostOverride != nil {
		v := t.CostOverride.Value.String()
		override = &v
	}

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO tasks
		(id, project_id, title, estimate, cost_override, consumed, status, position,
		 start_override, end_override, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10, $11)`,
		string(t.ID), string(t.ProjectID), t.Title,
		budgetArg(t.Estimate), override, t.Consumed.Value.String(),
		string(t.Status), t.Position,
		nullable(t.StartOverride), nullable(t.EndOverride), t.CreatedAt,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return worklog.Task{}, generic.NotFound("project", string(t.ProjectID))
		}
		return worklog.Task{}, insertError(err, "task", string(t.ID))
	}
	return t, nil
}

const taskColumns = `id, project_id, title, estimate::text, cost_override::text, consumed::text,
	status, position, start_override, end_override, created_at`

func (s *Store) GetTask(ctx context.Context, id generic.TaskID) (worklog.Task, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, string(id))
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return worklog.Task{}, generic.NotFound("task", string(id))
	}
	return t, err
}

func (s *Store) ListTasksByProject(ctx context.Context, id generic.ProjectID) ([]worklog.Task, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id=$1 ORDER BY seq`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []worklog.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTaskConsumed(ctx context.Context, id generic.TaskID, consumed generic.Amount) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tasks SET consumed=$1::numeric WHERE id=$2`, consumed.Value.String(), string(id))
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.NotFound("task", string(id))
	}
	return nil
}

func scanTask(row pgx.Row) (worklog.Task, error) {
	var (
		t                  worklog.Task
		id, projectID      string
		estimate, override *string
		consumed, status   string
		startPin, endPin   *string
	)
	err := row.Scan(&id, &projectID, &t.Title, &estimate, &override, &consumed,
		&status, &t.Position, &startPin, &endPin, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	t.ID = generic.TaskID(id)
	t.ProjectID = generic.ProjectID(projectID)
	t.Estimate = parseBudget(estimate)
	if override != nil {
		cost := parseAmount(*override, generic.UnitMoney)
		t.CostOverride = &cost
	}
	t.Consumed = parseAmount(consumed, generic.UnitHours)
	t.Status = worklog.TaskStatus(status)
	t.StartOverride = deref(startPin)
	t.EndOverride = deref(endPin)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

// =============================================================================
// WORK ENTRIES
// =============================================================================

func (s *Store) CreateWorkEntry(ctx context.Context, e worklog.WorkEntry) (worklog.WorkEntry, error) {
	if e.ID == "" {
		e.ID = generic.EntryID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO work_entries
		(id, task_id, user_id, entry_date, time_of_day, hours, estimate_snapshot, notes, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6::numeric, $7::numeric, $8, $9)`,
		string(e.ID), string(e.TaskID), nullable(string(e.UserID)),
		e.Date.String(), nullable(e.TimeOfDay), e.Hours.Value.String(),
		budgetArg(e.EstimateSnapshot), nullable(e.Notes), e.CreatedAt,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return worklog.WorkEntry{}, generic.NotFound("task", string(e.TaskID))
		}
		return worklog.WorkEntry{}, insertError(err, "work entry", string(e.ID))
	}
	return e, nil
}

const entryColumns = `w.id, w.task_id, w.user_id, w.entry_date::text, w.time_of_day, w.hours::text,
	w.estimate_snapshot::text, w.notes, w.created_at`

func (s *Store) GetWorkEntry(ctx context.Context, id generic.EntryID) (worklog.WorkEntry, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM work_entries w WHERE w.id=$1`, string(id))
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return worklog.WorkEntry{}, generic.NotFound("work entry", string(id))
	}
	return e, err
}

// UpdateWorkEntry never writes estimate_snapshot or created_at.
func (s *Store) UpdateWorkEntry(ctx context.Context, e worklog.WorkEntry) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE work_entries
		SET entry_date=$1::date, time_of_day=$2, hours=$3::numeric, notes=$4
		WHERE id=$5`,
		e.Date.String(), nullable(e.TimeOfDay), e.Hours.Value.String(), nullable(e.Notes), string(e.ID),
	)
	if err != nil {
		return fmt.Errorf("update work entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.NotFound("work entry", string(e.ID))
	}
	return nil
}

func (s *Store) DeleteWorkEntry(ctx context.Context, id generic.EntryID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM work_entries WHERE id=$1`, string(id))
	if err != nil {
		return fmt.Errorf("delete work entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.NotFound("work entry", string(id))
	}
	return nil
}

func (s *Store) ListWorkEntriesByTask(ctx context.Context, id generic.TaskID) ([]worklog.WorkEntry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM work_entries w WHERE w.task_id=$1 ORDER BY w.seq`, string(id))
}

func (s *Store) ListWorkEntriesByProject(ctx context.Context, id generic.ProjectID) ([]worklog.WorkEntry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM work_entries w
		JOIN tasks t ON t.id = w.task_id
		WHERE t.project_id=$1
		ORDER BY w.seq`, string(id))
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]worklog.WorkEntry, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query work entries: %w", err)
	}
	defer rows.Close()

	var out []worklog.WorkEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (worklog.WorkEntry, error) {
	var (
		e                 worklog.WorkEntry
		id, taskID        string
		userID, timeOfDay *string
		date, hours       string
		snapshot, notes   *string
	)
	err := row.Scan(&id, &taskID, &userID, &date, &timeOfDay, &hours, &snapshot, &notes, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	e.ID = generic.EntryID(id)
	e.TaskID = generic.TaskID(taskID)
	e.UserID = generic.UserID(deref(userID))
	e.Date = parseDate(&date)
	e.TimeOfDay = deref(timeOfDay)
	e.Hours = parseAmount(hours, generic.UnitHours)
	e.EstimateSnapshot = parseBudget(snapshot)
	e.Notes = deref(notes)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoices writes the batch in one transaction.
func (s *Store) CreateInvoices(ctx context.Context, invoices []billing.Invoice) ([]billing.Invoice, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin invoices tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]billing.Invoice, len(invoices))
	for i, inv := range invoices {
		if inv.ID == "" {
			inv.ID = generic.InvoiceID(uuid.NewString())
		}
		if inv.CreatedAt.IsZero() {
			inv.CreatedAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices
			(id, company_id, project_id, task_id, user_id, title, amount, due_date,
			 period_start, period_end, status, hours_worked, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::date, $9::date, $10::date, $11, $12::numeric, $13)`,
			string(inv.ID), string(inv.CompanyID),
			nullable(string(inv.ProjectID)), nullable(string(inv.TaskID)), nullable(string(inv.UserID)),
			inv.Title, inv.Amount.Value.String(), inv.DueDate.String(),
			inv.Period.Start.String(), inv.Period.End.String(),
			string(inv.Status), inv.HoursWorked.Value.String(), inv.CreatedAt,
		)
		if err != nil {
			return nil, insertError(err, "invoice", string(inv.ID))
		}

		reminders := make([]billing.Reminder, len(inv.Reminders))
		for j, r := range inv.Reminders {
			if r.ID == "" {
				r.ID = generic.ReminderID(uuid.NewString())
			}
			r.InvoiceID = inv.ID
			_, err := tx.Exec(ctx, `
				INSERT INTO reminders (id, invoice_id, title, reminder_date, completed, implicit, position)
				VALUES ($1, $2, $3, $4::date, $5, $6, $7)`,
				string(r.ID), string(r.InvoiceID), r.Title, r.Date.String(), r.Completed, r.Implicit, j,
			)
			if err != nil {
				return nil, insertError(err, "reminder", string(r.ID))
			}
			reminders[j] = r
		}
		inv.Reminders = reminders
		out[i] = inv
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit invoices: %w", err)
	}
	s.log.Debug("Invoices stored", zap.Int("count", len(out)))
	return out, nil
}

const invoiceColumns = `id, company_id, project_id, task_id, user_id, title, amount::text, due_date::text,
	period_start::text, period_end::text, status, hours_worked::text, created_at`

func (s *Store) GetInvoice(ctx context.Context, id generic.InvoiceID) (billing.Invoice, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, string(id))
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return billing.Invoice{}, generic.NotFound("invoice", string(id))
	}
	if err != nil {
		return billing.Invoice{}, err
	}
	byInvoice, err := s.loadReminders(ctx, `WHERE invoice_id=$1`, string(id))
	if err != nil {
		return billing.Invoice{}, err
	}
	inv.Reminders = byInvoice[inv.ID]
	return inv, nil
}

func (s *Store) ListInvoicesByCompany(ctx context.Context, id generic.CompanyID) ([]billing.Invoice, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE company_id=$1 ORDER BY seq`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byInvoice, err := s.loadReminders(ctx,
		`WHERE invoice_id IN (SELECT id FROM invoices WHERE company_id=$1)`, string(id))
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Reminders = byInvoice[out[i].ID]
	}
	return out, nil
}

func (s *Store) UpdateInvoiceStatus(ctx context.Context, id generic.InvoiceID, status billing.InvoiceStatus) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE invoices SET status=$1 WHERE id=$2`, string(status), string(id))
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.NotFound("invoice", string(id))
	}
	return nil
}

func (s *Store) CompleteReminder(ctx context.Context, id generic.ReminderID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE reminders SET completed=true WHERE id=$1`, string(id))
	if err != nil {
		return fmt.Errorf("complete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.NotFound("reminder", string(id))
	}
	return nil
}

func (s *Store) loadReminders(ctx context.Context, where string, args ...any) (map[generic.InvoiceID][]billing.Reminder, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, invoice_id, title, reminder_date::text, completed, implicit
		FROM reminders `+where+`
		ORDER BY invoice_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	out := make(map[generic.InvoiceID][]billing.Reminder)
	for rows.Next() {
		var (
			r             billing.Reminder
			id, invoiceID string
			date          string
		)
		if err := rows.Scan(&id, &invoiceID, &r.Title, &date, &r.Completed, &r.Implicit); err != nil {
			return nil, err
		}
		r.ID = generic.ReminderID(id)
		r.InvoiceID = generic.InvoiceID(invoiceID)
		r.Date = parseDate(&date)
		out[r.InvoiceID] = append(out[r.InvoiceID], r)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (billing.Invoice, error) {
	var (
		inv                     billing.Invoice
		id, company             string
		projectID, taskID, user *string
		amount, due             string
		start, end              string
		status, hours           string
	)
	err := row.Scan(&id, &company, &projectID, &taskID, &user, &inv.Title,
		&amount, &due, &start, &end, &status, &hours, &inv.CreatedAt)
	if err != nil {
		return inv, err
	}
	inv.ID = generic.InvoiceID(id)
	inv.CompanyID = generic.CompanyID(company)
	inv.ProjectID = generic.ProjectID(deref(projectID))
	inv.TaskID = generic.TaskID(deref(taskID))
	inv.UserID = generic.UserID(deref(user))
	inv.Amount = parseAmount(amount, generic.UnitMoney)
	inv.DueDate = parseDate(&due)
	inv.Period = generic.Period{Start: parseDate(&start), End: parseDate(&end)}
	inv.Status = billing.InvoiceStatus(status)
	inv.HoursWorked = parseAmount(hours, generic.UnitHours)
	inv.CreatedAt = inv.CreatedAt.UTC()
	return inv, nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func (s *Store) GetBillingConfig(ctx context.Context, id generic.CompanyID) (billing.CompanyConfig, error) {
	cfg := billing.CompanyConfig{CompanyID: id}
	var capacity *string
	err := s.Pool.QueryRow(ctx,
		`SELECT start_day, end_day, daily_capacity::text FROM billing_configs WHERE company_id=$1`, string(id),
	).Scan(&cfg.Cycle.StartDay, &cfg.Cycle.EndDay, &capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return billing.CompanyConfig{}, fmt.Errorf("load billing config: %w", err)
	}
	if capacity != nil {
		cfg.DailyCapacity = parseAmount(*capacity, generic.UnitHours)
	}
	return cfg, nil
}

func (s *Store) SaveBillingConfig(ctx context.Context, cfg billing.CompanyConfig) error {
	var capacity *string
	if !cfg.DailyCapacity.IsZero() {
		v := cfg.DailyCapacity.Value.String()
		capacity = &v
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO billing_configs (company_id, start_day, end_day, daily_capacity)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (company_id) DO UPDATE SET
			start_day = EXCLUDED.start_day,
			end_day = EXCLUDED.end_day,
			daily_capacity = EXCLUDED.daily_capacity`,
		string(cfg.CompanyID), cfg.Cycle.StartDay, cfg.Cycle.EndDay, capacity,
	)
	if err != nil {
		return fmt.Errorf("save billing config: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateArg(tp generic.TimePoint) *string {
	return nullable(tp.String())
}

func budgetArg(b generic.Budget) *string {
	h, ok := b.Hours()
	if !ok {
		return nil
	}
	v := h.Value.String()
	return &v
}

func parseBudget(v *string) generic.Budget {
	if v == nil {
		return generic.Unbounded()
	}
	return generic.Bounded(parseAmount(*v, generic.UnitHours))
}

func parseAmount(value string, unit generic.Unit) generic.Amount {
	return generic.Amount{Value: generic.MustParseDecimal(value), Unit: unit}
}

func parseDate(s *string) generic.TimePoint {
	if s == nil || *s == "" {
		return generic.TimePoint{}
	}
	tp, err := generic.ParseDate(*s)
	if err != nil {
		return generic.TimePoint{}
	}
	return tp
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyError(err error) bool { return pgCode(err) == "23503" }

func insertError(err error, kind, id string) error {
	if pgCode(err) == "23505" {
		return fmt.Errorf("%s %q already exists: %w", kind, id, generic.ErrInvalidInput)
	}
	return fmt.Errorf("create %s: %w", kind, err)
}
