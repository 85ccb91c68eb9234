/*
service.go - Orchestration: fetch, compute, persist

PURPOSE:
  Every operation follows the same shape: read the inputs from the
  Repository, hand them to a pure component, persist or return the result.
  The service owns the clock, the display timezone and the configured
  defaults; the components never see any of them.

RECOMPUTE ON WRITE:
  Logging, editing or deleting a work entry is always followed by a full
  replay of that task's ledger, and the task's accumulated hours are
  overwritten with the result. Nothing is incremented in place.

DEFAULTS (resolved here, once per call):
  - Billing cycle:  stored company config, then calendar month
  - Daily capacity: request, then company config, then service default, then 8
  - Schedule start: request, then project start date, then today

SEE ALSO:
  - repository.go: Persistence collaborator
  - api/handlers.go: HTTP surface over this service
*/
package accounting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/planning"
	"github.com/warp/billing-engine/worklog"
)

// Options configures a Service. Zero values fall back to sensible defaults.
type Options struct {
	// DefaultCapacity is used when neither the request nor the company sets one.
	DefaultCapacity generic.Amount
	// Window is the default period offset range.
	Window billing.Window
	// Location is the display timezone that decides what "today" is.
	Location *time.Location
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service runs the billing operations against a Repository.
type Service struct {
	repo     Repository
	log      *zap.Logger
	now      func() time.Time
	loc      *time.Location
	capacity generic.Amount
	window   billing.Window
}

func NewService(repo Repository, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Window == (billing.Window{}) {
		opts.Window = billing.DefaultWindow
	}
	return &Service{
		repo:     repo,
		log:      log,
		now:      opts.Now,
		loc:      opts.Location,
		capacity: opts.DefaultCapacity,
		window:   opts.Window,
	}
}

// Today is the current calendar date in the display timezone.
func (s *Service) Today() generic.TimePoint {
	return generic.FromTime(s.now().In(s.loc))
}

// DefaultWindow is the period window used when a caller gives none.
func (s *Service) DefaultWindow() billing.Window { return s.window }

// =============================================================================
// BILLING CONFIGURATION & PERIODS
// =============================================================================

func (s *Service) BillingConfig(ctx context.Context, companyID generic.CompanyID) (billing.CompanyConfig, error) {
	cfg, err := s.repo.GetBillingConfig(ctx, companyID)
	if err != nil {
		return billing.CompanyConfig{}, fmt.Errorf("load billing config: %w", err)
	}
	cfg.CompanyID = companyID
	return cfg, nil
}

func (s *Service) SaveBillingConfig(ctx context.Context, cfg billing.CompanyConfig) error {
	if cfg.CompanyID == "" {
		return fmt.Errorf("company id is required: %w", generic.ErrInvalidInput)
	}
	if cfg.DailyCapacity.IsNegative() {
		return fmt.Errorf("daily capacity %s: %w", cfg.DailyCapacity, generic.ErrInvalidInput)
	}
	if err := s.repo.SaveBillingConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save billing config: %w", err)
	}
	s.log.Info("billing config saved",
		zap.String("company_id", string(cfg.CompanyID)),
		zap.Int("start_day", cfg.Cycle.StartDay),
		zap.Int("end_day", cfg.Cycle.EndDay),
	)
	return nil
}

// BillingPeriods generates the company's periods over w, relative to today.
func (s *Service) BillingPeriods(ctx context.Context, companyID generic.CompanyID, w billing.Window) ([]billing.BillingPeriod, error) {
	cfg, err := s.BillingConfig(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return billing.GeneratePeriods(cfg.Cycle, s.Today(), w)
}

// Overview is the per-period invoice status for one company.
type Overview struct {
	CompanyID generic.CompanyID
	Periods   []billing.PeriodSummary
	// Current is the period containing today, when the cycle covers today.
	Current *billing.BillingPeriod
}

func (s *Service) PeriodOverview(ctx context.Context, companyID generic.CompanyID, w billing.Window) (Overview, error) {
	cfg, err := s.BillingConfig(ctx, companyID)
	if err != nil {
		return Overview{}, err
	}
	today := s.Today()
	periods, err := billing.GeneratePeriods(cfg.Cycle, today, w)
	if err != nil {
		return Overview{}, err
	}
	invoices, err := s.repo.ListInvoicesByCompany(ctx, companyID)
	if err != nil {
		return Overview{}, fmt.Errorf("list invoices: %w", err)
	}

	ov := Overview{CompanyID: companyID, Periods: billing.SummarizePeriods(periods, invoices, today)}
	if cur, ok := billing.PeriodFor(cfg.Cycle, today); ok {
		ov.Current = &cur
	}
	return ov, nil
}

// Invoices lists the company's invoices, restricted to one period when
// periodKey is not empty.
func (s *Service) Invoices(ctx context.Context, companyID generic.CompanyID, periodKey string) ([]billing.Invoice, error) {
	invoices, err := s.repo.ListInvoicesByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	if periodKey == "" {
		return invoices, nil
	}
	p, err := billing.ParsePeriodKey(periodKey)
	if err != nil {
		return nil, err
	}
	return billing.InvoicesForPeriod(invoices, p.Period), nil
}

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceBatch is a persisted recurring series.
type InvoiceBatch struct {
	Invoices []billing.Invoice
	// Dropped reminder templates that could not be resolved.
	Dropped []billing.ReminderTemplate
}

// CreateInvoices expands a definition into its occurrences and persists them
// all at once. When the series is tied to a task and carries no hours, the
// task's current consumed hours are captured on every occurrence.
func (s *Service) CreateInvoices(ctx context.Context, in billing.RecurrenceInput) (InvoiceBatch, error) {
	if in.Base.CompanyID == "" {
		return InvoiceBatch{}, fmt.Errorf("company id is required: %w", generic.ErrInvalidInput)
	}
	if in.Base.TaskID != "" && in.Base.HoursWorked.IsZero() {
		task, err := s.repo.GetTask(ctx, in.Base.TaskID)
		if err != nil {
			return InvoiceBatch{}, fmt.Errorf("load task: %w", err)
		}
		in.Base.HoursWorked = task.Consumed
		if in.Base.ProjectID == "" {
			in.Base.ProjectID = task.ProjectID
		}
	}

	exp, err := billing.Expand(in)
	if err != nil {
		return InvoiceBatch{}, err
	}
	now := s.now()
	for i := range exp.Invoices {
		exp.Invoices[i].CreatedAt = now
	}

	saved, err := s.repo.CreateInvoices(ctx, exp.Invoices)
	if err != nil {
		return InvoiceBatch{}, fmt.Errorf("create invoices: %w", err)
	}

	if len(exp.Dropped) > 0 {
		s.log.Warn("reminder templates dropped",
			zap.String("company_id", string(in.Base.CompanyID)),
			zap.Int("dropped", len(exp.Dropped)),
		)
	}
	s.log.Info("invoices created",
		zap.String("company_id", string(in.Base.CompanyID)),
		zap.String("frequency", string(in.Frequency)),
		zap.Int("count", len(saved)),
	)
	return InvoiceBatch{Invoices: saved, Dropped: exp.Dropped}, nil
}

func (s *Service) SetInvoiceStatus(ctx context.Context, id generic.InvoiceID, status billing.InvoiceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("status %q: %w", status, generic.ErrInvalidInput)
	}
	if err := s.repo.UpdateInvoiceStatus(ctx, id, status); err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	s.log.Info("invoice status changed", zap.String("invoice_id", string(id)), zap.String("status", string(status)))
	return nil
}

func (s *Service) CompleteReminder(ctx context.Context, id generic.ReminderID) error {
	if err := s.repo.CompleteReminder(ctx, id); err != nil {
		return fmt.Errorf("complete reminder: %w", err)
	}
	return nil
}

// =============================================================================
// PROJECTS & TASKS
// =============================================================================

func (s *Service) CreateProject(ctx context.Context, p worklog.Project) (worklog.Project, error) {
	if p.CompanyID == "" || p.Name == "" {
		return worklog.Project{}, fmt.Errorf("company id and name are required: %w", generic.ErrInvalidInput)
	}
	if p.HourlyRate.Unit == "" {
		p.HourlyRate.Unit = generic.UnitMoney
	}
	p.CreatedAt = s.now()
	return s.repo.CreateProject(ctx, p)
}

func (s *Service) Project(ctx context.Context, id generic.ProjectID) (worklog.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return worklog.Project{}, fmt.Errorf("load project: %w", err)
	}
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]worklog.Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) CreateTask(ctx context.Context, t worklog.Task) (worklog.Task, error) {
	if t.ProjectID == "" || t.Title == "" {
		return worklog.Task{}, fmt.Errorf("project id and title are required: %w", generic.ErrInvalidInput)
	}
	if err := worklog.ValidateEstimate(t.Estimate); err != nil {
		return worklog.Task{}, err
	}
	if _, err := s.repo.GetProject(ctx, t.ProjectID); err != nil {
		return worklog.Task{}, fmt.Errorf("load project: %w", err)
	}
	if t.Status == "" {
		t.Status = worklog.TaskPending
	}
	if !t.Status.Valid() {
		return worklog.Task{}, fmt.Errorf("task status %q: %w", t.Status, generic.ErrInvalidInput)
	}
	t.Consumed = generic.Hours(0)
	t.CreatedAt = s.now()
	return s.repo.CreateTask(ctx, t)
}

// ProjectTasks lists a project's tasks with their current ledger summaries.
func (s *Service) ProjectTasks(ctx context.Context, projectID generic.ProjectID) ([]worklog.Task, []worklog.TaskSummary, error) {
	tasks, err := s.repo.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}
	entries, err := s.repo.ListWorkEntriesByProject(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("list work entries: %w", err)
	}
	return tasks, worklog.Summarize(tasks, worklog.ComputeLedgerFor(tasks, entries)), nil
}

// =============================================================================
// WORK ENTRIES
// =============================================================================

// LogWork persists a new entry with the task's current estimate captured as
// its snapshot, then recomputes the task.
func (s *Service) LogWork(ctx context.Context, e worklog.WorkEntry) (worklog.WorkEntry, error) {
	if err := e.Validate(); err != nil {
		return worklog.WorkEntry{}, err
	}
	task, err := s.repo.GetTask(ctx, e.TaskID)
	if err != nil {
		return worklog.WorkEntry{}, fmt.Errorf("load task: %w", err)
	}

	entry := worklog.NewEntry(task, e.Date, e.TimeOfDay, e.Hours, s.now())
	entry.ID = e.ID
	entry.UserID = e.UserID
	entry.Notes = e.Notes

	saved, err := s.repo.CreateWorkEntry(ctx, entry)
	if err != nil {
		return worklog.WorkEntry{}, fmt.Errorf("create work entry: %w", err)
	}
	if _, err := s.RecomputeTask(ctx, task.ID); err != nil {
		return saved, err
	}
	return saved, nil
}

// EditWorkEntry rewrites the mutable fields of an entry. The snapshot and
// creation time of the stored entry are kept.
func (s *Service) EditWorkEntry(ctx context.Context, e worklog.WorkEntry) (worklog.WorkEntry, error) {
	existing, err := s.repo.GetWorkEntry(ctx, e.ID)
	if err != nil {
		return worklog.WorkEntry{}, fmt.Errorf("load work entry: %w", err)
	}

	existing.Date = e.Date
	existing.TimeOfDay = e.TimeOfDay
	existing.Hours = e.Hours
	existing.Notes = e.Notes
	if err := existing.Validate(); err != nil {
		return worklog.WorkEntry{}, err
	}

	if err := s.repo.UpdateWorkEntry(ctx, existing); err != nil {
		return worklog.WorkEntry{}, fmt.Errorf("update work entry: %w", err)
	}
	if _, err := s.RecomputeTask(ctx, existing.TaskID); err != nil {
		return existing, err
	}
	return existing, nil
}

func (s *Service) DeleteWorkEntry(ctx context.Context, id generic.EntryID) error {
	existing, err := s.repo.GetWorkEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("load work entry: %w", err)
	}
	if err := s.repo.DeleteWorkEntry(ctx, id); err != nil {
		return fmt.Errorf("delete work entry: %w", err)
	}
	_, err = s.RecomputeTask(ctx, existing.TaskID)
	return err
}

// =============================================================================
// LEDGER
// =============================================================================

// TaskLedger is one task's ledger, rows in ledger order.
type TaskLedger struct {
	Task    worklog.Task
	Rows    []worklog.EntryBalance
	Summary worklog.TaskSummary
}

func (s *Service) TaskLedger(ctx context.Context, taskID generic.TaskID) (TaskLedger, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return TaskLedger{}, fmt.Errorf("load task: %w", err)
	}
	entries, err := s.repo.ListWorkEntriesByTask(ctx, taskID)
	if err != nil {
		return TaskLedger{}, fmt.Errorf("list work entries: %w", err)
	}

	l := worklog.ComputeLedgerFor([]worklog.Task{task}, entries)
	return TaskLedger{
		Task:    task,
		Rows:    l.Rows,
		Summary: worklog.Summarize([]worklog.Task{task}, l)[0],
	}, nil
}

// RecomputeTask replays the task's entries and stores the consumed total.
func (s *Service) RecomputeTask(ctx context.Context, taskID generic.TaskID) (generic.Amount, error) {
	entries, err := s.repo.ListWorkEntriesByTask(ctx, taskID)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("list work entries: %w", err)
	}
	consumed := worklog.ComputeLedger(entries).ConsumedBy(taskID)
	if err := s.repo.UpdateTaskConsumed(ctx, taskID, consumed); err != nil {
		return generic.Amount{}, fmt.Errorf("update consumed hours: %w", err)
	}
	s.log.Debug("task recomputed", zap.String("task_id", string(taskID)), zap.String("consumed", consumed.String()))
	return consumed, nil
}

// RecomputeProject replays the whole project and rewrites every task's
// consumed hours. Entries that reference unknown tasks are skipped.
func (s *Service) RecomputeProject(ctx context.Context, projectID generic.ProjectID) (int, error) {
	tasks, err := s.repo.ListTasksByProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("list tasks: %w", err)
	}
	entries, err := s.repo.ListWorkEntriesByProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("list work entries: %w", err)
	}

	l := worklog.ComputeLedgerFor(tasks, entries)
	if len(l.Skipped) > 0 {
		s.log.Warn("work entries reference unknown tasks",
			zap.String("project_id", string(projectID)),
			zap.Int("skipped", len(l.Skipped)),
		)
	}
	for _, t := range tasks {
		if err := s.repo.UpdateTaskConsumed(ctx, t.ID, l.ConsumedBy(t.ID)); err != nil {
			return 0, fmt.Errorf("update consumed hours for %s: %w", t.ID, err)
		}
	}
	return len(tasks), nil
}

// RecomputeAll recomputes every project. A failing project is logged and
// does not stop the others; the first error is returned.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list projects: %w", err)
	}
	var firstErr error
	total := 0
	for _, p := range projects {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := s.RecomputeProject(ctx, p.ID)
		if err != nil {
			s.log.Error("recompute project failed", zap.String("project_id", string(p.ID)), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	return total, firstErr
}

// =============================================================================
// SCHEDULE
// =============================================================================

// ProjectSchedule lays the project's tasks out sequentially from start. A zero
// start falls back to the project's start date, then today. A non-positive
// capacity falls back to the company configuration, then the service default.
func (s *Service) ProjectSchedule(ctx context.Context, projectID generic.ProjectID, start generic.TimePoint, capacity generic.Amount) (planning.Result, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return planning.Result{}, fmt.Errorf("load project: %w", err)
	}
	tasks, err := s.repo.ListTasksByProject(ctx, projectID)
	if err != nil {
		return planning.Result{}, fmt.Errorf("list tasks: %w", err)
	}

	if start.IsZero() {
		start = project.StartDate
	}
	if start.IsZero() {
		start = s.Today()
	}
	if !capacity.IsPositive() {
		cfg, err := s.BillingConfig(ctx, project.CompanyID)
		if err != nil {
			return planning.Result{}, err
		}
		capacity = cfg.DailyCapacity
	}
	if !capacity.IsPositive() {
		capacity = s.capacity
	}

	res := planning.Schedule(planning.ForTasks(start, capacity, tasks))
	if w := res.Warnings(); len(w) > 0 {
		s.log.Warn("schedule overrides ignored", zap.String("project_id", string(projectID)), zap.Strings("warnings", w))
	}
	return res, nil
}
