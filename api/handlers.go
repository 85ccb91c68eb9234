/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the accounting service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the service.

ENDPOINTS:
  Periods & configuration:
    GET    /api/companies/{id}/periods            Billing periods (?from=&to= month offsets)
    GET    /api/companies/{id}/periods/overview   Periods with invoice status and totals
    GET    /api/companies/{id}/billing-config     Stored cycle and daily capacity
    PUT    /api/companies/{id}/billing-config     Replace cycle and daily capacity

  Invoices:
    GET    /api/companies/{id}/invoices           List (?period={key} filters)
    POST   /api/companies/{id}/invoices           Create a (recurring) invoice series
    POST   /api/invoices/{id}/status              Change status
    POST   /api/reminders/{id}/complete           Mark a reminder done

  Projects, tasks & work:
    GET    /api/projects                          List projects
    POST   /api/projects                          Create project
    GET    /api/projects/{id}/tasks               Tasks with ledger summaries
    POST   /api/projects/{id}/tasks               Create task
    GET    /api/projects/{id}/schedule            Sequential schedule (?start=&capacity=&format=csv)
    POST   /api/projects/{id}/recompute           Rewrite consumed hours from the ledger
    GET    /api/tasks/{id}/ledger                 Per-entry balances (?format=csv)
    POST   /api/tasks/{id}/entries                Log work
    PUT    /api/entries/{id}                      Edit work entry
    DELETE /api/entries/{id}                      Delete work entry

ERROR HANDLING:
  Errors are returned as JSON {error, details}:
  - 400: Validation errors, invalid input (generic.IsClientError)
  - 404: Resource not found (generic.IsNotFound)
  - 500: Internal errors (logged)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - export.go: CSV renderers
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/billing-engine/accounting"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears every stored row. All stores implement it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *accounting.Service
	Factory *factory.InvoiceFactory
	Store   Resetter

	log *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over the service. store is used only by the
// scenario loader to wipe data first.
func NewHandler(svc *accounting.Service, store Resetter, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Service: svc,
		Factory: factory.NewInvoiceFactory(),
		Store:   store,
		log:     log,
	}
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ListPeriods returns the company's billing periods over the requested window.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	companyID := generic.CompanyID(chi.URLParam(r, "id"))
	window, err := h.windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period window", err)
		return
	}

	periods, err := h.Service.BillingPeriods(r.Context(), companyID, window)
	if err != nil {
		h.fail(w, "Failed to generate periods", err)
		return
	}

	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PeriodOverview returns every period with its resolved invoice status.
func (h *Handler) PeriodOverview(w http.ResponseWriter, r *http.Request) {
	companyID := generic.CompanyID(chi.URLParam(r, "id"))
	window, err := h.windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period window", err)
		return
	}

	overview, err := h.Service.PeriodOverview(r.Context(), companyID, window)
	if err != nil {
		h.fail(w, "Failed to build period overview", err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewDTO(overview))
}

// GetBillingConfig returns the stored configuration; unknown companies get zeros.
func (h *Handler) GetBillingConfig(w http.ResponseWriter, r *http.Request) {
	companyID := generic.CompanyID(chi.URLParam(r, "id"))

	cfg, err := h.Service.BillingConfig(r.Context(), companyID)
	if err != nil {
		h.fail(w, "Failed to load billing config", err)
		return
	}
	writeJSON(w, http.StatusOK, BillingConfigDTO{
		CompanyID: string(companyID),
		Config:    factory.CompanyConfigToJSON(cfg),
	})
}

// PutBillingConfig replaces the company's configuration.
func (h *Handler) PutBillingConfig(w http.ResponseWriter, r *http.Request) {
	companyID := generic.CompanyID(chi.URLParam(r, "id"))

	var req factory.CompanyConfigJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg := factory.CompanyConfigFromJSON(companyID, req)
	if err := h.Service.SaveBillingConfig(r.Context(), cfg); err != nil {
		h.fail(w, "Failed to save billing config", err)
		return
	}
	writeJSON(w, http.StatusOK, BillingConfigDTO{
		CompanyID: string(companyID),
		Config:    factory.CompanyConfigToJSON(cfg),
	})
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns the company's invoices, optionally for one period key.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	companyID := generic.CompanyID(chi.URLParam(r, "id"))

	invoices, err := h.Service.Invoices(r.Context(), companyID, r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, "Failed to list invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTOs(invoices))
}

// CreateInvoices expands an invoice definition and stores every occurrence.
func (h *Handler) CreateInvoices(w http.ResponseWriter, r *http.Request) {
	var req factory.RecurrenceJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.CompanyID = chi.URLParam(r, "id")

	in, err := h.Factory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice definition", err)
		return
	}

	batch, err := h.Service.CreateInvoices(r.Context(), in)
	if err != nil {
		h.fail(w, "Failed to create invoices", err)
		return
	}

	resp := CreateInvoicesResponse{Invoices: toInvoiceDTOs(batch.Invoices)}
	for _, t := range batch.Dropped {
		resp.Dropped = append(resp.Dropped, factory.ReminderToJSON(t))
	}
	writeJSON(w, http.StatusCreated, resp)
}

// SetInvoiceStatus changes one invoice's status.
func (h *Handler) SetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id := generic.InvoiceID(chi.URLParam(r, "id"))

	var req InvoiceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Service.SetInvoiceStatus(r.Context(), id, billing.InvoiceStatus(req.Status)); err != nil {
		h.fail(w, "Failed to update invoice status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// CompleteReminder marks a reminder done.
func (h *Handler) CompleteReminder(w http.ResponseWriter, r *http.Request) {
	id := generic.ReminderID(chi.URLParam(r, "id"))

	if err := h.Service.CompleteReminder(r.Context(), id); err != nil {
		h.fail(w, "Failed to complete reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PROJECT & TASK HANDLERS
// =============================================================================

// ListProjects returns all projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Service.ListProjects(r.Context())
	if err != nil {
		h.fail(w, "Failed to list projects", err)
		return
	}

	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProject creates a project.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := optionalDate(req.StartDate, "start_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}

	project, err := h.Service.CreateProject(r.Context(), worklog.Project{
		ID:         generic.ProjectID(req.ID),
		CompanyID:  generic.CompanyID(req.CompanyID),
		Name:       req.Name,
		StartDate:  start,
		HourlyRate: generic.NewAmountFromDecimal(req.HourlyRate, generic.UnitMoney),
	})
	if err != nil {
		h.fail(w, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(project))
}

// ListTasks returns a project's tasks with their ledger summaries.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID := generic.ProjectID(chi.URLParam(r, "id"))

	project, err := h.Service.Project(r.Context(), projectID)
	if err != nil {
		h.fail(w, "Failed to load project", err)
		return
	}
	tasks, summaries, err := h.Service.ProjectTasks(r.Context(), projectID)
	if err != nil {
		h.fail(w, "Failed to list tasks", err)
		return
	}

	dtos := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = toTaskDTO(t, summaries[i], project.HourlyRate)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTask creates a task in a project.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	projectID := generic.ProjectID(chi.URLParam(r, "id"))

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	task := worklog.Task{
		ID:            generic.TaskID(req.ID),
		ProjectID:     projectID,
		Title:         req.Title,
		Estimate:      generic.Unbounded(),
		Status:        worklog.TaskStatus(req.Status),
		Position:      req.Position,
		StartOverride: req.StartOverride,
		EndOverride:   req.EndOverride,
	}
	if req.Estimate != nil {
		task.Estimate = generic.Bounded(generic.NewAmountFromDecimal(*req.Estimate, generic.UnitHours))
	}
	if req.CostOverride != nil {
		cost := generic.NewAmountFromDecimal(*req.CostOverride, generic.UnitMoney)
		task.CostOverride = &cost
	}

	created, err := h.Service.CreateTask(r.Context(), task)
	if err != nil {
		h.fail(w, "Failed to create task", err)
		return
	}
	project, err := h.Service.Project(r.Context(), projectID)
	if err != nil {
		h.fail(w, "Failed to load project", err)
		return
	}
	summary := worklog.Summarize([]worklog.Task{created}, worklog.Ledger{})[0]
	writeJSON(w, http.StatusCreated, toTaskDTO(created, summary, project.HourlyRate))
}

// ProjectSchedule lays the project's tasks out on business days.
func (h *Handler) ProjectSchedule(w http.ResponseWriter, r *http.Request) {
	projectID := generic.ProjectID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	start, err := optionalDate(q.Get("start"), "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start format (use YYYY-MM-DD)", err)
		return
	}
	capacity := generic.Hours(0)
	if raw := q.Get("capacity"); raw != "" {
		capacity, err = generic.ParseAmount(raw, generic.UnitHours)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid capacity", err)
			return
		}
	}

	res, err := h.Service.ProjectSchedule(r.Context(), projectID, start, capacity)
	if err != nil {
		h.fail(w, "Failed to build schedule", err)
		return
	}

	if wantsCSV(r) {
		writeCSV(w, fmt.Sprintf("schedule-%s.csv", projectID), scheduleCSV(res))
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(projectID, res))
}

// RecomputeProject rewrites every task's consumed hours from its entries.
func (h *Handler) RecomputeProject(w http.ResponseWriter, r *http.Request) {
	projectID := generic.ProjectID(chi.URLParam(r, "id"))

	if _, err := h.Service.Project(r.Context(), projectID); err != nil {
		h.fail(w, "Failed to load project", err)
		return
	}
	n, err := h.Service.RecomputeProject(r.Context(), projectID)
	if err != nil {
		h.fail(w, "Failed to recompute project", err)
		return
	}
	writeJSON(w, http.StatusOK, RecomputeResponse{Tasks: n})
}

// =============================================================================
// WORK ENTRY & LEDGER HANDLERS
// =============================================================================

// TaskLedger returns the task's ledger rows.
func (h *Handler) TaskLedger(w http.ResponseWriter, r *http.Request) {
	taskID := generic.TaskID(chi.URLParam(r, "id"))

	ledger, err := h.Service.TaskLedger(r.Context(), taskID)
	if err != nil {
		h.fail(w, "Failed to compute ledger", err)
		return
	}

	if wantsCSV(r) {
		writeCSV(w, fmt.Sprintf("ledger-%s.csv", taskID), ledgerCSV(ledger.Rows))
		return
	}

	project, err := h.Service.Project(r.Context(), ledger.Task.ProjectID)
	if err != nil {
		h.fail(w, "Failed to load project", err)
		return
	}
	dto := TaskLedgerDTO{
		Task: toTaskDTO(ledger.Task, ledger.Summary, project.HourlyRate),
		Rows: make([]LedgerRowDTO, len(ledger.Rows)),
	}
	for i, row := range ledger.Rows {
		dto.Rows[i] = toLedgerRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dto)
}

// LogWork records hours against a task.
func (h *Handler) LogWork(w http.ResponseWriter, r *http.Request) {
	taskID := generic.TaskID(chi.URLParam(r, "id"))

	entry, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	entry.TaskID = taskID

	saved, err := h.Service.LogWork(r.Context(), entry)
	if err != nil {
		h.fail(w, "Failed to log work", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkEntryDTO(saved))
}

// EditWorkEntry rewrites date, time, hours and notes of an entry.
func (h *Handler) EditWorkEntry(w http.ResponseWriter, r *http.Request) {
	id := generic.EntryID(chi.URLParam(r, "id"))

	entry, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	entry.ID = id

	saved, err := h.Service.EditWorkEntry(r.Context(), entry)
	if err != nil {
		h.fail(w, "Failed to edit work entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkEntryDTO(saved))
}

// DeleteWorkEntry removes an entry and recomputes its task.
func (h *Handler) DeleteWorkEntry(w http.ResponseWriter, r *http.Request) {
	id := generic.EntryID(chi.URLParam(r, "id"))

	if err := h.Service.DeleteWorkEntry(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete work entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (worklog.WorkEntry, bool) {
	var req WorkEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return worklog.WorkEntry{}, false
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", generic.WithField(err, "date"))
		return worklog.WorkEntry{}, false
	}
	return worklog.WorkEntry{
		UserID:    generic.UserID(req.UserID),
		Date:      date,
		TimeOfDay: req.TimeOfDay,
		Hours:     generic.NewAmountFromDecimal(req.Hours, generic.UnitHours),
		Notes:     req.Notes,
	}, true
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps a service error to its HTTP status. Only 500s are logged.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// windowParam reads ?from=&to= month offsets, defaulting each bound to the
// service window.
func (h *Handler) windowParam(r *http.Request) (billing.Window, error) {
	window := h.Service.DefaultWindow()
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return billing.Window{}, fmt.Errorf("from %q: %w", raw, generic.ErrInvalidInput)
		}
		window.From = n
	}
	if raw := q.Get("to"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return billing.Window{}, fmt.Errorf("to %q: %w", raw, generic.ErrInvalidInput)
		}
		window.To = n
	}
	return window, nil
}

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
