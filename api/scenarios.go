/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos and end-to-end tests. Every date is derived from the
	service's "today" so the overview always has a current period.

AVAILABLE SCENARIOS:

	monthly-retainer:  Calendar-month cycle, hourly project, 3-month invoice series
	crossing-cycle:    26 -> 25 cycle with paid, generated and pending periods
	over-budget:       Tasks logged past their estimates, unbounded support task,
	                   schedule with overrides

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Save the company billing configuration
 3. Create project and tasks
 4. Log work entries (consumed hours are recomputed per entry)
 5. Create invoices via the factory

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "crossing-cycle"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler context
  - factory/invoice.go: Invoice JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "monthly-retainer",
		Name:        "Monthly Retainer",
		Description: "Calendar-month billing, hourly project and a three-month invoice series",
	},
	{
		ID:          "crossing-cycle",
		Name:        "Crossing Cycle",
		Description: "Periods from the 26th to the 25th with paid, generated and pending invoices",
	},
	{
		ID:          "over-budget",
		Name:        "Over Budget",
		Description: "Tasks logged past their estimates, an unbounded task and schedule overrides",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "monthly-retainer":
		load = h.loadMonthlyRetainerScenario
	case "crossing-cycle":
		load = h.loadCrossingCycleScenario
	case "over-budget":
		load = h.loadOverBudgetScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.log.Info("scenario loaded", zap.String("scenario", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every stored row.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMonthlyRetainerScenario(ctx context.Context) error {
	const company = generic.CompanyID("acme")

	if err := h.Service.SaveBillingConfig(ctx, billing.CompanyConfig{
		CompanyID:     company,
		Cycle:         billing.Cycle{StartDay: 1, EndDay: 31},
		DailyCapacity: generic.Hours(6),
	}); err != nil {
		return err
	}

	current := billing.Cycle{StartDay: 1, EndDay: 31}.PeriodAt(h.Service.Today(), 0)
	project, err := h.Service.CreateProject(ctx, worklog.Project{
		ID:         "acme-site",
		CompanyID:  company,
		Name:       "Site institucional",
		StartDate:  current.Start,
		HourlyRate: generic.Money(150),
	})
	if err != nil {
		return err
	}

	tasks := []worklog.Task{
		{ID: "acme-layout", Title: "Layout", Estimate: generic.BoundedHours(10), Position: 1},
		{ID: "acme-frontend", Title: "Front-end", Estimate: generic.BoundedHours(24), Position: 2},
		{ID: "acme-deploy", Title: "Deploy", Estimate: generic.BoundedHours(4), Position: 3},
	}
	if err := h.createTasks(ctx, project.ID, tasks); err != nil {
		return err
	}

	// 10h estimate consumed as 3 + 3 + 5.
	day := current.Start.NextWorkday()
	if err := h.logEntries(ctx, []worklog.WorkEntry{
		{TaskID: "acme-layout", Date: day, TimeOfDay: "09:00", Hours: generic.Hours(3), Notes: "Wireframes"},
		{TaskID: "acme-layout", Date: day, TimeOfDay: "14:00", Hours: generic.Hours(3), Notes: "Revisão com cliente"},
		{TaskID: "acme-layout", Date: day.AddWorkdays(1), TimeOfDay: "09:00", Hours: generic.Hours(5), Notes: "Ajustes finais"},
		{TaskID: "acme-frontend", Date: day.AddWorkdays(2), Hours: generic.Hours(6)},
	}); err != nil {
		return err
	}

	def := fmt.Sprintf(`{
		"company_id": %q,
		"project_id": %q,
		"title": "Retainer mensal",
		"amount": "3000.00",
		"due_date": %q,
		"period": %q,
		"hours_worked": 17,
		"frequency": "monthly",
		"count": 3,
		"shift_period": true,
		"reminders": [
			{"title": "Enviar NF", "days_before": 3},
			{"title": "Conferir horas", "days_before": 5}
		]
	}`, company, project.ID, current.End.NextWorkday().String(), current.Key)

	in, err := h.Factory.ParseRecurrence(def)
	if err != nil {
		return err
	}
	_, err = h.Service.CreateInvoices(ctx, in)
	return err
}

func (h *Handler) loadCrossingCycleScenario(ctx context.Context) error {
	const company = generic.CompanyID("globex")
	cycle := billing.Cycle{StartDay: 26, EndDay: 25}

	cfg := factory.CompanyConfigFromJSON(company, factory.CompanyConfigJSON{StartDay: 26, EndDay: 25})
	if err := h.Service.SaveBillingConfig(ctx, cfg); err != nil {
		return err
	}

	today := h.Service.Today()
	project, err := h.Service.CreateProject(ctx, worklog.Project{
		ID:         "globex-api",
		CompanyID:  company,
		Name:       "Integração de pagamentos",
		StartDate:  cycle.PeriodAt(today, -2).Start,
		HourlyRate: generic.Money(120),
	})
	if err != nil {
		return err
	}
	if err := h.createTasks(ctx, project.ID, []worklog.Task{
		{ID: "globex-webhooks", Title: "Webhooks", Estimate: generic.BoundedHours(16), Position: 1},
		{ID: "globex-reports", Title: "Relatórios", Estimate: generic.BoundedHours(12), Position: 2},
	}); err != nil {
		return err
	}

	// Two months ago: paid. Last month: one paid, one still pending.
	// Current: generated. Next: canceled, which leaves it without invoices.
	invoices := []struct {
		offset int
		title  string
		amount string
		status billing.InvoiceStatus
	}{
		{-2, "Sprint 1", "1920.00", billing.InvoicePaid},
		{-1, "Sprint 2", "1440.00", billing.InvoicePaid},
		{-1, "Sprint 2 - horas extras", "360.00", billing.InvoicePending},
		{0, "Sprint 3", "1680.00", billing.InvoiceGenerated},
		{1, "Sprint 4", "1680.00", billing.InvoiceCanceled},
	}
	for _, inv := range invoices {
		p := cycle.PeriodAt(today, inv.offset)
		count := 1
		in, err := h.Factory.FromJSON(factory.RecurrenceJSON{
			CompanyID:   string(company),
			ProjectID:   string(project.ID),
			Title:       inv.title,
			Amount:      generic.MustParseDecimal(inv.amount),
			DueDate:     p.End.AddDays(5).String(),
			PeriodStart: p.Start.String(),
			PeriodEnd:   p.End.String(),
			Status:      string(inv.status),
			Count:       &count,
		})
		if err != nil {
			return err
		}
		if _, err := h.Service.CreateInvoices(ctx, in); err != nil {
			return err
		}
	}

	webhooks := cycle.PeriodAt(today, -1).Start.NextWorkday()
	return h.logEntries(ctx, []worklog.WorkEntry{
		{TaskID: "globex-webhooks", Date: webhooks, Hours: generic.Hours(8)},
		{TaskID: "globex-webhooks", Date: webhooks.AddWorkdays(1), Hours: generic.Hours(4)},
		{TaskID: "globex-reports", Date: webhooks.AddWorkdays(2), TimeOfDay: "10:00", Hours: generic.Hours(3)},
	})
}

func (h *Handler) loadOverBudgetScenario(ctx context.Context) error {
	const company = generic.CompanyID("initech")

	if err := h.Service.SaveBillingConfig(ctx, billing.CompanyConfig{CompanyID: company}); err != nil {
		return err
	}

	start := h.Service.Today().NextWorkday()
	project, err := h.Service.CreateProject(ctx, worklog.Project{
		ID:         "initech-app",
		CompanyID:  company,
		Name:       "App de relatórios",
		StartDate:  start,
		HourlyRate: generic.Money(100),
	})
	if err != nil {
		return err
	}

	fixed := generic.Money(2500)
	if err := h.createTasks(ctx, project.ID, []worklog.Task{
		{ID: "initech-auth", Title: "Autenticação", Estimate: generic.BoundedHours(8), Position: 1},
		{ID: "initech-dashboard", Title: "Dashboard", Estimate: generic.BoundedHours(20), Position: 2, CostOverride: &fixed},
		{ID: "initech-support", Title: "Suporte", Estimate: generic.Unbounded(), Position: 3},
		{
			ID:            "initech-launch",
			Title:         "Lançamento",
			Estimate:      generic.BoundedHours(4),
			Position:      4,
			StartOverride: start.AddWorkdays(10).String(),
			EndOverride:   "not-a-date",
		},
	}); err != nil {
		return err
	}

	day := start.AddDays(-7).NextWorkday()
	return h.logEntries(ctx, []worklog.WorkEntry{
		{TaskID: "initech-auth", Date: day, TimeOfDay: "09:00", Hours: generic.Hours(5)},
		{TaskID: "initech-auth", Date: day, TimeOfDay: "14:00", Hours: generic.Hours(4)},
		{TaskID: "initech-auth", Date: day.AddWorkdays(1), Hours: generic.Hours(2), Notes: "Correção de sessão"},
		{TaskID: "initech-support", Date: day.AddWorkdays(1), Hours: generic.Hours(1.5)},
		{TaskID: "initech-support", Date: day.AddWorkdays(2), Hours: generic.Hours(2)},
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createTasks(ctx context.Context, projectID generic.ProjectID, tasks []worklog.Task) error {
	for _, t := range tasks {
		t.ProjectID = projectID
		if _, err := h.Service.CreateTask(ctx, t); err != nil {
			return fmt.Errorf("create task %s: %w", t.ID, err)
		}
	}
	return nil
}

func (h *Handler) logEntries(ctx context.Context, entries []worklog.WorkEntry) error {
	for _, e := range entries {
		if _, err := h.Service.LogWork(ctx, e); err != nil {
			return fmt.Errorf("log work on %s: %w", e.TaskID, err)
		}
	}
	return nil
}
