/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Company configuration is stored
	- Projects, tasks and entries are created
	- Invoices land in the expected periods

These tests double as end-to-end checks of the service over the memory store.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
)

func TestScenario_MonthlyRetainer(t *testing.T) {
	// GIVEN: Monthly retainer scenario
	// WHEN: Loading the scenario
	// THEN: The layout task shows the 10 / 7 / 4 ledger and three invoices exist

	handler := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, handler.loadMonthlyRetainerScenario(ctx))

	ledger, err := handler.Service.TaskLedger(ctx, "acme-layout")
	require.NoError(t, err)
	require.Len(t, ledger.Rows, 3)
	for i, want := range []float64{10, 7, 4} {
		h, ok := ledger.Rows[i].Available.Hours()
		require.True(t, ok)
		assert.Equal(t, want, h.Float64(), "row %d", i)
	}
	assert.True(t, ledger.Summary.OverBudget)

	invoices, err := handler.Service.Invoices(ctx, "acme", "")
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.Equal(t, "2024-03-01_2024-03-31", billing.PeriodKey(invoices[0].Period))
	// shift_period moves each occurrence into its own month.
	assert.Equal(t, "2024-04-01_2024-04-30", billing.PeriodKey(invoices[1].Period))
	for _, inv := range invoices {
		require.Len(t, inv.Reminders, 3)
		assert.Equal(t, billing.ReceivePaymentTitle, inv.Reminders[2].Title)
	}
}

func TestScenario_CrossingCycle(t *testing.T) {
	// GIVEN: Crossing cycle scenario loaded on 2024-03-10
	handler := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, handler.loadCrossingCycleScenario(ctx))

	// WHEN: Building the overview from two months back to next month
	overview, err := handler.Service.PeriodOverview(ctx, "globex", billing.Window{From: -2, To: 1})
	require.NoError(t, err)

	// THEN: Each period resolves from its own invoices
	require.Len(t, overview.Periods, 4)
	want := []struct {
		key    string
		status billing.PeriodStatus
	}{
		{"2023-12-26_2024-01-25", billing.PeriodPaid},
		{"2024-01-26_2024-02-25", billing.PeriodPartiallyPaid},
		{"2024-02-26_2024-03-25", billing.PeriodGenerated},
		{"2024-03-26_2024-04-25", billing.PeriodNoInvoices},
	}
	for i, w := range want {
		assert.Equal(t, w.key, overview.Periods[i].Period.Key)
		assert.Equal(t, w.status, overview.Periods[i].Status, w.key)
	}

	require.NotNil(t, overview.Current)
	assert.Equal(t, "2024-02-26_2024-03-25", overview.Current.Key)
}

func TestScenario_OverBudget(t *testing.T) {
	// GIVEN: Over budget scenario
	handler := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, handler.loadOverBudgetScenario(ctx))

	// THEN: The auth task is 3h over its 8h estimate
	tasks, summaries, err := handler.Service.ProjectTasks(ctx, "initech-app")
	require.NoError(t, err)
	require.Len(t, tasks, 4)
	byID := map[generic.TaskID]int{}
	for i, task := range tasks {
		byID[task.ID] = i
	}
	auth := summaries[byID["initech-auth"]]
	assert.True(t, auth.OverBudget)
	assert.Equal(t, 11.0, auth.Consumed.Float64())

	// AND: The support task is unbounded and never over budget
	support := summaries[byID["initech-support"]]
	assert.True(t, support.Remaining.IsUnbounded())
	assert.False(t, support.OverBudget)

	// AND: The launch task keeps its start override and warns about the end
	res, err := handler.Service.ProjectSchedule(ctx, "initech-app", generic.TimePoint{}, generic.Hours(0))
	require.NoError(t, err)
	require.Len(t, res.Items, 4)
	launch := res.Items[3]
	assert.Equal(t, generic.TaskID("initech-launch"), launch.TaskID)
	assert.True(t, launch.Overridden)
	assert.NotEmpty(t, launch.Warnings)
	// Unbounded support task takes no days.
	assert.Equal(t, 0, res.Items[2].Days)
}

func TestScenario_AllScenariosLoadThroughAPI(t *testing.T) {
	// GIVEN: All available scenarios
	// WHEN: Loading each one twice through the API
	// THEN: None errors and the second load starts from an empty store

	srv := newTestServer(t)
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			for i := 0; i < 2; i++ {
				rec := srv.do("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			}

			rec := srv.do("GET", "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, s.ID, decode[ScenarioDTO](t, rec).ID)
		})
	}
}

func TestScenario_ListUnknownAndReset(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do("GET", "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))

	rec = srv.do("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "over-budget"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do("POST", "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do("GET", "/api/projects", nil)
	assert.Empty(t, decode[[]ProjectDTO](t, rec))
	rec = srv.do("GET", "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
}
