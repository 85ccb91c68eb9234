package accounting_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/billing-engine/accounting"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/store/memory"
	"github.com/warp/billing-engine/worklog"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func d(s string) generic.TimePoint { return generic.MustParseDate(s) }

func newService(t *testing.T) (*accounting.Service, *memory.Memory) {
	t.Helper()
	repo := memory.NewMemory()
	clock := fixedNow
	svc := accounting.NewService(repo, zap.NewNop(), accounting.Options{
		DefaultCapacity: generic.Hours(8),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	return svc, repo
}

func seedTask(t *testing.T, svc *accounting.Service, estimate generic.Budget) (worklog.Project, worklog.Task) {
	t.Helper()
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, worklog.Project{
		CompanyID:  "acme",
		Name:       "Site",
		StartDate:  d("2024-03-04"),
		HourlyRate: generic.Money(100),
	})
	require.NoError(t, err)

	task, err := svc.CreateTask(ctx, worklog.Task{ProjectID: project.ID, Title: "Layout", Estimate: estimate})
	require.NoError(t, err)
	return project, task
}

func logWork(t *testing.T, svc *accounting.Service, task generic.TaskID, date string, hours float64) worklog.WorkEntry {
	t.Helper()
	e, err := svc.LogWork(context.Background(), worklog.WorkEntry{TaskID: task, Date: d(date), Hours: generic.Hours(hours)})
	require.NoError(t, err)
	return e
}

func hoursOf(t *testing.T, b generic.Budget) float64 {
	t.Helper()
	h, ok := b.Hours()
	require.True(t, ok)
	return h.Float64()
}

// =============================================================================
// PERIODS
// =============================================================================

func TestBillingPeriods_DefaultConfigIsCalendarMonth(t *testing.T) {
	svc, _ := newService(t)

	periods, err := svc.BillingPeriods(context.Background(), "nobody", billing.Window{From: 0, To: 0})
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2024-03-01_2024-03-31", periods[0].Key)
}

func TestBillingPeriods_UsesStoredCycle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveBillingConfig(ctx, billing.CompanyConfig{
		CompanyID: "acme",
		Cycle:     billing.Cycle{StartDay: 26, EndDay: 25},
	}))

	periods, err := svc.BillingPeriods(ctx, "acme", svc.DefaultWindow())
	require.NoError(t, err)
	require.Len(t, periods, 14)
	assert.Equal(t, "2024-01-26_2024-02-25", periods[0].Key)
	assert.Equal(t, "2024-02-26_2024-03-25", periods[1].Key)
}

func TestPeriodOverview_ResolvesStatusPerPeriod(t *testing.T) {
	// GIVEN: A 26 -> 25 cycle and two invoices in the current period
	// WHEN: One is paid
	// THEN: The current period is partially paid and flagged as current

	svc, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.SaveBillingConfig(ctx, billing.CompanyConfig{
		CompanyID: "acme",
		Cycle:     billing.Cycle{StartDay: 26, EndDay: 25},
	}))

	current, _ := generic.ParsePeriod("2024-02-26", "2024-03-25")
	batch, err := svc.CreateInvoices(ctx, billing.RecurrenceInput{
		Base: billing.InvoiceDraft{
			CompanyID: "acme", Title: "Fatura", Amount: generic.Money(500),
			DueDate: d("2024-03-30"), Period: current,
		},
		Frequency: billing.FreqWeekly,
		Count:     2,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetInvoiceStatus(ctx, batch.Invoices[0].ID, billing.InvoicePaid))

	ov, err := svc.PeriodOverview(ctx, "acme", billing.Window{From: -1, To: 1})
	require.NoError(t, err)
	require.Len(t, ov.Periods, 3)

	assert.Equal(t, billing.PeriodNoInvoices, ov.Periods[0].Status)
	assert.Equal(t, billing.PeriodPartiallyPaid, ov.Periods[1].Status)
	assert.True(t, ov.Periods[1].Current)
	assert.True(t, ov.Periods[1].Total.Equal(generic.Money(1000)))
	require.NotNil(t, ov.Current)
	assert.Equal(t, "2024-02-26_2024-03-25", ov.Current.Key)

	// Canceling the pending one leaves only the paid invoice
	require.NoError(t, svc.SetInvoiceStatus(ctx, batch.Invoices[1].ID, billing.InvoiceCanceled))
	ov, err = svc.PeriodOverview(ctx, "acme", billing.Window{From: 0, To: 0})
	require.NoError(t, err)
	assert.Equal(t, billing.PeriodPaid, ov.Periods[0].Status)
}

func TestPeriodOverview_InvalidWindow(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.PeriodOverview(context.Background(), "acme", billing.Window{From: 2, To: 1})
	assert.ErrorIs(t, err, generic.ErrInvalidOffsetRange)
}

// =============================================================================
// WORK ENTRIES & LEDGER
// =============================================================================

func TestLogWork_CapturesSnapshotAndRecomputes(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	_, task := seedTask(t, svc, generic.BoundedHours(10))

	e1 := logWork(t, svc, task.ID, "2024-03-04", 3)
	logWork(t, svc, task.ID, "2024-03-05", 3)
	logWork(t, svc, task.ID, "2024-03-06", 5)

	assert.True(t, e1.EstimateSnapshot.Equal(generic.BoundedHours(10)))
	assert.NotEmpty(t, e1.ID)

	stored, err := repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.Consumed.Equal(generic.Hours(11)))

	ledger, err := svc.TaskLedger(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, ledger.Rows, 3)
	assert.Equal(t, 10.0, hoursOf(t, ledger.Rows[0].Available))
	assert.Equal(t, 7.0, hoursOf(t, ledger.Rows[1].Available))
	assert.Equal(t, 4.0, hoursOf(t, ledger.Rows[2].Available))
	assert.Equal(t, -1.0, hoursOf(t, ledger.Rows[2].Remaining))
	assert.True(t, ledger.Summary.OverBudget)
}

func TestLogWork_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.LogWork(ctx, worklog.WorkEntry{TaskID: "ghost", Date: d("2024-03-04"), Hours: generic.Hours(1)})
	assert.True(t, generic.IsNotFound(err))

	_, err = svc.LogWork(ctx, worklog.WorkEntry{TaskID: "ghost", Hours: generic.Hours(1)})
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestEditWorkEntry_KeepsSnapshotAndRebalances(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	_, task := seedTask(t, svc, generic.BoundedHours(10))

	first := logWork(t, svc, task.ID, "2024-03-04", 3)
	second := logWork(t, svc, task.ID, "2024-03-05", 3)

	// Move the second entry before the first one and make it longer
	edited, err := svc.EditWorkEntry(ctx, worklog.WorkEntry{ID: second.ID, Date: d("2024-03-01"), Hours: generic.Hours(6)})
	require.NoError(t, err)
	assert.True(t, edited.EstimateSnapshot.Equal(second.EstimateSnapshot))
	assert.Equal(t, second.CreatedAt, edited.CreatedAt)

	ledger, err := svc.TaskLedger(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, ledger.Rows[0].EntryID)
	assert.Equal(t, first.ID, ledger.Rows[1].EntryID)
	assert.Equal(t, 4.0, hoursOf(t, ledger.Rows[1].Available))

	stored, _ := repo.GetTask(ctx, task.ID)
	assert.True(t, stored.Consumed.Equal(generic.Hours(9)))
}

func TestEditWorkEntry_RejectsNegativeHours(t *testing.T) {
	svc, _ := newService(t)
	_, task := seedTask(t, svc, generic.BoundedHours(10))
	e := logWork(t, svc, task.ID, "2024-03-04", 3)

	_, err := svc.EditWorkEntry(context.Background(), worklog.WorkEntry{ID: e.ID, Date: d("2024-03-04"), Hours: generic.Hours(-2)})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestDeleteWorkEntry_Recomputes(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	_, task := seedTask(t, svc, generic.BoundedHours(10))

	e := logWork(t, svc, task.ID, "2024-03-04", 3)
	logWork(t, svc, task.ID, "2024-03-05", 2)

	require.NoError(t, svc.DeleteWorkEntry(ctx, e.ID))

	stored, _ := repo.GetTask(ctx, task.ID)
	assert.True(t, stored.Consumed.Equal(generic.Hours(2)))

	err := svc.DeleteWorkEntry(ctx, e.ID)
	assert.True(t, generic.IsNotFound(err))
}

func TestRecomputeAll_RestoresConsumedHours(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	_, task := seedTask(t, svc, generic.Unbounded())
	logWork(t, svc, task.ID, "2024-03-04", 4)

	// Simulate drift
	require.NoError(t, repo.UpdateTaskConsumed(ctx, task.ID, generic.Hours(99)))

	n, err := svc.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, _ := repo.GetTask(ctx, task.ID)
	assert.True(t, stored.Consumed.Equal(generic.Hours(4)))
}

func TestCreateTask_EstimateBounds(t *testing.T) {
	svc, _ := newService(t)
	project, _ := seedTask(t, svc, generic.BoundedHours(5))
	ctx := context.Background()

	tests := []struct {
		name     string
		estimate generic.Budget
		wantErr  bool
	}{
		{"negative", generic.BoundedHours(-1), true},
		{"above the maximum", generic.BoundedHours(worklog.MaxEstimateHours + 1), true},
		{"beyond int64 days", generic.BoundedHours(1e20), true},
		{"at the maximum", generic.BoundedHours(worklog.MaxEstimateHours), false},
		{"unbounded", generic.Unbounded(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTask(ctx, worklog.Task{ProjectID: project.ID, Title: tt.name, Estimate: tt.estimate})
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProjectTasks_Summaries(t *testing.T) {
	svc, _ := newService(t)
	project, task := seedTask(t, svc, generic.BoundedHours(5))
	logWork(t, svc, task.ID, "2024-03-04", 2)

	tasks, summaries, err := svc.ProjectTasks(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 3.0, hoursOf(t, summaries[0].Remaining))
}

// =============================================================================
// SCHEDULE
// =============================================================================

func TestProjectSchedule_CapacityFallbacks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	project, _ := seedTask(t, svc, generic.BoundedHours(16))

	// Service default: 8h -> 2 days, starting at the project start date
	res, err := svc.ProjectSchedule(ctx, project.ID, generic.TimePoint{}, generic.Amount{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", res.Items[0].Start.String())
	assert.Equal(t, 2, res.Items[0].Days)

	// Company configuration: 4h -> 4 days
	require.NoError(t, svc.SaveBillingConfig(ctx, billing.CompanyConfig{CompanyID: "acme", DailyCapacity: generic.Hours(4)}))
	res, err = svc.ProjectSchedule(ctx, project.ID, generic.TimePoint{}, generic.Amount{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Items[0].Days)

	// Request wins: 16h -> 1 day, from an explicit start
	res, err = svc.ProjectSchedule(ctx, project.ID, d("2024-04-01"), generic.Hours(16))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Items[0].Days)
	assert.Equal(t, "2024-04-01", res.End.String())
}

func TestProjectSchedule_UnknownProject(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ProjectSchedule(context.Background(), "ghost", generic.TimePoint{}, generic.Amount{})
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// INVOICES
// =============================================================================

func TestCreateInvoices_PersistsSeriesWithReminders(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	project, task := seedTask(t, svc, generic.BoundedHours(10))
	logWork(t, svc, task.ID, "2024-03-04", 6)

	period, _ := generic.ParsePeriod("2024-03-01", "2024-03-31")
	batch, err := svc.CreateInvoices(ctx, billing.RecurrenceInput{
		Base: billing.InvoiceDraft{
			CompanyID: "acme", TaskID: task.ID, Title: "Fatura",
			Amount: generic.Money(600), DueDate: d("2024-04-05"), Period: period,
		},
		Frequency: billing.FreqMonthly,
		Count:     3,
		Reminders: []billing.ReminderTemplate{
			billing.RelativeReminder{Title: "Enviar NF", DaysBefore: 2},
			billing.FixedReminder{Title: "Broken", Date: "2024-13-01"},
		},
	})
	require.NoError(t, err)
	require.Len(t, batch.Invoices, 3)
	assert.Len(t, batch.Dropped, 1)

	inv := batch.Invoices[2]
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, project.ID, inv.ProjectID)
	assert.True(t, inv.HoursWorked.Equal(generic.Hours(6)))
	assert.Equal(t, "2024-06-05", inv.DueDate.String())
	require.Len(t, inv.Reminders, 2)
	assert.Equal(t, inv.ID, inv.Reminders[0].InvoiceID)

	stored, err := svc.Invoices(ctx, "acme", "2024-03-01_2024-03-31")
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	// Completing a reminder is visible on the stored invoice
	require.NoError(t, svc.CompleteReminder(ctx, inv.Reminders[1].ID))
	got, err := repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Reminders[1].Completed)
	assert.False(t, got.Reminders[0].Completed)
}

func TestCreateInvoices_HardFailureWritesNothing(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateInvoices(ctx, billing.RecurrenceInput{
		Base:  billing.InvoiceDraft{CompanyID: "acme", Title: "x", DueDate: d("2024-04-05")},
		Count: 2, Frequency: billing.FreqMonthly,
	})
	assert.ErrorIs(t, err, generic.ErrMissingPeriod)

	invoices, err := svc.Invoices(ctx, "acme", "")
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestSetInvoiceStatus_Errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetInvoiceStatus(ctx, "any", "lost"), generic.ErrInvalidInput)
	assert.True(t, generic.IsNotFound(svc.SetInvoiceStatus(ctx, "ghost", billing.InvoicePaid)))
	assert.True(t, generic.IsNotFound(svc.CompleteReminder(ctx, "ghost")))
}

func TestInvoices_BadPeriodKey(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Invoices(context.Background(), "acme", "march")
	assert.True(t, generic.IsClientError(err))
}
