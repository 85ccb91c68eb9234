// Package storetest holds the behaviour every accounting.Repository must
// share. Each store package runs Run against a fresh instance.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/accounting"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

// Factory returns an empty repository. It is called once per subtest.
type Factory func(t *testing.T) accounting.Repository

var created = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func d(s string) generic.TimePoint { return generic.MustParseDate(s) }

// Run exercises the repository contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("ProjectRoundTrip", func(t *testing.T) { projectRoundTrip(t, newRepo(t)) })
	t.Run("TaskRoundTrip", func(t *testing.T) { taskRoundTrip(t, newRepo(t)) })
	t.Run("TaskRequiresProject", func(t *testing.T) { taskRequiresProject(t, newRepo(t)) })
	t.Run("DuplicateID", func(t *testing.T) { duplicateID(t, newRepo(t)) })
	t.Run("NotFound", func(t *testing.T) { notFound(t, newRepo(t)) })
	t.Run("WorkEntrySnapshotSurvivesUpdate", func(t *testing.T) { entrySnapshotSurvivesUpdate(t, newRepo(t)) })
	t.Run("WorkEntriesByProject", func(t *testing.T) { entriesByProject(t, newRepo(t)) })
	t.Run("InvoicesWithReminders", func(t *testing.T) { invoicesWithReminders(t, newRepo(t)) })
	t.Run("InvoiceBatchIsAtomic", func(t *testing.T) { invoiceBatchIsAtomic(t, newRepo(t)) })
	t.Run("BillingConfig", func(t *testing.T) { billingConfig(t, newRepo(t)) })
}

func seedProject(t *testing.T, repo accounting.Repository) worklog.Project {
	t.Helper()
	p, err := repo.CreateProject(context.Background(), worklog.Project{
		CompanyID:  "acme",
		Name:       "Site",
		StartDate:  d("2024-03-04"),
		HourlyRate: generic.Money(120.5),
		CreatedAt:  created,
	})
	require.NoError(t, err)
	return p
}

func seedTask(t *testing.T, repo accounting.Repository, projectID generic.ProjectID, estimate generic.Budget) worklog.Task {
	t.Helper()
	task, err := repo.CreateTask(context.Background(), worklog.Task{
		ProjectID: projectID,
		Title:     "Layout",
		Estimate:  estimate,
		Consumed:  generic.Hours(0),
		Status:    worklog.TaskPending,
		CreatedAt: created,
	})
	require.NoError(t, err)
	return task
}

// =============================================================================
// PROJECTS & TASKS
// =============================================================================

func projectRoundTrip(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()

	// GIVEN: a project created without an id
	p := seedProject(t, repo)
	require.NotEmpty(t, p.ID)

	// WHEN: it is read back
	got, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)

	// THEN: every field survives
	assert.Equal(t, generic.CompanyID("acme"), got.CompanyID)
	assert.Equal(t, "2024-03-04", got.StartDate.String())
	assert.True(t, got.HourlyRate.Equal(generic.Money(120.5)))
	assert.True(t, got.CreatedAt.Equal(created))

	all, err := repo.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func taskRoundTrip(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()
	p := seedProject(t, repo)

	cost := generic.Money(900)
	bounded, err := repo.CreateTask(ctx, worklog.Task{
		ProjectID:     p.ID,
		Title:         "Layout",
		Estimate:      generic.BoundedHours(10),
		CostOverride:  &cost,
		Consumed:      generic.Hours(0),
		Status:        worklog.TaskInProgress,
		Position:      2,
		StartOverride: "2024-03-11",
		CreatedAt:     created,
	})
	require.NoError(t, err)
	unbounded := seedTask(t, repo, p.ID, generic.Unbounded())

	got, err := repo.GetTask(ctx, bounded.ID)
	require.NoError(t, err)
	assert.True(t, got.Estimate.Equal(generic.BoundedHours(10)))
	require.NotNil(t, got.CostOverride)
	assert.True(t, got.CostOverride.Equal(cost))
	assert.Equal(t, worklog.TaskInProgress, got.Status)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, "2024-03-11", got.StartOverride)
	assert.Empty(t, got.EndOverride)

	got, err = repo.GetTask(ctx, unbounded.ID)
	require.NoError(t, err)
	assert.True(t, got.Estimate.IsUnbounded(), "unbounded must not come back as a number")
	assert.Nil(t, got.CostOverride)

	require.NoError(t, repo.UpdateTaskConsumed(ctx, bounded.ID, generic.Hours(7.5)))
	got, err = repo.GetTask(ctx, bounded.ID)
	require.NoError(t, err)
	assert.True(t, got.Consumed.Equal(generic.Hours(7.5)))

	tasks, err := repo.ListTasksByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, bounded.ID, tasks[0].ID)
	assert.Equal(t, unbounded.ID, tasks[1].ID)
}

func taskRequiresProject(t *testing.T, repo accounting.Repository) {
	_, err := repo.CreateTask(context.Background(), worklog.Task{ProjectID: "ghost", Title: "x", CreatedAt: created})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func duplicateID(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()
	p := seedProject(t, repo)

	_, err := repo.CreateProject(ctx, worklog.Project{ID: p.ID, CompanyID: "acme", Name: "Again", CreatedAt: created})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func notFound(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()

	_, err := repo.GetProject(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
	_, err = repo.GetTask(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
	_, err = repo.GetWorkEntry(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
	_, err = repo.GetInvoice(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))

	assert.True(t, generic.IsNotFound(repo.UpdateTaskConsumed(ctx, "missing", generic.Hours(1))))
	assert.True(t, generic.IsNotFound(repo.UpdateWorkEntry(ctx, worklog.WorkEntry{ID: "missing", Date: d("2024-03-04")})))
	assert.True(t, generic.IsNotFound(repo.DeleteWorkEntry(ctx, "missing")))
	assert.True(t, generic.IsNotFound(repo.UpdateInvoiceStatus(ctx, "missing", billing.InvoicePaid)))
	assert.True(t, generic.IsNotFound(repo.CompleteReminder(ctx, "missing")))
}

// =============================================================================
// WORK ENTRIES
// =============================================================================

func entrySnapshotSurvivesUpdate(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()
	p := seedProject(t, repo)
	task := seedTask(t, repo, p.ID, generic.BoundedHours(10))

	// GIVEN: an entry logged while the estimate was 10h
	e, err := repo.CreateWorkEntry(ctx, worklog.WorkEntry{
		TaskID:           task.ID,
		UserID:           "ana",
		Date:             d("2024-03-04"),
		TimeOfDay:        "09:30",
		Hours:            generic.Hours(3),
		EstimateSnapshot: generic.BoundedHours(10),
		Notes:            "kickoff",
		CreatedAt:        created,
	})
	require.NoError(t, err)

	// WHEN: the caller edits it with a different snapshot and creation time
	require.NoError(t, repo.UpdateWorkEntry(ctx, worklog.WorkEntry{
		ID:               e.ID,
		TaskID:           task.ID,
		Date:             d("2024-03-05"),
		TimeOfDay:        "",
		Hours:            generic.Hours(4.25),
		EstimateSnapshot: generic.BoundedHours(99),
		Notes:            "moved",
		CreatedAt:        created.Add(time.Hour),
	}))

	// THEN: the editable fields change and the snapshot does not
	got, err := repo.GetWorkEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", got.Date.String())
	assert.Empty(t, got.TimeOfDay)
	assert.True(t, got.Hours.Equal(generic.Hours(4.25)))
	assert.Equal(t, "moved", got.Notes)
	assert.Equal(t, generic.UserID("ana"), got.UserID)
	assert.True(t, got.EstimateSnapshot.Equal(generic.BoundedHours(10)))
	assert.True(t, got.CreatedAt.Equal(created))

	require.NoError(t, repo.DeleteWorkEntry(ctx, e.ID))
	entries, err := repo.ListWorkEntriesByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func entriesByProject(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()
	p1 := seedProject(t, repo)
	p2 := seedProject(t, repo)
	t1 := seedTask(t, repo, p1.ID, generic.BoundedHours(10))
	t2 := seedTask(t, repo, p2.ID, generic.Unbounded())

	for _, id := range []generic.TaskID{t1.ID, t1.ID, t2.ID} {
		_, err := repo.CreateWorkEntry(ctx, worklog.WorkEntry{
			TaskID:           id,
			Date:             d("2024-03-04"),
			Hours:            generic.Hours(1),
			EstimateSnapshot: generic.Unbounded(),
			CreatedAt:        created,
		})
		require.NoError(t, err)
	}

	entries, err := repo.ListWorkEntriesByProject(ctx, p1.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = repo.ListWorkEntriesByTask(ctx, t2.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].EstimateSnapshot.IsUnbounded())

	_, err = repo.CreateWorkEntry(ctx, worklog.WorkEntry{TaskID: "ghost", Date: d("2024-03-04"), CreatedAt: created})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// INVOICES
// =============================================================================

func invoice(title string) billing.Invoice {
	return billing.Invoice{
		CompanyID:   "acme",
		Title:       title,
		Amount:      generic.Money(1500),
		DueDate:     d("2024-03-31"),
		Period:      generic.Period{Start: d("2024-03-01"), End: d("2024-03-31")},
		Status:      billing.InvoicePending,
		HoursWorked: generic.Hours(12),
		Reminders: []billing.Reminder{
			{Title: "Enviar nota", Date: d("2024-03-28")},
			{Title: billing.ReceivePaymentTitle, Date: d("2024-03-31"), Implicit: true},
		},
		CreatedAt: created,
	}
}

func invoicesWithReminders(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()

	// GIVEN: two invoices written in one batch
	out, err := repo.CreateInvoices(ctx, []billing.Invoice{invoice("A"), invoice("B")})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// THEN: ids are assigned and reminders point at their invoice
	for _, inv := range out {
		require.NotEmpty(t, inv.ID)
		require.Len(t, inv.Reminders, 2)
		for _, r := range inv.Reminders {
			assert.NotEmpty(t, r.ID)
			assert.Equal(t, inv.ID, r.InvoiceID)
		}
	}

	// WHEN: the first reminder is completed and the invoice paid
	require.NoError(t, repo.CompleteReminder(ctx, out[0].Reminders[0].ID))
	require.NoError(t, repo.UpdateInvoiceStatus(ctx, out[0].ID, billing.InvoicePaid))

	got, err := repo.GetInvoice(ctx, out[0].ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoicePaid, got.Status)
	assert.True(t, got.Amount.Equal(generic.Money(1500)))
	assert.True(t, got.HoursWorked.Equal(generic.Hours(12)))
	assert.True(t, got.Period.Equal(generic.Period{Start: d("2024-03-01"), End: d("2024-03-31")}))
	require.Len(t, got.Reminders, 2)
	assert.True(t, got.Reminders[0].Completed)
	assert.False(t, got.Reminders[1].Completed)
	assert.True(t, got.Reminders[1].Implicit, "reminder order is preserved")

	list, err := repo.ListInvoicesByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Title)
	assert.Len(t, list[1].Reminders, 2)

	list, err = repo.ListInvoicesByCompany(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func invoiceBatchIsAtomic(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()

	first, err := repo.CreateInvoices(ctx, []billing.Invoice{invoice("A")})
	require.NoError(t, err)

	// GIVEN: a batch whose second invoice collides with a stored id
	dup := invoice("C")
	dup.ID = first[0].ID
	_, err = repo.CreateInvoices(ctx, []billing.Invoice{invoice("B"), dup})
	require.Error(t, err)

	// THEN: nothing from the failed batch was written
	list, err := repo.ListInvoicesByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Title)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func billingConfig(t *testing.T, repo accounting.Repository) {
	ctx := context.Background()

	// GIVEN: no stored configuration
	cfg, err := repo.GetBillingConfig(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, generic.CompanyID("acme"), cfg.CompanyID)
	assert.Equal(t, billing.Cycle{}, cfg.Cycle)
	assert.True(t, cfg.DailyCapacity.IsZero())

	// WHEN: a config is saved twice
	require.NoError(t, repo.SaveBillingConfig(ctx, billing.CompanyConfig{
		CompanyID: "acme", Cycle: billing.Cycle{StartDay: 26, EndDay: 25},
	}))
	require.NoError(t, repo.SaveBillingConfig(ctx, billing.CompanyConfig{
		CompanyID: "acme", Cycle: billing.Cycle{StartDay: 26, EndDay: 25}, DailyCapacity: generic.Hours(6),
	}))

	// THEN: the last write wins
	cfg, err = repo.GetBillingConfig(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, billing.Cycle{StartDay: 26, EndDay: 25}, cfg.Cycle)
	assert.True(t, cfg.DailyCapacity.Equal(generic.Hours(6)))
}
