package worklog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func entry(id, task, date, tod string, hours float64, snapshot generic.Budget, created time.Time) worklog.WorkEntry {
	return worklog.WorkEntry{
		ID:               generic.EntryID(id),
		TaskID:           generic.TaskID(task),
		Date:             generic.MustParseDate(date),
		TimeOfDay:        tod,
		Hours:            generic.Hours(hours),
		EstimateSnapshot: snapshot,
		CreatedAt:        created,
	}
}

func availableHours(t *testing.T, l worklog.Ledger, id string) float64 {
	t.Helper()
	b, ok := l.Available(generic.EntryID(id))
	require.True(t, ok, "entry %s not in ledger", id)
	h, bounded := b.Hours()
	require.True(t, bounded, "entry %s should be bounded", id)
	return h.Float64()
}

func rowIDs(l worklog.Ledger) []generic.EntryID {
	ids := make([]generic.EntryID, len(l.Rows))
	for i, r := range l.Rows {
		ids[i] = r.EntryID
	}
	return ids
}

// =============================================================================
// BALANCES
// =============================================================================

func TestComputeLedger_BalanceBeforeEachEntry(t *testing.T) {
	// GIVEN: Estimate 10h, entries of 3h, 3h, 5h on consecutive days
	// THEN: HD = 10, 7, 4 and remaining = 7, 4, -1

	est := generic.BoundedHours(10)
	entries := []worklog.WorkEntry{
		entry("e1", "t1", "2024-03-01", "", 3, est, t0),
		entry("e2", "t1", "2024-03-02", "", 3, est, t0),
		entry("e3", "t1", "2024-03-03", "", 5, est, t0),
	}

	l := worklog.ComputeLedger(entries)

	assert.Equal(t, 10.0, availableHours(t, l, "e1"))
	assert.Equal(t, 7.0, availableHours(t, l, "e2"))
	assert.Equal(t, 4.0, availableHours(t, l, "e3"))

	last, _ := l.Row("e3")
	rem, _ := last.Remaining.Hours()
	assert.Equal(t, -1.0, rem.Float64())
	assert.True(t, last.Remaining.IsOver())
	assert.True(t, l.ConsumedBy("t1").Equal(generic.Hours(11)))
}

func TestComputeLedger_ClosureProperty(t *testing.T) {
	// For a bounded task with constant snapshot S: the last entry's remaining
	// balance equals S - sum(hours).
	est := generic.BoundedHours(40)
	hours := []float64{1.5, 2, 0.25, 8, 3.75, 6}

	var entries []worklog.WorkEntry
	for i, h := range hours {
		entries = append(entries, entry(string(rune('a'+i)), "t1", "2024-03-01", "", h, est, t0.Add(time.Duration(i)*time.Minute)))
	}

	l := worklog.ComputeLedger(entries)
	require.Len(t, l.Rows, len(hours))

	last := l.Rows[len(l.Rows)-1]
	rem, ok := last.Remaining.Hours()
	require.True(t, ok)
	assert.True(t, rem.Equal(generic.Hours(40-21.5)), "got %s", rem)
}

func TestComputeLedger_TasksAccumulateIndependently(t *testing.T) {
	a := generic.BoundedHours(5)
	b := generic.BoundedHours(20)
	entries := []worklog.WorkEntry{
		entry("a1", "A", "2024-03-01", "", 2, a, t0),
		entry("b1", "B", "2024-03-01", "", 4, b, t0),
		entry("a2", "A", "2024-03-02", "", 1, a, t0),
		entry("b2", "B", "2024-03-02", "", 4, b, t0),
	}

	l := worklog.ComputeLedger(entries)

	assert.Equal(t, 3.0, availableHours(t, l, "a2"))
	assert.Equal(t, 16.0, availableHours(t, l, "b2"))
	assert.Len(t, l.TaskRows("A"), 2)
}

func TestComputeLedger_UsesEachEntrysOwnSnapshot(t *testing.T) {
	// GIVEN: The estimate was raised from 10h to 20h between two entries
	// THEN: The second entry is measured against its own snapshot

	entries := []worklog.WorkEntry{
		entry("e1", "t1", "2024-03-01", "", 4, generic.BoundedHours(10), t0),
		entry("e2", "t1", "2024-03-02", "", 4, generic.BoundedHours(20), t0),
	}

	l := worklog.ComputeLedger(entries)

	assert.Equal(t, 10.0, availableHours(t, l, "e1"))
	assert.Equal(t, 16.0, availableHours(t, l, "e2"))
}

func TestComputeLedger_UnboundedTask(t *testing.T) {
	entries := []worklog.WorkEntry{
		entry("e1", "t1", "2024-03-01", "", 3, generic.Unbounded(), t0),
		entry("e2", "t1", "2024-03-02", "", 7, generic.Unbounded(), t0),
	}

	l := worklog.ComputeLedger(entries)

	for _, r := range l.Rows {
		assert.True(t, r.Available.IsUnbounded())
		assert.True(t, r.Remaining.IsUnbounded())
		assert.False(t, r.Remaining.IsOver())
	}
	// Consumption is still tracked
	assert.True(t, l.ConsumedBy("t1").Equal(generic.Hours(10)))
}

func TestComputeLedger_Empty(t *testing.T) {
	l := worklog.ComputeLedger(nil)

	assert.Empty(t, l.Rows)
	assert.Empty(t, l.Balances())
	assert.True(t, l.ConsumedBy("anything").IsZero())
}

// =============================================================================
// ORDERING
// =============================================================================

func TestComputeLedger_IndependentOfInsertionOrder(t *testing.T) {
	est := generic.BoundedHours(12)
	entries := []worklog.WorkEntry{
		entry("late", "t1", "2024-03-05", "", 2, est, t0),
		entry("timed", "t1", "2024-03-01", "14:00", 1, est, t0),
		entry("early", "t1", "2024-03-01", "", 3, est, t0),
		entry("mid", "t1", "2024-03-02", "08:30", 4, est, t0),
	}
	reversed := make([]worklog.WorkEntry, len(entries))
	for i := range entries {
		reversed[i] = entries[len(entries)-1-i]
	}

	a := worklog.ComputeLedger(entries)
	b := worklog.ComputeLedger(reversed)

	assert.Equal(t, []generic.EntryID{"early", "timed", "mid", "late"}, rowIDs(a))
	assert.Equal(t, rowIDs(a), rowIDs(b))
	for id, hd := range a.Balances() {
		assert.True(t, hd.Equal(b.Balances()[id]), "entry %s", id)
	}
}

func TestSortEntries_MissingTimeSortsFirst(t *testing.T) {
	est := generic.BoundedHours(8)
	sorted := worklog.SortEntries([]worklog.WorkEntry{
		entry("b", "t1", "2024-03-01", "00:00", 1, est, t0),
		entry("a", "t1", "2024-03-01", "", 1, est, t0.Add(time.Hour)),
	})

	assert.Equal(t, generic.EntryID("a"), sorted[0].ID)
}

func TestSortEntries_CreatedAtBreaksTies(t *testing.T) {
	est := generic.BoundedHours(8)
	sorted := worklog.SortEntries([]worklog.WorkEntry{
		entry("second", "t1", "2024-03-01", "10:00", 1, est, t0.Add(time.Second)),
		entry("first", "t1", "2024-03-01", "10:00", 1, est, t0),
	})

	assert.Equal(t, generic.EntryID("first"), sorted[0].ID)
}

func TestSortEntries_FullTiesKeepInputOrder(t *testing.T) {
	est := generic.BoundedHours(8)
	in := []worklog.WorkEntry{
		entry("x", "t1", "2024-03-01", "10:00", 1, est, t0),
		entry("y", "t1", "2024-03-01", "10:00", 1, est, t0),
	}
	sorted := worklog.SortEntries(in)

	assert.Equal(t, generic.EntryID("x"), sorted[0].ID)
	assert.Equal(t, generic.EntryID("y"), sorted[1].ID)
	// Input is not mutated
	assert.Equal(t, generic.EntryID("x"), in[0].ID)
}

func TestComputeLedger_DeletionReflowsLaterBalances(t *testing.T) {
	est := generic.BoundedHours(10)
	all := []worklog.WorkEntry{
		entry("e1", "t1", "2024-03-01", "", 3, est, t0),
		entry("e2", "t1", "2024-03-02", "", 3, est, t0),
		entry("e3", "t1", "2024-03-03", "", 5, est, t0),
	}

	before := worklog.ComputeLedger(all)
	after := worklog.ComputeLedger([]worklog.WorkEntry{all[0], all[2]})

	assert.Equal(t, 4.0, availableHours(t, before, "e3"))
	assert.Equal(t, 7.0, availableHours(t, after, "e3"))
}

// =============================================================================
// KNOWN TASKS
// =============================================================================

func TestComputeLedgerFor_SkipsUnknownTasks(t *testing.T) {
	est := generic.BoundedHours(10)
	tasks := []worklog.Task{{ID: "t1", Estimate: est}}
	entries := []worklog.WorkEntry{
		entry("e1", "t1", "2024-03-01", "", 3, est, t0),
		entry("ghost", "deleted", "2024-03-01", "", 9, est, t0),
		entry("e2", "t1", "2024-03-02", "", 3, est, t0),
	}

	l := worklog.ComputeLedgerFor(tasks, entries)

	assert.Equal(t, []generic.EntryID{"e1", "e2"}, rowIDs(l))
	assert.Equal(t, []generic.EntryID{"ghost"}, l.Skipped)
	_, ok := l.Available("ghost")
	assert.False(t, ok)
	assert.Equal(t, 7.0, availableHours(t, l, "e2"))
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestSummarize_AgainstCurrentEstimate(t *testing.T) {
	tasks := []worklog.Task{
		{ID: "t1", Estimate: generic.BoundedHours(5)},
		{ID: "t2", Estimate: generic.Unbounded()},
		{ID: "t3", Estimate: generic.BoundedHours(2)},
	}
	entries := []worklog.WorkEntry{
		entry("e1", "t1", "2024-03-01", "", 4, generic.BoundedHours(5), t0),
		entry("e2", "t1", "2024-03-04", "", 2, generic.BoundedHours(5), t0),
		entry("e3", "t2", "2024-03-02", "", 9, generic.Unbounded(), t0),
	}

	summaries := worklog.Summarize(tasks, worklog.ComputeLedgerFor(tasks, entries))
	require.Len(t, summaries, 3)

	assert.True(t, summaries[0].OverBudget)
	assert.Equal(t, 2, summaries[0].Entries)
	assert.Equal(t, "2024-03-04", summaries[0].LastWorked.String())

	assert.True(t, summaries[1].Remaining.IsUnbounded())
	assert.False(t, summaries[1].OverBudget)

	assert.Equal(t, 0, summaries[2].Entries)
	assert.True(t, summaries[2].Consumed.IsZero())
	assert.True(t, summaries[2].LastWorked.IsZero())
}

func TestSumBounded_ExcludesUnbounded(t *testing.T) {
	total, unbounded := worklog.SumBounded([]generic.Budget{
		generic.BoundedHours(3),
		generic.Unbounded(),
		generic.BoundedHours(4.5),
		generic.Unbounded(),
	})

	assert.True(t, total.Equal(generic.Hours(7.5)))
	assert.Equal(t, 2, unbounded)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestWorkEntry_Validate(t *testing.T) {
	valid := entry("e1", "t1", "2024-03-01", "09:30", 2, generic.BoundedHours(8), t0)
	require.NoError(t, valid.Validate())

	noTask := valid
	noTask.TaskID = ""
	assert.ErrorIs(t, noTask.Validate(), generic.ErrInvalidInput)

	noDate := valid
	noDate.Date = generic.TimePoint{}
	assert.ErrorIs(t, noDate.Validate(), generic.ErrInvalidDate)

	badTime := valid
	badTime.TimeOfDay = "9:30"
	assert.ErrorIs(t, badTime.Validate(), generic.ErrInvalidInput)

	negative := valid
	negative.Hours = generic.Hours(-1)
	assert.ErrorIs(t, negative.Validate(), generic.ErrInvalidInput)
}

func TestNewEntry_CapturesSnapshot(t *testing.T) {
	task := worklog.Task{ID: "t1", Estimate: generic.BoundedHours(10)}
	e := worklog.NewEntry(task, generic.MustParseDate("2024-03-01"), "", generic.Hours(2), t0)

	// Changing the task afterwards does not touch the entry
	task.Estimate = generic.BoundedHours(50)

	assert.True(t, e.EstimateSnapshot.Equal(generic.BoundedHours(10)))
	assert.Equal(t, t0, e.CreatedAt)
}

func TestTask_Cost(t *testing.T) {
	rate := generic.Money(100)

	scoped := worklog.Task{Estimate: generic.BoundedHours(2.5)}
	assert.True(t, scoped.Cost(rate).Equal(generic.Money(250)))

	override := generic.Money(999)
	scoped.CostOverride = &override
	assert.True(t, scoped.Cost(rate).Equal(override))

	adhoc := worklog.Task{Estimate: generic.Unbounded()}
	assert.True(t, adhoc.Cost(rate).IsZero())
}
