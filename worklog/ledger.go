/*
ledger.go - Hour ledger: balance before and after every work entry

PURPOSE:
  Answers "how many hours were left on this task when this entry was
  logged?" by replaying all entries of the task in a fixed order.

ORDERING (must be exact):
  Entries are sorted ascending by the composite key

    (date "YYYY-MM-DD", time-of-day "HH:MM" or "", created-at)

  compared as strings on the zero-padded ISO forms. An entry without a time
  of day sorts before any entry with one on the same day (the empty string
  precedes every non-empty string). Entries with identical keys keep their
  input order.

ACCUMULATION:
  running[task] starts at 0. For each entry in order:

    Available (HD) = entry.EstimateSnapshot - running[task]
    Used      (HU) = entry.Hours
    Remaining      = Available - Used
    running[task] += entry.Hours

  Balances may go negative: over-allocation is surfaced, not rejected.
  Entries whose snapshot is Unbounded (unscoped tasks) get Unbounded
  balances and never contribute to finite sums.

RECOMPUTE, NEVER CACHE:
  Every call replays from scratch. Entries can be edited or deleted between
  two reads; a cached running total would silently corrupt later balances.

EXAMPLE:
  estimate 10h, entries of 3h, 3h, 5h in ledger order:
    HD        = 10, 7, 4
    remaining =  7, 4, -1

SEE ALSO:
  - generic/ledger.go: RunningTotal
  - accounting/service.go: Recomputes after every entry write
*/
package worklog

import (
	"sort"
	"time"

	"github.com/warp/billing-engine/generic"
)

// createdAtLayout is fixed-width so that string order equals time order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// EntryBalance is one ledger row.
type EntryBalance struct {
	EntryID   generic.EntryID
	TaskID    generic.TaskID
	Date      generic.TimePoint
	TimeOfDay string

	// Available is HD: hours left immediately before this entry.
	Available generic.Budget
	// Used is HU: the entry's own hours.
	Used generic.Amount
	// Remaining is Available - Used.
	Remaining generic.Budget
}

// Ledger is the result of one replay.
type Ledger struct {
	// Rows are in ledger order.
	Rows []EntryBalance
	// Consumed is the total hours per task.
	Consumed map[generic.TaskID]generic.Amount
	// Skipped lists entries that reference tasks outside the known set.
	Skipped []generic.EntryID

	index map[generic.EntryID]int
}

// Available returns the HD of one entry.
func (l Ledger) Available(id generic.EntryID) (generic.Budget, bool) {
	i, ok := l.index[id]
	if !ok {
		return generic.Budget{}, false
	}
	return l.Rows[i].Available, true
}

// Row returns the full ledger row of one entry.
func (l Ledger) Row(id generic.EntryID) (EntryBalance, bool) {
	i, ok := l.index[id]
	if !ok {
		return EntryBalance{}, false
	}
	return l.Rows[i], true
}

// Balances maps every entry to its HD.
func (l Ledger) Balances() map[generic.EntryID]generic.Budget {
	out := make(map[generic.EntryID]generic.Budget, len(l.Rows))
	for _, r := range l.Rows {
		out[r.EntryID] = r.Available
	}
	return out
}

// ConsumedBy returns the total hours logged against a task (zero if none).
func (l Ledger) ConsumedBy(id generic.TaskID) generic.Amount {
	if c, ok := l.Consumed[id]; ok {
		return c
	}
	return generic.Hours(0)
}

// TaskRows returns the rows of one task, in ledger order.
func (l Ledger) TaskRows(id generic.TaskID) []EntryBalance {
	var out []EntryBalance
	for _, r := range l.Rows {
		if r.TaskID == id {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// ORDERING
// =============================================================================

// SortKey returns the composite ordering key of an entry.
func SortKey(e WorkEntry) [3]string {
	return [3]string{e.Date.String(), e.TimeOfDay, e.CreatedAt.UTC().Format(createdAtLayout)}
}

func lessEntry(a, b WorkEntry) bool {
	ka, kb := SortKey(a), SortKey(b)
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}

// SortEntries returns a copy of entries in ledger order. Ties keep input order.
func SortEntries(entries []WorkEntry) []WorkEntry {
	sorted := make([]WorkEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return lessEntry(sorted[i], sorted[j]) })
	return sorted
}

// =============================================================================
// REPLAY
// =============================================================================

// ComputeLedger replays every entry.
func ComputeLedger(entries []WorkEntry) Ledger {
	return replay(entries, nil)
}

// ComputeLedgerFor replays only entries whose task is in tasks. Entries that
// reference any other task (deleted, or from another project) are reported in
// Skipped instead of aborting the replay.
func ComputeLedgerFor(tasks []Task, entries []WorkEntry) Ledger {
	known := make(map[generic.TaskID]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	return replay(entries, known)
}

func replay(entries []WorkEntry, known map[generic.TaskID]bool) Ledger {
	running := generic.NewRunningTotal[generic.TaskID](generic.UnitHours)
	l := Ledger{index: make(map[generic.EntryID]int, len(entries))}

	for _, e := range SortEntries(entries) {
		if known != nil && !known[e.TaskID] {
			l.Skipped = append(l.Skipped, e.ID)
			continue
		}

		before := running.Add(e.TaskID, e.Hours)
		available := e.EstimateSnapshot.Less(before)

		l.index[e.ID] = len(l.Rows)
		l.Rows = append(l.Rows, EntryBalance{
			EntryID:   e.ID,
			TaskID:    e.TaskID,
			Date:      e.Date,
			TimeOfDay: e.TimeOfDay,
			Available: available,
			Used:      e.Hours,
			Remaining: available.Less(e.Hours),
		})
	}

	l.Consumed = running.Totals()
	return l
}

// =============================================================================
// SUMMARIES
// =============================================================================

// TaskSummary is the current position of one task.
type TaskSummary struct {
	TaskID   generic.TaskID
	Estimate generic.Budget
	Consumed generic.Amount
	// Remaining is measured against the task's current estimate, which may
	// differ from the snapshots stored on older entries.
	Remaining  generic.Budget
	OverBudget bool
	Entries    int
	LastWorked generic.TimePoint
}

// Summarize reports every task against a ledger computed over its entries.
func Summarize(tasks []Task, l Ledger) []TaskSummary {
	counts := make(map[generic.TaskID]int)
	last := make(map[generic.TaskID]generic.TimePoint)
	for _, r := range l.Rows {
		counts[r.TaskID]++
		last[r.TaskID] = r.Date
	}

	out := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		consumed := l.ConsumedBy(t.ID)
		remaining := t.Estimate.Less(consumed)
		out = append(out, TaskSummary{
			TaskID:     t.ID,
			Estimate:   t.Estimate,
			Consumed:   consumed,
			Remaining:  remaining,
			OverBudget: remaining.IsOver(),
			Entries:    counts[t.ID],
			LastWorked: last[t.ID],
		})
	}
	return out
}

// SumBounded adds the finite budgets and counts the unbounded ones, which are
// never folded into the total.
func SumBounded(budgets []generic.Budget) (total generic.Amount, unbounded int) {
	total = generic.Hours(0)
	for _, b := range budgets {
		h, ok := b.Hours()
		if !ok {
			unbounded++
			continue
		}
		total = total.Add(h)
	}
	return total, unbounded
}

// Snapshot returns the estimate to capture on a new entry for task t.
func Snapshot(t Task) generic.Budget { return t.Estimate }

// NewEntry builds an entry for t with its snapshot captured now.
func NewEntry(t Task, date generic.TimePoint, timeOfDay string, hours generic.Amount, now time.Time) WorkEntry {
	return WorkEntry{
		TaskID:           t.ID,
		Date:             date,
		TimeOfDay:        timeOfDay,
		Hours:            hours,
		EstimateSnapshot: Snapshot(t),
		CreatedAt:        now,
	}
}
