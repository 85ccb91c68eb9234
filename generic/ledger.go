/*
ledger.go - Running totals replayed in order

PURPOSE:
  Balances are never stored: they are computed by replaying events in a
  defined order and accumulating per key. RunningTotal is the accumulator
  used by the hour ledger; it lives here because nothing about it is
  specific to tasks.

CRITICAL INVARIANT:
  A RunningTotal is built fresh for every replay. It is not safe to keep one
  across calls, since rows can change between two reads of the store.

SEE ALSO:
  - worklog/ledger.go: Hour ledger (per-task balances before/after entries)
*/
package generic

// RunningTotal accumulates amounts per key. The zero value is not usable; use
// NewRunningTotal.
type RunningTotal[K comparable] struct {
	unit   Unit
	totals map[K]Amount
	order  []K
}

func NewRunningTotal[K comparable](unit Unit) *RunningTotal[K] {
	return &RunningTotal[K]{unit: unit, totals: make(map[K]Amount)}
}

// Get returns the total accumulated so far for k (zero if k was never seen).
func (r *RunningTotal[K]) Get(k K) Amount {
	if t, ok := r.totals[k]; ok {
		return t
	}
	return NewAmount(0, r.unit)
}

// Add accumulates delta for k and returns the total before the addition.
func (r *RunningTotal[K]) Add(k K, delta Amount) (before Amount) {
	before = r.Get(k)
	if _, seen := r.totals[k]; !seen {
		r.order = append(r.order, k)
	}
	r.totals[k] = before.Add(Amount{Value: delta.Value, Unit: r.unit})
	return before
}

// Keys returns keys in first-seen order.
func (r *RunningTotal[K]) Keys() []K {
	out := make([]K, len(r.order))
	copy(out, r.order)
	return out
}

// Totals returns a copy of the accumulated totals.
func (r *RunningTotal[K]) Totals() map[K]Amount {
	out := make(map[K]Amount, len(r.totals))
	for k, v := range r.totals {
		out[k] = v
	}
	return out
}
