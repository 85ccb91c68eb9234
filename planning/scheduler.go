/*
scheduler.go - Sequential project schedule over business days

PURPOSE:
  Lays a project's tasks end to end on the calendar, one after the other,
  from a project start date. Each task occupies ceil(estimate / capacity)
  business days. Saturdays and Sundays are skipped; holidays are not modeled.

ALGORITHM:
  cursor := project start
  for each task, in the given order:
    both overrides   -> use them verbatim; cursor = override end + 1 day
    start override   -> end computed forward from it;  cursor = end + 1 day
    end override     -> start computed backward from it; cursor = end + 1 day
    no overrides     -> start = first business day >= cursor
                        end   = start + (days - 1) business days
                        cursor = end + 1 day
  A task that needs zero days sits on the cursor (start == end == cursor) and
  leaves the cursor where it was.

SOFT FAILURES (never abort the schedule):
  - An override that is not a valid calendar date is ignored, with a warning.
  - An end override earlier than the start override is ignored, with a warning.
  - A task that cannot be found renders with a fallback title and zero days.
  - A task longer than MaxTaskDays is cut to MaxTaskDays, with a warning.

SEE ALSO:
  - generic/time.go: AddWorkdays, NextWorkday
  - accounting/service.go: ProjectSchedule
*/
package planning

import (
	"fmt"
	"sort"

	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/worklog"
)

// DefaultDailyCapacity is used when no positive capacity is supplied.
const DefaultDailyCapacity = 8

// MaxTaskDays bounds how many business days a single task may occupy.
const MaxTaskDays = 10000

// MissingTaskTitle labels schedule rows whose task could not be found.
const MissingTaskTitle = "(tarefa não encontrada)"

// Input is everything one schedule computation needs.
type Input struct {
	Start generic.TimePoint
	// Capacity is hours per business day. Zero or negative means DefaultDailyCapacity.
	Capacity generic.Amount
	// Order lists the tasks to schedule, first to last.
	Order []generic.TaskID
	// Tasks resolves the ids in Order. Ids absent from the map are rendered as missing.
	Tasks map[generic.TaskID]worklog.Task
}

// ScheduleItem is one task on the calendar.
type ScheduleItem struct {
	TaskID generic.TaskID
	Title  string
	Start  generic.TimePoint
	End    generic.TimePoint
	// Days is the number of business days the task occupies.
	Days int

	Overridden bool
	Missing    bool
	Warnings   []string
}

// Result is the schedule plus the project's last day.
type Result struct {
	Items []ScheduleItem
	// End is the latest end date of any item; zero when nothing was scheduled.
	End      generic.TimePoint
	Capacity generic.Amount
}

// Warnings flattens every item's warnings, prefixed with the task id.
func (r Result) Warnings() []string {
	var out []string
	for _, it := range r.Items {
		for _, w := range it.Warnings {
			out = append(out, fmt.Sprintf("%s: %s", it.TaskID, w))
		}
	}
	return out
}

// ResolveCapacity applies the default to an absent or non-positive capacity.
func ResolveCapacity(c generic.Amount) generic.Amount {
	if !c.IsPositive() {
		return generic.NewAmountFromInt(DefaultDailyCapacity, generic.UnitHours)
	}
	return generic.NewAmountFromDecimal(c.Value, generic.UnitHours)
}

// BusinessDays converts an estimate into the number of business days it
// occupies, at most MaxTaskDays. Unbounded estimates occupy zero days.
func BusinessDays(estimate generic.Budget, capacity generic.Amount) int {
	h, ok := estimate.Hours()
	if !ok {
		return 0
	}
	return min(h.CeilDiv(ResolveCapacity(capacity)), MaxTaskDays)
}

// Schedule computes one item per entry of in.Order, in the same order.
func Schedule(in Input) Result {
	capacity := ResolveCapacity(in.Capacity)
	res := Result{Items: make([]ScheduleItem, 0, len(in.Order)), Capacity: capacity}
	cursor := in.Start

	for _, id := range in.Order {
		task, ok := in.Tasks[id]
		if !ok {
			res.Items = append(res.Items, ScheduleItem{
				TaskID:   id,
				Title:    MissingTaskTitle,
				Start:    cursor,
				End:      cursor,
				Missing:  true,
				Warnings: []string{"task not found"},
			})
			continue
		}

		var item ScheduleItem
		item, cursor = place(task, cursor, capacity)
		res.Items = append(res.Items, item)
	}

	for _, it := range res.Items {
		if it.End.After(res.End) {
			res.End = it.End
		}
	}
	return res
}

// place schedules one task and returns the cursor for the next one.
func place(task worklog.Task, cursor generic.TimePoint, capacity generic.Amount) (ScheduleItem, generic.TimePoint) {
	item := ScheduleItem{TaskID: task.ID, Title: task.Title}
	days := BusinessDays(task.Estimate, capacity)
	if days == MaxTaskDays {
		item.Warnings = append(item.Warnings,
			fmt.Sprintf("estimate needs %d or more business days, capped", MaxTaskDays))
	}

	start, hasStart := parseOverride(task.StartOverride, "start override", &item.Warnings)
	end, hasEnd := parseOverride(task.EndOverride, "end override", &item.Warnings)
	if hasStart && hasEnd && end.Before(start) {
		item.Warnings = append(item.Warnings,
			fmt.Sprintf("end override %s is before start override %s, ignored", end, start))
		hasEnd = false
	}

	switch {
	case hasStart && hasEnd:
		item.Start, item.End = start, end
		item.Days = generic.WorkdaysBetween(start, end)
	case hasStart:
		item.Start, item.End = start, spanForward(start, days)
		item.Days = days
	case hasEnd:
		item.Start, item.End = spanBackward(end, days), end
		item.Days = days
	default:
		if days == 0 {
			item.Start, item.End = cursor, cursor
			return item, cursor
		}
		item.Start = cursor.NextWorkday()
		item.End = spanForward(item.Start, days)
		item.Days = days
		return item, item.End.AddDays(1)
	}

	item.Overridden = true
	return item, item.End.AddDays(1)
}

// spanForward returns the last day of a days-long run starting at start.
func spanForward(start generic.TimePoint, days int) generic.TimePoint {
	if days <= 1 {
		return start
	}
	return start.AddWorkdays(days - 1)
}

// spanBackward returns the first day of a days-long run ending at end.
func spanBackward(end generic.TimePoint, days int) generic.TimePoint {
	if days <= 1 {
		return end
	}
	return end.AddWorkdays(-(days - 1))
}

func parseOverride(raw, label string, warnings *[]string) (generic.TimePoint, bool) {
	if raw == "" {
		return generic.TimePoint{}, false
	}
	tp, err := generic.ParseDate(raw)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s %q is not a valid date, ignored", label, raw))
		return generic.TimePoint{}, false
	}
	return tp, true
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

// OrderByPosition returns task ids sorted by Position, then creation time.
func OrderByPosition(tasks []worklog.Task) []generic.TaskID {
	sorted := make([]worklog.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	ids := make([]generic.TaskID, len(sorted))
	for i, t := range sorted {
		ids[i] = t.ID
	}
	return ids
}

// IndexTasks builds the lookup map for Input.Tasks.
func IndexTasks(tasks []worklog.Task) map[generic.TaskID]worklog.Task {
	out := make(map[generic.TaskID]worklog.Task, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t
	}
	return out
}

// ForTasks builds an Input that schedules tasks in position order.
func ForTasks(start generic.TimePoint, capacity generic.Amount, tasks []worklog.Task) Input {
	return Input{
		Start:    start,
		Capacity: capacity,
		Order:    OrderByPosition(tasks),
		Tasks:    IndexTasks(tasks),
	}
}
