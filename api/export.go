package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/planning"
	"github.com/warp/billing-engine/worklog"
)

var ledgerHeader = []string{"entry_id", "date", "time_of_day", "available", "used", "remaining"}

var scheduleHeader = []string{"task_id", "title", "start", "end", "days", "overridden", "missing"}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "csv")
}

// ledgerCSV renders ledger rows. Unbounded balances are written as "unbounded".
func ledgerCSV(rows []worklog.EntryBalance) [][]string {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, ledgerHeader)
	for _, r := range rows {
		out = append(out, []string{
			string(r.EntryID),
			r.Date.String(),
			r.TimeOfDay,
			budgetCell(r.Available),
			r.Used.String(),
			budgetCell(r.Remaining),
		})
	}
	return out
}

func scheduleCSV(res planning.Result) [][]string {
	out := make([][]string, 0, len(res.Items)+1)
	out = append(out, scheduleHeader)
	for _, it := range res.Items {
		out = append(out, []string{
			string(it.TaskID),
			it.Title,
			it.Start.String(),
			it.End.String(),
			strconv.Itoa(it.Days),
			strconv.FormatBool(it.Overridden),
			strconv.FormatBool(it.Missing),
		})
	}
	return out
}

func budgetCell(b generic.Budget) string {
	h, ok := b.Hours()
	if !ok {
		return "unbounded"
	}
	return h.String()
}

func writeCSV(w http.ResponseWriter, filename string, records [][]string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	cw := csv.NewWriter(w)
	cw.WriteAll(records)
}
