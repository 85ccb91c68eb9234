package billing

import "github.com/warp/billing-engine/generic"

// =============================================================================
// PERIOD STATUS RESOLVER
// =============================================================================

// ResolvePeriodStatus folds the statuses of one period's invoices into one
// aggregate. First matching rule wins:
//
//  1. no invoices                          -> no_invoices
//  2. all paid                             -> paid
//  3. all generated                        -> generated
//  4. any paid and any pending/generated   -> partially_paid
//  5. otherwise                            -> pending
//
// Canceled statuses are ignored. The result does not depend on input order.
func ResolvePeriodStatus(statuses []InvoiceStatus) PeriodStatus {
	var total, paid, generated, pending int
	for _, s := range statuses {
		switch s {
		case InvoiceCanceled:
			continue
		case InvoicePaid:
			paid++
		case InvoiceGenerated:
			generated++
		default:
			pending++
		}
		total++
	}

	switch {
	case total == 0:
		return PeriodNoInvoices
	case paid == total:
		return PeriodPaid
	case generated == total:
		return PeriodGenerated
	case paid > 0 && generated+pending > 0:
		return PeriodPartiallyPaid
	default:
		return PeriodPending
	}
}

// InvoicesForPeriod selects non-canceled invoices whose period bounds equal
// p's. Matching is by bound equality, not by any stored foreign key.
func InvoicesForPeriod(invoices []Invoice, p generic.Period) []Invoice {
	var out []Invoice
	for _, inv := range invoices {
		if inv.Status == InvoiceCanceled {
			continue
		}
		if inv.Period.Equal(p) {
			out = append(out, inv)
		}
	}
	return out
}

// StatusesForPeriod is InvoicesForPeriod reduced to statuses.
func StatusesForPeriod(invoices []Invoice, p generic.Period) []InvoiceStatus {
	matched := InvoicesForPeriod(invoices, p)
	statuses := make([]InvoiceStatus, len(matched))
	for i, inv := range matched {
		statuses[i] = inv.Status
	}
	return statuses
}

// PeriodSummary is one row of the period overview.
type PeriodSummary struct {
	Period   BillingPeriod
	Status   PeriodStatus
	Invoices int
	Total    generic.Amount
	Paid     generic.Amount
	Current  bool
}

// SummarizePeriods resolves status and totals for every period. today marks
// the period that contains it as Current.
func SummarizePeriods(periods []BillingPeriod, invoices []Invoice, today generic.TimePoint) []PeriodSummary {
	out := make([]PeriodSummary, 0, len(periods))
	for _, p := range periods {
		matched := InvoicesForPeriod(invoices, p.Period)
		statuses := make([]InvoiceStatus, len(matched))
		total := generic.NewAmount(0, generic.UnitMoney)
		paid := generic.NewAmount(0, generic.UnitMoney)
		for i, inv := range matched {
			statuses[i] = inv.Status
			total = total.Add(inv.Amount)
			if inv.Status == InvoicePaid {
				paid = paid.Add(inv.Amount)
			}
		}
		out = append(out, PeriodSummary{
			Period:   p,
			Status:   ResolvePeriodStatus(statuses),
			Invoices: len(matched),
			Total:    total,
			Paid:     paid,
			Current:  p.Contains(today),
		})
	}
	return out
}
