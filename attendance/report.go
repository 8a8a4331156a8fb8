/*
report.go - Per-child date-range report

Aggregates a child's records into the totals the billing report shows:
visits, hours, and the two surcharge totals. Open records count as a visit
but contribute nothing to hours or charges until they close.
*/
package attendance

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/littlepine/timekeeper/billing"
)

// ChildReport summarizes one child's attendance over a date range.
type ChildReport struct {
	Child  ChildInfo
	Start  billing.Date
	End    billing.Date
	Records []Record

	TotalVisits           int
	TotalHours            decimal.Decimal
	TotalOverageCharges   decimal.Decimal
	TotalLatePickupCharges decimal.Decimal
}

// TotalCharges returns the combined surcharges for the range.
func (r *ChildReport) TotalCharges() decimal.Decimal {
	return r.TotalOverageCharges.Add(r.TotalLatePickupCharges)
}

// ChildReport builds the report for [start, end].
func (s *Service) ChildReport(ctx context.Context, childID string, start, end billing.Date) (*ChildReport, error) {
	child, err := s.children.Child(ctx, childID)
	if err != nil {
		return nil, err
	}

	records, err := s.resolver.FindRecordsInRange(ctx, childID, start, end)
	if err != nil {
		return nil, err
	}

	report := &ChildReport{
		Child:                  child,
		Start:                  start,
		End:                    end,
		Records:                records,
		TotalVisits:            len(records),
		TotalHours:             decimal.Zero,
		TotalOverageCharges:    decimal.Zero,
		TotalLatePickupCharges: decimal.Zero,
	}
	for _, rec := range records {
		if rec.DurationHours != nil {
			report.TotalHours = report.TotalHours.Add(*rec.DurationHours)
		}
		report.TotalOverageCharges = report.TotalOverageCharges.Add(rec.OverageCharge)
		report.TotalLatePickupCharges = report.TotalLatePickupCharges.Add(rec.LatePickupCharge)
	}
	return report, nil
}
