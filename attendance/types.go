/*
Package attendance tracks child attendance records and orchestrates
check-in / check-out / staff correction flows.

PURPOSE:
  This package owns the AttendanceRecord lifecycle: created open on
  check-in, closed exactly once on check-out (or corrected by staff, which
  re-runs the billing engine). It enforces the core invariant that a child
  has at most one open record per day.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: One attendance day for one child, with derived billing fields
  - MonthKey: The partition key ("YYYY-MM") records are stored under
  - Actor: Who performed an operation ("parent" or "staff")
  - Clock: Injected time source so flows are deterministic under test

SEE ALSO:
  - store.go: partition store interface
  - resolver.go: open-record and range queries
  - service.go: the orchestrator
*/
package attendance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/littlepine/timekeeper/billing"
)

// =============================================================================
// ACTOR - Provenance of a record mutation
// =============================================================================

type Actor string

const (
	ActorParent Actor = "parent"
	ActorStaff  Actor = "staff"
)

// =============================================================================
// RECORD - One attendance day for one child
// =============================================================================

// Record is a single attendance entry. CheckOutTime is nil while the child
// is present; DurationHours is nil until checkout. A record with a
// check-out always carries derived fields consistent with billing.Compute
// over its stored times and the config in effect at save time.
type Record struct {
	ID                string              `json:"id"`
	ChildID           string              `json:"child_id"`
	Date              billing.Date        `json:"date"`
	CheckInTime       billing.TimeOfDay   `json:"check_in_time"`
	CheckOutTime      *billing.TimeOfDay  `json:"check_out_time"`
	DurationHours     *decimal.Decimal    `json:"duration_hours"`
	OverageMinutes    int                 `json:"overage_minutes"`
	OverageCharge     decimal.Decimal     `json:"overage_charge"`
	LatePickupMinutes int                 `json:"late_pickup_minutes"`
	LatePickupCharge  decimal.Decimal     `json:"late_pickup_charge"`
	CheckedInBy       Actor               `json:"checked_in_by"`
	CheckedOutBy      Actor               `json:"checked_out_by,omitempty"`
	Notes             string              `json:"notes,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// Open reports whether the child is still checked in on this record.
func (r Record) Open() bool { return r.CheckOutTime == nil }

// applyBreakdown overwrites every derived field from a fresh computation.
// Previously stored derived values are never trusted.
func (r *Record) applyBreakdown(b billing.Breakdown) {
	d := b.DurationHours
	r.DurationHours = &d
	r.OverageMinutes = b.OverageMinutes
	r.OverageCharge = b.OverageCharge
	r.LatePickupMinutes = b.LatePickupMinutes
	r.LatePickupCharge = b.LatePickupCharge
}

// NewRecordID generates a unique record identifier.
func NewRecordID() string { return "rec_" + uuid.NewString() }

// =============================================================================
// MONTH KEY - Partition key for the record store
// =============================================================================

// MonthKey identifies one month partition, formatted "YYYY-MM". A record's
// partition key is derived from its date and never changes after creation.
type MonthKey string

func MonthKeyFor(d billing.Date) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", d.Year, int(d.Month)))
}

// MonthKeysInRange returns every partition key between the partitions of
// start and end, inclusive, in chronological order.
func MonthKeysInRange(start, end billing.Date) []MonthKey {
	if end.Before(start) {
		return nil
	}
	var keys []MonthKey
	year, month := start.Year, start.Month
	for {
		key := MonthKeyFor(billing.NewDate(year, month, 1))
		keys = append(keys, key)
		if year == end.Year && month == end.Month {
			return keys
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
}

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies "now" to the orchestrator. Production wires a wall clock in
// the configured timezone; tests wire a fixed instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
