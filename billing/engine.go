/*
engine.go - Duration and surcharge computation

PURPOSE:
  Compute is the single place billing math happens. Check-out, staff record
  creation and staff time edits all call it, so a record's derived fields are
  always consistent with its stored times and the config in effect when the
  record was last written.

THE RULES (exact, order matters):
  1. duration = (checkOut - checkIn) seconds / 3600, rounded to 2 decimal
     places, half away from zero.
  2. Overage is evaluated on the ROUNDED duration: if it exceeds
     MaxHoursPerDay, overageMinutes = round((duration - max) * 60) half away
     from zero, and the charge is minutes * rate.
  3. Late pickup is evaluated independently on the RAW check-out second:
     any second past closing starts a minute (ceiling), so one second late
     is one billable minute.

  Check-in, check-out and closing time are all anchored to the same calendar
  date, so the date term cancels out of every comparison and Compute does not
  take one.

INVALID INPUT:
  A check-out at or before check-in is rejected with NonChronologicalError
  before anything is computed. Callers validate chronology here rather than
  computing a negative duration.

SEE ALSO:
  - types.go: TimeOfDay and Date primitives
  - attendance/service.go: the orchestrator that persists Breakdowns
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONFIG - Snapshot of the billing parameters in effect
// =============================================================================

// Config is the billing parameter snapshot used for one computation. Charges
// always use the config current at the moment of computation, never the one
// in effect at check-in time; recomputing after an edit re-derives every
// field from the current snapshot.
type Config struct {
	ClosingTime             TimeOfDay
	MaxHoursPerDay          decimal.Decimal
	OverageRatePerMinute    decimal.Decimal
	LatePickupRatePerMinute decimal.Decimal
}

// =============================================================================
// BREAKDOWN - The four derived fields plus duration
// =============================================================================

// Breakdown carries everything derived from a check-in/check-out pair.
// Minutes and charges are zero when the corresponding threshold is not
// crossed; DurationHours is always set.
type Breakdown struct {
	DurationHours     decimal.Decimal
	OverageMinutes    int
	OverageCharge     decimal.Decimal
	LatePickupMinutes int
	LatePickupCharge  decimal.Decimal
}

// TotalCharges returns overage plus late pickup.
func (b Breakdown) TotalCharges() decimal.Decimal {
	return b.OverageCharge.Add(b.LatePickupCharge)
}

// =============================================================================
// COMPUTE
// =============================================================================

var (
	sixty          = decimal.NewFromInt(60)
	secondsPerHour = decimal.NewFromInt(3600)
)

// Compute derives duration, overage and late pickup from a same-day
// check-in/check-out pair. Pure: no side effects, no hidden state, so
// recomputation on the same inputs is idempotent.
func Compute(checkIn, checkOut TimeOfDay, cfg Config) (Breakdown, error) {
	if !checkOut.After(checkIn) {
		return Breakdown{}, &NonChronologicalError{CheckIn: checkIn, CheckOut: checkOut}
	}

	seconds := checkOut.Sub(checkIn)
	duration := decimal.NewFromInt(int64(seconds)).Div(secondsPerHour).Round(2)

	b := Breakdown{
		DurationHours:    duration,
		OverageCharge:    decimal.Zero,
		LatePickupCharge: decimal.Zero,
	}

	if duration.GreaterThan(cfg.MaxHoursPerDay) {
		overMinutes := duration.Sub(cfg.MaxHoursPerDay).Mul(sixty).Round(0)
		b.OverageMinutes = int(overMinutes.IntPart())
		b.OverageCharge = overMinutes.Mul(cfg.OverageRatePerMinute)
	}

	if checkOut.After(cfg.ClosingTime) {
		lateSeconds := checkOut.Sub(cfg.ClosingTime)
		lateMinutes := (lateSeconds + 59) / 60 // a single second late counts as a minute
		b.LatePickupMinutes = lateMinutes
		b.LatePickupCharge = decimal.NewFromInt(int64(lateMinutes)).Mul(cfg.LatePickupRatePerMinute)
	}

	return b, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNonChronological is returned when a check-out does not come after its
// check-in. Use with errors.Is().
var ErrNonChronological = errors.New("check-out time must be after check-in time")

// NonChronologicalError carries the offending pair.
type NonChronologicalError struct {
	CheckIn  TimeOfDay
	CheckOut TimeOfDay
}

func (e *NonChronologicalError) Error() string {
	return fmt.Sprintf("check-out %s is not after check-in %s", e.CheckOut, e.CheckIn)
}

func (e *NonChronologicalError) Unwrap() error { return ErrNonChronological }
