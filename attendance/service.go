/*
service.go - Check-in / check-out / staff correction orchestration

PURPOSE:
  The Service composes the resolver and the billing engine into the
  user-facing operations. Per (child, day) the state machine is:

    NotPresent -> CheckedIn -> CheckedOut (terminal for that day)

  Re-checking in after a same-day checkout is rejected as a duplicate
  record; the existing record must be edited instead.

CONCURRENCY:
  Every mutation runs inside Store.UpdatePartition, so the "find open
  record, then create" sequence is atomic per month partition. Two
  simultaneous check-ins for the same child cannot both succeed.

CONFIG:
  Billing always uses the config snapshot current at the moment of the
  operation. Staff edits that supply a check-out recompute every derived
  field; stored derived values are never trusted.

SEE ALSO:
  - resolver.go: read-side queries
  - billing/engine.go: the computation these operations persist
*/
package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/littlepine/timekeeper/billing"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// ConfigSource supplies the billing config snapshot current at the moment
// of computation.
type ConfigSource interface {
	Billing() billing.Config
}

// ChildInfo is the child/family metadata joined into results.
type ChildInfo struct {
	ID         string
	Name       string
	FamilyID   string
	FamilyName string
}

// ChildDirectory resolves child ids to metadata. Implemented by the
// registry; lookups failing with ErrChildNotFound are client errors.
type ChildDirectory interface {
	Child(ctx context.Context, childID string) (ChildInfo, error)
}

// Service orchestrates attendance operations.
type Service struct {
	store    Store
	resolver *Resolver
	config   ConfigSource
	children ChildDirectory
	clock    Clock
	log      *zap.Logger
}

func NewService(store Store, config ConfigSource, children ChildDirectory, clock Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		resolver: NewResolver(store),
		config:   config,
		children: children,
		clock:    clock,
		log:      log,
	}
}

// Resolver exposes the read-side queries.
func (s *Service) Resolver() *Resolver { return s.resolver }

// =============================================================================
// RESULTS
// =============================================================================

// CheckInResult confirms a check-in.
type CheckInResult struct {
	Record  Record
	Message string
}

// CheckOutResult carries the four derived fields so the caller can render
// an overage / late pickup warning.
type CheckOutResult struct {
	Record    Record
	Breakdown billing.Breakdown
	Message   string
}

// PresentChild is one row of the "currently present" dashboard.
type PresentChild struct {
	Child       ChildInfo
	RecordID    string
	CheckInTime billing.TimeOfDay
	HoursSoFar  decimal.Decimal
}

// =============================================================================
// CHECK-IN / CHECK-OUT
// =============================================================================

// CheckIn creates an open record for the child dated today. Fails with
// ErrAlreadyCheckedIn if the child already has an open record, and with
// ErrDuplicateRecord if the child already checked out today: CheckedOut is
// terminal for the day and the existing record must be edited instead.
func (s *Service) CheckIn(ctx context.Context, childID string, by Actor) (*CheckInResult, error) {
	child, err := s.children.Child(ctx, childID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date := billing.DateOf(now)
	at := billing.TimeOfDayOf(now)

	var created Record
	err = s.store.UpdatePartition(ctx, MonthKeyFor(date), func(records []Record) ([]Record, error) {
		if open := findOpen(records, childID, date); open != nil {
			return nil, &AlreadyCheckedInError{ChildID: childID, CheckInTime: open.CheckInTime}
		}
		for i := range records {
			if records[i].ChildID == childID && records[i].Date.Equal(date) {
				return nil, &DuplicateRecordError{ChildID: childID, Date: date}
			}
		}
		created = Record{
			ID:               NewRecordID(),
			ChildID:          childID,
			Date:             date,
			CheckInTime:      at,
			OverageCharge:    decimal.Zero,
			LatePickupCharge: decimal.Zero,
			CheckedInBy:      by,
			CreatedAt:        now,
		}
		return append(records, created), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("check-in",
		zap.String("child_id", childID),
		zap.String("date", date.String()),
		zap.String("by", string(by)))

	return &CheckInResult{
		Record:  created,
		Message: fmt.Sprintf("%s checked in at %s", child.Name, at.Clock12()),
	}, nil
}

// CheckOut closes the child's open record at the current time and persists
// the billing breakdown. Fails with ErrNotCheckedIn if there is no open
// record.
func (s *Service) CheckOut(ctx context.Context, childID string, by Actor) (*CheckOutResult, error) {
	child, err := s.children.Child(ctx, childID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date := billing.DateOf(now)
	at := billing.TimeOfDayOf(now)
	cfg := s.config.Billing()

	var (
		updated   Record
		breakdown billing.Breakdown
	)
	err = s.store.UpdatePartition(ctx, MonthKeyFor(date), func(records []Record) ([]Record, error) {
		open := findOpen(records, childID, date)
		if open == nil {
			return nil, &NotCheckedInError{ChildID: childID}
		}
		b, err := billing.Compute(open.CheckInTime, at, cfg)
		if err != nil {
			return nil, err
		}
		out := at
		open.CheckOutTime = &out
		open.CheckedOutBy = by
		open.applyBreakdown(b)
		updated = *open
		breakdown = b
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("check-out",
		zap.String("child_id", childID),
		zap.String("date", date.String()),
		zap.String("duration_hours", breakdown.DurationHours.String()),
		zap.Int("overage_minutes", breakdown.OverageMinutes),
		zap.Int("late_pickup_minutes", breakdown.LatePickupMinutes))

	return &CheckOutResult{
		Record:    updated,
		Breakdown: breakdown,
		Message: fmt.Sprintf("%s checked out at %s (%s hours)",
			child.Name, at.Clock12(), breakdown.DurationHours.StringFixed(2)),
	}, nil
}

// =============================================================================
// STAFF CORRECTIONS
// =============================================================================

// StaffAddRecord creates a record for an arbitrary date. If checkOut is
// non-nil the billing breakdown is computed and stored; otherwise derived
// fields stay at their zero/nil values and the record is open. Fails with
// ErrDuplicateRecord if ANY record exists for the child/date, open or not.
func (s *Service) StaffAddRecord(ctx context.Context, childID string, date billing.Date, checkIn billing.TimeOfDay, checkOut *billing.TimeOfDay, notes string) (*Record, error) {
	if _, err := s.children.Child(ctx, childID); err != nil {
		return nil, err
	}
	cfg := s.config.Billing()

	var created Record
	err := s.store.UpdatePartition(ctx, MonthKeyFor(date), func(records []Record) ([]Record, error) {
		for i := range records {
			if records[i].ChildID == childID && records[i].Date.Equal(date) {
				return nil, &DuplicateRecordError{ChildID: childID, Date: date}
			}
		}

		created = Record{
			ID:               NewRecordID(),
			ChildID:          childID,
			Date:             date,
			CheckInTime:      checkIn,
			OverageCharge:    decimal.Zero,
			LatePickupCharge: decimal.Zero,
			CheckedInBy:      ActorStaff,
			Notes:            notes,
			CreatedAt:        s.clock.Now(),
		}
		if checkOut != nil {
			b, err := billing.Compute(checkIn, *checkOut, cfg)
			if err != nil {
				return nil, err
			}
			out := *checkOut
			created.CheckOutTime = &out
			created.CheckedOutBy = ActorStaff
			created.applyBreakdown(b)
		}
		return append(records, created), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("staff add record",
		zap.String("child_id", childID),
		zap.String("date", date.String()),
		zap.Bool("checked_out", checkOut != nil))

	return &created, nil
}

// StaffEditTimes overwrites a record's check-in time. If newCheckOut is
// non-nil the check-out time is overwritten too and every derived field is
// recomputed from the current config. If newCheckOut is nil the stored
// check-out and derived fields are left exactly as they were: a partial
// edit does not clear a previous checkout.
func (s *Service) StaffEditTimes(ctx context.Context, month MonthKey, recordID string, newCheckIn billing.TimeOfDay, newCheckOut *billing.TimeOfDay) (*Record, error) {
	cfg := s.config.Billing()

	var updated Record
	err := s.store.UpdatePartition(ctx, month, func(records []Record) ([]Record, error) {
		for i := range records {
			if records[i].ID != recordID {
				continue
			}
			rec := &records[i]
			rec.CheckInTime = newCheckIn
			if newCheckOut != nil {
				b, err := billing.Compute(newCheckIn, *newCheckOut, cfg)
				if err != nil {
					return nil, err
				}
				out := *newCheckOut
				rec.CheckOutTime = &out
				rec.applyBreakdown(b)
			}
			updated = *rec
			return records, nil
		}
		return nil, &RecordNotFoundError{RecordID: recordID, Month: month}
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("staff edit times",
		zap.String("record_id", recordID),
		zap.String("month", string(month)),
		zap.Bool("check_out_updated", newCheckOut != nil))

	return &updated, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// ListCurrentlyPresent returns every child with an open record for today,
// joined with child/family metadata and a provisional duration using the
// current time as check-out. Nothing is persisted. Children missing from
// the directory (e.g. deleted after check-in) are skipped.
func (s *Service) ListCurrentlyPresent(ctx context.Context) ([]PresentChild, error) {
	now := s.clock.Now()
	today := billing.DateOf(now)
	at := billing.TimeOfDayOf(now)
	cfg := s.config.Billing()

	records, err := s.store.ReadPartition(ctx, MonthKeyFor(today))
	if err != nil {
		return nil, err
	}

	var present []PresentChild
	for _, rec := range records {
		if !rec.Date.Equal(today) || !rec.Open() {
			continue
		}
		child, err := s.children.Child(ctx, rec.ChildID)
		if err != nil {
			continue
		}
		hours := decimal.Zero
		if b, err := billing.Compute(rec.CheckInTime, at, cfg); err == nil {
			hours = b.DurationHours
		}
		present = append(present, PresentChild{
			Child:       child,
			RecordID:    rec.ID,
			CheckInTime: rec.CheckInTime,
			HoursSoFar:  hours,
		})
	}

	sort.Slice(present, func(i, j int) bool {
		return present[i].CheckInTime.Before(present[j].CheckInTime)
	})
	return present, nil
}

// GetChildRecords returns the child's records in [start, end], sorted by
// date then check-in time.
func (s *Service) GetChildRecords(ctx context.Context, childID string, start, end billing.Date) ([]Record, error) {
	return s.resolver.FindRecordsInRange(ctx, childID, start, end)
}

// DeleteChildRecords removes every record for the child across all
// partitions and returns how many were removed. Only the explicit staff
// deletion of a child (or its family) reaches this; nothing in the normal
// flow deletes records.
func (s *Service) DeleteChildRecords(ctx context.Context, childID string) (int, error) {
	months, err := s.store.Partitions(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, month := range months {
		err := s.store.UpdatePartition(ctx, month, func(records []Record) ([]Record, error) {
			kept := records[:0]
			for _, rec := range records {
				if rec.ChildID == childID {
					deleted++
					continue
				}
				kept = append(kept, rec)
			}
			return kept, nil
		})
		if err != nil {
			return deleted, err
		}
	}

	if deleted > 0 {
		s.log.Info("deleted child records",
			zap.String("child_id", childID),
			zap.Int("count", deleted))
	}
	return deleted, nil
}
