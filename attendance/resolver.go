/*
resolver.go - Open-record resolution and range queries

PURPOSE:
  The Resolver answers "is this child currently checked in?" and "what are
  this child's records between two dates?". It is the read side of the
  at-most-one-open-record invariant: if FindOpenRecord returns a record,
  that record is unique, because every write that could create a second one
  goes through the same partition serialization and rejects duplicates.

SEE ALSO:
  - service.go: the write side that maintains the invariant
  - store.go: partition access
*/
package attendance

import (
	"context"
	"sort"

	"github.com/littlepine/timekeeper/billing"
)

// Resolver provides read-side queries over the record store.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// FindOpenRecord returns the single open (checked-in, not checked-out)
// record for the child on the given date, or nil if the child is not
// checked in.
func (r *Resolver) FindOpenRecord(ctx context.Context, childID string, date billing.Date) (*Record, error) {
	records, err := r.store.ReadPartition(ctx, MonthKeyFor(date))
	if err != nil {
		return nil, err
	}
	return findOpen(records, childID, date), nil
}

// findOpen scans a partition for the child's open record on date. Shared
// with the service so the same predicate runs inside UpdatePartition.
func findOpen(records []Record, childID string, date billing.Date) *Record {
	for i := range records {
		if records[i].ChildID == childID && records[i].Date.Equal(date) && records[i].Open() {
			return &records[i]
		}
	}
	return nil
}

// FindRecordsInRange returns the child's records with start <= date <= end,
// sorted by date then check-in time. It visits every month partition whose
// key falls between the partitions of start and end, inclusive.
func (r *Resolver) FindRecordsInRange(ctx context.Context, childID string, start, end billing.Date) ([]Record, error) {
	var out []Record
	for _, month := range MonthKeysInRange(start, end) {
		records, err := r.store.ReadPartition(ctx, month)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.ChildID != childID {
				continue
			}
			if rec.Date.Before(start) || rec.Date.After(end) {
				continue
			}
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CheckInTime.Before(out[j].CheckInTime)
	})
	return out, nil
}

// FindByID locates a record by id within one month partition.
func (r *Resolver) FindByID(ctx context.Context, month MonthKey, recordID string) (*Record, error) {
	records, err := r.store.ReadPartition(ctx, month)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == recordID {
			return &records[i], nil
		}
	}
	return nil, &RecordNotFoundError{RecordID: recordID, Month: month}
}
