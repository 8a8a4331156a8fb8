/*
store.go - Partition store interface for attendance records

PURPOSE:
  Defines the interface between the attendance domain and persistence.
  Records are partitioned by the month of their date; the store reads and
  writes whole partitions. A missing partition is an empty one, never an
  error.

WHY WHOLE-PARTITION READ-MODIFY-WRITE:
  An update to one record rewrites its entire month partition, so the store
  must serialize writers per partition or concurrent edits in the same month
  would clobber each other. UpdatePartition is that serialization point:
  implementations run the mutation function under a per-partition write
  lock (or a database transaction), which also makes the resolver's
  "find open record, then create" sequence atomic.

IMPLEMENTATIONS:
  - attendance/store: in-memory, for tests and development
  - store/sqlite:     SQLite-backed, production
  - store/jsonfile:   one JSON file per month, mirrors the original data layout

SEE ALSO:
  - resolver.go: read-side queries over this interface
  - service.go: all mutations go through UpdatePartition
*/
package attendance

import "context"

// Store persists attendance records partitioned by month.
type Store interface {
	// ReadPartition returns every record in the month partition.
	// A missing partition yields an empty slice, not an error.
	ReadPartition(ctx context.Context, month MonthKey) ([]Record, error)

	// WritePartition replaces the partition's contents. Either the whole
	// write succeeds or the prior partition content is preserved.
	WritePartition(ctx context.Context, month MonthKey, records []Record) error

	// UpdatePartition applies fn to the partition's current contents and
	// writes back the result, serialized against concurrent updates to the
	// same partition. If fn returns an error nothing is written and the
	// error is returned unchanged.
	UpdatePartition(ctx context.Context, month MonthKey, fn func([]Record) ([]Record, error)) error

	// Partitions lists every existing partition key, unordered.
	Partitions(ctx context.Context) ([]MonthKey, error)
}
