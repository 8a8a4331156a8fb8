/*
errors.go - Centralized error types for the attendance domain

PURPOSE:
  All business-rule rejections in one place. These are expected outcomes
  (a parent double-tapping check-in, staff adding a record for a day that
  already has one), reported to the caller as structured failures and never
  retried automatically. Only store I/O failures are unexpected.

USAGE:
  The API layer classifies with IsClientError:

    if attendance.IsClientError(err) {
        // 409 with {success:false, message}
    }

SEE ALSO:
  - billing/engine.go: ErrNonChronological, also a client error
  - service.go: where these are produced
*/
package attendance

import (
	"errors"
	"fmt"

	"github.com/littlepine/timekeeper/billing"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyCheckedIn is returned when a check-in finds an open record
	// for the same child and date.
	ErrAlreadyCheckedIn = errors.New("child is already checked in")

	// ErrNotCheckedIn is returned when a check-out finds no open record.
	ErrNotCheckedIn = errors.New("child is not currently checked in")

	// ErrDuplicateRecord is returned when staff add a record for a
	// child/date that already has one, open or closed.
	ErrDuplicateRecord = errors.New("a record already exists for this child on this date")

	// ErrRecordNotFound is returned when a record id is not present in the
	// expected month partition.
	ErrRecordNotFound = errors.New("attendance record not found")

	// ErrChildNotFound is returned when the child id resolves to nothing.
	ErrChildNotFound = errors.New("child not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AlreadyCheckedInError reports the open record's check-in time so the
// caller can show it ("already checked in at 8:00 AM").
type AlreadyCheckedInError struct {
	ChildID     string
	CheckInTime billing.TimeOfDay
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("child %s is already checked in at %s", e.ChildID, e.CheckInTime.Clock12())
}

func (e *AlreadyCheckedInError) Unwrap() error { return ErrAlreadyCheckedIn }

// NotCheckedInError identifies the child with no open record.
type NotCheckedInError struct {
	ChildID string
}

func (e *NotCheckedInError) Error() string {
	return fmt.Sprintf("child %s is not currently checked in", e.ChildID)
}

func (e *NotCheckedInError) Unwrap() error { return ErrNotCheckedIn }

// DuplicateRecordError identifies the conflicting child/date pair.
type DuplicateRecordError struct {
	ChildID string
	Date    billing.Date
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("child %s already has a record for %s", e.ChildID, e.Date)
}

func (e *DuplicateRecordError) Unwrap() error { return ErrDuplicateRecord }

// RecordNotFoundError identifies the missing record and the partition that
// was searched.
type RecordNotFoundError struct {
	RecordID string
	Month    MonthKey
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record %s not found in month %s", e.RecordID, e.Month)
}

func (e *RecordNotFoundError) Unwrap() error { return ErrRecordNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is a business-rule rejection or
// invalid input rather than an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrNotCheckedIn) ||
		errors.Is(err, ErrDuplicateRecord) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrChildNotFound) ||
		errors.Is(err, billing.ErrNonChronological)
}
