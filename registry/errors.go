package registry

import (
	"errors"
	"fmt"

	"github.com/littlepine/timekeeper/attendance"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	ErrFamilyNotFound = errors.New("family not found")
	ErrStaffNotFound  = errors.New("staff member not found")
	ErrSelfDeletion   = errors.New("you cannot delete your own account")
	ErrLastAdmin      = errors.New("cannot delete the last admin account")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type FamilyNotFoundError struct {
	FamilyID string
}

func (e *FamilyNotFoundError) Error() string {
	return fmt.Sprintf("family %s not found", e.FamilyID)
}

func (e *FamilyNotFoundError) Unwrap() error { return ErrFamilyNotFound }

type StaffNotFoundError struct {
	StaffID string
}

func (e *StaffNotFoundError) Error() string {
	return fmt.Sprintf("staff member %s not found", e.StaffID)
}

func (e *StaffNotFoundError) Unwrap() error { return ErrStaffNotFound }

// IsClientError reports whether err is caused by bad input rather than an
// internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrFamilyNotFound) ||
		errors.Is(err, ErrStaffNotFound) ||
		errors.Is(err, ErrSelfDeletion) ||
		errors.Is(err, ErrLastAdmin) ||
		errors.Is(err, attendance.ErrChildNotFound)
}
