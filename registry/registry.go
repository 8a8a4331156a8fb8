/*
Package registry manages the family, child and staff records.

PURPOSE:
  Families own children and carry a PIN hash for parent login; staff carry
  their own PIN hash and a role. The registry is the directory the
  attendance layer joins against ("which child is this, which family") and
  the target of the staff management screens.

DELETION RULES:
  - Deleting a child cascades to that child's attendance records.
  - Deleting a family cascades to all of its children (and their records).
  - Staff cannot delete their own account.
  - The last admin account cannot be deleted.

SEE ALSO:
  - store.go: persistence interface + in-memory implementation
  - auth package: PIN hashing and login against these records
*/
package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/littlepine/timekeeper/attendance"
)

// =============================================================================
// ENTITIES
// =============================================================================

type Child struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (c Child) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Family struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	PINHash  string  `json:"pin_hash"`
	Children []Child `json:"children"`
}

type StaffRole string

const (
	RoleStaff StaffRole = "staff"
	RoleAdmin StaffRole = "admin"
)

type Staff struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Role    StaffRole `json:"role"`
	PINHash string    `json:"pin_hash"`
}

// =============================================================================
// SERVICE
// =============================================================================

// RecordPurger removes a child's attendance records on cascade. Implemented
// by attendance.Service.
type RecordPurger interface {
	DeleteChildRecords(ctx context.Context, childID string) (int, error)
}

type Service struct {
	store  Store
	purger RecordPurger
	log    *zap.Logger
}

// NewService creates the registry service. purger may be nil, in which case
// deletions do not cascade (tests).
func NewService(store Store, purger RecordPurger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, purger: purger, log: log}
}

// =============================================================================
// FAMILIES AND CHILDREN
// =============================================================================

func (s *Service) ListFamilies(ctx context.Context) ([]Family, error) {
	return s.store.ListFamilies(ctx)
}

func (s *Service) CreateFamily(ctx context.Context, name, pinHash string) (*Family, error) {
	family := Family{
		ID:      "fam_" + uuid.NewString(),
		Name:    name,
		PINHash: pinHash,
	}
	if err := s.store.SaveFamily(ctx, family); err != nil {
		return nil, err
	}
	s.log.Info("family created", zap.String("family_id", family.ID))
	return &family, nil
}

// EditFamily renames a family. An empty pinHash keeps the existing PIN.
func (s *Service) EditFamily(ctx context.Context, familyID, name, pinHash string) error {
	family, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return err
	}
	family.Name = name
	if pinHash != "" {
		family.PINHash = pinHash
	}
	return s.store.SaveFamily(ctx, family)
}

// DeleteFamily removes a family, its children and their attendance records.
func (s *Service) DeleteFamily(ctx context.Context, familyID string) error {
	family, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return err
	}
	for _, child := range family.Children {
		if err := s.purgeRecords(ctx, child.ID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteFamily(ctx, familyID); err != nil {
		return err
	}
	s.log.Info("family deleted", zap.String("family_id", familyID), zap.Int("children", len(family.Children)))
	return nil
}

func (s *Service) AddChild(ctx context.Context, familyID, firstName, lastName string) (*Child, error) {
	family, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	child := Child{
		ID:        "child_" + uuid.NewString(),
		FirstName: firstName,
		LastName:  lastName,
	}
	family.Children = append(family.Children, child)
	if err := s.store.SaveFamily(ctx, family); err != nil {
		return nil, err
	}
	return &child, nil
}

func (s *Service) EditChild(ctx context.Context, familyID, childID, firstName, lastName string) error {
	family, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return err
	}
	for i := range family.Children {
		if family.Children[i].ID == childID {
			family.Children[i].FirstName = firstName
			family.Children[i].LastName = lastName
			return s.store.SaveFamily(ctx, family)
		}
	}
	return attendance.ErrChildNotFound
}

// DeleteChild removes a child and cascades to its attendance records.
func (s *Service) DeleteChild(ctx context.Context, familyID, childID string) error {
	family, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return err
	}
	kept := family.Children[:0]
	found := false
	for _, child := range family.Children {
		if child.ID == childID {
			found = true
			continue
		}
		kept = append(kept, child)
	}
	if !found {
		return attendance.ErrChildNotFound
	}
	if err := s.purgeRecords(ctx, childID); err != nil {
		return err
	}
	family.Children = kept
	if err := s.store.SaveFamily(ctx, family); err != nil {
		return err
	}
	s.log.Info("child deleted", zap.String("family_id", familyID), zap.String("child_id", childID))
	return nil
}

func (s *Service) purgeRecords(ctx context.Context, childID string) error {
	if s.purger == nil {
		return nil
	}
	_, err := s.purger.DeleteChildRecords(ctx, childID)
	return err
}

// Child resolves a child id to the metadata the attendance layer joins in.
// Implements attendance.ChildDirectory.
func (s *Service) Child(ctx context.Context, childID string) (attendance.ChildInfo, error) {
	families, err := s.store.ListFamilies(ctx)
	if err != nil {
		return attendance.ChildInfo{}, err
	}
	for _, family := range families {
		for _, child := range family.Children {
			if child.ID == childID {
				return attendance.ChildInfo{
					ID:         child.ID,
					Name:       child.FullName(),
					FamilyID:   family.ID,
					FamilyName: family.Name,
				}, nil
			}
		}
	}
	return attendance.ChildInfo{}, attendance.ErrChildNotFound
}

// =============================================================================
// STAFF
// =============================================================================

func (s *Service) ListStaff(ctx context.Context) ([]Staff, error) {
	return s.store.ListStaff(ctx)
}

func (s *Service) AddStaff(ctx context.Context, name string, role StaffRole, pinHash string) (*Staff, error) {
	if role == "" {
		role = RoleStaff
	}
	member := Staff{
		ID:      "staff_" + uuid.NewString(),
		Name:    name,
		Role:    role,
		PINHash: pinHash,
	}
	if err := s.store.SaveStaff(ctx, member); err != nil {
		return nil, err
	}
	s.log.Info("staff added", zap.String("staff_id", member.ID), zap.String("role", string(role)))
	return &member, nil
}

// EditStaff updates name and role. An empty pinHash keeps the existing PIN.
func (s *Service) EditStaff(ctx context.Context, staffID, name string, role StaffRole, pinHash string) error {
	member, err := s.store.GetStaff(ctx, staffID)
	if err != nil {
		return err
	}
	member.Name = name
	member.Role = role
	if pinHash != "" {
		member.PINHash = pinHash
	}
	return s.store.SaveStaff(ctx, member)
}

// DeleteStaff removes a staff account. The acting staff member cannot
// delete themselves, and the last admin account cannot be deleted.
func (s *Service) DeleteStaff(ctx context.Context, actingStaffID, staffID string) error {
	if actingStaffID == staffID {
		return ErrSelfDeletion
	}

	target, err := s.store.GetStaff(ctx, staffID)
	if err != nil {
		return err
	}
	if target.Role == RoleAdmin {
		all, err := s.store.ListStaff(ctx)
		if err != nil {
			return err
		}
		admins := 0
		for _, member := range all {
			if member.Role == RoleAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	if err := s.store.DeleteStaff(ctx, staffID); err != nil {
		return err
	}
	s.log.Info("staff deleted", zap.String("staff_id", staffID), zap.String("by", actingStaffID))
	return nil
}
