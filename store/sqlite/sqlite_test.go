package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/littlepine/timekeeper/attendance"
	"github.com/littlepine/timekeeper/billing"
	"github.com/littlepine/timekeeper/registry"
	"github.com/littlepine/timekeeper/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(t *testing.T, id string, open bool) attendance.Record {
	t.Helper()
	date, err := billing.ParseDate("2025-01-10")
	require.NoError(t, err)
	checkIn, err := billing.ParseTimeOfDay("08:00:00")
	require.NoError(t, err)

	rec := attendance.Record{
		ID:               id,
		ChildID:          "child-1",
		Date:             date,
		CheckInTime:      checkIn,
		OverageCharge:    decimal.Zero,
		LatePickupCharge: decimal.Zero,
		CheckedInBy:      attendance.ActorParent,
		CreatedAt:        time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
	}
	if !open {
		checkOut, err := billing.ParseTimeOfDay("17:15:00")
		require.NoError(t, err)
		rec.CheckOutTime = &checkOut
		dur := decimal.RequireFromString("9.25")
		rec.DurationHours = &dur
		rec.OverageMinutes = 45
		rec.OverageCharge = decimal.RequireFromString("45")
		rec.LatePickupMinutes = 45
		rec.LatePickupCharge = decimal.RequireFromString("45")
		rec.CheckedOutBy = attendance.ActorStaff
	}
	return rec
}

func TestPartitionRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	month := attendance.MonthKey("2025-01")

	// Missing partition reads empty.
	records, err := store.ReadPartition(ctx, month)
	require.NoError(t, err)
	assert.Empty(t, records)

	open := sampleRecord(t, "rec-open", true)
	closed := sampleRecord(t, "rec-closed", false)
	require.NoError(t, store.WritePartition(ctx, month, []attendance.Record{open, closed}))

	records, err = store.ReadPartition(ctx, month)
	require.NoError(t, err)
	require.Len(t, records, 2)

	var gotOpen, gotClosed attendance.Record
	for _, r := range records {
		if r.ID == "rec-open" {
			gotOpen = r
		} else {
			gotClosed = r
		}
	}

	assert.True(t, gotOpen.Open())
	assert.Nil(t, gotOpen.DurationHours)
	assert.Equal(t, attendance.Actor(""), gotOpen.CheckedOutBy)

	require.NotNil(t, gotClosed.CheckOutTime)
	assert.Equal(t, "17:15:00", gotClosed.CheckOutTime.String())
	require.NotNil(t, gotClosed.DurationHours)
	assert.True(t, gotClosed.DurationHours.Equal(decimal.RequireFromString("9.25")))
	assert.Equal(t, 45, gotClosed.OverageMinutes)
	assert.True(t, gotClosed.OverageCharge.Equal(decimal.RequireFromString("45")))
	assert.Equal(t, attendance.ActorStaff, gotClosed.CheckedOutBy)
}

func TestWritePartition_ReplacesContents(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	month := attendance.MonthKey("2025-01")

	require.NoError(t, store.WritePartition(ctx, month, []attendance.Record{sampleRecord(t, "a", true)}))
	require.NoError(t, store.WritePartition(ctx, month, []attendance.Record{sampleRecord(t, "b", true)}))

	records, err := store.ReadPartition(ctx, month)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ID)
}

func TestUpdatePartition(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	month := attendance.MonthKey("2025-01")

	err := store.UpdatePartition(ctx, month, func(records []attendance.Record) ([]attendance.Record, error) {
		assert.Empty(t, records)
		return append(records, sampleRecord(t, "a", true)), nil
	})
	require.NoError(t, err)

	// A failing fn leaves the partition untouched.
	boom := errors.New("boom")
	err = store.UpdatePartition(ctx, month, func(records []attendance.Record) ([]attendance.Record, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	records, err := store.ReadPartition(ctx, month)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
}

func TestPartitions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.WritePartition(ctx, "2024-12", []attendance.Record{sampleRecord(t, "a", true)}))
	require.NoError(t, store.WritePartition(ctx, "2025-01", []attendance.Record{sampleRecord(t, "b", true)}))

	months, err := store.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []attendance.MonthKey{"2024-12", "2025-01"}, months)
}

func TestRegistryStore_Families(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	family := registry.Family{
		ID:      "fam-1",
		Name:    "Ortiz",
		PINHash: "hash",
		Children: []registry.Child{
			{ID: "child-1", FirstName: "Maya", LastName: "Ortiz"},
			{ID: "child-2", FirstName: "Ben", LastName: "Ortiz"},
		},
	}
	require.NoError(t, store.SaveFamily(ctx, family))

	got, err := store.GetFamily(ctx, "fam-1")
	require.NoError(t, err)
	assert.Equal(t, family, got)

	// Upsert rewrites the child list.
	family.Children = family.Children[:1]
	family.Name = "Ortiz-Reyes"
	require.NoError(t, store.SaveFamily(ctx, family))

	got, err = store.GetFamily(ctx, "fam-1")
	require.NoError(t, err)
	assert.Equal(t, "Ortiz-Reyes", got.Name)
	require.Len(t, got.Children, 1)

	require.NoError(t, store.DeleteFamily(ctx, "fam-1"))
	_, err = store.GetFamily(ctx, "fam-1")
	assert.ErrorIs(t, err, registry.ErrFamilyNotFound)

	err = store.DeleteFamily(ctx, "fam-1")
	assert.ErrorIs(t, err, registry.ErrFamilyNotFound)
}

func TestRegistryStore_Staff(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	member := registry.Staff{ID: "staff-1", Name: "Dana", Role: registry.RoleAdmin, PINHash: "hash"}
	require.NoError(t, store.SaveStaff(ctx, member))

	got, err := store.GetStaff(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, member, got)

	member.Role = registry.RoleStaff
	require.NoError(t, store.SaveStaff(ctx, member))
	got, err = store.GetStaff(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, registry.RoleStaff, got.Role)

	all, err := store.ListStaff(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteStaff(ctx, "staff-1"))
	_, err = store.GetStaff(ctx, "staff-1")
	assert.ErrorIs(t, err, registry.ErrStaffNotFound)
}
