/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements attendance.Store and registry.Store using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  attendance.Store: Month-partitioned attendance records
  registry.Store:   Families, children and staff

PARTITION SEMANTICS:
  Attendance records carry a month column derived from their date. Reading
  a partition is a month-filtered SELECT; writing one replaces every row in
  that month inside a transaction, so a partition write is all-or-nothing.
  UpdatePartition runs read, mutate and write in one transaction under the
  store mutex, which serializes concurrent updates to the same month.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/timekeeper.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - attendance/store.go: the partition interface definition
  - store/jsonfile:      file-per-month alternative backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/littlepine/timekeeper/attendance"
	"github.com/littlepine/timekeeper/billing"
	"github.com/littlepine/timekeeper/registry"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Attendance records, partitioned by the month of their date
	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		month TEXT NOT NULL,
		child_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT,
		duration_hours TEXT,
		overage_minutes INTEGER NOT NULL DEFAULT 0,
		overage_charge TEXT NOT NULL DEFAULT '0',
		late_pickup_minutes INTEGER NOT NULL DEFAULT 0,
		late_pickup_charge TEXT NOT NULL DEFAULT '0',
		checked_in_by TEXT NOT NULL,
		checked_out_by TEXT,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Partition reads are the hot path
	CREATE INDEX IF NOT EXISTS idx_records_month
		ON attendance_records(month);
	CREATE INDEX IF NOT EXISTS idx_records_child_date
		ON attendance_records(child_id, date);

	-- Families
	CREATE TABLE IF NOT EXISTS families (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		pin_hash TEXT NOT NULL
	);

	-- Children belong to exactly one family; position preserves entry order
	CREATE TABLE IF NOT EXISTS children (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL REFERENCES families(id) ON DELETE CASCADE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_children_family
		ON children(family_id);

	-- Staff accounts
	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		pin_hash TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ATTENDANCE STORE (attendance.Store interface)
// =============================================================================

// ReadPartition returns every record in the month partition.
func (s *Store) ReadPartition(ctx context.Context, month attendance.MonthKey) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readPartition(ctx, s.db, month)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) readPartition(ctx context.Context, db querier, month attendance.MonthKey) ([]attendance.Record, error) {
	query := `
		SELECT id, child_id, date, check_in, check_out, duration_hours,
		       overage_minutes, overage_charge, late_pickup_minutes, late_pickup_charge,
		       checked_in_by, checked_out_by, notes, created_at
		FROM attendance_records
		WHERE month = ?
		ORDER BY date ASC, check_in ASC
	`

	rows, err := db.QueryContext(ctx, query, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query partition %s: %w", month, err)
	}
	defer rows.Close()

	records := []attendance.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (attendance.Record, error) {
	var (
		rec              attendance.Record
		date             string
		checkIn          string
		checkOut         sql.NullString
		durationHours    sql.NullString
		overageCharge    string
		latePickupCharge string
		checkedOutBy     sql.NullString
		createdAt        string
	)

	err := rows.Scan(
		&rec.ID, &rec.ChildID, &date, &checkIn, &checkOut, &durationHours,
		&rec.OverageMinutes, &overageCharge, &rec.LatePickupMinutes, &latePickupCharge,
		&rec.CheckedInBy, &checkedOutBy, &rec.Notes, &createdAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	if rec.Date, err = billing.ParseDate(date); err != nil {
		return rec, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if rec.CheckInTime, err = billing.ParseTimeOfDay(checkIn); err != nil {
		return rec, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if checkOut.Valid {
		t, err := billing.ParseTimeOfDay(checkOut.String)
		if err != nil {
			return rec, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		rec.CheckOutTime = &t
	}
	if durationHours.Valid {
		d, err := decimal.NewFromString(durationHours.String)
		if err != nil {
			return rec, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		rec.DurationHours = &d
	}
	if rec.OverageCharge, err = decimal.NewFromString(overageCharge); err != nil {
		return rec, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if rec.LatePickupCharge, err = decimal.NewFromString(latePickupCharge); err != nil {
		return rec, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.CheckedOutBy = attendance.Actor(checkedOutBy.String)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return rec, nil
}

// WritePartition replaces the partition's contents atomically.
func (s *Store) WritePartition(ctx context.Context, month attendance.MonthKey, records []attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writePartitionTx(ctx, tx, month, records); err != nil {
		return err
	}
	return tx.Commit()
}

func writePartitionTx(ctx context.Context, tx *sql.Tx, month attendance.MonthKey, records []attendance.Record) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance_records WHERE month = ?", month); err != nil {
		return fmt.Errorf("failed to clear partition %s: %w", month, err)
	}

	query := `
		INSERT INTO attendance_records
		(id, month, child_id, date, check_in, check_out, duration_hours,
		 overage_minutes, overage_charge, late_pickup_minutes, late_pickup_charge,
		 checked_in_by, checked_out_by, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, rec := range records {
		var checkOut, durationHours, checkedOutBy any
		if rec.CheckOutTime != nil {
			checkOut = rec.CheckOutTime.String()
		}
		if rec.DurationHours != nil {
			durationHours = rec.DurationHours.String()
		}
		if rec.CheckedOutBy != "" {
			checkedOutBy = string(rec.CheckedOutBy)
		}

		_, err := tx.ExecContext(ctx, query,
			rec.ID,
			string(month),
			rec.ChildID,
			rec.Date.String(),
			rec.CheckInTime.String(),
			checkOut,
			durationHours,
			rec.OverageMinutes,
			rec.OverageCharge.String(),
			rec.LatePickupMinutes,
			rec.LatePickupCharge.String(),
			string(rec.CheckedInBy),
			checkedOutBy,
			rec.Notes,
			rec.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// UpdatePartition runs fn over the partition inside one transaction. The
// store mutex serializes concurrent updates, so fn sees the latest state.
func (s *Store) UpdatePartition(ctx context.Context, month attendance.MonthKey, fn func([]attendance.Record) ([]attendance.Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	records, err := s.readPartition(ctx, tx, month)
	if err != nil {
		return err
	}

	updated, err := fn(records)
	if err != nil {
		return err
	}

	if err := writePartitionTx(ctx, tx, month, updated); err != nil {
		return err
	}
	return tx.Commit()
}

// Partitions lists every month that has at least one record.
func (s *Store) Partitions(ctx context.Context) ([]attendance.MonthKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT month FROM attendance_records ORDER BY month")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var months []attendance.MonthKey
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		months = append(months, attendance.MonthKey(m))
	}
	return months, rows.Err()
}

// =============================================================================
// REGISTRY STORE (registry.Store interface)
// =============================================================================

// ListFamilies returns all families with their children.
func (s *Store) ListFamilies(ctx context.Context) ([]registry.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, pin_hash FROM families ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var families []registry.Family
	for rows.Next() {
		var f registry.Family
		if err := rows.Scan(&f.ID, &f.Name, &f.PINHash); err != nil {
			return nil, err
		}
		families = append(families, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range families {
		children, err := s.childrenOf(ctx, families[i].ID)
		if err != nil {
			return nil, err
		}
		families[i].Children = children
	}
	return families, nil
}

// GetFamily retrieves a family and its children.
func (s *Store) GetFamily(ctx context.Context, familyID string) (registry.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f registry.Family
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, pin_hash FROM families WHERE id = ?", familyID,
	).Scan(&f.ID, &f.Name, &f.PINHash)

	if err == sql.ErrNoRows {
		return registry.Family{}, &registry.FamilyNotFoundError{FamilyID: familyID}
	}
	if err != nil {
		return registry.Family{}, err
	}

	f.Children, err = s.childrenOf(ctx, familyID)
	return f, err
}

func (s *Store) childrenOf(ctx context.Context, familyID string) ([]registry.Child, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, first_name, last_name FROM children WHERE family_id = ? ORDER BY position",
		familyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	children := []registry.Child{}
	for rows.Next() {
		var c registry.Child
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName); err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

// SaveFamily upserts a family and rewrites its child list.
func (s *Store) SaveFamily(ctx context.Context, family registry.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO families (id, name, pin_hash)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			pin_hash = excluded.pin_hash
	`
	if _, err := tx.ExecContext(ctx, query, family.ID, family.Name, family.PINHash); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM children WHERE family_id = ?", family.ID); err != nil {
		return err
	}
	for i, child := range family.Children {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO children (id, family_id, first_name, last_name, position) VALUES (?, ?, ?, ?, ?)",
			child.ID, family.ID, child.FirstName, child.LastName, i,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteFamily removes a family; children go with it via the foreign key.
func (s *Store) DeleteFamily(ctx context.Context, familyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM families WHERE id = ?", familyID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &registry.FamilyNotFoundError{FamilyID: familyID}
	}
	return nil
}

// ListStaff returns all staff members.
func (s *Store) ListStaff(ctx context.Context) ([]registry.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, role, pin_hash FROM staff ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []registry.Staff
	for rows.Next() {
		var m registry.Staff
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.PINHash); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetStaff retrieves a staff member by ID.
func (s *Store) GetStaff(ctx context.Context, staffID string) (registry.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m registry.Staff
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, role, pin_hash FROM staff WHERE id = ?", staffID,
	).Scan(&m.ID, &m.Name, &m.Role, &m.PINHash)

	if err == sql.ErrNoRows {
		return registry.Staff{}, &registry.StaffNotFoundError{StaffID: staffID}
	}
	return m, err
}

// SaveStaff upserts a staff member.
func (s *Store) SaveStaff(ctx context.Context, member registry.Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO staff (id, name, role, pin_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			pin_hash = excluded.pin_hash
	`
	_, err := s.db.ExecContext(ctx, query, member.ID, member.Name, member.Role, member.PINHash)
	return err
}

// DeleteStaff removes a staff member.
func (s *Store) DeleteStaff(ctx context.Context, staffID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM staff WHERE id = ?", staffID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &registry.StaffNotFoundError{StaffID: staffID}
	}
	return nil
}
