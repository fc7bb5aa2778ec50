/*
Package sqlite provides a SQLite-backed implementation of the attendance
collaborators.

PURPOSE:
  Implements every persistence interface the engine consumes using SQLite.
  The PostgreSQL store in store/postgres follows the same contract with
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  attendance.Store:      Event persistence and justifications
  attendance.Directory:  Employees, placements and shift bindings
  attendance.Catalog:    Fixed schedule, rotating shifts, policy, tolerances
  attendance.AnomalyLog: Deduplicated sweep reports

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the events table
  - No DELETE statements on the events table
  - Justifications live in their own table and are the only mutable record

KEY TABLES:
  events:                  Immutable punches
  justifications:          One per event, replaced on refile
  anomaly_reports:         (employee, work date, kind) already reported
  employees:               Directory entries
  employee_shift_bindings: Direct rotating-shift bindings
  supernumerary_positions: Positions flagged supernumerary
  shifts:                  Rotating shift catalog
  catalog_settings:        Fixed schedule, supernumerary policy, tolerances

INDEXES:
  - idx_events_employee_day: Per-day replay (hot path)
  - idx_unique_day_punch:    One CHECK_IN and one CHECK_OUT per work date

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The partial UNIQUE index is the real
  guard against two concurrent check-ins: the loser gets
  attendance.ErrDuplicateEvent.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/attendance.db", sqlite.WithLocation(loc))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := attendance.NewEngine(store, store, store, attendance.WithAnomalyLog(store))

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - attendance/store.go:        Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
  - store/postgres:             PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	loc      *time.Location
	defaults schedule.Tolerances
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the zone work dates are read back in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithDefaultTolerances sets the tolerances returned while the catalog has
// none saved.
func WithDefaultTolerances(t schedule.Tolerances) Option {
	return func(s *Store) { s.defaults = t }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A :memory: database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, loc: time.UTC, defaults: schedule.DefaultTolerances()}
	for _, opt := range opts {
		opt(store)
	}
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
	-- Events (append-only)
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		work_date TEXT NOT NULL,
		status TEXT NOT NULL,
		shift_ref TEXT,
		synthetic INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_employee_day
		ON events(employee_id, work_date);

	-- One CHECK_IN and one CHECK_OUT per employee and work date
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_day_punch
		ON events(employee_id, work_date, type)
		WHERE type IN ('CHECK_IN', 'CHECK_OUT');

	-- Justifications (one live record per event)
	CREATE TABLE IF NOT EXISTS justifications (
		event_id TEXT PRIMARY KEY REFERENCES events(id),
		id TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		submitted_at TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at TEXT
	);

	-- Sweep reports already handed to the incident collaborator
	CREATE TABLE IF NOT EXISTS anomaly_reports (
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		reported_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_date, kind)
	);

	-- Directory
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		area_id TEXT NOT NULL DEFAULT '',
		position_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employee_shift_bindings (
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		shift_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		PRIMARY KEY (employee_id, shift_id)
	);

	CREATE TABLE IF NOT EXISTS supernumerary_positions (
		position_id TEXT PRIMARY KEY
	);

	-- Catalog
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		areas_json TEXT NOT NULL DEFAULT '[]',
		positions_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS catalog_settings (
		key TEXT PRIMARY KEY,
		value_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE (attendance.Store interface)
// =============================================================================

// Append adds an event. A second CHECK_IN or CHECK_OUT for the same work
// date violates idx_unique_day_punch and returns attendance.ErrDuplicateEvent.
func (s *Store) Append(ctx context.Context, e attendance.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO events
		(id, employee_id, type, timestamp, work_date, status, shift_ref, synthetic, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.EmployeeID,
		e.Type,
		e.Timestamp.Format(time.RFC3339Nano),
		schedule.FormatDate(e.WorkDate),
		e.Status,
		nullString(string(e.ShiftRef)),
		boolToInt(e.Synthetic),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return attendance.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// EventsForEmployeeDay returns one work date's events ordered by timestamp.
func (s *Store) EventsForEmployeeDay(ctx context.Context, employeeID schedule.EmployeeID, workDate time.Time) ([]attendance.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := eventSelect + `
		WHERE e.employee_id = ? AND e.work_date = ?
	`

	events, err := s.queryEvents(ctx, query, employeeID, schedule.FormatDate(workDate))
	if err != nil {
		return nil, err
	}
	// Timestamps keep their offset, so ordering happens here rather than in SQL.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// GetEvent loads one event with its justification.
func (s *Store) GetEvent(ctx context.Context, id attendance.EventID) (attendance.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, err := s.queryEvents(ctx, eventSelect+` WHERE e.id = ?`, id)
	if err != nil {
		return attendance.Event{}, err
	}
	if len(events) == 0 {
		return attendance.Event{}, attendance.ErrEventNotFound
	}
	return events[0], nil
}

// SaveJustification creates or replaces the justification of an event.
func (s *Store) SaveJustification(ctx context.Context, j attendance.Justification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE id = ?", j.EventID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if exists == 0 {
		return attendance.ErrEventNotFound
	}

	var reviewedAt sql.NullString
	if j.ReviewedAt != nil {
		reviewedAt = sql.NullString{String: j.ReviewedAt.Format(time.RFC3339Nano), Valid: true}
	}

	query := `
		INSERT INTO justifications (event_id, id, reason, status, submitted_at, reviewed_by, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			id = excluded.id,
			reason = excluded.reason,
			status = excluded.status,
			submitted_at = excluded.submitted_at,
			reviewed_by = excluded.reviewed_by,
			reviewed_at = excluded.reviewed_at
	`

	_, err = s.db.ExecContext(ctx, query,
		j.EventID, j.ID, j.Reason, j.Status,
		j.SubmittedAt.Format(time.RFC3339Nano),
		nullString(j.ReviewedBy),
		reviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save justification: %w", err)
	}
	return nil
}

const eventSelect = `
	SELECT e.id, e.employee_id, e.type, e.timestamp, e.work_date, e.status,
	       e.shift_ref, e.synthetic, e.created_at,
	       j.id, j.reason, j.status, j.submitted_at, j.reviewed_by, j.reviewed_at
	FROM events e
	LEFT JOIN justifications j ON j.event_id = e.id
`

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]attendance.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []attendance.Event
	for rows.Next() {
		e, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func (s *Store) scanEvent(rows *sql.Rows) (attendance.Event, error) {
	var (
		e          attendance.Event
		timestamp  string
		workDate   string
		shiftRef   sql.NullString
		synthetic  int
		createdAt  string
		jID        sql.NullString
		jReason    sql.NullString
		jStatus    sql.NullString
		jSubmitted sql.NullString
		jReviewer  sql.NullString
		jReviewed  sql.NullString
	)

	err := rows.Scan(
		&e.ID, &e.EmployeeID, &e.Type, &timestamp, &workDate, &e.Status,
		&shiftRef, &synthetic, &createdAt,
		&jID, &jReason, &jStatus, &jSubmitted, &jReviewer, &jReviewed,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan event: %w", err)
	}

	if e.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
		return e, fmt.Errorf("event %s: bad timestamp: %w", e.ID, err)
	}
	if e.WorkDate, err = schedule.ParseDate(workDate, s.loc); err != nil {
		return e, fmt.Errorf("event %s: bad work date: %w", e.ID, err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	e.ShiftRef = schedule.ShiftID(shiftRef.String)
	e.Synthetic = synthetic != 0

	if jID.Valid {
		j := &attendance.Justification{
			ID:         jID.String,
			EventID:    e.ID,
			Reason:     jReason.String,
			Status:     attendance.JustificationStatus(jStatus.String),
			ReviewedBy: jReviewer.String,
		}
		j.SubmittedAt, _ = time.Parse(time.RFC3339Nano, jSubmitted.String)
		if jReviewed.Valid {
			t, _ := time.Parse(time.RFC3339Nano, jReviewed.String)
			j.ReviewedAt = &t
		}
		e.Justification = j
	}

	return e, nil
}

// =============================================================================
// ANOMALY LOG (attendance.AnomalyLog interface)
// =============================================================================

// MarkReported inserts the report key and returns true only for the first
// caller.
func (s *Store) MarkReported(ctx context.Context, employeeID schedule.EmployeeID, workDate time.Time, kind attendance.AnomalyKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO anomaly_reports (employee_id, work_date, kind, reported_at)
		VALUES (?, ?, ?, ?)
	`, employeeID, schedule.FormatDate(workDate), kind, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to mark anomaly reported: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// DIRECTORY (attendance.Directory interface)
// =============================================================================

// SaveEmployee upserts an employee and replaces its direct bindings.
func (s *Store) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (id, name, area_id, position_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			area_id = excluded.area_id,
			position_id = excluded.position_id
	`, emp.ID, emp.Name, emp.Placement.AreaID, emp.Placement.PositionID,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM employee_shift_bindings WHERE employee_id = ?", emp.ID); err != nil {
		return fmt.Errorf("failed to clear bindings: %w", err)
	}
	for i, shiftID := range emp.DirectBindings {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO employee_shift_bindings (employee_id, shift_id, ordinal) VALUES (?, ?, ?)",
			emp.ID, shiftID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to bind shift %s: %w", shiftID, err)
		}
	}

	return tx.Commit()
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id schedule.EmployeeID) (attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getEmployee(ctx, id)
}

func (s *Store) getEmployee(ctx context.Context, id schedule.EmployeeID) (attendance.Employee, error) {
	var emp attendance.Employee
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, area_id, position_id FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.Name, &emp.Placement.AreaID, &emp.Placement.PositionID)

	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Employee{}, attendance.ErrEmployeeNotFound
	}
	if err != nil {
		return attendance.Employee{}, fmt.Errorf("failed to load employee: %w", err)
	}

	emp.DirectBindings, err = s.bindings(ctx, id)
	return emp, err
}

// ListEmployeeRecords returns all employees ordered by name.
func (s *Store) ListEmployeeRecords(ctx context.Context) ([]attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, area_id, position_id FROM employees ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []attendance.Employee
	for rows.Next() {
		var emp attendance.Employee
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Placement.AreaID, &emp.Placement.PositionID); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range employees {
		if employees[i].DirectBindings, err = s.bindings(ctx, employees[i].ID); err != nil {
			return nil, err
		}
	}
	return employees, nil
}

func (s *Store) Placement(ctx context.Context, id schedule.EmployeeID) (schedule.Placement, error) {
	emp, err := s.GetEmployee(ctx, id)
	if err != nil {
		return schedule.Placement{}, err
	}
	return emp.Placement, nil
}

func (s *Store) DirectShiftBindings(ctx context.Context, id schedule.EmployeeID) ([]schedule.ShiftID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bindings(ctx, id)
}

func (s *Store) bindings(ctx context.Context, id schedule.EmployeeID) ([]schedule.ShiftID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT shift_id FROM employee_shift_bindings WHERE employee_id = ? ORDER BY ordinal",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load bindings: %w", err)
	}
	defer rows.Close()

	var ids []schedule.ShiftID
	for rows.Next() {
		var shiftID schedule.ShiftID
		if err := rows.Scan(&shiftID); err != nil {
			return nil, err
		}
		ids = append(ids, shiftID)
	}
	return ids, rows.Err()
}

// SaveSupernumerary flags or unflags a position.
func (s *Store) SaveSupernumerary(ctx context.Context, positionID schedule.PositionID, flag bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if flag {
		_, err = s.db.ExecContext(ctx, "INSERT OR IGNORE INTO supernumerary_positions (position_id) VALUES (?)", positionID)
	} else {
		_, err = s.db.ExecContext(ctx, "DELETE FROM supernumerary_positions WHERE position_id = ?", positionID)
	}
	return err
}

func (s *Store) IsSupernumerary(ctx context.Context, positionID schedule.PositionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM supernumerary_positions WHERE position_id = ?",
		positionID,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) ListEmployees(ctx context.Context) ([]schedule.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []schedule.EmployeeID
	for rows.Next() {
		var id schedule.EmployeeID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// CATALOG (attendance.Catalog interface)
// =============================================================================

const (
	settingFixedSchedule = "fixed_schedule"
	settingPolicy        = "supernumerary_policy"
	settingTolerances    = "tolerances"
)

// SaveShift upserts a rotating shift.
func (s *Store) SaveShift(ctx context.Context, shift schedule.RotatingShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	areasJSON, _ := json.Marshal(setKeys(shift.AssignedAreas))
	positionsJSON, _ := json.Marshal(setKeys(shift.AssignedPositions))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (id, name, start_time, end_time, active, areas_json, positions_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			active = excluded.active,
			areas_json = excluded.areas_json,
			positions_json = excluded.positions_json
	`, shift.ID, shift.Name, shift.Window.Start.String(), shift.Window.End.String(),
		boolToInt(shift.Active), string(areasJSON), string(positionsJSON))
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

// SaveFixedSchedule stores the agency fixed schedule. Nil clears it.
func (s *Store) SaveFixedSchedule(ctx context.Context, f *schedule.FixedWeeklySchedule) error {
	return s.saveSetting(ctx, settingFixedSchedule, f)
}

// SavePolicy stores the supernumerary policy. Nil clears it.
func (s *Store) SavePolicy(ctx context.Context, p *schedule.SupernumeraryPolicy) error {
	return s.saveSetting(ctx, settingPolicy, p)
}

func (s *Store) SaveTolerances(ctx context.Context, t schedule.Tolerances) error {
	return s.saveSetting(ctx, settingTolerances, t)
}

func (s *Store) ActiveRotatingShifts(ctx context.Context) ([]schedule.RotatingShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_time, end_time, active, areas_json, positions_json
		FROM shifts
		WHERE active = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []schedule.RotatingShift
	for rows.Next() {
		var (
			shift         schedule.RotatingShift
			start, end    string
			active        int
			areasJSON     string
			positionsJSON string
		)
		if err := rows.Scan(&shift.ID, &shift.Name, &start, &end, &active, &areasJSON, &positionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		if shift.Window, err = schedule.NewTimeWindow(start, end); err != nil {
			return nil, fmt.Errorf("shift %s: %w", shift.ID, err)
		}
		shift.Active = active != 0

		var areas []schedule.AreaID
		var positions []schedule.PositionID
		json.Unmarshal([]byte(areasJSON), &areas)
		json.Unmarshal([]byte(positionsJSON), &positions)
		shift.AssignedAreas = toSet(areas)
		shift.AssignedPositions = toSet(positions)

		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}

func (s *Store) FixedSchedule(ctx context.Context) (*schedule.FixedWeeklySchedule, error) {
	var f *schedule.FixedWeeklySchedule
	if err := s.loadSetting(ctx, settingFixedSchedule, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) SupernumeraryPolicy(ctx context.Context) (*schedule.SupernumeraryPolicy, error) {
	var p *schedule.SupernumeraryPolicy
	if err := s.loadSetting(ctx, settingPolicy, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Tolerances returns the stored tolerances, or the defaults when none were saved.
func (s *Store) Tolerances(ctx context.Context) (schedule.Tolerances, error) {
	t := s.defaults
	var stored *schedule.Tolerances
	if err := s.loadSetting(ctx, settingTolerances, &stored); err != nil {
		return t, err
	}
	if stored != nil {
		t = *stored
	}
	return t, nil
}

func (s *Store) saveSetting(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO catalog_settings (key, value_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value_json = excluded.value_json,
			updated_at = excluded.updated_at
	`, key, string(valueJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// loadSetting leaves dst untouched when the key was never saved.
func (s *Store) loadSetting(ctx context.Context, key string, dst any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var valueJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT value_json FROM catalog_settings WHERE key = ?", key,
	).Scan(&valueJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(valueJSON), dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func setKeys[K ~string](set map[K]bool) []K {
	keys := make([]K, 0, len(set))
	for k, ok := range set {
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func toSet[K ~string](keys []K) map[K]bool {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[K]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
