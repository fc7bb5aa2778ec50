/*
Package postgres provides a PostgreSQL-backed implementation of the
attendance collaborators.

PURPOSE:
  Same contract as store/sqlite for deployments that run several engine
  instances against one database. Uses a pgxpool connection pool.

INTERFACES IMPLEMENTED:
  attendance.Store:      Event persistence and justifications
  attendance.Directory:  Employees, placements and shift bindings
  attendance.Catalog:    Fixed schedule, rotating shifts, policy, tolerances
  attendance.AnomalyLog: Deduplicated sweep reports

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the events table
  - No DELETE statements on the events table

CONCURRENCY:
  No process-level lock. idx_unique_day_punch together with
  INSERT ... ON CONFLICT DO NOTHING decides which of two concurrent
  check-ins wins; the loser gets attendance.ErrDuplicateEvent.

DIALECT DIFFERENCES FROM SQLITE:
  - timestamp is TIMESTAMPTZ and read back in the store location
  - work_date is DATE
  - assigned areas/positions are TEXT[]
  - catalog settings are JSONB

SEE ALSO:
  - store/sqlite: Reference implementation of the same contract
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements all storage interfaces using PostgreSQL.
type Store struct {
	pool     *pgxpool.Pool
	loc      *time.Location
	defaults schedule.Tolerances
	maxConns int32
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the zone timestamps and work dates are read back in.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithDefaultTolerances sets the tolerances returned while the catalog has
// none saved.
func WithDefaultTolerances(t schedule.Tolerances) Option {
	return func(s *Store) { s.defaults = t }
}

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(s *Store) { s.maxConns = n }
}

// New connects to dsn and migrates the schema.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database URL is required for PostgreSQL")
	}

	store := &Store{loc: time.UTC, defaults: schedule.DefaultTolerances()}
	for _, opt := range opts {
		opt(store)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if store.maxConns > 0 {
		poolConfig.MaxConns = store.maxConns
	}

	store.pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := store.pool.Ping(ctx); err != nil {
		store.pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := store.migrate(ctx); err != nil {
		store.pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		work_date DATE NOT NULL,
		status TEXT NOT NULL,
		shift_ref TEXT,
		synthetic BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_events_employee_day
		ON events(employee_id, work_date);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_day_punch
		ON events(employee_id, work_date, type)
		WHERE type IN ('CHECK_IN', 'CHECK_OUT');

	CREATE TABLE IF NOT EXISTS justifications (
		event_id TEXT PRIMARY KEY REFERENCES events(id),
		id TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		reviewed_by TEXT,
		reviewed_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS anomaly_reports (
		employee_id TEXT NOT NULL,
		work_date DATE NOT NULL,
		kind TEXT NOT NULL,
		reported_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (employee_id, work_date, kind)
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		area_id TEXT NOT NULL DEFAULT '',
		position_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		areas TEXT[] NOT NULL DEFAULT '{}',
		positions TEXT[] NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS catalog_settings (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// EVENT STORE (attendance.Store interface)
// =============================================================================

// Append adds an event. A conflicting CHECK_IN or CHECK_OUT inserts nothing
// and returns attendance.ErrDuplicateEvent.
func (s *Store) Append(ctx context.Context, e attendance.Event) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO events
		(id, employee_id, type, timestamp, work_date, status, shift_ref, synthetic, created_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`,
		string(e.ID),
		string(e.EmployeeID),
		string(e.Type),
		e.Timestamp,
		schedule.FormatDate(e.WorkDate),
		string(e.Status),
		nullable(string(e.ShiftRef)),
		e.Synthetic,
		createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrDuplicateEvent
	}
	return nil
}

// EventsForEmployeeDay returns one work date's events ordered by timestamp.
func (s *Store) EventsForEmployeeDay(ctx context.Context, employeeID schedule.EmployeeID, workDate time.Time) ([]attendance.Event, error) {
	events, err := s.queryEvents(ctx, eventSelect+`
		WHERE e.employee_id = $1 AND e.work_date = $2::date
		ORDER BY e.timestamp, e.created_at
	`, string(employeeID), schedule.FormatDate(workDate))
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetEvent loads one event with its justification.
func (s *Store) GetEvent(ctx context.Context, id attendance.EventID) (attendance.Event, error) {
	events, err := s.queryEvents(ctx, eventSelect+` WHERE e.id = $1`, string(id))
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
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)", string(j.EventID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if !exists {
		return attendance.ErrEventNotFound
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO justifications (event_id, id, reason, status, submitted_at, reviewed_by, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO UPDATE SET
			id = EXCLUDED.id,
			reason = EXCLUDED.reason,
			status = EXCLUDED.status,
			submitted_at = EXCLUDED.submitted_at,
			reviewed_by = EXCLUDED.reviewed_by,
			reviewed_at = EXCLUDED.reviewed_at
	`, string(j.EventID), j.ID, j.Reason, string(j.Status), j.SubmittedAt, nullable(j.ReviewedBy), j.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to save justification: %w", err)
	}
	return nil
}

const eventSelect = `
	SELECT e.id, e.employee_id, e.type, e.timestamp, to_char(e.work_date, 'YYYY-MM-DD'),
	       e.status, e.shift_ref, e.synthetic, e.created_at,
	       j.id, j.reason, j.status, j.submitted_at, j.reviewed_by, j.reviewed_at
	FROM events e
	LEFT JOIN justifications j ON j.event_id = e.id
`

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]attendance.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) scanEvent(rows pgx.Rows) (attendance.Event, error) {
	var (
		e                                attendance.Event
		id, employeeID, typ, status      string
		workDate                         string
		shiftRef                         *string
		jID, jReason, jStatus, jReviewer *string
		jSubmitted, jReviewed            *time.Time
	)

	err := rows.Scan(
		&id, &employeeID, &typ, &e.Timestamp, &workDate,
		&status, &shiftRef, &e.Synthetic, &e.CreatedAt,
		&jID, &jReason, &jStatus, &jSubmitted, &jReviewer, &jReviewed,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan event: %w", err)
	}

	e.ID = attendance.EventID(id)
	e.EmployeeID = schedule.EmployeeID(employeeID)
	e.Type = attendance.EventType(typ)
	e.Status = attendance.Status(status)
	e.Timestamp = e.Timestamp.In(s.loc)
	if e.WorkDate, err = schedule.ParseDate(workDate, s.loc); err != nil {
		return e, fmt.Errorf("event %s: bad work date: %w", id, err)
	}
	if shiftRef != nil {
		e.ShiftRef = schedule.ShiftID(*shiftRef)
	}

	if jID != nil {
		j := &attendance.Justification{
			ID:         *jID,
			EventID:    e.ID,
			Reason:     deref(jReason),
			Status:     attendance.JustificationStatus(deref(jStatus)),
			ReviewedBy: deref(jReviewer),
			ReviewedAt: jReviewed,
		}
		if jSubmitted != nil {
			j.SubmittedAt = *jSubmitted
		}
		e.Justification = j
	}

	return e, nil
}

// =============================================================================
// ANOMALY LOG (attendance.AnomalyLog interface)
// =============================================================================

// MarkReported inserts the report key and returns true only for the first
// caller, across every instance sharing the database.
func (s *Store) MarkReported(ctx context.Context, employeeID schedule.EmployeeID, workDate time.Time, kind attendance.AnomalyKind) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO anomaly_reports (employee_id, work_date, kind)
		VALUES ($1, $2::date, $3)
		ON CONFLICT DO NOTHING
	`, string(employeeID), schedule.FormatDate(workDate), string(kind))
	if err != nil {
		return false, fmt.Errorf("failed to mark anomaly reported: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// =============================================================================
// DIRECTORY (attendance.Directory interface)
// =============================================================================

// SaveEmployee upserts an employee and replaces its direct bindings.
func (s *Store) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO employees (id, name, area_id, position_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			area_id = EXCLUDED.area_id,
			position_id = EXCLUDED.position_id
	`, string(emp.ID), emp.Name, string(emp.Placement.AreaID), string(emp.Placement.PositionID))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM employee_shift_bindings WHERE employee_id = $1", string(emp.ID)); err != nil {
		return fmt.Errorf("failed to clear bindings: %w", err)
	}
	for i, shiftID := range emp.DirectBindings {
		_, err := tx.Exec(ctx, `
			INSERT INTO employee_shift_bindings (employee_id, shift_id, ordinal)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, string(emp.ID), string(shiftID), i)
		if err != nil {
			return fmt.Errorf("failed to bind shift %s: %w", shiftID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id schedule.EmployeeID) (attendance.Employee, error) {
	var name, area, position string
	err := s.pool.QueryRow(ctx,
		"SELECT name, area_id, position_id FROM employees WHERE id = $1", string(id),
	).Scan(&name, &area, &position)
	if errors.Is(err, pgx.ErrNoRows) {
		return attendance.Employee{}, attendance.ErrEmployeeNotFound
	}
	if err != nil {
		return attendance.Employee{}, fmt.Errorf("failed to load employee: %w", err)
	}

	emp := attendance.Employee{
		ID:        id,
		Name:      name,
		Placement: schedule.Placement{AreaID: schedule.AreaID(area), PositionID: schedule.PositionID(position)},
	}
	emp.DirectBindings, err = s.DirectShiftBindings(ctx, id)
	return emp, err
}

// ListEmployeeRecords returns all employees ordered by name.
func (s *Store) ListEmployeeRecords(ctx context.Context) ([]attendance.Employee, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.name, e.area_id, e.position_id,
		       COALESCE(array_agg(b.shift_id ORDER BY b.ordinal) FILTER (WHERE b.shift_id IS NOT NULL), '{}')
		FROM employees e
		LEFT JOIN employee_shift_bindings b ON b.employee_id = e.id
		GROUP BY e.id
		ORDER BY e.name, e.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []attendance.Employee
	for rows.Next() {
		var (
			id, name, area, position string
			bindings                 []string
		)
		if err := rows.Scan(&id, &name, &area, &position, &bindings); err != nil {
			return nil, err
		}
		employees = append(employees, attendance.Employee{
			ID:             schedule.EmployeeID(id),
			Name:           name,
			Placement:      schedule.Placement{AreaID: schedule.AreaID(area), PositionID: schedule.PositionID(position)},
			DirectBindings: convert[schedule.ShiftID](bindings),
		})
	}
	return employees, rows.Err()
}

func (s *Store) Placement(ctx context.Context, id schedule.EmployeeID) (schedule.Placement, error) {
	var area, position string
	err := s.pool.QueryRow(ctx,
		"SELECT area_id, position_id FROM employees WHERE id = $1", string(id),
	).Scan(&area, &position)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Placement{}, attendance.ErrEmployeeNotFound
	}
	if err != nil {
		return schedule.Placement{}, fmt.Errorf("failed to load placement: %w", err)
	}
	return schedule.Placement{AreaID: schedule.AreaID(area), PositionID: schedule.PositionID(position)}, nil
}

func (s *Store) DirectShiftBindings(ctx context.Context, id schedule.EmployeeID) ([]schedule.ShiftID, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT shift_id FROM employee_shift_bindings WHERE employee_id = $1 ORDER BY ordinal",
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load bindings: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to load bindings: %w", err)
	}
	return convert[schedule.ShiftID](ids), nil
}

// SaveSupernumerary flags or unflags a position.
func (s *Store) SaveSupernumerary(ctx context.Context, positionID schedule.PositionID, flag bool) error {
	var err error
	if flag {
		_, err = s.pool.Exec(ctx,
			"INSERT INTO supernumerary_positions (position_id) VALUES ($1) ON CONFLICT DO NOTHING",
			string(positionID))
	} else {
		_, err = s.pool.Exec(ctx,
			"DELETE FROM supernumerary_positions WHERE position_id = $1", string(positionID))
	}
	return err
}

func (s *Store) IsSupernumerary(ctx context.Context, positionID schedule.PositionID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM supernumerary_positions WHERE position_id = $1)",
		string(positionID),
	).Scan(&exists)
	return exists, err
}

func (s *Store) ListEmployees(ctx context.Context) ([]schedule.EmployeeID, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return convert[schedule.EmployeeID](ids), nil
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shifts (id, name, start_time, end_time, active, areas, positions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			active = EXCLUDED.active,
			areas = EXCLUDED.areas,
			positions = EXCLUDED.positions
	`, string(shift.ID), shift.Name, shift.Window.Start.String(), shift.Window.End.String(),
		shift.Active, setKeys(shift.AssignedAreas), setKeys(shift.AssignedPositions))
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
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, start_time, end_time, areas, positions
		FROM shifts
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []schedule.RotatingShift
	for rows.Next() {
		var (
			id, name, start, end string
			areas, positions     []string
		)
		if err := rows.Scan(&id, &name, &start, &end, &areas, &positions); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		window, err := schedule.NewTimeWindow(start, end)
		if err != nil {
			return nil, fmt.Errorf("shift %s: %w", id, err)
		}
		shifts = append(shifts, schedule.RotatingShift{
			ID:                schedule.ShiftID(id),
			Name:              name,
			Window:            window,
			Active:            true,
			AssignedAreas:     toSet(convert[schedule.AreaID](areas)),
			AssignedPositions: toSet(convert[schedule.PositionID](positions)),
		})
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
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO catalog_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, key, string(valueJSON))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// loadSetting leaves dst untouched when the key was never saved.
func (s *Store) loadSetting(ctx context.Context, key string, dst any) error {
	var valueJSON []byte
	err := s.pool.QueryRow(ctx,
		"SELECT value::text FROM catalog_settings WHERE key = $1", key,
	).Scan(&valueJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(valueJSON, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func convert[T ~string](in []string) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = T(v)
	}
	return out
}

func setKeys[K ~string](set map[K]bool) []string {
	keys := make([]string, 0, len(set))
	for k, ok := range set {
		if ok {
			keys = append(keys, string(k))
		}
	}
	sort.Strings(keys)
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

// Reset empties every table. Used by integration tests against a shared
// database.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		TRUNCATE events, justifications, anomaly_reports, employees,
			employee_shift_bindings, supernumerary_positions, shifts, catalog_settings
	`)
	return err
}
