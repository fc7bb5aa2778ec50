/*
store.go - Collaborator interfaces consumed by the engine

PURPOSE:
  The engine owns no data. Employees and their bindings come from a
  Directory, schedule definitions and tolerances from a Catalog, and the
  day's punches from an append-only Store. Anomalies leave through an
  AnomalyHandler.

APPEND-ONLY CONTRACT:
  Store has exactly one write for events: Append. There is no Update and no
  Delete. Justifications are the only mutable sub-record and have their own
  write.

UNIQUENESS:
  Append MUST atomically reject a second CHECK_IN or CHECK_OUT for the same
  (employee, work date) with an error wrapping ErrDuplicateEvent. A
  read-then-write in the engine is not enough under concurrent punches.

IMPLEMENTATIONS:
  - attendance/store/memory.go: In-memory, for tests and development
  - store/sqlite/sqlite.go:     SQLite (partial UNIQUE index)
  - store/postgres/postgres.go: PostgreSQL via pgx
*/
package attendance

import (
	"context"
	"time"

	"github.com/warp/attendance-engine/schedule"
)

// Store persists attendance events.
type Store interface {
	// EventsForEmployeeDay returns the events of one work date ordered by timestamp.
	EventsForEmployeeDay(ctx context.Context, employeeID schedule.EmployeeID, workDate time.Time) ([]Event, error)

	// Append persists an event. This is the ONLY event write.
	Append(ctx context.Context, e Event) error

	// GetEvent loads one event with its justification. ErrEventNotFound if missing.
	GetEvent(ctx context.Context, id EventID) (Event, error)

	// SaveJustification creates or replaces the justification of an event.
	SaveJustification(ctx context.Context, j Justification) error
}

// Directory answers questions about employees.
type Directory interface {
	// Placement returns ErrEmployeeNotFound for unknown employees.
	Placement(ctx context.Context, employeeID schedule.EmployeeID) (schedule.Placement, error)
	DirectShiftBindings(ctx context.Context, employeeID schedule.EmployeeID) ([]schedule.ShiftID, error)
	IsSupernumerary(ctx context.Context, positionID schedule.PositionID) (bool, error)
	// ListEmployees is the roster walked by sweeps and auto-close.
	ListEmployees(ctx context.Context) ([]schedule.EmployeeID, error)
}

// Catalog supplies schedule definitions and tolerances. Nil results mean
// "not configured".
type Catalog interface {
	FixedSchedule(ctx context.Context) (*schedule.FixedWeeklySchedule, error)
	ActiveRotatingShifts(ctx context.Context) ([]schedule.RotatingShift, error)
	SupernumeraryPolicy(ctx context.Context) (*schedule.SupernumeraryPolicy, error)
	Tolerances(ctx context.Context) (schedule.Tolerances, error)
}

// AnomalyLog remembers which sweep anomalies were already reported so that
// re-running a sweep is safe.
type AnomalyLog interface {
	// MarkReported records (employee, work date, kind) and reports whether
	// this call was the first to do so.
	MarkReported(ctx context.Context, employeeID schedule.EmployeeID, workDate time.Time, kind AnomalyKind) (bool, error)
}

// AnomalyHandler is the incident/memorandum collaborator. The engine never
// writes disciplinary records itself.
type AnomalyHandler interface {
	OnAnomalyDetected(ctx context.Context, result AnomalyResult, employeeID schedule.EmployeeID, eventID EventID) error
}

// AnomalyHandlerFunc adapts a function to AnomalyHandler.
type AnomalyHandlerFunc func(ctx context.Context, result AnomalyResult, employeeID schedule.EmployeeID, eventID EventID) error

func (f AnomalyHandlerFunc) OnAnomalyDetected(ctx context.Context, result AnomalyResult, employeeID schedule.EmployeeID, eventID EventID) error {
	return f(ctx, result, employeeID, eventID)
}

// CodeRedeemer reads and consumes one-time justification codes. Implemented
// by otp stores.
type CodeRedeemer interface {
	Peek(ctx context.Context, key string) (string, error)
	TakeOnce(ctx context.Context, key string) (string, error)
}

// JustificationCodeKey is the key under which a justification code is stored.
// The stored value is the event ID.
func JustificationCodeKey(code string) string { return "justify:" + code }
