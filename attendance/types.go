/*
Package attendance records clock events and classifies them.

PURPOSE:
  Turns raw punches (check-in, break start/end, check-out) into validated,
  immutable AttendanceEvents, and classifies them and whole work days into
  anomalies handed to an incident collaborator.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event: one physical punch, append-only
  - Justification: the only mutable sub-record of an event
  - AnomalyResult: computed classification, never stored

WORK DATE:
  Every event carries the calendar date its shift started on. A 06:05
  check-out of a 22:00-06:00 shift belongs to the previous day, so the
  per-day state machine and the storage uniqueness key both use WorkDate,
  never the timestamp's date.

SEE ALSO:
  - sequencer.go: Per-day state machine
  - anomaly.go:   Detector
  - engine.go:    Operations exposed to callers
*/
package attendance

import (
	"time"

	"github.com/warp/attendance-engine/schedule"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

type EventType string

const (
	CheckIn    EventType = "CHECK_IN"
	CheckOut   EventType = "CHECK_OUT"
	BreakStart EventType = "BREAK_START"
	BreakEnd   EventType = "BREAK_END"
)

func (t EventType) Valid() bool {
	switch t {
	case CheckIn, CheckOut, BreakStart, BreakEnd:
		return true
	}
	return false
}

// WindowGated reports whether the event type must fall in a shift window.
// Breaks are not window-gated.
func (t EventType) WindowGated() bool { return t == CheckIn || t == CheckOut }

// Status is the resulting status recorded with an event.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusAbsent  Status = "ABSENT"
	StatusExcused Status = "EXCUSED"
)

// =============================================================================
// EVENT - Append-only record of one punch
// =============================================================================

type EventID string

type Event struct {
	ID         EventID             `json:"id"`
	EmployeeID schedule.EmployeeID `json:"employee_id"`
	Type       EventType           `json:"type"`
	Timestamp  time.Time           `json:"timestamp"`
	WorkDate   time.Time           `json:"work_date"`
	Status     Status              `json:"status"`
	ShiftRef   schedule.ShiftID    `json:"shift_ref,omitempty"`
	// Synthetic marks events written by auto-close rather than by a person.
	Synthetic     bool           `json:"synthetic"`
	Justification *Justification `json:"justification,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EffectiveStatus is EXCUSED once a justification has been accepted.
func (e Event) EffectiveStatus() Status {
	if e.Justification != nil && e.Justification.Status == JustificationAccepted {
		return StatusExcused
	}
	return e.Status
}

// =============================================================================
// JUSTIFICATION
// =============================================================================

// JustificationWindow is how long after the punch a justification may be filed.
const JustificationWindow = 7 * 24 * time.Hour

type JustificationStatus string

const (
	JustificationPending  JustificationStatus = "PENDING"
	JustificationAccepted JustificationStatus = "JUSTIFIED"
	JustificationRejected JustificationStatus = "REJECTED"
)

type Justification struct {
	ID          string              `json:"id"`
	EventID     EventID             `json:"event_id"`
	Reason      string              `json:"reason"`
	Status      JustificationStatus `json:"status"`
	SubmittedAt time.Time           `json:"submitted_at"`
	ReviewedBy  string              `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time          `json:"reviewed_at,omitempty"`
}

// =============================================================================
// ANOMALIES
// =============================================================================

type AnomalyKind string

const (
	LateArrival      AnomalyKind = "LATE_ARRIVAL"
	EarlyDeparture   AnomalyKind = "EARLY_DEPARTURE"
	UnregisteredExit AnomalyKind = "UNREGISTERED_EXIT"
	Absence          AnomalyKind = "ABSENCE"
)

// AnomalyResult is computed, never stored. DeviationMinutes is the single
// source of truth for reports; nothing recomputes it.
type AnomalyResult struct {
	HasAnomaly       bool                `json:"has_anomaly"`
	Kind             AnomalyKind         `json:"kind,omitempty"`
	ExpectedTime     *time.Time          `json:"expected_time,omitempty"`
	ActualTime       *time.Time          `json:"actual_time,omitempty"`
	DeviationMinutes *int                `json:"deviation_minutes,omitempty"`
	EmployeeID       schedule.EmployeeID `json:"employee_id"`
	EventID          EventID             `json:"event_id,omitempty"`
	ShiftID          schedule.ShiftID    `json:"shift_id,omitempty"`
	WorkDate         time.Time           `json:"work_date"`
}

// Employee is a directory entry as stored by the bundled stores.
type Employee struct {
	ID             schedule.EmployeeID `json:"id"`
	Name           string              `json:"name"`
	Placement      schedule.Placement  `json:"placement"`
	DirectBindings []schedule.ShiftID  `json:"direct_bindings,omitempty"`
}
