package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/attendance-engine/schedule"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidSequence is returned when an event type is illegal in the
	// day's current state. Rejected punch, never retried.
	ErrInvalidSequence = errors.New("invalid event sequence")

	// ErrOutsideWindow is returned when a check-in or check-out falls outside
	// every candidate window.
	ErrOutsideWindow = errors.New("outside allowed window")

	// ErrDuplicateEvent is returned by stores when a second CHECK_IN or
	// CHECK_OUT is written for the same employee and work date. Benign race:
	// re-read the day instead of retrying the write.
	ErrDuplicateEvent = errors.New("duplicate event for work date")

	ErrInvalidEventType = errors.New("invalid event type")
	ErrEventNotFound    = errors.New("event not found")
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrJustificationWindowClosed is returned after JustificationWindow has elapsed.
	ErrJustificationWindowClosed = errors.New("justification window closed")

	ErrJustificationExists            = errors.New("justification already filed")
	ErrJustificationNotFound          = errors.New("justification not found")
	ErrInvalidJustificationTransition = errors.New("invalid justification transition")
	ErrReasonRequired                 = errors.New("justification reason is required")
	ErrInvalidCode                    = errors.New("invalid or expired justification code")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidSequenceError names the violated precondition.
type InvalidSequenceError struct {
	Type   EventType
	State  DayState
	Reason string
}

func (e *InvalidSequenceError) Error() string {
	return fmt.Sprintf("%s not allowed: %s (state %s)", e.Type, e.Reason, e.State)
}

func (e *InvalidSequenceError) Unwrap() error { return ErrInvalidSequence }

// WindowRange is one candidate window as shown to the employee.
type WindowRange struct {
	ShiftID schedule.ShiftID `json:"shift_id,omitempty"`
	Name    string           `json:"name"`
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
}

func (r WindowRange) String() string {
	label := r.Name
	if label == "" {
		label = string(r.ShiftID)
	}
	return fmt.Sprintf("%s %s-%s", label, r.From.Format("2006-01-02 15:04"), r.To.Format("15:04"))
}

// OutsideWindowError enumerates every candidate window so the caller can
// self-correct instead of being pointed at one arbitrary shift.
type OutsideWindowError struct {
	Type    EventType
	At      time.Time
	Windows []WindowRange
}

func (e *OutsideWindowError) Error() string {
	if len(e.Windows) == 0 {
		return fmt.Sprintf("%s at %s: no shift window is open around this time",
			e.Type, e.At.Format("2006-01-02 15:04"))
	}
	parts := make([]string, len(e.Windows))
	for i, w := range e.Windows {
		parts[i] = w.String()
	}
	return fmt.Sprintf("%s at %s is outside the allowed windows: %s",
		e.Type, e.At.Format("2006-01-02 15:04"), strings.Join(parts, "; "))
}

func (e *OutsideWindowError) Unwrap() error { return ErrOutsideWindow }

// DuplicateEventError is the domain form of a store uniqueness violation.
type DuplicateEventError struct {
	EmployeeID schedule.EmployeeID
	WorkDate   time.Time
	Type       EventType
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("%s already recorded for employee %s on %s",
		e.Type, e.EmployeeID, schedule.FormatDate(e.WorkDate))
}

func (e *DuplicateEventError) Unwrap() error { return ErrDuplicateEvent }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the punch or request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSequence) ||
		errors.Is(err, ErrOutsideWindow) ||
		errors.Is(err, ErrInvalidEventType) ||
		errors.Is(err, ErrJustificationWindowClosed) ||
		errors.Is(err, ErrInvalidJustificationTransition) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrInvalidCode)
}

// IsConflict returns true for errors the caller should resolve by re-reading state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateEvent) || errors.Is(err, ErrJustificationExists)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrJustificationNotFound)
}
