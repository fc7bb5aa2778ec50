package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeOfDay is returned for anything that is not a valid 24h HH:MM.
	ErrInvalidTimeOfDay = errors.New("invalid time of day")

	// ErrEmptyWindow is returned for windows whose start equals their end.
	ErrEmptyWindow = errors.New("time window is empty")

	// ErrConfiguration marks schedule setups an administrator has to fix.
	// Never defaulted, never retried.
	ErrConfiguration = errors.New("schedule configuration error")

	// ErrNoScheduleAssigned is returned when no resolution tier matched.
	ErrNoScheduleAssigned = errors.New("no schedule assigned")
)

// ConfigurationError explains why a schedule could not be resolved.
type ConfigurationError struct {
	EmployeeID EmployeeID
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("schedule configuration error for employee %s: %s", e.EmployeeID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NoScheduleAssignedError is the configuration error of the last tier.
type NoScheduleAssignedError struct {
	EmployeeID EmployeeID
	Placement  Placement
}

func (e *NoScheduleAssignedError) Error() string {
	return fmt.Sprintf("no schedule assigned to employee %s (area %s, position %s)",
		e.EmployeeID, e.Placement.AreaID, e.Placement.PositionID)
}

func (e *NoScheduleAssignedError) Unwrap() []error {
	return []error{ErrNoScheduleAssigned, ErrConfiguration}
}

// IsConfigurationError returns true for any error an administrator must fix.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
