/*
resolver.go - Decides which schedule applies to an employee

RESOLUTION TIERS (first match wins):
  1. Supernumerary:  the position is flagged supernumerary, apply the policy
                     (FIXED_SCHEDULE or REPLACEMENT). Incomplete policy is a
                     ConfigurationError; a floater is never told to guess.
  2. Direct binding: explicit employee-to-shift bindings. Used exactly, never
                     diluted with the shifts of the employee's area.
  3. Area/position:  active shifts assigned to the employee's area or position.
  4. Fixed schedule: when the employee is enumerated in its assignment list,
                     or when the schedule has no list (agency-wide default).
  5. Nothing:        NoScheduleAssignedError. Never defaulted to "9-to-5".

Tiers 1-3 may yield several rotating shifts. They are merged into one
assignment sorted by start time; the earliest becomes primary.

PURITY:
  Resolve does no I/O. The engine gathers Profile and CatalogSnapshot from
  the directory and catalog collaborators, then calls Resolve. Same inputs
  always give the same assignment.
*/
package schedule

import "fmt"

// Profile is everything the resolver needs to know about one employee.
type Profile struct {
	EmployeeID     EmployeeID
	Placement      Placement
	Supernumerary  bool
	DirectBindings []ShiftID
}

// CatalogSnapshot is the schedule catalog at resolution time.
// Shifts holds the active rotating shifts only.
type CatalogSnapshot struct {
	Fixed  *FixedWeeklySchedule
	Shifts []RotatingShift
	Policy *SupernumeraryPolicy
}

func (c CatalogSnapshot) activeShift(id ShiftID) (RotatingShift, bool) {
	for _, s := range c.Shifts {
		if s.ID == id && s.Active {
			return s, true
		}
	}
	return RotatingShift{}, false
}

// Resolve applies the resolution tiers.
func Resolve(p Profile, c CatalogSnapshot) (Assignment, error) {
	if p.Supernumerary {
		return resolveSupernumerary(p, c)
	}

	if shifts := directShifts(p, c); len(shifts) > 0 {
		return rotatingAssignment(p.EmployeeID, shifts, SourceDirectBinding, false), nil
	}

	if shifts := areaShifts(p, c); len(shifts) > 0 {
		return rotatingAssignment(p.EmployeeID, shifts, SourceAreaMatch, false), nil
	}

	if f := c.Fixed; f != nil && !f.IsEmpty() {
		if !f.HasAssignmentList() || f.Covers(p.Placement) {
			return Assignment{
				EmployeeID: p.EmployeeID,
				Primary:    Fixed{*f},
				Source:     SourceFixedSchedule,
			}, nil
		}
	}

	return Assignment{}, &NoScheduleAssignedError{EmployeeID: p.EmployeeID, Placement: p.Placement}
}

func resolveSupernumerary(p Profile, c CatalogSnapshot) (Assignment, error) {
	if c.Policy == nil {
		return Assignment{}, &ConfigurationError{
			EmployeeID: p.EmployeeID,
			Reason:     "employee is supernumerary but no supernumerary policy is configured",
		}
	}

	switch c.Policy.Mode {
	case ModeFixedSchedule:
		if c.Policy.Schedule == nil || c.Policy.Schedule.IsEmpty() {
			return Assignment{}, &ConfigurationError{
				EmployeeID: p.EmployeeID,
				Reason:     "supernumerary policy FIXED_SCHEDULE has no working days",
			}
		}
		return Assignment{
			EmployeeID: p.EmployeeID,
			Primary:    Fixed{*c.Policy.Schedule},
			Source:     SourceSupernumeraryFixed,
		}, nil

	case ModeReplacement:
		var shifts []RotatingShift
		for id := range c.Policy.AllowedShiftIDs {
			if s, ok := c.activeShift(id); ok {
				shifts = append(shifts, s)
			}
		}
		if len(shifts) == 0 {
			return Assignment{}, &ConfigurationError{
				EmployeeID: p.EmployeeID,
				Reason:     "supernumerary policy REPLACEMENT references no active shift",
			}
		}
		return rotatingAssignment(p.EmployeeID, shifts, SourceSupernumeraryReplacement, true), nil

	default:
		return Assignment{}, &ConfigurationError{
			EmployeeID: p.EmployeeID,
			Reason:     fmt.Sprintf("unknown supernumerary mode %q", c.Policy.Mode),
		}
	}
}

// directShifts keeps the active shifts among the employee's bindings.
// Bindings that only point at inactive or unknown shifts count as none.
func directShifts(p Profile, c CatalogSnapshot) []RotatingShift {
	seen := make(map[ShiftID]bool, len(p.DirectBindings))
	var shifts []RotatingShift
	for _, id := range p.DirectBindings {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := c.activeShift(id); ok {
			shifts = append(shifts, s)
		}
	}
	return shifts
}

func areaShifts(p Profile, c CatalogSnapshot) []RotatingShift {
	var shifts []RotatingShift
	for _, s := range c.Shifts {
		if s.Active && s.Matches(p.Placement) {
			shifts = append(shifts, s)
		}
	}
	return shifts
}

func rotatingAssignment(id EmployeeID, shifts []RotatingShift, src Source, replacement bool) Assignment {
	sorted := make([]RotatingShift, len(shifts))
	copy(sorted, shifts)
	SortShiftsByStart(sorted)
	return Assignment{
		EmployeeID:     id,
		Primary:        Rotating{sorted[0]},
		Shifts:         sorted,
		Source:         src,
		Replacement:    replacement,
		MultipleShifts: len(sorted) > 1,
	}
}
