/*
Package schedule resolves and evaluates work schedules.

PURPOSE:
  Pure, side-effect free scheduling logic shared by the attendance engine.
  Given an employee's placement and the schedule catalog it decides which
  schedule applies, and given a schedule and an instant it decides whether a
  shift is upcoming, running or over and whether punching is allowed.

KEY CONCEPTS IN THIS FILE (types.go):
  - FixedWeeklySchedule: one window per weekday plus an optional lunch break
  - RotatingShift: a single daily window bound to areas/positions
  - Schedule: tagged union of Fixed and Rotating
  - Assignment: the resolved result, with all candidate shifts
  - Tolerances: entry/exit margins in minutes

WRAPAROUND:
  A TimeWindow whose End is before its Start ends on the next calendar day.
  Every overnight computation in the engine goes through TimeWindow and
  Evaluate (status.go); nothing else does minute arithmetic across midnight.

SEE ALSO:
  - resolver.go: Assignment priority tiers
  - status.go: Shift status evaluation
  - candidates.go: Expansion of an assignment into concrete dated windows
*/
package schedule

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ShiftID string
type AreaID string
type PositionID string

// Placement is where an employee sits in the organisation.
type Placement struct {
	AreaID     AreaID     `json:"area_id"`
	PositionID PositionID `json:"position_id"`
}

// =============================================================================
// FIXED WEEKLY SCHEDULE
// =============================================================================

// FixedWeeklySchedule maps weekdays to windows. A missing weekday means the
// employee is not scheduled that day. Empty assignment sets make the schedule
// the agency-wide default.
type FixedWeeklySchedule struct {
	ID                string
	Name              string
	Days              map[time.Weekday]TimeWindow
	Lunch             *TimeWindow
	AssignedAreas     map[AreaID]bool
	AssignedPositions map[PositionID]bool
}

func (f FixedWeeklySchedule) WindowOn(day time.Weekday) (TimeWindow, bool) {
	w, ok := f.Days[day]
	return w, ok
}

// IsEmpty reports a schedule with no working day at all.
func (f FixedWeeklySchedule) IsEmpty() bool { return len(f.Days) == 0 }

// HasAssignmentList reports whether the schedule enumerates who it applies to.
func (f FixedWeeklySchedule) HasAssignmentList() bool {
	return len(f.AssignedAreas) > 0 || len(f.AssignedPositions) > 0
}

// Covers reports whether the placement is enumerated in the assignment list.
func (f FixedWeeklySchedule) Covers(p Placement) bool {
	return f.AssignedAreas[p.AreaID] || f.AssignedPositions[p.PositionID]
}

// ExpectedHours is the scheduled time on a weekday minus the lunch break
// when the lunch falls inside the day's window.
func (f FixedWeeklySchedule) ExpectedHours(day time.Weekday) decimal.Decimal {
	w, ok := f.Days[day]
	if !ok {
		return decimal.Zero
	}
	minutes := w.DurationMinutes()
	if f.Lunch != nil && w.Overlaps(*f.Lunch) {
		minutes -= f.Lunch.DurationMinutes()
	}
	if minutes < 0 {
		minutes = 0
	}
	return minutesToHours(minutes)
}

// =============================================================================
// ROTATING SHIFT
// =============================================================================

// RotatingShift is immutable reference data shared by many employees.
type RotatingShift struct {
	ID                ShiftID
	Name              string
	Window            TimeWindow
	Active            bool
	AssignedAreas     map[AreaID]bool
	AssignedPositions map[PositionID]bool
}

// Matches reports area/position based applicability.
func (s RotatingShift) Matches(p Placement) bool {
	return s.AssignedAreas[p.AreaID] || s.AssignedPositions[p.PositionID]
}

func (s RotatingShift) ExpectedHours() decimal.Decimal {
	return minutesToHours(s.Window.DurationMinutes())
}

// SortShiftsByStart orders shifts by start time, then by ID for stability.
func SortShiftsByStart(shifts []RotatingShift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		si, sj := shifts[i].Window.StartMinutes(), shifts[j].Window.StartMinutes()
		if si != sj {
			return si < sj
		}
		return shifts[i].ID < shifts[j].ID
	})
}

// =============================================================================
// SCHEDULE - Tagged union consumed by candidates.go and ExpectedHoursOn
// =============================================================================

type Kind string

const (
	KindFixed    Kind = "FIXED"
	KindRotating Kind = "ROTATING"
)

// Schedule is either Fixed or Rotating. The interface is sealed.
type Schedule interface {
	Kind() Kind
	sealed()
}

type Fixed struct{ FixedWeeklySchedule }

type Rotating struct{ RotatingShift }

func (Fixed) Kind() Kind    { return KindFixed }
func (Rotating) Kind() Kind { return KindRotating }
func (Fixed) sealed()       {}
func (Rotating) sealed()    {}

// ExpectedHoursOn returns the scheduled hours a schedule carries on a date.
func ExpectedHoursOn(s Schedule, day time.Time) decimal.Decimal {
	switch v := s.(type) {
	case Fixed:
		return v.ExpectedHours(day.Weekday())
	case Rotating:
		return v.ExpectedHours()
	default:
		return decimal.Zero
	}
}

// =============================================================================
// SUPERNUMERARY POLICY
// =============================================================================

type SupernumeraryMode string

const (
	ModeReplacement   SupernumeraryMode = "REPLACEMENT"
	ModeFixedSchedule SupernumeraryMode = "FIXED_SCHEDULE"
)

// SupernumeraryPolicy applies only to employees whose position is flagged
// supernumerary. REPLACEMENT uses AllowedShiftIDs, FIXED_SCHEDULE uses Schedule.
type SupernumeraryPolicy struct {
	Mode            SupernumeraryMode
	AllowedShiftIDs map[ShiftID]bool
	Schedule        *FixedWeeklySchedule
}

// =============================================================================
// SCHEDULE ASSIGNMENT - Resolved, never stored
// =============================================================================

// Source records which resolution tier produced an assignment.
type Source string

const (
	SourceSupernumeraryFixed       Source = "SUPERNUMERARY_FIXED"
	SourceSupernumeraryReplacement Source = "SUPERNUMERARY_REPLACEMENT"
	SourceDirectBinding            Source = "DIRECT_BINDING"
	SourceAreaMatch                Source = "AREA_MATCH"
	SourceFixedSchedule            Source = "FIXED_SCHEDULE"
)

type Assignment struct {
	EmployeeID EmployeeID
	Primary    Schedule
	// Shifts holds every rotating candidate sorted by start time. The first
	// one is the primary when Primary is Rotating. Empty for fixed schedules.
	Shifts         []RotatingShift
	Source         Source
	Replacement    bool
	MultipleShifts bool
}

// =============================================================================
// TOLERANCES
// =============================================================================

// DefaultToleranceMinutes applies when the catalog does not set one.
const DefaultToleranceMinutes = 15

// DefaultWideningMinutes is the default LateCheckIn and EarlyCheckOut.
const DefaultWideningMinutes = 120

// Tolerances are in minutes.
//
//	checkIn  = [start - EarlyCheckIn, start + max(Tolerance, LateCheckIn)]
//	checkOut = [end - max(EarlyDeparture, EarlyCheckOut), end + LateCheckout]
//
// LateCheckIn and EarlyCheckOut only widen the punch gates so that late and
// early punches are accepted and then flagged by the detector. Both default
// to two hours; zero shrinks the gates to the detector thresholds, which
// refuses the very punches that would be flagged.
type Tolerances struct {
	Tolerance      int `json:"tolerance" mapstructure:"tolerance"`
	EarlyCheckIn   int `json:"early_check_in" mapstructure:"early_check_in"`
	LateCheckIn    int `json:"late_check_in" mapstructure:"late_check_in"`
	EarlyCheckOut  int `json:"early_check_out" mapstructure:"early_check_out"`
	LateCheckout   int `json:"late_checkout" mapstructure:"late_checkout"`
	EarlyDeparture int `json:"early_departure" mapstructure:"early_departure"`
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		Tolerance:      DefaultToleranceMinutes,
		EarlyCheckIn:   30,
		LateCheckIn:    DefaultWideningMinutes,
		EarlyCheckOut:  DefaultWideningMinutes,
		LateCheckout:   60,
		EarlyDeparture: 15,
	}
}

func (t Tolerances) checkInClose() int { return max(t.Tolerance, t.LateCheckIn) }
func (t Tolerances) checkOutOpen() int  { return max(t.EarlyDeparture, t.EarlyCheckOut) }

func minutesToHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
}
