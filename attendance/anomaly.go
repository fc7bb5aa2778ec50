/*
anomaly.go - Anomaly classification

PURPOSE:
  Classifies single punches and whole work days against the schedule that
  was resolved for them. Pure: no I/O, no writes. The engine hands results
  to the AnomalyHandler.

RULES:
  CHECK_IN   actual - start > Tolerance        -> LATE_ARRIVAL
             deviation = actual - start (the full delay, kept for the record)
  CHECK_OUT  end - actual > EarlyDeparture     -> EARLY_DEPARTURE
             deviation = (end - actual) - EarlyDeparture
             (05:30 against 06:00 with 15 minutes tolerance -> 15)
  Day sweep, once every window of the day has closed:
             no CHECK_IN                       -> ABSENCE
             CHECK_IN, no real CHECK_OUT       -> UNREGISTERED_EXIT
             (an auto-close CHECK_OUT is not a real one)

  Synthetic events are never classified as late or early.
*/
package attendance

import (
	"time"

	"github.com/warp/attendance-engine/schedule"
)

// Detector holds the tolerances in force for one classification run.
type Detector struct {
	Tolerances schedule.Tolerances
}

func NewDetector(tol schedule.Tolerances) Detector {
	return Detector{Tolerances: tol}
}

// DetectEvent classifies a CHECK_IN or CHECK_OUT against the window it was
// accepted in. Other event types never carry an anomaly.
func (d Detector) DetectEvent(e Event, window schedule.CandidateStatus) AnomalyResult {
	result := AnomalyResult{
		EmployeeID: e.EmployeeID,
		EventID:    e.ID,
		ShiftID:    window.ShiftID,
		WorkDate:   e.WorkDate,
	}
	if e.Synthetic {
		return result
	}

	start, end := window.Bounds()
	switch e.Type {
	case CheckIn:
		delay := schedule.MinutesBetween(start, e.Timestamp)
		if delay > d.Tolerances.Tolerance {
			result.flag(LateArrival, start, e.Timestamp, delay)
		}

	case CheckOut:
		early := schedule.MinutesBetween(e.Timestamp, end)
		if early > d.Tolerances.EarlyDeparture {
			result.flag(EarlyDeparture, end, e.Timestamp, early-d.Tolerances.EarlyDeparture)
		}
	}
	return result
}

// SweepDay classifies one employee's work day. windows are the windows
// scheduled to start on workDate; events are that work date's events.
// Nothing is reported until the check-out window of every scheduled window
// has closed at now.
func (d Detector) SweepDay(
	employeeID schedule.EmployeeID,
	workDate time.Time,
	windows []schedule.CandidateStatus,
	events []Event,
	now time.Time,
) []AnomalyResult {
	if len(windows) == 0 || !d.dayClosed(windows, now) {
		return nil
	}

	checkIn, ok := findEvent(events, CheckIn)
	if !ok {
		first := windows[0]
		for _, w := range windows[1:] {
			if w.Window.StartMinutes() < first.Window.StartMinutes() {
				first = w
			}
		}
		start, _ := first.Bounds()
		result := AnomalyResult{EmployeeID: employeeID, ShiftID: first.ShiftID, WorkDate: workDate}
		result.HasAnomaly = true
		result.Kind = Absence
		result.ExpectedTime = &start
		return []AnomalyResult{result}
	}

	checkOut, ok := findEvent(events, CheckOut)
	if ok && !checkOut.Synthetic {
		return nil
	}

	window := windowFor(windows, checkIn.ShiftRef)
	_, end := window.Bounds()
	result := AnomalyResult{
		HasAnomaly:   true,
		Kind:         UnregisteredExit,
		EmployeeID:   employeeID,
		EventID:      checkIn.ID,
		ShiftID:      window.ShiftID,
		WorkDate:     workDate,
		ExpectedTime: &end,
	}
	if ok {
		actual := checkOut.Timestamp
		deviation := schedule.MinutesBetween(end, actual)
		result.ActualTime = &actual
		result.DeviationMinutes = &deviation
	}
	return []AnomalyResult{result}
}

// dayClosed reports whether every window's check-out gate has closed.
func (d Detector) dayClosed(windows []schedule.CandidateStatus, now time.Time) bool {
	for _, w := range windows {
		info := schedule.EvaluateOn(w.Window, w.WorkDate, now, d.Tolerances)
		if info.Status != schedule.StatusFinished {
			return false
		}
	}
	return true
}

func (r *AnomalyResult) flag(kind AnomalyKind, expected, actual time.Time, deviation int) {
	r.HasAnomaly = true
	r.Kind = kind
	r.ExpectedTime = &expected
	r.ActualTime = &actual
	r.DeviationMinutes = &deviation
}

// windowFor picks the window with the given shift, or the first one.
func windowFor(windows []schedule.CandidateStatus, ref schedule.ShiftID) schedule.CandidateStatus {
	for _, w := range windows {
		if ref != "" && w.ShiftID == ref {
			return w
		}
	}
	return windows[0]
}
