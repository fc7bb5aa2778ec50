package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/schedule"
)

// =============================================================================
// DAY TIMELINE - Read model for reports and the UI
// =============================================================================

// DayTimeline is one employee's work day as reports see it. Anomalies come
// from the Detector; nothing downstream recomputes deviations.
type DayTimeline struct {
	EmployeeID    schedule.EmployeeID        `json:"employee_id"`
	WorkDate      time.Time                  `json:"work_date"`
	State         DayState                   `json:"state"`
	Status        Status                     `json:"status,omitempty"`
	Events        []Event                    `json:"events"`
	Windows       []schedule.CandidateStatus `json:"windows"`
	Anomalies     []AnomalyResult            `json:"anomalies"`
	ExpectedHours decimal.Decimal            `json:"expected_hours"`
	WorkedHours   decimal.Decimal            `json:"worked_hours"`
}

// Timeline assembles the work day of one employee.
func (e *Engine) Timeline(ctx context.Context, employeeID schedule.EmployeeID, day time.Time) (DayTimeline, error) {
	day = schedule.DateOf(day, e.loc)

	r, err := e.resolve(ctx, employeeID)
	if err != nil {
		return DayTimeline{}, err
	}
	events, err := e.dayEvents(ctx, employeeID, day)
	if err != nil {
		return DayTimeline{}, err
	}
	sortEvents(events)

	state, err := ReplayDay(events)
	if err != nil {
		return DayTimeline{}, err
	}

	windows := schedule.WindowsOn(r.assignment, day)
	detector := NewDetector(r.tolerances)

	tl := DayTimeline{
		EmployeeID:  employeeID,
		WorkDate:    day,
		State:       state,
		Events:      events,
		Windows:     windows,
		Anomalies:   []AnomalyResult{},
		WorkedHours: workedHours(events),
	}

	if len(windows) > 0 {
		for _, ev := range events {
			if !ev.Type.WindowGated() {
				continue
			}
			if a := detector.DetectEvent(ev, windowFor(windows, ev.ShiftRef)); a.HasAnomaly {
				tl.Anomalies = append(tl.Anomalies, a)
			}
		}
		tl.Anomalies = append(tl.Anomalies, detector.SweepDay(employeeID, day, windows, events, e.now().In(e.loc))...)
		tl.ExpectedHours = expectedHours(r.assignment, windows, events, day)
	}

	tl.Status = dayStatus(events, tl.Anomalies)
	return tl, nil
}

// expectedHours uses the shift actually checked into when there is one.
func expectedHours(a schedule.Assignment, windows []schedule.CandidateStatus, events []Event, day time.Time) decimal.Decimal {
	checkIn, ok := findEvent(events, CheckIn)
	if ok && checkIn.ShiftRef != "" {
		for _, s := range a.Shifts {
			if s.ID == checkIn.ShiftRef {
				return schedule.ExpectedHoursOn(schedule.Rotating{RotatingShift: s}, day)
			}
		}
	}
	return schedule.ExpectedHoursOn(a.Primary, day)
}

// workedHours sums closed working segments; breaks are not worked time.
func workedHours(events []Event) decimal.Decimal {
	var minutes int
	var segmentStart *time.Time
	for i := range events {
		ev := events[i]
		switch ev.Type {
		case CheckIn, BreakEnd:
			segmentStart = &events[i].Timestamp
		case BreakStart, CheckOut:
			if segmentStart != nil {
				minutes += schedule.MinutesBetween(*segmentStart, ev.Timestamp)
				segmentStart = nil
			}
		}
	}
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
}

func dayStatus(events []Event, anomalies []AnomalyResult) Status {
	if checkIn, ok := findEvent(events, CheckIn); ok {
		return checkIn.EffectiveStatus()
	}
	for _, a := range anomalies {
		if a.Kind == Absence {
			return StatusAbsent
		}
	}
	return ""
}
