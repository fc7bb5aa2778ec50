package schedule

import "time"

// =============================================================================
// CANDIDATES - An assignment expanded into concrete, dated, annotated windows
// =============================================================================

// CandidateStatus is one window an employee could punch against, anchored to
// the work date it starts on and annotated with its status at a given instant.
// ShiftID is empty for fixed weekly schedules.
type CandidateStatus struct {
	ShiftID  ShiftID         `json:"shift_id,omitempty"`
	Name     string          `json:"name"`
	Window   TimeWindow      `json:"window"`
	WorkDate time.Time       `json:"work_date"`
	Info     ShiftStatusInfo `json:"info"`
}

// Bounds returns the absolute start and end of the candidate's shift.
func (c CandidateStatus) Bounds() (time.Time, time.Time) {
	return c.Window.Bounds(c.WorkDate)
}

// CheckInBounds returns the absolute instants between which check-in is accepted.
func (c CandidateStatus) CheckInBounds(tol Tolerances) (time.Time, time.Time) {
	return c.absolute(CheckInRange(c.Window, tol))
}

// CheckOutBounds returns the absolute instants between which check-out is accepted.
func (c CandidateStatus) CheckOutBounds(tol Tolerances) (time.Time, time.Time) {
	return c.absolute(CheckOutRange(c.Window, tol))
}

func (c CandidateStatus) absolute(r MinuteRange) (time.Time, time.Time) {
	midnight := DateOf(c.WorkDate, nil)
	return midnight.Add(time.Duration(r.From) * time.Minute), midnight.Add(time.Duration(r.To) * time.Minute)
}

// Candidates expands an assignment into the windows relevant at instant at.
// at must already be in the schedule's location.
//
// Rotating assignments yield one candidate per shift, evaluated with Evaluate.
// Fixed schedules have a different window per weekday, so yesterday's, today's
// and tomorrow's windows are evaluated against their own work date and the
// relevant ones are kept (see fixedCandidates).
func Candidates(a Assignment, at time.Time, tol Tolerances) []CandidateStatus {
	switch p := a.Primary.(type) {
	case Rotating:
		shifts := a.Shifts
		if len(shifts) == 0 {
			shifts = []RotatingShift{p.RotatingShift}
		}
		today := DateOf(at, nil)
		out := make([]CandidateStatus, 0, len(shifts))
		for _, s := range shifts {
			info := Evaluate(s.Window, at, tol)
			out = append(out, CandidateStatus{
				ShiftID:  s.ID,
				Name:     s.Name,
				Window:   s.Window,
				WorkDate: today.AddDate(0, 0, info.DayOffset),
				Info:     info,
			})
		}
		return out

	case Fixed:
		return fixedCandidates(p.FixedWeeklySchedule, at, tol)

	default:
		return nil
	}
}

// fixedCandidates keeps every IN_PROGRESS window. When none is running it
// returns the next upcoming window (today's before tomorrow's), and failing
// that the most recent finished one, so callers always see where the
// employee stands.
func fixedCandidates(f FixedWeeklySchedule, at time.Time, tol Tolerances) []CandidateStatus {
	today := DateOf(at, nil)

	var running, upcoming, finished []CandidateStatus
	for _, d := range []int{-1, 0, 1} {
		day := today.AddDate(0, 0, d)
		w, ok := f.WindowOn(day.Weekday())
		if !ok {
			continue
		}
		c := CandidateStatus{
			Name:     f.Name,
			Window:   w,
			WorkDate: day,
			Info:     EvaluateOn(w, day, at, tol),
		}
		switch c.Info.Status {
		case StatusInProgress:
			running = append(running, c)
		case StatusFuture:
			upcoming = append(upcoming, c)
		case StatusFinished:
			finished = append(finished, c)
		}
	}

	switch {
	case len(running) > 0:
		return running
	case len(upcoming) > 0:
		return upcoming[:1]
	case len(finished) > 0:
		return finished[len(finished)-1:]
	default:
		return nil
	}
}

// WindowsOn lists the windows an assignment schedules to start on day.
// Used by the end-of-day sweep, which already knows the work date.
func WindowsOn(a Assignment, day time.Time) []CandidateStatus {
	switch p := a.Primary.(type) {
	case Rotating:
		shifts := a.Shifts
		if len(shifts) == 0 {
			shifts = []RotatingShift{p.RotatingShift}
		}
		out := make([]CandidateStatus, 0, len(shifts))
		for _, s := range shifts {
			out = append(out, CandidateStatus{ShiftID: s.ID, Name: s.Name, Window: s.Window, WorkDate: day})
		}
		return out

	case Fixed:
		w, ok := p.WindowOn(day.Weekday())
		if !ok {
			return nil
		}
		return []CandidateStatus{{Name: p.Name, Window: w, WorkDate: day}}

	default:
		return nil
	}
}
