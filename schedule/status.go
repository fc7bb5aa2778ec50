/*
status.go - Shift status evaluation

PURPOSE:
  Classifies an instant against one daily window into FUTURE, IN_PROGRESS or
  FINISHED, and decides independently whether check-in and check-out are
  allowed right now.

ALGORITHM (minutes since local midnight):
  start, end := window start/end; end += 1440 when end < start
  ref        := minute of day of the instant

  Overnight window and ref < start - earlyCheckIn:
      the instant belongs to the shift that started yesterday, ref += 1440
      (00:10 is still inside last night's 22:00-06:00 shift).
  Check-in window opening before midnight (start - earlyCheckIn < 0) and
  ref - 1440 inside it:
      the instant belongs to tomorrow's shift, ref -= 1440.

  checkIn  = [start - earlyCheckIn, start + max(tolerance, lateCheckIn)]
  checkOut = [end - max(earlyDeparture, earlyCheckOut), end + lateCheckout]

  ref <  checkIn.start  -> FUTURE (StartsInMinutes = start - ref)
  ref <= checkOut.end   -> IN_PROGRESS, gates set inside their windows only
  otherwise             -> FINISHED

  A shift is IN_PROGRESS for most of the work day with both gates closed.

DAY OFFSET:
  DayOffset tells which calendar day the evaluated shift started on relative
  to the instant's date: -1 yesterday, 0 today, +1 tomorrow.
*/
package schedule

import "time"

type ShiftStatus string

const (
	StatusFuture     ShiftStatus = "FUTURE"
	StatusInProgress ShiftStatus = "IN_PROGRESS"
	StatusFinished   ShiftStatus = "FINISHED"
)

// ShiftStatusInfo is computed on every call, never stored.
type ShiftStatusInfo struct {
	Status          ShiftStatus `json:"status"`
	CanCheckIn      bool        `json:"can_check_in"`
	CanCheckOut     bool        `json:"can_check_out"`
	StartsInMinutes *int        `json:"starts_in_minutes,omitempty"`
	DayOffset       int         `json:"day_offset"`
}

// MinuteRange is a closed interval of minutes relative to the shift's start day.
type MinuteRange struct {
	From int
	To   int
}

func (r MinuteRange) Contains(m int) bool { return m >= r.From && m <= r.To }

// CheckInRange returns the minutes during which check-in is accepted.
func CheckInRange(w TimeWindow, tol Tolerances) MinuteRange {
	start := w.StartMinutes()
	return MinuteRange{From: start - tol.EarlyCheckIn, To: start + tol.checkInClose()}
}

// CheckOutRange returns the minutes during which check-out is accepted.
func CheckOutRange(w TimeWindow, tol Tolerances) MinuteRange {
	end := w.EndMinutes()
	return MinuteRange{From: end - tol.checkOutOpen(), To: end + tol.LateCheckout}
}

// Evaluate classifies at (already in the schedule's location) against w.
func Evaluate(w TimeWindow, at time.Time, tol Tolerances) ShiftStatusInfo {
	checkIn := CheckInRange(w, tol)

	ref := MinuteOfDay(at)
	offset := 0
	switch {
	case w.CrossesMidnight() && ref < checkIn.From:
		ref += MinutesPerDay
		offset = -1
	case checkIn.From < 0 && checkIn.Contains(ref-MinutesPerDay):
		ref -= MinutesPerDay
		offset = 1
	}

	return classify(w, ref, offset, tol)
}

// EvaluateOn classifies at against the shift of w that starts on workDate,
// without guessing which day the instant belongs to. Used when the caller
// already knows the work date (sweeps, auto-close, fixed weekly schedules).
func EvaluateOn(w TimeWindow, workDate, at time.Time, tol Tolerances) ShiftStatusInfo {
	midnight := DateOf(workDate, at.Location())
	ref := MinutesBetween(midnight, at)
	offset := DaysBetween(at, midnight)
	return classify(w, ref, offset, tol)
}

func classify(w TimeWindow, ref, offset int, tol Tolerances) ShiftStatusInfo {
	checkIn := CheckInRange(w, tol)
	checkOut := CheckOutRange(w, tol)

	info := ShiftStatusInfo{DayOffset: offset}
	switch {
	case ref < checkIn.From:
		info.Status = StatusFuture
		startsIn := w.StartMinutes() - ref
		info.StartsInMinutes = &startsIn
	case ref <= checkOut.To:
		info.Status = StatusInProgress
		info.CanCheckIn = checkIn.Contains(ref)
		info.CanCheckOut = checkOut.Contains(ref)
	default:
		info.Status = StatusFinished
	}
	return info
}
