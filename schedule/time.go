package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the wraparound modulus for wall-clock arithmetic.
const MinutesPerDay = 24 * 60

// =============================================================================
// TIME OF DAY - Local wall-clock time without a date
// =============================================================================

// TimeOfDay is an hour:minute on the local wall clock.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay validates and builds a TimeOfDay.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidTimeOfDay, hour, minute)
	}
	return t, nil
}

// MustTimeOfDay parses "HH:MM" and panics on malformed input. Presets and tests only.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return NewTimeOfDay(h, m)
}

// TimeOfDayOf extracts the wall-clock time of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay { return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()} }

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) Minutes() int            { return t.Hour*60 + t.Minute }
func (t TimeOfDay) Before(o TimeOfDay) bool { return t.Minutes() < o.Minutes() }
func (t TimeOfDay) String() string          { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On anchors the time of day to the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// TIME WINDOW - Start/end pair; End < Start means the window ends next day
// =============================================================================

type TimeWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewTimeWindow parses a "HH:MM"-"HH:MM" pair.
func NewTimeWindow(start, end string) (TimeWindow, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return TimeWindow{}, err
	}
	w := TimeWindow{Start: s, End: e}
	return w, w.Validate()
}

// MustWindow is NewTimeWindow for presets and tests.
func MustWindow(start, end string) TimeWindow {
	w, err := NewTimeWindow(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

func (w TimeWindow) Validate() error {
	if !w.Start.Valid() || !w.End.Valid() {
		return ErrInvalidTimeOfDay
	}
	if w.Start == w.End {
		return ErrEmptyWindow
	}
	return nil
}

func (w TimeWindow) CrossesMidnight() bool { return w.End.Before(w.Start) }

// StartMinutes and EndMinutes are minutes since the local midnight of the day
// the window starts. EndMinutes exceeds MinutesPerDay for overnight windows.
func (w TimeWindow) StartMinutes() int { return w.Start.Minutes() }

func (w TimeWindow) EndMinutes() int {
	end := w.End.Minutes()
	if w.CrossesMidnight() {
		end += MinutesPerDay
	}
	return end
}

func (w TimeWindow) DurationMinutes() int { return w.EndMinutes() - w.StartMinutes() }

// Overlaps reports whether two windows anchored on the same day intersect.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.StartMinutes() < o.EndMinutes() && o.StartMinutes() < w.EndMinutes()
}

// Bounds returns the absolute start and end of the window when it starts on day.
func (w TimeWindow) Bounds(day time.Time) (time.Time, time.Time) {
	start := w.Start.On(day)
	return start, start.Add(time.Duration(w.DurationMinutes()) * time.Minute)
}

func (w TimeWindow) String() string { return w.Start.String() + "-" + w.End.String() }

// =============================================================================
// DAY UTILITIES
// =============================================================================

// DateOf truncates t to local midnight in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MinuteOfDay returns minutes since the local midnight of t.
func MinuteOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }

// MinutesBetween returns whole minutes from a to b (negative if b is earlier).
func MinutesBetween(a, b time.Time) int { return int(b.Sub(a) / time.Minute) }

// SameDate compares calendar dates ignoring the time component.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween counts calendar days from the date of a to the date of b.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// FormatDate renders a work date as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format("2006-01-02") }

// ParseDate parses YYYY-MM-DD as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}
