/*
sequencer.go - Per employee-day state machine

STATES:
  NONE --CHECK_IN--> CHECKED_IN --CHECK_OUT--> CHECKED_OUT (terminal)
                      |      ^
           BREAK_START|      |BREAK_END
                      v      |
                     ON_BREAK

  Legality depends only on the state, never on the time of day. Window
  gating is the engine's job (engine.go).
*/
package attendance

import "sort"

type DayState string

const (
	StateNone       DayState = "NONE"
	StateCheckedIn  DayState = "CHECKED_IN"
	StateOnBreak    DayState = "ON_BREAK"
	StateCheckedOut DayState = "CHECKED_OUT"
)

// Open reports a day with a check-in and no check-out yet.
func (s DayState) Open() bool { return s == StateCheckedIn || s == StateOnBreak }

// Transition returns the state after an event of type t, or an
// InvalidSequenceError naming the violated precondition.
func Transition(state DayState, t EventType) (DayState, error) {
	fail := func(reason string) (DayState, error) {
		return state, &InvalidSequenceError{Type: t, State: state, Reason: reason}
	}

	if state == StateCheckedOut {
		return fail("already checked out today")
	}

	switch t {
	case CheckIn:
		if state != StateNone {
			return fail("already checked in today")
		}
		return StateCheckedIn, nil

	case BreakStart:
		switch state {
		case StateNone:
			return fail("not checked in")
		case StateOnBreak:
			return fail("already on break")
		}
		return StateOnBreak, nil

	case BreakEnd:
		if state != StateOnBreak {
			return fail("no break in progress")
		}
		return StateCheckedIn, nil

	case CheckOut:
		switch state {
		case StateNone:
			return fail("not checked in")
		case StateOnBreak:
			return fail("break in progress, end the break first")
		}
		return StateCheckedOut, nil

	default:
		return state, ErrInvalidEventType
	}
}

// ReplayDay folds a work day's events, in timestamp order, into its state.
func ReplayDay(events []Event) (DayState, error) {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sortEvents(sorted)

	state := StateNone
	for _, e := range sorted {
		next, err := Transition(state, e.Type)
		if err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}

// NextLegal lists the event types accepted in state.
func NextLegal(state DayState) []EventType {
	var legal []EventType
	for _, t := range []EventType{CheckIn, BreakStart, BreakEnd, CheckOut} {
		if _, err := Transition(state, t); err == nil {
			legal = append(legal, t)
		}
	}
	return legal
}

// sortEvents orders by timestamp; same-instant events keep their natural
// sequence order (a synthetic BREAK_END precedes the synthetic CHECK_OUT).
func sortEvents(events []Event) {
	rank := map[EventType]int{CheckIn: 0, BreakStart: 1, BreakEnd: 2, CheckOut: 3}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return rank[events[i].Type] < rank[events[j].Type]
	})
}

func findEvent(events []Event, t EventType) (Event, bool) {
	for _, e := range events {
		if e.Type == t {
			return e, true
		}
	}
	return Event{}, false
}
