/*
engine.go - Operations exposed to reporting, UI and batch callers

CONTROL FLOW OF A PUNCH (RecordEvent):
  1. Resolve the employee's schedule (schedule.Resolve)
  2. Expand it into candidate windows at the punch instant
  3. Pick the work date the punch belongs to and replay that day
  4. Sequence check (InvalidSequenceError wins over window errors)
  5. Window gate for CHECK_IN / CHECK_OUT against ANY candidate
  6. Append (store enforces one CHECK_IN / CHECK_OUT per work date)
  7. Detect anomalies against the same window, hand them to the handler

WORK DATE SELECTION:
  CHECK_IN:  the work date of the candidate whose check-in gate is open,
             so 23:50 for a 00:30 shift is tomorrow's check-in.
  Others:    the open day (CHECKED_IN or ON_BREAK) among today, yesterday
             and tomorrow, in that order. Falls back to today, where the
             sequencer then rejects the punch.

NO RETRIES:
  Every error is a local decision or a collaborator failure. Nothing here
  retries; that belongs to the caller.

SEE ALSO:
  - autoclose.go:     Synthetic check-outs for forgotten shifts
  - sweep.go:         End-of-day ABSENCE / UNREGISTERED_EXIT
  - justification.go: Justification workflow
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/schedule"
	"go.uber.org/zap"
)

// Engine wires the pure components to their collaborators.
type Engine struct {
	store     Store
	directory Directory
	catalog   Catalog

	anomalies AnomalyLog
	handler   AnomalyHandler
	codes     CodeRedeemer

	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Engine)

// WithAnomalyLog enables sweep deduplication. Without it every sweep reports.
func WithAnomalyLog(l AnomalyLog) Option { return func(e *Engine) { e.anomalies = l } }

func WithAnomalyHandler(h AnomalyHandler) Option { return func(e *Engine) { e.handler = h } }

// WithCodeRedeemer enables RedeemCode.
func WithCodeRedeemer(c CodeRedeemer) Option { return func(e *Engine) { e.codes = c } }

// WithLocation sets the wall-clock location schedules are expressed in.
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(store Store, directory Directory, catalog Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		directory: directory,
		catalog:   catalog,
		loc:       time.Local,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location is the wall-clock location of the engine's schedules.
func (e *Engine) Location() *time.Location { return e.loc }

// =============================================================================
// RESOLUTION
// =============================================================================

// resolved bundles what every operation needs about one employee.
type resolved struct {
	assignment schedule.Assignment
	tolerances schedule.Tolerances
}

// ResolveSchedule returns the schedule assignment in force for the employee.
// Configuration errors are returned as is, never defaulted.
func (e *Engine) ResolveSchedule(ctx context.Context, employeeID schedule.EmployeeID, at time.Time) (schedule.Assignment, error) {
	r, err := e.resolve(ctx, employeeID)
	if err != nil {
		return schedule.Assignment{}, err
	}
	return r.assignment, nil
}

func (e *Engine) resolve(ctx context.Context, employeeID schedule.EmployeeID) (resolved, error) {
	placement, err := e.directory.Placement(ctx, employeeID)
	if err != nil {
		return resolved{}, fmt.Errorf("loading placement of %s: %w", employeeID, err)
	}
	bindings, err := e.directory.DirectShiftBindings(ctx, employeeID)
	if err != nil {
		return resolved{}, fmt.Errorf("loading shift bindings of %s: %w", employeeID, err)
	}
	supernumerary, err := e.directory.IsSupernumerary(ctx, placement.PositionID)
	if err != nil {
		return resolved{}, fmt.Errorf("checking supernumerary position %s: %w", placement.PositionID, err)
	}

	var snap schedule.CatalogSnapshot
	if snap.Fixed, err = e.catalog.FixedSchedule(ctx); err != nil {
		return resolved{}, fmt.Errorf("loading fixed schedule: %w", err)
	}
	if snap.Shifts, err = e.catalog.ActiveRotatingShifts(ctx); err != nil {
		return resolved{}, fmt.Errorf("loading rotating shifts: %w", err)
	}
	if snap.Policy, err = e.catalog.SupernumeraryPolicy(ctx); err != nil {
		return resolved{}, fmt.Errorf("loading supernumerary policy: %w", err)
	}
	tol, err := e.catalog.Tolerances(ctx)
	if err != nil {
		return resolved{}, fmt.Errorf("loading tolerances: %w", err)
	}

	a, err := schedule.Resolve(schedule.Profile{
		EmployeeID:     employeeID,
		Placement:      placement,
		Supernumerary:  supernumerary,
		DirectBindings: bindings,
	}, snap)
	if err != nil {
		return resolved{}, err
	}
	return resolved{assignment: a, tolerances: tol}, nil
}

// EvaluateShiftStatus returns one status per candidate window at instant at.
func (e *Engine) EvaluateShiftStatus(ctx context.Context, employeeID schedule.EmployeeID, at time.Time) ([]schedule.CandidateStatus, error) {
	r, err := e.resolve(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return schedule.Candidates(r.assignment, at.In(e.loc), r.tolerances), nil
}

// =============================================================================
// RECORDING
// =============================================================================

// Recorded is an accepted event and the classification it received.
type Recorded struct {
	Event   Event         `json:"event"`
	Anomaly AnomalyResult `json:"anomaly"`
}

// RecordEvent validates, sequences and persists one punch.
func (e *Engine) RecordEvent(ctx context.Context, employeeID schedule.EmployeeID, t EventType, at time.Time) (Recorded, error) {
	if !t.Valid() {
		return Recorded{}, fmt.Errorf("%w: %q", ErrInvalidEventType, t)
	}
	at = at.In(e.loc)

	r, err := e.resolve(ctx, employeeID)
	if err != nil {
		return Recorded{}, err
	}
	candidates := schedule.Candidates(r.assignment, at, r.tolerances)

	workDate, dayEvents, err := e.pickWorkDate(ctx, employeeID, t, at, candidates)
	if err != nil {
		return Recorded{}, err
	}

	state, err := ReplayDay(dayEvents)
	if err != nil {
		return Recorded{}, fmt.Errorf("replaying %s for %s: %w", schedule.FormatDate(workDate), employeeID, err)
	}
	if _, err := Transition(state, t); err != nil {
		return Recorded{}, err
	}

	checkIn, _ := findEvent(dayEvents, CheckIn)
	window, ok := gate(t, at, workDate, checkIn.ShiftRef, candidates)
	if !ok {
		return Recorded{}, &OutsideWindowError{Type: t, At: at, Windows: windowRanges(t, candidates, r.tolerances)}
	}

	event := Event{
		ID:         EventID(e.newID()),
		EmployeeID: employeeID,
		Type:       t,
		Timestamp:  at,
		WorkDate:   workDate,
		Status:     StatusPresent,
		ShiftRef:   window.ShiftID,
		CreatedAt:  e.now(),
	}
	if !t.WindowGated() {
		event.ShiftRef = checkIn.ShiftRef
	}
	return e.commit(ctx, event, window, r.tolerances)
}

// commit appends an event and runs the detector on it.
func (e *Engine) commit(ctx context.Context, event Event, window schedule.CandidateStatus, tol schedule.Tolerances) (Recorded, error) {
	anomaly := NewDetector(tol).DetectEvent(event, window)
	if anomaly.HasAnomaly && anomaly.Kind == LateArrival {
		event.Status = StatusLate
	}

	if err := e.store.Append(ctx, event); err != nil {
		// Wrap storage-level uniqueness errors with domain context
		if errors.Is(err, ErrDuplicateEvent) {
			return Recorded{}, &DuplicateEventError{EmployeeID: event.EmployeeID, WorkDate: event.WorkDate, Type: event.Type}
		}
		return Recorded{}, fmt.Errorf("appending %s for %s: %w", event.Type, event.EmployeeID, err)
	}

	e.logger.Info("attendance event recorded",
		zap.String("employee_id", string(event.EmployeeID)),
		zap.String("type", string(event.Type)),
		zap.String("work_date", schedule.FormatDate(event.WorkDate)),
		zap.Time("at", event.Timestamp),
		zap.Bool("synthetic", event.Synthetic),
	)

	if anomaly.HasAnomaly {
		e.report(ctx, anomaly)
	}
	return Recorded{Event: event, Anomaly: anomaly}, nil
}

// report hands an anomaly to the handler. The punch is already persisted, so
// handler failures are logged and do not fail the request.
func (e *Engine) report(ctx context.Context, a AnomalyResult) {
	e.logger.Info("anomaly detected",
		zap.String("employee_id", string(a.EmployeeID)),
		zap.String("kind", string(a.Kind)),
		zap.String("work_date", schedule.FormatDate(a.WorkDate)),
	)
	if e.handler == nil {
		return
	}
	if err := e.handler.OnAnomalyDetected(ctx, a, a.EmployeeID, a.EventID); err != nil {
		e.logger.Error("anomaly handler failed",
			zap.String("employee_id", string(a.EmployeeID)),
			zap.String("kind", string(a.Kind)),
			zap.Error(err),
		)
	}
}

func (e *Engine) pickWorkDate(
	ctx context.Context,
	employeeID schedule.EmployeeID,
	t EventType,
	at time.Time,
	candidates []schedule.CandidateStatus,
) (time.Time, []Event, error) {
	today := schedule.DateOf(at, e.loc)

	if t == CheckIn {
		if c, ok := bestCheckIn(at, candidates); ok {
			events, err := e.dayEvents(ctx, employeeID, c.WorkDate)
			return c.WorkDate, events, err
		}
		// No gate open: a day still running must reject the punch as a
		// sequence error before the window check does.
		return e.openDay(ctx, employeeID, today, 0, -1)
	}

	return e.openDay(ctx, employeeID, today, 0, -1, 1)
}

// openDay returns the first of today+offsets whose day is checked in or on
// break, or today when none is.
func (e *Engine) openDay(ctx context.Context, employeeID schedule.EmployeeID, today time.Time, offsets ...int) (time.Time, []Event, error) {
	var todayEvents []Event
	for _, offset := range offsets {
		day := today.AddDate(0, 0, offset)
		events, err := e.dayEvents(ctx, employeeID, day)
		if err != nil {
			return time.Time{}, nil, err
		}
		if offset == 0 {
			todayEvents = events
		}
		if state, err := ReplayDay(events); err == nil && state.Open() {
			return day, events, nil
		}
	}
	return today, todayEvents, nil
}

func (e *Engine) dayEvents(ctx context.Context, employeeID schedule.EmployeeID, day time.Time) ([]Event, error) {
	events, err := e.store.EventsForEmployeeDay(ctx, employeeID, day)
	if err != nil {
		return nil, fmt.Errorf("loading events of %s on %s: %w", employeeID, schedule.FormatDate(day), err)
	}
	return events, nil
}

// gate returns the candidate that lets an event of type t through.
// Breaks are not gated; they are attributed to the check-in's window.
func gate(t EventType, at, workDate time.Time, ref schedule.ShiftID, candidates []schedule.CandidateStatus) (schedule.CandidateStatus, bool) {
	switch t {
	case CheckIn:
		return bestCheckIn(at, candidates)

	case CheckOut:
		var fallback *schedule.CandidateStatus
		for i, c := range candidates {
			if !c.Info.CanCheckOut || !schedule.SameDate(c.WorkDate, workDate) {
				continue
			}
			if ref == "" || c.ShiftID == ref {
				return c, true
			}
			if fallback == nil {
				fallback = &candidates[i]
			}
		}
		if fallback != nil {
			return *fallback, true
		}
		return schedule.CandidateStatus{}, false

	default:
		for _, c := range candidates {
			if schedule.SameDate(c.WorkDate, workDate) && (ref == "" || c.ShiftID == ref) {
				return c, true
			}
		}
		return schedule.CandidateStatus{WorkDate: workDate, ShiftID: ref}, true
	}
}

// bestCheckIn picks, among candidates with an open check-in gate, the one
// starting closest to at.
func bestCheckIn(at time.Time, candidates []schedule.CandidateStatus) (schedule.CandidateStatus, bool) {
	var best schedule.CandidateStatus
	found := false
	bestDistance := 0
	for _, c := range candidates {
		if !c.Info.CanCheckIn {
			continue
		}
		start, _ := c.Bounds()
		distance := abs(schedule.MinutesBetween(start, at))
		if !found || distance < bestDistance {
			best, bestDistance, found = c, distance, true
		}
	}
	return best, found
}

func windowRanges(t EventType, candidates []schedule.CandidateStatus, tol schedule.Tolerances) []WindowRange {
	out := make([]WindowRange, 0, len(candidates))
	for _, c := range candidates {
		// A finished rotating shift comes back tomorrow; show that occurrence.
		if t == CheckIn && c.ShiftID != "" && c.Info.Status == schedule.StatusFinished {
			c.WorkDate = c.WorkDate.AddDate(0, 0, 1)
		}
		var from, to time.Time
		if t == CheckIn {
			from, to = c.CheckInBounds(tol)
		} else {
			from, to = c.CheckOutBounds(tol)
		}
		out = append(out, WindowRange{ShiftID: c.ShiftID, Name: c.Name, From: from, To: to})
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
