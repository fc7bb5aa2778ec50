package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/schedule"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type recorder struct {
	mu      sync.Mutex
	results []attendance.AnomalyResult
}

func (r *recorder) OnAnomalyDetected(_ context.Context, a attendance.AnomalyResult, _ schedule.EmployeeID, _ attendance.EventID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, a)
	return nil
}

func (r *recorder) count(kind attendance.AnomalyKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.results {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	engine  *attendance.Engine
	mem     *store.Memory
	handler *recorder
	now     time.Time
}

func newFixture(t *testing.T, tol schedule.Tolerances, opts ...attendance.Option) *fixture {
	t.Helper()
	f := &fixture{mem: store.NewMemory(), handler: &recorder{}}
	f.now = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	f.mem.SetTolerances(tol)

	base := []attendance.Option{
		attendance.WithLocation(time.UTC),
		attendance.WithAnomalyLog(f.mem),
		attendance.WithAnomalyHandler(f.handler),
		attendance.WithClock(func() time.Time { return f.now }),
	}
	f.engine = attendance.NewEngine(f.mem, f.mem, f.mem, append(base, opts...)...)
	return f
}

// withNightShift binds emp-1 directly to a 22:00-06:00 shift.
func (f *fixture) withNightShift(t *testing.T) *fixture {
	f.mem.SetShifts(schedule.RotatingShift{
		ID: "night", Name: "Night", Window: schedule.MustWindow("22:00", "06:00"), Active: true,
	})
	require.NoError(t, f.mem.SaveEmployee(context.Background(), attendance.Employee{
		ID:             "emp-1",
		Placement:      schedule.Placement{AreaID: "warehouse", PositionID: "guard"},
		DirectBindings: []schedule.ShiftID{"night"},
	}))
	return f
}

// withOffice gives emp-1 the agency-wide 08:00-17:00 weekday schedule.
func (f *fixture) withOffice(t *testing.T) *fixture {
	w := schedule.MustWindow("08:00", "17:00")
	f.mem.SetFixedSchedule(&schedule.FixedWeeklySchedule{
		ID:   "office",
		Name: "Office",
		Days: map[time.Weekday]schedule.TimeWindow{
			time.Monday: w, time.Tuesday: w, time.Wednesday: w, time.Thursday: w, time.Friday: w,
		},
	})
	require.NoError(t, f.mem.SaveEmployee(context.Background(), attendance.Employee{
		ID:        "emp-1",
		Placement: schedule.Placement{AreaID: "finance", PositionID: "analyst"},
	}))
	return f
}

func (f *fixture) record(t *testing.T, typ attendance.EventType, at time.Time) attendance.Recorded {
	t.Helper()
	rec, err := f.engine.RecordEvent(context.Background(), "emp-1", typ, at)
	require.NoError(t, err)
	return rec
}

func nightTol() schedule.Tolerances {
	return schedule.Tolerances{Tolerance: 15, EarlyCheckIn: 30, LateCheckout: 60, EarlyDeparture: 15}
}

// widened accepts late check-ins and early check-outs so they can be flagged.
func widened(tol schedule.Tolerances) schedule.Tolerances {
	tol.LateCheckIn = 120
	tol.EarlyCheckOut = 120
	return tol
}

// March 10 2025 is a Monday.
func mar(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

// =============================================================================
// OVERNIGHT SHIFT
// =============================================================================

func TestRecordEvent_NightShiftOnTime(t *testing.T) {
	// GIVEN: A 22:00-06:00 shift
	// WHEN: Checking in at 21:50 and out at 06:05
	// THEN: Both are accepted on the March 10 work date without anomalies

	f := newFixture(t, nightTol()).withNightShift(t)

	in := f.record(t, attendance.CheckIn, mar(10, 21, 50))
	assert.False(t, in.Anomaly.HasAnomaly)
	assert.Equal(t, attendance.StatusPresent, in.Event.Status)
	assert.Equal(t, "2025-03-10", schedule.FormatDate(in.Event.WorkDate))
	assert.Equal(t, schedule.ShiftID("night"), in.Event.ShiftRef)

	f.record(t, attendance.BreakStart, mar(11, 2, 0))
	f.record(t, attendance.BreakEnd, mar(11, 2, 30))

	out := f.record(t, attendance.CheckOut, mar(11, 6, 5))
	assert.False(t, out.Anomaly.HasAnomaly)
	assert.Equal(t, "2025-03-10", schedule.FormatDate(out.Event.WorkDate))

	events, err := f.mem.EventsForEmployeeDay(context.Background(), "emp-1", mar(10, 0, 0))
	require.NoError(t, err)
	assert.Len(t, events, 4)
	assert.Empty(t, f.handler.results)
}

func TestRecordEvent_NightShiftAnomalies(t *testing.T) {
	f := newFixture(t, widened(nightTol())).withNightShift(t)

	in := f.record(t, attendance.CheckIn, mar(10, 22, 20))
	require.True(t, in.Anomaly.HasAnomaly)
	assert.Equal(t, attendance.LateArrival, in.Anomaly.Kind)
	assert.Equal(t, 20, *in.Anomaly.DeviationMinutes)
	assert.Equal(t, attendance.StatusLate, in.Event.Status)

	out := f.record(t, attendance.CheckOut, mar(11, 5, 30))
	require.True(t, out.Anomaly.HasAnomaly)
	assert.Equal(t, attendance.EarlyDeparture, out.Anomaly.Kind)
	assert.Equal(t, 15, *out.Anomaly.DeviationMinutes)

	assert.Equal(t, 1, f.handler.count(attendance.LateArrival))
	assert.Equal(t, 1, f.handler.count(attendance.EarlyDeparture))
}

func TestRecordEvent_DefaultTolerancesFlagLateAndEarly(t *testing.T) {
	// GIVEN: A 22:00-06:00 shift with the default tolerances
	// WHEN: Checking in at 22:20 and out at 05:30
	// THEN: Both punches are accepted and flagged, not refused

	f := newFixture(t, schedule.DefaultTolerances()).withNightShift(t)

	in := f.record(t, attendance.CheckIn, mar(10, 22, 20))
	require.True(t, in.Anomaly.HasAnomaly)
	assert.Equal(t, attendance.LateArrival, in.Anomaly.Kind)
	assert.Equal(t, 20, *in.Anomaly.DeviationMinutes)

	out := f.record(t, attendance.CheckOut, mar(11, 5, 30))
	require.True(t, out.Anomaly.HasAnomaly)
	assert.Equal(t, attendance.EarlyDeparture, out.Anomaly.Kind)
	assert.Equal(t, 15, *out.Anomaly.DeviationMinutes)
	assert.Equal(t, "2025-03-10", schedule.FormatDate(out.Event.WorkDate))
}

// =============================================================================
// SEQUENCING AND WINDOWS
// =============================================================================

func TestRecordEvent_SequenceViolations(t *testing.T) {
	f := newFixture(t, nightTol()).withNightShift(t)
	ctx := context.Background()

	_, err := f.engine.RecordEvent(ctx, "emp-1", attendance.BreakEnd, mar(10, 21, 45))
	assert.ErrorIs(t, err, attendance.ErrInvalidSequence, "BREAK_END before BREAK_START")

	f.record(t, attendance.CheckIn, mar(10, 21, 50))

	_, err = f.engine.RecordEvent(ctx, "emp-1", attendance.CheckIn, mar(10, 21, 55))
	var seqErr *attendance.InvalidSequenceError
	require.ErrorAs(t, err, &seqErr)
	assert.Equal(t, "already checked in today", seqErr.Reason)
}

func TestRecordEvent_RepeatCheckInAfterMidnight(t *testing.T) {
	// GIVEN: An employee checked in to last night's 22:00-06:00 shift
	// WHEN: CHECK_IN is sent again at 00:30, after every check-in gate closed
	// THEN: It fails as a sequence error on the open work date

	for name, tol := range map[string]schedule.Tolerances{
		"default":     schedule.DefaultTolerances(),
		"no widening": nightTol(),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, tol).withNightShift(t)
			f.record(t, attendance.CheckIn, mar(10, 22, 0))

			_, err := f.engine.RecordEvent(context.Background(), "emp-1", attendance.CheckIn, mar(11, 0, 30))

			var seqErr *attendance.InvalidSequenceError
			require.ErrorAs(t, err, &seqErr)
			assert.False(t, errors.Is(err, attendance.ErrOutsideWindow))
			assert.Equal(t, attendance.StateCheckedIn, seqErr.State)
		})
	}
}

func TestRecordEvent_OutsideWindow(t *testing.T) {
	f := newFixture(t, nightTol()).withNightShift(t)

	_, err := f.engine.RecordEvent(context.Background(), "emp-1", attendance.CheckIn, mar(10, 15, 0))

	var windowErr *attendance.OutsideWindowError
	require.ErrorAs(t, err, &windowErr)
	require.Len(t, windowErr.Windows, 1)
	assert.Equal(t, mar(10, 21, 30), windowErr.Windows[0].From)
	assert.Equal(t, mar(10, 22, 15), windowErr.Windows[0].To)
	assert.True(t, attendance.IsClientError(err))
}

func TestRecordEvent_MultipleShifts(t *testing.T) {
	f := newFixture(t, schedule.DefaultTolerances())
	f.mem.SetShifts(
		schedule.RotatingShift{ID: "evening", Name: "Evening", Window: schedule.MustWindow("14:00", "22:00"), Active: true},
		schedule.RotatingShift{ID: "morning", Name: "Morning", Window: schedule.MustWindow("06:00", "14:00"), Active: true},
	)
	require.NoError(t, f.mem.SaveEmployee(context.Background(), attendance.Employee{
		ID: "emp-1", DirectBindings: []schedule.ShiftID{"morning", "evening"},
	}))

	t.Run("error enumerates every candidate window", func(t *testing.T) {
		_, err := f.engine.RecordEvent(context.Background(), "emp-1", attendance.CheckIn, mar(10, 10, 0))

		var windowErr *attendance.OutsideWindowError
		require.ErrorAs(t, err, &windowErr)
		require.Len(t, windowErr.Windows, 2)
		assert.Equal(t, schedule.ShiftID("morning"), windowErr.Windows[0].ShiftID)
		assert.Equal(t, schedule.ShiftID("evening"), windowErr.Windows[1].ShiftID)
		assert.Contains(t, err.Error(), "Morning")
		assert.Contains(t, err.Error(), "Evening")
	})

	t.Run("accepted in any candidate window", func(t *testing.T) {
		in := f.record(t, attendance.CheckIn, mar(10, 13, 55))
		assert.Equal(t, schedule.ShiftID("evening"), in.Event.ShiftRef)

		out := f.record(t, attendance.CheckOut, mar(10, 22, 5))
		assert.Equal(t, schedule.ShiftID("evening"), out.Event.ShiftRef)
	})
}

func TestRecordEvent_ConcurrentCheckIns(t *testing.T) {
	// GIVEN: A flaky client double-submitting the same check-in
	// WHEN: Ten submissions race
	// THEN: Exactly one is stored, the others are rejected as conflicts or sequence errors

	f := newFixture(t, nightTol()).withNightShift(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.RecordEvent(context.Background(), "emp-1", attendance.CheckIn, mar(10, 21, 50))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.True(t, attendance.IsConflict(err) || errors.Is(err, attendance.ErrInvalidSequence), err.Error())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	events, err := f.mem.EventsForEmployeeDay(context.Background(), "emp-1", mar(10, 0, 0))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecordEvent_RoundTripThroughStatus(t *testing.T) {
	f := newFixture(t, nightTol()).withNightShift(t)
	ctx := context.Background()

	for _, p := range []struct {
		typ attendance.EventType
		at  time.Time
	}{
		{attendance.CheckIn, mar(10, 21, 50)},
		{attendance.CheckOut, mar(11, 6, 5)},
	} {
		rec := f.record(t, p.typ, p.at)

		cands, err := f.engine.EvaluateShiftStatus(ctx, "emp-1", rec.Event.Timestamp)
		require.NoError(t, err)

		justified := false
		for _, c := range cands {
			if c.ShiftID == rec.Event.ShiftRef && schedule.SameDate(c.WorkDate, rec.Event.WorkDate) {
				justified = (p.typ == attendance.CheckIn && c.Info.CanCheckIn) ||
					(p.typ == attendance.CheckOut && c.Info.CanCheckOut)
			}
		}
		assert.True(t, justified, "%s at %s", p.typ, p.at)
	}
}

func TestRecordEvent_ConfigurationErrors(t *testing.T) {
	f := newFixture(t, nightTol()).withNightShift(t)
	ctx := context.Background()

	_, err := f.engine.RecordEvent(ctx, "ghost", attendance.CheckIn, mar(10, 21, 50))
	assert.ErrorIs(t, err, attendance.ErrEmployeeNotFound)
	assert.True(t, attendance.IsNotFound(err))

	f.mem.SetSupernumerary("guard", true)
	_, err = f.engine.RecordEvent(ctx, "emp-1", attendance.CheckIn, mar(10, 21, 50))
	assert.True(t, schedule.IsConfigurationError(err))

	_, err = f.engine.RecordEvent(ctx, "emp-1", attendance.EventType("LUNCH"), mar(10, 21, 50))
	assert.ErrorIs(t, err, attendance.ErrInvalidEventType)
}

// =============================================================================
// SWEEP AND AUTO-CLOSE
// =============================================================================

func TestSweepDay_AbsenceReportedOnce(t *testing.T) {
	// GIVEN: An office employee who never showed up on Monday
	// WHEN: The sweep runs twice after the day closed, with a late manual
	//       CHECK_IN inserted between the runs
	// THEN: ABSENCE is reported exactly once

	f := newFixture(t, schedule.DefaultTolerances()).withOffice(t)
	ctx := context.Background()

	f.now = mar(10, 12, 0)
	reported, err := f.engine.SweepDay(ctx, "emp-1", mar(10, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, reported, "day not over yet")

	f.now = mar(10, 20, 0)
	reported, err = f.engine.SweepDay(ctx, "emp-1", mar(10, 0, 0))
	require.NoError(t, err)
	require.Len(t, reported, 1)
	assert.Equal(t, attendance.Absence, reported[0].Kind)
	assert.Equal(t, mar(10, 8, 0), *reported[0].ExpectedTime)

	reported, err = f.engine.SweepDay(ctx, "emp-1", mar(10, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, reported)

	require.NoError(t, f.mem.Append(ctx, attendance.Event{
		ID: "manual", EmployeeID: "emp-1", Type: attendance.CheckIn,
		Timestamp: mar(10, 8, 5), WorkDate: mar(10, 0, 0), Status: attendance.StatusPresent,
	}))
	_, err = f.engine.SweepDay(ctx, "emp-1", mar(10, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, f.handler.count(attendance.Absence))
	assert.Equal(t, 1, f.handler.count(attendance.UnregisteredExit))
}

func TestSweep_Roster(t *testing.T) {
	f := newFixture(t, schedule.DefaultTolerances()).withOffice(t)
	ctx := context.Background()
	require.NoError(t, f.mem.SaveEmployee(ctx, attendance.Employee{ID: "emp-2"}))
	f.now = mar(10, 20, 0)

	summary, err := f.engine.Sweep(ctx, mar(10, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Employees)
	assert.Len(t, summary.Reported, 2)
	assert.Equal(t, 0, summary.Failed)
}

func TestAutoClose(t *testing.T) {
	ctx := context.Background()

	t.Run("closes a forgotten day once", func(t *testing.T) {
		f := newFixture(t, schedule.DefaultTolerances()).withOffice(t)
		in := f.record(t, attendance.CheckIn, mar(10, 7, 55))

		f.now = mar(10, 18, 10)
		closed, err := f.engine.AutoClose(ctx, "emp-1", mar(10, 0, 0))
		require.NoError(t, err)
		assert.Empty(t, closed, "not before checkOut.end + tolerance")

		f.now = mar(10, 18, 20)
		closed, err = f.engine.AutoClose(ctx, "emp-1", mar(10, 0, 0))
		require.NoError(t, err)
		require.Len(t, closed, 1)
		assert.Equal(t, attendance.CheckOut, closed[0].Type)
		assert.True(t, closed[0].Synthetic)
		assert.Equal(t, mar(10, 18, 15), closed[0].Timestamp)

		closed, err = f.engine.AutoClose(ctx, "emp-1", mar(10, 0, 0))
		require.NoError(t, err)
		assert.Empty(t, closed)

		reported, err := f.engine.SweepDay(ctx, "emp-1", mar(10, 0, 0))
		require.NoError(t, err)
		require.Len(t, reported, 1)
		assert.Equal(t, attendance.UnregisteredExit, reported[0].Kind)
		assert.Equal(t, in.Event.ID, reported[0].EventID)
		assert.Equal(t, 75, *reported[0].DeviationMinutes)
	})

	t.Run("ends an open break first", func(t *testing.T) {
		f := newFixture(t, schedule.DefaultTolerances()).withOffice(t)
		f.record(t, attendance.CheckIn, mar(10, 7, 55))
		f.record(t, attendance.BreakStart, mar(10, 12, 0))

		f.now = mar(10, 23, 0)
		summary, err := f.engine.AutoCloseAll(ctx, mar(10, 0, 0))
		require.NoError(t, err)
		require.Len(t, summary.Closed, 2)
		assert.Equal(t, attendance.BreakEnd, summary.Closed[0].Type)
		assert.Equal(t, attendance.CheckOut, summary.Closed[1].Type)

		events, err := f.mem.EventsForEmployeeDay(ctx, "emp-1", mar(10, 0, 0))
		require.NoError(t, err)
		state, err := attendance.ReplayDay(events)
		require.NoError(t, err)
		assert.Equal(t, attendance.StateCheckedOut, state)
	})
}

// =============================================================================
// TIMELINE
// =============================================================================

func TestTimeline_WorkedAndExpectedHours(t *testing.T) {
	f := newFixture(t, schedule.DefaultTolerances()).withOffice(t)

	f.record(t, attendance.CheckIn, mar(10, 8, 0))
	f.record(t, attendance.BreakStart, mar(10, 12, 0))
	f.record(t, attendance.BreakEnd, mar(10, 13, 0))
	f.record(t, attendance.CheckOut, mar(10, 17, 0))
	f.now = mar(10, 20, 0)

	tl, err := f.engine.Timeline(context.Background(), "emp-1", mar(10, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, attendance.StateCheckedOut, tl.State)
	assert.Equal(t, attendance.StatusPresent, tl.Status)
	assert.Equal(t, "8", tl.WorkedHours.String())
	assert.Equal(t, "9", tl.ExpectedHours.String())
	assert.Empty(t, tl.Anomalies)
	assert.Len(t, tl.Events, 4)
}
