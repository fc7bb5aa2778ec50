package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
	"github.com/warp/attendance-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d int) time.Time { return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC) }

func punch(id string, typ attendance.EventType, ts time.Time) attendance.Event {
	return attendance.Event{
		ID:         attendance.EventID(id),
		EmployeeID: "emp-1",
		Type:       typ,
		Timestamp:  ts,
		WorkDate:   day(10),
		Status:     attendance.StatusPresent,
		ShiftRef:   "night",
	}
}

func TestSQLite_AppendAndLoadDay(t *testing.T) {
	// GIVEN: Events of an overnight shift appended out of order
	// WHEN: The work date is loaded
	// THEN: Events come back ordered and carry their work date

	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, punch("out", attendance.CheckOut, time.Date(2025, 3, 11, 6, 2, 0, 0, time.UTC))))
	require.NoError(t, s.Append(ctx, punch("in", attendance.CheckIn, time.Date(2025, 3, 10, 21, 55, 0, 0, time.UTC))))

	events, err := s.EventsForEmployeeDay(ctx, "emp-1", day(10))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, attendance.EventID("in"), events[0].ID)
	assert.Equal(t, attendance.EventID("out"), events[1].ID)
	assert.Equal(t, "2025-03-10", schedule.FormatDate(events[1].WorkDate))
	assert.Equal(t, schedule.ShiftID("night"), events[1].ShiftRef)

	other, err := s.EventsForEmployeeDay(ctx, "emp-1", day(11))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLite_DayUniqueness(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, punch("in-1", attendance.CheckIn, time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC))))

	err := s.Append(ctx, punch("in-2", attendance.CheckIn, time.Date(2025, 3, 10, 22, 5, 0, 0, time.UTC)))
	assert.ErrorIs(t, err, attendance.ErrDuplicateEvent)

	// Breaks are not unique per day.
	require.NoError(t, s.Append(ctx, punch("b1", attendance.BreakStart, time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC))))
	require.NoError(t, s.Append(ctx, punch("b2", attendance.BreakEnd, time.Date(2025, 3, 11, 1, 30, 0, 0, time.UTC))))
	require.NoError(t, s.Append(ctx, punch("b3", attendance.BreakStart, time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC))))
}

func TestSQLite_ConcurrentCheckIns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := punch("in-"+string(rune('a'+i)), attendance.CheckIn, time.Date(2025, 3, 10, 22, i, 0, 0, time.UTC))
			if s.Append(ctx, e) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestSQLite_Justification(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, punch("in", attendance.CheckIn, time.Date(2025, 3, 10, 22, 20, 0, 0, time.UTC))))

	submitted := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	j := attendance.Justification{ID: "j1", EventID: "in", Reason: "traffic", Status: attendance.JustificationPending, SubmittedAt: submitted}
	require.NoError(t, s.SaveJustification(ctx, j))

	reviewed := submitted.Add(time.Hour)
	j.Status = attendance.JustificationAccepted
	j.ReviewedBy = "supervisor-1"
	j.ReviewedAt = &reviewed
	require.NoError(t, s.SaveJustification(ctx, j))

	e, err := s.GetEvent(ctx, "in")
	require.NoError(t, err)
	require.NotNil(t, e.Justification)
	assert.Equal(t, attendance.JustificationAccepted, e.Justification.Status)
	assert.Equal(t, "supervisor-1", e.Justification.ReviewedBy)
	assert.True(t, reviewed.Equal(*e.Justification.ReviewedAt))
	assert.Equal(t, attendance.StatusExcused, e.EffectiveStatus())

	err = s.SaveJustification(ctx, attendance.Justification{ID: "j2", EventID: "missing", Reason: "x", SubmittedAt: submitted})
	assert.ErrorIs(t, err, attendance.ErrEventNotFound)

	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, attendance.ErrEventNotFound)
}

func TestSQLite_MarkReportedOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.MarkReported(ctx, "emp-1", day(10), attendance.Absence)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkReported(ctx, "emp-1", day(10), attendance.Absence)
	require.NoError(t, err)
	assert.False(t, again)

	otherKind, err := s.MarkReported(ctx, "emp-1", day(10), attendance.UnregisteredExit)
	require.NoError(t, err)
	assert.True(t, otherKind)
}

func TestSQLite_Directory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Placement(ctx, "ghost")
	assert.ErrorIs(t, err, attendance.ErrEmployeeNotFound)

	emp := attendance.Employee{
		ID:             "emp-2",
		Name:           "Bea",
		Placement:      schedule.Placement{AreaID: "icu", PositionID: "nurse"},
		DirectBindings: []schedule.ShiftID{"night", "morning"},
	}
	require.NoError(t, s.SaveEmployee(ctx, emp))
	require.NoError(t, s.SaveEmployee(ctx, attendance.Employee{ID: "emp-1", Name: "Ana"}))

	got, err := s.GetEmployee(ctx, "emp-2")
	require.NoError(t, err)
	assert.Equal(t, emp, got)

	emp.DirectBindings = []schedule.ShiftID{"morning"}
	require.NoError(t, s.SaveEmployee(ctx, emp))
	bindings, err := s.DirectShiftBindings(ctx, "emp-2")
	require.NoError(t, err)
	assert.Equal(t, []schedule.ShiftID{"morning"}, bindings)

	ids, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []schedule.EmployeeID{"emp-1", "emp-2"}, ids)

	records, err := s.ListEmployeeRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ana", records[0].Name)

	require.NoError(t, s.SaveSupernumerary(ctx, "float", true))
	flag, err := s.IsSupernumerary(ctx, "float")
	require.NoError(t, err)
	assert.True(t, flag)
	require.NoError(t, s.SaveSupernumerary(ctx, "float", false))
	flag, err = s.IsSupernumerary(ctx, "float")
	require.NoError(t, err)
	assert.False(t, flag)
}

func TestSQLite_Catalog(t *testing.T) {
	// GIVEN: An empty catalog
	// WHEN: Shifts, a fixed schedule, a policy and tolerances are saved
	// THEN: They load back identically, inactive shifts excluded

	s := newStore(t)
	ctx := context.Background()

	fixed, err := s.FixedSchedule(ctx)
	require.NoError(t, err)
	assert.Nil(t, fixed)
	tol, err := s.Tolerances(ctx)
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultTolerances(), tol)

	night := schedule.RotatingShift{
		ID: "night", Name: "Night", Window: schedule.MustWindow("22:00", "06:00"), Active: true,
		AssignedAreas: map[schedule.AreaID]bool{"icu": true},
	}
	retired := schedule.RotatingShift{ID: "old", Name: "Old", Window: schedule.MustWindow("06:00", "14:00")}
	require.NoError(t, s.SaveShift(ctx, night))
	require.NoError(t, s.SaveShift(ctx, retired))

	shifts, err := s.ActiveRotatingShifts(ctx)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, night, shifts[0])

	lunch := schedule.MustWindow("13:00", "14:00")
	office := &schedule.FixedWeeklySchedule{
		ID:   "office",
		Name: "Office",
		Days: map[time.Weekday]schedule.TimeWindow{
			time.Monday: schedule.MustWindow("08:00", "17:00"),
			time.Friday: schedule.MustWindow("08:00", "14:00"),
		},
		Lunch: &lunch,
	}
	require.NoError(t, s.SaveFixedSchedule(ctx, office))
	fixed, err = s.FixedSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, office, fixed)

	policy := &schedule.SupernumeraryPolicy{
		Mode:            schedule.ModeReplacement,
		AllowedShiftIDs: map[schedule.ShiftID]bool{"night": true},
	}
	require.NoError(t, s.SavePolicy(ctx, policy))
	gotPolicy, err := s.SupernumeraryPolicy(ctx)
	require.NoError(t, err)
	assert.Equal(t, policy, gotPolicy)

	custom := schedule.Tolerances{Tolerance: 10, EarlyCheckIn: 45, LateCheckout: 30, EarlyDeparture: 5}
	require.NoError(t, s.SaveTolerances(ctx, custom))
	tol, err = s.Tolerances(ctx)
	require.NoError(t, err)
	assert.Equal(t, custom, tol)
}

func TestSQLite_EngineRoundTrip(t *testing.T) {
	// GIVEN: An engine backed entirely by SQLite
	// WHEN: A night-shift employee checks in late and out on time
	// THEN: The LATE status is persisted and a repeated check-in is rejected

	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveShift(ctx, schedule.RotatingShift{
		ID: "night", Name: "Night", Window: schedule.MustWindow("22:00", "06:00"), Active: true,
	}))
	require.NoError(t, s.SaveEmployee(ctx, attendance.Employee{ID: "emp-1", Name: "Ana", DirectBindings: []schedule.ShiftID{"night"}}))
	tol := schedule.DefaultTolerances()
	tol.LateCheckIn = 60
	require.NoError(t, s.SaveTolerances(ctx, tol))

	now := time.Date(2025, 3, 10, 22, 20, 0, 0, time.UTC)
	engine := attendance.NewEngine(s, s, s,
		attendance.WithAnomalyLog(s),
		attendance.WithLocation(time.UTC),
		attendance.WithClock(func() time.Time { return now }),
	)

	rec, err := engine.RecordEvent(ctx, "emp-1", attendance.CheckIn, now)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, rec.Event.Status)
	require.True(t, rec.Anomaly.HasAnomaly)

	_, err = engine.RecordEvent(ctx, "emp-1", attendance.CheckIn, now.Add(time.Minute))
	assert.ErrorIs(t, err, attendance.ErrInvalidSequence)

	now = time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC)
	rec, err = engine.RecordEvent(ctx, "emp-1", attendance.CheckOut, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", schedule.FormatDate(rec.Event.WorkDate))

	stored, err := s.EventsForEmployeeDay(ctx, "emp-1", day(10))
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, attendance.StatusLate, stored[0].Status)
}
