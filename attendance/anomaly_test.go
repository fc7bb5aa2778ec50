package attendance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

func nightCandidate() schedule.CandidateStatus {
	return schedule.CandidateStatus{
		ShiftID:  "night",
		Name:     "Night",
		Window:   schedule.MustWindow("22:00", "06:00"),
		WorkDate: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestDetectEvent_NightShiftExamples(t *testing.T) {
	d := attendance.NewDetector(schedule.Tolerances{Tolerance: 15, EarlyCheckIn: 30, LateCheckout: 60, EarlyDeparture: 15})
	workDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	punch := func(typ attendance.EventType, day, hour, minute int) attendance.Event {
		return attendance.Event{
			ID:        "evt",
			Type:      typ,
			Timestamp: time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC),
			WorkDate:  workDate,
		}
	}

	t.Run("early check-in is on time", func(t *testing.T) {
		assert.False(t, d.DetectEvent(punch(attendance.CheckIn, 10, 21, 50), nightCandidate()).HasAnomaly)
	})

	t.Run("22:20 is late by the full 20 minutes", func(t *testing.T) {
		r := d.DetectEvent(punch(attendance.CheckIn, 10, 22, 20), nightCandidate())
		require.True(t, r.HasAnomaly)
		assert.Equal(t, attendance.LateArrival, r.Kind)
		require.NotNil(t, r.DeviationMinutes)
		assert.Equal(t, 20, *r.DeviationMinutes)
		assert.Equal(t, time.Date(2025, time.March, 10, 22, 0, 0, 0, time.UTC), *r.ExpectedTime)
	})

	t.Run("22:15 is within tolerance", func(t *testing.T) {
		assert.False(t, d.DetectEvent(punch(attendance.CheckIn, 10, 22, 15), nightCandidate()).HasAnomaly)
	})

	t.Run("06:05 check-out is on time", func(t *testing.T) {
		assert.False(t, d.DetectEvent(punch(attendance.CheckOut, 11, 6, 5), nightCandidate()).HasAnomaly)
	})

	t.Run("05:30 check-out leaves 15 minutes beyond tolerance", func(t *testing.T) {
		r := d.DetectEvent(punch(attendance.CheckOut, 11, 5, 30), nightCandidate())
		require.True(t, r.HasAnomaly)
		assert.Equal(t, attendance.EarlyDeparture, r.Kind)
		assert.Equal(t, 15, *r.DeviationMinutes)
		assert.Equal(t, time.Date(2025, time.March, 11, 6, 0, 0, 0, time.UTC), *r.ExpectedTime)
	})

	t.Run("synthetic events are never classified", func(t *testing.T) {
		e := punch(attendance.CheckOut, 11, 1, 0)
		e.Synthetic = true
		assert.False(t, d.DetectEvent(e, nightCandidate()).HasAnomaly)
	})

	t.Run("breaks carry no anomaly", func(t *testing.T) {
		assert.False(t, d.DetectEvent(punch(attendance.BreakStart, 11, 2, 0), nightCandidate()).HasAnomaly)
	})
}

func TestSweepDay_Detector(t *testing.T) {
	d := attendance.NewDetector(schedule.DefaultTolerances())
	workDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	windows := []schedule.CandidateStatus{nightCandidate()}

	t.Run("nothing before the check-out window closes", func(t *testing.T) {
		now := time.Date(2025, time.March, 11, 6, 30, 0, 0, time.UTC)
		assert.Empty(t, d.SweepDay("emp-1", workDate, windows, nil, now))
	})

	after := time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC)

	t.Run("absence", func(t *testing.T) {
		results := d.SweepDay("emp-1", workDate, windows, nil, after)
		require.Len(t, results, 1)
		assert.Equal(t, attendance.Absence, results[0].Kind)
		assert.Equal(t, time.Date(2025, time.March, 10, 22, 0, 0, 0, time.UTC), *results[0].ExpectedTime)
	})

	checkIn := attendance.Event{ID: "in", Type: attendance.CheckIn, Timestamp: time.Date(2025, time.March, 10, 21, 55, 0, 0, time.UTC)}

	t.Run("unregistered exit", func(t *testing.T) {
		results := d.SweepDay("emp-1", workDate, windows, []attendance.Event{checkIn}, after)
		require.Len(t, results, 1)
		assert.Equal(t, attendance.UnregisteredExit, results[0].Kind)
		assert.Equal(t, attendance.EventID("in"), results[0].EventID)
		assert.Nil(t, results[0].ActualTime)
	})

	t.Run("synthetic check-out still counts as unregistered", func(t *testing.T) {
		out := attendance.Event{Type: attendance.CheckOut, Synthetic: true, Timestamp: time.Date(2025, time.March, 11, 7, 15, 0, 0, time.UTC)}
		results := d.SweepDay("emp-1", workDate, windows, []attendance.Event{checkIn, out}, after)
		require.Len(t, results, 1)
		assert.Equal(t, attendance.UnregisteredExit, results[0].Kind)
		assert.Equal(t, 75, *results[0].DeviationMinutes)
	})

	t.Run("real check-out closes the day cleanly", func(t *testing.T) {
		out := attendance.Event{Type: attendance.CheckOut, Timestamp: time.Date(2025, time.March, 11, 6, 0, 0, 0, time.UTC)}
		assert.Empty(t, d.SweepDay("emp-1", workDate, windows, []attendance.Event{checkIn, out}, after))
	})

	t.Run("unscheduled day", func(t *testing.T) {
		assert.Empty(t, d.SweepDay("emp-1", workDate, nil, nil, after))
	})
}
