package factory_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/schedule"
)

func newFactory(t *testing.T) *factory.Factory {
	t.Helper()
	f, err := factory.New()
	require.NoError(t, err)
	return f
}

func TestParse_DemoCatalog(t *testing.T) {
	// GIVEN: The demo preset
	// WHEN: It is parsed
	// THEN: Every part is converted with its defaults applied

	cat, err := newFactory(t).Parse([]byte(factory.DemoCatalogJSON()))
	require.NoError(t, err)

	assert.Equal(t, 120, cat.Tolerances.LateCheckIn)
	assert.Equal(t, 15, cat.Tolerances.Tolerance)

	require.NotNil(t, cat.Fixed)
	assert.Len(t, cat.Fixed.Days, 5)
	_, saturday := cat.Fixed.WindowOn(time.Saturday)
	assert.False(t, saturday)
	assert.Equal(t, "8", cat.Fixed.ExpectedHours(time.Monday).String())

	require.Len(t, cat.Shifts, 4)
	night := cat.Shifts[2]
	assert.Equal(t, schedule.ShiftID("night"), night.ID)
	assert.True(t, night.Window.CrossesMidnight())
	assert.True(t, night.Active)
	assert.True(t, night.AssignedAreas["icu"])
	assert.False(t, cat.Shifts[3].Active)
	assert.Len(t, cat.Snapshot().Shifts, 3)

	require.NotNil(t, cat.Policy)
	assert.Equal(t, schedule.ModeReplacement, cat.Policy.Mode)
	assert.True(t, cat.Policy.AllowedShiftIDs["night"])

	assert.Equal(t, []schedule.PositionID{"float-nurse"}, cat.SupernumeraryPositions)
	require.Len(t, cat.Employees, 4)
	assert.Equal(t, []schedule.ShiftID{"night"}, cat.Employees[2].DirectBindings)
}

func TestParse_SchemaViolations(t *testing.T) {
	f := newFactory(t)

	tests := []struct {
		name string
		json string
	}{
		{"not json", `{`},
		{"bad time", `{"shifts":[{"id":"a","name":"A","start":"25:00","end":"06:00"}]}`},
		{"missing end", `{"shifts":[{"id":"a","name":"A","start":"22:00"}]}`},
		{"unknown weekday", `{"fixed_schedule":{"days":{"funday":{"start":"08:00","end":"17:00"}}}}`},
		{"no working day", `{"fixed_schedule":{"days":{}}}`},
		{"unknown mode", `{"supernumerary":{"mode":"WHATEVER"}}`},
		{"negative tolerance", `{"tolerances":{"tolerance":-5}}`},
		{"unknown field", `{"holidays":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Parse([]byte(tt.json))
			assert.ErrorIs(t, err, factory.ErrInvalidCatalog)
		})
	}
}

func TestParse_ReferentialChecks(t *testing.T) {
	f := newFactory(t)

	tests := []struct {
		name string
		json string
	}{
		{"empty window", `{"shifts":[{"id":"a","name":"A","start":"08:00","end":"08:00"}]}`},
		{"duplicate shift", `{"shifts":[
			{"id":"a","name":"A","start":"08:00","end":"16:00"},
			{"id":"a","name":"B","start":"16:00","end":"23:00"}]}`},
		{"policy names unknown shift", `{"supernumerary":{"mode":"REPLACEMENT","allowed_shifts":["ghost"]}}`},
		{"replacement without shifts", `{"supernumerary":{"mode":"REPLACEMENT"}}`},
		{"fixed policy without schedule", `{"supernumerary":{"mode":"FIXED_SCHEDULE"}}`},
		{"employee bound to unknown shift", `{"employees":[{"id":"e","name":"E","shifts":["ghost"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Parse([]byte(tt.json))
			assert.ErrorIs(t, err, factory.ErrInvalidCatalog)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := newFactory(t)
	cat, err := f.Parse([]byte(factory.DemoCatalogJSON()))
	require.NoError(t, err)

	data, err := json.Marshal(factory.ToJSON(cat))
	require.NoError(t, err)

	again, err := f.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cat, again)
}

func TestPresets_Validate(t *testing.T) {
	f := newFactory(t)
	assert.NoError(t, f.Validate([]byte(factory.OfficeHoursJSON("09:00", "18:00", "13:00", "14:00"))))
	assert.NoError(t, f.Validate([]byte(factory.ThreeShiftRotationJSON("er"))))
}

func TestApply_DrivesTheEngine(t *testing.T) {
	// GIVEN: The demo catalog applied to a memory store
	// WHEN: Schedules are resolved for the seeded employees
	// THEN: Each employee lands on the expected resolution tier

	cat, err := newFactory(t).Parse([]byte(factory.DemoCatalogJSON()))
	require.NoError(t, err)

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, factory.Apply(ctx, cat, mem))

	engine := attendance.NewEngine(mem, mem, mem, attendance.WithLocation(time.UTC))
	at := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		employee schedule.EmployeeID
		source   schedule.Source
	}{
		{"emp-001", schedule.SourceFixedSchedule},
		{"emp-002", schedule.SourceAreaMatch},
		{"emp-003", schedule.SourceDirectBinding},
		{"emp-004", schedule.SourceSupernumeraryReplacement},
	}
	for _, tt := range tests {
		t.Run(string(tt.employee), func(t *testing.T) {
			a, err := engine.ResolveSchedule(ctx, tt.employee, at)
			require.NoError(t, err)
			assert.Equal(t, tt.source, a.Source)
		})
	}
}
