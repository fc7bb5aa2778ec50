package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/otp"
	"github.com/warp/attendance-engine/schedule"
)

type testServer struct {
	router *chi.Mux
	mem    *store.Memory
	codes  *otp.Memory
	now    time.Time
}

// newTestServer wires the handlers over a memory store. The demo catalog is
// loaded through PUT /api/catalog when seeded is true.
func newTestServer(t *testing.T, seeded bool) *testServer {
	t.Helper()

	ts := &testServer{mem: store.NewMemory(), codes: otp.NewMemory()}
	ts.now = time.Date(2025, time.March, 10, 21, 0, 0, 0, time.UTC)
	clock := func() time.Time { return ts.now }

	engine := attendance.NewEngine(ts.mem, ts.mem, ts.mem,
		attendance.WithLocation(time.UTC),
		attendance.WithAnomalyLog(ts.mem),
		attendance.WithCodeRedeemer(ts.codes),
		attendance.WithClock(clock),
	)
	catalog, err := factory.New()
	require.NoError(t, err)

	h := NewHandler(engine, ts.mem, catalog, zap.NewNop())
	h.now = clock
	ts.router = NewRouter(h, RouterOptions{})

	if seeded {
		rec := ts.do(t, http.MethodPut, "/api/catalog", factory.DemoCatalogJSON())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type recordedBody struct {
	Event struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		WorkDate string `json:"work_date"`
	} `json:"event"`
	Anomaly struct {
		HasAnomaly       bool   `json:"has_anomaly"`
		Kind             string `json:"kind"`
		DeviationMinutes *int   `json:"deviation_minutes"`
	} `json:"anomaly"`
}

func TestPutCatalog_SeedsDirectory(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPut, "/api/catalog", factory.DemoCatalogJSON())
	require.Equal(t, http.StatusOK, rec.Code)
	applied := decode[CatalogAppliedResponse](t, rec)
	assert.Equal(t, 4, applied.Shifts)
	assert.Equal(t, 4, applied.Employees)
	assert.True(t, applied.FixedSchedule)
	assert.True(t, applied.Policy)

	rec = ts.do(t, http.MethodGet, "/api/employees", "")
	require.Equal(t, http.StatusOK, rec.Code)
	employees := decode[[]EmployeeDTO](t, rec)
	require.Len(t, employees, 4)
	assert.Equal(t, "Ana Torres", employees[0].Name)
}

func TestPutCatalog_Invalid(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPut, "/api/catalog", `{"shifts":[{"id":"a","name":"A","start":"25:00","end":"06:00"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/catalog", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEmployee(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/employees",
		`{"id":"emp-009","name":"Zoe","area_id":"icu","position_id":"nurse","shifts":["morning"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/employees/emp-009/schedule?at=2025-03-10T12:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[AssignmentDTO](t, rec)
	assert.Equal(t, schedule.SourceDirectBinding, a.Source)
	require.Len(t, a.Shifts, 1)
	assert.Equal(t, "morning", a.Shifts[0].ID)

	rec = ts.do(t, http.MethodPost, "/api/employees", `{"id":"","name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSchedule_Tiers(t *testing.T) {
	ts := newTestServer(t, true)

	tests := []struct {
		employee string
		source   schedule.Source
		kind     schedule.Kind
	}{
		{"emp-001", schedule.SourceFixedSchedule, schedule.KindFixed},
		{"emp-002", schedule.SourceAreaMatch, schedule.KindRotating},
		{"emp-003", schedule.SourceDirectBinding, schedule.KindRotating},
		{"emp-004", schedule.SourceSupernumeraryReplacement, schedule.KindRotating},
	}
	for _, tt := range tests {
		t.Run(tt.employee, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/employees/"+tt.employee+"/schedule?at=2025-03-10T12:00:00Z", "")
			require.Equal(t, http.StatusOK, rec.Code)
			a := decode[AssignmentDTO](t, rec)
			assert.Equal(t, tt.source, a.Source)
			assert.Equal(t, tt.kind, a.Kind)
		})
	}

	rec := ts.do(t, http.MethodGet, "/api/employees/emp-001/schedule?at=2025-03-10T12:00:00Z", "")
	office := decode[AssignmentDTO](t, rec)
	assert.Len(t, office.Days, 5)
	require.NotNil(t, office.Lunch)
	assert.Equal(t, "8", office.ExpectedHours.String())
}

func TestGetSchedule_Errors(t *testing.T) {
	// GIVEN: An employee with no matching schedule and an unknown employee
	// WHEN: Their schedules are requested
	// THEN: Configuration errors are 500 configuration_error, unknown is 404

	ts := newTestServer(t, false)
	require.NoError(t, ts.mem.SaveEmployee(context.Background(), attendance.Employee{
		ID: "emp-1", Name: "Orphan", Placement: schedule.Placement{AreaID: "nowhere"},
	}))

	rec := ts.do(t, http.MethodGet, "/api/employees/emp-1/schedule", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "configuration_error", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/employees/ghost/schedule", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/employees/emp-1/schedule?at=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShiftStatus_NightShift(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodGet, "/api/employees/emp-003/shift-status?at=2025-03-10T21:50:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[ShiftStatusResponse](t, rec)
	assert.True(t, status.CanCheckIn)
	assert.False(t, status.CanCheckOut)
	require.Len(t, status.Candidates, 1)
	assert.Equal(t, schedule.ShiftID("night"), status.Candidates[0].ShiftID)
}

func TestRecordEvent_NightShiftDay(t *testing.T) {
	// GIVEN: emp-003 bound to the 22:00-06:00 night shift
	// WHEN: Checking in at 22:20 and out at 05:30
	// THEN: LATE_ARRIVAL 20 and EARLY_DEPARTURE 15 on work date 2025-03-10

	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/employees/emp-003/events", `{"type":"check_in","at":"2025-03-10T22:20:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in := decode[recordedBody](t, rec)
	assert.Equal(t, "LATE", in.Event.Status)
	assert.Equal(t, "LATE_ARRIVAL", in.Anomaly.Kind)
	require.NotNil(t, in.Anomaly.DeviationMinutes)
	assert.Equal(t, 20, *in.Anomaly.DeviationMinutes)

	rec = ts.do(t, http.MethodPost, "/api/employees/emp-003/events", `{"type":"CHECK_IN","at":"2025-03-10T22:25:00Z"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_sequence", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodPost, "/api/employees/emp-003/events", `{"type":"CHECK_OUT","at":"2025-03-11T05:30:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[recordedBody](t, rec)
	assert.True(t, strings.HasPrefix(out.Event.WorkDate, "2025-03-10"))
	assert.Equal(t, "EARLY_DEPARTURE", out.Anomaly.Kind)
	assert.Equal(t, 15, *out.Anomaly.DeviationMinutes)

	ts.now = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	rec = ts.do(t, http.MethodGet, "/api/employees/emp-003/days/2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode[struct {
		State     string            `json:"state"`
		Events    []json.RawMessage `json:"events"`
		Anomalies []json.RawMessage `json:"anomalies"`
	}](t, rec)
	assert.Len(t, day.Events, 2)
	assert.Len(t, day.Anomalies, 2)

	rec = ts.do(t, http.MethodGet, "/api/employees/emp-003/days/10-03-2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordEvent_OutsideWindow(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/employees/emp-003/events", `{"type":"CHECK_IN","at":"2025-03-10T12:00:00Z"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "outside_window", resp.Code)
	assert.NotEmpty(t, resp.Windows)

	rec = ts.do(t, http.MethodPost, "/api/employees/emp-003/events", `{"type":"NAP"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestJustification_Flow(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/employees/emp-003/events", `{"type":"CHECK_IN","at":"2025-03-10T22:20:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	eventID := decode[recordedBody](t, rec).Event.ID

	ts.now = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	path := "/api/events/" + eventID + "/justification"

	rec = ts.do(t, http.MethodPost, path, `{"reason":"bus strike"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, attendance.JustificationPending, decode[attendance.Justification](t, rec).Status)

	rec = ts.do(t, http.MethodPost, path, `{"reason":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, path+"/review", `{"accept":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, path+"/review", `{"accept":true,"reviewer":"sup-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, attendance.JustificationAccepted, decode[attendance.Justification](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/api/events/missing/justification", `{"reason":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedeemCode(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/employees/emp-003/events", `{"type":"CHECK_IN","at":"2025-03-10T22:20:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	eventID := decode[recordedBody](t, rec).Event.ID
	require.NoError(t, ts.codes.Put(context.Background(), attendance.JustificationCodeKey("ABCD2345"), eventID, time.Hour))

	rec = ts.do(t, http.MethodPost, "/api/justifications/redeem", `{"code":"abcd2345","reason":"doctor"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/justifications/redeem", `{"code":"ABCD2345","reason":"doctor"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_code", decode[ErrorResponse](t, rec).Code)
}

func TestAdmin_SweepAndAutoClose(t *testing.T) {
	// GIVEN: emp-003 checked in on the night of March 10 and never checked out
	// WHEN: Auto-close and then the sweep run the next morning
	// THEN: The day is closed synthetically and reported; a re-run reports nothing

	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/api/employees/emp-003/events", `{"type":"CHECK_IN","at":"2025-03-10T22:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	ts.now = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	rec = ts.do(t, http.MethodPost, "/api/admin/auto-close", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[BatchResponse](t, rec)
	assert.Equal(t, "2025-03-10", closed.Date)
	require.Len(t, closed.Closed, 1)
	assert.True(t, closed.Closed[0].Synthetic)

	rec = ts.do(t, http.MethodPost, "/api/admin/sweep?date=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	swept := decode[BatchResponse](t, rec)
	kinds := map[attendance.AnomalyKind]int{}
	for _, a := range swept.Reported {
		kinds[a.Kind]++
	}
	assert.Equal(t, 1, kinds[attendance.UnregisteredExit])
	assert.Positive(t, kinds[attendance.Absence])

	rec = ts.do(t, http.MethodPost, "/api/admin/sweep?date=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[BatchResponse](t, rec).Reported)

	rec = ts.do(t, http.MethodPost, "/api/admin/sweep?date=march", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDailyReport(t *testing.T) {
	ts := newTestServer(t, true)
	ts.now = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	rec := ts.do(t, http.MethodGet, "/api/reports/daily?date=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance_2025-03-10.xlsx")
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
