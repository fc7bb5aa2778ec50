/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the attendance engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to attendance.Engine.

ENDPOINTS:
  Employees:
    GET    /api/employees                       List all employees
    POST   /api/employees                       Create or replace employee
    GET    /api/employees/{id}/schedule?at=     Resolved schedule
    GET    /api/employees/{id}/shift-status?at= Candidate windows at an instant
    POST   /api/employees/{id}/events           Record a clock punch
    GET    /api/employees/{id}/days/{date}      Day timeline

  Justifications:
    POST   /api/events/{id}/justification        File a justification
    POST   /api/events/{id}/justification/review Accept or reject
    POST   /api/justifications/redeem            File with a one-time code

  Catalog:
    PUT    /api/catalog                         Validate and apply catalog JSON

  Admin:
    POST   /api/admin/sweep?date=               End-of-day anomaly sweep
    POST   /api/admin/auto-close?date=          Close forgotten check-outs

  Reports:
    GET    /api/reports/daily?date=             Daily xlsx report

  Scenarios:
    GET    /api/scenarios                       List demo scenarios
    GET    /api/scenarios/current               Last loaded scenario
    POST   /api/scenarios/load                  Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, bad query parameter, invalid catalog
  - 404: Unknown employee or event
  - 409: Duplicate punch or justification (re-read the day)
  - 422: Punch out of sequence or outside every window
  - 500: Configuration errors (code "configuration_error") and internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/schedule"
)

const maxCatalogBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the persistence the handlers write to directly. Every store
// package implements it.
type Backend interface {
	factory.Writer
	report.Roster
	GetEmployee(ctx context.Context, id schedule.EmployeeID) (attendance.Employee, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *attendance.Engine
	Store   Backend
	Catalog *factory.Factory
	Reports *report.Builder
	Logger  *zap.Logger

	now func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(engine *attendance.Engine, store Backend, catalog *factory.Factory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Engine:  engine,
		Store:   store,
		Catalog: catalog,
		Reports: report.NewBuilder(engine, store, logger),
		Logger:  logger,
		now:     time.Now,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployeeRecords(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or replaces an employee and its direct bindings.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := attendance.Employee{
		ID:   schedule.EmployeeID(req.ID),
		Name: req.Name,
		Placement: schedule.Placement{
			AreaID:     schedule.AreaID(req.AreaID),
			PositionID: schedule.PositionID(req.PositionID),
		},
	}
	for _, id := range req.Shifts {
		emp.DirectBindings = append(emp.DirectBindings, schedule.ShiftID(id))
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetSchedule resolves the schedule that applies to an employee.
// GET /api/employees/{id}/schedule?at=RFC3339
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := schedule.EmployeeID(chi.URLParam(r, "id"))
	at, err := h.instant(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
		return
	}

	a, err := h.Engine.ResolveSchedule(r.Context(), id, at)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a, at))
}

// GetShiftStatus evaluates every candidate window at an instant.
// GET /api/employees/{id}/shift-status?at=RFC3339
func (h *Handler) GetShiftStatus(w http.ResponseWriter, r *http.Request) {
	id := schedule.EmployeeID(chi.URLParam(r, "id"))
	at, err := h.instant(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
		return
	}

	candidates, err := h.Engine.EvaluateShiftStatus(r.Context(), id, at)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ShiftStatusResponse{
		EmployeeID: string(id),
		At:         at.Format(time.RFC3339),
		Candidates: candidates,
	}
	for _, c := range candidates {
		resp.CanCheckIn = resp.CanCheckIn || c.Info.CanCheckIn
		resp.CanCheckOut = resp.CanCheckOut || c.Info.CanCheckOut
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecordEvent records a clock punch and returns it with its anomaly result.
// POST /api/employees/{id}/events
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	id := schedule.EmployeeID(chi.URLParam(r, "id"))

	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at, err := h.instant(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
		return
	}

	recorded, err := h.Engine.RecordEvent(r.Context(), id, attendance.EventType(strings.ToUpper(req.Type)), at)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recorded)
}

// GetDay returns the timeline of one work date.
// GET /api/employees/{id}/days/{date}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	id := schedule.EmployeeID(chi.URLParam(r, "id"))
	day, err := schedule.ParseDate(chi.URLParam(r, "date"), h.Engine.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	timeline, err := h.Engine.Timeline(r.Context(), id, day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

// =============================================================================
// JUSTIFICATION HANDLERS
// =============================================================================

// Justify files a justification for an event.
// POST /api/events/{id}/justification
func (h *Handler) Justify(w http.ResponseWriter, r *http.Request) {
	eventID := attendance.EventID(chi.URLParam(r, "id"))

	var req JustifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	j, err := h.Engine.Justify(r.Context(), eventID, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// ReviewJustification accepts or rejects a pending justification.
// POST /api/events/{id}/justification/review
func (h *Handler) ReviewJustification(w http.ResponseWriter, r *http.Request) {
	eventID := attendance.EventID(chi.URLParam(r, "id"))

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Reviewer) == "" {
		writeError(w, http.StatusBadRequest, "reviewer is required", nil)
		return
	}

	j, err := h.Engine.ReviewJustification(r.Context(), eventID, req.Accept, req.Reviewer)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// RedeemCode files a justification using a one-time code.
// POST /api/justifications/redeem
func (h *Handler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	j, err := h.Engine.RedeemCode(r.Context(), req.Code, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// PutCatalog validates catalog JSON against the schema and applies it.
// PUT /api/catalog
func (h *Handler) PutCatalog(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCatalogBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cat, err := h.Catalog.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid catalog", err)
		return
	}
	if err := factory.Apply(r.Context(), cat, h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to apply catalog", err)
		return
	}

	h.Logger.Info("catalog applied",
		zap.Int("shifts", len(cat.Shifts)),
		zap.Int("employees", len(cat.Employees)),
	)
	writeJSON(w, http.StatusOK, CatalogAppliedResponse{
		Shifts:                 len(cat.Shifts),
		Employees:              len(cat.Employees),
		SupernumeraryPositions: len(cat.SupernumeraryPositions),
		FixedSchedule:          cat.Fixed != nil,
		Policy:                 cat.Policy != nil,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Sweep runs the end-of-day anomaly sweep. date defaults to yesterday.
// POST /api/admin/sweep?date=YYYY-MM-DD
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.Engine.Sweep)
}

// AutoClose closes forgotten check-outs. date defaults to yesterday.
// POST /api/admin/auto-close?date=YYYY-MM-DD
func (h *Handler) AutoClose(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.Engine.AutoCloseAll)
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request, run func(context.Context, time.Time) (attendance.BatchSummary, error)) {
	day, err := h.day(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	summary, err := run(r.Context(), day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Date: schedule.FormatDate(day), BatchSummary: summary})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// DailyReport streams the daily attendance workbook. date defaults to yesterday.
// GET /api/reports/daily?date=YYYY-MM-DD
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	day, err := h.day(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	buf, filename, err := h.Reports.DailyXLSX(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate report", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// HELPERS
// =============================================================================

// instant parses an RFC3339 query value, defaulting to the server clock.
func (h *Handler) instant(raw string) (time.Time, error) {
	loc := h.Engine.Location()
	if raw == "" {
		return h.now().In(loc), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// day parses a YYYY-MM-DD query value, defaulting to yesterday.
func (h *Handler) day(raw string) (time.Time, error) {
	loc := h.Engine.Location()
	if raw == "" {
		return schedule.DateOf(h.now(), loc).AddDate(0, 0, -1), nil
	}
	return schedule.ParseDate(raw, loc)
}

func toAssignmentDTO(a schedule.Assignment, at time.Time) AssignmentDTO {
	dto := AssignmentDTO{
		EmployeeID:     string(a.EmployeeID),
		Source:         a.Source,
		Replacement:    a.Replacement,
		MultipleShifts: a.MultipleShifts,
	}
	if a.Primary != nil {
		dto.Kind = a.Primary.Kind()
		dto.ExpectedHours = schedule.ExpectedHoursOn(a.Primary, at)
	}

	switch p := a.Primary.(type) {
	case schedule.Fixed:
		dto.Name = p.Name
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if w, ok := p.WindowOn(wd); ok {
				dto.Days = append(dto.Days, FixedDayDTO{
					Weekday: strings.ToLower(wd.String()),
					Start:   w.Start.String(),
					End:     w.End.String(),
				})
			}
		}
		if p.Lunch != nil {
			dto.Lunch = &ShiftDTO{Name: "Lunch", Start: p.Lunch.Start.String(), End: p.Lunch.End.String()}
		}
	case schedule.Rotating:
		dto.Name = p.Name
	}

	for _, s := range a.Shifts {
		dto.Shifts = append(dto.Shifts, ShiftDTO{
			ID:            string(s.ID),
			Name:          s.Name,
			Start:         s.Window.Start.String(),
			End:           s.Window.End.String(),
			Overnight:     s.Window.CrossesMidnight(),
			ExpectedHours: s.ExpectedHours(),
		})
	}
	return dto
}

// writeDomainError maps engine errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case attendance.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case attendance.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case attendance.IsClientError(err):
		resp := ErrorResponse{Error: "Event rejected", Code: errorCode(err), Details: err.Error()}
		var outside *attendance.OutsideWindowError
		if errors.As(err, &outside) {
			resp.Windows = outside.Windows
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case schedule.IsConfigurationError(err):
		h.Logger.Warn("schedule configuration error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Schedule configuration error",
			Code:    "configuration_error",
			Details: err.Error(),
		})
	default:
		h.Logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, attendance.ErrInvalidSequence):
		return "invalid_sequence"
	case errors.Is(err, attendance.ErrOutsideWindow):
		return "outside_window"
	case errors.Is(err, attendance.ErrInvalidEventType):
		return "invalid_event_type"
	case errors.Is(err, attendance.ErrJustificationWindowClosed):
		return "justification_window_closed"
	case errors.Is(err, attendance.ErrInvalidCode):
		return "invalid_code"
	default:
		return "invalid_request"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
