/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Engine types that are
  already JSON-tagged (attendance.Recorded, attendance.DayTimeline,
  schedule.CandidateStatus, attendance.BatchSummary) are returned as-is;
  everything else gets a DTO here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: Catalog JSON accepted by PUT /api/catalog
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AreaID     string   `json:"area_id"`
	PositionID string   `json:"position_id"`
	Shifts     []string `json:"shifts,omitempty"`
}

// CreateEmployeeRequest is the request to create or replace an employee.
type CreateEmployeeRequest struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AreaID     string   `json:"area_id"`
	PositionID string   `json:"position_id"`
	Shifts     []string `json:"shifts,omitempty"`
}

func toEmployeeDTO(e attendance.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		AreaID:     string(e.Placement.AreaID),
		PositionID: string(e.Placement.PositionID),
	}
	for _, id := range e.DirectBindings {
		dto.Shifts = append(dto.Shifts, string(id))
	}
	return dto
}

// =============================================================================
// SCHEDULES
// =============================================================================

// ShiftDTO is a rotating shift or the day window of a fixed schedule.
type ShiftDTO struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	Start         string          `json:"start"`
	End           string          `json:"end"`
	Overnight     bool            `json:"overnight"`
	ExpectedHours decimal.Decimal `json:"expected_hours"`
}

// AssignmentDTO is the resolved schedule of an employee.
type AssignmentDTO struct {
	EmployeeID     string          `json:"employee_id"`
	Source         schedule.Source `json:"source"`
	Kind           schedule.Kind   `json:"kind"`
	Name           string          `json:"name"`
	Replacement    bool            `json:"replacement"`
	MultipleShifts bool            `json:"multiple_shifts"`
	Shifts         []ShiftDTO      `json:"shifts,omitempty"`
	Days           []FixedDayDTO   `json:"days,omitempty"`
	Lunch          *ShiftDTO       `json:"lunch,omitempty"`
	ExpectedHours  decimal.Decimal `json:"expected_hours"`
}

// FixedDayDTO is one weekday of a fixed schedule.
type FixedDayDTO struct {
	Weekday string `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// ShiftStatusResponse lists every candidate window evaluated at one instant.
type ShiftStatusResponse struct {
	EmployeeID  string                     `json:"employee_id"`
	At          string                     `json:"at"`
	CanCheckIn  bool                       `json:"can_check_in"`
	CanCheckOut bool                       `json:"can_check_out"`
	Candidates  []schedule.CandidateStatus `json:"candidates"`
}

// =============================================================================
// EVENTS & JUSTIFICATIONS
// =============================================================================

// RecordEventRequest is a clock punch. At defaults to the server clock.
type RecordEventRequest struct {
	Type string `json:"type"`
	At   string `json:"at,omitempty"`
}

// JustifyRequest files a justification for an event.
type JustifyRequest struct {
	Reason string `json:"reason"`
}

// ReviewRequest accepts or rejects a pending justification.
type ReviewRequest struct {
	Accept   bool   `json:"accept"`
	Reviewer string `json:"reviewer"`
}

// RedeemRequest files a justification with a one-time code.
type RedeemRequest struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// =============================================================================
// CATALOG & ADMIN
// =============================================================================

// CatalogAppliedResponse summarizes a PUT /api/catalog.
type CatalogAppliedResponse struct {
	Shifts                 int  `json:"shifts"`
	Employees              int  `json:"employees"`
	SupernumeraryPositions int  `json:"supernumerary_positions"`
	FixedSchedule          bool `json:"fixed_schedule"`
	Policy                 bool `json:"policy"`
}

// BatchResponse is the result of an admin sweep or auto-close.
type BatchResponse struct {
	Date string `json:"date"`
	attendance.BatchSummary
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string                   `json:"error"`
	Code    string                   `json:"code,omitempty"`
	Details string                   `json:"details,omitempty"`
	Windows []attendance.WindowRange `json:"windows,omitempty"`
}
