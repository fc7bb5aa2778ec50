/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built catalogs that populate the store with realistic
  schedules and employees for demos and kiosk testing. Each scenario is a
  factory preset run through the same schema validation as an uploaded
  catalog, plus the employees that exercise it.

AVAILABLE SCENARIOS:
  office-hours:  Agency-wide Monday to Friday 08:00-17:00 with lunch
  icu-rotation:  Morning, afternoon and night shifts with a float nurse
  demo:          Every resolution tier in one catalog (same as `seed`)

HOW SCENARIOS WORK:
 1. Parse the preset JSON through factory.Factory
 2. Add the scenario's employees
 3. factory.Apply upserts everything into the store

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "icu-rotation"}

NOTE:
  Scenarios upsert; they never delete punches or shifts already stored.

SEE ALSO:
  - factory/presets.go: Preset catalogs
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/schedule"
)

// ScenarioDTO describes a loadable scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type scenario struct {
	ScenarioDTO
	catalog   func() string
	employees []attendance.Employee
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "office-hours",
			Name:        "Office Hours",
			Description: "Fixed weekday schedule with a lunch break for administrative staff",
		},
		catalog: func() string { return factory.OfficeHoursJSON("08:00", "17:00", "13:00", "14:00") },
		employees: []attendance.Employee{
			{ID: "adm-001", Name: "Elena Rivas", Placement: schedule.Placement{AreaID: "admin", PositionID: "clerk"}},
			{ID: "adm-002", Name: "Felipe Mora", Placement: schedule.Placement{AreaID: "finance", PositionID: "analyst"}},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "icu-rotation",
			Name:        "ICU Rotation",
			Description: "24/7 area on three rotating shifts, one nurse pinned to nights, one float nurse",
		},
		catalog: func() string { return factory.ThreeShiftRotationJSON("icu") },
		employees: []attendance.Employee{
			{ID: "icu-001", Name: "Gloria Paz", Placement: schedule.Placement{AreaID: "icu", PositionID: "nurse"}},
			{ID: "icu-002", Name: "Hector Sanz", Placement: schedule.Placement{AreaID: "icu", PositionID: "nurse"},
				DirectBindings: []schedule.ShiftID{"night"}},
			{ID: "icu-003", Name: "Irene Vega", Placement: schedule.Placement{AreaID: "icu", PositionID: "float-nurse"}},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "demo",
			Name:        "Demo",
			Description: "Office hours, ICU rotation and one employee per resolution tier",
		},
		catalog: factory.DemoCatalogJSON,
	},
}

// supernumeraryPositions flagged by the icu-rotation scenario.
var scenarioSupernumerary = map[string][]schedule.PositionID{
	"icu-rotation": {"float-nurse"},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario applies a scenario's catalog and employees.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err := h.loadScenario(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", s.ID))
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	cat, err := h.Catalog.Parse([]byte(s.catalog()))
	if err != nil {
		return fmt.Errorf("scenario %s: %w", s.ID, err)
	}
	cat.Employees = append(cat.Employees, s.employees...)
	cat.SupernumeraryPositions = append(cat.SupernumeraryPositions, scenarioSupernumerary[s.ID]...)
	return factory.Apply(ctx, cat, h.Store)
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}
