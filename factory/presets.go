package factory

import (
	"encoding/json"
)

// =============================================================================
// PRESET CATALOGS
// =============================================================================
//
// Presets return JSON so they go through the same schema validation as any
// catalog an administrator uploads.

// OfficeHoursJSON returns JSON for an agency-wide Monday to Friday schedule
// with a one hour lunch break.
func OfficeHoursJSON(start, end, lunchStart, lunchEnd string) string {
	window := map[string]interface{}{"start": start, "end": end}
	pj := map[string]interface{}{
		"fixed_schedule": map[string]interface{}{
			"id":   "office",
			"name": "Office hours",
			"days": map[string]interface{}{
				"monday":    window,
				"tuesday":   window,
				"wednesday": window,
				"thursday":  window,
				"friday":    window,
			},
			"lunch": map[string]interface{}{"start": lunchStart, "end": lunchEnd},
		},
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// ThreeShiftRotationJSON returns JSON for a 24/7 area covered by morning,
// afternoon and night shifts, with supernumerary staff replacing on any of
// them.
func ThreeShiftRotationJSON(areaID string) string {
	areas := []string{areaID}
	pj := map[string]interface{}{
		"shifts": []map[string]interface{}{
			{"id": "morning", "name": "Morning", "start": "06:00", "end": "14:00", "areas": areas},
			{"id": "afternoon", "name": "Afternoon", "start": "14:00", "end": "22:00", "areas": areas},
			{"id": "night", "name": "Night", "start": "22:00", "end": "06:00", "areas": areas},
		},
		"supernumerary": map[string]interface{}{
			"mode":           "REPLACEMENT",
			"allowed_shifts": []string{"morning", "afternoon", "night"},
		},
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// DemoCatalogJSON returns the catalog loaded by the seed command: office
// hours for administration, a three-shift rotation for the ICU, and a few
// employees covering every resolution tier.
func DemoCatalogJSON() string {
	window := map[string]interface{}{"start": "08:00", "end": "17:00"}
	icu := []string{"icu"}
	pj := map[string]interface{}{
		"tolerances": map[string]interface{}{
			"tolerance":       15,
			"early_check_in":  30,
			"late_check_in":   120,
			"early_check_out": 120,
			"late_checkout":   60,
			"early_departure": 15,
		},
		"fixed_schedule": map[string]interface{}{
			"id":   "office",
			"name": "Office hours",
			"days": map[string]interface{}{
				"monday":    window,
				"tuesday":   window,
				"wednesday": window,
				"thursday":  window,
				"friday":    window,
			},
			"lunch": map[string]interface{}{"start": "13:00", "end": "14:00"},
		},
		"shifts": []map[string]interface{}{
			{"id": "morning", "name": "Morning", "start": "06:00", "end": "14:00", "areas": icu},
			{"id": "afternoon", "name": "Afternoon", "start": "14:00", "end": "22:00", "areas": icu},
			{"id": "night", "name": "Night", "start": "22:00", "end": "06:00", "areas": icu},
			{"id": "weekend-long", "name": "Weekend long day", "start": "08:00", "end": "20:00", "active": false},
		},
		"supernumerary": map[string]interface{}{
			"mode":           "REPLACEMENT",
			"allowed_shifts": []string{"morning", "night"},
		},
		"supernumerary_positions": []string{"float-nurse"},
		"employees": []map[string]interface{}{
			{"id": "emp-001", "name": "Ana Torres", "area_id": "admin", "position_id": "clerk"},
			{"id": "emp-002", "name": "Bruno Diaz", "area_id": "icu", "position_id": "nurse"},
			{"id": "emp-003", "name": "Carla Ruiz", "area_id": "icu", "position_id": "nurse", "shifts": []string{"night"}},
			{"id": "emp-004", "name": "Dario Gil", "area_id": "icu", "position_id": "float-nurse"},
		},
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
