/*
Package factory provides JSON to Go schedule catalog conversion.

PURPOSE:
  Converts JSON catalog definitions into schedule types (fixed weekly
  schedule, rotating shifts, supernumerary policy, tolerances) and
  directory entries. Administrators describe the catalog in JSON and the
  factory creates the proper Go structs.

JSON SCHEMA:
  {
    "tolerances": {"tolerance": 15, "early_check_in": 30, "late_checkout": 60, "early_departure": 15},
    "fixed_schedule": {
      "id": "office",
      "name": "Office hours",
      "days": {"monday": {"start": "08:00", "end": "17:00"}},
      "lunch": {"start": "13:00", "end": "14:00"}
    },
    "shifts": [
      {"id": "night", "name": "Night", "start": "22:00", "end": "06:00", "areas": ["icu"]}
    ],
    "supernumerary": {"mode": "REPLACEMENT", "allowed_shifts": ["night"]},
    "supernumerary_positions": ["float-nurse"],
    "employees": [
      {"id": "emp-1", "name": "Ana", "area_id": "icu", "position_id": "nurse", "shifts": ["night"]}
    ]
  }

  The structure is checked against catalogSchema (schema.go) before any
  conversion. Referential integrity is checked afterwards:
  - shift IDs are unique
  - allowed_shifts and employee shifts name declared shifts
  - FIXED_SCHEDULE policies carry a schedule

USAGE:
  f, err := factory.New()
  cat, err := f.Parse(data)
  err = factory.Apply(ctx, cat, store)

SEE ALSO:
  - presets.go:         Ready-made catalogs
  - schedule/types.go:  Target types
  - store/sqlite:       Persists an applied catalog
*/
package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

// ErrInvalidCatalog wraps every schema or referential failure.
var ErrInvalidCatalog = errors.New("invalid catalog definition")

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a schedule catalog.
type CatalogJSON struct {
	Tolerances             *ToleranceJSON     `json:"tolerances,omitempty"`
	FixedSchedule          *FixedJSON         `json:"fixed_schedule,omitempty"`
	Shifts                 []ShiftJSON        `json:"shifts,omitempty"`
	Supernumerary          *SupernumeraryJSON `json:"supernumerary,omitempty"`
	SupernumeraryPositions []string           `json:"supernumerary_positions,omitempty"`
	Employees              []EmployeeJSON     `json:"employees,omitempty"`
}

type ToleranceJSON struct {
	Tolerance      *int `json:"tolerance,omitempty"`
	EarlyCheckIn   *int `json:"early_check_in,omitempty"`
	LateCheckIn    *int `json:"late_check_in,omitempty"`
	EarlyCheckOut  *int `json:"early_check_out,omitempty"`
	LateCheckout   *int `json:"late_checkout,omitempty"`
	EarlyDeparture *int `json:"early_departure,omitempty"`
}

type WindowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FixedJSON keys days by lower-case English weekday name.
type FixedJSON struct {
	ID        string                `json:"id,omitempty"`
	Name      string                `json:"name,omitempty"`
	Days      map[string]WindowJSON `json:"days"`
	Lunch     *WindowJSON           `json:"lunch,omitempty"`
	Areas     []string              `json:"areas,omitempty"`
	Positions []string              `json:"positions,omitempty"`
}

type ShiftJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
	// Active defaults to true.
	Active    *bool    `json:"active,omitempty"`
	Areas     []string `json:"areas,omitempty"`
	Positions []string `json:"positions,omitempty"`
}

type SupernumeraryJSON struct {
	Mode          string     `json:"mode"`
	AllowedShifts []string   `json:"allowed_shifts,omitempty"`
	Schedule      *FixedJSON `json:"schedule,omitempty"`
}

type EmployeeJSON struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AreaID     string   `json:"area_id,omitempty"`
	PositionID string   `json:"position_id,omitempty"`
	Shifts     []string `json:"shifts,omitempty"`
}

// =============================================================================
// CATALOG - Converted result
// =============================================================================

// Catalog is a parsed definition ready to be applied to a store.
// Shifts includes inactive ones.
type Catalog struct {
	Tolerances             schedule.Tolerances
	Fixed                  *schedule.FixedWeeklySchedule
	Shifts                 []schedule.RotatingShift
	Policy                 *schedule.SupernumeraryPolicy
	SupernumeraryPositions []schedule.PositionID
	Employees              []attendance.Employee
}

// Snapshot returns the catalog the resolver would see.
func (c Catalog) Snapshot() schedule.CatalogSnapshot {
	snap := schedule.CatalogSnapshot{Fixed: c.Fixed, Policy: c.Policy}
	for _, s := range c.Shifts {
		if s.Active {
			snap.Shifts = append(snap.Shifts, s)
		}
	}
	return snap
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory converts JSON catalogs to Go structs.
type Factory struct {
	schema *jsonschema.Schema
}

// New compiles the catalog schema.
func New() (*Factory, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.json", strings.NewReader(catalogSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("catalog.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Factory{schema: schema}, nil
}

// Validate checks raw JSON against the catalog schema only.
func (f *Factory) Validate(data []byte) error {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := f.schema.Validate(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return nil
}

// Parse validates and converts a JSON catalog.
func (f *Factory) Parse(data []byte) (Catalog, error) {
	if err := f.Validate(data); err != nil {
		return Catalog{}, err
	}

	var cj CatalogJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	return FromJSON(cj)
}

// FromJSON converts a CatalogJSON and checks referential integrity.
func FromJSON(cj CatalogJSON) (Catalog, error) {
	cat := Catalog{Tolerances: parseTolerances(cj.Tolerances)}

	shiftIDs := make(map[schedule.ShiftID]bool, len(cj.Shifts))
	for _, sj := range cj.Shifts {
		shift, err := parseShift(sj)
		if err != nil {
			return Catalog{}, err
		}
		if shiftIDs[shift.ID] {
			return Catalog{}, fmt.Errorf("%w: duplicate shift %q", ErrInvalidCatalog, shift.ID)
		}
		shiftIDs[shift.ID] = true
		cat.Shifts = append(cat.Shifts, shift)
	}

	if cj.FixedSchedule != nil {
		fixed, err := parseFixed(*cj.FixedSchedule)
		if err != nil {
			return Catalog{}, err
		}
		cat.Fixed = &fixed
	}

	if cj.Supernumerary != nil {
		policy, err := parsePolicy(*cj.Supernumerary, shiftIDs)
		if err != nil {
			return Catalog{}, err
		}
		cat.Policy = &policy
	}

	for _, p := range cj.SupernumeraryPositions {
		cat.SupernumeraryPositions = append(cat.SupernumeraryPositions, schedule.PositionID(p))
	}

	for _, ej := range cj.Employees {
		emp := attendance.Employee{
			ID:   schedule.EmployeeID(ej.ID),
			Name: ej.Name,
			Placement: schedule.Placement{
				AreaID:     schedule.AreaID(ej.AreaID),
				PositionID: schedule.PositionID(ej.PositionID),
			},
		}
		for _, id := range ej.Shifts {
			if !shiftIDs[schedule.ShiftID(id)] {
				return Catalog{}, fmt.Errorf("%w: employee %s is bound to unknown shift %q", ErrInvalidCatalog, ej.ID, id)
			}
			emp.DirectBindings = append(emp.DirectBindings, schedule.ShiftID(id))
		}
		cat.Employees = append(cat.Employees, emp)
	}

	return cat, nil
}

// ToJSON converts a catalog back to its JSON representation.
func ToJSON(c Catalog) CatalogJSON {
	cj := CatalogJSON{Tolerances: toleranceJSON(c.Tolerances)}

	if c.Fixed != nil {
		fj := fixedJSON(*c.Fixed)
		cj.FixedSchedule = &fj
	}

	for _, s := range c.Shifts {
		active := s.Active
		cj.Shifts = append(cj.Shifts, ShiftJSON{
			ID:        string(s.ID),
			Name:      s.Name,
			Start:     s.Window.Start.String(),
			End:       s.Window.End.String(),
			Active:    &active,
			Areas:     keys(s.AssignedAreas),
			Positions: keys(s.AssignedPositions),
		})
	}

	if c.Policy != nil {
		sj := SupernumeraryJSON{
			Mode:          string(c.Policy.Mode),
			AllowedShifts: keys(c.Policy.AllowedShiftIDs),
		}
		if c.Policy.Schedule != nil {
			fj := fixedJSON(*c.Policy.Schedule)
			sj.Schedule = &fj
		}
		cj.Supernumerary = &sj
	}

	for _, p := range c.SupernumeraryPositions {
		cj.SupernumeraryPositions = append(cj.SupernumeraryPositions, string(p))
	}

	for _, e := range c.Employees {
		ej := EmployeeJSON{
			ID:         string(e.ID),
			Name:       e.Name,
			AreaID:     string(e.Placement.AreaID),
			PositionID: string(e.Placement.PositionID),
		}
		for _, id := range e.DirectBindings {
			ej.Shifts = append(ej.Shifts, string(id))
		}
		cj.Employees = append(cj.Employees, ej)
	}

	return cj
}

// =============================================================================
// APPLY - Persist a catalog
// =============================================================================

// Writer is implemented by the memory and SQLite stores.
type Writer interface {
	SaveTolerances(ctx context.Context, t schedule.Tolerances) error
	SaveFixedSchedule(ctx context.Context, f *schedule.FixedWeeklySchedule) error
	SaveShift(ctx context.Context, s schedule.RotatingShift) error
	SavePolicy(ctx context.Context, p *schedule.SupernumeraryPolicy) error
	SaveSupernumerary(ctx context.Context, positionID schedule.PositionID, flag bool) error
	SaveEmployee(ctx context.Context, e attendance.Employee) error
}

// Apply writes every part of the catalog. Shifts are upserted, never
// removed, so past events keep resolving their ShiftRef.
func Apply(ctx context.Context, c Catalog, w Writer) error {
	if err := w.SaveTolerances(ctx, c.Tolerances); err != nil {
		return fmt.Errorf("saving tolerances: %w", err)
	}
	if err := w.SaveFixedSchedule(ctx, c.Fixed); err != nil {
		return fmt.Errorf("saving fixed schedule: %w", err)
	}
	for _, s := range c.Shifts {
		if err := w.SaveShift(ctx, s); err != nil {
			return fmt.Errorf("saving shift %s: %w", s.ID, err)
		}
	}
	if err := w.SavePolicy(ctx, c.Policy); err != nil {
		return fmt.Errorf("saving supernumerary policy: %w", err)
	}
	for _, p := range c.SupernumeraryPositions {
		if err := w.SaveSupernumerary(ctx, p, true); err != nil {
			return fmt.Errorf("flagging position %s: %w", p, err)
		}
	}
	for _, e := range c.Employees {
		if err := w.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("saving employee %s: %w", e.ID, err)
		}
	}
	return nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Unset fields keep their default.
func parseTolerances(tj *ToleranceJSON) schedule.Tolerances {
	t := schedule.DefaultTolerances()
	if tj == nil {
		return t
	}
	override := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	override(&t.Tolerance, tj.Tolerance)
	override(&t.EarlyCheckIn, tj.EarlyCheckIn)
	override(&t.LateCheckIn, tj.LateCheckIn)
	override(&t.EarlyCheckOut, tj.EarlyCheckOut)
	override(&t.LateCheckout, tj.LateCheckout)
	override(&t.EarlyDeparture, tj.EarlyDeparture)
	return t
}

func toleranceJSON(t schedule.Tolerances) *ToleranceJSON {
	return &ToleranceJSON{
		Tolerance:      &t.Tolerance,
		EarlyCheckIn:   &t.EarlyCheckIn,
		LateCheckIn:    &t.LateCheckIn,
		EarlyCheckOut:  &t.EarlyCheckOut,
		LateCheckout:   &t.LateCheckout,
		EarlyDeparture: &t.EarlyDeparture,
	}
}

func parseWindow(wj WindowJSON, what string) (schedule.TimeWindow, error) {
	w, err := schedule.NewTimeWindow(wj.Start, wj.End)
	if err != nil {
		return schedule.TimeWindow{}, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, what, err)
	}
	return w, nil
}

func parseShift(sj ShiftJSON) (schedule.RotatingShift, error) {
	w, err := parseWindow(WindowJSON{Start: sj.Start, End: sj.End}, "shift "+sj.ID)
	if err != nil {
		return schedule.RotatingShift{}, err
	}
	active := true
	if sj.Active != nil {
		active = *sj.Active
	}
	return schedule.RotatingShift{
		ID:                schedule.ShiftID(sj.ID),
		Name:              sj.Name,
		Window:            w,
		Active:            active,
		AssignedAreas:     set[schedule.AreaID](sj.Areas),
		AssignedPositions: set[schedule.PositionID](sj.Positions),
	}, nil
}

func parseFixed(fj FixedJSON) (schedule.FixedWeeklySchedule, error) {
	f := schedule.FixedWeeklySchedule{
		ID:                fj.ID,
		Name:              fj.Name,
		Days:              make(map[time.Weekday]schedule.TimeWindow, len(fj.Days)),
		AssignedAreas:     set[schedule.AreaID](fj.Areas),
		AssignedPositions: set[schedule.PositionID](fj.Positions),
	}
	for name, wj := range fj.Days {
		day, ok := weekdays[name]
		if !ok {
			return f, fmt.Errorf("%w: unknown weekday %q", ErrInvalidCatalog, name)
		}
		w, err := parseWindow(wj, name)
		if err != nil {
			return f, err
		}
		f.Days[day] = w
	}
	if fj.Lunch != nil {
		lunch, err := parseWindow(*fj.Lunch, "lunch")
		if err != nil {
			return f, err
		}
		f.Lunch = &lunch
	}
	return f, nil
}

func fixedJSON(f schedule.FixedWeeklySchedule) FixedJSON {
	fj := FixedJSON{
		ID:        f.ID,
		Name:      f.Name,
		Days:      make(map[string]WindowJSON, len(f.Days)),
		Areas:     keys(f.AssignedAreas),
		Positions: keys(f.AssignedPositions),
	}
	for name, day := range weekdays {
		if w, ok := f.Days[day]; ok {
			fj.Days[name] = WindowJSON{Start: w.Start.String(), End: w.End.String()}
		}
	}
	if f.Lunch != nil {
		fj.Lunch = &WindowJSON{Start: f.Lunch.Start.String(), End: f.Lunch.End.String()}
	}
	return fj
}

func parsePolicy(sj SupernumeraryJSON, shiftIDs map[schedule.ShiftID]bool) (schedule.SupernumeraryPolicy, error) {
	p := schedule.SupernumeraryPolicy{Mode: schedule.SupernumeraryMode(sj.Mode)}

	switch p.Mode {
	case schedule.ModeReplacement:
		if len(sj.AllowedShifts) == 0 {
			return p, fmt.Errorf("%w: REPLACEMENT policy needs allowed_shifts", ErrInvalidCatalog)
		}
		p.AllowedShiftIDs = make(map[schedule.ShiftID]bool, len(sj.AllowedShifts))
		for _, id := range sj.AllowedShifts {
			if !shiftIDs[schedule.ShiftID(id)] {
				return p, fmt.Errorf("%w: policy allows unknown shift %q", ErrInvalidCatalog, id)
			}
			p.AllowedShiftIDs[schedule.ShiftID(id)] = true
		}

	case schedule.ModeFixedSchedule:
		if sj.Schedule == nil {
			return p, fmt.Errorf("%w: FIXED_SCHEDULE policy needs a schedule", ErrInvalidCatalog)
		}
		f, err := parseFixed(*sj.Schedule)
		if err != nil {
			return p, err
		}
		p.Schedule = &f

	default:
		return p, fmt.Errorf("%w: unknown supernumerary mode %q", ErrInvalidCatalog, sj.Mode)
	}

	return p, nil
}

func set[K ~string](ids []string) map[K]bool {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[K]bool, len(ids))
	for _, id := range ids {
		m[K(id)] = true
	}
	return m
}

func keys[K ~string](m map[K]bool) []string {
	var out []string
	for k, ok := range m {
		if ok {
			out = append(out, string(k))
		}
	}
	sort.Strings(out)
	return out
}
