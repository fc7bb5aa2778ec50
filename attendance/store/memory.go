// Package store provides in-memory implementations of the attendance
// collaborators.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements attendance.Store, Directory, Catalog and AnomalyLog.
type Memory struct {
	mu sync.RWMutex

	events         map[dayKey][]attendance.Event
	byID           map[attendance.EventID]dayKey
	justifications map[attendance.EventID]attendance.Justification
	reported       map[reportKey]bool

	employees     map[schedule.EmployeeID]attendance.Employee
	supernumerary map[schedule.PositionID]bool

	fixed      *schedule.FixedWeeklySchedule
	shifts     []schedule.RotatingShift
	policy     *schedule.SupernumeraryPolicy
	tolerances schedule.Tolerances
}

type dayKey struct {
	EmployeeID schedule.EmployeeID
	WorkDate   string
}

type reportKey struct {
	day  dayKey
	kind attendance.AnomalyKind
}

func key(employeeID schedule.EmployeeID, workDate time.Time) dayKey {
	return dayKey{EmployeeID: employeeID, WorkDate: schedule.FormatDate(workDate)}
}

func NewMemory() *Memory {
	return &Memory{
		events:         make(map[dayKey][]attendance.Event),
		byID:           make(map[attendance.EventID]dayKey),
		justifications: make(map[attendance.EventID]attendance.Justification),
		reported:       make(map[reportKey]bool),
		employees:      make(map[schedule.EmployeeID]attendance.Employee),
		supernumerary:  make(map[schedule.PositionID]bool),
		tolerances:     schedule.DefaultTolerances(),
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// Append checks and inserts under one lock, so two concurrent CHECK_INs for
// the same work date cannot both succeed.
func (m *Memory) Append(_ context.Context, e attendance.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(e.EmployeeID, e.WorkDate)
	events := m.events[k]
	if e.Type == attendance.CheckIn || e.Type == attendance.CheckOut {
		for _, existing := range events {
			if existing.Type == e.Type {
				return attendance.ErrDuplicateEvent
			}
		}
	}

	e.Justification = nil
	i := sort.Search(len(events), func(i int) bool {
		return events[i].Timestamp.After(e.Timestamp)
	})
	events = append(events, attendance.Event{})
	copy(events[i+1:], events[i:])
	events[i] = e
	m.events[k] = events
	m.byID[e.ID] = k
	return nil
}

func (m *Memory) EventsForEmployeeDay(_ context.Context, employeeID schedule.EmployeeID, workDate time.Time) ([]attendance.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := m.events[key(employeeID, workDate)]
	result := make([]attendance.Event, len(events))
	for i, e := range events {
		result[i] = m.withJustification(e)
	}
	return result, nil
}

func (m *Memory) GetEvent(_ context.Context, id attendance.EventID) (attendance.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.byID[id]
	if !ok {
		return attendance.Event{}, attendance.ErrEventNotFound
	}
	for _, e := range m.events[k] {
		if e.ID == id {
			return m.withJustification(e), nil
		}
	}
	return attendance.Event{}, attendance.ErrEventNotFound
}

func (m *Memory) SaveJustification(_ context.Context, j attendance.Justification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[j.EventID]; !ok {
		return attendance.ErrEventNotFound
	}
	m.justifications[j.EventID] = j
	return nil
}

func (m *Memory) withJustification(e attendance.Event) attendance.Event {
	if j, ok := m.justifications[e.ID]; ok {
		e.Justification = &j
	}
	return e
}

// MarkReported implements attendance.AnomalyLog.
func (m *Memory) MarkReported(_ context.Context, employeeID schedule.EmployeeID, workDate time.Time, kind attendance.AnomalyKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := reportKey{day: key(employeeID, workDate), kind: kind}
	if m.reported[k] {
		return false, nil
	}
	m.reported[k] = true
	return true, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e attendance.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id schedule.EmployeeID) (attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return attendance.Employee{}, attendance.ErrEmployeeNotFound
	}
	return e, nil
}

func (m *Memory) SetSupernumerary(positionID schedule.PositionID, flag bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supernumerary[positionID] = flag
}

func (m *Memory) Placement(ctx context.Context, id schedule.EmployeeID) (schedule.Placement, error) {
	e, err := m.GetEmployee(ctx, id)
	if err != nil {
		return schedule.Placement{}, err
	}
	return e.Placement, nil
}

func (m *Memory) DirectShiftBindings(ctx context.Context, id schedule.EmployeeID) ([]schedule.ShiftID, error) {
	e, err := m.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]schedule.ShiftID(nil), e.DirectBindings...), nil
}

func (m *Memory) IsSupernumerary(_ context.Context, positionID schedule.PositionID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supernumerary[positionID], nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]schedule.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]schedule.EmployeeID, 0, len(m.employees))
	for id := range m.employees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) SetFixedSchedule(f *schedule.FixedWeeklySchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed = f
}

func (m *Memory) SetShifts(shifts ...schedule.RotatingShift) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts = append([]schedule.RotatingShift(nil), shifts...)
}

func (m *Memory) SetPolicy(p *schedule.SupernumeraryPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
}

func (m *Memory) SetTolerances(t schedule.Tolerances) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tolerances = t
}

func (m *Memory) FixedSchedule(_ context.Context) (*schedule.FixedWeeklySchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fixed, nil
}

func (m *Memory) ActiveRotatingShifts(_ context.Context) ([]schedule.RotatingShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []schedule.RotatingShift
	for _, s := range m.shifts {
		if s.Active {
			active = append(active, s)
		}
	}
	return active, nil
}

func (m *Memory) SupernumeraryPolicy(_ context.Context) (*schedule.SupernumeraryPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy, nil
}

func (m *Memory) Tolerances(_ context.Context) (schedule.Tolerances, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tolerances, nil
}

// =============================================================================
// CATALOG WRITES - context-aware setters shared with the SQL stores
// =============================================================================

// SaveShift upserts a rotating shift by ID.
func (m *Memory) SaveShift(_ context.Context, shift schedule.RotatingShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.shifts {
		if s.ID == shift.ID {
			m.shifts[i] = shift
			return nil
		}
	}
	m.shifts = append(m.shifts, shift)
	return nil
}

func (m *Memory) SaveFixedSchedule(_ context.Context, f *schedule.FixedWeeklySchedule) error {
	m.SetFixedSchedule(f)
	return nil
}

func (m *Memory) SavePolicy(_ context.Context, p *schedule.SupernumeraryPolicy) error {
	m.SetPolicy(p)
	return nil
}

func (m *Memory) SaveTolerances(_ context.Context, t schedule.Tolerances) error {
	m.SetTolerances(t)
	return nil
}

func (m *Memory) SaveSupernumerary(_ context.Context, positionID schedule.PositionID, flag bool) error {
	m.SetSupernumerary(positionID, flag)
	return nil
}

// ListEmployeeRecords returns all employees ordered by name.
func (m *Memory) ListEmployeeRecords(_ context.Context) ([]attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	employees := make([]attendance.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		employees = append(employees, e)
	}
	sort.Slice(employees, func(i, j int) bool {
		if employees[i].Name != employees[j].Name {
			return employees[i].Name < employees[j].Name
		}
		return employees[i].ID < employees[j].ID
	})
	return employees, nil
}
