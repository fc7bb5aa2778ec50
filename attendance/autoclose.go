/*
autoclose.go - Closing shifts nobody checked out of

PURPOSE:
  An external batch (api scheduler, `autoclose` command) calls AutoClose for
  days that are still open. It writes a synthetic CHECK_OUT at
  checkOut.end + Tolerance, going through the same sequencer and the same
  store uniqueness as a real punch. Only the window gate is skipped, since
  the timestamp is by construction outside it.

RE-RUNS:
  Days that are not open (NONE or CHECKED_OUT) are skipped, and the store
  rejects a second CHECK_OUT, so running the batch twice is harmless.

  An open break is ended first with a synthetic BREAK_END at the same instant.
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/schedule"
	"go.uber.org/zap"
)

// AutoClose closes the employee's work day if it is still open and its
// check-out window has passed. It returns the synthetic events written.
func (e *Engine) AutoClose(ctx context.Context, employeeID schedule.EmployeeID, day time.Time) ([]Event, error) {
	day = schedule.DateOf(day, e.loc)

	events, err := e.dayEvents(ctx, employeeID, day)
	if err != nil {
		return nil, err
	}
	state, err := ReplayDay(events)
	if err != nil {
		return nil, fmt.Errorf("replaying %s for %s: %w", schedule.FormatDate(day), employeeID, err)
	}
	if !state.Open() {
		return nil, nil
	}

	r, err := e.resolve(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	windows := schedule.WindowsOn(r.assignment, day)
	if len(windows) == 0 {
		e.logger.Warn("open day without a scheduled window, leaving it open",
			zap.String("employee_id", string(employeeID)),
			zap.String("work_date", schedule.FormatDate(day)),
		)
		return nil, nil
	}

	checkIn, _ := findEvent(events, CheckIn)
	window := windowFor(windows, checkIn.ShiftRef)
	_, checkOutEnd := window.CheckOutBounds(r.tolerances)
	closeAt := checkOutEnd.Add(time.Duration(r.tolerances.Tolerance) * time.Minute)
	if e.now().Before(closeAt) {
		return nil, nil
	}

	var written []Event
	steps := []EventType{CheckOut}
	if state == StateOnBreak {
		steps = []EventType{BreakEnd, CheckOut}
	}
	for _, t := range steps {
		next, err := Transition(state, t)
		if err != nil {
			return written, err
		}
		rec, err := e.commit(ctx, Event{
			ID:         EventID(e.newID()),
			EmployeeID: employeeID,
			Type:       t,
			Timestamp:  closeAt,
			WorkDate:   day,
			Status:     StatusPresent,
			ShiftRef:   window.ShiftID,
			Synthetic:  true,
			CreatedAt:  e.now(),
		}, window, r.tolerances)
		if errors.Is(err, ErrDuplicateEvent) {
			// A concurrent run or a late real punch got there first.
			return written, nil
		}
		if err != nil {
			return written, err
		}
		written = append(written, rec.Event)
		state = next
	}
	return written, nil
}

// AutoCloseAll runs AutoClose for every employee of the directory.
func (e *Engine) AutoCloseAll(ctx context.Context, day time.Time) (BatchSummary, error) {
	employees, err := e.directory.ListEmployees(ctx)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("listing employees: %w", err)
	}

	summary := BatchSummary{Employees: len(employees)}
	for _, id := range employees {
		closed, err := e.AutoClose(ctx, id, day)
		summary.Closed = append(summary.Closed, closed...)
		if err != nil {
			summary.Failed++
			e.logger.Warn("auto-close failed",
				zap.String("employee_id", string(id)),
				zap.String("work_date", schedule.FormatDate(day)),
				zap.Error(err),
			)
		}
	}

	e.logger.Info("auto-close completed",
		zap.String("work_date", schedule.FormatDate(day)),
		zap.Int("employees", summary.Employees),
		zap.Int("closed", len(summary.Closed)),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}
