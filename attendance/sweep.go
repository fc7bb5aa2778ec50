package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/schedule"
	"go.uber.org/zap"
)

// =============================================================================
// END-OF-DAY SWEEP - ABSENCE and UNREGISTERED_EXIT
// =============================================================================

// SweepDay classifies one employee's work day and reports anomalies seen for
// the first time. Safe to re-run: with an AnomalyLog configured, a
// (employee, work date, kind) triple is handed to the handler at most once.
// It returns the anomalies reported by this call.
func (e *Engine) SweepDay(ctx context.Context, employeeID schedule.EmployeeID, day time.Time) ([]AnomalyResult, error) {
	day = schedule.DateOf(day, e.loc)

	r, err := e.resolve(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	events, err := e.dayEvents(ctx, employeeID, day)
	if err != nil {
		return nil, err
	}

	found := NewDetector(r.tolerances).SweepDay(
		employeeID, day, schedule.WindowsOn(r.assignment, day), events, e.now().In(e.loc))

	var reported []AnomalyResult
	for _, a := range found {
		first := true
		if e.anomalies != nil {
			first, err = e.anomalies.MarkReported(ctx, employeeID, day, a.Kind)
			if err != nil {
				return reported, fmt.Errorf("marking %s for %s on %s: %w",
					a.Kind, employeeID, schedule.FormatDate(day), err)
			}
		}
		if !first {
			continue
		}
		e.report(ctx, a)
		reported = append(reported, a)
	}
	return reported, nil
}

// BatchSummary counts the outcome of a roster-wide batch.
type BatchSummary struct {
	Employees int             `json:"employees"`
	Failed    int             `json:"failed"`
	Reported  []AnomalyResult `json:"reported,omitempty"`
	Closed    []Event         `json:"closed,omitempty"`
}

// Sweep runs SweepDay for every employee of the directory. Per-employee
// failures, configuration errors included, are logged and counted; they do
// not stop the batch.
func (e *Engine) Sweep(ctx context.Context, day time.Time) (BatchSummary, error) {
	employees, err := e.directory.ListEmployees(ctx)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("listing employees: %w", err)
	}

	summary := BatchSummary{Employees: len(employees)}
	for _, id := range employees {
		reported, err := e.SweepDay(ctx, id, day)
		summary.Reported = append(summary.Reported, reported...)
		if err != nil {
			summary.Failed++
			e.logger.Warn("sweep failed",
				zap.String("employee_id", string(id)),
				zap.String("work_date", schedule.FormatDate(day)),
				zap.Error(err),
			)
		}
	}

	e.logger.Info("sweep completed",
		zap.String("work_date", schedule.FormatDate(day)),
		zap.Int("employees", summary.Employees),
		zap.Int("reported", len(summary.Reported)),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}
