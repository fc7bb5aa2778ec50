package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/otp"
	"github.com/warp/attendance-engine/schedule"
)

// CodeLength is the length of issued justification codes.
const CodeLength = 8

// Dispatcher implements attendance.AnomalyHandler.
type Dispatcher struct {
	publisher Publisher
	codes     otp.Store
	logger    *zap.Logger
	now       func() time.Time
}

type DispatcherOption func(*Dispatcher)

// WithCodes enables justification codes. Without a store no code is issued.
func WithCodes(codes otp.Store) DispatcherOption {
	return func(d *Dispatcher) { d.codes = codes }
}

func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(publisher Publisher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ attendance.AnomalyHandler = (*Dispatcher)(nil)

// OnAnomalyDetected publishes one incident. Absences have no event to
// justify and never get a code.
func (d *Dispatcher) OnAnomalyDetected(ctx context.Context, result attendance.AnomalyResult, employeeID schedule.EmployeeID, eventID attendance.EventID) error {
	inc := Incident{
		ID:               uuid.NewString(),
		Kind:             result.Kind,
		EmployeeID:       employeeID,
		EventID:          eventID,
		ShiftID:          result.ShiftID,
		WorkDate:         schedule.FormatDate(result.WorkDate),
		ExpectedTime:     result.ExpectedTime,
		ActualTime:       result.ActualTime,
		DeviationMinutes: result.DeviationMinutes,
		ReportedAt:       d.now(),
	}

	if d.codes != nil && eventID != "" {
		code, expires, err := d.issueCode(ctx, eventID)
		if err != nil {
			// The incident still goes out, just without a code.
			d.logger.Warn("failed to issue justification code",
				zap.String("event_id", string(eventID)),
				zap.Error(err),
			)
		} else {
			inc.JustificationCode = code
			inc.CodeExpiresAt = &expires
		}
	}

	payload, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("encoding incident: %w", err)
	}
	if err := d.publisher.Publish(ctx, inc.RoutingKey(), payload); err != nil {
		return fmt.Errorf("publishing %s incident for %s: %w", inc.Kind, employeeID, err)
	}
	return nil
}

func (d *Dispatcher) issueCode(ctx context.Context, eventID attendance.EventID) (string, time.Time, error) {
	code, err := otp.NewCode(CodeLength)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := d.codes.Put(ctx, attendance.JustificationCodeKey(code), string(eventID), attendance.JustificationWindow); err != nil {
		return "", time.Time{}, err
	}
	return code, d.now().Add(attendance.JustificationWindow), nil
}

// Fanout publishes to every publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, routingKey string, payload []byte) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, routingKey, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
