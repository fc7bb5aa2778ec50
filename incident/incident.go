/*
Package incident hands detected anomalies to the outside world.

PURPOSE:
  The engine never writes memoranda or disciplinary records. It calls an
  attendance.AnomalyHandler, and this package provides the handler used in
  production: the Dispatcher turns each AnomalyResult into an Incident
  message, attaches a one-time justification code when the anomaly points
  at an event, and publishes it.

PUBLISHERS:
  - RabbitMQPublisher: topic exchange, one routing key per anomaly kind
  - BreakerPublisher:  gobreaker circuit breaker around another publisher
  - LogPublisher:      writes incidents to the zap logger (no broker)

ROUTING KEYS:
  attendance.anomaly.late_arrival
  attendance.anomaly.early_departure
  attendance.anomaly.unregistered_exit
  attendance.anomaly.absence

SEE ALSO:
  - attendance/store.go:         AnomalyHandler contract
  - attendance/justification.go: RedeemCode consumes the issued codes
*/
package incident

import (
	"context"
	"strings"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

// Publisher sends a payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// Incident is the message published for every reported anomaly.
type Incident struct {
	ID               string                 `json:"id"`
	Kind             attendance.AnomalyKind `json:"kind"`
	EmployeeID       schedule.EmployeeID    `json:"employee_id"`
	EventID          attendance.EventID     `json:"event_id,omitempty"`
	ShiftID          schedule.ShiftID       `json:"shift_id,omitempty"`
	WorkDate         string                 `json:"work_date"`
	ExpectedTime     *time.Time             `json:"expected_time,omitempty"`
	ActualTime       *time.Time             `json:"actual_time,omitempty"`
	DeviationMinutes *int                   `json:"deviation_minutes,omitempty"`
	// JustificationCode is set when the employee can justify the event.
	JustificationCode string     `json:"justification_code,omitempty"`
	CodeExpiresAt     *time.Time `json:"code_expires_at,omitempty"`
	ReportedAt        time.Time  `json:"reported_at"`
}

// RoutingKey is the topic the incident is published under.
func (i Incident) RoutingKey() string {
	return "attendance.anomaly." + strings.ToLower(string(i.Kind))
}
