/*
justification.go - Justification workflow

LIFECYCLE:
  (none) --Justify--> PENDING --Review(accept)--> JUSTIFIED
                              --Review(reject)--> REJECTED --Justify--> PENDING

  Filing is allowed within JustificationWindow (7 days) of the punch.
  A JUSTIFIED event reports EXCUSED as its effective status; the event
  itself is never rewritten.

ONE-TIME CODES:
  When an anomaly tied to an event is reported, the incident collaborator
  may issue a code stored under JustificationCodeKey(code) with the event ID
  as value. RedeemCode checks the event first, then consumes the code
  exactly once and files the justification, so an employee can justify
  without knowing event IDs.
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/attendance-engine/otp"
	"go.uber.org/zap"
)

// Justify files a PENDING justification for an event.
func (e *Engine) Justify(ctx context.Context, eventID EventID, reason string) (Justification, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Justification{}, ErrReasonRequired
	}

	ev, err := e.justifiable(ctx, eventID)
	if err != nil {
		return Justification{}, err
	}
	return e.file(ctx, ev, reason)
}

// justifiable loads an event that may receive a new justification now.
func (e *Engine) justifiable(ctx context.Context, eventID EventID) (Event, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	if e.now().Sub(ev.Timestamp) > JustificationWindow {
		return Event{}, fmt.Errorf("%w: event %s is from %s",
			ErrJustificationWindowClosed, eventID, ev.Timestamp.Format(time.RFC3339))
	}
	if ev.Justification != nil && ev.Justification.Status != JustificationRejected {
		return Event{}, fmt.Errorf("%w: event %s is %s",
			ErrJustificationExists, eventID, ev.Justification.Status)
	}
	return ev, nil
}

func (e *Engine) file(ctx context.Context, ev Event, reason string) (Justification, error) {
	j := Justification{
		ID:          e.newID(),
		EventID:     ev.ID,
		Reason:      reason,
		Status:      JustificationPending,
		SubmittedAt: e.now(),
	}
	if err := e.store.SaveJustification(ctx, j); err != nil {
		return Justification{}, fmt.Errorf("saving justification for %s: %w", ev.ID, err)
	}

	e.logger.Info("justification filed",
		zap.String("event_id", string(ev.ID)),
		zap.String("employee_id", string(ev.EmployeeID)),
	)
	return j, nil
}

// ReviewJustification accepts or rejects a PENDING justification.
func (e *Engine) ReviewJustification(ctx context.Context, eventID EventID, accept bool, reviewer string) (Justification, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return Justification{}, err
	}
	if ev.Justification == nil {
		return Justification{}, fmt.Errorf("%w: event %s", ErrJustificationNotFound, eventID)
	}

	j := *ev.Justification
	if j.Status != JustificationPending {
		return Justification{}, fmt.Errorf("%w: %s is final", ErrInvalidJustificationTransition, j.Status)
	}

	now := e.now()
	j.Status = JustificationRejected
	if accept {
		j.Status = JustificationAccepted
	}
	j.ReviewedBy = reviewer
	j.ReviewedAt = &now

	if err := e.store.SaveJustification(ctx, j); err != nil {
		return Justification{}, fmt.Errorf("saving review for %s: %w", eventID, err)
	}

	e.logger.Info("justification reviewed",
		zap.String("event_id", string(eventID)),
		zap.String("status", string(j.Status)),
		zap.String("reviewer", reviewer),
	)
	return j, nil
}

// RedeemCode consumes a one-time code and files the justification for the
// event it was issued for. The code is only consumed once the event is known
// to accept a justification, so a refused redemption leaves it usable.
func (e *Engine) RedeemCode(ctx context.Context, code, reason string) (Justification, error) {
	if e.codes == nil {
		return Justification{}, ErrInvalidCode
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Justification{}, ErrReasonRequired
	}
	key := JustificationCodeKey(strings.ToUpper(strings.TrimSpace(code)))

	eventID, err := e.codes.Peek(ctx, key)
	if err != nil {
		return Justification{}, codeError(err)
	}
	ev, err := e.justifiable(ctx, EventID(eventID))
	if err != nil {
		return Justification{}, err
	}

	// Two concurrent redemptions can both pass the checks; only one take wins.
	if _, err := e.codes.TakeOnce(ctx, key); err != nil {
		return Justification{}, codeError(err)
	}
	return e.file(ctx, ev, reason)
}

func codeError(err error) error {
	if errors.Is(err, otp.ErrCodeNotFound) {
		return ErrInvalidCode
	}
	return fmt.Errorf("redeeming code: %w", err)
}
