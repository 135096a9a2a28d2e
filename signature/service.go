package signature

import (
	"context"
	"errors"
	"fmt"

	"lexflow/audit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ErrRequestNotPending is returned when a transition is attempted on a request
// that already left the PENDING state.
var ErrRequestNotPending = errors.New("signature: request is not pending")

// ReminderCanceller is the reminder-engine hook invoked whenever a request
// leaves PENDING. Defined here so the lifecycle service does not depend on the
// engine package.
type ReminderCanceller interface {
	CancelReminders(ctx context.Context, tenantID, requestID string) (int64, error)
}

// Service owns signature request lifecycle transitions. Every transition out
// of PENDING cancels the request's queued reminders.
type Service struct {
	pool      *pgxpool.Pool
	reminders ReminderCanceller
	sink      audit.Sink
	log       *logrus.Logger
}

func NewService(pool *pgxpool.Pool, reminders ReminderCanceller, sink audit.Sink, log *logrus.Logger) *Service {
	return &Service{pool: pool, reminders: reminders, sink: sink, log: log}
}

// TransitionParams describe a single status transition.
type TransitionParams struct {
	TenantID  string
	RequestID string
	Next      Status
	ActorID   string
}

// Transition moves a PENDING request into a terminal state. The update is
// conditional on the current status so concurrent transitions cannot race.
func (s *Service) Transition(ctx context.Context, params TransitionParams) error {
	switch params.Next {
	case StatusSigned, StatusDeclined, StatusExpired, StatusCancelled:
	default:
		return fmt.Errorf("signature: invalid transition target %q", params.Next)
	}

	tag, err := s.pool.Exec(ctx, `
        UPDATE signature_requests
        SET status = $3, updated_at = now()
        WHERE tenant_id = $1 AND id = $2 AND status = 'PENDING'
    `, params.TenantID, params.RequestID, params.Next)
	if err != nil {
		return fmt.Errorf("signature: transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM signature_requests WHERE tenant_id = $1 AND id = $2)`,
			params.TenantID, params.RequestID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("signature: verify request: %w", err)
		}
		if !exists {
			return ErrRequestNotFound
		}
		return ErrRequestNotPending
	}

	cancelled, err := s.reminders.CancelReminders(ctx, params.TenantID, params.RequestID)
	if err != nil {
		// The sweep re-checks request status before sending, so a failed bulk
		// cancel degrades to per-entry cancellation rather than a wrong send.
		s.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id":  params.TenantID,
			"request_id": params.RequestID,
		}).Error("cancel reminders after transition")
	} else if cancelled > 0 {
		s.log.WithFields(logrus.Fields{
			"tenant_id":  params.TenantID,
			"request_id": params.RequestID,
			"cancelled":  cancelled,
		}).Info("reminders cancelled on status transition")
	}

	actor := params.ActorID
	if actor == "" {
		actor = audit.ActorSystem
	}
	if err := s.sink.Record(ctx, audit.Event{
		TenantID:  params.TenantID,
		RequestID: params.RequestID,
		Type:      audit.EventRequestStatusChange,
		Actor:     actor,
		Payload:   map[string]any{"next_status": string(params.Next)},
	}); err != nil {
		s.log.WithError(err).Warn("audit record failed for status transition")
	}

	return nil
}
