package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Event types recorded by the reminder engine.
const (
	EventReminderSent        = "REMINDER_SENT"
	EventRequestStatusChange = "REQUEST_STATUS_CHANGED"
)

// ActorSystem identifies engine-originated events (as opposed to a user id).
const ActorSystem = "system"

// Event is an append-only compliance record. Writers never read it back.
type Event struct {
	ID        string
	TenantID  string
	RequestID string
	Type      string
	Actor     string
	Channel   string
	Payload   map[string]any
	CreatedAt time.Time
}

// Sink records audit events. Implementations must tolerate being called
// fire-and-forget; the reminder outcome never depends on the sink.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// PGSink appends events to the audit_events table.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) Record(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO audit_events (id, tenant_id, request_id, event_type, actor, channel, payload)
        VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
    `, ev.ID, ev.TenantID, ev.RequestID, ev.Type, ev.Actor, ev.Channel, string(payload))
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// LogSink writes events to the application log. Used in tests and when no
// database-backed sink is wanted.
type LogSink struct {
	Log *logrus.Logger
}

func (s *LogSink) Record(_ context.Context, ev Event) error {
	s.Log.WithFields(logrus.Fields{
		"tenant_id":  ev.TenantID,
		"request_id": ev.RequestID,
		"event_type": ev.Type,
		"actor":      ev.Actor,
		"channel":    ev.Channel,
	}).Info("audit event")
	return nil
}
