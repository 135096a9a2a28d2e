package signature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRequestNotFound is returned when no request row exists for the provided
// identifier under the provided tenant.
var ErrRequestNotFound = errors.New("signature: request not found")

// Store defines the request reads and the single write the reminder engine
// performs against signature requests.
type Store interface {
	GetForTenant(ctx context.Context, tenantID, requestID string) (Request, error)
	MarkReminderSent(ctx context.Context, tenantID, requestID string, at time.Time) error
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const requestColumns = `id, tenant_id, signer_name, signer_email, COALESCE(signer_phone, ''), document_title,
       status, expires_at, remind_by_email, remind_by_sms, remind_by_whatsapp,
       last_reminder_sent_at, reminder_count, created_at, updated_at`

// GetForTenant fetches a request scoped to the tenant. A row that exists under
// a different tenant is reported as not found.
func (s *PGStore) GetForTenant(ctx context.Context, tenantID, requestID string) (Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM signature_requests WHERE tenant_id = $1 AND id = $2`, requestColumns)

	var req Request
	err := s.pool.QueryRow(ctx, query, tenantID, requestID).Scan(
		&req.ID, &req.TenantID, &req.SignerName, &req.SignerEmail, &req.SignerPhone, &req.DocumentTitle,
		&req.Status, &req.ExpiresAt, &req.RemindByEmail, &req.RemindBySMS, &req.RemindByWhatsApp,
		&req.LastReminderSentAt, &req.ReminderCount, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, fmt.Errorf("signature: get request: %w", err)
	}
	return req, nil
}

// MarkReminderSent bumps the reminder counter and timestamp in a single
// statement so concurrent sends never lose an increment.
func (s *PGStore) MarkReminderSent(ctx context.Context, tenantID, requestID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE signature_requests
        SET last_reminder_sent_at = $3,
            reminder_count = reminder_count + 1,
            updated_at = now()
        WHERE tenant_id = $1 AND id = $2
    `, tenantID, requestID, at)
	if err != nil {
		return fmt.Errorf("signature: mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}
