package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEntryNotClaimed is returned when a terminal transition targets an entry
// that is not IN_PROGRESS, meaning another sweep already resolved it.
var ErrEntryNotClaimed = errors.New("reminder: entry not claimed")

// Store is the persisted reminder queue. Every state transition is an atomic
// conditional update keyed on the current status, so overlapping sweeps and
// concurrent scheduling calls cannot duplicate or double-dispatch work.
type Store interface {
	// Insert adds a PENDING entry. Returns false when an identical
	// (request, channel, scheduled_at) PENDING entry already exists.
	Insert(ctx context.Context, e Entry) (bool, error)
	// ClaimDue atomically moves up to limit due PENDING entries to
	// IN_PROGRESS and returns them.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	// ReleaseStaleClaims returns entries stuck IN_PROGRESS since before the
	// horizon to PENDING (crash recovery).
	ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string) error
	// CancelClaimed cancels a single IN_PROGRESS entry (stale request found
	// during a sweep).
	CancelClaimed(ctx context.Context, id string) error
	// CancelPending cancels every PENDING entry for a request and returns the
	// count. A request with no pending entries is a no-op.
	CancelPending(ctx context.Context, tenantID, requestID string) (int64, error)
	// RetryFailedSince resets FAILED entries that failed at or after the given
	// instant back to PENDING with the error cleared. An entry whose slot was
	// re-scheduled in the meantime stays FAILED.
	RetryFailedSince(ctx context.Context, failedAfter time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListPending(ctx context.Context, tenantID, requestID string) ([]Entry, error)
	Stats(ctx context.Context, tenantID string) (Statistics, error)
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const entryColumns = `id, tenant_id, request_id, channel, scheduled_at, status,
       sent_at, COALESCE(error_message, ''), claimed_at, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.TenantID, &e.RequestID, &e.Channel, &e.ScheduledAt, &e.Status,
		&e.SentAt, &e.ErrorMessage, &e.ClaimedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// Insert relies on the partial unique index over PENDING rows, so the
// check-then-insert race in concurrent scheduling collapses into a no-op.
func (s *PGStore) Insert(ctx context.Context, e Entry) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        INSERT INTO reminder_queue (id, tenant_id, request_id, channel, scheduled_at, status)
        VALUES ($1, $2, $3, $4, $5, 'PENDING')
        ON CONFLICT (request_id, channel, scheduled_at) WHERE status = 'PENDING' DO NOTHING
    `, e.ID, e.TenantID, e.RequestID, e.Channel, e.ScheduledAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("reminder: insert entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	query := fmt.Sprintf(`
        UPDATE reminder_queue
        SET status = 'IN_PROGRESS', claimed_at = now(), updated_at = now()
        WHERE id IN (
            SELECT id FROM reminder_queue
            WHERE status = 'PENDING' AND scheduled_at <= $1
            ORDER BY scheduled_at
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        RETURNING %s`, entryColumns)

	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("reminder: claim due entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("reminder: scan claimed entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminder: iterate claimed entries: %w", err)
	}
	return entries, nil
}

func (s *PGStore) ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE reminder_queue
        SET status = 'PENDING', claimed_at = NULL, updated_at = now()
        WHERE status = 'IN_PROGRESS' AND claimed_at < $1
    `, claimedBefore)
	if err != nil {
		return 0, fmt.Errorf("reminder: release stale claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE reminder_queue
        SET status = 'SENT', sent_at = $2, error_message = NULL, updated_at = now()
        WHERE id = $1 AND status = 'IN_PROGRESS'
    `, id, at)
	if err != nil {
		return fmt.Errorf("reminder: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotClaimed
	}
	return nil
}

func (s *PGStore) MarkFailed(ctx context.Context, id, message string) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE reminder_queue
        SET status = 'FAILED', error_message = $2, updated_at = now()
        WHERE id = $1 AND status = 'IN_PROGRESS'
    `, id, message)
	if err != nil {
		return fmt.Errorf("reminder: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotClaimed
	}
	return nil
}

func (s *PGStore) CancelClaimed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE reminder_queue
        SET status = 'CANCELLED', updated_at = now()
        WHERE id = $1 AND status = 'IN_PROGRESS'
    `, id)
	if err != nil {
		return fmt.Errorf("reminder: cancel claimed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotClaimed
	}
	return nil
}

func (s *PGStore) CancelPending(ctx context.Context, tenantID, requestID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE reminder_queue
        SET status = 'CANCELLED', updated_at = now()
        WHERE tenant_id = $1 AND request_id = $2 AND status = 'PENDING'
    `, tenantID, requestID)
	if err != nil {
		return 0, fmt.Errorf("reminder: cancel pending: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) RetryFailedSince(ctx context.Context, failedAfter time.Time) (int64, error) {
	// The NOT EXISTS guard keeps the retry from colliding with the partial
	// unique index when the same slot was re-scheduled after the failure.
	tag, err := s.pool.Exec(ctx, `
        UPDATE reminder_queue q
        SET status = 'PENDING', error_message = NULL, claimed_at = NULL, updated_at = now()
        WHERE q.status = 'FAILED' AND q.updated_at >= $1
          AND NOT EXISTS (
              SELECT 1 FROM reminder_queue p
              WHERE p.status = 'PENDING'
                AND p.request_id = q.request_id
                AND p.channel = q.channel
                AND p.scheduled_at = q.scheduled_at
          )
    `, failedAfter)
	if err != nil {
		return 0, fmt.Errorf("reminder: retry failed entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reminder_queue WHERE scheduled_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reminder: delete old entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) ListPending(ctx context.Context, tenantID, requestID string) ([]Entry, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reminder_queue
        WHERE tenant_id = $1 AND request_id = $2 AND status = 'PENDING'
        ORDER BY scheduled_at`, entryColumns)

	rows, err := s.pool.Query(ctx, query, tenantID, requestID)
	if err != nil {
		return nil, fmt.Errorf("reminder: list pending: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, 8)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("reminder: scan pending entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminder: iterate pending entries: %w", err)
	}
	return entries, nil
}

func (s *PGStore) Stats(ctx context.Context, tenantID string) (Statistics, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM reminder_queue WHERE tenant_id = $1 GROUP BY status`,
		tenantID)
	if err != nil {
		return Statistics{}, fmt.Errorf("reminder: stats: %w", err)
	}
	defer rows.Close()

	var stats Statistics
	for rows.Next() {
		var (
			status EntryStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Statistics{}, fmt.Errorf("reminder: scan stats: %w", err)
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusInProgress:
			stats.InProgress = count
		case StatusSent:
			stats.Sent = count
		case StatusFailed:
			stats.Failed = count
		case StatusCancelled:
			stats.Cancelled = count
		}
	}
	if err := rows.Err(); err != nil {
		return Statistics{}, fmt.Errorf("reminder: iterate stats: %w", err)
	}
	return stats, nil
}
