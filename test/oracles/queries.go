package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against a live database while the
// stress actors hammer the reminder engine. Each query must return zero rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_pending_entry",
			SQL: `SELECT request_id, channel, scheduled_at, COUNT(*) FROM reminder_queue
                  WHERE status = 'PENDING'
                  GROUP BY request_id, channel, scheduled_at HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_sent_requires_sent_at",
			SQL:  `SELECT id FROM reminder_queue WHERE status = 'SENT' AND sent_at IS NULL`,
		},
		{
			Name: "O3_claimed_requires_claimed_at",
			SQL:  `SELECT id FROM reminder_queue WHERE status = 'IN_PROGRESS' AND claimed_at IS NULL`,
		},
		{
			Name: "O4_failed_requires_cause",
			SQL: `SELECT id FROM reminder_queue
                  WHERE status = 'FAILED' AND COALESCE(error_message, '') = ''`,
		},
		{
			Name: "O5_no_premature_send",
			SQL:  `SELECT id FROM reminder_queue WHERE status = 'SENT' AND sent_at < scheduled_at`,
		},
		{
			// Counter and audit writes land moments after the entry flips to
			// SENT, so both lag-sensitive oracles only look at settled entries.
			Name: "O6_counter_covers_sent_entries",
			SQL: `SELECT r.id, r.reminder_count, q.sent FROM signature_requests r
                  JOIN (SELECT request_id, COUNT(*) AS sent FROM reminder_queue
                        WHERE status = 'SENT' AND updated_at < now() - interval '30 seconds'
                        GROUP BY request_id) q ON q.request_id = r.id
                  WHERE r.reminder_count < q.sent`,
		},
		{
			Name: "O7_counter_never_negative",
			SQL:  `SELECT id FROM signature_requests WHERE reminder_count < 0`,
		},
		{
			Name: "O8_no_stuck_claims",
			SQL: `SELECT id FROM reminder_queue
                  WHERE status = 'IN_PROGRESS' AND claimed_at < now() - interval '5 minutes'`,
		},
		{
			Name: "O9_audit_per_sent_entry",
			SQL: `SELECT q.request_id FROM reminder_queue q
                  WHERE q.status = 'SENT' AND q.updated_at < now() - interval '30 seconds'
                  GROUP BY q.request_id
                  HAVING COUNT(*) > (SELECT COUNT(*) FROM audit_events a
                                     WHERE a.request_id = q.request_id
                                       AND a.event_type = 'REMINDER_SENT')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name when all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
