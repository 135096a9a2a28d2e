package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPreferencesNotFound is returned when a tenant has no preferences row.
var ErrPreferencesNotFound = errors.New("tenant: preferences not found")

// PreferenceStore is the read-only preference lookup the reminder engine uses.
type PreferenceStore interface {
	Get(ctx context.Context, tenantID string) (Preferences, error)
}

type PGPreferenceStore struct {
	pool *pgxpool.Pool
}

func NewPGPreferenceStore(pool *pgxpool.Pool) *PGPreferenceStore {
	return &PGPreferenceStore{pool: pool}
}

func (s *PGPreferenceStore) Get(ctx context.Context, tenantID string) (Preferences, error) {
	const query = `
        SELECT tenant_id, organization_name,
               email_enabled, sms_enabled, whatsapp_enabled,
               sms_provisioned, whatsapp_provisioned,
               reminder_offsets_days, templates
        FROM tenant_preferences
        WHERE tenant_id = $1
    `

	var (
		prefs        Preferences
		offsets      []int32
		templatesRaw []byte
	)
	err := s.pool.QueryRow(ctx, query, tenantID).Scan(
		&prefs.TenantID, &prefs.OrganizationName,
		&prefs.EmailEnabled, &prefs.SMSEnabled, &prefs.WhatsAppEnabled,
		&prefs.SMSProvisioned, &prefs.WhatsAppProvisioned,
		&offsets, &templatesRaw,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Preferences{}, ErrPreferencesNotFound
		}
		return Preferences{}, fmt.Errorf("tenant: get preferences: %w", err)
	}

	prefs.ReminderOffsetsDays = make([]int, 0, len(offsets))
	for _, d := range offsets {
		prefs.ReminderOffsetsDays = append(prefs.ReminderOffsetsDays, int(d))
	}

	if len(templatesRaw) > 0 {
		if err := json.Unmarshal(templatesRaw, &prefs.Templates); err != nil {
			return Preferences{}, fmt.Errorf("tenant: decode templates: %w", err)
		}
	}

	return prefs, nil
}
