package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexflow/audit"
	"lexflow/signature"
	"lexflow/tenant"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Config tunes the engine. Zero values fall back to the defaults below.
type Config struct {
	SweepWorkers      int
	SweepBatchSize    int
	RetryLookback     time.Duration
	StaleClaimHorizon time.Duration
}

const (
	defaultSweepWorkers      = 8
	defaultSweepBatchSize    = 200
	defaultRetryLookback     = 24 * time.Hour
	defaultStaleClaimHorizon = 15 * time.Minute
)

// Service is the signature-reminder engine: idempotent scheduling, the sweep
// processor, cancellation, bounded retry, cleanup, and the immediate-send
// bypass. All collaborators are injected interfaces.
type Service struct {
	queue      Store
	requests   signature.Store
	prefs      tenant.PreferenceStore
	dispatcher *Dispatcher
	sink       audit.Sink
	log        *logrus.Logger
	cfg        Config
	now        func() time.Time
}

func NewService(
	queue Store,
	requests signature.Store,
	prefs tenant.PreferenceStore,
	dispatcher *Dispatcher,
	sink audit.Sink,
	log *logrus.Logger,
	cfg Config,
) *Service {
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = defaultSweepWorkers
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaultSweepBatchSize
	}
	if cfg.RetryLookback <= 0 {
		cfg.RetryLookback = defaultRetryLookback
	}
	if cfg.StaleClaimHorizon <= 0 {
		cfg.StaleClaimHorizon = defaultStaleClaimHorizon
	}
	return &Service{
		queue:      queue,
		requests:   requests,
		prefs:      prefs,
		dispatcher: dispatcher,
		sink:       sink,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
}

// ScheduleReminders computes future reminder instants for a pending request
// and inserts one queue entry per (channel, instant). Re-running it for the
// same request never creates duplicates. Configuration gaps (no expiry, no
// preferences, no eligible channels) are logged and skipped, never surfaced as
// failures.
func (s *Service) ScheduleReminders(ctx context.Context, req signature.Request) (int, error) {
	log := s.log.WithFields(logrus.Fields{
		"tenant_id":  req.TenantID,
		"request_id": req.ID,
	})

	if req.Status != signature.StatusPending {
		log.WithField("status", req.Status).Info("scheduling skipped: request not pending")
		return 0, nil
	}
	if req.ExpiresAt == nil {
		log.Warn("scheduling skipped: request has no expiry to anchor offsets to")
		return 0, nil
	}

	prefs, err := s.prefs.Get(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrPreferencesNotFound) {
			log.Warn("scheduling skipped: tenant has no reminder preferences")
			return 0, nil
		}
		return 0, fmt.Errorf("reminder: resolve preferences: %w", err)
	}

	channels := scheduledChannels(req, prefs)
	if len(channels) == 0 {
		log.Info("scheduling skipped: no enabled deliverable channels")
		return 0, nil
	}

	now := s.now()
	scheduled := 0
	for _, offsetDays := range prefs.Offsets() {
		instant := req.ExpiresAt.AddDate(0, 0, -offsetDays)
		if !instant.After(now) {
			log.WithField("offset_days", offsetDays).Debug("offset already in the past, skipped")
			continue
		}
		for _, ch := range channels {
			inserted, err := s.queue.Insert(ctx, Entry{
				ID:          uuid.NewString(),
				TenantID:    req.TenantID,
				RequestID:   req.ID,
				Channel:     ch,
				ScheduledAt: instant,
			})
			if err != nil {
				return scheduled, err
			}
			if inserted {
				scheduled++
			}
		}
	}

	log.WithField("scheduled", scheduled).Info("reminders scheduled")
	return scheduled, nil
}

// CancelReminders cancels every pending entry for a request. Idempotent.
func (s *Service) CancelReminders(ctx context.Context, tenantID, requestID string) (int64, error) {
	cancelled, err := s.queue.CancelPending(ctx, tenantID, requestID)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"request_id": requestID,
		"cancelled":  cancelled,
	}).Info("pending reminders cancelled")
	return cancelled, nil
}

// RetryFailedReminders resets entries that failed within the lookback window
// back to PENDING. Entries that failed earlier stay FAILED permanently.
func (s *Service) RetryFailedReminders(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.RetryLookback)
	retried, err := s.queue.RetryFailedSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if retried > 0 {
		s.log.WithField("retried", retried).Info("failed reminders re-queued")
	}
	return retried, nil
}

// CleanupOldReminders deletes entries scheduled before the age cutoff,
// regardless of status. Maintenance only; it never touches active scheduling.
func (s *Service) CleanupOldReminders(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, fmt.Errorf("reminder: max age must be positive, got %d", maxAgeDays)
	}
	cutoff := s.now().AddDate(0, 0, -maxAgeDays)
	deleted, err := s.queue.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.WithFields(logrus.Fields{
			"deleted":      deleted,
			"max_age_days": maxAgeDays,
		}).Info("old reminder entries deleted")
	}
	return deleted, nil
}

// PendingReminders lists a request's pending entries for introspection.
func (s *Service) PendingReminders(ctx context.Context, tenantID, requestID string) ([]Entry, error) {
	return s.queue.ListPending(ctx, tenantID, requestID)
}

// Statistics summarises a tenant's queue by status.
func (s *Service) Statistics(ctx context.Context, tenantID string) (Statistics, error) {
	return s.queue.Stats(ctx, tenantID)
}
