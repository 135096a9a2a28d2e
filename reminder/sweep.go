package reminder

import (
	"context"
	"errors"
	"sync/atomic"

	"lexflow/audit"
	"lexflow/signature"
	"lexflow/tenant"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SweepResult summarises one pass of the sweep processor.
type SweepResult struct {
	Released  int64
	Claimed   int
	Sent      int64
	Failed    int64
	Cancelled int64
}

type entryOutcome int

const (
	outcomeSent entryOutcome = iota
	outcomeFailed
	outcomeCancelled
)

// ProcessPendingReminders is one sweep: claim all due entries atomically, then
// process them under a bounded worker pool. Each entry's outcome is isolated;
// a failing or slow entry never affects the rest of the batch.
func (s *Service) ProcessPendingReminders(ctx context.Context) (SweepResult, error) {
	now := s.now()
	var result SweepResult

	released, err := s.queue.ReleaseStaleClaims(ctx, now.Add(-s.cfg.StaleClaimHorizon))
	if err != nil {
		// Stale-claim recovery is best effort; the sweep itself can proceed.
		s.log.WithError(err).Warn("release stale claims")
	} else if released > 0 {
		s.log.WithField("released", released).Warn("stale in-progress reminders released")
	}
	result.Released = released

	entries, err := s.queue.ClaimDue(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return result, err
	}
	result.Claimed = len(entries)
	if len(entries) == 0 {
		return result, nil
	}

	var sent, failed, cancelled atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SweepWorkers)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			switch s.processEntry(gctx, entry) {
			case outcomeSent:
				sent.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeCancelled:
				cancelled.Add(1)
			}
			return nil
		})
	}
	// Workers never return errors; Wait only bounds the pool.
	_ = g.Wait()

	result.Sent = sent.Load()
	result.Failed = failed.Load()
	result.Cancelled = cancelled.Load()

	s.log.WithFields(logrus.Fields{
		"claimed":   result.Claimed,
		"sent":      result.Sent,
		"failed":    result.Failed,
		"cancelled": result.Cancelled,
	}).Info("reminder sweep complete")
	return result, nil
}

// processEntry resolves one claimed entry to SENT, FAILED, or CANCELLED. All
// errors are recorded on the entry; nothing propagates out of the sweep loop.
func (s *Service) processEntry(ctx context.Context, e Entry) entryOutcome {
	log := s.log.WithFields(logrus.Fields{
		"entry_id":   e.ID,
		"tenant_id":  e.TenantID,
		"request_id": e.RequestID,
		"channel":    e.Channel,
	})

	// Re-fetch scoped to the entry's tenant: an entry whose request is missing
	// under the same tenant is a data-integrity fault, never a cross-tenant read.
	req, err := s.requests.GetForTenant(ctx, e.TenantID, e.RequestID)
	if err != nil {
		if errors.Is(err, signature.ErrRequestNotFound) {
			log.Error("signature request missing for reminder entry")
			s.failEntry(ctx, log, e, "signature request not found for tenant")
			return outcomeFailed
		}
		s.failEntry(ctx, log, e, "load signature request: "+err.Error())
		return outcomeFailed
	}

	if req.Status.Terminal() {
		// Expected race, not a fault: the request resolved while queued.
		if err := s.queue.CancelClaimed(ctx, e.ID); err != nil && !errors.Is(err, ErrEntryNotClaimed) {
			log.WithError(err).Error("cancel entry for resolved request")
		}
		log.WithField("request_status", req.Status).Debug("entry cancelled: request no longer pending")
		return outcomeCancelled
	}

	prefs, err := s.prefs.Get(ctx, e.TenantID)
	if err != nil && !errors.Is(err, tenant.ErrPreferencesNotFound) {
		s.failEntry(ctx, log, e, "resolve tenant preferences: "+err.Error())
		return outcomeFailed
	}

	if err := s.dispatcher.Dispatch(ctx, req, prefs, e.Channel); err != nil {
		log.WithError(err).Warn("reminder dispatch failed")
		s.failEntry(ctx, log, e, err.Error())
		return outcomeFailed
	}

	sentAt := s.now()
	if err := s.queue.MarkSent(ctx, e.ID, sentAt); err != nil {
		// The message went out; worst case another sweep re-sends, which is
		// within the at-least-once contract.
		log.WithError(err).Error("mark entry sent")
		return outcomeFailed
	}
	if err := s.requests.MarkReminderSent(ctx, e.TenantID, e.RequestID, sentAt); err != nil {
		log.WithError(err).Error("update request reminder counters")
	}
	if err := s.sink.Record(ctx, audit.Event{
		TenantID:  e.TenantID,
		RequestID: e.RequestID,
		Type:      audit.EventReminderSent,
		Actor:     audit.ActorSystem,
		Channel:   string(e.Channel),
		Payload: map[string]any{
			"entry_id":     e.ID,
			"scheduled_at": e.ScheduledAt,
			"trigger":      "scheduled",
		},
	}); err != nil {
		log.WithError(err).Warn("audit record failed for sent reminder")
	}

	log.Info("reminder sent")
	return outcomeSent
}

func (s *Service) failEntry(ctx context.Context, log *logrus.Entry, e Entry, message string) {
	if err := s.queue.MarkFailed(ctx, e.ID, message); err != nil && !errors.Is(err, ErrEntryNotClaimed) {
		log.WithError(err).Error("mark entry failed")
	}
}
