package reminder

import (
	"context"
	"errors"
	"fmt"

	"lexflow/audit"
	"lexflow/tenant"

	"github.com/sirupsen/logrus"
)

// ErrRequestNotPending is returned by immediate-send when the request already
// left the PENDING state.
var ErrRequestNotPending = errors.New("reminder: request is not pending")

// ChannelOutcome is the per-channel result of an immediate send.
type ChannelOutcome struct {
	Channel Channel `json:"channel"`
	Sent    bool    `json:"sent"`
	Error   string  `json:"error,omitempty"`
}

// ImmediateResult reports an immediate send across all request-enabled
// channels. The operation as a whole succeeds even if individual channels fail.
type ImmediateResult struct {
	Outcomes []ChannelOutcome `json:"outcomes"`
	AnySent  bool             `json:"any_sent"`
}

// SendImmediateReminder synchronously sends a reminder on every channel the
// request enables, bypassing the queue. It fails outright only when the
// request does not exist under the tenant or is not pending. Request counters
// are bumped once on any success, not once per channel, and a single audit
// event captures which channels succeeded.
func (s *Service) SendImmediateReminder(ctx context.Context, tenantID, requestID, actorID string) (ImmediateResult, error) {
	req, err := s.requests.GetForTenant(ctx, tenantID, requestID)
	if err != nil {
		return ImmediateResult{}, err
	}
	if req.Status.Terminal() {
		return ImmediateResult{}, fmt.Errorf("%w (status %s)", ErrRequestNotPending, req.Status)
	}

	prefs, err := s.prefs.Get(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, tenant.ErrPreferencesNotFound) {
			return ImmediateResult{}, fmt.Errorf("reminder: resolve preferences: %w", err)
		}
		// No preferences row: defaults apply, phone channels fail their
		// provisioning check per channel below.
		s.log.WithField("tenant_id", tenantID).Warn("immediate send with no tenant preferences")
	}

	result := ImmediateResult{}
	succeeded := make([]string, 0, len(AllChannels))
	for _, ch := range requestChannels(req) {
		outcome := ChannelOutcome{Channel: ch}
		if err := s.dispatcher.Dispatch(ctx, req, prefs, ch); err != nil {
			outcome.Error = err.Error()
		} else {
			outcome.Sent = true
			succeeded = append(succeeded, string(ch))
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	result.AnySent = len(succeeded) > 0

	if result.AnySent {
		sentAt := s.now()
		if err := s.requests.MarkReminderSent(ctx, tenantID, requestID, sentAt); err != nil {
			s.log.WithError(err).WithField("request_id", requestID).Error("update request reminder counters")
		}
		actor := actorID
		if actor == "" {
			actor = audit.ActorSystem
		}
		if err := s.sink.Record(ctx, audit.Event{
			TenantID:  tenantID,
			RequestID: requestID,
			Type:      audit.EventReminderSent,
			Actor:     actor,
			Payload: map[string]any{
				"channels": succeeded,
				"trigger":  "immediate",
			},
		}); err != nil {
			s.log.WithError(err).Warn("audit record failed for immediate reminder")
		}
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"request_id": requestID,
		"attempted":  len(result.Outcomes),
		"succeeded":  len(succeeded),
	}).Info("immediate reminder processed")
	return result, nil
}
