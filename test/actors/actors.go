package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"lexflow/reminder"
	"lexflow/signature"
)

// FlakyEmail is an in-memory email transport that fails a configurable
// fraction of sends, so the stress run exercises the FAILED and retry paths.
type FlakyEmail struct {
	FailEveryN int
}

func (f *FlakyEmail) Send(_ context.Context, _, _, _ string) error {
	if f.FailEveryN > 0 && rand.Intn(f.FailEveryN) == 0 {
		return errors.New("simulated email provider outage")
	}
	return nil
}

// FlakyText is the SMS/WhatsApp counterpart of FlakyEmail.
type FlakyText struct {
	FailEveryN int
}

func (f *FlakyText) Send(_ context.Context, _, _, _ string) (reminder.TextResult, error) {
	if f.FailEveryN > 0 && rand.Intn(f.FailEveryN) == 0 {
		return reminder.TextResult{ProviderStatus: "rejected"}, errors.New("simulated text provider outage")
	}
	return reminder.TextResult{ProviderStatus: "queued"}, nil
}

func sleepJitter(base, spread int) {
	time.Sleep(time.Duration(base+rand.Intn(spread)) * time.Millisecond)
}

// Scheduler repeatedly re-reads random requests and asks the engine to
// schedule their reminders, racing against other schedulers, resolvers, and
// chaos-terminated connections. Transient errors are expected; only context
// cancellation stops the actor.
func Scheduler(ctx context.Context, svc *reminder.Service, store signature.Store, tenantID string, requestIDs []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id := requestIDs[rand.Intn(len(requestIDs))]
		req, err := store.GetForTenant(ctx, tenantID, id)
		if err == nil && !req.Status.Terminal() {
			_, _ = svc.ScheduleReminders(ctx, req)
		}
		sleepJitter(10, 30)
	}
}

// Sweeper drives overlapping sweep passes.
func Sweeper(ctx context.Context, svc *reminder.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.ProcessPendingReminders(ctx)
		sleepJitter(50, 150)
	}
}

// Resolver flips random requests into terminal states, which must cancel
// their queued reminders. Losing the race to another resolver is expected.
func Resolver(ctx context.Context, svc *signature.Service, tenantID string, requestIDs []string, stop <-chan struct{}) error {
	targets := []signature.Status{signature.StatusSigned, signature.StatusDeclined, signature.StatusExpired}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		// Losing the race to another resolver, or hitting a chaos-killed
		// connection, is expected under contention.
		_ = svc.Transition(ctx, signature.TransitionParams{
			TenantID:  tenantID,
			RequestID: requestIDs[rand.Intn(len(requestIDs))],
			Next:      targets[rand.Intn(len(targets))],
			ActorID:   "stress-resolver",
		})
		sleepJitter(200, 400)
	}
}

// ImmediateSender fires manual reminders at random requests.
func ImmediateSender(ctx context.Context, svc *reminder.Service, tenantID string, requestIDs []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		actor := fmt.Sprintf("stress-user-%d", rand.Intn(4))
		_, _ = svc.SendImmediateReminder(ctx, tenantID, requestIDs[rand.Intn(len(requestIDs))], actor)
		sleepJitter(100, 200)
	}
}

// Retrier periodically requeues recent failures.
func Retrier(ctx context.Context, svc *reminder.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.RetryFailedReminders(ctx)
		sleepJitter(300, 300)
	}
}

// Janitor runs retention cleanup while everything else is in flight.
func Janitor(ctx context.Context, svc *reminder.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.CleanupOldReminders(ctx, 90)
		sleepJitter(1000, 1000)
	}
}
