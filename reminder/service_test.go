package reminder

import (
	"context"
	"testing"
	"time"

	"lexflow/signature"
	"lexflow/tenant"
)

const (
	testTenant  = "tenant-1"
	testRequest = "request-1"
)

func pendingRequest(expiresAt *time.Time) signature.Request {
	return signature.Request{
		ID:               testRequest,
		TenantID:         testTenant,
		SignerName:       "Jane Doe",
		SignerEmail:      "jane@example.com",
		SignerPhone:      "+15550100",
		DocumentTitle:    "Engagement Letter",
		Status:           signature.StatusPending,
		ExpiresAt:        expiresAt,
		RemindByEmail:    true,
		RemindBySMS:      true,
		RemindByWhatsApp: false,
	}
}

func fullPrefs() tenant.Preferences {
	return tenant.Preferences{
		TenantID:            testTenant,
		OrganizationName:    "Smith & Partners",
		EmailEnabled:        true,
		SMSEnabled:          true,
		WhatsAppEnabled:     true,
		SMSProvisioned:      true,
		WhatsAppProvisioned: true,
		ReminderOffsetsDays: []int{7, 3, 1},
	}
}

func TestScheduleReminders_CreatesEntryPerOffsetAndChannel(t *testing.T) {
	expiry := time.Date(2025, 6, 15, 17, 0, 0, 0, time.UTC)
	req := pendingRequest(&expiry)
	env := newTestEnv([]signature.Request{req}, map[string]tenant.Preferences{testTenant: fullPrefs()})

	scheduled, err := env.svc.ScheduleReminders(context.Background(), req)
	if err != nil {
		t.Fatalf("schedule: unexpected error: %v", err)
	}
	// Offsets [7,3,1] x channels {EMAIL, SMS}; WhatsApp is off on the request.
	if scheduled != 6 {
		t.Fatalf("expected 6 entries scheduled, got %d", scheduled)
	}

	pending := env.queue.byStatus(StatusPending)
	wantInstants := map[time.Time]int{
		expiry.AddDate(0, 0, -7): 0,
		expiry.AddDate(0, 0, -3): 0,
		expiry.AddDate(0, 0, -1): 0,
	}
	for _, e := range pending {
		if !e.ScheduledAt.After(env.now) {
			t.Errorf("entry %s scheduled in the past: %v", e.ID, e.ScheduledAt)
		}
		if e.Channel == ChannelWhatsApp {
			t.Errorf("whatsapp entry scheduled despite request toggle off")
		}
		if _, ok := wantInstants[e.ScheduledAt]; !ok {
			t.Errorf("unexpected scheduled instant %v", e.ScheduledAt)
		}
		wantInstants[e.ScheduledAt]++
	}
	for instant, count := range wantInstants {
		if count != 2 {
			t.Errorf("instant %v: expected 2 channels, got %d", instant, count)
		}
	}
}

func TestScheduleReminders_Idempotent(t *testing.T) {
	expiry := time.Date(2025, 6, 15, 17, 0, 0, 0, time.UTC)
	req := pendingRequest(&expiry)
	env := newTestEnv([]signature.Request{req}, map[string]tenant.Preferences{testTenant: fullPrefs()})

	ctx := context.Background()
	if _, err := env.svc.ScheduleReminders(ctx, req); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	again, err := env.svc.ScheduleReminders(ctx, req)
	if err != nil {
		t.Fatalf("second schedule: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected rescheduling to be a no-op, created %d entries", again)
	}
	if got := len(env.queue.byStatus(StatusPending)); got != 6 {
		t.Fatalf("expected 6 pending entries after double scheduling, got %d", got)
	}
}

func TestScheduleReminders_PastOffsetsOmitted(t *testing.T) {
	// Expiry two days out: the 7d and 3d offsets land in the past.
	expiry := env0Now().AddDate(0, 0, 2)
	req := pendingRequest(&expiry)
	env := newTestEnv([]signature.Request{req}, map[string]tenant.Preferences{testTenant: fullPrefs()})

	scheduled, err := env.svc.ScheduleReminders(context.Background(), req)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if scheduled != 2 { // one instant x {EMAIL, SMS}
		t.Fatalf("expected 2 entries, got %d", scheduled)
	}
	for _, e := range env.queue.byStatus(StatusPending) {
		if !e.ScheduledAt.Equal(expiry.AddDate(0, 0, -1)) {
			t.Errorf("expected only the 1-day offset, got instant %v", e.ScheduledAt)
		}
	}
}

func env0Now() time.Time {
	return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
}

func TestScheduleReminders_MissingExpirySkipped(t *testing.T) {
	req := pendingRequest(nil)
	env := newTestEnv([]signature.Request{req}, map[string]tenant.Preferences{testTenant: fullPrefs()})

	scheduled, err := env.svc.ScheduleReminders(context.Background(), req)
	if err != nil {
		t.Fatalf("missing expiry must not be a hard failure: %v", err)
	}
	if scheduled != 0 {
		t.Fatalf("expected no entries without an expiry, got %d", scheduled)
	}
}

func TestScheduleReminders_NoPhoneSkipsTextChannels(t *testing.T) {
	expiry := time.Date(2025, 6, 15, 17, 0, 0, 0, time.UTC)
	req := pendingRequest(&expiry)
	req.SignerPhone = ""
	req.RemindByWhatsApp = true
	env := newTestEnv([]signature.Request{req}, map[string]tenant.Preferences{testTenant: fullPrefs()})

	if _, err := env.svc.ScheduleReminders(context.Background(), req); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for _, e := range env.queue.byStatus(StatusPending) {
		if e.Channel != ChannelEmail {
			t.Errorf("expected only email entries without a phone number, got %s", e.Channel)
		}
	}
}

func TestScheduleReminders_TenantDisabledChannel(t *testing.T) {
	expiry := time.Date(2025, 6, 15, 17, 0, 0, 0, time.UTC)
	req := pendingRequest(&expiry)
	prefs := fullPrefs()
	prefs.SMSEnabled = false
	env := newTestEnv([]signature.Request{req}, map[string]tenant.Preferences{testTenant: prefs})

	if _, err := env.svc.ScheduleReminders(context.Background(), req); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for _, e := range env.queue.byStatus(StatusPending) {
		if e.Channel == ChannelSMS {
			t.Errorf("sms entry scheduled despite tenant toggle off")
		}
	}
}

func TestCancelReminders_OnlyPendingForRequest(t *testing.T) {
	expiry := time.Date(2025, 6, 15, 17, 0, 0, 0, time.UTC)
	req := pendingRequest(&expiry)
	other := pendingRequest(&expiry)
	other.ID = "request-2"
	env := newTestEnv([]signature.Request{req, other}, map[string]tenant.Preferences{testTenant: fullPrefs()})

	ctx := context.Background()
	if _, err := env.svc.ScheduleReminders(ctx, req); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := env.svc.ScheduleReminders(ctx, other); err != nil {
		t.Fatalf("schedule other: %v", err)
	}

	cancelled, err := env.svc.CancelReminders(ctx, testTenant, req.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled != 6 {
		t.Fatalf("expected 6 cancelled, got %d", cancelled)
	}

	for _, e := range env.queue.byStatus(StatusPending) {
		if e.RequestID != other.ID {
			t.Errorf("pending entry for cancelled request %s survived", e.RequestID)
		}
	}

	// Idempotent: a second cancel is a no-op, not an error.
	cancelled, err = env.svc.CancelReminders(ctx, testTenant, req.ID)
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if cancelled != 0 {
		t.Fatalf("expected repeat cancel to be a no-op, got %d", cancelled)
	}
}

func TestRetryFailedReminders_RespectsLookbackWindow(t *testing.T) {
	env := newTestEnv(nil, nil)
	ctx := context.Background()

	seed := func(id string, failedAt time.Time) {
		env.queue.mu.Lock()
		env.queue.entries[id] = &Entry{
			ID:           id,
			TenantID:     testTenant,
			RequestID:    testRequest,
			Channel:      ChannelEmail,
			ScheduledAt:  failedAt.Add(-time.Hour),
			Status:       StatusFailed,
			ErrorMessage: "provider returned 502",
			UpdatedAt:    failedAt,
		}
		env.queue.mu.Unlock()
	}
	seed("recent", env.now.Add(-time.Hour))
	seed("ancient", env.now.Add(-48*time.Hour))

	retried, err := env.svc.RetryFailedReminders(ctx)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried entry, got %d", retried)
	}

	recent, _ := env.queue.get("recent")
	if recent.Status != StatusPending || recent.ErrorMessage != "" {
		t.Errorf("recent failure not reset: status=%s error=%q", recent.Status, recent.ErrorMessage)
	}
	ancient, _ := env.queue.get("ancient")
	if ancient.Status != StatusFailed {
		t.Errorf("failure outside the lookback window must stay FAILED, got %s", ancient.Status)
	}
}

func TestCleanupOldReminders(t *testing.T) {
	env := newTestEnv(nil, nil)
	ctx := context.Background()

	env.queue.mu.Lock()
	env.queue.entries["old"] = &Entry{
		ID: "old", TenantID: testTenant, RequestID: testRequest,
		Channel: ChannelEmail, ScheduledAt: env.now.AddDate(0, 0, -120), Status: StatusSent,
	}
	env.queue.entries["fresh"] = &Entry{
		ID: "fresh", TenantID: testTenant, RequestID: testRequest,
		Channel: ChannelEmail, ScheduledAt: env.now.AddDate(0, 0, -10), Status: StatusSent,
	}
	env.queue.mu.Unlock()

	deleted, err := env.svc.CleanupOldReminders(ctx, 90)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if _, ok := env.queue.get("fresh"); !ok {
		t.Error("fresh entry deleted by cleanup")
	}
	if _, ok := env.queue.get("old"); ok {
		t.Error("old entry survived cleanup")
	}

	if _, err := env.svc.CleanupOldReminders(ctx, 0); err == nil {
		t.Error("expected error for non-positive max age")
	}
}
