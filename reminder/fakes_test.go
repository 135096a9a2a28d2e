package reminder

import (
	"context"
	"sync"
	"time"

	"lexflow/audit"
	"lexflow/signature"
	"lexflow/tenant"

	"github.com/sirupsen/logrus"
)

// In-memory fakes implementing the engine's collaborator interfaces, mirroring
// the conditional-update semantics of the Postgres store.

type fakeQueue struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{entries: make(map[string]*Entry)}
}

func (q *fakeQueue) Insert(_ context.Context, e Entry) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.entries {
		if existing.Status == StatusPending &&
			existing.RequestID == e.RequestID &&
			existing.Channel == e.Channel &&
			existing.ScheduledAt.Equal(e.ScheduledAt) {
			return false, nil
		}
	}
	e.Status = StatusPending
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	q.entries[e.ID] = &e
	return true, nil
}

func (q *fakeQueue) ClaimDue(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	claimed := make([]Entry, 0)
	for _, e := range q.entries {
		if len(claimed) >= limit {
			break
		}
		if e.Status == StatusPending && !e.ScheduledAt.After(now) {
			e.Status = StatusInProgress
			at := now
			e.ClaimedAt = &at
			e.UpdatedAt = now
			claimed = append(claimed, *e)
		}
	}
	return claimed, nil
}

func (q *fakeQueue) ReleaseStaleClaims(_ context.Context, claimedBefore time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, e := range q.entries {
		if e.Status == StatusInProgress && e.ClaimedAt != nil && e.ClaimedAt.Before(claimedBefore) {
			e.Status = StatusPending
			e.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok || e.Status != StatusInProgress {
		return ErrEntryNotClaimed
	}
	e.Status = StatusSent
	sentAt := at
	e.SentAt = &sentAt
	e.ErrorMessage = ""
	e.UpdatedAt = at
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok || e.Status != StatusInProgress {
		return ErrEntryNotClaimed
	}
	e.Status = StatusFailed
	e.ErrorMessage = message
	e.UpdatedAt = time.Now()
	return nil
}

func (q *fakeQueue) CancelClaimed(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok || e.Status != StatusInProgress {
		return ErrEntryNotClaimed
	}
	e.Status = StatusCancelled
	e.UpdatedAt = time.Now()
	return nil
}

func (q *fakeQueue) CancelPending(_ context.Context, tenantID, requestID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, e := range q.entries {
		if e.Status == StatusPending && e.TenantID == tenantID && e.RequestID == requestID {
			e.Status = StatusCancelled
			n++
		}
	}
	return n, nil
}

func (q *fakeQueue) RetryFailedSince(_ context.Context, failedAfter time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, e := range q.entries {
		if e.Status != StatusFailed || e.UpdatedAt.Before(failedAfter) {
			continue
		}
		occupied := false
		for _, p := range q.entries {
			if p.Status == StatusPending && p.RequestID == e.RequestID &&
				p.Channel == e.Channel && p.ScheduledAt.Equal(e.ScheduledAt) {
				occupied = true
				break
			}
		}
		if occupied {
			continue
		}
		e.Status = StatusPending
		e.ErrorMessage = ""
		e.ClaimedAt = nil
		n++
	}
	return n, nil
}

func (q *fakeQueue) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for id, e := range q.entries {
		if e.ScheduledAt.Before(cutoff) {
			delete(q.entries, id)
			n++
		}
	}
	return n, nil
}

func (q *fakeQueue) ListPending(_ context.Context, tenantID, requestID string) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := make([]Entry, 0)
	for _, e := range q.entries {
		if e.Status == StatusPending && e.TenantID == tenantID && e.RequestID == requestID {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

func (q *fakeQueue) Stats(_ context.Context, tenantID string) (Statistics, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var stats Statistics
	for _, e := range q.entries {
		if e.TenantID != tenantID {
			continue
		}
		switch e.Status {
		case StatusPending:
			stats.Pending++
		case StatusInProgress:
			stats.InProgress++
		case StatusSent:
			stats.Sent++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (q *fakeQueue) byStatus(status EntryStatus) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := make([]Entry, 0)
	for _, e := range q.entries {
		if e.Status == status {
			entries = append(entries, *e)
		}
	}
	return entries
}

func (q *fakeQueue) get(id string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[string]*signature.Request // key tenantID + "/" + requestID
}

func newFakeRequestStore(reqs ...signature.Request) *fakeRequestStore {
	s := &fakeRequestStore{requests: make(map[string]*signature.Request)}
	for i := range reqs {
		r := reqs[i]
		s.requests[r.TenantID+"/"+r.ID] = &r
	}
	return s
}

func (s *fakeRequestStore) GetForTenant(_ context.Context, tenantID, requestID string) (signature.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[tenantID+"/"+requestID]
	if !ok {
		return signature.Request{}, signature.ErrRequestNotFound
	}
	return *r, nil
}

func (s *fakeRequestStore) MarkReminderSent(_ context.Context, tenantID, requestID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[tenantID+"/"+requestID]
	if !ok {
		return signature.ErrRequestNotFound
	}
	sentAt := at
	r.LastReminderSentAt = &sentAt
	r.ReminderCount++
	return nil
}

func (s *fakeRequestStore) reminderCount(tenantID, requestID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requests[tenantID+"/"+requestID]; ok {
		return r.ReminderCount
	}
	return -1
}

type fakePrefStore struct {
	prefs map[string]tenant.Preferences
}

func (s *fakePrefStore) Get(_ context.Context, tenantID string) (tenant.Preferences, error) {
	p, ok := s.prefs[tenantID]
	if !ok {
		return tenant.Preferences{}, tenant.ErrPreferencesNotFound
	}
	return p, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *fakeSink) Record(_ context.Context, ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink) recorded() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

type emailCall struct {
	To      string
	Subject string
	Body    string
}

type fakeEmailSender struct {
	mu    sync.Mutex
	err   error
	calls []emailCall
}

func (s *fakeEmailSender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, emailCall{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (s *fakeEmailSender) sent() []emailCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emailCall(nil), s.calls...)
}

type textCall struct {
	TenantID string
	To       string
	Text     string
}

type fakeTextSender struct {
	mu    sync.Mutex
	err   error
	calls []textCall
}

func (s *fakeTextSender) Send(_ context.Context, tenantID, to, text string) (TextResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return TextResult{ProviderStatus: "rejected"}, s.err
	}
	s.calls = append(s.calls, textCall{TenantID: tenantID, To: to, Text: text})
	return TextResult{ProviderStatus: "queued"}, nil
}

func (s *fakeTextSender) sent() []textCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]textCall(nil), s.calls...)
}

// testEnv bundles a fully wired engine over fakes with a controllable clock.
type testEnv struct {
	svc      *Service
	queue    *fakeQueue
	requests *fakeRequestStore
	prefs    *fakePrefStore
	sink     *fakeSink
	email    *fakeEmailSender
	sms      *fakeTextSender
	whatsapp *fakeTextSender
	now      time.Time
}

func newTestEnv(reqs []signature.Request, prefs map[string]tenant.Preferences) *testEnv {
	env := &testEnv{
		queue:    newFakeQueue(),
		requests: newFakeRequestStore(reqs...),
		prefs:    &fakePrefStore{prefs: prefs},
		sink:     &fakeSink{},
		email:    &fakeEmailSender{},
		sms:      &fakeTextSender{},
		whatsapp: &fakeTextSender{},
		now:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	dispatcher := NewDispatcher(env.email, env.sms, env.whatsapp, time.Second)
	dispatcher.now = func() time.Time { return env.now }

	env.svc = NewService(env.queue, env.requests, env.prefs, dispatcher, env.sink, log, Config{
		SweepWorkers:   4,
		SweepBatchSize: 100,
	})
	env.svc.now = func() time.Time { return env.now }
	return env
}
