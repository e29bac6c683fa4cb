package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/usagey/usagey-go/internal/domain"
	"github.com/usagey/usagey-go/internal/storage"
	"github.com/usagey/usagey-go/pkg/publishers"
	"github.com/usagey/usagey-go/pkg/usagey"
)

type scriptedTracker struct {
	errs  []error
	calls []string
}

func (s *scriptedTracker) TrackEvent(_ context.Context, eventType string, _ ...usagey.EventOption) (*usagey.TrackEventResponse, error) {
	s.calls = append(s.calls, eventType)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &usagey.TrackEventResponse{Success: true, EventID: "evt_" + eventType, Timestamp: "2024-01-01T00:00:00.000Z"}, nil
}

type memLedger map[string]string

func (m memLedger) Lookup(key string) (string, bool, error) {
	id, ok := m[key]
	return id, ok, nil
}

func (m memLedger) Mark(key, eventID string) error {
	m[key] = eventID
	return nil
}

type recordingPublisher struct {
	events []publishers.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	r.events = append(r.events, evt)
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func intPtr(v int) *int { return &v }

func rateLimited(retryAfter *int) error {
	err := usagey.Error{Kind: usagey.KindRateLimit, Code: usagey.CodeRateLimit, Message: "Rate limit exceeded", Status: 429, RetryAfter: retryAfter}
	return &err
}

func TestRunTracksLedgerAndPublishes(t *testing.T) {
	client := &scriptedTracker{}
	ledger := memLedger{"done": "evt_old"}
	pub := &recordingPublisher{}
	svc := NewService(client, ledger, pub, Options{Source: "nightly"})

	sum, err := svc.Run(context.Background(), []domain.BatchEvent{
		{Key: "done", EventType: "api_call"},
		{Key: "fresh", EventType: "storage_gb", Quantity: intPtr(4)},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 2 || sum.Tracked != 1 || sum.Skipped != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %#v", sum)
	}
	if len(client.calls) != 1 || client.calls[0] != "storage_gb" {
		t.Fatalf("calls = %v", client.calls)
	}
	if ledger["fresh"] != "evt_storage_gb" {
		t.Fatalf("ledger not updated: %v", ledger)
	}
	if len(pub.events) != 1 || pub.events[0].Source != "nightly" || pub.events[0].Receipt.Quantity != 4 {
		t.Fatalf("published = %#v", pub.events)
	}
}

func TestRunRetriesRateLimitWithBackoff(t *testing.T) {
	client := &scriptedTracker{errs: []error{rateLimited(nil), rateLimited(intPtr(7)), rateLimited(nil), nil}}
	sleeper := &sleepRecorder{}
	svc := NewService(client, nil, nil, Options{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, Sleep: sleeper.sleep})

	sum, err := svc.Run(context.Background(), []domain.BatchEvent{{Key: "a", EventType: "api_call"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Tracked != 1 || len(client.calls) != 4 {
		t.Fatalf("summary = %#v, calls = %d", sum, len(client.calls))
	}
	want := []time.Duration{100 * time.Millisecond, 7 * time.Second, 400 * time.Millisecond}
	if len(sleeper.waits) != len(want) {
		t.Fatalf("waits = %v", sleeper.waits)
	}
	for i := range want {
		if sleeper.waits[i] != want[i] {
			t.Fatalf("waits = %v, want %v", sleeper.waits, want)
		}
	}
}

func TestRunZeroRetryAfterFallsBackToBackoff(t *testing.T) {
	client := &scriptedTracker{errs: []error{rateLimited(intPtr(0)), rateLimited(intPtr(0)), nil}}
	sleeper := &sleepRecorder{}
	svc := NewService(client, nil, nil, Options{MaxRetries: 3, InitialDelay: 250 * time.Millisecond, Sleep: sleeper.sleep})

	if _, err := svc.Run(context.Background(), []domain.BatchEvent{{Key: "a", EventType: "api_call"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}
	if len(sleeper.waits) != len(want) || sleeper.waits[0] != want[0] || sleeper.waits[1] != want[1] {
		t.Fatalf("waits = %v, want %v", sleeper.waits, want)
	}
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	client := &scriptedTracker{errs: []error{rateLimited(nil), rateLimited(nil), rateLimited(nil)}}
	sleeper := &sleepRecorder{}
	svc := NewService(client, nil, nil, Options{MaxRetries: 2, Sleep: sleeper.sleep})

	sum, err := svc.Run(context.Background(), []domain.BatchEvent{{Key: "a", EventType: "api_call"}})
	if !usagey.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if sum.Failed != 1 || len(client.calls) != 3 || len(sleeper.waits) != 2 {
		t.Fatalf("summary = %#v, calls = %d, waits = %v", sum, len(client.calls), sleeper.waits)
	}
}

func TestRunDoesNotRetryOtherErrors(t *testing.T) {
	validation := usagey.Error{Kind: usagey.KindValidation, Code: usagey.CodeValidation, Message: "Validation failed", Status: 422}
	client := &scriptedTracker{errs: []error{&validation, nil}}
	sleeper := &sleepRecorder{}
	svc := NewService(client, nil, nil, Options{Sleep: sleeper.sleep})

	sum, err := svc.Run(context.Background(), []domain.BatchEvent{
		{Key: "bad", EventType: "api_call"},
		{Key: "good", EventType: "api_call"},
	})
	if err == nil || !strings.Contains(err.Error(), `track event "bad"`) {
		t.Fatalf("expected joined error for bad event, got %v", err)
	}
	if sum.Failed != 1 || sum.Tracked != 1 || len(sleeper.waits) != 0 {
		t.Fatalf("summary = %#v, waits = %v", sum, sleeper.waits)
	}
}

func TestRunDisabledRetries(t *testing.T) {
	client := &scriptedTracker{errs: []error{rateLimited(nil)}}
	svc := NewService(client, nil, nil, Options{MaxRetries: -1})

	if _, err := svc.Run(context.Background(), []domain.BatchEvent{{Key: "a", EventType: "x"}}); err == nil {
		t.Fatalf("expected error")
	}
	if len(client.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(client.calls))
	}
}

func TestRunStopsOnCancelledContextDuringBackoff(t *testing.T) {
	client := &scriptedTracker{errs: []error{rateLimited(intPtr(60))}}
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewService(client, nil, nil, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(ctx, []domain.BatchEvent{{Key: "a", EventType: "x"}, {Key: "b", EventType: "y"}})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}

func TestRunPublishFailureDoesNotFailEvent(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("sink down")}
	svc := NewService(&scriptedTracker{}, nil, pub, Options{})

	sum, err := svc.Run(context.Background(), []domain.BatchEvent{{Key: "a", EventType: "x"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Tracked != 1 || len(pub.events) != 1 {
		t.Fatalf("summary = %#v", sum)
	}
}

func TestRunReplayWithBoltLedger(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["quantity"] != float64(2) {
			t.Errorf("quantity = %v", body["quantity"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"event_id":"evt_live","timestamp":"2024-01-01T00:00:00.000Z"}`))
	}))
	defer srv.Close()

	store, err := storage.NewStore("bbolt", t.TempDir()+"/receipts.db", storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	client := usagey.NewClient("sk_test", usagey.WithBaseURL(srv.URL))
	svc := NewService(client, store, nil, Options{})
	events := []domain.BatchEvent{{Key: "invoice-7", EventType: "api_call", Quantity: intPtr(2)}}

	if sum, err := svc.Run(context.Background(), events); err != nil || sum.Tracked != 1 {
		t.Fatalf("first run = %#v, %v", sum, err)
	}
	sum, err := svc.Run(context.Background(), events)
	if err != nil || sum.Skipped != 1 {
		t.Fatalf("replay = %#v, %v", sum, err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("server hits = %d, want 1", n)
	}
}
