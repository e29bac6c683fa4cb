package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/usagey/usagey-go/internal/config"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:                "usagey-test",
		APIKey:                 "sk_test",
		APIURL:                 apiURL,
		HTTPTimeout:            2 * time.Second,
		RetryMaxAttempts:       1,
		RetryInitialDelay:      time.Millisecond,
		StorageType:            "bbolt",
		BBoltPath:              filepath.Join(t.TempDir(), "receipts.db"),
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.APIKey = ""
	if _, err := NewClient(cfg, nil); err == nil {
		t.Fatalf("expected missing api key error")
	}
}

func TestRunnerTrackBatchPublishesReceipts(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/usage" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"event_id":"evt_1","timestamp":"2024-01-01T00:00:00.000Z"}`))
	}))
	defer api.Close()

	var (
		mu       sync.Mutex
		received int
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		received++
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	dir := t.TempDir()
	pubFile := filepath.Join(dir, "publishers.yaml")
	if err := os.WriteFile(pubFile, []byte("publishers:\n  - id: hook\n    type: http\n    http:\n      url: "+hook.URL+"\n"), 0o644); err != nil {
		t.Fatalf("write publishers: %v", err)
	}
	manifest := filepath.Join(dir, "events.yaml")
	if err := os.WriteFile(manifest, []byte("events:\n  - key: a\n    event_type: api_call\n  - key: b\n    event_type: api_call\n    quantity: 2\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cfg := testConfig(t, api.URL)
	cfg.PublishersFile = pubFile

	runner, err := NewRunner(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer runner.Close()

	sum, err := runner.TrackBatch(context.Background(), manifest)
	if err != nil {
		t.Fatalf("TrackBatch: %v", err)
	}
	if sum.Tracked != 2 {
		t.Fatalf("summary = %#v", sum)
	}
	mu.Lock()
	defer mu.Unlock()
	if received != 2 {
		t.Fatalf("hook received %d receipts, want 2", received)
	}
}

func TestRunnerTrackBatchBadSource(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.StorageType = "none"
	runner, err := NewRunner(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer runner.Close()

	if _, err := runner.TrackBatch(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected load error")
	}
}
