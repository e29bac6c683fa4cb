package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type apiCall struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func newAPI(t *testing.T, status int, reply string) (*httptest.Server, *[]apiCall) {
	t.Helper()
	var calls []apiCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := apiCall{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &call.body)
		}
		calls = append(calls, call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("USAGEY_API_KEY", "sk_test")
	t.Setenv("USAGEY_API_URL", srv.URL)
	t.Setenv("STORAGE_TYPE", "none")
	t.Setenv("PUBLISHERS_FILE", "")
	return srv, &calls
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd("test", "abc123", "today")
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTrackCommand(t *testing.T) {
	_, calls := newAPI(t, http.StatusOK, `{"success":true,"event_id":"evt_1","timestamp":"2024-01-01T00:00:00.000Z"}`)

	out, err := run(t, "track", "api_call", "--quantity", "3", "--metadata", "region=eu", "--metadata", "retries=2")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if !strings.Contains(out, `"event_id": "evt_1"`) {
		t.Fatalf("output = %s", out)
	}
	if len(*calls) != 1 {
		t.Fatalf("calls = %d", len(*calls))
	}
	c := (*calls)[0]
	if c.method != http.MethodPost || c.path != "/api/usage" {
		t.Fatalf("request = %s %s", c.method, c.path)
	}
	if c.body["event_type"] != "api_call" || c.body["quantity"] != float64(3) {
		t.Fatalf("body = %#v", c.body)
	}
	meta, _ := c.body["metadata"].(map[string]any)
	if meta["region"] != "eu" || meta["retries"] != float64(2) {
		t.Fatalf("metadata = %#v", c.body["metadata"])
	}
}

func TestTrackCommandRejectsBadMetadata(t *testing.T) {
	newAPI(t, http.StatusOK, `{}`)
	if _, err := run(t, "track", "api_call", "--metadata", "novalue"); err == nil {
		t.Fatalf("expected metadata error")
	}
}

func TestKeysCreateCommand(t *testing.T) {
	_, calls := newAPI(t, http.StatusOK, `{"id":"key_1","name":"ci","key":"sk_live_x","createdAt":"2024-01-01T00:00:00.000Z"}`)

	out, err := run(t, "keys", "create", "--name", "ci", "--org", "org_1", "--expires-at", "2024-06-01T02:00:00+02:00")
	if err != nil {
		t.Fatalf("keys create: %v", err)
	}
	if !strings.Contains(out, `"id": "key_1"`) {
		t.Fatalf("output = %s", out)
	}
	body := (*calls)[0].body
	if body["organizationId"] != "org_1" || body["expiresAt"] != "2024-06-01T00:00:00.000Z" {
		t.Fatalf("body = %#v", body)
	}
}

func TestKeysDeleteCommand(t *testing.T) {
	_, calls := newAPI(t, http.StatusOK, `{"success":true}`)

	if _, err := run(t, "keys", "delete", "key_9"); err != nil {
		t.Fatalf("keys delete: %v", err)
	}
	c := (*calls)[0]
	if c.method != http.MethodDelete || c.path != "/api/api-keys/key_9" {
		t.Fatalf("request = %s %s", c.method, c.path)
	}
}

func TestEventsCommandNormalizesDates(t *testing.T) {
	_, calls := newAPI(t, http.StatusOK, `{"success":true,"data":[]}`)

	if _, err := run(t, "events", "--type", "api_call", "--start", "2024-01-01T00:00:00Z", "--limit", "5"); err != nil {
		t.Fatalf("events: %v", err)
	}
	q := (*calls)[0].query
	for _, want := range []string{"event_type=api_call", "start_date=2024-01-01T00%3A00%3A00.000Z", "limit=5"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query %q missing %q", q, want)
		}
	}
	if strings.Contains(q, "end_date") {
		t.Fatalf("unset end_date sent: %q", q)
	}
}

func TestStatsCommandSurfacesAPIError(t *testing.T) {
	newAPI(t, http.StatusTooManyRequests, `{"error":"Too many requests","retry_after":30,"limit":100,"remaining":0}`)

	_, err := run(t, "stats")
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := DescribeError(err)
	for _, want := range []string{"Error [rate_limit_error]: Too many requests", "retry after: 30s", "remaining: 0/100"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("DescribeError = %q, missing %q", msg, want)
		}
	}
}

func TestDescribeValidationError(t *testing.T) {
	newAPI(t, http.StatusUnprocessableEntity, `{"message":"Invalid input","details":{"quantity":["must be positive"]}}`)

	_, err := run(t, "track", "api_call")
	msg := DescribeError(err)
	if !strings.Contains(msg, "Error [validation_error]: Invalid input") || !strings.Contains(msg, "quantity: must be positive") {
		t.Fatalf("DescribeError = %q", msg)
	}
}

func TestTrackBatchCommand(t *testing.T) {
	_, calls := newAPI(t, http.StatusOK, `{"success":true,"event_id":"evt_b","timestamp":"2024-01-01T00:00:00.000Z"}`)

	manifest := filepath.Join(t.TempDir(), "events.json")
	if err := os.WriteFile(manifest, []byte(`{"events":[{"key":"a","event_type":"api_call"},{"key":"b","event_type":"api_call","quantity":4}]}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	out, err := run(t, "track-batch", manifest)
	if err != nil {
		t.Fatalf("track-batch: %v", err)
	}
	var sum struct {
		Total   int `json:"total"`
		Tracked int `json:"tracked"`
	}
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode summary: %v (%s)", err, out)
	}
	if sum.Total != 2 || sum.Tracked != 2 || len(*calls) != 2 {
		t.Fatalf("summary = %#v, calls = %d", sum, len(*calls))
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("USAGEY_API_KEY", "")
	if _, err := run(t, "stats"); err == nil || !strings.Contains(err.Error(), "USAGEY_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["version"] != "test" || info["commit"] != "abc123" || info["sdk_version"] == "" {
		t.Fatalf("info = %#v", info)
	}
}

func TestTrackBatchFailureKeepsSummaryAndAPIDetail(t *testing.T) {
	newAPI(t, http.StatusUnprocessableEntity, `{"message":"Invalid event","details":{"event_type":["unknown type"]}}`)

	manifest := filepath.Join(t.TempDir(), "events.yaml")
	if err := os.WriteFile(manifest, []byte("events:\n  - key: a\n    event_type: bogus\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	_, err := run(t, "track-batch", manifest)
	msg := DescribeError(err)
	for _, want := range []string{"Error: 1 of 1 events failed", `track event "a": Invalid event`, "code: validation_error", "event_type: unknown type"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("DescribeError = %q, missing %q", msg, want)
		}
	}
}

func TestTrackBatchLoadFailureHasNoCount(t *testing.T) {
	newAPI(t, http.StatusOK, `{}`)

	_, err := run(t, "track-batch", filepath.Join(t.TempDir(), "missing.yaml"))
	msg := DescribeError(err)
	if !strings.Contains(msg, "load batch") || strings.Contains(msg, "events failed") {
		t.Fatalf("DescribeError = %q", msg)
	}
}
