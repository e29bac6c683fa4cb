// Package batch loads event manifests for bulk tracking from local files or
// remote URLs.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/usagey/usagey-go/internal/domain"
	"github.com/usagey/usagey-go/pkg/httpclient"
	"gopkg.in/yaml.v3"
)

// Manifest is the decoded content of a batch file.
type Manifest struct {
	Events []domain.BatchEvent `json:"events" yaml:"events"`
}

// Load reads a manifest from a filesystem path or an http(s) URL. Remote
// manifests are fetched with client, which may be nil for local sources.
func Load(ctx context.Context, source string, client httpclient.Client) ([]domain.BatchEvent, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("batch source is empty")
	}

	var (
		raw []byte
		ext string
		err error
	)
	if isRemote(source) {
		raw, ext, err = fetchRemote(ctx, source, client)
	} else {
		raw, err = os.ReadFile(source)
		if err != nil {
			err = fmt.Errorf("read batch file: %w", err)
		}
		ext = filepath.Ext(source)
	}
	if err != nil {
		return nil, err
	}

	m, err := Parse(raw, ext)
	if err != nil {
		return nil, err
	}
	return Normalize(m.Events)
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func fetchRemote(ctx context.Context, source string, client httpclient.Client) ([]byte, string, error) {
	if client == nil {
		return nil, "", errors.New("no http client configured for remote batch source")
	}
	u, err := url.Parse(source)
	if err != nil {
		return nil, "", fmt.Errorf("parse batch url: %w", err)
	}

	resp, err := client.Get(ctx, source, map[string]string{"Accept": "application/json, application/yaml"})
	if err != nil {
		return nil, "", fmt.Errorf("fetch batch manifest: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, "", fmt.Errorf("fetch batch manifest: unexpected status %d", code)
	}
	return resp.Body(), path.Ext(u.Path), nil
}

// Parse decodes manifest content. A known extension selects the decoder;
// otherwise YAML and JSON are tried in turn.
func Parse(data []byte, ext string) (Manifest, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		exts []string
		fn   func([]byte, any) error
	}{
		{name: "json", exts: []string{".json"}, fn: json.Unmarshal},
		{name: "yaml", exts: []string{".yaml", ".yml"}, fn: yaml.Unmarshal},
	}

	known := false
	for _, d := range decoders {
		for _, e := range d.exts {
			if e == ext {
				known = true
			}
		}
	}

	var lastErr error
	for _, d := range decoders {
		if known && !contains(d.exts, ext) {
			continue
		}
		var m Manifest
		if err := d.fn(data, &m); err != nil {
			lastErr = fmt.Errorf("decode %s manifest: %w", d.name, err)
			continue
		}
		return m, nil
	}
	if lastErr == nil {
		lastErr = errors.New("batch manifest format not recognized (expected YAML or JSON)")
	}
	return Manifest{}, lastErr
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Normalize trims, validates and assigns keys to manifest events.
func Normalize(events []domain.BatchEvent) ([]domain.BatchEvent, error) {
	if len(events) == 0 {
		return nil, errors.New("batch manifest contains no events")
	}

	out := make([]domain.BatchEvent, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for i, evt := range events {
		evt = sanitizeEvent(evt)
		if err := validateEvent(evt); err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		if _, dup := seen[evt.Key]; dup {
			return nil, fmt.Errorf("events[%d]: duplicate key %q", i, evt.Key)
		}
		seen[evt.Key] = struct{}{}
		out = append(out, evt)
	}
	return out, nil
}

func sanitizeEvent(evt domain.BatchEvent) domain.BatchEvent {
	evt.Key = strings.TrimSpace(evt.Key)
	evt.EventType = strings.TrimSpace(evt.EventType)
	if evt.Key == "" {
		evt.Key = uuid.NewString()
	}
	return evt
}

func validateEvent(evt domain.BatchEvent) error {
	if evt.EventType == "" {
		return errors.New("event_type is required")
	}
	if evt.Quantity != nil && *evt.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1 for event %q", evt.Key)
	}
	return nil
}
