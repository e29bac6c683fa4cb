package publishers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/usagey/usagey-go/pkg/httpclient"
)

// maxErrorSnippet caps how much of a rejected webhook response is quoted in errors.
const maxErrorSnippet = 512

// webhookPublisher delivers receipts as JSON to an HTTP endpoint. The receipt
// key is sent as Idempotency-Key so the receiver can drop redeliveries.
type webhookPublisher struct {
	id     string
	cfg    HTTPPublisherConfig
	client *resty.Client
	log    httpclient.Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log httpclient.Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	hc := cfg.normalized().HTTP

	client := httpclient.NewRestyHTTPClient(time.Duration(hc.TimeoutSeconds) * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeaders(hc.Headers)

	return &webhookPublisher{
		id:     cfg.ID,
		cfg:    *hc,
		client: client,
		log:    httpclient.EnsureLogger(log),
	}, nil
}

func (w *webhookPublisher) ID() string   { return w.id }
func (w *webhookPublisher) Type() string { return TypeHTTP }

func (w *webhookPublisher) Publish(ctx context.Context, evt Event) error {
	req := w.client.R().SetContext(ctx).SetBody(evt)
	if evt.Receipt.Key != "" {
		req.SetHeader("Idempotency-Key", evt.Receipt.Key)
	}

	resp, err := req.Execute(w.cfg.Method, w.cfg.URL)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", w.cfg.URL, err)
	}

	status := resp.StatusCode()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		body := resp.Body()
		if len(body) > maxErrorSnippet {
			body = body[:maxErrorSnippet]
		}
		w.log.WarnObj("webhook rejected receipt", "publisher_http_rejected", map[string]any{
			"publisher_id": w.id,
			"status":       status,
		})
		return fmt.Errorf("webhook responded with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	w.log.DebugObj("webhook accepted receipt", "publisher_http_delivery", map[string]any{
		"publisher_id": w.id,
		"status":       status,
		"key":          evt.Receipt.Key,
	})
	return nil
}
