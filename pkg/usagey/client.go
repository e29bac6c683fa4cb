// Package usagey is a client for the Usagey usage-metering API: tracking
// billable events, managing API keys and reading usage statistics.
//
// Every method performs exactly one HTTP round trip and returns *Error on
// failure. Nothing is retried; callers that want to back off on rate limits
// can use Error.RetryAfter.
//
// A 2xx response whose body cannot be decoded into the method's result type
// yields a plain decode error rather than *Error, since the server accepted
// the request. DeleteAPIKey reports success for any 2xx body that is not JSON.
package usagey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	"github.com/usagey/usagey-go/pkg/httpclient"
)

// DefaultBaseURL is the production API origin.
const DefaultBaseURL = "https://usagey.com"

const (
	usagePath      = "/api/usage"
	usageStatsPath = "/api/usage/stats"
	apiKeysPath    = "/api/api-keys"
)

// Client is safe for concurrent use.
type Client struct {
	transport httpclient.Transport
	baseURL   string
}

// NewClient builds a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	o := clientOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	baseURL := strings.TrimSpace(o.baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ua := o.userAgent
	if ua == "" {
		ua = DefaultUserAgent()
	}

	return &Client{
		transport: httpclient.NewTransport(apiKey, baseURL, httpclient.TransportOptions{
			Timeout:    o.timeout,
			UserAgent:  ua,
			HTTPClient: o.httpClient,
			Logger:     o.logger,
		}),
		baseURL: baseURL,
	}
}

// NewClientWithTransport builds a client over a custom transport.
func NewClientWithTransport(t httpclient.Transport, baseURL string) *Client {
	return &Client{transport: t, baseURL: baseURL}
}

// DefaultUserAgent identifies this library and its version.
func DefaultUserAgent() string {
	return fmt.Sprintf("usagey-go/%s Go/%s", Version, runtime.Version())
}

// BaseURL returns the resolved API origin.
func (c *Client) BaseURL() string { return c.baseURL }

// TrackEvent records one usage event. Quantity defaults to 1 and metadata to
// null.
func (c *Client) TrackEvent(ctx context.Context, eventType string, opts ...EventOption) (*TrackEventResponse, error) {
	payload := trackEventRequest{EventType: eventType, Quantity: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&payload)
		}
	}

	var out TrackEventResponse
	if err := c.post(ctx, usagePath, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAPIKey creates a key for the organization. The returned record is the
// only place the secret key value is exposed.
func (c *Client) CreateAPIKey(ctx context.Context, name, organizationID string, opts ...APIKeyOption) (*APIKey, error) {
	payload := createAPIKeyRequest{Name: name, OrganizationID: organizationID}
	for _, opt := range opts {
		if opt != nil {
			opt(&payload)
		}
	}

	var out APIKey
	if err := c.post(ctx, apiKeysPath, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegenerateAPIKey issues a new secret for an existing key. The id is kept.
func (c *Client) RegenerateAPIKey(ctx context.Context, apiKeyID string) (*APIKey, error) {
	var out APIKey
	if err := c.post(ctx, apiKeyPath(apiKeyID)+"/regenerate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAPIKey revokes a key. A 2xx response without a JSON body counts as
// success.
func (c *Client) DeleteAPIKey(ctx context.Context, apiKeyID string) (*DeleteResponse, error) {
	resp, err := c.transport.Delete(ctx, apiKeyPath(apiKeyID))
	if err != nil {
		return nil, err
	}
	if !json.Valid(resp.Body()) {
		return &DeleteResponse{Success: true}, nil
	}
	var out DeleteResponse
	if err := httpclient.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUsageStats returns current usage against the plan limit.
func (c *Client) GetUsageStats(ctx context.Context) (*UsageStatsResponse, error) {
	var out UsageStatsResponse
	if err := c.get(ctx, usageStatsPath, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUsageEvents lists recorded events. Only the filter fields that are set
// appear in the query string.
func (c *Client) GetUsageEvents(ctx context.Context, filter UsageEventsFilter) (*UsageEventsResponse, error) {
	var out UsageEventsResponse
	if err := c.get(ctx, usagePath, filter.query(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f UsageEventsFilter) query() url.Values {
	q := url.Values{}
	if f.EventType != "" {
		q.Set("event_type", f.EventType)
	}
	if f.StartDate.IsSet() {
		q.Set("start_date", f.StartDate.String())
	}
	if f.EndDate.IsSet() {
		q.Set("end_date", f.EndDate.String())
	}
	if f.Limit != 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.transport.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return httpclient.DecodeJSON(resp, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	resp, err := c.transport.Post(ctx, path, body)
	if err != nil {
		return err
	}
	return httpclient.DecodeJSON(resp, out)
}

func apiKeyPath(id string) string {
	return apiKeysPath + "/" + url.PathEscape(id)
}
