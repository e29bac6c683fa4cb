package usagey

import (
	"net/http"
	"time"

	"github.com/usagey/usagey-go/pkg/httpclient"
)

// Option configures a Client at construction.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	userAgent  string
	httpClient *http.Client
	logger     httpclient.Logger
}

// WithBaseURL overrides DefaultBaseURL. An empty value keeps the default.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

// WithTimeout bounds every round trip made by the client.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithUserAgent replaces the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) { o.userAgent = ua }
}

// WithHTTPClient sets the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithLogger receives debug logs for each request.
func WithLogger(log httpclient.Logger) Option {
	return func(o *clientOptions) { o.logger = log }
}

// EventOption customizes a TrackEvent call.
type EventOption func(*trackEventRequest)

// WithQuantity sets the event quantity. It is sent as given; the server
// validates it.
func WithQuantity(n int) EventOption {
	return func(r *trackEventRequest) { r.Quantity = n }
}

// WithMetadata attaches metadata to the event. A nil map is sent as null.
func WithMetadata(m map[string]any) EventOption {
	return func(r *trackEventRequest) { r.Metadata = m }
}

// APIKeyOption customizes a CreateAPIKey call.
type APIKeyOption func(*createAPIKeyRequest)

// WithExpiresAt sets the key's expiry.
func WithExpiresAt(t time.Time) APIKeyOption {
	return func(r *createAPIKeyRequest) {
		s := FormatTimestamp(t)
		r.ExpiresAt = &s
	}
}
