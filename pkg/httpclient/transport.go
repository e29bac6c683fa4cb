package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// TransportOptions tunes the resty client behind a RestyTransport.
type TransportOptions struct {
	// Timeout bounds each round trip. Zero leaves it to the caller's context.
	Timeout   time.Duration
	UserAgent string
	// HTTPClient, when set, is used as the underlying client (custom TLS, proxies, test servers).
	HTTPClient *http.Client
	Logger     Logger
}

// RestyTransport implements Transport on top of resty. It holds no mutable
// state beyond the configuration fixed at construction and is safe for
// concurrent use.
type RestyTransport struct {
	client *resty.Client
	log    Logger
}

var _ Transport = (*RestyTransport)(nil)

// NewTransport builds a transport bound to baseURL that authenticates every
// request with apiKey as a bearer token.
func NewTransport(apiKey, baseURL string, opts TransportOptions) *RestyTransport {
	c := newRestyBaseClient(opts.HTTPClient, opts.Timeout)
	c.SetBaseURL(baseURL)
	c.SetHeaders(map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
		"User-Agent":    opts.UserAgent,
	})

	return &RestyTransport{
		client: c,
		log:    EnsureLogger(opts.Logger),
	}
}

// Get issues a GET with the given query parameters.
func (t *RestyTransport) Get(ctx context.Context, path string, query url.Values) (Response, error) {
	req := t.request(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	return t.execute(req, http.MethodGet, path)
}

// Post issues a POST. A nil body sends no payload.
func (t *RestyTransport) Post(ctx context.Context, path string, body any) (Response, error) {
	req := t.request(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return t.execute(req, http.MethodPost, path)
}

// Delete issues a DELETE.
func (t *RestyTransport) Delete(ctx context.Context, path string) (Response, error) {
	return t.execute(t.request(ctx), http.MethodDelete, path)
}

func (t *RestyTransport) request(ctx context.Context) *resty.Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return t.client.R().SetContext(ctx)
}

func (t *RestyTransport) execute(req *resty.Request, method, path string) (Response, error) {
	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		t.log.WarnObj("usagey request failed", "http_transport_error", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, NewNetworkError(err)
	}

	status := resp.StatusCode()
	t.log.DebugObj("usagey request completed", "http_transport", map[string]any{
		"method":     method,
		"path":       path,
		"status":     status,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, classify(status, resp.Body())
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// classify maps a non-2xx response onto the error taxonomy.
func classify(status int, body []byte) *Error {
	data := decodeBody(body)
	msg := errorMessage(data)

	var err *Error
	switch status {
	case http.StatusUnauthorized:
		err = NewAuthenticationError(msg)
	case http.StatusPaymentRequired:
		err = NewError(msg, CodePaymentRequired, data)
	case http.StatusForbidden:
		err = NewError(msg, CodeForbidden, data)
	case http.StatusNotFound:
		err = NewError(msg, CodeNotFound, data)
	case http.StatusUnprocessableEntity:
		err = NewValidationError(msg, data)
	case http.StatusTooManyRequests:
		err = NewRateLimitError(msg, data)
	default:
		err = NewHTTPError(status, msg, data)
	}
	err.Status = status
	return err
}

// decodeBody returns the decoded JSON body, the raw text when the body is not
// JSON, or nil when empty.
func decodeBody(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

func errorMessage(data any) string {
	switch v := data.(type) {
	case map[string]any:
		if s, ok := v["message"].(string); ok && s != "" {
			return s
		}
		if s, ok := v["error"].(string); ok && s != "" {
			return s
		}
	case string:
		if v != "" {
			return v
		}
	}
	return unknownErrorMessage
}

// DecodeJSON decodes a successful response body into v. An empty body leaves v untouched.
func DecodeJSON(resp Response, v any) error {
	if resp == nil {
		return fmt.Errorf("decode response: nil response")
	}
	body := resp.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode(), err)
	}
	return nil
}
