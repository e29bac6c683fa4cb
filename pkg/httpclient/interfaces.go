package httpclient

import (
	"context"
	"net/url"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts plain HTTP GETs so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// Transport performs authenticated API calls relative to a base URL. Every
// non-2xx outcome is returned as *Error; a nil error means a 2xx response.
type Transport interface {
	Get(ctx context.Context, path string, query url.Values) (Response, error)
	Post(ctx context.Context, path string, body any) (Response, error)
	Delete(ctx context.Context, path string) (Response, error)
}

// Logger is the structured logging surface shared by the library packages.
// Each call logs obj as a single field named key.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) InfoObj(string, string, interface{})  {}
func (NopLogger) DebugObj(string, string, interface{}) {}
func (NopLogger) WarnObj(string, string, interface{})  {}
func (NopLogger) ErrorObj(string, string, interface{}) {}

// EnsureLogger returns log, or NopLogger when log is nil.
func EnsureLogger(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}
