package httpclient

import (
	"errors"
	"fmt"
)

// Kind identifies which variant of Error a value is.
type Kind int

const (
	KindGeneric Kind = iota
	KindAuthentication
	KindRateLimit
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindValidation:
		return "validation"
	default:
		return "generic"
	}
}

// Stable error codes returned by the API client.
const (
	CodeUnknown         = "unknown_error"
	CodePaymentRequired = "payment_required"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeNetwork         = "network_error"
	CodeAuthentication  = "authentication_error"
	CodeRateLimit       = "rate_limit_error"
	CodeValidation      = "validation_error"

	httpErrorCodePrefix = "http_error_"
)

const (
	defaultAuthenticationMessage = "Invalid API key or authentication failed"
	defaultRateLimitMessage      = "Rate limit exceeded"
	defaultValidationMessage     = "Validation failed"
	unknownErrorMessage          = "Unknown error"
)

// Error is the single error type produced by the transport. Kind selects the
// variant; variant specific fields are only populated for their kind.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Status is the HTTP status code, zero for network failures.
	Status int
	// Data is the raw response body: decoded JSON when the body parsed, the
	// body text otherwise, nil when empty.
	Data any

	// RateLimit fields.
	RetryAfter *int
	Limit      *int
	Remaining  *int

	// Validation field errors keyed by field name.
	Errors map[string][]string

	Err error
}

// Error implements the error interface and returns the human readable message.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the underlying transport failure for network errors.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a generic error. An empty code defaults to unknown_error.
func NewError(message, code string, data any) *Error {
	if code == "" {
		code = CodeUnknown
	}
	return &Error{Kind: KindGeneric, Code: code, Message: message, Data: data}
}

// NewHTTPError builds the generic error used for unmapped status codes.
func NewHTTPError(status int, message string, data any) *Error {
	err := NewError(message, HTTPErrorCode(status), data)
	err.Status = status
	return err
}

// HTTPErrorCode returns the http_error_<status> code for an unmapped status.
func HTTPErrorCode(status int) string {
	return fmt.Sprintf("%s%d", httpErrorCodePrefix, status)
}

// NewNetworkError wraps a failure where no response was received.
func NewNetworkError(cause error) *Error {
	msg := "Network error"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindGeneric, Code: CodeNetwork, Message: msg, Err: cause}
}

// NewAuthenticationError reports a rejected or missing credential.
func NewAuthenticationError(message string) *Error {
	if message == "" {
		message = defaultAuthenticationMessage
	}
	return &Error{Kind: KindAuthentication, Code: CodeAuthentication, Message: message}
}

// NewRateLimitError reports a 429. retry_after, limit and remaining are read
// from data when it is a JSON object.
func NewRateLimitError(message string, data any) *Error {
	if message == "" {
		message = defaultRateLimitMessage
	}
	err := &Error{Kind: KindRateLimit, Code: CodeRateLimit, Message: message, Data: data}
	if obj, ok := data.(map[string]any); ok {
		err.RetryAfter = intField(obj, "retry_after")
		err.Limit = intField(obj, "limit")
		err.Remaining = intField(obj, "remaining")
	}
	return err
}

// NewValidationError reports a 422. Field errors are read from data.details.
func NewValidationError(message string, data any) *Error {
	if message == "" {
		message = defaultValidationMessage
	}
	err := &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Data: data}
	if obj, ok := data.(map[string]any); ok {
		err.Errors = fieldErrors(obj["details"])
	}
	return err
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}

func IsAuthentication(err error) bool { return hasKind(err, KindAuthentication) }
func IsRateLimit(err error) bool      { return hasKind(err, KindRateLimit) }
func IsValidation(err error) bool     { return hasKind(err, KindValidation) }

// IsNetwork reports whether err is a transport failure with no response.
func IsNetwork(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Code == CodeNetwork
}

func hasKind(err error, kind Kind) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == kind
}

func intField(obj map[string]any, key string) *int {
	switch v := obj[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	default:
		return nil
	}
}

func fieldErrors(raw any) map[string][]string {
	details, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(details))
	for field, v := range details {
		switch msgs := v.(type) {
		case []any:
			list := make([]string, 0, len(msgs))
			for _, m := range msgs {
				if s, ok := m.(string); ok {
					list = append(list, s)
				}
			}
			out[field] = list
		case []string:
			out[field] = append([]string(nil), msgs...)
		case string:
			out[field] = []string{msgs}
		}
	}
	return out
}
