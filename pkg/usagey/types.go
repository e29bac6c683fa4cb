package usagey

import "time"

// TimestampLayout is the ISO-8601 UTC layout, millisecond precision, used for
// every timestamp the client serializes.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// trackEventRequest mirrors POST /api/usage. Metadata has no omitempty: an
// absent map is sent as null, never as {}.
type trackEventRequest struct {
	EventType string         `json:"event_type"`
	Quantity  int            `json:"quantity"`
	Metadata  map[string]any `json:"metadata"`
}

// TrackEventResponse is returned after an event is recorded.
type TrackEventResponse struct {
	Success   bool   `json:"success"`
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
}

// createAPIKeyRequest mirrors POST /api/api-keys. ExpiresAt is always present
// in the payload, null when not set.
type createAPIKeyRequest struct {
	Name           string  `json:"name"`
	OrganizationID string  `json:"organizationId"`
	ExpiresAt      *string `json:"expiresAt"`
}

// APIKey is returned when a key is created or regenerated. Key holds the
// secret and is only populated by those two calls.
type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// DeleteResponse is returned by DeleteAPIKey.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// UsageStats is a point-in-time view of the account's usage.
type UsageStats struct {
	CurrentUsage float64 `json:"currentUsage"`
	Limit        float64 `json:"limit"`
	Percentage   float64 `json:"percentage"`
	Plan         string  `json:"plan"`
}

// UsageStatsResponse wraps UsageStats as returned by GET /api/usage/stats.
type UsageStatsResponse struct {
	Usage UsageStats `json:"usage"`
}

// UsageEvent is one recorded event as listed by GET /api/usage.
type UsageEvent struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Quantity  int            `json:"quantity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// UsageEventsResponse is returned by GetUsageEvents.
type UsageEventsResponse struct {
	Success bool         `json:"success"`
	Data    []UsageEvent `json:"data"`
}

// DateArg is a date filter value: either a preformatted timestamp passed
// through verbatim, or a time rendered with FormatTimestamp. The zero value
// means unset.
type DateArg struct {
	value string
}

// Date builds a DateArg from a time value.
func Date(t time.Time) DateArg { return DateArg{value: FormatTimestamp(t)} }

// DateString builds a DateArg from an already formatted timestamp.
func DateString(s string) DateArg { return DateArg{value: s} }

// IsSet reports whether the filter carries a value.
func (d DateArg) IsSet() bool { return d.value != "" }

// String returns the serialized value.
func (d DateArg) String() string { return d.value }

// UsageEventsFilter narrows GetUsageEvents. Zero fields are left out of the
// query string entirely.
type UsageEventsFilter struct {
	EventType string
	StartDate DateArg
	EndDate   DateArg
	Limit     int
}
