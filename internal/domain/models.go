package domain

import "time"

// BatchEvent is one entry of a batch manifest. Key identifies the event for
// idempotent replays; Quantity nil means the API default.
type BatchEvent struct {
	Key       string         `json:"key" yaml:"key"`
	EventType string         `json:"event_type" yaml:"event_type"`
	Quantity  *int           `json:"quantity" yaml:"quantity"`
	Metadata  map[string]any `json:"metadata" yaml:"metadata"`
}

// QuantityValue returns the quantity to send, defaulting to 1.
func (e BatchEvent) QuantityValue() int {
	if e.Quantity == nil {
		return 1
	}
	return *e.Quantity
}

// Receipt records a successfully tracked event.
type Receipt struct {
	Key       string    `json:"key"`
	EventType string    `json:"event_type"`
	Quantity  int       `json:"quantity"`
	EventID   string    `json:"event_id"`
	Timestamp string    `json:"timestamp"`
	TrackedAt time.Time `json:"tracked_at"`
}
