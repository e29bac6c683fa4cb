package publishers

import (
	"time"

	"github.com/usagey/usagey-go/internal/domain"
)

// EventTypeUsageTracked is the only event kind emitted today.
const EventTypeUsageTracked = "usage.tracked"

// Event represents the payload published downstream.
type Event struct {
	Type        string         `json:"type"`
	Source      string         `json:"source"`
	Receipt     domain.Receipt `json:"receipt"`
	PublishedAt time.Time      `json:"published_at"`
}

// NewEvent wraps a tracking receipt for delivery.
func NewEvent(source string, receipt domain.Receipt) Event {
	return Event{
		Type:        EventTypeUsageTracked,
		Source:      source,
		Receipt:     receipt,
		PublishedAt: time.Now().UTC(),
	}
}

// attributes are attached as message attributes by queue based sinks.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type": e.Receipt.EventType,
		"key":        e.Receipt.Key,
		"type":       e.Type,
	}
}
