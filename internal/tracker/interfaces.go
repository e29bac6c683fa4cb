package tracker

import (
	"context"

	"github.com/usagey/usagey-go/pkg/publishers"
	"github.com/usagey/usagey-go/pkg/usagey"
)

// EventTracker records a single usage event. *usagey.Client satisfies it.
type EventTracker interface {
	TrackEvent(ctx context.Context, eventType string, opts ...usagey.EventOption) (*usagey.TrackEventResponse, error)
}

// Ledger remembers which manifest keys were already tracked.
type Ledger interface {
	Lookup(key string) (string, bool, error)
	Mark(key, eventID string) error
}

// ReceiptPublisher forwards receipts downstream. *publishers.Fanout satisfies it.
type ReceiptPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
