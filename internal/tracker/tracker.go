// Package tracker sends batches of usage events to the API, backing off when
// the account is rate limited and skipping events already recorded locally.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/usagey/usagey-go/internal/domain"
	"github.com/usagey/usagey-go/pkg/httpclient"
	"github.com/usagey/usagey-go/pkg/publishers"
	"github.com/usagey/usagey-go/pkg/usagey"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = time.Second
	defaultSource       = "usagey"
)

// Options tunes retry behaviour. Zero values fall back to defaults; use a
// negative MaxRetries to disable retries entirely.
type Options struct {
	MaxRetries   int
	InitialDelay time.Duration
	Source       string
	Logger       httpclient.Logger
	// Sleep waits between retries; it must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Summary reports what a Run did.
type Summary struct {
	Total    int              `json:"total"`
	Tracked  int              `json:"tracked"`
	Skipped  int              `json:"skipped"`
	Failed   int              `json:"failed"`
	Receipts []domain.Receipt `json:"receipts,omitempty"`
}

// Service coordinates tracking across a batch of events.
type Service struct {
	client    EventTracker
	ledger    Ledger
	publisher ReceiptPublisher
	opts      Options
	now       func() time.Time
}

// NewService wires a tracker. ledger and publisher may be nil.
func NewService(client EventTracker, ledger Ledger, publisher ReceiptPublisher, opts Options) *Service {
	switch {
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	case opts.MaxRetries == 0:
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}
	if opts.Source == "" {
		opts.Source = defaultSource
	}
	if opts.Logger == nil {
		opts.Logger = httpclient.NopLogger{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Service{
		client:    client,
		ledger:    ledger,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// Run tracks every event in order. Failed events do not stop the batch; their
// errors are joined into the returned error. Cancelling ctx stops the batch.
func (s *Service) Run(ctx context.Context, events []domain.BatchEvent) (Summary, error) {
	sum := Summary{Total: len(events)}
	if s == nil || s.client == nil {
		return sum, errors.New("tracker service is not initialized")
	}

	var errs []error
	for _, evt := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if s.ledger != nil {
			eventID, seen, err := s.ledger.Lookup(evt.Key)
			if err != nil {
				s.opts.Logger.WarnObj("ledger lookup failed", "ledger_error", map[string]any{
					"key":   evt.Key,
					"error": err.Error(),
				})
			}
			if seen {
				sum.Skipped++
				s.opts.Logger.DebugObj("event already tracked", "event_skipped", map[string]any{
					"key":      evt.Key,
					"event_id": eventID,
				})
				continue
			}
		}

		receipt, err := s.trackOne(ctx, evt)
		if err != nil {
			sum.Failed++
			errs = append(errs, fmt.Errorf("track event %q: %w", evt.Key, err))
			s.opts.Logger.ErrorObj("event tracking failed", "event_error", map[string]any{
				"key":        evt.Key,
				"event_type": evt.EventType,
				"error":      err.Error(),
			})
			continue
		}

		sum.Tracked++
		sum.Receipts = append(sum.Receipts, receipt)

		if s.ledger != nil {
			if err := s.ledger.Mark(evt.Key, receipt.EventID); err != nil {
				errs = append(errs, fmt.Errorf("record event %q: %w", evt.Key, err))
			}
		}
		s.publish(ctx, receipt)
	}

	s.opts.Logger.InfoObj("batch tracking completed", "batch_result", map[string]any{
		"total":   sum.Total,
		"tracked": sum.Tracked,
		"skipped": sum.Skipped,
		"failed":  sum.Failed,
	})
	return sum, errors.Join(errs...)
}

func (s *Service) trackOne(ctx context.Context, evt domain.BatchEvent) (domain.Receipt, error) {
	opts := []usagey.EventOption{
		usagey.WithQuantity(evt.QuantityValue()),
		usagey.WithMetadata(evt.Metadata),
	}

	delay := s.opts.InitialDelay
	for attempt := 0; ; attempt++ {
		resp, err := s.client.TrackEvent(ctx, evt.EventType, opts...)
		if err == nil {
			return domain.Receipt{
				Key:       evt.Key,
				EventType: evt.EventType,
				Quantity:  evt.QuantityValue(),
				EventID:   resp.EventID,
				Timestamp: resp.Timestamp,
				TrackedAt: s.now().UTC(),
			}, nil
		}

		apiErr, ok := usagey.AsError(err)
		if !ok || apiErr.Kind != usagey.KindRateLimit || attempt >= s.opts.MaxRetries {
			return domain.Receipt{}, err
		}

		wait := delay
		if apiErr.RetryAfter != nil && *apiErr.RetryAfter > 0 {
			wait = time.Duration(*apiErr.RetryAfter) * time.Second
		}
		s.opts.Logger.WarnObj("rate limited, backing off", "rate_limit", map[string]any{
			"key":     evt.Key,
			"attempt": attempt + 1,
			"wait_ms": wait.Milliseconds(),
		})
		if err := s.opts.Sleep(ctx, wait); err != nil {
			return domain.Receipt{}, err
		}
		delay *= 2
	}
}

func (s *Service) publish(ctx context.Context, receipt domain.Receipt) {
	if s.publisher == nil {
		return
	}
	delivered, err := s.publisher.Publish(ctx, publishers.NewEvent(s.opts.Source, receipt))
	if err != nil {
		s.opts.Logger.WarnObj("receipt publish failed", "publish_error", map[string]any{
			"key":       receipt.Key,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
