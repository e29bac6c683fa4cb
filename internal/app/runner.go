package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/usagey/usagey-go/internal/batch"
	"github.com/usagey/usagey-go/internal/config"
	"github.com/usagey/usagey-go/internal/logger"
	"github.com/usagey/usagey-go/internal/storage"
	"github.com/usagey/usagey-go/internal/tracker"
	"github.com/usagey/usagey-go/pkg/httpclient"
	"github.com/usagey/usagey-go/pkg/publishers"
	"github.com/usagey/usagey-go/pkg/usagey"
)

// NewClient builds an API client from config.
func NewClient(cfg *config.Config, log logger.Logger) (*usagey.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return usagey.NewClient(cfg.APIKey,
		usagey.WithBaseURL(cfg.APIURL),
		usagey.WithTimeout(cfg.HTTPTimeout),
		usagey.WithLogger(log),
	), nil
}

// Runner owns everything a batch run needs: the API client, the receipt
// ledger and the publisher fanout.
type Runner struct {
	cfg     *config.Config
	client  *usagey.Client
	store   storage.Store
	fanout  *publishers.Fanout
	tracker *tracker.Service
	fetcher httpclient.Client
	log     logger.Logger
}

// NewRunner wires a runner from config. The publishers file is optional.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		ReceiptTTL:      cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"receipt_ttl_seconds":      int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	maxRetries := cfg.RetryMaxAttempts
	if maxRetries == 0 {
		maxRetries = -1
	}
	svc := tracker.NewService(client, store, fanout, tracker.Options{
		MaxRetries:   maxRetries,
		InitialDelay: cfg.RetryInitialDelay,
		Source:       cfg.AppName,
		Logger:       log,
	})

	return &Runner{
		cfg:     cfg,
		client:  client,
		store:   store,
		fanout:  fanout,
		tracker: svc,
		fetcher: httpclient.NewRestyClient(cfg.HTTPTimeout),
		log:     log,
	}, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadFile(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers file: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Client exposes the API client for single-call commands.
func (r *Runner) Client() *usagey.Client { return r.client }

// TrackBatch loads the manifest at source and tracks each event.
func (r *Runner) TrackBatch(ctx context.Context, source string) (tracker.Summary, error) {
	if r == nil || r.tracker == nil {
		return tracker.Summary{}, fmt.Errorf("runner is not initialized")
	}

	events, err := batch.Load(ctx, source, r.fetcher)
	if err != nil {
		return tracker.Summary{}, fmt.Errorf("load batch: %w", err)
	}

	start := time.Now()
	r.log.InfoObj("batch started", "batch_meta", map[string]any{
		"source":           source,
		"events_count":     len(events),
		"publishers_count": r.fanout.Size(),
	})
	sum, err := r.tracker.Run(ctx, events)
	r.log.InfoObj("batch finished", "batch_meta", map[string]any{
		"source":     source,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return sum, err
}

// Close releases the ledger and publisher connections.
func (r *Runner) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := r.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
