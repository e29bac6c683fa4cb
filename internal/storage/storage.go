// Package storage keeps a local ledger of tracked batch events so a replayed
// manifest does not bill the same event twice.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// Store records which batch event keys were already tracked.
type Store interface {
	Close() error
	// Lookup returns the event id recorded for key, if any live entry exists.
	Lookup(key string) (string, bool, error)
	Mark(key, eventID string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	ReceiptTTL      time.Duration
	CleanupInterval time.Duration
}

const (
	defaultReceiptTTL      = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ReceiptTTL <= 0 {
		opts.ReceiptTTL = defaultReceiptTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                        { return nil }
func (noopStore) Lookup(string) (string, bool, error) { return "", false, nil }
func (noopStore) Mark(string, string) error           { return nil }
