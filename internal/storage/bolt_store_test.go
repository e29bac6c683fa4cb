package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestBoltStoreMarksAndExpiresReceipts(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		ReceiptTTL:      1 * time.Second,
		CleanupInterval: 1 * time.Second,
	}

	storeRaw, err := openBolt(filepath.Join(dir, "receipts.db"), opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	_, found, err := store.Lookup("evt-key-1")
	if err != nil || found {
		t.Fatalf("expected unknown key, found=%v err=%v", found, err)
	}

	if err := store.Mark("evt-key-1", "evt_123"); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	eventID, found, err := store.Lookup("evt-key-1")
	if err != nil || !found {
		t.Fatalf("expected key marked, got found=%v err=%v", found, err)
	}
	if eventID != "evt_123" {
		t.Fatalf("eventID = %q", eventID)
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	_, found, err = store.Lookup("evt-key-1")
	if err != nil {
		t.Fatalf("Lookup after expiry: %v", err)
	}
	if found {
		t.Fatalf("expected entry to expire and be removed")
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "receipts.db")

	store, err := NewStore("bbolt", path, Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Mark("k1", "evt_1"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = NewStore("BBOLT", path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	id, found, err := store.Lookup("k1")
	if err != nil || !found || id != "evt_1" {
		t.Fatalf("Lookup after reopen: id=%q found=%v err=%v", id, found, err)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.Mark("x", "evt"); err != nil {
		t.Fatalf("noop store Mark: %v", err)
	}
	if _, found, _ := store.Lookup("x"); found {
		t.Fatalf("noop store should never report a key")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
}
