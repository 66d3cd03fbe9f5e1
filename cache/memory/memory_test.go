package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/troca-app/troca-go/cache"
)

// fakeClock advances only when told to.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStoreSetGetDelete(t *testing.T) {
	store := NewStore(Options{})
	ctx := context.Background()

	key := "GET:http://example.test/api/items/"
	value := []byte(`{"items":[]}`)

	if err := store.Set(ctx, key, value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	payload, err := store.Get(ctx, key, 0)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(payload) != string(value) {
		t.Fatalf("Get() = %q, want %q", payload, value)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, key, 0); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreMaxAgeExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewStore(Options{Clock: clock.Now})
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(999 * time.Millisecond)
	if _, err := store.Get(ctx, "k", time.Second); err != nil {
		t.Fatalf("Get() just under max age error = %v", err)
	}

	clock.Advance(2 * time.Millisecond)
	if _, err := store.Get(ctx, "k", time.Second); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound past max age, got %v", err)
	}

	// the expired entry must have been removed, not just skipped
	if _, err := store.Get(ctx, "k", 0); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected entry removed after expiry, got %v", err)
	}
}

func TestStoreNoMaxAgeNeverStale(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewStore(Options{Clock: clock.Now})
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(365 * 24 * time.Hour)
	if _, err := store.Get(ctx, "k", 0); err != nil {
		t.Fatalf("entry without max age should never go stale, got %v", err)
	}
}

func TestStoreWriteReplaces(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewStore(Options{Clock: clock.Now})
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("old")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	clock.Advance(time.Hour)
	if err := store.Set(ctx, "k", []byte("new")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// the rewrite refreshed the timestamp, so a tight max age still hits
	payload, err := store.Get(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(payload) != "new" {
		t.Fatalf("Get() = %q, want %q", payload, "new")
	}

	if n, _ := store.Len(ctx); n != 1 {
		t.Fatalf("Len() = %d, want 1", n)
	}
}

func TestStoreLRUBound(t *testing.T) {
	store := NewStore(Options{MaxEntries: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	// touch k0 so k1 becomes the eviction candidate
	if _, err := store.Get(ctx, "k0", 0); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := store.Set(ctx, "k2", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, err := store.Get(ctx, "k1", 0); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected k1 evicted, got %v", err)
	}
	if _, err := store.Get(ctx, "k0", 0); err != nil {
		t.Fatalf("k0 should survive eviction, got %v", err)
	}
	if n, _ := store.Len(ctx); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}
}

func TestStoreClear(t *testing.T) {
	store := NewStore(Options{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := store.Len(ctx); n != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", n)
	}
}

func TestStoreContextCancellation(t *testing.T) {
	store := NewStore(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
