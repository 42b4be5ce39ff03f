package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquireLease_Exclusive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	lease, err := AcquireLease(ctx, store, "qsmr:label:HMGCR_eQTLGEN", time.Hour)
	if err != nil {
		t.Fatalf("AcquireLease failed: %v", err)
	}

	if _, err := AcquireLease(ctx, store, "qsmr:label:HMGCR_eQTLGEN", time.Hour); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("expected ErrLeaseHeld, got %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, err := AcquireLease(ctx, store, "qsmr:label:HMGCR_eQTLGEN", time.Hour); err != nil {
		t.Fatalf("expected lease to be free after release, got %v", err)
	}
}

func TestLease_ReleaseDoesNotStealReacquired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	first, err := AcquireLease(ctx, store, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	// First lease expires and a second owner takes over.
	now = now.Add(2 * time.Minute)
	second, err := AcquireLease(ctx, store, "k", time.Minute)
	if err != nil {
		t.Fatalf("expected expired lease to be re-acquirable: %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Errorf("stale release removed the new owner's lease: %v", err)
	}

	if err := second.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected key gone, got %v", err)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	store.Set(ctx, "a", []byte("1"), time.Second)
	store.Set(ctx, "b", []byte("2"), 0)

	now = now.Add(time.Hour)
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected a to expire, got %v", err)
	}
	if v, err := store.Get(ctx, "b"); err != nil || string(v) != "2" {
		t.Errorf("expected b to persist, got %q %v", v, err)
	}
}

func TestLease_RefreshExtendsTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	lease, err := AcquireLease(ctx, store, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	now = now.Add(50 * time.Second)
	if err := lease.Refresh(ctx, time.Minute); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Past the original expiry but inside the refreshed one.
	now = now.Add(50 * time.Second)
	if _, err := AcquireLease(ctx, store, "k", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("expected refreshed lease to still be held, got %v", err)
	}
}

func TestLease_RefreshAfterTakeover(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	first, err := AcquireLease(ctx, store, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := AcquireLease(ctx, store, "k", time.Minute); err != nil {
		t.Fatal(err)
	}

	if err := first.Refresh(ctx, time.Minute); !errors.Is(err, ErrLeaseLost) {
		t.Fatalf("expected ErrLeaseLost, got %v", err)
	}
}
