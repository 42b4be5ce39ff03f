package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lease is an exclusive claim on a key, released by its owner.
type Lease struct {
	store Store
	key   string
	token []byte
}

// AcquireLease claims key for ttl. It returns ErrLeaseHeld when the key is
// already claimed.
func AcquireLease(ctx context.Context, store Store, key string, ttl time.Duration) (*Lease, error) {
	token := []byte(uuid.NewString())
	ok, err := store.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquiring lease %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, key)
	}
	return &Lease{store: store, key: key, token: token}, nil
}

// Key returns the claimed key.
func (l *Lease) Key() string {
	return l.key
}

// conditionalDeleter is implemented by stores that can compare-and-delete
// atomically.
type conditionalDeleter interface {
	DeleteIfEqual(ctx context.Context, key string, value []byte) (bool, error)
}

// conditionalExpirer is implemented by stores that can compare-and-expire
// atomically.
type conditionalExpirer interface {
	ExpireIfEqual(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Refresh extends the lease to ttl from now. It returns ErrLeaseLost when
// the key expired or belongs to someone else.
func (l *Lease) Refresh(ctx context.Context, ttl time.Duration) error {
	if ce, ok := l.store.(conditionalExpirer); ok {
		ok, err := ce.ExpireIfEqual(ctx, l.key, l.token, ttl)
		if err != nil {
			return fmt.Errorf("refreshing lease %s: %w", l.key, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrLeaseLost, l.key)
		}
		return nil
	}

	current, err := l.store.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) || (err == nil && !bytes.Equal(current, l.token)) {
		return fmt.Errorf("%w: %s", ErrLeaseLost, l.key)
	}
	if err != nil {
		return fmt.Errorf("refreshing lease %s: %w", l.key, err)
	}
	return l.store.Set(ctx, l.key, l.token, ttl)
}

// Release deletes the key if this lease still owns it. An expired lease
// that someone else re-acquired is left alone.
func (l *Lease) Release(ctx context.Context) error {
	if cd, ok := l.store.(conditionalDeleter); ok {
		if _, err := cd.DeleteIfEqual(ctx, l.key, l.token); err != nil {
			return fmt.Errorf("releasing lease %s: %w", l.key, err)
		}
		return nil
	}

	current, err := l.store.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("releasing lease %s: %w", l.key, err)
	}
	if !bytes.Equal(current, l.token) {
		return nil
	}
	return l.store.Delete(ctx, l.key)
}
