package kv

import "errors"

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: key not found")

	// ErrLeaseHeld is returned when another holder owns the lease.
	ErrLeaseHeld = errors.New("kv: lease held by another owner")

	// ErrLeaseLost is returned by Refresh when the lease expired or was
	// taken over.
	ErrLeaseLost = errors.New("kv: lease lost")
)
