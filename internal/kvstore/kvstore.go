// Package kvstore holds short-lived server-side state: login sessions and
// DNSSEC delete confirmations. Values expire after a TTL.
//
// Two backends exist: Redis (shared between instances) and an in-process
// LRU used when no Redis address is configured.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for missing or expired keys.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a TTL key/value store.
type Store interface {
	// Set stores value under key for ttl. A non-positive ttl is rejected.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value of key.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetDel atomically returns and removes key.
	GetDel(ctx context.Context, key string) ([]byte, error)
	// Del removes key. Removing a missing key is not an error.
	Del(ctx context.Context, key string) error
	// Ping checks the backend.
	Ping(ctx context.Context) error
}

// ErrInvalidTTL is returned by Set for non-positive TTLs.
var ErrInvalidTTL = errors.New("kvstore: ttl must be positive")
