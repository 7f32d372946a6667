// Package store holds the key-value state that lives outside the relational
// database: session tokens and pending chat invitations.
//
// Both stores sit on top of a Backend. Three backends exist:
//   - MemoryBackend: process-local map, lost on restart.
//   - FileBackend: a single JSON document per store under the data directory,
//     guarded by a mutex and replaced atomically on every write.
//   - BadgerBackend: an embedded badger database with native TTLs.
//
// Tiered stacks a fast cache in front of a durable backend. Reads try each
// layer in order, writes and deletes go to every layer, and backend failures
// degrade to "not found" instead of surfacing to callers.
//
// Values handed to a Backend must be valid JSON; the file backend embeds them
// verbatim in its document.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("store: backend closed")

// Backend is a minimal TTL-aware key-value store.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Get returns the value for key. ok is false when the key is missing or
	// expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Close releases resources held by the backend.
	Close() error
}

// expiry converts a TTL into an absolute deadline. The zero time means none.
func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
