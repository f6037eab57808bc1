// Package storage defines the contract of the persistent key-value store that
// execution contexts share.
//
// A Backend is one context's handle on the shared store. Writes through it are
// visible to every other context, and every other context's Watcher receives a
// Change describing the write. The writing context itself is never notified of
// its own writes, matching the semantics of browser storage events.
//
// Implementations:
//
//	redisstore  - Redis keys plus a Pub/Sub change channel, one Backend per client
//	memstore    - an in-process Medium that several Backends attach to
//	sqlitestore - durable persistence for a memstore Medium
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed Backend or Watcher.
var ErrClosed = errors.New("storage: closed")

// Change describes one write observed by another context.
type Change struct {
	Key      string `json:"key"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty"`
	// HadOld is false when the key did not exist before the write.
	HadOld bool `json:"had_old,omitempty"`
	// Removed is true when the key was deleted; NewValue is then empty.
	Removed bool `json:"removed,omitempty"`
}

// Backend is the key-value store as seen from one execution context.
type Backend interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key and notifies the other contexts.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key and notifies the other contexts. Removing a missing
	// key is not an error and notifies nobody.
	Remove(ctx context.Context, key string) error
	// Watch starts delivering Changes made by other contexts.
	Watch(ctx context.Context) (Watcher, error)
	// Close releases the backend's resources.
	Close() error
}

// Watcher delivers Changes in the order the backend observed them.
// Caller must call Close() when done.
type Watcher interface {
	// Changes returns the channel of changes. It is closed when the watcher
	// stops.
	Changes() <-chan Change
	// Errors returns non-fatal delivery errors. The watcher keeps running
	// after an error.
	Errors() <-chan error
	// Close stops the watcher. Safe to call multiple times.
	Close() error
}
