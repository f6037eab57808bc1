// Package redisstore implements storage.Backend on Redis.
//
// Values live in plain string keys. Every Set and Remove publishes a
// notification on the scope's change channel carrying the key, the previous
// value, the new value and the id of the writing Backend; Watchers drop
// notifications carrying their own id so that a context never observes its
// own writes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dyluth/multitab/pkg/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// notification is the Pub/Sub payload.
type notification struct {
	Writer string `json:"writer"`
	storage.Change
}

// Backend provides scope-namespaced Redis operations for one context.
// It is safe for concurrent use.
type Backend struct {
	rdb      *redis.Client
	scope    string
	writerID string
}

// New creates a backend for the given scope.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - scope: sync universe identifier (must not be empty)
//
// Returns an error if scope is empty.
func New(redisOpts *redis.Options, scope string) (*Backend, error) {
	if scope == "" {
		return nil, fmt.Errorf("scope cannot be empty")
	}

	return &Backend{
		rdb:      redis.NewClient(redisOpts),
		scope:    scope,
		writerID: uuid.NewString(),
	}, nil
}

// Scope returns the scope this backend is bound to.
func (b *Backend) Scope() string {
	return b.scope
}

// Close closes the Redis connection. Implements io.Closer.
func (b *Backend) Close() error {
	return b.rdb.Close()
}

// Ping verifies Redis connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Get returns the value stored under key.
func (b *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := b.rdb.Get(ctx, KVKey(b.scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q from Redis: %w", key, err)
	}
	return val, true, nil
}

// Set writes value under key and publishes the change.
// The previous value is read atomically with the write (SET ... GET).
func (b *Backend) Set(ctx context.Context, key, value string) error {
	old, err := b.rdb.SetArgs(ctx, KVKey(b.scope, key), value, redis.SetArgs{Get: true}).Result()
	hadOld := true
	if errors.Is(err, redis.Nil) {
		hadOld = false
	} else if err != nil {
		return fmt.Errorf("failed to write %q to Redis: %w", key, err)
	}

	return b.publish(ctx, storage.Change{
		Key:      key,
		OldValue: old,
		HadOld:   hadOld,
		NewValue: value,
	})
}

// Remove deletes key and publishes the change if the key existed.
func (b *Backend) Remove(ctx context.Context, key string) error {
	old, err := b.rdb.GetDel(ctx, KVKey(b.scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove %q from Redis: %w", key, err)
	}

	return b.publish(ctx, storage.Change{
		Key:      key,
		OldValue: old,
		HadOld:   true,
		Removed:  true,
	})
}

func (b *Backend) publish(ctx context.Context, change storage.Change) error {
	payload, err := json.Marshal(notification{Writer: b.writerID, Change: change})
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	if err := b.rdb.Publish(ctx, ChangesChannel(b.scope), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Watcher is an active Pub/Sub subscription to the scope's change channel.
// Caller must call Close() when done to clean up resources.
type Watcher struct {
	changes <-chan storage.Change
	errors  <-chan error
	cancel  func()
	once    sync.Once
}

// Changes returns the channel of changes made by other backends.
func (w *Watcher) Changes() <-chan storage.Change {
	return w.changes
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures; the message is skipped.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the subscription. Safe to call multiple times.
func (w *Watcher) Close() error {
	w.once.Do(w.cancel)
	return nil
}

// Watch subscribes to changes made by other backends in the same scope.
// The subscription is confirmed by Redis before Watch returns, so any write
// issued afterwards is observed.
//
// Redis Pub/Sub is at-most-once: a subscriber that is not connected when a
// change is published never sees it.
func (b *Backend) Watch(ctx context.Context) (storage.Watcher, error) {
	pubsub := b.rdb.Subscribe(ctx, ChangesChannel(b.scope))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to change events: %w", err)
	}

	changesChan := make(chan storage.Change, 64)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(changesChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var n notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal change event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				if n.Writer == b.writerID {
					continue
				}

				select {
				case changesChan <- n.Change:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Watcher{
		changes: changesChan,
		errors:  errorsChan,
		cancel:  cancelFunc,
	}, nil
}
