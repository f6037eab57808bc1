// Package memstore implements storage.Backend for contexts living in one
// process.
//
// A Medium plays the role of a browser origin's local storage: contexts
// Attach to it and each gets its own Backend. Writes are visible to all of
// them immediately and notify every attached context except the writer.
// A Medium optionally writes through to a Persister so that its contents
// survive restarts (see sqlitestore).
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/multitab/pkg/storage"
	"github.com/google/uuid"
)

// Persister makes a Medium durable. Calls are serialized by the Medium.
type Persister interface {
	Load(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Medium is the shared in-process store.
type Medium struct {
	mu        sync.Mutex
	data      map[string]string
	persister Persister
	watchers  map[*watcher]struct{}
}

// NewMedium returns an empty, memory-only medium.
func NewMedium() *Medium {
	return &Medium{
		data:     map[string]string{},
		watchers: map[*watcher]struct{}{},
	}
}

// OpenMedium returns a medium preloaded from p that writes through to it.
func OpenMedium(ctx context.Context, p Persister) (*Medium, error) {
	data, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted state: %w", err)
	}
	m := NewMedium()
	for k, v := range data {
		m.data[k] = v
	}
	m.persister = p
	return m, nil
}

// Attach returns a new context's Backend on the medium.
func (m *Medium) Attach() *Backend {
	return &Backend{medium: m, id: uuid.NewString()}
}

// Snapshot returns a copy of everything stored.
func (m *Medium) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// notify queues change for every watcher not owned by writer. Callers hold m.mu,
// which keeps delivery in write order across writers.
func (m *Medium) notify(writer string, change storage.Change) {
	for w := range m.watchers {
		if w.owner == writer {
			continue
		}
		w.box.push(change)
	}
}

// Backend is one context's handle on a Medium.
type Backend struct {
	medium *Medium
	id     string

	mu       sync.Mutex
	closed   bool
	watchers []*watcher
}

// ID returns the context identifier used to suppress self-notification.
func (b *Backend) ID() string {
	return b.id
}

func (b *Backend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Get returns the value stored under key.
func (b *Backend) Get(_ context.Context, key string) (string, bool, error) {
	if b.isClosed() {
		return "", false, storage.ErrClosed
	}
	m := b.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key and notifies the other contexts.
func (b *Backend) Set(ctx context.Context, key, value string) error {
	if b.isClosed() {
		return storage.ErrClosed
	}
	m := b.medium
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.persister != nil {
		if err := m.persister.Put(ctx, key, value); err != nil {
			return fmt.Errorf("failed to persist %q: %w", key, err)
		}
	}

	old, hadOld := m.data[key]
	m.data[key] = value
	m.notify(b.id, storage.Change{Key: key, OldValue: old, HadOld: hadOld, NewValue: value})
	return nil
}

// Remove deletes key and notifies the other contexts if it existed.
func (b *Backend) Remove(ctx context.Context, key string) error {
	if b.isClosed() {
		return storage.ErrClosed
	}
	m := b.medium
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.data[key]
	if !ok {
		return nil
	}
	if m.persister != nil {
		if err := m.persister.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete persisted %q: %w", key, err)
		}
	}

	delete(m.data, key)
	m.notify(b.id, storage.Change{Key: key, OldValue: old, HadOld: true, Removed: true})
	return nil
}

// Watch starts delivering changes made by the other contexts.
// The watcher stops when ctx is cancelled, when it is closed, or when the
// backend is closed.
func (b *Backend) Watch(ctx context.Context) (storage.Watcher, error) {
	if b.isClosed() {
		return nil, storage.ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	w := &watcher{
		owner:   b.id,
		box:     newMailbox(),
		changes: make(chan storage.Change),
		errors:  make(chan error),
		cancel:  cancel,
	}

	m := b.medium
	m.mu.Lock()
	m.watchers[w] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer close(w.errors)
		defer close(w.changes)
		defer func() {
			m.mu.Lock()
			delete(m.watchers, w)
			m.mu.Unlock()
		}()
		w.box.pump(subCtx, w.changes)
	}()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		w.Close()
		return nil, storage.ErrClosed
	}
	b.watchers = append(b.watchers, w)

	return w, nil
}

// Close detaches the context: its watchers stop and further calls fail with
// storage.ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	watchers := b.watchers
	b.watchers = nil
	b.mu.Unlock()

	for _, w := range watchers {
		w.Close()
	}
	return nil
}

type watcher struct {
	owner   string
	box     *mailbox
	changes chan storage.Change
	errors  chan error
	cancel  context.CancelFunc
	once    sync.Once
}

func (w *watcher) Changes() <-chan storage.Change { return w.changes }

func (w *watcher) Errors() <-chan error { return w.errors }

func (w *watcher) Close() error {
	w.once.Do(w.cancel)
	return nil
}
