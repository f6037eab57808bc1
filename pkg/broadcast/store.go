package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dyluth/multitab/pkg/statetree"
	"github.com/dyluth/multitab/pkg/storage"
)

// ProbeKey is written and removed by Available.
const ProbeKey = "vuex-multi-tab-state-test"

// Option configures a Store.
type Option func(*Store)

// WithOriginTag fixes the store's origin tag instead of generating one.
func WithOriginTag(tag OriginTag) Option {
	return func(s *Store) {
		if tag != "" {
			s.origin = tag
		}
	}
}

// WithLogger sets the logger used for recoverable failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is the persistence and pub/sub facade over a storage.Backend.
//
// Writes are wrapped in envelopes tagged with the store's OriginTag. Incoming
// change notifications are decoded, checked against the tag, and handed to the
// listeners registered for their key. Listeners run one at a time on a single
// dispatch goroutine, in the order the backend delivered the changes.
type Store struct {
	backend storage.Backend
	origin  OriginTag
	logger  *slog.Logger

	mu        sync.Mutex
	listeners map[string][]*listener
	nextID    int
	watcher   storage.Watcher
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool
}

type listener struct {
	id int
	fn func(storage.Change)
}

// NewStore wraps backend. The origin tag is generated unless WithOriginTag is given.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		origin:    NewOriginTag(),
		logger:    slog.Default(),
		listeners: map[string][]*listener{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "broadcast", "origin", string(s.origin))
	return s
}

// Origin returns the store's origin tag.
func (s *Store) Origin() OriginTag {
	return s.origin
}

// Available probes the backend with a throwaway write and delete.
func (s *Store) Available(ctx context.Context) bool {
	if err := s.backend.Set(ctx, ProbeKey, ProbeKey); err != nil {
		s.logger.Debug("storage probe write failed", "error", err)
		return false
	}
	if err := s.backend.Remove(ctx, ProbeKey); err != nil {
		s.logger.Debug("storage probe delete failed", "error", err)
		return false
	}
	return true
}

// Save writes {id, state} under key. Other contexts sharing the backend are
// notified by the backend.
func (s *Store) Save(ctx context.Context, key string, state statetree.Value) error {
	raw, err := encodeEnvelope(s.origin, state, false)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	return nil
}

// Fetch reads the envelope under key and returns its state. It reports false
// when the key is missing, unreadable or malformed; malformed data is logged.
// The returned state is absent when the envelope carries none.
func (s *Store) Fetch(ctx context.Context, key string) (statetree.Value, bool) {
	return s.fetch(ctx, key, false)
}

func (s *Store) fetch(ctx context.Context, key string, namespaced bool) (statetree.Value, bool) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read state", "key", key, "error", err)
		return statetree.Value{}, false
	}
	if !ok || raw == "" {
		return statetree.Value{}, false
	}
	env, err := decodeEnvelope(raw, namespaced)
	if err != nil {
		s.logger.Warn("stored state is invalid", "key", key, "error", err)
		return statetree.Value{}, false
	}
	return env.State, true
}

// OnExternalChange calls onChanged with the state of every envelope written
// under key by another context. Notifications for other keys, removals,
// unparsable payloads and envelopes carrying this store's own origin tag are
// dropped. The returned func unregisters the listener.
func (s *Store) OnExternalChange(ctx context.Context, key string, onChanged func(statetree.Value)) (func(), error) {
	return s.listen(ctx, key, func(c storage.Change) {
		env, ok := s.foreignEnvelope(c, false)
		if !ok {
			return
		}
		onChanged(env.State)
	})
}

// foreignEnvelope decodes the change's new value and reports whether it came
// from another context.
func (s *Store) foreignEnvelope(c storage.Change, namespaced bool) (Envelope, bool) {
	if c.Removed || c.NewValue == "" {
		return Envelope{}, false
	}
	env, err := decodeEnvelope(c.NewValue, namespaced)
	if err != nil {
		s.logger.Warn("new state is invalid", "key", c.Key, "error", err)
		return Envelope{}, false
	}
	if env.ID == s.origin {
		return Envelope{}, false
	}
	return env, true
}

// listen registers fn for key and makes sure the dispatch goroutine runs.
func (s *Store) listen(ctx context.Context, key string, fn func(storage.Change)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	if s.watcher == nil {
		if err := s.startLocked(ctx); err != nil {
			return nil, err
		}
	}

	s.nextID++
	l := &listener{id: s.nextID, fn: fn}
	s.listeners[key] = append(s.listeners[key], l)

	var once sync.Once
	return func() {
		once.Do(func() { s.unlisten(key, l.id) })
	}, nil
}

func (s *Store) unlisten(key string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls := s.listeners[key]
	for i, l := range ls {
		if l.id == id {
			s.listeners[key] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(s.listeners[key]) == 0 {
		delete(s.listeners, key)
	}
}

// startLocked opens the backend watch and starts dispatching. Callers hold s.mu.
func (s *Store) startLocked(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w, err := s.backend.Watch(watchCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch storage: %w", err)
	}
	s.watcher = w
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.dispatch(w, s.done)
	return nil
}

func (s *Store) dispatch(w storage.Watcher, done chan struct{}) {
	defer close(done)

	changes, errs := w.Changes(), w.Errors()
	for changes != nil || errs != nil {
		select {
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			for _, l := range s.snapshot(c.Key) {
				l.fn(c)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("storage watch error", "error", err)
		}
	}
}

func (s *Store) snapshot(key string) []*listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*listener(nil), s.listeners[key]...)
}

// Close stops dispatching and drops every listener. It does not close the
// backend. Close waits for a running listener to return, so it must not be
// called from inside one.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.listeners = map[string][]*listener{}
	w, cancel, done := s.watcher, s.cancel, s.done
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	w.Close()
	cancel()
	<-done
	return nil
}
