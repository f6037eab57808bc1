package multitab

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dyluth/multitab/pkg/statetree"
)

// Mode selects the propagation topology.
type Mode int

const (
	// ModeSingleBlob stores the filtered state under one key.
	ModeSingleBlob Mode = iota
	// ModePerNamespace stores each top-level slice under its own key plus an index.
	ModePerNamespace
)

func (m Mode) String() string {
	switch m {
	case ModeSingleBlob:
		return "single-blob"
	case ModePerNamespace:
		return "per-namespace"
	default:
		return "unknown"
	}
}

// Session is a Plugin installed into one Container.
//
// Local saves and remote replaces of a session never interleave.
type Session struct {
	plugin    *Plugin
	container Container
	ctx       context.Context
	logger    *slog.Logger

	// mu serializes handlers.
	mu     sync.Mutex
	synced atomic.Bool

	lmu         sync.Mutex
	closed      bool
	unsubscribe func()
	cancels     []func()
	watched     map[string]bool
}

// Mode reports the session's topology.
func (s *Session) Mode() Mode {
	return s.plugin.Mode()
}

// Synced reports whether the initial fetch has completed.
func (s *Session) Synced() bool {
	return s.synced.Load()
}

// Close unsubscribes from the container and drops every store listener.
// It must not be called from inside a Container subscriber.
func (s *Session) Close() error {
	s.lmu.Lock()
	if s.closed {
		s.lmu.Unlock()
		return nil
	}
	s.closed = true
	unsubscribe, cancels := s.unsubscribe, s.cancels
	s.unsubscribe, s.cancels = nil, nil
	s.lmu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	return s.closed
}

// track keeps cancel for Close. It reports false, after cancelling, when the
// session is already closed.
func (s *Session) track(cancel func()) bool {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	if s.closed {
		cancel()
		return false
	}
	s.cancels = append(s.cancels, cancel)
	return true
}

func (s *Session) subscribe(fn func(Mutation, statetree.Value)) {
	unsubscribe := s.container.Subscribe(fn)

	s.lmu.Lock()
	defer s.lmu.Unlock()
	if s.closed {
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
}

// replace runs the pre-replace hook on incoming and merges the result into
// the container. Callers hold s.mu.
func (s *Session) replace(incoming statetree.Value) {
	adjusted := s.plugin.opts.OnBeforeReplace(incoming)
	if !adjusted.Truthy() {
		s.logger.Debug("replace vetoed")
		return
	}
	merged := statetree.Merge(s.container.State(), adjusted, s.plugin.paths)
	s.container.ReplaceState(merged)
}

// prepareSave filters state and runs the pre-save hook. It reports false
// when the hook vetoes.
func (s *Session) prepareSave(state statetree.Value) (statetree.Value, bool) {
	toSave := s.plugin.opts.OnBeforeSave(s.plugin.selected(state))
	if !toSave.Truthy() {
		s.logger.Debug("save vetoed")
		return statetree.Value{}, false
	}
	return toSave, true
}
