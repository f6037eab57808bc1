// Package multitab keeps the state of several execution contexts in sync
// through a shared broadcast.Store.
//
// A Plugin is built once per context with New and installed into the
// context's state container with Install. From then on every local mutation
// is filtered and saved, and every save made by another context is merged
// back into the container.
package multitab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dyluth/multitab/pkg/broadcast"
	"github.com/dyluth/multitab/pkg/statetree"
)

// DefaultKey is the storage key used in single-blob mode when Options.Key is empty.
const DefaultKey = "vuex-multi-tab"

// ErrStorageUnavailable is returned by New when the store fails its probe.
var ErrStorageUnavailable = errors.New("local storage is not available")

// Hook transforms a state on its way to or from the store. Returning a falsy
// value (absent, null, false, 0, "" or NaN) vetoes the operation.
type Hook func(statetree.Value) statetree.Value

// Mutation describes a change committed to a Container.
type Mutation struct {
	Type    string
	Payload any
}

// Container is the host state container a Plugin is installed into.
//
// Subscribers are called after every committed mutation with the resulting
// state. Implementations must not hold their own locks while calling
// subscribers, and ReplaceState must not call subscribers at all.
type Container interface {
	State() statetree.Value
	ReplaceState(state statetree.Value)
	Subscribe(fn func(m Mutation, state statetree.Value)) (unsubscribe func())
}

// Options configures a Plugin. The zero value syncs the whole state as one blob.
type Options struct {
	// Key is the single-blob storage key. Defaults to DefaultKey.
	Key string
	// StatesPaths restricts syncing to these dotted selectors. Empty syncs everything.
	StatesPaths []string
	// SaveStoreIndividually stores each top-level slice under its own key.
	SaveStoreIndividually bool
	// OnBeforeReplace runs before a fetched state is merged. Defaults to identity.
	OnBeforeReplace Hook
	// OnBeforeSave runs before a local state is saved. Defaults to identity.
	OnBeforeSave Hook
	Logger       *slog.Logger
}

func identity(v statetree.Value) statetree.Value { return v }

// Plugin holds the validated configuration of one context.
type Plugin struct {
	store  *broadcast.Store
	opts   Options
	paths  []statetree.Path
	logger *slog.Logger
}

// New validates opts and probes store. It fails with ErrStorageUnavailable
// when the store cannot be written.
func New(ctx context.Context, store *broadcast.Store, opts Options) (*Plugin, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.OnBeforeReplace == nil {
		opts.OnBeforeReplace = identity
	}
	if opts.OnBeforeSave == nil {
		opts.OnBeforeSave = identity
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	paths, err := statetree.ParsePaths(opts.StatesPaths)
	if err != nil {
		return nil, fmt.Errorf("invalid states path: %w", err)
	}

	if !store.Available(ctx) {
		return nil, fmt.Errorf("multitab: %w", ErrStorageUnavailable)
	}

	return &Plugin{
		store:  store,
		opts:   opts,
		paths:  paths,
		logger: opts.Logger.With("component", "multitab"),
	}, nil
}

// Mode reports the topology sessions of this plugin run.
func (p *Plugin) Mode() Mode {
	if p.opts.SaveStoreIndividually {
		return ModePerNamespace
	}
	return ModeSingleBlob
}

// Install performs the initial fetch and replace on c and starts syncing it.
// Background listeners use ctx for storage calls; cancel them with Session.Close.
func (p *Plugin) Install(ctx context.Context, c Container) (*Session, error) {
	if c == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	s := &Session{
		plugin:    p,
		container: c,
		ctx:       context.WithoutCancel(ctx),
		logger:    p.logger.With("mode", p.Mode().String()),
		watched:   map[string]bool{},
	}

	var err error
	switch p.Mode() {
	case ModePerNamespace:
		err = s.startPerNamespace(ctx)
	default:
		err = s.startSingleBlob(ctx)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// selected filters state down to the configured paths. The result never
// shares structure with state.
func (p *Plugin) selected(state statetree.Value) statetree.Value {
	if len(p.paths) == 0 {
		return state.Clone()
	}
	return statetree.Filter(p.paths, state)
}
