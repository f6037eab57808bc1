package multitab

import (
	"context"

	"github.com/dyluth/multitab/pkg/statetree"
)

func (s *Session) startPerNamespace(ctx context.Context) error {
	cancel, err := s.plugin.store.OnIndexChange(s.ctx, s.onRemoteNamespace)
	if err != nil {
		return err
	}
	s.track(cancel)

	s.mu.Lock()
	names := s.refresh(ctx)
	s.synced.Store(true)
	err = s.watchNamespaces(names)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.subscribe(s.onLocalNamespaces)
	return nil
}

// composite reads the index and every namespace it lists. Missing or
// malformed namespaces are left out. It reports false when there is no usable
// index.
func (s *Session) composite(ctx context.Context) (statetree.Value, []string, bool) {
	store := s.plugin.store
	names, ok := store.ListNamespaces(ctx)
	if !ok {
		return statetree.Value{}, names, false
	}
	m := statetree.NewMap()
	for _, name := range names {
		state, ok := store.FetchNamespace(ctx, name)
		if !ok {
			continue
		}
		m.Set(name, state)
	}
	return statetree.FromMap(m), names, true
}

// refresh replaces the container with the current composite and returns the
// names found in the index. A missing or malformed index means nothing usable
// is stored and leaves the container alone; a stored empty index replaces
// with an empty composite so removals propagate. Callers hold s.mu.
func (s *Session) refresh(ctx context.Context) []string {
	state, names, ok := s.composite(ctx)
	if !ok {
		return names
	}
	s.replace(state)
	return names
}

// watchNamespaces registers a change listener for every name not watched yet.
// Callers hold s.mu.
func (s *Session) watchNamespaces(names []string) error {
	for _, name := range names {
		if s.watched[name] {
			continue
		}
		cancel, err := s.plugin.store.OnNamespaceChange(s.ctx, name, s.onRemoteNamespace)
		if err != nil {
			return err
		}
		if !s.track(cancel) {
			return nil
		}
		s.watched[name] = true
	}
	return nil
}

// onRemoteNamespace re-reads every namespace whichever one changed, so that
// namespaces added or removed concurrently still yield a consistent composite.
func (s *Session) onRemoteNamespace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return
	}

	names := s.refresh(s.ctx)
	if err := s.watchNamespaces(names); err != nil {
		s.logger.Warn("failed to watch namespaces", "error", err)
	}
}

func (s *Session) onLocalNamespaces(m Mutation, state statetree.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return
	}

	toSave, ok := s.prepareSave(state)
	if !ok {
		return
	}
	if toSave.Kind() != statetree.KindMap {
		s.logger.Warn("state to save is not a map of namespaces", "mutation", m.Type, "kind", toSave.Kind().String())
		return
	}

	store := s.plugin.store
	names := toSave.Keys()
	if err := store.SaveNamespaceIndex(s.ctx, names); err != nil {
		s.logger.Warn("failed to save namespace index", "mutation", m.Type, "error", err)
	}
	for _, name := range names {
		value, _ := toSave.Lookup(name)
		if err := store.SaveNamespace(s.ctx, name, value); err != nil {
			s.logger.Warn("failed to save namespace", "namespace", name, "mutation", m.Type, "error", err)
		}
	}
	if err := s.watchNamespaces(names); err != nil {
		s.logger.Warn("failed to watch namespaces", "error", err)
	}
}
