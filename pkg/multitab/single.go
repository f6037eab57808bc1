package multitab

import (
	"context"

	"github.com/dyluth/multitab/pkg/statetree"
)

func (s *Session) startSingleBlob(ctx context.Context) error {
	store, key := s.plugin.store, s.plugin.opts.Key

	s.mu.Lock()
	if state, ok := store.Fetch(ctx, key); ok {
		s.replace(state)
	}
	s.synced.Store(true)
	s.mu.Unlock()

	cancel, err := store.OnExternalChange(s.ctx, key, s.onRemoteBlob)
	if err != nil {
		return err
	}
	s.track(cancel)

	s.subscribe(s.onLocalBlob)
	return nil
}

func (s *Session) onRemoteBlob(state statetree.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return
	}
	s.replace(state)
}

func (s *Session) onLocalBlob(m Mutation, state statetree.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return
	}

	toSave, ok := s.prepareSave(state)
	if !ok {
		return
	}
	if err := s.plugin.store.Save(s.ctx, s.plugin.opts.Key, toSave); err != nil {
		s.logger.Warn("failed to save state", "mutation", m.Type, "error", err)
	}
}
