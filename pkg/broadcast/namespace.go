package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/multitab/pkg/statetree"
	"github.com/dyluth/multitab/pkg/storage"
)

const (
	// IndexKey holds the JSON list of namespace names.
	IndexKey = "vuex-storekeys"
	// NamespacePrefix prefixes the key of every namespace blob.
	NamespacePrefix = "vuex-store-"
)

// NamespaceKey returns the storage key for a namespace.
func NamespaceKey(name string) string {
	return NamespacePrefix + name
}

// SaveNamespace writes {id, storeState} under the namespace key.
func (s *Store) SaveNamespace(ctx context.Context, name string, state statetree.Value) error {
	raw, err := encodeEnvelope(s.origin, state, true)
	if err != nil {
		return err
	}
	key := NamespaceKey(name)
	if err := s.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save namespace %q: %w", name, err)
	}
	return nil
}

// FetchNamespace reads a namespace blob. It behaves like Fetch.
func (s *Store) FetchNamespace(ctx context.Context, name string) (statetree.Value, bool) {
	return s.fetch(ctx, NamespaceKey(name), true)
}

// ListNamespaces returns the names in the index and whether a usable index
// exists. A missing, unreadable or malformed index reports false (malformed
// ones are logged); a stored empty list reports true with no names. Entries
// written with the key prefix are stripped back to bare names.
func (s *Store) ListNamespaces(ctx context.Context) ([]string, bool) {
	raw, ok, err := s.backend.Get(ctx, IndexKey)
	if err != nil {
		s.logger.Warn("failed to read namespace index", "error", err)
		return []string{}, false
	}
	if !ok || raw == "" {
		return []string{}, false
	}
	names, err := parseIndex(raw)
	if err != nil {
		s.logger.Warn("namespace index is invalid", "error", err)
		return []string{}, false
	}
	return names, true
}

func parseIndex(raw string) ([]string, error) {
	v, err := statetree.Decode([]byte(raw))
	if err != nil {
		return nil, err
	}
	if v.Kind() != statetree.KindArray {
		return nil, fmt.Errorf("expected a list, got %s", v.Kind())
	}
	names := make([]string, 0, v.Len())
	for i, e := range v.Elements() {
		name, ok := e.AsString()
		if !ok {
			return nil, fmt.Errorf("entry %d is a %s, not a string", i, e.Kind())
		}
		names = append(names, strings.TrimPrefix(name, NamespacePrefix))
	}
	return names, nil
}

// SaveNamespaceIndex rewrites the index with names, in order. The index is
// stored as a bare JSON list without an envelope.
func (s *Store) SaveNamespaceIndex(ctx context.Context, names []string) error {
	elems := make([]statetree.Value, len(names))
	for i, n := range names {
		elems[i] = statetree.String(n)
	}
	data, err := statetree.Encode(statetree.Array(elems...))
	if err != nil {
		return fmt.Errorf("failed to marshal namespace index: %w", err)
	}
	if err := s.backend.Set(ctx, IndexKey, string(data)); err != nil {
		return fmt.Errorf("failed to save namespace index: %w", err)
	}
	return nil
}

// OnNamespaceChange calls onChanged whenever another context writes the
// namespace. The payload is not passed on: listeners re-read what they need.
func (s *Store) OnNamespaceChange(ctx context.Context, name string, onChanged func()) (func(), error) {
	return s.listen(ctx, NamespaceKey(name), func(c storage.Change) {
		if _, ok := s.foreignEnvelope(c, true); ok {
			onChanged()
		}
	})
}

// OnIndexChange calls onChanged whenever another context writes the index.
// The index carries no origin tag; the backend already withholds this
// context's own writes.
func (s *Store) OnIndexChange(ctx context.Context, onChanged func()) (func(), error) {
	return s.listen(ctx, IndexKey, func(c storage.Change) {
		if c.Removed || c.NewValue == "" || c.NewValue == c.OldValue {
			return
		}
		onChanged()
	})
}
