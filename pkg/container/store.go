// Package container is a minimal state container that satisfies
// multitab.Container. The CLI hosts one per context and the tests use it as
// the host application.
package container

import (
	"fmt"
	"sync"

	"github.com/dyluth/multitab/pkg/multitab"
	"github.com/dyluth/multitab/pkg/statetree"
)

// Subscriber is notified after every commit.
type Subscriber func(m multitab.Mutation, state statetree.Value)

// Store holds one state tree. Commits are serialized and subscribers see them
// in commit order.
type Store struct {
	// commitMu orders commits together with their notifications.
	commitMu sync.Mutex

	mu     sync.Mutex
	state  statetree.Value
	subs   []subscription
	nextID int
}

type subscription struct {
	id int
	fn Subscriber
}

// New returns a store holding a copy of initial. An absent initial state
// starts as an empty map.
func New(initial statetree.Value) *Store {
	if initial.IsAbsent() {
		initial = statetree.Object()
	}
	return &Store{state: initial.Clone()}
}

// State returns a copy of the current state.
func (s *Store) State() statetree.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// ReplaceState swaps the whole state without notifying subscribers.
func (s *Store) ReplaceState(state statetree.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
}

// Commit applies fn to the state and then notifies every subscriber with a
// copy of the result. The state lock is released before subscribers run.
func (s *Store) Commit(mutationType string, payload any, fn func(state *statetree.Value)) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	after := s.state.Clone()
	subs := append([]subscription(nil), s.subs...)
	s.mu.Unlock()

	m := multitab.Mutation{Type: mutationType, Payload: payload}
	for _, sub := range subs {
		sub.fn(m, after.Clone())
	}
}

// Set commits a "set" mutation writing value at selector.
func (s *Store) Set(selector string, value statetree.Value) error {
	p, err := statetree.ParsePath(selector)
	if err != nil {
		return fmt.Errorf("invalid selector: %w", err)
	}
	s.Commit("set", selector, func(state *statetree.Value) {
		state.SetPath(p, value.Clone())
	})
	return nil
}

// Delete commits a "delete" mutation removing selector.
func (s *Store) Delete(selector string) error {
	p, err := statetree.ParsePath(selector)
	if err != nil {
		return fmt.Errorf("invalid selector: %w", err)
	}
	s.Commit("delete", selector, func(state *statetree.Value) {
		state.DeletePath(p)
	})
	return nil
}

// Subscribe registers fn and returns a func that unregisters it.
func (s *Store) Subscribe(fn func(m multitab.Mutation, state statetree.Value)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
		})
	}
}

var _ multitab.Container = (*Store)(nil)
