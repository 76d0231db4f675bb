package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/recallmesh/core"
)

// Compile-time assertion
var _ core.CheckpointStore = (*InMemoryStore)(nil)

// InMemoryStore is a volatile CheckpointStore storing conversation states
// in a process local map. It is safe for concurrent access and best suited
// for tests or ephemeral demo servers. States are cloned on the way in and
// out so callers never share memory with the store.
type InMemoryStore struct {
	mu     sync.RWMutex
	closed bool
	states map[core.CheckpointKey]*core.ConversationState
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[core.CheckpointKey]*core.ConversationState)}
}

// Load returns a copy of the state saved under key.
func (s *InMemoryStore) Load(_ context.Context, key core.CheckpointKey) (*core.ConversationState, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, fmt.Errorf("%w: checkpoint store closed", core.ErrStorageUnavailable)
	}

	state, ok := s.states[key]
	if !ok {
		return nil, false, nil
	}

	return state.Clone(), true, nil
}

// Save overwrites the state under key with a copy of state. Recall memories
// are transient and dropped.
func (s *InMemoryStore) Save(_ context.Context, key core.CheckpointKey, state *core.ConversationState) error {
	if err := key.Validate(); err != nil {
		return err
	}

	snapshot := state.Clone()
	snapshot.RecallMemories = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: checkpoint store closed", core.ErrStorageUnavailable)
	}

	s.states[key] = snapshot

	return nil
}

// Len returns the number of stored checkpoints.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.states)
}

// Close makes every later call fail with ErrStorageUnavailable.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}
