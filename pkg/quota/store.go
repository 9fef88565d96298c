package quota

import (
	"context"
	"sync"
)

// Store persists quota counter state across restarts.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load retrieves the persisted state.
	// Returns nil if no state has been saved. Returns error on failure.
	Load(ctx context.Context) (*State, error)

	// Save persists the state, replacing any previous snapshot.
	Save(ctx context.Context, state *State) error

	// Close releases any resources held by the store.
	// The store should not be used after calling Close.
	Close() error
}

// MemoryStore implements Store with in-process storage only.
// This is the default backend; counters are lost when the process exits.
type MemoryStore struct {
	state *State
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load retrieves the stored state, or nil if nothing has been saved.
func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state == nil {
		return nil, nil
	}

	// Copy so callers cannot mutate the stored snapshot.
	state := *m.state
	return &state, nil
}

// Save replaces the stored state.
func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := *state
	m.state = &snapshot
	return nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
