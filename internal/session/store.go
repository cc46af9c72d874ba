package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound indicates a lookup for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// Store is an in-memory session registry keyed by UUID. Each client gets
// its own transcript over the shared stateless engine.
//
// Safe for concurrent use. Sessions live for the process lifetime; there
// is no durable persistence.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*State
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]*State)}
}

// Create adds a fresh session and returns it.
func (st *Store) Create() *State {
	s := NewState()
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given ID.
func (st *Store) Get(id uuid.UUID) (*State, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session. Deleting an unknown ID is a no-op.
func (st *Store) Delete(id uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
