package ratelimit

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is what the policy remembers about one bucket between worker runs.
type State struct {
	Key            Key
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	// Attempts counts consecutive throttled responses.
	Attempts  int
	UpdatedAt time.Time
	Metadata  map[string]any
}

// throttledAt reports how long the bucket stays closed at now.
func (s State) throttledAt(now time.Time) (time.Duration, bool) {
	if s.ThrottledUntil != nil && now.Before(*s.ThrottledUntil) {
		return s.ThrottledUntil.Sub(now), true
	}
	if s.Remaining == 0 && s.ResetAt != nil && now.Before(*s.ResetAt) {
		return s.ResetAt.Sub(now), true
	}
	return 0, false
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
}

// MemoryStateStore keeps throttle state for a single process.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[Key]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: map[Key]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[NormalizeKey(key)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	state.Metadata = maps.Clone(state.Metadata)
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	state.Key = NormalizeKey(state.Key)
	state.Metadata = maps.Clone(state.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Key] = state
	return nil
}
