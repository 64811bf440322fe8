package collect

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// CheckpointStore persists LoopState between passes. The Loop Manager
// calls Save after every pass and Load once at startup, so a --Loop run
// can be restarted without losing the pass count.
type CheckpointStore interface {
	Save(ctx context.Context, state *LoopState) error
	Load(ctx context.Context, runID uuid.UUID) (*LoopState, error)
}

// MemCheckpointStore is a thread-safe in-memory CheckpointStore, adapted
// from the teacher's memory.CheckpointStorage.
type MemCheckpointStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]*LoopState
}

// NewMemCheckpointStore returns an empty in-memory store.
func NewMemCheckpointStore() *MemCheckpointStore {
	return &MemCheckpointStore{states: make(map[uuid.UUID]*LoopState)}
}

func (s *MemCheckpointStore) Save(ctx context.Context, state *LoopState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.RunID] = copyLoopState(state)
	return nil
}

func (s *MemCheckpointStore) Load(ctx context.Context, runID uuid.UUID) (*LoopState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[runID]
	if !ok {
		return nil, nil
	}
	return copyLoopState(state), nil
}

// copyLoopState deep-copies state so neither caller can mutate what the
// store holds after Save/Load returns.
func copyLoopState(state *LoopState) *LoopState {
	copied := *state
	if state.LastCheckpoint != nil {
		cp := *state.LastCheckpoint
		copied.LastCheckpoint = &cp
	}
	return &copied
}
