// Package checkpoint persists per-thread workflow state between stages and
// between turns.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/aiox-platform/companion/internal/state"
)

// Checkpoint is the last saved progress of a thread.
type Checkpoint struct {
	State *state.TurnState `json:"state"`
	// MessageID identifies the inbound message of the turn in progress.
	MessageID string `json:"message_id"`
	// Stage is the last completed stage of that turn.
	Stage     string    `json:"stage"`
	Done      bool      `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is keyed by thread id. Load returns nil, nil for an unknown thread.
type Store interface {
	Load(ctx context.Context, threadID string) (*Checkpoint, error)
	Save(ctx context.Context, threadID string, cp *Checkpoint) error
	Ping(ctx context.Context) error
}

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Checkpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Checkpoint)}
}

func (m *MemoryStore) Load(_ context.Context, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.data[threadID]
	if !ok {
		return nil, nil
	}
	return clone(cp), nil
}

func (m *MemoryStore) Save(_ context.Context, threadID string, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[threadID] = clone(cp)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func clone(cp *Checkpoint) *Checkpoint {
	c := *cp
	if cp.State != nil {
		c.State = cp.State.Clone()
	}
	return &c
}
