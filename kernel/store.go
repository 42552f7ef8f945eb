package kernel

import (
	"context"
	"sync"
	"time"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
	"github.com/TomHumphrey150/OpenJaw-sub004/patch"
)

// Snapshot is the persisted state of a kernel.
type Snapshot struct {
	Diagram        graph.Diagram         `json:"diagram"`
	AliasOverrides []patch.AliasOverride `json:"aliasOverrides"`
}

// Checkpoint is an immutable diagram snapshot taken after a committed mutation.
type Checkpoint struct {
	ID           string        `json:"id"`
	GraphVersion string        `json:"graphVersion"`
	CreatedAt    time.Time     `json:"createdAt"`
	Diagram      graph.Diagram `json:"diagram"`
}

// Store persists the live diagram. The kernel saves after every successful
// apply, replace and rollback and never retries on failure.
type Store interface {
	LoadSnapshot(ctx context.Context) (Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// CheckpointStore is implemented by stores that also keep checkpoint history.
type CheckpointStore interface {
	AppendCheckpoint(ctx context.Context, cp Checkpoint) error
	ListCheckpoints(ctx context.Context) ([]Checkpoint, error)
}

// CommitStore is implemented by checkpoint stores that can save the head
// and a new checkpoint atomically. Either both are persisted or neither is.
type CommitStore interface {
	SaveCommit(ctx context.Context, snap Snapshot, cp Checkpoint) error
}

// Content supplies the canonical fallback diagram and the legacy migration
// used when hydrating.
type Content interface {
	FallbackDiagram() graph.Diagram
	Migrate(d graph.Diagram) (graph.Diagram, int)
}

// MemoryStore is an in-memory Store and CheckpointStore.
type MemoryStore struct {
	mu          sync.Mutex
	snap        *Snapshot
	checkpoints []Checkpoint
	saves       int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadSnapshot implements Store.
func (m *MemoryStore) LoadSnapshot(ctx context.Context) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return Snapshot{}, false, nil
	}
	return cloneSnapshot(*m.snap), true, nil
}

// SaveSnapshot implements Store.
func (m *MemoryStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := cloneSnapshot(snap)
	m.snap = &s
	m.saves++
	return nil
}

// AppendCheckpoint implements CheckpointStore.
func (m *MemoryStore) AppendCheckpoint(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp.Diagram = cp.Diagram.Clone()
	m.checkpoints = append(m.checkpoints, cp)
	return nil
}

// SaveCommit implements CommitStore.
func (m *MemoryStore) SaveCommit(ctx context.Context, snap Snapshot, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := cloneSnapshot(snap)
	m.snap = &s
	m.saves++
	cp.Diagram = cp.Diagram.Clone()
	m.checkpoints = append(m.checkpoints, cp)
	return nil
}

// ListCheckpoints implements CheckpointStore.
func (m *MemoryStore) ListCheckpoints(ctx context.Context) ([]Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCheckpoints(m.checkpoints), nil
}

// Saves returns how many snapshots have been saved.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneSnapshot(s Snapshot) Snapshot {
	return Snapshot{
		Diagram:        s.Diagram.Clone(),
		AliasOverrides: append([]patch.AliasOverride(nil), s.AliasOverrides...),
	}
}

func cloneCheckpoints(in []Checkpoint) []Checkpoint {
	out := make([]Checkpoint, len(in))
	for i, cp := range in {
		cp.Diagram = cp.Diagram.Clone()
		out[i] = cp
	}
	return out
}
