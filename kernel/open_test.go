package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
	"github.com/TomHumphrey150/OpenJaw-sub004/patch"
)

// stubContent marks every node without an explicit flag as active.
type stubContent struct {
	fallback graph.Diagram
}

func (s stubContent) FallbackDiagram() graph.Diagram { return s.fallback.Clone() }

func (s stubContent) Migrate(d graph.Diagram) (graph.Diagram, int) {
	out := d.Clone()
	n := 0
	for i := range out.Nodes {
		if out.Nodes[i].IsDeactivated == nil {
			out.Nodes[i].IsDeactivated = graph.Ptr(out.Nodes[i].IsDormant())
			n++
		}
	}
	return out, n
}

func TestOpenUsesFallbackWhenNothingPersisted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	k, err := Open(ctx, store, stubContent{fallback: seed()}, WithClock(fixedClock()))
	require.NoError(t, err)

	d := k.CurrentDiagram()
	assert.Len(t, d.Nodes, 3)
	for _, n := range d.Nodes {
		require.NotNil(t, n.IsDeactivated)
	}
	assert.Len(t, k.CheckpointHistory(), 1)

	snap, ok, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d.GraphVersion, snap.Diagram.GraphVersion)
}

func TestOpenRestoresPersistedStateAndHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	content := stubContent{fallback: seed()}

	first, err := Open(ctx, store, content, WithClock(fixedClock()))
	require.NoError(t, err)
	res, err := first.Apply(ctx, env(first.CurrentDiagram().GraphVersion,
		patch.AddNode{Node: &graph.Node{ID: "C", IsDeactivated: graph.Ptr(false)}},
		patch.ApproveAlias{Override: &patch.AliasOverride{Signature: "sig", Label: "TMJ"}},
	), nil)
	require.NoError(t, err)

	saves := store.Saves()

	second, err := Open(ctx, store, content, WithClock(fixedClock()))
	require.NoError(t, err)
	assert.Equal(t, res.Diagram.GraphVersion, second.CurrentDiagram().GraphVersion)
	assert.Equal(t, res.AliasOverrides, second.AliasOverrides())
	assert.True(t, res.Diagram.LastModified.Equal(second.CurrentDiagram().LastModified))
	assert.Len(t, second.CheckpointHistory(), 2, "nothing new to checkpoint on a clean reopen")
	assert.Equal(t, saves, store.Saves(), "a clean reopen writes nothing")
}

func TestOpenPersistsWhenMigrated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	legacy := seed().WithVersion()
	legacy.LastModified = t0
	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{Diagram: legacy}))
	require.NoError(t, store.AppendCheckpoint(ctx, Checkpoint{ID: "cp-0", GraphVersion: legacy.GraphVersion, Diagram: legacy}))

	k, err := Open(ctx, store, stubContent{}, WithClock(fixedClock()))
	require.NoError(t, err)
	assert.Len(t, k.CheckpointHistory(), 2)
	assert.Equal(t, 2, store.Saves())

	snap, _, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	for _, n := range snap.Diagram.Nodes {
		assert.NotNil(t, n.IsDeactivated, n.ID)
	}
}

func TestOpenWithoutContentStartsEmpty(t *testing.T) {
	k, err := Open(context.Background(), NewMemoryStore(), nil)
	require.NoError(t, err)
	d := k.CurrentDiagram()
	assert.Empty(t, d.Nodes)
	assert.Equal(t, graph.Fingerprint(nil, nil), d.GraphVersion)
}
