package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

func TestRebaseSameVersionPassesThrough(t *testing.T) {
	d := fixtureDiagram()
	env := envelope(d.GraphVersion, RemoveNode{TargetNodeID: "A"})
	env.Explanations = []string{"why"}

	out, conflicts := Rebase(env, d)
	assert.Empty(t, conflicts)
	assert.Equal(t, env, out)
}

func TestRebaseAdditiveOperationsNeverConflict(t *testing.T) {
	d := fixtureDiagram()
	env := envelope("graph-stale",
		AddNode{Node: &graph.Node{ID: "C"}},
		AddEdge{Edge: &graph.Edge{Source: "A", Target: "B"}},
		ProposeAlias{Proposal: &AliasProposal{Signature: "s"}},
		ApproveAlias{Override: &AliasOverride{Signature: "s"}},
		RejectAlias{Proposal: &AliasProposal{Signature: "s"}},
	)

	out, conflicts := Rebase(env, d)
	assert.Empty(t, conflicts)
	assert.Equal(t, d.GraphVersion, out.BaseGraphVersion)
	assert.Equal(t, env.Operations, out.Operations)
}

func TestRebaseFlagsEveryDestructiveOperation(t *testing.T) {
	d := fixtureDiagram()
	env := envelope("graph-stale",
		AddNode{Node: &graph.Node{ID: "C"}},
		UpdateNode{TargetNodeID: "A", Node: &graph.Node{ID: "A"}},
		RemoveNode{TargetNodeID: "B"},
		UpdateEdge{TargetEdgeID: "e1", Edge: &graph.Edge{}},
		RemoveEdge{TargetEdgeID: "e1"},
		UpdateEdgeStrength{TargetEdgeID: "e2", EdgeStrength: graph.Ptr(0.1)},
	)

	out, conflicts := Rebase(env, d)
	require.Len(t, conflicts, 5)
	indices := make([]int, len(conflicts))
	for i, c := range conflicts {
		indices[i] = c.OperationIndex
		assert.Contains(t, c.Message, "graph-stale")
		assert.Contains(t, c.Message, d.GraphVersion)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, indices)
	assert.Equal(t, KindUpdateNode, conflicts[0].Kind)
	assert.Equal(t, d.GraphVersion, out.BaseGraphVersion)
}

func TestRebaseUnversionedDiagramKeepsBase(t *testing.T) {
	env := envelope("graph-old", RemoveNode{TargetNodeID: "A"})
	out, conflicts := Rebase(env, graph.Diagram{})
	assert.Len(t, conflicts, 1)
	assert.Equal(t, "graph-old", out.BaseGraphVersion)
}
