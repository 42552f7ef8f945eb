package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

const samplePatch = `{
  "schemaVersion": "1",
  "baseGraphVersion": "graph-0000000000000001",
  "operations": [
    {"kind": "addNode", "node": {"id": "C", "label": "Stress", "styleClass": "mechanism"}},
    {"kind": "updateEdgeStrength", "targetEdgeID": "e2", "edgeStrength": -0.5},
    {"kind": "approveAlias", "aliasOverride": {"signature": "sig", "label": "TMJ"}}
  ],
  "explanations": ["stress feeds clenching"]
}`

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(samplePatch))
	require.NoError(t, err)

	assert.Equal(t, "1", env.SchemaVersion)
	assert.Equal(t, "graph-0000000000000001", env.BaseGraphVersion)
	require.Len(t, env.Operations, 3)

	add, ok := env.Operations[0].(AddNode)
	require.True(t, ok)
	assert.Equal(t, graph.StyleMechanism, add.Node.StyleClass)

	str, ok := env.Operations[1].(UpdateEdgeStrength)
	require.True(t, ok)
	assert.Equal(t, "e2", str.TargetEdgeID)
	assert.Equal(t, -0.5, *str.EdgeStrength)

	approve, ok := env.Operations[2].(ApproveAlias)
	require.True(t, ok)
	assert.Equal(t, "TMJ", approve.Override.Label)
	assert.Equal(t, []string{"stress feeds clenching"}, env.Explanations)
}

func TestDecodeEnvelopeRejectsUnknownKind(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"schemaVersion":"1","baseGraphVersion":"x","operations":[{"kind":"mergeNodes"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mergeNodes")
}

func TestEnvelopeEncodesOnlyRelevantFields(t *testing.T) {
	env := envelope("v", RemoveEdge{TargetEdgeID: "e1"})
	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"schemaVersion":"1","baseGraphVersion":"v","operations":[{"kind":"removeEdge","targetEdgeID":"e1"}]}`, string(data))

	back, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.Operations, back.Operations)
}

func TestSummarizeAndFilter(t *testing.T) {
	env := envelope("v",
		RemoveEdge{TargetEdgeID: "e1"},
		AddNode{Node: &graph.Node{ID: "C"}},
		AddNode{Node: &graph.Node{ID: "D"}},
	)
	assert.Equal(t, []KindCount{
		{Kind: KindAddNode, Count: 2},
		{Kind: KindRemoveEdge, Count: 1},
	}, Summarize(env))

	filtered := Filter(env, map[int]bool{0: true})
	assert.Len(t, filtered.Operations, 2)
	assert.Len(t, env.Operations, 3)
}
