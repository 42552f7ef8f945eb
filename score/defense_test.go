package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

const tol = 1e-12

func node(id string, class graph.StyleClass) graph.Node {
	return graph.Node{ID: id, Label: id, StyleClass: class}
}

func edge(src, dst string) graph.Edge {
	return graph.Edge{Source: src, Target: dst}
}

// diamond is TX_A -> A -> {B, C} -> D.
func diamond() graph.Diagram {
	return graph.Diagram{
		Nodes: []graph.Node{
			node("TX_A", graph.StyleIntervention),
			node("A", graph.StyleMechanism),
			node("B", graph.StyleMechanism),
			node("C", graph.StyleMechanism),
			node("D", graph.StyleSymptom),
		},
		Edges: []graph.Edge{
			edge("TX_A", "A"),
			edge("A", "B"),
			edge("A", "C"),
			edge("B", "D"),
			edge("C", "D"),
		},
	}
}

func TestComputeDiamondScenario(t *testing.T) {
	scores := Compute(diamond(), map[string]float64{"TX_A": 0.1})

	require.Len(t, scores, 4)
	assert.NotContains(t, scores, "TX_A")
	assert.InDelta(t, 0.1, scores["A"].Score, tol)
	assert.InDelta(t, 0.08, scores["B"].Score, tol)
	assert.InDelta(t, 0.08, scores["C"].Score, tol)
	assert.InDelta(t, 0.064, scores["D"].Score, tol)

	assert.True(t, scores["A"].IsDirect)
	assert.False(t, scores["B"].IsDirect)
	assert.False(t, scores["D"].IsDirect)
}

func TestComputeCascadeNonAmplification(t *testing.T) {
	for _, s := range []float64{0.05, 0.3, 0.75, 1} {
		scores := Compute(diamond(), map[string]float64{"TX_A": s})
		assert.InDelta(t, s, scores["A"].Score, tol)
		assert.InDelta(t, s*CascadeDecay, scores["B"].Score, tol)
		assert.InDelta(t, s*CascadeDecay, scores["C"].Score, tol)
		assert.InDelta(t, s*CascadeDecay*CascadeDecay, scores["D"].Score, tol)
		assert.LessOrEqual(t, scores["D"].Score, scores["A"].Score)
	}
}

func TestComputeBestPathNotSum(t *testing.T) {
	d := graph.Diagram{
		Nodes: []graph.Node{
			node("TX", graph.StyleIntervention),
			node("A", graph.StyleMechanism),
			node("B", graph.StyleMechanism),
			node("D", graph.StyleMechanism),
		},
		Edges: []graph.Edge{edge("TX", "A"), edge("A", "B"), edge("B", "D"), edge("A", "D")},
	}
	scores := Compute(d, map[string]float64{"TX": 0.5})
	assert.InDelta(t, 0.5*CascadeDecay, scores["D"].Score, tol)
}

func TestComputeNoisyORBound(t *testing.T) {
	d := graph.Diagram{
		Nodes: []graph.Node{
			node("TX1", graph.StyleIntervention),
			node("TX2", graph.StyleIntervention),
			node("A", graph.StyleMechanism),
			node("B", graph.StyleMechanism),
			node("D", graph.StyleSymptom),
		},
		Edges: []graph.Edge{edge("TX1", "A"), edge("TX2", "B"), edge("A", "D"), edge("B", "D")},
	}
	s := 0.5
	scores := Compute(d, map[string]float64{"TX1": s, "TX2": s})

	p := s * CascadeDecay
	got := scores["D"].Score
	assert.Greater(t, got, p)
	assert.Less(t, got, 2*p)
	assert.InDelta(t, 1-(1-p)*(1-p), got, tol)
}

func TestComputeDirectScoresSumAndClamp(t *testing.T) {
	d := graph.Diagram{
		Nodes: []graph.Node{
			node("TX1", graph.StyleIntervention),
			node("TX2", graph.StyleIntervention),
			node("A", graph.StyleMechanism),
			node("B", graph.StyleMechanism),
		},
		Edges: []graph.Edge{edge("TX1", "A"), edge("TX2", "A"), edge("TX1", "B"), edge("TX2", "B")},
	}
	scores := Compute(d, map[string]float64{"TX1": 0.2, "TX2": 0.3})
	assert.InDelta(t, 0.5, scores["A"].Score, tol)

	scores = Compute(d, map[string]float64{"TX1": 0.7, "TX2": 0.6})
	assert.InDelta(t, 1.0, scores["A"].Score, tol)
}

func TestComputeParallelInterventionEdgesCountOnce(t *testing.T) {
	d := diamond()
	protects := edge("TX_A", "A")
	protects.Label = "protects"
	d.Edges = append(d.Edges, protects)

	scores := Compute(d, map[string]float64{"TX_A": 0.1})
	assert.InDelta(t, 0.1, scores["A"].Score, tol)
	assert.InDelta(t, 0.08, scores["B"].Score, tol)
	assert.InDelta(t, 0.064, scores["D"].Score, tol)

	// A deactivated parallel edge does not block the active one.
	d.Edges[0].IsDeactivated = graph.Ptr(true)
	scores = Compute(d, map[string]float64{"TX_A": 0.1})
	assert.InDelta(t, 0.1, scores["A"].Score, tol)
	assert.True(t, scores["A"].IsDirect)
}

func TestComputeDirectSourceNotDoubleCounted(t *testing.T) {
	// A and B are both direct; B also receives A's cascade.
	d := graph.Diagram{
		Nodes: []graph.Node{
			node("TX1", graph.StyleIntervention),
			node("TX2", graph.StyleIntervention),
			node("A", graph.StyleMechanism),
			node("B", graph.StyleMechanism),
		},
		Edges: []graph.Edge{edge("TX1", "A"), edge("TX2", "B"), edge("A", "B"), edge("B", "A")},
	}
	scores := Compute(d, map[string]float64{"TX1": 0.5, "TX2": 0.25})

	// A: own direct 0.5 plus B's cascade 0.2; B's own cascade back into
	// itself through A is excluded.
	assert.InDelta(t, 1-(1-0.5)*(1-0.2), scores["A"].Score, tol)
	assert.InDelta(t, 1-(1-0.25)*(1-0.4), scores["B"].Score, tol)
	assert.True(t, scores["A"].IsDirect)
	assert.True(t, scores["B"].IsDirect)
}

func TestComputeExcludedEdgeTypes(t *testing.T) {
	for _, typ := range []graph.EdgeType{graph.EdgeFeedback, graph.EdgeProtective} {
		t.Run(string(typ), func(t *testing.T) {
			d := diamond()
			d.Edges[1].EdgeType = typ
			d.Edges[2].EdgeType = typ
			scores := Compute(d, map[string]float64{"TX_A": 0.5})
			assert.InDelta(t, 0.5, scores["A"].Score, tol)
			assert.Zero(t, scores["B"].Score)
			assert.Zero(t, scores["C"].Score)
			assert.Zero(t, scores["D"].Score)
		})
	}
}

func TestComputeProtectiveInterventionEdgeStillScoresDirectly(t *testing.T) {
	d := diamond()
	d.Edges[0].EdgeType = graph.EdgeProtective
	scores := Compute(d, map[string]float64{"TX_A": 0.5})
	assert.InDelta(t, 0.5, scores["A"].Score, tol)
	assert.InDelta(t, 0.4, scores["B"].Score, tol)
}

func TestComputeStopsBelowThreshold(t *testing.T) {
	d := graph.Diagram{Nodes: []graph.Node{node("TX", graph.StyleIntervention)}}
	prev := "TX"
	for _, id := range []string{"N1", "N2", "N3", "N4", "N5"} {
		d.Nodes = append(d.Nodes, node(id, graph.StyleMechanism))
		d.Edges = append(d.Edges, edge(prev, id))
		prev = id
	}
	// 0.02 -> 0.016 -> 0.0128 -> 0.01024 -> below 0.01
	scores := Compute(d, map[string]float64{"TX": 0.02})
	assert.InDelta(t, 0.02, scores["N1"].Score, tol)
	assert.InDelta(t, 0.01024, scores["N4"].Score, tol)
	assert.Zero(t, scores["N5"].Score)
}

func TestComputeCyclesTerminate(t *testing.T) {
	d := graph.Diagram{
		Nodes: []graph.Node{
			node("TX", graph.StyleIntervention),
			node("A", graph.StyleMechanism),
			node("B", graph.StyleMechanism),
		},
		Edges: []graph.Edge{edge("TX", "A"), edge("A", "B"), edge("B", "A")},
	}
	scores := Compute(d, map[string]float64{"TX": 1})
	assert.InDelta(t, 1, scores["A"].Score, tol)
	assert.InDelta(t, 0.8, scores["B"].Score, tol)
}

func TestComputeMalformedInputIsInert(t *testing.T) {
	d := diamond()
	d.Edges = append(d.Edges, edge("TX_A", "ghost"), edge("ghost", "D"), edge("A", "nowhere"))
	scores := Compute(d, map[string]float64{"TX_A": 0.1, "unknown": 1})
	assert.NotContains(t, scores, "ghost")
	assert.InDelta(t, 0.064, scores["D"].Score, tol)
}

func TestComputeDeactivationIsInert(t *testing.T) {
	d := diamond()
	d.Edges[1].IsDeactivated = graph.Ptr(true)
	scores := Compute(d, map[string]float64{"TX_A": 0.5})
	assert.Zero(t, scores["B"].Score)
	assert.InDelta(t, 0.4, scores["C"].Score, tol)

	d = diamond()
	d.Nodes[0].IsDeactivated = graph.Ptr(true)
	scores = Compute(d, map[string]float64{"TX_A": 0.5})
	assert.Zero(t, scores["A"].Score)
	assert.False(t, scores["A"].IsDirect)
}

func TestComputeNoActivity(t *testing.T) {
	scores := Compute(diamond(), nil)
	for id, s := range scores {
		assert.Zero(t, s.Score, id)
		assert.False(t, s.IsDirect, id)
	}
}

func TestNoisyOR(t *testing.T) {
	assert.Zero(t, NoisyOR(nil))
	assert.Equal(t, 0.1, NoisyOR([]float64{0.1}))
	assert.InDelta(t, 0.75, NoisyOR([]float64{0.5, 0.5}), tol)
	assert.InDelta(t, 1, NoisyOR([]float64{1, 0.3}), tol)
}

func TestRank(t *testing.T) {
	ranked := Rank(map[string]Score{
		"b": {Score: 0.5},
		"a": {Score: 0.5},
		"c": {Score: 0.9, IsDirect: true},
	})
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{ranked[0].NodeID, ranked[1].NodeID, ranked[2].NodeID})
	assert.True(t, ranked[0].IsDirect)
}
