// Package score computes how well defended each mechanism node is, given the
// activity strength of the interventions that feed it.
package score

import (
	"sort"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

const (
	// CascadeDecay is the per-hop attenuation of propagated strength.
	CascadeDecay = 0.8
	// MinPropagation is the strength below which a path stops expanding.
	MinPropagation = 0.01
	// Epsilon is the margin a new strength must beat to re-enqueue a node.
	Epsilon = 1e-9
)

// Score is the defense of one non-intervention node.
type Score struct {
	Score    float64 `json:"score"`
	IsDirect bool    `json:"isDirect"`
}

// Compute returns a score for every non-intervention node of d. strengths
// maps intervention node ids to an activity strength in [0,1]; unknown ids
// and out-of-range values are tolerated. Dangling edges are inert.
//
// Deactivation is applied on top of strengths: a deactivated (dormant)
// intervention contributes nothing whatever strength it is given, and a
// deactivated edge carries neither direct nor cascaded strength.
func Compute(d graph.Diagram, strengths map[string]float64) map[string]Score {
	nodes := make(map[string]graph.Node, len(d.Nodes))
	for _, n := range d.Nodes {
		nodes[n.ID] = n
	}

	direct := directScores(d, nodes, strengths)
	adj := forwardAdjacency(d, nodes)

	sources := make([]string, 0, len(direct))
	for id, s := range direct {
		if s > 0 {
			sources = append(sources, id)
		}
	}
	sort.Strings(sources)

	reach := make(map[string]map[string]float64, len(sources))
	for _, src := range sources {
		reach[src] = propagate(src, direct[src], adj)
	}

	out := make(map[string]Score)
	for _, n := range d.Nodes {
		if n.IsIntervention() {
			continue
		}
		var contributions []float64
		if s := direct[n.ID]; s > 0 {
			contributions = append(contributions, s)
		}
		for _, src := range sources {
			if src == n.ID {
				continue
			}
			if s := reach[src][n.ID]; s > 0 {
				contributions = append(contributions, s)
			}
		}
		out[n.ID] = Score{
			Score:    NoisyOR(contributions),
			IsDirect: direct[n.ID] > 0,
		}
	}
	return out
}

// directScores sums, per non-intervention node, the strengths of the
// distinct interventions pointing at it, capped at 1. Parallel edges from one
// intervention count once.
func directScores(d graph.Diagram, nodes map[string]graph.Node, strengths map[string]float64) map[string]float64 {
	direct := make(map[string]float64)
	seen := make(map[string]map[string]bool)
	for _, e := range d.Edges {
		if e.Deactivated() {
			continue
		}
		src, ok := nodes[e.Source]
		if !ok || !src.IsIntervention() || src.IsDormant() {
			continue
		}
		dst, ok := nodes[e.Target]
		if !ok || dst.IsIntervention() {
			continue
		}
		if seen[e.Target][e.Source] {
			continue
		}
		s := clamp01(strengths[e.Source])
		if s == 0 {
			continue
		}
		if seen[e.Target] == nil {
			seen[e.Target] = make(map[string]bool)
		}
		seen[e.Target][e.Source] = true
		direct[e.Target] = min(direct[e.Target]+s, 1)
	}
	return direct
}

// forwardAdjacency keeps edges that can carry the cascade: not from an
// intervention, not feedback, not protective, both endpoints present.
func forwardAdjacency(d graph.Diagram, nodes map[string]graph.Node) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range d.Edges {
		if e.Deactivated() {
			continue
		}
		switch e.EdgeType.OrDefault() {
		case graph.EdgeFeedback, graph.EdgeProtective:
			continue
		}
		src, ok := nodes[e.Source]
		if !ok || src.IsIntervention() {
			continue
		}
		if _, ok := nodes[e.Target]; !ok {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	return adj
}

// propagate runs a breadth-first cascade from one source, keeping only the
// strongest strength that reaches each node. A node is re-expanded only when
// its best strength improves by more than Epsilon, so reconverging paths
// neither amplify nor loop.
func propagate(src string, strength float64, adj map[string][]string) map[string]float64 {
	best := map[string]float64{src: strength}
	queue := []string{src}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		next := best[u] * CascadeDecay
		if next < MinPropagation {
			continue
		}
		for _, v := range adj[u] {
			if next > best[v]+Epsilon {
				best[v] = next
				queue = append(queue, v)
			}
		}
	}
	return best
}

// NoisyOR combines independent probabilities as 1 - Π(1 - p).
func NoisyOR(ps []float64) float64 {
	switch len(ps) {
	case 0:
		return 0
	case 1:
		return clamp01(ps[0])
	}
	miss := 1.0
	for _, p := range ps {
		miss *= 1 - clamp01(p)
	}
	return clamp01(1 - miss)
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Ranked is one entry of a score ranking.
type Ranked struct {
	NodeID string
	Score
}

// Rank orders scores by descending score, then by node id.
func Rank(scores map[string]Score) []Ranked {
	out := make([]Ranked, 0, len(scores))
	for id, s := range scores {
		out = append(out, Ranked{NodeID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score.Score != out[j].Score.Score {
			return out[i].Score.Score > out[j].Score.Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}
