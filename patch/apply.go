package patch

import (
	"fmt"
	"time"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

// Apply folds env into d using the current time as lastModified.
func Apply(env Envelope, d graph.Diagram, overrides []AliasOverride) (graph.Diagram, []AliasOverride, error) {
	return ApplyAt(env, d, overrides, time.Now())
}

// ApplyAt folds env's operations into d strictly in order and returns the new
// diagram and alias overrides. Inputs are never modified. Missing targets
// are skipped; a missing required payload aborts the whole apply with
// ErrInvalidOperation.
//
// Every edge in the result carries its effective id so that later removals
// cannot shift the synthesized ids of parallel duplicates.
func ApplyAt(env Envelope, d graph.Diagram, overrides []AliasOverride, now time.Time) (graph.Diagram, []AliasOverride, error) {
	work := d.Clone()
	ids := graph.ResolveEdgeIDs(work.Edges)
	for i := range work.Edges {
		work.Edges[i].ID = ids[i]
	}
	nodes, edges := work.Nodes, work.Edges
	aliases := append([]AliasOverride(nil), overrides...)

	nodeIndex := func(id string) int {
		for i, n := range nodes {
			if n.ID == id {
				return i
			}
		}
		return -1
	}
	edgeIndex := func(id string) int {
		for i, e := range edges {
			if e.ID == id {
				return i
			}
		}
		return -1
	}

	for i, op := range env.Operations {
		if op == nil {
			return graph.Diagram{}, nil, fmt.Errorf("%w: operation %d is empty", ErrInvalidOperation, i)
		}
		missing := func(field string) error {
			return fmt.Errorf("%w: operation %d (%s) is missing %s", ErrInvalidOperation, i, op.Kind(), field)
		}

		switch o := op.(type) {
		case AddNode:
			if o.Node == nil {
				return graph.Diagram{}, nil, missing("node")
			}
			if nodeIndex(o.Node.ID) >= 0 {
				continue
			}
			nodes = append(nodes, cloneNode(*o.Node))

		case UpdateNode:
			if o.Node == nil {
				return graph.Diagram{}, nil, missing("node")
			}
			idx := nodeIndex(o.TargetNodeID)
			if idx < 0 {
				continue
			}
			updated := cloneNode(*o.Node)
			updated.ID = o.TargetNodeID
			nodes[idx] = updated

		case RemoveNode:
			idx := nodeIndex(o.TargetNodeID)
			if idx < 0 {
				continue
			}
			nodes = append(nodes[:idx:idx], nodes[idx+1:]...)
			kept := edges[:0:0]
			for _, e := range edges {
				if e.Source == o.TargetNodeID || e.Target == o.TargetNodeID {
					continue
				}
				kept = append(kept, e)
			}
			edges = kept

		case AddEdge:
			if o.Edge == nil {
				return graph.Diagram{}, nil, missing("edge")
			}
			e := cloneEdge(*o.Edge)
			if e.ID == "" {
				e.ID = graph.NextEdgeID(edges, e)
			}
			if edgeIndex(e.ID) >= 0 {
				continue
			}
			edges = append(edges, e)

		case UpdateEdge:
			if o.Edge == nil {
				return graph.Diagram{}, nil, missing("edge")
			}
			idx := edgeIndex(o.TargetEdgeID)
			if idx < 0 {
				continue
			}
			updated := cloneEdge(*o.Edge)
			updated.ID = edges[idx].ID
			edges[idx] = updated

		case RemoveEdge:
			idx := edgeIndex(o.TargetEdgeID)
			if idx < 0 {
				continue
			}
			edges = append(edges[:idx:idx], edges[idx+1:]...)

		case UpdateEdgeStrength:
			if o.EdgeStrength == nil {
				return graph.Diagram{}, nil, missing("edgeStrength")
			}
			idx := edgeIndex(o.TargetEdgeID)
			if idx < 0 {
				continue
			}
			s := clampStrength(*o.EdgeStrength)
			edges[idx].Strength = &s

		case ProposeAlias, RejectAlias:
			// advisory, not materialized

		case ApproveAlias:
			if o.Override == nil {
				return graph.Diagram{}, nil, missing("aliasOverride")
			}
			kept := aliases[:0:0]
			for _, a := range aliases {
				if a.Signature != o.Override.Signature {
					kept = append(kept, a)
				}
			}
			aliases = append(kept, *o.Override)

		default:
			return graph.Diagram{}, nil, fmt.Errorf("%w: operation %d has unsupported type %T", ErrInvalidOperation, i, op)
		}
	}

	out := graph.Diagram{
		Nodes:            nodes,
		Edges:            edges,
		LastModified:     now,
		BaseGraphVersion: d.BaseOrCurrent(),
	}
	out.GraphVersion = out.ComputeVersion()
	return out, aliases, nil
}

func clampStrength(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}

func cloneNode(n graph.Node) graph.Node {
	return graph.Diagram{Nodes: []graph.Node{n}}.Clone().Nodes[0]
}

func cloneEdge(e graph.Edge) graph.Edge {
	return graph.Diagram{Edges: []graph.Edge{e}}.Clone().Edges[0]
}
