package patch

import (
	"fmt"
	"math"
	"strings"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

// Validate checks env structurally against d and returns every defect found.
// An empty result means the envelope is valid. Existence checks run against
// d as given; rebasing happens afterwards.
func Validate(env Envelope, d graph.Diagram) []string {
	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(env.SchemaVersion) == "" {
		addf("schemaVersion is required")
	}
	if strings.TrimSpace(env.BaseGraphVersion) == "" {
		addf("baseGraphVersion is required")
	}
	if len(env.Operations) == 0 {
		addf("at least one operation is required")
	}

	nodeIDs := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		nodeIDs[n.ID] = true
	}
	edgeIDs := make(map[string]bool, len(d.Edges))
	for _, id := range graph.ResolveEdgeIDs(d.Edges) {
		edgeIDs[id] = true
	}

	for i, op := range env.Operations {
		if op == nil {
			addf("operation %d: missing operation", i)
			continue
		}
		prefix := fmt.Sprintf("operation %d (%s)", i, op.Kind())

		switch o := op.(type) {
		case AddNode:
			if o.Node == nil {
				addf("%s: node payload is required", prefix)
			} else if nodeIDs[o.Node.ID] {
				addf("%s: node %q already exists", prefix, o.Node.ID)
			}
		case UpdateNode:
			checkNodeTarget(addf, prefix, o.TargetNodeID, nodeIDs)
			if o.Node == nil {
				addf("%s: node payload is required", prefix)
			}
		case RemoveNode:
			checkNodeTarget(addf, prefix, o.TargetNodeID, nodeIDs)
		case AddEdge:
			if o.Edge == nil {
				addf("%s: edge payload is required", prefix)
				continue
			}
			if !nodeIDs[o.Edge.Source] {
				addf("%s: source node %q does not exist", prefix, o.Edge.Source)
			}
			if !nodeIDs[o.Edge.Target] {
				addf("%s: target node %q does not exist", prefix, o.Edge.Target)
			}
			if o.Edge.ID != "" && edgeIDs[o.Edge.ID] {
				addf("%s: edge %q already exists", prefix, o.Edge.ID)
			}
		case UpdateEdge:
			checkEdgeTarget(addf, prefix, o.TargetEdgeID, edgeIDs)
			if o.Edge == nil {
				addf("%s: edge payload is required", prefix)
			}
		case RemoveEdge:
			checkEdgeTarget(addf, prefix, o.TargetEdgeID, edgeIDs)
		case UpdateEdgeStrength:
			checkEdgeTarget(addf, prefix, o.TargetEdgeID, edgeIDs)
			switch {
			case o.EdgeStrength == nil:
				addf("%s: edgeStrength is required", prefix)
			case math.IsNaN(*o.EdgeStrength) || *o.EdgeStrength < -1 || *o.EdgeStrength > 1:
				addf("%s: edgeStrength %v is outside [-1, 1]", prefix, *o.EdgeStrength)
			}
		case ProposeAlias:
			if o.Proposal == nil {
				addf("%s: aliasProposal is required", prefix)
			}
		case RejectAlias:
			if o.Proposal == nil {
				addf("%s: aliasProposal is required", prefix)
			}
		case ApproveAlias:
			if o.Override == nil {
				addf("%s: aliasOverride is required", prefix)
			}
		default:
			addf("%s: unsupported operation type %T", prefix, op)
		}
	}

	return errs
}

func checkNodeTarget(addf func(string, ...any), prefix, id string, nodes map[string]bool) {
	switch {
	case strings.TrimSpace(id) == "":
		addf("%s: targetNodeID is required", prefix)
	case !nodes[id]:
		addf("%s: node %q does not exist", prefix, id)
	}
}

func checkEdgeTarget(addf func(string, ...any), prefix, id string, edges map[string]bool) {
	switch {
	case strings.TrimSpace(id) == "":
		addf("%s: targetEdgeID is required", prefix)
	case !edges[id]:
		addf("%s: edge %q does not exist", prefix, id)
	}
}
