package patch

import (
	"fmt"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

// Conflicting reports whether op is destructive enough to need an explicit
// resolution when applied against a base it was not authored for. Additive
// and alias operations never conflict.
func Conflicting(op Operation) bool {
	switch op.(type) {
	case UpdateNode, RemoveNode, UpdateEdge, RemoveEdge, UpdateEdgeStrength:
		return true
	case AddNode, AddEdge, ProposeAlias, ApproveAlias, RejectAlias:
		return false
	default:
		return false
	}
}

// Rebase retargets env at d's current version. When the declared base
// differs, every destructive operation is reported as a conflict; nothing is
// resolved here. Operations and explanations pass through unmodified.
func Rebase(env Envelope, d graph.Diagram) (Envelope, []Conflict) {
	if env.BaseGraphVersion == d.GraphVersion {
		return env, nil
	}

	var conflicts []Conflict
	for i, op := range env.Operations {
		if !Conflicting(op) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			OperationIndex: i,
			Kind:           op.Kind(),
			Message: fmt.Sprintf("operation %d (%s) was authored against %s but the diagram is now at %s",
				i, op.Kind(), env.BaseGraphVersion, d.GraphVersion),
		})
	}

	out := env
	if d.GraphVersion != "" {
		out.BaseGraphVersion = d.GraphVersion
	}
	return out, conflicts
}
