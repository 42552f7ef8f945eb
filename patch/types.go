// Package patch models versioned batches of diagram edits and provides the
// validate, rebase and apply stages that fold them into a diagram.
package patch

import (
	"errors"
	"sort"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

// ErrInvalidOperation marks an operation that lacks a payload its kind requires.
var ErrInvalidOperation = errors.New("invalid operation")

// Kind names an operation variant.
type Kind string

const (
	KindAddNode            Kind = "addNode"
	KindUpdateNode         Kind = "updateNode"
	KindRemoveNode         Kind = "removeNode"
	KindAddEdge            Kind = "addEdge"
	KindUpdateEdge         Kind = "updateEdge"
	KindRemoveEdge         Kind = "removeEdge"
	KindUpdateEdgeStrength Kind = "updateEdgeStrength"
	KindProposeAlias       Kind = "proposeAlias"
	KindApproveAlias       Kind = "approveAlias"
	KindRejectAlias        Kind = "rejectAlias"
)

// Operation is one edit within an envelope. The set of implementations is
// closed: AddNode, UpdateNode, RemoveNode, AddEdge, UpdateEdge, RemoveEdge,
// UpdateEdgeStrength, ProposeAlias, ApproveAlias, RejectAlias.
type Operation interface {
	Kind() Kind
	operation()
}

// AddNode appends a node.
type AddNode struct {
	Node *graph.Node
}

// UpdateNode replaces every field of an existing node.
type UpdateNode struct {
	TargetNodeID string
	Node         *graph.Node
}

// RemoveNode deletes a node and every edge touching it.
type RemoveNode struct {
	TargetNodeID string
}

// AddEdge appends an edge.
type AddEdge struct {
	Edge *graph.Edge
}

// UpdateEdge replaces every field of an existing edge except its id.
type UpdateEdge struct {
	TargetEdgeID string
	Edge         *graph.Edge
}

// RemoveEdge deletes an edge.
type RemoveEdge struct {
	TargetEdgeID string
}

// UpdateEdgeStrength sets only the strength of an existing edge.
type UpdateEdgeStrength struct {
	TargetEdgeID string
	EdgeStrength *float64
}

// ProposeAlias suggests a naming alias. Advisory only.
type ProposeAlias struct {
	Proposal *AliasProposal
}

// ApproveAlias records an alias override.
type ApproveAlias struct {
	Override *AliasOverride
}

// RejectAlias declines a proposed alias. Advisory only.
type RejectAlias struct {
	Proposal *AliasProposal
}

func (AddNode) Kind() Kind            { return KindAddNode }
func (UpdateNode) Kind() Kind         { return KindUpdateNode }
func (RemoveNode) Kind() Kind         { return KindRemoveNode }
func (AddEdge) Kind() Kind            { return KindAddEdge }
func (UpdateEdge) Kind() Kind         { return KindUpdateEdge }
func (RemoveEdge) Kind() Kind         { return KindRemoveEdge }
func (UpdateEdgeStrength) Kind() Kind { return KindUpdateEdgeStrength }
func (ProposeAlias) Kind() Kind       { return KindProposeAlias }
func (ApproveAlias) Kind() Kind       { return KindApproveAlias }
func (RejectAlias) Kind() Kind        { return KindRejectAlias }

func (AddNode) operation()            {}
func (UpdateNode) operation()         {}
func (RemoveNode) operation()         {}
func (AddEdge) operation()            {}
func (UpdateEdge) operation()         {}
func (RemoveEdge) operation()         {}
func (UpdateEdgeStrength) operation() {}
func (ProposeAlias) operation()       {}
func (ApproveAlias) operation()       {}
func (RejectAlias) operation()        {}

// AliasProposal suggests renaming the canonical label identified by Signature.
type AliasProposal struct {
	Signature      string `json:"signature" yaml:"signature"`
	CanonicalLabel string `json:"canonicalLabel,omitempty" yaml:"canonicalLabel,omitempty"`
	ProposedLabel  string `json:"proposedLabel,omitempty" yaml:"proposedLabel,omitempty"`
	Rationale      string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// AliasOverride replaces the canonical label identified by Signature.
type AliasOverride struct {
	Signature string `json:"signature" yaml:"signature"`
	Label     string `json:"label" yaml:"label"`
}

// SortOverrides orders overrides by signature in place.
func SortOverrides(overrides []AliasOverride) {
	sort.SliceStable(overrides, func(i, j int) bool {
		return overrides[i].Signature < overrides[j].Signature
	})
}

// Envelope is a batch of operations authored against BaseGraphVersion.
type Envelope struct {
	SchemaVersion    string
	BaseGraphVersion string
	Operations       []Operation
	Explanations     []string
}

// Conflict flags an operation authored against a stale base version.
type Conflict struct {
	OperationIndex int    `json:"operationIndex"`
	Kind           Kind   `json:"kind"`
	Message        string `json:"message"`
}

// KindCount is the number of operations of one kind in an envelope.
type KindCount struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

// Summarize counts operations by kind, sorted by kind name.
func Summarize(env Envelope) []KindCount {
	counts := make(map[Kind]int)
	for _, op := range env.Operations {
		counts[op.Kind()]++
	}
	out := make([]KindCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Filter returns a copy of env without the operations at the dropped indices.
func Filter(env Envelope, drop map[int]bool) Envelope {
	out := env
	out.Operations = make([]Operation, 0, len(env.Operations))
	for i, op := range env.Operations {
		if drop[i] {
			continue
		}
		out.Operations = append(out.Operations, op)
	}
	return out
}
