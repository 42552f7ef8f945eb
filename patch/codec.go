package patch

import (
	"encoding/json"
	"fmt"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

// wireOperation is the JSON shape of an operation: a kind tag plus only the
// fields relevant to that kind.
type wireOperation struct {
	Kind          Kind           `json:"kind"`
	TargetNodeID  string         `json:"targetNodeID,omitempty"`
	TargetEdgeID  string         `json:"targetEdgeID,omitempty"`
	Node          *graph.Node    `json:"node,omitempty"`
	Edge          *graph.Edge    `json:"edge,omitempty"`
	EdgeStrength  *float64       `json:"edgeStrength,omitempty"`
	AliasProposal *AliasProposal `json:"aliasProposal,omitempty"`
	AliasOverride *AliasOverride `json:"aliasOverride,omitempty"`
}

type wireEnvelope struct {
	SchemaVersion    string          `json:"schemaVersion"`
	BaseGraphVersion string          `json:"baseGraphVersion"`
	Operations       []wireOperation `json:"operations"`
	Explanations     []string        `json:"explanations,omitempty"`
}

// DecodeEnvelope parses a JSON patch envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		SchemaVersion:    e.SchemaVersion,
		BaseGraphVersion: e.BaseGraphVersion,
		Operations:       make([]wireOperation, len(e.Operations)),
		Explanations:     e.Explanations,
	}
	for i, op := range e.Operations {
		wo, err := toWire(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		w.Operations[i] = wo
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parsing patch envelope: %w", err)
	}
	ops := make([]Operation, len(w.Operations))
	for i, wo := range w.Operations {
		op, err := fromWire(wo)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		ops[i] = op
	}
	*e = Envelope{
		SchemaVersion:    w.SchemaVersion,
		BaseGraphVersion: w.BaseGraphVersion,
		Operations:       ops,
		Explanations:     w.Explanations,
	}
	return nil
}

func toWire(op Operation) (wireOperation, error) {
	w := wireOperation{Kind: op.Kind()}
	switch o := op.(type) {
	case AddNode:
		w.Node = o.Node
	case UpdateNode:
		w.TargetNodeID, w.Node = o.TargetNodeID, o.Node
	case RemoveNode:
		w.TargetNodeID = o.TargetNodeID
	case AddEdge:
		w.Edge = o.Edge
	case UpdateEdge:
		w.TargetEdgeID, w.Edge = o.TargetEdgeID, o.Edge
	case RemoveEdge:
		w.TargetEdgeID = o.TargetEdgeID
	case UpdateEdgeStrength:
		w.TargetEdgeID, w.EdgeStrength = o.TargetEdgeID, o.EdgeStrength
	case ProposeAlias:
		w.AliasProposal = o.Proposal
	case ApproveAlias:
		w.AliasOverride = o.Override
	case RejectAlias:
		w.AliasProposal = o.Proposal
	default:
		return wireOperation{}, fmt.Errorf("unknown operation type %T", op)
	}
	return w, nil
}

func fromWire(w wireOperation) (Operation, error) {
	switch w.Kind {
	case KindAddNode:
		return AddNode{Node: w.Node}, nil
	case KindUpdateNode:
		return UpdateNode{TargetNodeID: w.TargetNodeID, Node: w.Node}, nil
	case KindRemoveNode:
		return RemoveNode{TargetNodeID: w.TargetNodeID}, nil
	case KindAddEdge:
		return AddEdge{Edge: w.Edge}, nil
	case KindUpdateEdge:
		return UpdateEdge{TargetEdgeID: w.TargetEdgeID, Edge: w.Edge}, nil
	case KindRemoveEdge:
		return RemoveEdge{TargetEdgeID: w.TargetEdgeID}, nil
	case KindUpdateEdgeStrength:
		return UpdateEdgeStrength{TargetEdgeID: w.TargetEdgeID, EdgeStrength: w.EdgeStrength}, nil
	case KindProposeAlias:
		return ProposeAlias{Proposal: w.AliasProposal}, nil
	case KindApproveAlias:
		return ApproveAlias{Override: w.AliasOverride}, nil
	case KindRejectAlias:
		return RejectAlias{Proposal: w.AliasProposal}, nil
	default:
		return nil, fmt.Errorf("unknown operation kind %q", w.Kind)
	}
}
