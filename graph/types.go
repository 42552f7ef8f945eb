// Package graph provides the node/edge types of a causal diagram and the
// content fingerprint used as its version identifier.
package graph

import (
	"strings"
	"time"
)

// StyleClass is the category tag of a node.
type StyleClass string

const (
	StyleIntervention StyleClass = "intervention"
	StyleMechanism    StyleClass = "mechanism"
	StyleSymptom      StyleClass = "symptom"

	// Evidence tiers
	StyleRobust      StyleClass = "robust"
	StyleModerate    StyleClass = "moderate"
	StylePreliminary StyleClass = "preliminary"
)

// EdgeType represents the kind of relationship an edge carries.
type EdgeType string

const (
	EdgeForward    EdgeType = "forward"
	EdgeDashed     EdgeType = "dashed"
	EdgeFeedback   EdgeType = "feedback"
	EdgeProtective EdgeType = "protective"
)

// OrDefault returns EdgeForward for an unset type.
func (t EdgeType) OrDefault() EdgeType {
	if t == "" {
		return EdgeForward
	}
	return t
}

// Confirmed is the user-confirmation state of a node.
type Confirmed string

const (
	ConfirmedYes      Confirmed = "yes"
	ConfirmedNo       Confirmed = "no"
	ConfirmedInactive Confirmed = "inactive"
	ConfirmedExternal Confirmed = "external"
)

// Dormant reports whether the state marks a node as dormant.
func (c Confirmed) Dormant() bool {
	switch c {
	case ConfirmedNo, ConfirmedInactive, ConfirmedExternal:
		return true
	}
	return false
}

// Tooltip is the structured evidence attached to a node.
type Tooltip struct {
	Evidence  string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Stat      string `json:"stat,omitempty" yaml:"stat,omitempty"`
	Citation  string `json:"citation,omitempty" yaml:"citation,omitempty"`
	Mechanism string `json:"mechanism,omitempty" yaml:"mechanism,omitempty"`
}

// Node represents a node in the diagram.
type Node struct {
	ID         string     `json:"id" yaml:"id"`
	Label      string     `json:"label" yaml:"label"`
	StyleClass StyleClass `json:"styleClass" yaml:"styleClass"`
	Confirmed  *Confirmed `json:"confirmed,omitempty" yaml:"confirmed,omitempty"`
	Tier       *int       `json:"tier,omitempty" yaml:"tier,omitempty"`
	Tooltip    *Tooltip   `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
	// IsDeactivated is nil until migrated; nil and false are distinct.
	IsDeactivated *bool    `json:"isDeactivated,omitempty" yaml:"isDeactivated,omitempty"`
	ParentIDs     []string `json:"parentIds,omitempty" yaml:"parentIds,omitempty"`
	IsExpanded    *bool    `json:"isExpanded,omitempty" yaml:"isExpanded,omitempty"`
}

// Title returns the first line of the label.
func (n Node) Title() string {
	if i := strings.IndexByte(n.Label, '\n'); i >= 0 {
		return strings.TrimSpace(n.Label[:i])
	}
	return strings.TrimSpace(n.Label)
}

// IsIntervention reports whether the node is a user-actionable intervention.
func (n Node) IsIntervention() bool {
	return n.StyleClass == StyleIntervention
}

// IsDormant reports whether the node is explicitly deactivated, or, before
// migration, whether its confirmation state marks it dormant.
func (n Node) IsDormant() bool {
	if n.IsDeactivated != nil {
		return *n.IsDeactivated
	}
	return n.Confirmed != nil && n.Confirmed.Dormant()
}

// Edge represents a directed edge between two nodes.
type Edge struct {
	ID            string   `json:"id,omitempty" yaml:"id,omitempty"`
	Source        string   `json:"source" yaml:"source"`
	Target        string   `json:"target" yaml:"target"`
	Label         string   `json:"label,omitempty" yaml:"label,omitempty"`
	EdgeType      EdgeType `json:"edgeType,omitempty" yaml:"edgeType,omitempty"`
	EdgeColor     string   `json:"edgeColor,omitempty" yaml:"edgeColor,omitempty"`
	Tooltip       string   `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
	Strength      *float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
	IsDeactivated *bool    `json:"isDeactivated,omitempty" yaml:"isDeactivated,omitempty"`
}

// Deactivated reports whether the edge is explicitly switched off.
func (e Edge) Deactivated() bool {
	return e.IsDeactivated != nil && *e.IsDeactivated
}

// Diagram is the full node and edge graph.
type Diagram struct {
	Nodes            []Node    `json:"nodes" yaml:"nodes"`
	Edges            []Edge    `json:"edges" yaml:"edges"`
	LastModified     time.Time `json:"lastModified" yaml:"lastModified"`
	GraphVersion     string    `json:"graphVersion,omitempty" yaml:"graphVersion,omitempty"`
	BaseGraphVersion string    `json:"baseGraphVersion,omitempty" yaml:"baseGraphVersion,omitempty"`
}

// Node returns the node with the given id.
func (d Diagram) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// HasNode reports whether a node with the given id exists.
func (d Diagram) HasNode(id string) bool {
	_, ok := d.Node(id)
	return ok
}

// EdgeIndex returns the position of the edge whose effective id is id, or -1.
func (d Diagram) EdgeIndex(id string) int {
	for i, eid := range ResolveEdgeIDs(d.Edges) {
		if eid == id {
			return i
		}
	}
	return -1
}

// HasEdge reports whether an edge with the given effective id exists.
func (d Diagram) HasEdge(id string) bool {
	return d.EdgeIndex(id) >= 0
}

// BaseOrCurrent returns the provenance version: the base if set, else the
// diagram's own version.
func (d Diagram) BaseOrCurrent() string {
	if d.BaseGraphVersion != "" {
		return d.BaseGraphVersion
	}
	return d.GraphVersion
}

// Clone returns a deep copy.
func (d Diagram) Clone() Diagram {
	out := d
	out.Nodes = make([]Node, len(d.Nodes))
	for i, n := range d.Nodes {
		out.Nodes[i] = n.clone()
	}
	out.Edges = make([]Edge, len(d.Edges))
	for i, e := range d.Edges {
		out.Edges[i] = e.clone()
	}
	return out
}

func (n Node) clone() Node {
	out := n
	out.Confirmed = clonePtr(n.Confirmed)
	out.Tier = clonePtr(n.Tier)
	out.Tooltip = clonePtr(n.Tooltip)
	out.IsDeactivated = clonePtr(n.IsDeactivated)
	out.IsExpanded = clonePtr(n.IsExpanded)
	if n.ParentIDs != nil {
		out.ParentIDs = append([]string(nil), n.ParentIDs...)
	}
	return out
}

func (e Edge) clone() Edge {
	out := e
	out.Strength = clonePtr(e.Strength)
	out.IsDeactivated = clonePtr(e.IsDeactivated)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Handy for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
