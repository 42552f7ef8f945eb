package patch

import (
	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

func fixtureDiagram() graph.Diagram {
	d := graph.Diagram{
		Nodes: []graph.Node{
			{ID: "TX_A", Label: "Night guard", StyleClass: graph.StyleIntervention},
			{ID: "A", Label: "Clenching", StyleClass: graph.StyleMechanism},
			{ID: "B", Label: "Jaw pain", StyleClass: graph.StyleSymptom},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "TX_A", Target: "A", EdgeType: graph.EdgeProtective},
			{ID: "e2", Source: "A", Target: "B", Strength: graph.Ptr(0.4), EdgeColor: "#333", Tooltip: "strong link"},
		},
	}
	return d.WithVersion()
}

func envelope(base string, ops ...Operation) Envelope {
	return Envelope{SchemaVersion: "1", BaseGraphVersion: base, Operations: ops}
}
