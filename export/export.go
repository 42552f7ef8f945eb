// Package export serializes a diagram, its alias overrides and version
// metadata into a stable, diffable interchange payload.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"

	"github.com/TomHumphrey150/OpenJaw-sub004/cas"
	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
	"github.com/TomHumphrey150/OpenJaw-sub004/patch"
)

// GraphData is the node and edge content of an export.
type GraphData struct {
	Nodes []graph.Node `json:"nodes" yaml:"nodes"`
	Edges []graph.Edge `json:"edges" yaml:"edges"`
}

// Payload is the export document.
type Payload struct {
	GraphVersion     string                `json:"graphVersion" yaml:"graphVersion"`
	BaseGraphVersion string                `json:"baseGraphVersion" yaml:"baseGraphVersion"`
	LastModified     time.Time             `json:"lastModified" yaml:"lastModified"`
	GraphData        GraphData             `json:"graphData" yaml:"graphData"`
	AliasOverrides   []patch.AliasOverride `json:"aliasOverrides" yaml:"aliasOverrides"`
}

// New builds a payload from a diagram and its overrides.
func New(d graph.Diagram, overrides []patch.AliasOverride) Payload {
	c := d.Clone()
	aliases := append([]patch.AliasOverride{}, overrides...)
	patch.SortOverrides(aliases)
	return Payload{
		GraphVersion:     c.ComputeVersion(),
		BaseGraphVersion: c.BaseGraphVersion,
		LastModified:     c.LastModified.UTC(),
		GraphData:        GraphData{Nodes: c.Nodes, Edges: c.Edges},
		AliasOverrides:   aliases,
	}
}

// Diagram restores the diagram carried by the payload. The version is
// recomputed from content.
func (p Payload) Diagram() graph.Diagram {
	d := graph.Diagram{
		Nodes:            p.GraphData.Nodes,
		Edges:            p.GraphData.Edges,
		LastModified:     p.LastModified,
		BaseGraphVersion: p.BaseGraphVersion,
	}
	return d.Clone().WithVersion()
}

// Marshal renders the payload as JSON with sorted keys, indented by two
// spaces.
func Marshal(p Payload) ([]byte, error) {
	data, err := cas.PrettyJSON(p)
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	return data, nil
}

// MarshalYAML renders the payload as YAML.
func MarshalYAML(p Payload) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	return data, nil
}

// Unmarshal parses a JSON or YAML export. A stated graphVersion that does not
// match the content is rejected.
func Unmarshal(data []byte) (Payload, error) {
	var p Payload
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &p); err != nil {
			return Payload{}, fmt.Errorf("parsing export: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("parsing export: %w", err)
	}

	if p.GraphVersion != "" {
		if got := graph.Fingerprint(p.GraphData.Nodes, p.GraphData.Edges); got != p.GraphVersion {
			return Payload{}, fmt.Errorf("export graphVersion %s does not match content version %s", p.GraphVersion, got)
		}
	}
	return p, nil
}

// Diff returns a line diff between two exports. Lines are prefixed with
// "+", "-" or " "; an empty string means the exports are identical.
func Diff(a, b Payload) (string, error) {
	left, err := Marshal(a)
	if err != nil {
		return "", err
	}
	right, err := Marshal(b)
	if err != nil {
		return "", err
	}
	if string(left) == string(right) {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	l, r, lines := dmp.DiffLinesToChars(string(left), string(right))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(l, r, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}
	return sb.String(), nil
}
