// Package catalog provides the graph content shipped with the app: the
// canonical fallback diagram and the intervention catalog, matched by id
// glob rules.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

//go:embed default.yaml
var defaultYAML []byte

// InterventionRule names an intervention and the node id patterns it covers.
type InterventionRule struct {
	Name string   `yaml:"name"`
	IDs  []string `yaml:"ids"`
	// Dormant interventions start deactivated when migrated.
	Dormant bool `yaml:"dormant,omitempty"`
}

// Fallback is the canonical diagram used when no user diagram exists.
type Fallback struct {
	Nodes []graph.Node `yaml:"nodes"`
	Edges []graph.Edge `yaml:"edges"`
}

// Catalog holds the fallback diagram and intervention rules.
type Catalog struct {
	Fallback      Fallback           `yaml:"fallback"`
	Interventions []InterventionRule `yaml:"interventions"`
}

// Parse decodes a YAML catalog and checks its patterns.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	for _, rule := range c.Interventions {
		for _, pattern := range rule.IDs {
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("intervention %q: invalid id pattern %q", rule.Name, pattern)
			}
		}
	}
	return &c, nil
}

// Default returns the catalog bundled with the module.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: bundled default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads a catalog, or returns the bundled default if path is
// empty or the file doesn't exist.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	c, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return c, nil
}

// FallbackDiagram returns a fresh copy of the canonical diagram.
func (c *Catalog) FallbackDiagram() graph.Diagram {
	d := graph.Diagram{Nodes: c.Fallback.Nodes, Edges: c.Fallback.Edges}
	return d.Clone()
}

// Match returns the names of intervention rules covering id.
func (c *Catalog) Match(id string) []string {
	var matched []string
	for _, rule := range c.Interventions {
		if rule.matches(id) {
			matched = append(matched, rule.Name)
		}
	}
	return matched
}

// IsIntervention reports whether any rule covers id.
func (c *Catalog) IsIntervention(id string) bool {
	for _, rule := range c.Interventions {
		if rule.matches(id) {
			return true
		}
	}
	return false
}

// IsDormant reports whether a dormant rule covers id.
func (c *Catalog) IsDormant(id string) bool {
	for _, rule := range c.Interventions {
		if rule.Dormant && rule.matches(id) {
			return true
		}
	}
	return false
}

func (r InterventionRule) matches(id string) bool {
	for _, pattern := range r.IDs {
		ok, err := doublestar.Match(pattern, id)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Migrate gives every node lacking an explicit isDeactivated flag one,
// inferred from its confirmation state or, for catalog interventions, from
// the rule's dormancy. Nodes that already carry the flag are left alone, so
// a second run migrates nothing. It returns the number of nodes migrated.
func (c *Catalog) Migrate(d graph.Diagram) (graph.Diagram, int) {
	out := d.Clone()
	migrated := 0
	for i := range out.Nodes {
		n := &out.Nodes[i]
		if n.IsDeactivated != nil {
			continue
		}
		dormant := n.Confirmed != nil && n.Confirmed.Dormant()
		if !dormant && (n.IsIntervention() || c.IsIntervention(n.ID)) {
			dormant = c.IsDormant(n.ID)
		}
		n.IsDeactivated = graph.Ptr(dormant)
		migrated++
	}
	return out, migrated
}
