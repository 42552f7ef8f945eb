package graph

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// VersionPrefix prefixes every rendered fingerprint.
const VersionPrefix = "graph-"

// Fingerprint computes the order-independent content version of a node and
// edge set. Only id|styleClass|confirmed|tier per node and
// source|target|edgeType|label|strength per edge participate.
func Fingerprint(nodes []Node, edges []Edge) string {
	nodeKeys := make([]string, len(nodes))
	for i, n := range nodes {
		nodeKeys[i] = strings.Join([]string{
			n.ID,
			string(n.StyleClass),
			optString(n.Confirmed),
			optInt(n.Tier),
		}, "|")
	}
	sort.Strings(nodeKeys)

	edgeKeys := make([]string, len(edges))
	for i, e := range edges {
		edgeKeys[i] = strings.Join([]string{
			e.Source,
			e.Target,
			string(e.EdgeType.OrDefault()),
			e.Label,
			optFloat(e.Strength),
		}, "|")
	}
	sort.Strings(edgeKeys)

	key := strings.Join(nodeKeys, ";") + "\n" + strings.Join(edgeKeys, ";")
	return fmt.Sprintf("%s%016x", VersionPrefix, fnv1a64([]byte(key)))
}

// ComputeVersion returns the fingerprint of the diagram's current content.
func (d Diagram) ComputeVersion() string {
	return Fingerprint(d.Nodes, d.Edges)
}

// WithVersion returns a copy with GraphVersion recomputed.
func (d Diagram) WithVersion() Diagram {
	d.GraphVersion = d.ComputeVersion()
	return d
}

func fnv1a64(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

func optString(c *Confirmed) string {
	if c == nil {
		return ""
	}
	return string(*c)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ----- Edge ids -----

const edgeIDPrefix = "edge:"

// EdgeIDPrefix returns the deterministic id prefix for an edge without an
// explicit id.
func EdgeIDPrefix(e Edge) string {
	return edgeIDPrefix + strings.Join([]string{
		e.Source,
		e.Target,
		string(e.EdgeType.OrDefault()),
		e.Label,
	}, "|")
}

// ResolveEdgeIDs returns the effective id of every edge, in order. Edges
// with an explicit id keep it; the rest get <prefix>#<n> where n is one past
// the highest suffix used for that prefix by any explicit id or earlier
// synthesized id, so parallel duplicates stay distinct.
func ResolveEdgeIDs(edges []Edge) []string {
	ids := make([]string, len(edges))
	maxSuffix := make(map[string]int)
	for i, e := range edges {
		if e.ID == "" {
			continue
		}
		ids[i] = e.ID
		if prefix, n, ok := splitEdgeID(e.ID); ok && n > maxSuffix[prefix] {
			maxSuffix[prefix] = n
		}
	}
	for i, e := range edges {
		if e.ID != "" {
			continue
		}
		prefix := EdgeIDPrefix(e)
		maxSuffix[prefix]++
		ids[i] = fmt.Sprintf("%s#%d", prefix, maxSuffix[prefix])
	}
	return ids
}

// NextEdgeID synthesizes the id a new edge without an explicit id receives
// when appended after existing.
func NextEdgeID(existing []Edge, e Edge) string {
	prefix := EdgeIDPrefix(e)
	highest := 0
	for _, id := range ResolveEdgeIDs(existing) {
		if p, n, ok := splitEdgeID(id); ok && p == prefix && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s#%d", prefix, highest+1)
}

func splitEdgeID(id string) (string, int, bool) {
	if !strings.HasPrefix(id, edgeIDPrefix) {
		return "", 0, false
	}
	i := strings.LastIndexByte(id, '#')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return id[:i], n, true
}
