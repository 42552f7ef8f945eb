package kernel

import (
	"context"
	"fmt"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
	"github.com/TomHumphrey150/OpenJaw-sub004/patch"
)

// Open hydrates a kernel from store. Persisted checkpoints are restored when
// the store keeps them. Without a persisted diagram the content fallback is
// used. Legacy nodes are migrated either way, and a checkpoint is recorded
// when the diagram is new, was migrated, or has no history yet. A clean
// reopen of an up-to-date diagram writes nothing.
func Open(ctx context.Context, store Store, content Content, opts ...Option) (*Kernel, error) {
	k := New(append(opts, WithStore(store))...)

	snap, found, err := store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading diagram: %w", err)
	}
	if cs, ok := store.(CheckpointStore); ok {
		cps, err := cs.ListCheckpoints(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading checkpoints: %w", err)
		}
		k.checkpoints = cps
	}

	d := snap.Diagram
	if !found {
		d = graph.Diagram{}
		if content != nil {
			d = content.FallbackDiagram()
		}
		k.logger.Info("no persisted diagram, using fallback", "nodes", len(d.Nodes), "edges", len(d.Edges))
	}

	migrated := 0
	if content != nil {
		d, migrated = content.Migrate(d)
		if migrated > 0 {
			k.logger.Info("migrated legacy nodes", "count", migrated)
		}
	}

	checkpoint := !found || migrated > 0 || len(k.checkpoints) == 0
	if !checkpoint && d.GraphVersion == d.ComputeVersion() && !d.LastModified.IsZero() {
		k.load(d, snap.AliasOverrides)
		return k, nil
	}
	if _, err := k.Replace(ctx, d, snap.AliasOverrides, checkpoint); err != nil {
		return k, err
	}
	return k, nil
}

// load installs a persisted diagram as-is, without saving it back.
func (k *Kernel) load(d graph.Diagram, overrides []patch.AliasOverride) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.diagram = d.Clone()
	k.aliases = normalizeOverrides(overrides)
	k.metrics.observe(k.diagram, len(k.checkpoints))
	k.logger.Debug("diagram loaded", "version", d.GraphVersion, "checkpoints", len(k.checkpoints))
}
