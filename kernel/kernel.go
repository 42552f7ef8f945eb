// Package kernel owns the live diagram, its alias overrides and checkpoint
// history, and serializes every mutation through validate, rebase, resolve,
// apply and checkpoint.
package kernel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
	"github.com/TomHumphrey150/OpenJaw-sub004/patch"
)

// Resolution decides what happens to a conflicted operation.
type Resolution string

const (
	// ResolveLocal applies the operation anyway.
	ResolveLocal Resolution = "local"
	// ResolveServer drops the operation from the patch.
	ResolveServer Resolution = "server"
)

// Preview describes what applying an envelope would do.
type Preview struct {
	// Envelope is the rebased envelope.
	Envelope            patch.Envelope
	BaseGraphVersion    string
	CurrentGraphVersion string
	Summary             []patch.KindCount
}

// ApplyResult is the outcome of a committed apply.
type ApplyResult struct {
	Diagram        graph.Diagram
	AliasOverrides []patch.AliasOverride
	Checkpoint     Checkpoint
	Conflicts      []patch.Conflict
	Applied        int
	Dropped        []int
}

// Kernel is the single owner of a diagram. Mutations are serialized; reads
// see consistent snapshots.
type Kernel struct {
	mu          sync.RWMutex
	diagram     graph.Diagram
	aliases     []patch.AliasOverride
	checkpoints []Checkpoint

	store   Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithStore persists state after every mutation.
func WithStore(s Store) Option {
	return func(k *Kernel) { k.store = s }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithMetrics records kernel activity in m.
func WithMetrics(m *Metrics) Option {
	return func(k *Kernel) { k.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(k *Kernel) {
		if now != nil {
			k.now = now
		}
	}
}

// New creates an empty, unversioned kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// CurrentDiagram returns a copy of the live diagram.
func (k *Kernel) CurrentDiagram() graph.Diagram {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.diagram.Clone()
}

// AliasOverrides returns the alias overrides sorted by signature.
func (k *Kernel) AliasOverrides() []patch.AliasOverride {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]patch.AliasOverride(nil), k.aliases...)
}

// CheckpointHistory returns every checkpoint, oldest first.
func (k *Kernel) CheckpointHistory() []Checkpoint {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return cloneCheckpoints(k.checkpoints)
}

// Checkpoint returns the most recent checkpoint with the given version.
func (k *Kernel) Checkpoint(version string) (Checkpoint, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	cp, ok := k.latestCheckpoint(version)
	if !ok {
		return Checkpoint{}, false
	}
	cp.Diagram = cp.Diagram.Clone()
	return cp, true
}

// Preview validates and rebases env against the live diagram without
// mutating anything.
func (k *Kernel) Preview(env patch.Envelope) (Preview, []patch.Conflict, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.preview(env)
}

func (k *Kernel) preview(env patch.Envelope) (Preview, []patch.Conflict, error) {
	if errs := patch.Validate(env, k.diagram); len(errs) > 0 {
		return Preview{}, nil, &ValidationError{Errors: errs}
	}
	rebased, conflicts := patch.Rebase(env, k.diagram)
	p := Preview{
		Envelope:            rebased,
		BaseGraphVersion:    env.BaseGraphVersion,
		CurrentGraphVersion: k.diagram.GraphVersion,
		Summary:             patch.Summarize(env),
	}
	k.logger.Debug("patch previewed",
		"base", env.BaseGraphVersion,
		"current", k.diagram.GraphVersion,
		"operations", len(env.Operations),
		"conflicts", len(conflicts))
	return p, conflicts, nil
}

// Apply previews env, requires a resolution for every conflict, drops the
// operations resolved in favour of the server, folds the rest into the live
// diagram and records a checkpoint. On any error before commit the kernel is
// unchanged. A persistence failure is returned wrapped in ErrPersist together
// with the committed result.
func (k *Kernel) Apply(ctx context.Context, env patch.Envelope, resolutions map[int]Resolution) (ApplyResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p, conflicts, err := k.preview(env)
	if err != nil {
		k.metrics.apply("invalid", 0, 0)
		return ApplyResult{}, err
	}

	var unresolved []patch.Conflict
	drop := make(map[int]bool)
	for _, c := range conflicts {
		switch resolutions[c.OperationIndex] {
		case ResolveLocal:
		case ResolveServer:
			drop[c.OperationIndex] = true
		default:
			unresolved = append(unresolved, c)
		}
	}
	if len(unresolved) > 0 {
		k.metrics.apply("conflicted", 0, 0)
		return ApplyResult{}, &ConflictError{Conflicts: unresolved}
	}

	filtered := patch.Filter(p.Envelope, drop)
	next, aliases, err := patch.ApplyAt(filtered, k.diagram, k.aliases, k.now())
	if err != nil {
		k.metrics.apply("failed", 0, 0)
		return ApplyResult{}, err
	}
	patch.SortOverrides(aliases)

	prev := k.diagram.GraphVersion
	k.diagram = next
	k.aliases = aliases
	cp := k.appendCheckpoint()

	dropped := make([]int, 0, len(drop))
	for _, c := range conflicts {
		if drop[c.OperationIndex] {
			dropped = append(dropped, c.OperationIndex)
		}
	}
	result := ApplyResult{
		Diagram:        next.Clone(),
		AliasOverrides: append([]patch.AliasOverride(nil), aliases...),
		Checkpoint:     cp,
		Conflicts:      conflicts,
		Applied:        len(filtered.Operations),
		Dropped:        dropped,
	}
	k.logger.Info("patch applied",
		"from", prev,
		"to", next.GraphVersion,
		"applied", result.Applied,
		"dropped", len(dropped),
		"checkpoint", cp.ID)
	k.metrics.apply("applied", result.Applied, len(dropped))

	return result, k.persist(ctx, &cp)
}

// Replace swaps in a new diagram and alias override set wholesale, for
// example on first hydration or a canonical re-seed. The version is
// recomputed from content; an empty lastModified becomes now.
func (k *Kernel) Replace(ctx context.Context, d graph.Diagram, overrides []patch.AliasOverride, checkpoint bool) (graph.Diagram, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.replace(ctx, d, normalizeOverrides(overrides), checkpoint)
}

// ReplaceGraphData swaps in a new diagram, keeping alias overrides, without
// recording a checkpoint.
func (k *Kernel) ReplaceGraphData(ctx context.Context, d graph.Diagram) (graph.Diagram, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.replace(ctx, d, k.aliases, false)
}

func (k *Kernel) replace(ctx context.Context, d graph.Diagram, overrides []patch.AliasOverride, checkpoint bool) (graph.Diagram, error) {
	next := d.Clone().WithVersion()
	if next.LastModified.IsZero() {
		next.LastModified = k.now()
	}
	prev := k.diagram.GraphVersion
	k.diagram = next
	k.aliases = overrides

	var cp *Checkpoint
	if checkpoint {
		c := k.appendCheckpoint()
		cp = &c
	}
	k.logger.Info("diagram replaced",
		"from", prev,
		"to", next.GraphVersion,
		"nodes", len(next.Nodes),
		"edges", len(next.Edges),
		"checkpoint", checkpoint)

	return next.Clone(), k.persist(ctx, cp)
}

// Rollback restores the diagram of the most recent checkpoint whose version
// matches. History is left untouched and no checkpoint is added. It reports
// false when no checkpoint matches.
func (k *Kernel) Rollback(ctx context.Context, version string) (graph.Diagram, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	cp, ok := k.latestCheckpoint(version)
	k.metrics.rollback(ok)
	if !ok {
		k.logger.Warn("rollback target not found", "version", version)
		return graph.Diagram{}, false, nil
	}
	prev := k.diagram.GraphVersion
	k.diagram = cp.Diagram.Clone()
	k.logger.Info("diagram rolled back", "from", prev, "to", version, "checkpoint", cp.ID)

	return k.diagram.Clone(), true, k.persist(ctx, nil)
}

// Flush persists the current state again, for callers retrying after an
// ErrPersist.
func (k *Kernel) Flush(ctx context.Context) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.persist(ctx, nil)
}

// latestCheckpoint scans newest-first. Callers hold the lock.
func (k *Kernel) latestCheckpoint(version string) (Checkpoint, bool) {
	for i := len(k.checkpoints) - 1; i >= 0; i-- {
		if k.checkpoints[i].GraphVersion == version {
			return k.checkpoints[i], true
		}
	}
	return Checkpoint{}, false
}

// appendCheckpoint snapshots the live diagram. Callers hold the write lock.
func (k *Kernel) appendCheckpoint() Checkpoint {
	cp := Checkpoint{
		ID:           k.newID(),
		GraphVersion: k.diagram.GraphVersion,
		CreatedAt:    k.now(),
		Diagram:      k.diagram.Clone(),
	}
	k.checkpoints = append(k.checkpoints, cp)
	return cp
}

// persist saves the live state and, when given, the new checkpoint, in one
// write when the store supports it. It also refreshes the diagram gauges.
// Callers hold the lock so saves reach the store in commit order.
func (k *Kernel) persist(ctx context.Context, cp *Checkpoint) error {
	k.metrics.observe(k.diagram, len(k.checkpoints))
	if k.store == nil {
		return nil
	}
	snap := Snapshot{
		Diagram:        k.diagram.Clone(),
		AliasOverrides: append([]patch.AliasOverride(nil), k.aliases...),
	}
	if cs, ok := k.store.(CommitStore); ok && cp != nil {
		if err := cs.SaveCommit(ctx, snap, *cp); err != nil {
			k.logger.Error("saving commit failed", "version", snap.Diagram.GraphVersion, "checkpoint", cp.ID, "error", err)
			k.metrics.persistFailed()
			return fmt.Errorf("%w: checkpoint %s: %w", ErrPersist, cp.ID, err)
		}
		return nil
	}
	if err := k.store.SaveSnapshot(ctx, snap); err != nil {
		k.logger.Error("saving snapshot failed", "version", snap.Diagram.GraphVersion, "error", err)
		k.metrics.persistFailed()
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if cs, ok := k.store.(CheckpointStore); ok && cp != nil {
		if err := cs.AppendCheckpoint(ctx, *cp); err != nil {
			k.logger.Error("saving checkpoint failed", "checkpoint", cp.ID, "error", err)
			k.metrics.persistFailed()
			return fmt.Errorf("%w: checkpoint %s: %w", ErrPersist, cp.ID, err)
		}
	}
	return nil
}

// normalizeOverrides de-duplicates by signature, later entries winning, and
// sorts by signature.
func normalizeOverrides(in []patch.AliasOverride) []patch.AliasOverride {
	index := make(map[string]int, len(in))
	out := make([]patch.AliasOverride, 0, len(in))
	for _, o := range in {
		if i, ok := index[o.Signature]; ok {
			out[i] = o
			continue
		}
		index[o.Signature] = len(out)
		out = append(out, o)
	}
	patch.SortOverrides(out)
	return out
}
