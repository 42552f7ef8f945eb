// Package main provides the causal CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/TomHumphrey150/OpenJaw-sub004/cas"
	"github.com/TomHumphrey150/OpenJaw-sub004/catalog"
	"github.com/TomHumphrey150/OpenJaw-sub004/config"
	"github.com/TomHumphrey150/OpenJaw-sub004/export"
	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
	"github.com/TomHumphrey150/OpenJaw-sub004/kernel"
	"github.com/TomHumphrey150/OpenJaw-sub004/patch"
	"github.com/TomHumphrey150/OpenJaw-sub004/store"
)

// Version is the current causal CLI version
var Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:           "causal",
	Short:         "Causal - versioned causal diagrams with patch review",
	Long:          `Causal keeps a versioned causal diagram, reviews and applies patches against it, keeps checkpoints for rollback, and scores how well active interventions defend each node.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the diagram from the catalog fallback if none is stored",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current diagram version and counts",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

var previewCmd = &cobra.Command{
	Use:   "preview <patch.json>",
	Short: "Validate and rebase a patch without applying it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

var applyCmd = &cobra.Command{
	Use:   "apply <patch.json>",
	Short: "Apply a patch, resolving conflicts with --resolve",
	Long: `Apply a patch to the current diagram.

Operations authored against an older version are conflicts and need a
resolution each: --resolve <index>=local keeps the operation, and
--resolve <index>=server drops it.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <graph-version>",
	Short: "Restore the diagram of the latest checkpoint at a version",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List checkpoints, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the diagram as JSON or YAML",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the diagram with an export",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var diffCmd = &cobra.Command{
	Use:   "diff <version-a> <version-b>",
	Short: "Line diff between the exports of two versions",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score defense of every node from intervention strengths",
	Args:  cobra.NoArgs,
	RunE:  runScore,
}

var (
	dataDir         string
	catalogPath     string
	metricsTextfile string

	showJSON     bool
	resolveFlags []string
	exportYAML   bool
	exportOutput string
	scoreFile    string
	activityFile string
	scoreTop     int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "Data directory (default $CAUSAL_DATA or ./.causal)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Catalog YAML file (default $CAUSAL_CATALOG or built-in)")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write kernel metrics in Prometheus text format to this file on exit")

	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")
	applyCmd.Flags().StringArrayVar(&resolveFlags, "resolve", nil, "Conflict resolution as <index>=local|server (repeatable)")
	exportCmd.Flags().BoolVar(&exportYAML, "yaml", false, "Output YAML instead of JSON")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	scoreCmd.Flags().StringVar(&scoreFile, "strengths", "", "JSON or YAML map of intervention id to strength")
	scoreCmd.Flags().StringVar(&activityFile, "activity", "", "YAML activity records to derive strengths from")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 0, "Show only the top n nodes")
	scoreCmd.MarkFlagsMutuallyExclusive("strengths", "activity")
	scoreCmd.MarkFlagsOneRequired("strengths", "activity")

	rootCmd.AddCommand(initCmd, showCmd, previewCmd, applyCmd, rollbackCmd, historyCmd,
		exportCmd, importCmd, diffCmd, scoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is an open kernel and the database behind it.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.DB
	kernel   *kernel.Kernel
	registry *prometheus.Registry
}

// Close writes the metrics textfile when requested and closes the database.
func (s *session) Close() error {
	if metricsTextfile != "" {
		if err := prometheus.WriteToTextfile(metricsTextfile, s.registry); err != nil {
			s.logger.Error("writing metrics textfile failed", "path", metricsTextfile, "error", err)
		}
	}
	return s.db.Close()
}

// openSession loads config, opens the database and hydrates the kernel.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.FromArgs(dataDir, catalogPath)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, err
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.LoadOrDefault(cfg.CatalogPath); err != nil {
			return nil, err
		}
	}

	db, err := store.OpenDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	k, err := kernel.Open(ctx, db, cat, kernel.WithLogger(logger), kernel.WithMetrics(kernel.NewMetrics(reg)))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening diagram: %w", err)
	}
	return &session{cfg: cfg, logger: logger, db: db, kernel: k, registry: reg}, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.kernel.CurrentDiagram()
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized diagram %s (%d nodes, %d edges) in %s\n",
		d.GraphVersion, len(d.Nodes), len(d.Edges), s.cfg.DataDir)
	return nil
}

// summary is the machine-readable form of show.
type summary struct {
	GraphVersion     string    `json:"graphVersion"`
	BaseGraphVersion string    `json:"baseGraphVersion"`
	LastModified     time.Time `json:"lastModified"`
	Nodes            int       `json:"nodes"`
	Edges            int       `json:"edges"`
	Interventions    int       `json:"interventions"`
	Dormant          int       `json:"dormant"`
	AliasOverrides   int       `json:"aliasOverrides"`
	Checkpoints      int       `json:"checkpoints"`
}

func summarize(d graph.Diagram, aliases int, checkpoints int) summary {
	s := summary{
		GraphVersion:     d.GraphVersion,
		BaseGraphVersion: d.BaseGraphVersion,
		LastModified:     d.LastModified.UTC(),
		Nodes:            len(d.Nodes),
		Edges:            len(d.Edges),
		AliasOverrides:   aliases,
		Checkpoints:      checkpoints,
	}
	for _, n := range d.Nodes {
		if n.IsIntervention() {
			s.Interventions++
		}
		if n.IsDormant() {
			s.Dormant++
		}
	}
	return s
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	sum := summarize(s.kernel.CurrentDiagram(), len(s.kernel.AliasOverrides()), len(s.kernel.CheckpointHistory()))
	out := cmd.OutOrStdout()
	if showJSON {
		data, err := cas.PrettyJSON(sum)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintf(out, "Version:        %s\n", sum.GraphVersion)
	fmt.Fprintf(out, "Base version:   %s\n", sum.BaseGraphVersion)
	fmt.Fprintf(out, "Last modified:  %s\n", sum.LastModified.Format(time.RFC3339))
	fmt.Fprintf(out, "Nodes:          %d (%d interventions, %d dormant)\n", sum.Nodes, sum.Interventions, sum.Dormant)
	fmt.Fprintf(out, "Edges:          %d\n", sum.Edges)
	fmt.Fprintf(out, "Alias overrides: %d\n", sum.AliasOverrides)
	fmt.Fprintf(out, "Checkpoints:    %d\n", sum.Checkpoints)
	return nil
}

func readEnvelope(path string) (patch.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return patch.Envelope{}, fmt.Errorf("reading patch: %w", err)
	}
	return patch.DecodeEnvelope(data)
}

func runPreview(cmd *cobra.Command, args []string) error {
	env, err := readEnvelope(args[0])
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	p, conflicts, err := s.kernel.Preview(env)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Base:    %s\n", p.BaseGraphVersion)
	fmt.Fprintf(out, "Current: %s\n", p.CurrentGraphVersion)
	fmt.Fprintln(out, "Operations:")
	for _, kc := range p.Summary {
		fmt.Fprintf(out, "  %-20s %d\n", kc.Kind, kc.Count)
	}
	for _, e := range env.Explanations {
		fmt.Fprintf(out, "  # %s\n", e)
	}
	printConflicts(out, conflicts)
	return nil
}

func printConflicts(out io.Writer, conflicts []patch.Conflict) {
	if len(conflicts) == 0 {
		fmt.Fprintln(out, "No conflicts.")
		return
	}
	fmt.Fprintf(out, "Conflicts (%d):\n", len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(out, "  [%d] %s\n", c.OperationIndex, c.Message)
	}
}

// parseResolutions parses repeated <index>=local|server flags.
func parseResolutions(flags []string) (map[int]kernel.Resolution, error) {
	out := make(map[int]kernel.Resolution, len(flags))
	for _, f := range flags {
		idx, res, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --resolve %q: expected <index>=local|server", f)
		}
		i, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid --resolve %q: bad operation index", f)
		}
		switch r := kernel.Resolution(strings.ToLower(strings.TrimSpace(res))); r {
		case kernel.ResolveLocal, kernel.ResolveServer:
			out[i] = r
		default:
			return nil, fmt.Errorf("invalid --resolve %q: resolution must be local or server", f)
		}
	}
	return out, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	resolutions, err := parseResolutions(resolveFlags)
	if err != nil {
		return err
	}
	env, err := readEnvelope(args[0])
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.kernel.Apply(cmd.Context(), env, resolutions)
	var conflictErr *kernel.ConflictError
	if errors.As(err, &conflictErr) {
		printConflicts(cmd.ErrOrStderr(), conflictErr.Conflicts)
		return err
	}
	if err != nil && !errors.Is(err, kernel.ErrPersist) {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d operations, dropped %d: %s (checkpoint %s)\n",
		res.Applied, len(res.Dropped), res.Diagram.GraphVersion, shortID(res.Checkpoint.ID))
	return err
}

func runRollback(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	d, ok, err := s.kernel.Rollback(cmd.Context(), args[0])
	if !ok {
		return fmt.Errorf("no checkpoint at version %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to %s\n", d.GraphVersion)
	return err
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	current := s.kernel.CurrentDiagram().GraphVersion
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-8s  %-22s  %-20s  %5s  %5s\n", "ID", "VERSION", "CREATED", "NODES", "EDGES")
	for _, cp := range s.kernel.CheckpointHistory() {
		marker := ""
		if cp.GraphVersion == current {
			marker = "  *"
		}
		fmt.Fprintf(out, "%-8s  %-22s  %-20s  %5d  %5d%s\n", shortID(cp.ID), cp.GraphVersion,
			cp.CreatedAt.UTC().Format(time.RFC3339), len(cp.Diagram.Nodes), len(cp.Diagram.Edges), marker)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	p := export.New(s.kernel.CurrentDiagram(), s.kernel.AliasOverrides())
	var data []byte
	if exportYAML {
		data, err = export.MarshalYAML(p)
	} else {
		data, err = export.Marshal(p)
	}
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", p.GraphVersion, exportOutput)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	p, err := export.Unmarshal(data)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	prev := s.kernel.CurrentDiagram().GraphVersion
	d, err := s.kernel.Replace(cmd.Context(), p.Diagram(), p.AliasOverrides, true)
	if err != nil && !errors.Is(err, kernel.ErrPersist) {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (was %s)\n", d.GraphVersion, prev)
	return err
}

// versionPayload finds the export of a version: the live diagram, or the
// latest checkpoint at that version.
func versionPayload(k *kernel.Kernel, version string) (export.Payload, error) {
	if d := k.CurrentDiagram(); d.GraphVersion == version {
		return export.New(d, nil), nil
	}
	cp, ok := k.Checkpoint(version)
	if !ok {
		return export.Payload{}, fmt.Errorf("no checkpoint at version %s", version)
	}
	return export.New(cp.Diagram, nil), nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := versionPayload(s.kernel, args[0])
	if err != nil {
		return err
	}
	b, err := versionPayload(s.kernel, args[1])
	if err != nil {
		return err
	}
	out, err := export.Diff(a, b)
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No differences.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	var (
		strengths map[string]float64
		err       error
	)
	if activityFile != "" {
		strengths, err = loadActivity(activityFile, time.Now())
	} else {
		strengths, err = loadStrengths(scoreFile)
	}
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.kernel.CurrentDiagram()
	ranked := scoreDiagram(s.logger, d, strengths, scoreTop)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-24s  %-6s  %-6s  %s\n", "NODE", "SCORE", "DIRECT", "LABEL")
	for _, r := range ranked {
		label := ""
		if n, ok := d.Node(r.NodeID); ok {
			label = n.Title()
		}
		direct := ""
		if r.IsDirect {
			direct = "yes"
		}
		fmt.Fprintf(out, "%-24s  %-6.3f  %-6s  %s\n", r.NodeID, r.Score.Score, direct, label)
	}
	return nil
}

// shortID safely truncates an ID string to 8 characters.
func shortID(s string) string {
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
