package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spboyer/portsel/internal/cache"
	"github.com/spboyer/portsel/internal/corpus"
	"github.com/spboyer/portsel/internal/degenerate"
	"github.com/spboyer/portsel/internal/eligibility"
	"github.com/spboyer/portsel/internal/models"
	"github.com/spboyer/portsel/internal/orchestration"
	"github.com/spboyer/portsel/internal/projectconfig"
	"github.com/spboyer/portsel/internal/reporting"
	"github.com/spboyer/portsel/internal/selection"
	"github.com/spboyer/portsel/internal/spinner"
	"github.com/spboyer/portsel/internal/telemetry"
	"github.com/spboyer/portsel/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string

	size     int
	penalty  float64
	seed     string
	workers  int
	fallback []string

	ratioThreshold    float64
	absoluteThreshold int64
	reference         string
	policyMode        string

	cut             bool
	variant         int
	baselines       []string
	descriptorsPath string
	inputFormat     string
	includes        []string

	outputFormat        string
	outputPath          string
	confidence          float64
	bootstrapIterations int
	bootstrapSeed       int64

	enableCache    bool
	disableCache   bool
	selectCacheDir string

	metricsFile string
)

func newSelectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <corpus>",
		Short: "Select a configuration portfolio from a benchmark corpus",
		Long: `Select a fixed-size portfolio of compressor configurations.

The corpus is a JSONL benchmark log or a CSV cost table. Use "-" to read
standard input. Files ending in .zst or .gz are decompressed, and
https://<account>.blob.core.windows.net/<container>/<blob> URLs are
downloaded from Azure Blob Storage.

Settings come from the nearest .portsel.yaml; flags override them.

Examples:
  portsel select bench.jsonl.zst -k 4
  portsel select costs.csv --mode exclude --format json -o result.json
  zstdcat bench.jsonl.zst | portsel select - --cut`,
		Args: cobra.ExactArgs(1),
		RunE: selectCommandE,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: nearest .portsel.yaml)")

	cmd.Flags().IntVarP(&size, "size", "k", projectconfig.DefaultSize, "Number of configurations to select")
	cmd.Flags().Float64Var(&penalty, "penalty", projectconfig.DefaultPenalty, "Cost multiplier for ineligible configurations (at least 1)")
	cmd.Flags().StringVar(&seed, "seed", projectconfig.DefaultSeed, "Seed strategy: empty or pair")
	cmd.Flags().IntVar(&workers, "workers", projectconfig.DefaultWorkers, "Concurrent candidate evaluators (default: GOMAXPROCS)")
	cmd.Flags().StringSliceVar(&fallback, "fallback", nil, "Baselines every sample may fall back to (default: raw)")

	cmd.Flags().Float64Var(&ratioThreshold, "ratio", projectconfig.DefaultRatioThreshold, "Degenerate when reference/raw exceeds this ratio")
	cmd.Flags().Int64Var(&absoluteThreshold, "absolute", projectconfig.DefaultAbsoluteThreshold, "Degenerate when the reference saves fewer bytes than this")
	cmd.Flags().StringVar(&reference, "reference", projectconfig.DefaultReference, "Baseline the degeneracy rule is evaluated against")
	cmd.Flags().StringVar(&policyMode, "mode", projectconfig.DefaultMode, "Degenerate policy: exclude, neutralize or both")

	cmd.Flags().BoolVar(&cut, "cut", false, "Strip path prefixes up to the first ':'")
	cmd.Flags().IntVar(&variant, "variant", projectconfig.DefaultVariant, "Option group to read from benchmark logs")
	cmd.Flags().StringSliceVar(&baselines, "baseline", nil, "Baselines to keep and report (default: all)")
	cmd.Flags().StringVar(&descriptorsPath, "descriptors", "", "YAML file with configuration descriptors")
	cmd.Flags().StringVar(&inputFormat, "input-format", projectconfig.DefaultFormat, "Input format: auto, jsonl or csv")
	cmd.Flags().StringArrayVar(&includes, "include", nil, "Only use samples whose path matches this glob (can be repeated)")

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format: table, json or csv (default: table on a terminal, json otherwise)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().Float64Var(&confidence, "confidence", projectconfig.DefaultConfidence, "Confidence level of the ratio interval")
	cmd.Flags().IntVar(&bootstrapIterations, "bootstrap-iterations", projectconfig.DefaultBootstrapIterations, "Bootstrap resamples for the ratio interval")
	cmd.Flags().Int64Var(&bootstrapSeed, "bootstrap-seed", projectconfig.DefaultBootstrapSeed, "Bootstrap random seed")

	cmd.Flags().BoolVar(&enableCache, "cache", false, "Cache the parsed corpus (default: false)")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable corpus caching")
	cmd.Flags().StringVar(&selectCacheDir, "cache-dir", projectconfig.DefaultCacheDir, "Cache directory for parsed corpora")

	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	return cmd
}

func selectCommandE(cmd *cobra.Command, args []string) error {
	location := args[0]

	cfg, err := loadProjectConfig(configPath)
	if err != nil {
		return err
	}
	applySelectFlags(cmd, cfg)

	runCfg, err := buildRunConfig(cfg)
	if err != nil {
		return err
	}
	loadOpts, err := buildLoadOptions(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sources := corpus.NewSources()
	sources.Stdin = cmd.InOrStdin()

	c, err := loadCorpus(ctx, sources, location, loadOpts, cfg.Cache)
	if err != nil {
		return asEmptyCorpusError(err)
	}

	runner := orchestration.NewRunner(runCfg, orchestration.WithPathFilters(cfg.Input.Include...))

	var recorder *telemetry.Recorder
	if cfg.Telemetry.MetricsFile != "" {
		recorder = telemetry.NewRecorder()
		runner.OnProgress(recorder.Listener())
	}

	listener, stopSpinner := progressSpinner(cmd.ErrOrStderr())
	if listener != nil {
		runner.OnProgress(listener)
	}

	summary, err := runner.Run(ctx, c)
	stopSpinner()
	if err != nil {
		return asEmptyCorpusError(err)
	}

	if recorder != nil {
		if err := recorder.WriteFile(cfg.Telemetry.MetricsFile); err != nil {
			return err
		}
		slog.Debug("Wrote metrics", "path", cfg.Telemetry.MetricsFile)
	}

	return writeSummary(cmd, cfg.Report.Format, summary)
}

// loadProjectConfig reads an explicit config file, or discovers one from the
// working directory. Relative paths in the file resolve against its directory.
func loadProjectConfig(path string) (*projectconfig.ProjectConfig, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		found, err := projectconfig.Find(wd)
		if errors.Is(err, os.ErrNotExist) {
			return projectconfig.New(), nil
		}
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg, err := projectconfig.LoadFile(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	cfg.Input.Descriptors = utils.ResolvePath(cfg.Input.Descriptors, dir)
	cfg.Telemetry.MetricsFile = utils.ResolvePath(cfg.Telemetry.MetricsFile, dir)
	return cfg, nil
}

// applySelectFlags overlays explicitly set flags onto cfg.
func applySelectFlags(cmd *cobra.Command, cfg *projectconfig.ProjectConfig) {
	f := cmd.Flags()

	if f.Changed("size") {
		cfg.Selection.Size = size
	}
	if f.Changed("penalty") {
		cfg.Selection.Penalty = penalty
	}
	if f.Changed("seed") {
		cfg.Selection.Seed = seed
	}
	if f.Changed("workers") {
		cfg.Selection.Workers = workers
	}
	if f.Changed("fallback") {
		cfg.Selection.Fallback = fallback
	}

	if f.Changed("ratio") {
		cfg.Degenerate.Ratio = ratioThreshold
	}
	if f.Changed("absolute") {
		abs := absoluteThreshold
		cfg.Degenerate.Absolute = &abs
	}
	if f.Changed("reference") {
		cfg.Degenerate.Reference = reference
	}
	if f.Changed("mode") {
		cfg.Degenerate.Mode = policyMode
	}

	if f.Changed("cut") {
		c := cut
		cfg.Input.Cut = &c
	}
	if f.Changed("variant") {
		v := variant
		cfg.Input.Variant = &v
	}
	if f.Changed("baseline") {
		cfg.Input.Baselines = baselines
	}
	if f.Changed("descriptors") {
		cfg.Input.Descriptors = descriptorsPath
	}
	if f.Changed("input-format") {
		cfg.Input.Format = inputFormat
	}
	if f.Changed("include") {
		cfg.Input.Include = includes
	}

	if f.Changed("format") {
		cfg.Report.Format = outputFormat
	}
	if f.Changed("confidence") {
		cfg.Report.Confidence = confidence
	}
	if f.Changed("bootstrap-iterations") {
		cfg.Report.BootstrapIterations = bootstrapIterations
	}
	if f.Changed("bootstrap-seed") {
		s := bootstrapSeed
		cfg.Report.BootstrapSeed = &s
	}

	// --no-cache wins over both --cache and the config file
	if enableCache {
		cfg.Cache.Enabled = utils.Ptr(true)
	}
	if disableCache {
		cfg.Cache.Enabled = utils.Ptr(false)
	}
	if f.Changed("cache-dir") {
		cfg.Cache.Dir = selectCacheDir
	}

	if f.Changed("metrics-file") {
		cfg.Telemetry.MetricsFile = metricsFile
	}
}

func buildRunConfig(cfg *projectconfig.ProjectConfig) (orchestration.Config, error) {
	if err := selection.ValidatePenalty(cfg.Selection.Penalty); err != nil {
		return orchestration.Config{}, err
	}
	seedStrategy, err := selection.ParseSeed(cfg.Selection.Seed)
	if err != nil {
		return orchestration.Config{}, err
	}
	mode, err := degenerate.ParseMode(cfg.Degenerate.Mode)
	if err != nil {
		return orchestration.Config{}, err
	}
	rules, err := eligibility.DecodeRules(cfg.Eligibility.Rules)
	if err != nil {
		return orchestration.Config{}, err
	}

	policy := degenerate.NewPolicy()
	policy.RatioThreshold = cfg.Degenerate.Ratio
	if cfg.Degenerate.Absolute != nil {
		policy.AbsoluteThreshold = *cfg.Degenerate.Absolute
	}
	policy.Reference = cfg.Degenerate.Reference

	var bootSeed int64 = projectconfig.DefaultBootstrapSeed
	if cfg.Report.BootstrapSeed != nil {
		bootSeed = *cfg.Report.BootstrapSeed
	}

	return orchestration.Config{
		Selection: selection.Options{
			Size:     cfg.Selection.Size,
			Penalty:  cfg.Selection.Penalty,
			Seed:     seedStrategy,
			Fallback: cfg.Selection.Fallback,
			Workers:  cfg.Selection.Workers,
		},
		Policy:              policy,
		Mode:                mode,
		Rules:               rules,
		Baselines:           cfg.Input.Baselines,
		Confidence:          cfg.Report.Confidence,
		BootstrapIterations: cfg.Report.BootstrapIterations,
		BootstrapSeed:       bootSeed,
	}, nil
}

func buildLoadOptions(cfg *projectconfig.ProjectConfig) (corpus.Options, error) {
	format, err := corpus.ParseFormat(cfg.Input.Format)
	if err != nil {
		return corpus.Options{}, err
	}
	opts := corpus.Options{
		Format:    format,
		Baselines: cfg.Input.Baselines,
	}
	if cfg.Input.Cut != nil {
		opts.Cut = *cfg.Input.Cut
	}
	if cfg.Input.Variant != nil {
		opts.Variant = *cfg.Input.Variant
	}
	if cfg.Input.Descriptors != "" {
		configs, err := corpus.LoadDescriptors(cfg.Input.Descriptors)
		if err != nil {
			return corpus.Options{}, err
		}
		opts.Configurations = configs
	}
	return opts, nil
}

// loadCorpus reads location, consulting the parsed corpus cache when enabled.
func loadCorpus(ctx context.Context, opener corpus.Opener, location string, opts corpus.Options, cc projectconfig.CacheConfig) (*models.Corpus, error) {
	if cc.Enabled == nil || !*cc.Enabled || !cache.Cacheable(location) {
		return corpus.Load(ctx, opener, location, opts)
	}

	dir, err := filepath.Abs(cc.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache directory: %w", err)
	}
	store := cache.New(dir)

	key, err := cache.CacheKey(location, opts)
	if err != nil {
		// unreadable input: let the loader report it
		return corpus.Load(ctx, opener, location, opts)
	}
	if c, ok := store.Get(key); ok {
		slog.Info("Using cached corpus", "location", location, "samples", len(c.Samples))
		return c, nil
	}

	c, err := corpus.Load(ctx, opener, location, opts)
	if err != nil {
		return nil, err
	}
	if err := store.Put(key, c); err != nil {
		slog.Warn("Failed to cache corpus", "error", err)
	}
	return c, nil
}

func writeSummary(cmd *cobra.Command, name string, summary *models.Summary) error {
	var w io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	format, err := resolveFormat(name, w)
	if err != nil {
		return err
	}
	if err := reporting.Write(w, format, summary); err != nil {
		return err
	}
	if outputPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outputPath) //nolint:errcheck
	}
	return nil
}

// resolveFormat picks table for terminals and json for pipes and files when
// no format is configured.
func resolveFormat(name string, w io.Writer) (reporting.Format, error) {
	if name != "" {
		return reporting.ParseFormat(name)
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return reporting.FormatTable, nil
	}
	return reporting.FormatJSON, nil
}

func asEmptyCorpusError(err error) error {
	if errors.Is(err, corpus.ErrEmptyCorpus) || errors.Is(err, selection.ErrEmptyCorpus) {
		return &EmptyCorpusError{Err: err}
	}
	return err
}

// progressSpinner animates run progress on w when it is a terminal.
func progressSpinner(w io.Writer) (orchestration.ProgressListener, func()) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, func() {}
	}
	s := spinner.Start(w, "Selecting portfolio...")
	return spinnerListener(s), s.Stop
}

func spinnerListener(s *spinner.Spinner) orchestration.ProgressListener {
	return func(e orchestration.ProgressEvent) {
		switch e.EventType {
		case orchestration.EventPolicyStart:
			s.Set(fmt.Sprintf("Selecting portfolio (%s, %d samples)...", e.Policy, e.Samples))
		case orchestration.EventPolicyComplete:
			s.Set(fmt.Sprintf("Scored %s portfolio", e.Policy))
		}
	}
}
