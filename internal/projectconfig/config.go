// Package projectconfig provides the ProjectConfig struct and loader for
// .portsel.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spboyer/portsel/internal/degenerate"
	"github.com/spboyer/portsel/internal/eligibility"
	"github.com/spboyer/portsel/internal/selection"
	"github.com/spboyer/portsel/internal/statistics"
	"github.com/spboyer/portsel/internal/utils"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".portsel.yaml"

// Default values for project configuration. These are the single source of
// truth for the CLI: New() references them and no other code should
// duplicate them.
const (
	DefaultSize    = selection.DefaultSize
	DefaultPenalty = eligibility.DefaultPenalty
	DefaultSeed    = string(selection.SeedPair)
	DefaultWorkers = 0

	DefaultRatioThreshold    = degenerate.DefaultRatioThreshold
	DefaultAbsoluteThreshold = degenerate.DefaultAbsoluteThreshold
	DefaultReference         = degenerate.DefaultReference
	DefaultMode              = string(degenerate.ModeBoth)

	DefaultVariant = 0
	DefaultFormat  = "auto"

	DefaultCacheDir = ".portsel-cache"

	DefaultConfidence          = 0.95
	DefaultBootstrapIterations = statistics.DefaultBootstrapIterations
	DefaultBootstrapSeed       = 1
)

// SelectionConfig holds greedy selector settings.
type SelectionConfig struct {
	Size     int      `yaml:"size,omitempty"`
	Penalty  float64  `yaml:"penalty,omitempty"`
	Seed     string   `yaml:"seed,omitempty"`
	Workers  int      `yaml:"workers,omitempty"`
	Fallback []string `yaml:"fallback,omitempty"`
}

// DegenerateConfig holds the degeneracy rule and policy mode.
type DegenerateConfig struct {
	Ratio     float64 `yaml:"ratio,omitempty"`
	Absolute  *int64  `yaml:"absolute,omitempty"`
	Reference string  `yaml:"reference,omitempty"`
	Mode      string  `yaml:"mode,omitempty"`
}

// EligibilityConfig holds loosely typed rules, decoded by the eligibility
// package.
type EligibilityConfig struct {
	Rules []map[string]any `yaml:"rules,omitempty"`
}

// InputConfig holds corpus decoding settings.
type InputConfig struct {
	Cut         *bool    `yaml:"cut,omitempty"`
	Variant     *int     `yaml:"variant,omitempty"`
	Baselines   []string `yaml:"baselines,omitempty"`
	Descriptors string   `yaml:"descriptors,omitempty"`
	Format      string   `yaml:"format,omitempty"`
	Include     []string `yaml:"include,omitempty"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// ReportConfig holds output settings. An empty Format picks table on a
// terminal and json otherwise.
type ReportConfig struct {
	Format              string  `yaml:"format,omitempty"`
	Confidence          float64 `yaml:"confidence,omitempty"`
	BootstrapIterations int     `yaml:"bootstrap_iterations,omitempty"`
	BootstrapSeed       *int64  `yaml:"bootstrap_seed,omitempty"`
}

// TelemetryConfig holds metrics export settings.
type TelemetryConfig struct {
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .portsel.yaml.
type ProjectConfig struct {
	Selection   SelectionConfig   `yaml:"selection,omitempty"`
	Degenerate  DegenerateConfig  `yaml:"degenerate,omitempty"`
	Eligibility EligibilityConfig `yaml:"eligibility,omitempty"`
	Input       InputConfig       `yaml:"input,omitempty"`
	Cache       CacheConfig       `yaml:"cache,omitempty"`
	Report      ReportConfig      `yaml:"report,omitempty"`
	Telemetry   TelemetryConfig   `yaml:"telemetry,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Selection: SelectionConfig{
			Size:    DefaultSize,
			Penalty: DefaultPenalty,
			Seed:    DefaultSeed,
			Workers: DefaultWorkers,
		},
		Degenerate: DegenerateConfig{
			Ratio:     DefaultRatioThreshold,
			Absolute:  utils.Ptr[int64](DefaultAbsoluteThreshold),
			Reference: DefaultReference,
			Mode:      DefaultMode,
		},
		Input: InputConfig{
			Cut:     utils.Ptr(false),
			Variant: utils.Ptr(DefaultVariant),
			Format:  DefaultFormat,
		},
		Cache: CacheConfig{
			Enabled: utils.Ptr(false),
			Dir:     DefaultCacheDir,
		},
		Report: ReportConfig{
			Confidence:          DefaultConfidence,
			BootstrapIterations: DefaultBootstrapIterations,
			BootstrapSeed:       utils.Ptr[int64](DefaultBootstrapSeed),
		},
	}
}

// Load finds .portsel.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, _, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	if err := overlay(cfg, data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads an explicit configuration file and overlays it on defaults.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg := New()
	if err := overlay(cfg, data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find returns the path of the nearest .portsel.yaml walking up from
// startDir, or os.ErrNotExist.
func Find(startDir string) (string, error) {
	_, p, err := findConfigFile(startDir)
	return p, err
}

func overlay(cfg *ProjectConfig, data []byte) error {
	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing %s: %w", FileName, err)
	}
	mergeConfig(cfg, &fileCfg)
	return nil
}

// findConfigFile walks up from dir looking for .portsel.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, string, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, "", os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Selection
	if src.Selection.Size != 0 {
		dst.Selection.Size = src.Selection.Size
	}
	if src.Selection.Penalty != 0 {
		dst.Selection.Penalty = src.Selection.Penalty
	}
	if src.Selection.Seed != "" {
		dst.Selection.Seed = src.Selection.Seed
	}
	if src.Selection.Workers != 0 {
		dst.Selection.Workers = src.Selection.Workers
	}
	if src.Selection.Fallback != nil {
		dst.Selection.Fallback = src.Selection.Fallback
	}

	// Degenerate
	if src.Degenerate.Ratio != 0 {
		dst.Degenerate.Ratio = src.Degenerate.Ratio
	}
	if src.Degenerate.Absolute != nil {
		dst.Degenerate.Absolute = src.Degenerate.Absolute
	}
	if src.Degenerate.Reference != "" {
		dst.Degenerate.Reference = src.Degenerate.Reference
	}
	if src.Degenerate.Mode != "" {
		dst.Degenerate.Mode = src.Degenerate.Mode
	}

	// Eligibility
	if src.Eligibility.Rules != nil {
		dst.Eligibility.Rules = src.Eligibility.Rules
	}

	// Input
	if src.Input.Cut != nil {
		dst.Input.Cut = src.Input.Cut
	}
	if src.Input.Variant != nil {
		dst.Input.Variant = src.Input.Variant
	}
	if src.Input.Baselines != nil {
		dst.Input.Baselines = src.Input.Baselines
	}
	if src.Input.Descriptors != "" {
		dst.Input.Descriptors = src.Input.Descriptors
	}
	if src.Input.Format != "" {
		dst.Input.Format = src.Input.Format
	}
	if src.Input.Include != nil {
		dst.Input.Include = src.Input.Include
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	// Report
	if src.Report.Format != "" {
		dst.Report.Format = src.Report.Format
	}
	if src.Report.Confidence != 0 {
		dst.Report.Confidence = src.Report.Confidence
	}
	if src.Report.BootstrapIterations != 0 {
		dst.Report.BootstrapIterations = src.Report.BootstrapIterations
	}
	if src.Report.BootstrapSeed != nil {
		dst.Report.BootstrapSeed = src.Report.BootstrapSeed
	}

	// Telemetry
	if src.Telemetry.MetricsFile != "" {
		dst.Telemetry.MetricsFile = src.Telemetry.MetricsFile
	}
}
