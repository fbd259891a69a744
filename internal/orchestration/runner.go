// Package orchestration runs the full selection pipeline over a corpus: sample
// filtering, eligibility tagging, the degenerate policies, greedy selection
// and scoring.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spboyer/portsel/internal/degenerate"
	"github.com/spboyer/portsel/internal/eligibility"
	"github.com/spboyer/portsel/internal/models"
	"github.com/spboyer/portsel/internal/reporting"
	"github.com/spboyer/portsel/internal/selection"
)

// Config holds the knobs of a run.
type Config struct {
	Selection selection.Options
	Policy    degenerate.Policy
	Mode      degenerate.Mode
	Rules     []eligibility.Rule
	// Baselines are the named baselines reported against. Empty means all.
	Baselines []string

	Confidence          float64
	BootstrapIterations int
	BootstrapSeed       int64
}

// Runner orchestrates one selection run per degenerate policy.
type Runner struct {
	cfg Config

	// Sample filtering by path
	pathFilters []string

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventRunStart       EventType = "run_start"
	EventPolicyStart    EventType = "policy_start"
	EventPolicyComplete EventType = "policy_complete"
	EventRunComplete    EventType = "run_complete"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType EventType
	Policy    models.Policy
	Samples   int
	// Degenerate is the number of samples the policy classified degenerate.
	Degenerate int
	// Report is set on EventPolicyComplete.
	Report *models.Report
	// Summary is set on EventRunComplete.
	Summary *models.Summary
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPathFilters sets glob patterns used to filter samples by path.
func WithPathFilters(patterns ...string) RunnerOption {
	return func(r *Runner) {
		r.pathFilters = patterns
	}
}

// WithProgress registers a progress listener at construction.
func WithProgress(listener ProgressListener) RunnerOption {
	return func(r *Runner) {
		r.listeners = append(r.listeners, listener)
	}
}

// NewRunner creates a new runner. A zero Policy means the default thresholds.
func NewRunner(cfg Config, opts ...RunnerOption) *Runner {
	if cfg.Policy == (degenerate.Policy{}) {
		cfg.Policy = degenerate.NewPolicy()
	}
	r := &Runner{cfg: cfg}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes the pipeline. Any policy that leaves no samples fails the
// whole run; no partial summary is returned.
func (r *Runner) Run(ctx context.Context, c *models.Corpus) (*models.Summary, error) {
	if c == nil || len(c.Samples) == 0 {
		return nil, selection.ErrEmptyCorpus
	}
	mode := r.cfg.Mode
	if mode == "" {
		mode = degenerate.ModeBoth
	}

	samples, err := FilterSamples(c.Samples, r.pathFilters)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no sample matches the path filters: %w", selection.ErrEmptyCorpus)
	}

	filter, err := eligibility.New(r.cfg.Rules)
	if err != nil {
		return nil, err
	}
	m := len(c.Configurations)
	tags := filter.Tag(c.Configurations)
	slog.Info("Tagged configurations", "configurations", m, "eligible", tags.Count(), "rules", len(r.cfg.Rules))
	for i, cfg := range c.Configurations {
		if broken := filter.Violations(cfg.Descriptor); len(broken) > 0 {
			slog.Debug("Configuration penalized", "index", i, "descriptor", cfg.Descriptor.String(), "rules", broken)
		}
	}

	opts := r.cfg.Selection
	seed := opts.Seed
	if seed == "" {
		seed = selection.SeedPair
	}
	summary := &models.Summary{
		Configurations: m,
		Stats:          c.Stats,
		Settings: models.RunSettings{
			Size:              opts.Size,
			Penalty:           opts.Penalty,
			Seed:              string(seed),
			Fallback:          opts.Fallback,
			RatioThreshold:    r.cfg.Policy.RatioThreshold,
			AbsoluteThreshold: r.cfg.Policy.AbsoluteThreshold,
			Reference:         r.cfg.Policy.Reference,
		},
	}
	if summary.Settings.Penalty <= 0 {
		summary.Settings.Penalty = eligibility.DefaultPenalty
	}

	r.notifyProgress(ProgressEvent{EventType: EventRunStart, Samples: len(samples)})

	for _, pm := range mode.Modes() {
		policy := models.Policy(pm)
		outcome := r.cfg.Policy.Apply(samples, pm)
		summary.DegenerateFraction = outcome.Fraction()

		r.notifyProgress(ProgressEvent{
			EventType:  EventPolicyStart,
			Policy:     policy,
			Samples:    len(outcome.Samples),
			Degenerate: outcome.Degenerate,
		})
		slog.Info("Running selection", "policy", string(policy), "samples", len(outcome.Samples),
			"degenerate", outcome.Degenerate, "size", opts.Size)

		res, err := selection.Select(ctx, outcome.Samples, m, tags, opts)
		if err != nil {
			if errors.Is(err, selection.ErrEmptyCorpus) {
				return nil, fmt.Errorf("policy %s left %d of %d samples: %w", policy, len(outcome.Samples), len(samples), err)
			}
			return nil, fmt.Errorf("policy %s: %w", policy, err)
		}

		report, err := reporting.Build(reporting.Input{
			Policy:              policy,
			Samples:             outcome.Samples,
			Configurations:      c.Configurations,
			Tags:                tags,
			Result:              res,
			Fallback:            opts.Fallback,
			Baselines:           r.cfg.Baselines,
			Outcome:             outcome,
			Confidence:          r.cfg.Confidence,
			BootstrapIterations: r.cfg.BootstrapIterations,
			BootstrapSeed:       r.cfg.BootstrapSeed,
		})
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", policy, err)
		}
		for _, cond := range report.Conditions {
			slog.Warn("Report condition", "policy", string(policy), "condition", cond)
		}
		summary.Runs = append(summary.Runs, report)

		r.notifyProgress(ProgressEvent{
			EventType:  EventPolicyComplete,
			Policy:     policy,
			Samples:    len(outcome.Samples),
			Degenerate: outcome.Degenerate,
			Report:     report,
		})
		slog.Info("Selection complete", "policy", string(policy), "portfolio", report.Indices(),
			"achieved", report.Achieved, "objective", report.Objective)
	}

	r.notifyProgress(ProgressEvent{EventType: EventRunComplete, Samples: len(samples), Summary: summary})
	return summary, nil
}
