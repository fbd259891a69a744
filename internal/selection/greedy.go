// Package selection builds a bounded-size portfolio of configurations that
// minimizes aggregate cost over a corpus using greedy forward selection.
//
// Exact optimization over all K-subsets of M configurations is infeasible for
// realistic M, so the selector adds one configuration per round, always
// taking the candidate that minimizes the aggregate achievable cost given the
// configurations already chosen. Runtime is O(K·M·N) after an optional
// O(N·M²) pair seeding pass.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/spboyer/portsel/internal/eligibility"
	"github.com/spboyer/portsel/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultSize is the default portfolio size.
const DefaultSize = 6

var (
	// ErrEmptyCorpus is returned when no samples are left to select over.
	ErrEmptyCorpus = errors.New("no samples to select over")
	// ErrInvalidSize is returned for a portfolio size below 1.
	ErrInvalidSize = errors.New("portfolio size must be at least 1")
	// ErrSizeTooLarge is returned when the portfolio size exceeds the number
	// of distinct candidates (configurations plus the baseline sentinel).
	ErrSizeTooLarge = errors.New("portfolio size exceeds candidate count")
	// ErrInvalidPenalty is returned for a penalty below 1.
	ErrInvalidPenalty = errors.New("penalty must be at least 1")
)

// Seed selects how the first portfolio slots are filled.
type Seed string

const (
	// SeedEmpty starts from an empty portfolio; round 1 picks the single best
	// configuration.
	SeedEmpty Seed = "empty"
	// SeedPair exhaustively picks the best pair of configurations first.
	SeedPair Seed = "pair"
)

// ParseSeed validates a seed strategy name.
func ParseSeed(s string) (Seed, error) {
	switch Seed(s) {
	case SeedEmpty, SeedPair:
		return Seed(s), nil
	case "":
		return SeedPair, nil
	}
	return "", fmt.Errorf("unknown seed strategy %q: must be empty or pair", s)
}

// Options configures a selection run.
type Options struct {
	// Size is the number of configurations to select (K).
	Size int
	// Penalty multiplies the aggregate cost of ineligible candidates.
	Penalty float64
	Seed    Seed
	// Fallback names the baselines a sample can always fall back to. The
	// per-sample floor is the smallest present one, or the raw size when
	// none are configured or present.
	Fallback []string
	// Workers bounds the goroutines evaluating candidates within a round.
	// Zero means GOMAXPROCS.
	Workers int
}

// Result is a finished selection.
type Result struct {
	// Selected holds configuration indices in the order they were added.
	// Index M (the sentinel) means "use the baseline".
	Selected []int
	Rounds   []models.Round
}

// Selector runs greedy selection over a fixed corpus table.
type Selector struct {
	opts    Options
	tags    eligibility.Tags
	m       int
	costs   [][]int64
	weights []float64
	floor   []float64
}

// New prepares a selector over samples, each of which must carry m costs.
// The tags must cover m configurations plus the sentinel.
func New(samples []models.Sample, m int, tags eligibility.Tags, opts Options) (*Selector, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyCorpus
	}
	if opts.Size < 1 {
		return nil, ErrInvalidSize
	}
	if opts.Size > m+1 {
		return nil, fmt.Errorf("%w: size %d, %d configurations plus baseline", ErrSizeTooLarge, opts.Size, m)
	}
	if opts.Penalty == 0 {
		opts.Penalty = eligibility.DefaultPenalty
	}
	if err := ValidatePenalty(opts.Penalty); err != nil {
		return nil, err
	}
	if opts.Seed == "" {
		opts.Seed = SeedPair
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	s := &Selector{
		opts:    opts,
		tags:    tags,
		m:       m,
		costs:   make([][]int64, len(samples)),
		weights: make([]float64, len(samples)),
		floor:   make([]float64, len(samples)),
	}
	for i, smp := range samples {
		if len(smp.Costs) != m {
			return nil, fmt.Errorf("sample %d has %d costs, expected %d", i, len(smp.Costs), m)
		}
		s.costs[i] = smp.Costs
		s.weights[i] = smp.EffectiveWeight()
		s.floor[i] = float64(FallbackCost(smp, opts.Fallback))
	}
	return s, nil
}

// ValidatePenalty rejects penalties that do not discourage ineligible
// configurations. A penalty of exactly 1 disables the discouragement.
func ValidatePenalty(p float64) error {
	if math.IsNaN(p) || p < 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidPenalty, p)
	}
	return nil
}

// FallbackCost returns the smallest of the sample's fallback baselines, or the
// raw size when none are present.
func FallbackCost(s models.Sample, fallback []string) int64 {
	best, found := int64(math.MaxInt64), false
	for _, name := range fallback {
		if v, ok := s.Baseline(name); ok && v < best {
			best, found = v, true
		}
	}
	if !found {
		return s.Raw
	}
	return best
}

// cost returns the cost of candidate j on sample i. The sentinel stands for
// the fallback baseline, which floor already includes, so it is modeled as
// infinitely expensive.
func (s *Selector) cost(i, j int) float64 {
	if j == s.m {
		return math.Inf(1)
	}
	return float64(s.costs[i][j])
}

// Run executes the seeding pass and greedy rounds until Size configurations
// are selected. Every round appends a configuration even when it does not
// lower the objective, so the trace shows diminishing returns explicitly.
func (s *Selector) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	best := math.Inf(1)
	chosen := make([]bool, s.m+1)

	if s.opts.Seed == SeedPair && s.opts.Size >= 2 && s.m >= 2 {
		j0, j1, score := s.bestPair()
		s.add(j0)
		s.add(j1)
		chosen[j0], chosen[j1] = true, true
		best = score
		res.Selected = append(res.Selected, j0, j1)
		res.Rounds = append(res.Rounds, models.Round{
			Number:    1,
			Added:     []int{j0, j1},
			Objective: best,
			Achieved:  s.achieved(),
		})
		slog.Debug("Seeded portfolio with pair", "first", j0, "second", j1, "objective", best)
	}

	for len(res.Selected) < s.opts.Size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		totals, err := s.evaluate(ctx, chosen)
		if err != nil {
			return nil, err
		}

		pick, total := -1, math.Inf(1)
		for j, t := range totals {
			if chosen[j] {
				continue
			}
			if pick == -1 || t < total {
				pick, total = j, t
			}
		}
		if pick == -1 {
			// unreachable: Size <= m+1 guarantees a free candidate
			return nil, fmt.Errorf("%w: no candidate left in round %d", ErrSizeTooLarge, len(res.Rounds)+1)
		}

		if total < best {
			best = total
		}
		s.add(pick)
		chosen[pick] = true
		res.Selected = append(res.Selected, pick)
		res.Rounds = append(res.Rounds, models.Round{
			Number:    len(res.Rounds) + 1,
			Added:     []int{pick},
			Objective: best,
			Achieved:  s.achieved(),
		})
		slog.Debug("Selected configuration", "round", len(res.Rounds), "added", pick, "total", total, "objective", best)
	}

	return res, nil
}

// evaluate computes total(j) for every candidate. Workers only read the
// shared table and write their own slot; all of them finish before the
// caller picks the argmin.
func (s *Selector) evaluate(ctx context.Context, chosen []bool) ([]float64, error) {
	totals := make([]float64, s.m+1)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for j := 0; j <= s.m; j++ {
		if chosen[j] {
			totals[j] = math.Inf(1)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			totals[j] = s.total(j)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return totals, nil
}

// total is Σ w·min(floor, cost_j), inflated for ineligible candidates.
func (s *Selector) total(j int) float64 {
	sum := 0.0
	for i := range s.costs {
		sum += s.weights[i] * math.Min(s.floor[i], s.cost(i, j))
	}
	return sum * s.tags.Multiplier(j, s.opts.Penalty)
}

// bestPair scans all unordered pairs of real configurations. Ties go to the
// lexicographically lowest (j0, j1).
func (s *Selector) bestPair() (int, int, float64) {
	bj0, bj1, best := 0, 1, math.Inf(1)
	for j0 := 0; j0 < s.m-1; j0++ {
		for j1 := j0 + 1; j1 < s.m; j1++ {
			sum := 0.0
			for i := range s.costs {
				c := math.Min(s.floor[i], math.Min(s.cost(i, j0), s.cost(i, j1)))
				sum += s.weights[i] * c
			}
			if !s.tags.Eligible(j0) || !s.tags.Eligible(j1) {
				sum *= s.opts.Penalty
			}
			if sum < best {
				bj0, bj1, best = j0, j1, sum
			}
		}
	}
	return bj0, bj1, best
}

func (s *Selector) add(j int) {
	for i := range s.floor {
		if c := s.cost(i, j); c < s.floor[i] {
			s.floor[i] = c
		}
	}
}

func (s *Selector) achieved() float64 {
	sum := 0.0
	for i, f := range s.floor {
		sum += s.weights[i] * f
	}
	return sum
}

// Select is a convenience wrapper around New and Run.
func Select(ctx context.Context, samples []models.Sample, m int, tags eligibility.Tags, opts Options) (*Result, error) {
	sel, err := New(samples, m, tags, opts)
	if err != nil {
		return nil, err
	}
	return sel.Run(ctx)
}
