// Package reporting scores a finished selection: totals against every tracked
// baseline, the prescient per-sample bound, ratio statistics and renderers.
package reporting

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/spboyer/portsel/internal/degenerate"
	"github.com/spboyer/portsel/internal/eligibility"
	"github.com/spboyer/portsel/internal/metrics"
	"github.com/spboyer/portsel/internal/models"
	"github.com/spboyer/portsel/internal/selection"
	"github.com/spboyer/portsel/internal/statistics"
)

// DefaultConfidence is the bootstrap confidence level.
const DefaultConfidence = 0.95

var (
	// ErrEmptyCorpus is returned when there are no samples to score. A
	// portfolio whose total cost is zero is not an error.
	ErrEmptyCorpus = errors.New("no samples to report on")
	// ErrZeroBaseline is reported through [models.Report.Err].
	ErrZeroBaseline = models.ErrZeroBaseline
)

// Input is everything Build needs from one policy run.
type Input struct {
	Policy         models.Policy
	Samples        []models.Sample
	Configurations []models.Configuration
	Tags           eligibility.Tags
	Result         *selection.Result
	// Fallback names the baselines each sample can fall back to, as passed
	// to the selector.
	Fallback []string
	// Baselines are the named baselines to report against. Empty means every
	// baseline seen in the samples. Raw is always reported first.
	Baselines []string
	Outcome   degenerate.Outcome

	Confidence          float64
	BootstrapIterations int
	BootstrapSeed       int64
}

// Build aggregates one selection run into a report. It performs no I/O.
func Build(in Input) (*models.Report, error) {
	if len(in.Samples) == 0 {
		return nil, ErrEmptyCorpus
	}
	if in.Result == nil || len(in.Result.Selected) == 0 {
		return nil, fmt.Errorf("building %s report: no selection result", in.Policy)
	}
	m := len(in.Configurations)

	r := &models.Report{
		Policy:             in.Policy,
		Samples:            len(in.Samples),
		DegenerateSamples:  in.Outcome.Degenerate,
		DegenerateFraction: in.Outcome.Fraction(),
	}

	for _, j := range in.Result.Selected {
		entry := models.PortfolioEntry{Index: j, Eligible: in.Tags.Eligible(j), Sentinel: j == m}
		if j < m {
			entry.Descriptor = in.Configurations[j].Descriptor
		}
		r.Portfolio = append(r.Portfolio, entry)
	}

	names := in.Baselines
	if len(names) == 0 {
		names = baselineNames(in.Samples)
	}
	totals := make(map[string]float64, len(names))

	ratios := make([]float64, 0, len(in.Samples))
	ratioWeights := make([]float64, 0, len(in.Samples))
	num := make([]float64, len(in.Samples))
	den := make([]float64, len(in.Samples))

	for i, s := range in.Samples {
		w := s.EffectiveWeight()
		floor := float64(selection.FallbackCost(s, in.Fallback))

		achieved := floor
		perfect := floor
		for j := 0; j < m; j++ {
			c := float64(s.Costs[j])
			if in.Tags.Eligible(j) && c < perfect {
				perfect = c
			}
		}
		for _, j := range in.Result.Selected {
			if j < m && float64(s.Costs[j]) < achieved {
				achieved = float64(s.Costs[j])
			}
		}

		r.Achieved += w * achieved
		r.PerfectPrediction += w * perfect
		r.RawTotal += w * float64(s.Raw)
		for _, name := range names {
			v, ok := s.Baseline(name)
			if !ok {
				v = s.Raw
			}
			totals[name] += w * float64(v)
		}

		num[i] = w * achieved
		den[i] = w * float64(s.Raw)
		if s.Raw > 0 {
			ratios = append(ratios, achieved/float64(s.Raw))
			ratioWeights = append(ratioWeights, w)
		}
	}

	r.Shares = append(r.Shares, share(models.RawBaseline, r.RawTotal, r.Achieved))
	for _, name := range names {
		if name == models.RawBaseline {
			continue
		}
		r.Shares = append(r.Shares, share(name, totals[name], r.Achieved))
	}
	for _, s := range r.Shares {
		if !s.Defined {
			r.Conditions = append(r.Conditions, fmt.Sprintf("%s: %s", ErrZeroBaseline, s.Name))
		}
	}

	r.Rounds = make([]models.Round, len(in.Result.Rounds))
	for k, round := range in.Result.Rounds {
		round.PercentOfRaw = percent(round.Achieved, r.RawTotal)
		round.Percent = make(map[string]float64, len(r.Shares))
		for _, s := range r.Shares {
			if s.Defined {
				round.Percent[s.Name] = percent(round.Achieved, s.Total)
			}
		}
		r.Rounds[k] = round
	}
	r.Objective = in.Result.Rounds[len(in.Result.Rounds)-1].Objective

	r.PerfectPercent = percent(r.PerfectPrediction, r.RawTotal)
	r.Headroom = r.Achieved - r.PerfectPrediction

	if len(ratios) > 0 {
		r.Ratio = metrics.Describe(ratios, ratioWeights)
	}

	level := in.Confidence
	if level <= 0 || level >= 1 {
		level = DefaultConfidence
	}
	iterations := in.BootstrapIterations
	if iterations <= 0 {
		iterations = statistics.DefaultBootstrapIterations
	}
	r.RatioCI = statistics.RatioCI(num, den, level, iterations, in.BootstrapSeed)

	return r, nil
}

func share(name string, total, achieved float64) models.BaselineShare {
	s := models.BaselineShare{Name: name, Total: total}
	if total == 0 {
		return s
	}
	s.Defined = true
	s.Percent = 100 * achieved / total
	return s
}

func percent(part, total float64) float64 {
	if total == 0 || math.IsNaN(total) {
		return 0
	}
	return 100 * part / total
}

func baselineNames(samples []models.Sample) []string {
	seen := map[string]bool{}
	for _, s := range samples {
		for name := range s.Baselines {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
