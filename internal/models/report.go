package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spboyer/portsel/internal/statistics"
)

// ErrZeroBaseline marks a report with a baseline whose total is zero, so no
// percentage against it is defined.
var ErrZeroBaseline = errors.New("zero baseline total")

// Policy names the degenerate-sample handling a report was produced under.
type Policy string

const (
	PolicyExclude    Policy = "exclude"
	PolicyNeutralize Policy = "neutralize"
)

// Round is one step of the selection trace.
type Round struct {
	Number int   `json:"round"`
	Added  []int `json:"added"`
	// Objective is the best penalized total seen so far. It never increases.
	Objective float64 `json:"objective"`
	// Achieved is the unpenalized aggregate cost of the portfolio after this round.
	Achieved     float64            `json:"achieved"`
	PercentOfRaw float64            `json:"percent_of_raw"`
	Percent      map[string]float64 `json:"percent,omitempty"`
}

// PortfolioEntry is one selected configuration as reported.
type PortfolioEntry struct {
	Index      int        `json:"index"`
	Descriptor Descriptor `json:"descriptor"`
	Eligible   bool       `json:"eligible"`
	Sentinel   bool       `json:"sentinel,omitempty"`
}

// BaselineShare compares the portfolio cost with one baseline's total.
// Defined is false when the baseline total is zero.
type BaselineShare struct {
	Name    string  `json:"name"`
	Total   float64 `json:"total"`
	Percent float64 `json:"percent"`
	Defined bool    `json:"defined"`
}

// Distribution summarizes weighted per-sample compression ratios.
type Distribution struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

// Report is the scored outcome of one selection run.
type Report struct {
	Policy             Policy                        `json:"policy"`
	Samples            int                           `json:"samples"`
	DegenerateSamples  int                           `json:"degenerate_samples"`
	DegenerateFraction float64                       `json:"degenerate_fraction"`
	Portfolio          []PortfolioEntry              `json:"portfolio"`
	Rounds             []Round                       `json:"rounds"`
	Achieved           float64                       `json:"achieved"`
	Objective          float64                       `json:"objective"`
	RawTotal           float64                       `json:"raw_total"`
	Shares             []BaselineShare               `json:"shares"`
	PerfectPrediction  float64                       `json:"perfect_prediction"`
	PerfectPercent     float64                       `json:"perfect_percent_of_raw"`
	Headroom           float64                       `json:"headroom"`
	Ratio              Distribution                  `json:"ratio"`
	RatioCI            statistics.ConfidenceInterval `json:"ratio_ci"`
	Conditions         []string                      `json:"conditions,omitempty"`
}

// Share returns the share for the named baseline.
func (r *Report) Share(name string) (BaselineShare, bool) {
	for _, s := range r.Shares {
		if s.Name == name {
			return s, true
		}
	}
	return BaselineShare{}, false
}

// Err returns ErrZeroBaseline, naming the affected baselines, when any share
// is undefined.
func (r *Report) Err() error {
	var names []string
	for _, s := range r.Shares {
		if !s.Defined {
			names = append(names, s.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrZeroBaseline, strings.Join(names, ", "))
}

// Indices returns the selected configuration indices in selection order.
func (r *Report) Indices() []int {
	out := make([]int, len(r.Portfolio))
	for i, p := range r.Portfolio {
		out[i] = p.Index
	}
	return out
}

// RunSettings echoes the knobs a summary was produced with.
type RunSettings struct {
	Size              int      `json:"size"`
	Penalty           float64  `json:"penalty"`
	Seed              string   `json:"seed"`
	Fallback          []string `json:"fallback,omitempty"`
	RatioThreshold    float64  `json:"ratio_threshold"`
	AbsoluteThreshold int64    `json:"absolute_threshold"`
	Reference         string   `json:"reference"`
}

// Summary is the full output of a run: one report per degenerate policy.
type Summary struct {
	Configurations     int         `json:"configurations"`
	Stats              SkipStats   `json:"stats"`
	Settings           RunSettings `json:"settings"`
	DegenerateFraction float64     `json:"degenerate_fraction"`
	Runs               []*Report   `json:"runs"`
}

// Run returns the report produced under policy, or nil.
func (s *Summary) Run(p Policy) *Report {
	for _, r := range s.Runs {
		if r.Policy == p {
			return r
		}
	}
	return nil
}
