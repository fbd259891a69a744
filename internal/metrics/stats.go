package metrics

import (
	"math"
	"sort"

	"github.com/spboyer/portsel/internal/models"
	"gonum.org/v1/gonum/stat"
)

// Mean computes the weighted arithmetic mean. A nil weights slice weighs every
// value equally. Returns 0 for empty input.
func Mean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, weights)
}

// StdDev computes the weighted sample standard deviation.
// Returns 0 when fewer than 2 values are available.
func StdDev(values, weights []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd := stat.StdDev(values, weights)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}

// Quantile returns the weighted empirical p-quantile of values.
// Returns 0 for empty input.
func Quantile(p float64, values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	x, w := sortedCopy(values, weights)
	return stat.Quantile(p, stat.Empirical, x, w)
}

// Describe summarizes per-sample ratios into a [models.Distribution].
func Describe(values, weights []float64) models.Distribution {
	return models.Distribution{
		Mean:   Mean(values, weights),
		StdDev: StdDev(values, weights),
		Median: Quantile(0.5, values, weights),
		P90:    Quantile(0.9, values, weights),
	}
}

// sortedCopy sorts values ascending, keeping weights aligned. gonum's
// Quantile requires sorted input.
func sortedCopy(values, weights []float64) ([]float64, []float64) {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	x := make([]float64, len(values))
	for i, k := range idx {
		x[i] = values[k]
	}
	if weights == nil {
		return x, nil
	}
	w := make([]float64, len(values))
	for i, k := range idx {
		w[i] = weights[k]
	}
	return x, w
}
