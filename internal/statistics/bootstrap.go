package statistics

import (
	"math"
	"math/rand"
	"sort"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Estimate        float64 `json:"estimate"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 2000

// RatioCI computes a percentile bootstrap confidence interval for the ratio of
// sums Σnum/Σden, resampling (num[i], den[i]) pairs with replacement. It is
// deterministic for a given seed. Fewer than 2 pairs, or a zero denominator
// total, yields a degenerate interval with no resamples.
func RatioCI(num, den []float64, confidenceLevel float64, iterations int, seed int64) ConfidenceInterval {
	n := len(num)
	if len(den) < n {
		n = len(den)
	}
	est := ratio(num[:n], den[:n])
	if n < 2 || math.IsNaN(est) {
		if math.IsNaN(est) {
			est = 0
		}
		return ConfidenceInterval{
			Lower:           est,
			Upper:           est,
			Estimate:        est,
			ConfidenceLevel: confidenceLevel,
		}
	}
	if iterations <= 0 {
		iterations = DefaultBootstrapIterations
	}

	rng := rand.New(rand.NewSource(seed))

	boot := make([]float64, 0, iterations)
	for i := 0; i < iterations; i++ {
		var sn, sd float64
		for j := 0; j < n; j++ {
			k := rng.Intn(n)
			sn += num[k]
			sd += den[k]
		}
		if sd == 0 {
			continue
		}
		boot = append(boot, sn/sd)
	}
	if len(boot) == 0 {
		return ConfidenceInterval{Lower: est, Upper: est, Estimate: est, ConfidenceLevel: confidenceLevel}
	}

	sort.Float64s(boot)

	// Percentile method
	alpha := 1.0 - confidenceLevel
	loIdx := int(math.Floor(alpha / 2.0 * float64(len(boot))))
	hiIdx := int(math.Floor((1.0 - alpha/2.0) * float64(len(boot))))
	if hiIdx >= len(boot) {
		hiIdx = len(boot) - 1
	}

	return ConfidenceInterval{
		Lower:           boot[loIdx],
		Upper:           boot[hiIdx],
		Estimate:        est,
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   len(boot),
	}
}

// Overlaps reports whether two intervals share any value. Non-overlapping
// intervals mean the difference between two runs is unlikely to be noise.
func Overlaps(a, b ConfidenceInterval) bool {
	return a.Lower <= b.Upper && b.Lower <= a.Upper
}

// RelativeChange returns (after - before) / before, the fractional change of a
// cost. Returns 0 when before is 0.
func RelativeChange(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (after - before) / before
}

func ratio(num, den []float64) float64 {
	var sn, sd float64
	for i := range num {
		sn += num[i]
		sd += den[i]
	}
	if sd == 0 {
		return math.NaN()
	}
	return sn / sd
}
