package degenerate

import (
	"testing"

	"github.com/spboyer/portsel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(raw, ref int64) models.Sample {
	return models.Sample{
		Raw:       raw,
		Costs:     []int64{raw / 2, raw / 3},
		Baselines: map[string]int64{"zlib": ref, "b95": ref - 1},
		Weight:    1,
	}
}

func TestClassify(t *testing.T) {
	p := NewPolicy()
	p.AbsoluteThreshold = 0

	tests := []struct {
		name string
		raw  int64
		ref  int64
		want bool
	}{
		{"ratio 0.996 is degenerate", 1000, 996, true},
		{"ratio 0.990 is not", 1000, 990, false},
		// 199/200 == 0.995 exactly in float64; the rule is strictly greater-than.
		{"ratio exactly at threshold is not", 200, 199, false},
		{"reference larger than raw", 1000, 1200, true},
		{"empty sample", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(sample(tt.raw, tt.ref)))
		})
	}
}

func TestClassify_AbsoluteThreshold(t *testing.T) {
	p := NewPolicy()

	// ratio 0.9 passes the ratio rule but only saves 100 bytes
	assert.True(t, p.Classify(sample(1000, 900)))
	// saves exactly 128 bytes: not below the threshold
	assert.False(t, p.Classify(sample(1000, 872)))
	assert.True(t, p.Classify(sample(1000, 873)))
}

func TestClassify_ReferenceFallback(t *testing.T) {
	p := NewPolicy()
	p.Reference = "missing"

	s := models.Sample{Raw: 10000, Baselines: map[string]int64{"a": 9990, "b": 5000}}
	assert.False(t, p.Classify(s), "smallest named baseline should be used")

	s.Baselines = nil
	assert.False(t, p.Classify(s), "no baseline means no evidence of degeneracy")
}

func TestApply_Exclude(t *testing.T) {
	p := NewPolicy()
	samples := []models.Sample{sample(1000, 500), sample(1000, 999)}
	samples[1].Weight = 3

	out := p.Apply(samples, ModeExclude)

	require.Len(t, out.Samples, 1)
	assert.Equal(t, int64(500), out.Samples[0].Baselines["zlib"])
	assert.Equal(t, 1, out.Degenerate)
	assert.InDelta(t, 3000.0, out.DegenerateBytes, 1e-9)
	assert.InDelta(t, 4000.0, out.TotalBytes, 1e-9)
	assert.InDelta(t, 0.75, out.Fraction(), 1e-9)
}

func TestApply_Neutralize(t *testing.T) {
	p := NewPolicy()
	samples := []models.Sample{sample(1000, 500), sample(1000, 999)}

	out := p.Apply(samples, ModeNeutralize)

	require.Len(t, out.Samples, 2)
	n := out.Samples[1]
	assert.Equal(t, []int64{1000, 1000}, n.Costs)
	assert.Equal(t, map[string]int64{"zlib": 1000, "b95": 1000}, n.Baselines)
	// the source corpus is untouched
	assert.Equal(t, int64(999), samples[1].Baselines["zlib"])
	assert.Equal(t, []int64{500, 333}, samples[1].Costs)
	assert.InDelta(t, 0.5, out.Fraction(), 1e-9)
}

func TestOutcome_FractionEmpty(t *testing.T) {
	assert.Equal(t, 0.0, NewPolicy().Apply(nil, ModeExclude).Fraction())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, []Mode{ModeExclude, ModeNeutralize}, m.Modes())

	m, err = ParseMode("neutralize")
	require.NoError(t, err)
	assert.Equal(t, []Mode{ModeNeutralize}, m.Modes())

	_, err = ParseMode("drop")
	assert.Error(t, err)
}
