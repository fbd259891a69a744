package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample_Baseline(t *testing.T) {
	s := Sample{Raw: 1000, Baselines: map[string]int64{"zlib": 700}}

	v, ok := s.Baseline(RawBaseline)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), v)

	v, ok = s.Baseline("zlib")
	assert.True(t, ok)
	assert.Equal(t, int64(700), v)

	_, ok = s.Baseline("brotli")
	assert.False(t, ok)
}

func TestSample_EffectiveWeight(t *testing.T) {
	assert.Equal(t, 1.0, Sample{}.EffectiveWeight())
	assert.Equal(t, 1.0, Sample{Weight: -2}.EffectiveWeight())
	assert.Equal(t, 2.5, Sample{Weight: 2.5}.EffectiveWeight())
}

func TestSample_CloneIsDeep(t *testing.T) {
	s := Sample{Costs: []int64{1, 2}, Baselines: map[string]int64{"zlib": 3}}
	c := s.Clone()
	c.Costs[0] = 99
	c.Baselines["zlib"] = 99

	assert.Equal(t, int64(1), s.Costs[0])
	assert.Equal(t, int64(3), s.Baselines["zlib"])
	assert.Nil(t, Sample{}.Clone().Baselines)
}

func TestSkipStats(t *testing.T) {
	var s SkipStats
	assert.Zero(t, s.TotalSkipped())

	s.Skip("parse")
	s.Skip("parse")
	s.Skip("raw")
	assert.Equal(t, 2, s.Skipped["parse"])
	assert.Equal(t, 3, s.TotalSkipped())
}

func TestCorpus_Describe(t *testing.T) {
	c := &Corpus{Configurations: []Configuration{
		{Index: 0, Descriptor: Descriptor{"-q9", "-speed=8"}},
		{Index: 1},
	}}

	assert.Equal(t, 2, c.Sentinel())
	assert.Equal(t, "-q9 -speed=8", c.Describe(0))
	assert.Equal(t, "#1", c.Describe(1))
	assert.Equal(t, "<baseline>", c.Describe(2))
	assert.Equal(t, "#7", c.Describe(7))
}

func TestDefaultConfigurations(t *testing.T) {
	configs := DefaultConfigurations(3)
	require.Len(t, configs, 3)
	assert.Equal(t, 2, configs[2].Index)
	assert.Equal(t, "#2", configs[2].Label())
}

func TestReport_Accessors(t *testing.T) {
	r := &Report{
		Portfolio: []PortfolioEntry{{Index: 4}, {Index: 1}},
		Shares: []BaselineShare{
			{Name: RawBaseline, Total: 3000, Percent: 60, Defined: true},
			{Name: "zlib", Defined: false},
			{Name: "zstd", Defined: false},
		},
	}

	assert.Equal(t, []int{4, 1}, r.Indices())

	sh, ok := r.Share(RawBaseline)
	require.True(t, ok)
	assert.Equal(t, 60.0, sh.Percent)
	_, ok = r.Share("brotli")
	assert.False(t, ok)

	err := r.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrZeroBaseline))
	assert.Equal(t, "zero baseline total: zlib, zstd", err.Error())

	r.Shares = r.Shares[:1]
	assert.NoError(t, r.Err())
}

func TestSummary_Run(t *testing.T) {
	ex := &Report{Policy: PolicyExclude}
	s := &Summary{Runs: []*Report{ex}}

	assert.Same(t, ex, s.Run(PolicyExclude))
	assert.Nil(t, s.Run(PolicyNeutralize))
}
