// Package degenerate classifies corpus samples whose content is already
// incompressible and applies the exclude or neutralize policy to them.
package degenerate

import (
	"fmt"
	"math"

	"github.com/spboyer/portsel/internal/models"
)

// Defaults for the degeneracy rule.
const (
	DefaultRatioThreshold    = 0.995
	DefaultAbsoluteThreshold = 128
	DefaultReference         = "zlib"
)

// Mode selects what happens to degenerate samples.
type Mode string

const (
	// ModeExclude drops degenerate samples from selection and scoring.
	ModeExclude Mode = "exclude"
	// ModeNeutralize keeps degenerate samples but flattens every cost and
	// baseline to the raw size, so they favor no configuration.
	ModeNeutralize Mode = "neutralize"
	// ModeBoth runs the pipeline once per mode.
	ModeBoth Mode = "both"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeExclude, ModeNeutralize, ModeBoth:
		return Mode(s), nil
	case "":
		return ModeBoth, nil
	}
	return "", fmt.Errorf("unknown degenerate mode %q: must be exclude, neutralize or both", s)
}

// Modes expands m into the concrete policies to run, in reporting order.
func (m Mode) Modes() []Mode {
	if m == ModeBoth {
		return []Mode{ModeExclude, ModeNeutralize}
	}
	return []Mode{m}
}

// Policy is the degeneracy rule. A sample is degenerate when its reference
// compressor saved almost nothing: reference/raw > RatioThreshold (strict) or
// raw-reference < AbsoluteThreshold.
type Policy struct {
	RatioThreshold    float64
	AbsoluteThreshold int64
	// Reference is the baseline the rule is evaluated against. When a sample
	// lacks it, its smallest named baseline is used instead.
	Reference string
}

// NewPolicy returns a Policy with the default thresholds.
func NewPolicy() Policy {
	return Policy{
		RatioThreshold:    DefaultRatioThreshold,
		AbsoluteThreshold: DefaultAbsoluteThreshold,
		Reference:         DefaultReference,
	}
}

// Classify reports whether s is degenerate. A sample with no usable reference
// baseline is never degenerate; an empty sample always is.
func (p Policy) Classify(s models.Sample) bool {
	if s.Raw <= 0 {
		return true
	}
	ref, ok := p.reference(s)
	if !ok {
		return false
	}
	if float64(ref)/float64(s.Raw) > p.RatioThreshold {
		return true
	}
	return s.Raw-ref < p.AbsoluteThreshold
}

func (p Policy) reference(s models.Sample) (int64, bool) {
	if p.Reference != "" && p.Reference != models.RawBaseline {
		if v, ok := s.Baselines[p.Reference]; ok {
			return v, true
		}
	}
	best, found := int64(math.MaxInt64), false
	for _, v := range s.Baselines {
		if v < best {
			best, found = v, true
		}
	}
	return best, found
}

// Outcome is the result of applying a policy to a corpus.
type Outcome struct {
	Mode    Mode
	Samples []models.Sample
	// Degenerate is the number of samples classified degenerate.
	Degenerate int
	// DegenerateBytes and TotalBytes are weighted raw sizes.
	DegenerateBytes float64
	TotalBytes      float64
}

// Fraction returns the share of weighted corpus bytes classified degenerate.
func (o Outcome) Fraction() float64 {
	if o.TotalBytes == 0 {
		return 0
	}
	return o.DegenerateBytes / o.TotalBytes
}

// Apply classifies every sample and returns the samples that take part in
// selection under mode. The input slice is not modified.
func (p Policy) Apply(samples []models.Sample, mode Mode) Outcome {
	out := Outcome{Mode: mode, Samples: make([]models.Sample, 0, len(samples))}
	for _, s := range samples {
		bytes := s.EffectiveWeight() * float64(s.Raw)
		out.TotalBytes += bytes
		if !p.Classify(s) {
			out.Samples = append(out.Samples, s)
			continue
		}
		out.Degenerate++
		out.DegenerateBytes += bytes
		if mode == ModeNeutralize {
			out.Samples = append(out.Samples, Neutralize(s))
		}
	}
	return out
}

// Neutralize returns a copy of s whose costs and named baselines all equal
// the raw size.
func Neutralize(s models.Sample) models.Sample {
	n := s.Clone()
	for i := range n.Costs {
		n.Costs[i] = n.Raw
	}
	for k := range n.Baselines {
		n.Baselines[k] = n.Raw
	}
	return n
}
