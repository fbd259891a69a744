package models

import (
	"fmt"
	"strings"
)

// RawBaseline is the name under which a sample's uncompressed size is reachable
// through [Sample.Baseline].
const RawBaseline = "raw"

// Descriptor is the ordered list of parameter tokens that identifies a
// configuration, e.g. ["-q9.5", "-speed=32,4096"]. Descriptors are opaque to
// cost computation; they only drive eligibility rules and reporting.
type Descriptor []string

func (d Descriptor) String() string {
	return strings.Join(d, " ")
}

// Configuration is one candidate parameter set. Index is the position of the
// configuration's cost in every sample's cost vector.
type Configuration struct {
	Index      int        `json:"index"`
	Descriptor Descriptor `json:"descriptor"`
}

// Label returns a short display name for the configuration.
func (c Configuration) Label() string {
	if len(c.Descriptor) == 0 {
		return fmt.Sprintf("#%d", c.Index)
	}
	return c.Descriptor.String()
}

// Sample is one benchmark corpus item.
type Sample struct {
	Path      string           `json:"path,omitempty"`
	Raw       int64            `json:"raw"`
	Costs     []int64          `json:"costs"`
	Baselines map[string]int64 `json:"baselines,omitempty"`
	Weight    float64          `json:"weight"`
}

// Baseline returns the named baseline cost. "raw" always resolves to the
// sample's uncompressed size.
func (s Sample) Baseline(name string) (int64, bool) {
	if name == RawBaseline {
		return s.Raw, true
	}
	v, ok := s.Baselines[name]
	return v, ok
}

// EffectiveWeight returns the sample weight, treating an unset weight as 1.
func (s Sample) EffectiveWeight() float64 {
	if s.Weight <= 0 {
		return 1
	}
	return s.Weight
}

// Clone returns a deep copy so policies can rewrite costs without touching
// the ingested corpus.
func (s Sample) Clone() Sample {
	out := s
	out.Costs = append([]int64(nil), s.Costs...)
	if s.Baselines != nil {
		out.Baselines = make(map[string]int64, len(s.Baselines))
		for k, v := range s.Baselines {
			out.Baselines[k] = v
		}
	}
	return out
}

// SkipStats counts ingested records and why some were dropped.
type SkipStats struct {
	Read     int            `json:"read"`
	Accepted int            `json:"accepted"`
	Skipped  map[string]int `json:"skipped,omitempty"`
}

// Skip records one dropped record under reason.
func (s *SkipStats) Skip(reason string) {
	if s.Skipped == nil {
		s.Skipped = make(map[string]int)
	}
	s.Skipped[reason]++
}

// TotalSkipped returns the number of dropped records across all reasons.
func (s SkipStats) TotalSkipped() int {
	n := 0
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

// Corpus is the materialized cost table for a run: the configuration list
// (whose order fixes cost-vector alignment) and the accepted samples.
type Corpus struct {
	Configurations []Configuration `json:"configurations"`
	Samples        []Sample        `json:"samples"`
	Stats          SkipStats       `json:"stats"`
}

// Sentinel returns the reserved index meaning "use the baseline, not any
// configuration". It is one past the last configuration.
func (c *Corpus) Sentinel() int {
	return len(c.Configurations)
}

// Describe returns the display label for index, including the sentinel.
func (c *Corpus) Describe(index int) string {
	if index == c.Sentinel() {
		return "<baseline>"
	}
	if index < 0 || index > len(c.Configurations) {
		return fmt.Sprintf("#%d", index)
	}
	return c.Configurations[index].Label()
}

// DefaultConfigurations synthesizes descriptors for m configurations when no
// descriptor file is supplied.
func DefaultConfigurations(m int) []Configuration {
	out := make([]Configuration, m)
	for i := range out {
		out[i] = Configuration{Index: i, Descriptor: Descriptor{fmt.Sprintf("#%d", i)}}
	}
	return out
}
