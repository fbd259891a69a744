// Package eligibility tags configurations as eligible or penalized from their
// descriptors. Penalized configurations stay selectable; their aggregate cost
// is inflated instead.
package eligibility

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/portsel/internal/models"
)

// DefaultPenalty is the cost multiplier applied to ineligible configurations.
const DefaultPenalty = 1000.0

// Rule is one descriptor condition. Patterns are filepath.Match globs matched
// against individual descriptor tokens, e.g. "-mixing=*".
//
// A descriptor violates the rule when it lacks a match for any Require
// pattern or matches any Forbid pattern, unless it matches one of the Unless
// patterns.
type Rule struct {
	Name    string   `mapstructure:"name" yaml:"name"`
	Require []string `mapstructure:"require" yaml:"require,omitempty"`
	Forbid  []string `mapstructure:"forbid" yaml:"forbid,omitempty"`
	Unless  []string `mapstructure:"unless" yaml:"unless,omitempty"`
}

// DecodeRules converts loosely typed rule maps (as read from YAML) into Rules.
func DecodeRules(raw []map[string]any) ([]Rule, error) {
	rules := make([]Rule, 0, len(raw))
	for i, params := range raw {
		var r Rule
		if err := mapstructure.Decode(params, &r); err != nil {
			return nil, fmt.Errorf("eligibility rule %d: %w", i, err)
		}
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule-%d", i)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Filter evaluates rules against descriptors.
type Filter struct {
	rules []Rule
}

// New validates every pattern and returns a Filter.
func New(rules []Rule) (*Filter, error) {
	for _, r := range rules {
		for _, list := range [][]string{r.Require, r.Forbid, r.Unless} {
			for _, p := range list {
				if _, err := filepath.Match(p, ""); err != nil {
					return nil, fmt.Errorf("invalid pattern %q in eligibility rule %q: %w", p, r.Name, err)
				}
			}
		}
	}
	return &Filter{rules: rules}, nil
}

// Eligible reports whether desc satisfies every rule.
func (f *Filter) Eligible(desc models.Descriptor) bool {
	return len(f.Violations(desc)) == 0
}

// Violations returns the names of the rules desc breaks.
func (f *Filter) Violations(desc models.Descriptor) []string {
	var broken []string
	for _, r := range f.rules {
		if violates(r, desc) {
			broken = append(broken, r.Name)
		}
	}
	return broken
}

func violates(r Rule, desc models.Descriptor) bool {
	bad := false
	for _, p := range r.Require {
		if !matchesAny(p, desc) {
			bad = true
			break
		}
	}
	if !bad {
		for _, p := range r.Forbid {
			if matchesAny(p, desc) {
				bad = true
				break
			}
		}
	}
	if !bad {
		return false
	}
	for _, p := range r.Unless {
		if matchesAny(p, desc) {
			return false
		}
	}
	return true
}

// matchesAny reports whether any descriptor token matches pattern. Patterns
// were validated in New, so match errors cannot occur here.
func matchesAny(pattern string, desc models.Descriptor) bool {
	for _, tok := range desc {
		if ok, _ := filepath.Match(pattern, strings.TrimSpace(tok)); ok {
			return true
		}
	}
	return false
}

// Tags holds the eligibility of every configuration plus the sentinel index,
// computed once per run.
type Tags struct {
	eligible []bool
}

// Tag evaluates f against every configuration. The sentinel (index
// len(configs)) is always ineligible.
func (f *Filter) Tag(configs []models.Configuration) Tags {
	t := Tags{eligible: make([]bool, len(configs)+1)}
	for i, c := range configs {
		t.eligible[i] = f.Eligible(c.Descriptor)
	}
	return t
}

// AllEligible returns tags for m configurations with no rules applied.
func AllEligible(m int) Tags {
	t := Tags{eligible: make([]bool, m+1)}
	for i := 0; i < m; i++ {
		t.eligible[i] = true
	}
	return t
}

// Len returns the number of tagged indices, sentinel included.
func (t Tags) Len() int { return len(t.eligible) }

// Eligible reports whether index j is eligible. Out-of-range indices,
// including the sentinel, are not.
func (t Tags) Eligible(j int) bool {
	return j >= 0 && j < len(t.eligible) && t.eligible[j]
}

// Multiplier returns penalty for ineligible j and 1 otherwise.
func (t Tags) Multiplier(j int, penalty float64) float64 {
	if t.Eligible(j) {
		return 1
	}
	return penalty
}

// Count returns the number of eligible configurations.
func (t Tags) Count() int {
	n := 0
	for _, e := range t.eligible {
		if e {
			n++
		}
	}
	return n
}
