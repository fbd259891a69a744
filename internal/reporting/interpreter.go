package reporting

import (
	"fmt"
	"strings"

	"github.com/spboyer/portsel/internal/models"
)

// InterpretSavings returns a plain-language label for a portfolio cost
// expressed as a percentage of a baseline total.
func InterpretSavings(percentOfBaseline float64) string {
	saved := 100 - percentOfBaseline
	switch {
	case saved >= 10:
		return fmt.Sprintf("Strong savings (%.1f%% smaller)", saved)
	case saved >= 2:
		return fmt.Sprintf("Moderate savings (%.1f%% smaller)", saved)
	case saved >= 0:
		return fmt.Sprintf("Marginal savings (%.1f%% smaller)", saved)
	default:
		return fmt.Sprintf("Larger than baseline (%.1f%% bigger)", -saved)
	}
}

// InterpretHeadroom explains how far the portfolio is from the prescient
// per-sample choice.
func InterpretHeadroom(achieved, perfect float64) string {
	if achieved <= 0 {
		return "Nothing left to recover."
	}
	gap := 100 * (achieved - perfect) / achieved
	switch {
	case gap <= 0:
		return "Portfolio matches the best per-sample choice."
	case gap < 1:
		return fmt.Sprintf("Portfolio is within %.2f%% of the best per-sample choice.", gap)
	default:
		return fmt.Sprintf("A per-sample predictor could save a further %.1f%%. Consider a larger portfolio.", gap)
	}
}

// InterpretDegenerate explains the share of corpus bytes that was already
// incompressible.
func InterpretDegenerate(fraction float64) string {
	pct := fraction * 100
	switch {
	case pct == 0:
		return "No degenerate samples."
	case pct < 5:
		return fmt.Sprintf("Few degenerate bytes (%.2f%%); policies should agree.", pct)
	default:
		return fmt.Sprintf("Many degenerate bytes (%.1f%%); compare the exclude and neutralize runs.", pct)
	}
}

// FormatSummaryReport produces a plain-language reading of a summary.
func FormatSummaryReport(s *models.Summary) string {
	var b strings.Builder

	b.WriteString("=== Interpretation ===\n\n")
	b.WriteString(fmt.Sprintf("Degenerate: %s\n", InterpretDegenerate(s.DegenerateFraction)))

	for _, r := range s.Runs {
		b.WriteString(fmt.Sprintf("\n%s:\n", r.Policy))
		for _, sh := range r.Shares {
			if !sh.Defined {
				b.WriteString(fmt.Sprintf("  vs %-8s undefined (zero total)\n", sh.Name))
				continue
			}
			b.WriteString(fmt.Sprintf("  vs %-8s %s\n", sh.Name, InterpretSavings(sh.Percent)))
		}
		b.WriteString(fmt.Sprintf("  %s\n", InterpretHeadroom(r.Achieved, r.PerfectPrediction)))
		penalized := 0
		for _, e := range r.Portfolio {
			if !e.Eligible && !e.Sentinel {
				penalized++
			}
		}
		if penalized > 0 {
			b.WriteString(fmt.Sprintf("  %d selected configuration(s) violate eligibility rules.\n", penalized))
		}
	}

	return b.String()
}
