package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spboyer/portsel/internal/models"
	"github.com/spboyer/portsel/internal/statistics"
	"github.com/spboyer/portsel/internal/utils"
	"github.com/spf13/cobra"
)

var compareOutputFormat string

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <result1.json> <result2.json> [result3.json ...]",
		Short: "Compare multiple selection result files",
		Long: `Compare results from multiple selection runs side by side.

Loads two or more JSON summaries written by "portsel select --format json" and
reports, per degenerate policy, the portfolio cost, the share of every
baseline and the change between the first and last file. A change is flagged
significant when the ratio confidence intervals do not overlap.`,
		Args: cobra.MinimumNArgs(2),
		RunE: compareCommandE,
	}

	cmd.Flags().StringVarP(&compareOutputFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

// policyComparison holds per-policy values across result files. A nil value
// means the file has no run for the policy or the share is undefined.
type policyComparison struct {
	Policy      models.Policy         `json:"policy"`
	Portfolios  [][]int               `json:"portfolios"`
	Achieved    []*float64            `json:"achieved"`
	Percent     map[string][]*float64 `json:"percent"`
	Change      float64               `json:"relative_change"`
	Significant bool                  `json:"significant"`
}

// comparisonReport is the full comparison output.
type comparisonReport struct {
	Files    []string           `json:"files"`
	Samples  []int              `json:"samples"`
	Policies []policyComparison `json:"policies"`
}

func compareCommandE(cmd *cobra.Command, args []string) error {
	if compareOutputFormat != "table" && compareOutputFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", compareOutputFormat)
	}

	summaries := make([]*models.Summary, 0, len(args))
	for _, path := range args {
		s, err := loadSummaryFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		summaries = append(summaries, s)
	}

	report := buildComparisonReport(args, summaries)

	if compareOutputFormat == "json" {
		return printComparisonJSON(cmd.OutOrStdout(), report)
	}
	printComparisonTable(cmd.OutOrStdout(), report)
	return nil
}

func loadSummaryFile(path string) (*models.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s models.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if len(s.Runs) == 0 {
		return nil, fmt.Errorf("no runs in summary")
	}
	return &s, nil
}

func buildComparisonReport(files []string, summaries []*models.Summary) *comparisonReport {
	report := &comparisonReport{Files: files}

	var policies []models.Policy
	seen := make(map[models.Policy]bool)
	for _, s := range summaries {
		samples := 0
		for _, r := range s.Runs {
			if r.Samples > samples {
				samples = r.Samples
			}
			if !seen[r.Policy] {
				seen[r.Policy] = true
				policies = append(policies, r.Policy)
			}
		}
		report.Samples = append(report.Samples, samples)
	}

	n := len(summaries)
	for _, p := range policies {
		pc := policyComparison{Policy: p, Percent: make(map[string][]*float64)}
		var shareNames []string
		for _, s := range summaries {
			if r := s.Run(p); r != nil {
				for _, sh := range r.Shares {
					if _, ok := pc.Percent[sh.Name]; !ok {
						pc.Percent[sh.Name] = nil
						shareNames = append(shareNames, sh.Name)
					}
				}
			}
		}

		for _, s := range summaries {
			r := s.Run(p)
			if r == nil {
				pc.Portfolios = append(pc.Portfolios, nil)
				pc.Achieved = append(pc.Achieved, nil)
				for _, name := range shareNames {
					pc.Percent[name] = append(pc.Percent[name], nil)
				}
				continue
			}
			pc.Portfolios = append(pc.Portfolios, r.Indices())
			pc.Achieved = append(pc.Achieved, utils.Ptr(r.Achieved))
			for _, name := range shareNames {
				sh, ok := r.Share(name)
				if !ok || !sh.Defined {
					pc.Percent[name] = append(pc.Percent[name], nil)
					continue
				}
				pc.Percent[name] = append(pc.Percent[name], utils.Ptr(sh.Percent))
			}
		}

		first, last := summaries[0].Run(p), summaries[n-1].Run(p)
		if first != nil && last != nil {
			pc.Change = statistics.RelativeChange(first.Achieved, last.Achieved)
			pc.Significant = !statistics.Overlaps(first.RatioCI, last.RatioCI)
		}
		report.Policies = append(report.Policies, pc)
	}

	return report
}

func printComparisonTable(w io.Writer, r *comparisonReport) {
	p := func(format string, args ...any) {
		fmt.Fprintf(w, format, args...) //nolint:errcheck
	}

	// Header
	p("%s\n", strings.Repeat("=", 70))
	p(" COMPARISON REPORT\n")
	p("%s\n\n", strings.Repeat("=", 70))

	// File listing
	for i, f := range r.Files {
		p("  [%d] %s  (samples: %d)\n", i+1, f, r.Samples[i])
	}
	p("\n")

	for _, pc := range r.Policies {
		p("%s\n", strings.Repeat("-", 70))
		p(" POLICY: %s\n", pc.Policy)
		p("%s\n", strings.Repeat("-", 70))

		p("  %s", padRight("Metric", 20))
		for i := range r.Files {
			p("  %s", padRight(fmt.Sprintf("[%d]", i+1), 12))
		}
		p("  Change\n")

		p("  %s", padRight("Achieved", 20))
		for _, a := range pc.Achieved {
			p("  %s", padRight(formatCell(a, "%.0f"), 12))
		}
		icon := " "
		if pc.Change < 0 {
			icon = "↓"
		} else if pc.Change > 0 {
			icon = "↑"
		}
		marker := ""
		if pc.Significant {
			marker = " *"
		}
		p("  %s%+.2f%%%s\n", icon, pc.Change*100, marker)

		names := make([]string, 0, len(pc.Percent))
		for name := range pc.Percent {
			names = append(names, name)
		}
		sortShareNames(names)
		for _, name := range names {
			p("  %s", padRight("% of "+name, 20))
			for _, v := range pc.Percent[name] {
				p("  %s", padRight(formatCell(v, "%.3f%%"), 12))
			}
			p("\n")
		}

		p("  %s", padRight("Portfolio", 20))
		for _, idx := range pc.Portfolios {
			p("  %s", padRight(formatIndices(idx), 12))
		}
		p("\n\n")
	}
}

func printComparisonJSON(w io.Writer, r *comparisonReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal comparison report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatCell(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func formatIndices(idx []int) string {
	if idx == nil {
		return "n/a"
	}
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

// sortShareNames orders raw first, then alphabetically.
func sortShareNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if a == models.RawBaseline || b == models.RawBaseline {
			return a == models.RawBaseline && b != models.RawBaseline
		}
		return a < b
	})
}
