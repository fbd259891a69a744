package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spboyer/portsel/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format is an output encoding for a summary.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q: must be table, json or csv", s)
}

// Write renders s in format.
func Write(w io.Writer, format Format, s *models.Summary) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, s)
	case FormatCSV:
		return WriteCSV(w, s)
	case FormatTable:
		return WriteTable(w, s)
	}
	return fmt.Errorf("unsupported format %q", format)
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, s *models.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return nil
}

// WriteCSV writes one flat row per policy run.
func WriteCSV(w io.Writer, s *models.Summary) error {
	names := shareNames(s)
	header := []string{"policy", "samples", "degenerate_samples", "degenerate_fraction", "portfolio",
		"achieved", "objective", "raw_total", "percent_raw"}
	for _, n := range names {
		header = append(header, "percent_"+n)
	}
	header = append(header, "perfect_prediction", "headroom", "ratio_mean", "ratio_median", "ratio_p90",
		"ratio_ci_lower", "ratio_ci_upper")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range s.Runs {
		row := []string{
			string(r.Policy),
			strconv.Itoa(r.Samples),
			strconv.Itoa(r.DegenerateSamples),
			num(r.DegenerateFraction),
			joinInts(r.Indices(), " "),
			num(r.Achieved),
			num(r.Objective),
			num(r.RawTotal),
			num(percent(r.Achieved, r.RawTotal)),
		}
		for _, n := range names {
			if sh, ok := r.Share(n); ok && sh.Defined {
				row = append(row, num(sh.Percent))
			} else {
				row = append(row, "")
			}
		}
		row = append(row,
			num(r.PerfectPrediction),
			num(r.Headroom),
			num(r.Ratio.Mean),
			num(r.Ratio.Median),
			num(r.Ratio.P90),
			num(r.RatioCI.Lower),
			num(r.RatioCI.Upper),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes a human-readable report with grouped thousands.
func WriteTable(w io.Writer, s *models.Summary) error {
	p := message.NewPrinter(language.English)
	tw := &tableWriter{w: w, p: p}

	tw.rule("=")
	tw.line(" PORTFOLIO SELECTION")
	tw.rule("=")
	tw.line("  Configurations: %d   Records read: %d   Accepted: %d   Skipped: %d",
		s.Configurations, s.Stats.Read, s.Stats.Accepted, s.Stats.TotalSkipped())
	tw.line("  Size: %d   Seed: %s   Penalty: %v   Degenerate bytes: %.2f%%",
		s.Settings.Size, s.Settings.Seed, s.Settings.Penalty, 100*s.DegenerateFraction)

	for _, r := range s.Runs {
		tw.line("")
		tw.rule("-")
		tw.line(" POLICY: %s   (%d samples, %d degenerate)", r.Policy, r.Samples, r.DegenerateSamples)
		tw.rule("-")

		labelWidth := runewidth.StringWidth("Configuration")
		for _, e := range r.Portfolio {
			if lw := runewidth.StringWidth(entryLabel(e)); lw > labelWidth {
				labelWidth = lw
			}
		}
		labelWidth = min(labelWidth, maxLabelWidth)

		tw.line("  %s  %s  %s", padRight("Index", 6), padRight("Configuration", labelWidth), "Eligible")
		for _, e := range r.Portfolio {
			eligible := "yes"
			if !e.Eligible {
				eligible = "penalized"
			}
			tw.line("  %s  %s  %s", padRight(strconv.Itoa(e.Index), 6),
				padRight(truncate(entryLabel(e), labelWidth), labelWidth), eligible)
		}

		tw.line("")
		head := "  " + padRight("Round", 6) + "  " + padRight("Added", 10) + "  " + padLeft("Achieved", 16) + "  " + padLeft("% raw", 8)
		for _, sh := range r.Shares {
			if sh.Name != models.RawBaseline {
				head += "  " + padLeft("% "+sh.Name, 8)
			}
		}
		tw.line("%s", head)
		for _, round := range r.Rounds {
			row := "  " + padRight(strconv.Itoa(round.Number), 6) + "  " + padRight(joinInts(round.Added, ","), 10) +
				"  " + padLeft(p.Sprintf("%.0f", round.Achieved), 16) + "  " + padLeft(fmt.Sprintf("%.2f", round.PercentOfRaw), 8)
			for _, sh := range r.Shares {
				if sh.Name == models.RawBaseline {
					continue
				}
				cell := "n/a"
				if v, ok := round.Percent[sh.Name]; ok {
					cell = fmt.Sprintf("%.2f", v)
				}
				row += "  " + padLeft(cell, 8)
			}
			tw.line("%s", row)
		}

		tw.line("")
		tw.line("  %s  %s  %s", padRight("Baseline", 12), padLeft("Total", 16), padLeft("Portfolio %", 12))
		for _, sh := range r.Shares {
			pct := "n/a"
			if sh.Defined {
				pct = fmt.Sprintf("%.2f", sh.Percent)
			}
			tw.line("  %s  %s  %s", padRight(sh.Name, 12), padLeft(p.Sprintf("%.0f", sh.Total), 16), padLeft(pct, 12))
		}
		tw.line("  %s  %s  %s", padRight("portfolio", 12), padLeft(p.Sprintf("%.0f", r.Achieved), 16), padLeft("", 12))
		tw.line("  %s  %s  %s", padRight("perfect", 12), padLeft(p.Sprintf("%.0f", r.PerfectPrediction), 16),
			padLeft(fmt.Sprintf("%.2f", r.PerfectPercent), 12))

		tw.line("")
		tw.line("  Ratio to raw: mean %.4f  sd %.4f  median %.4f  p90 %.4f",
			r.Ratio.Mean, r.Ratio.StdDev, r.Ratio.Median, r.Ratio.P90)
		tw.line("  Aggregate ratio: %.4f  %.0f%% CI [%.4f, %.4f]",
			r.RatioCI.Estimate, 100*r.RatioCI.ConfidenceLevel, r.RatioCI.Lower, r.RatioCI.Upper)
		for _, c := range r.Conditions {
			tw.line("  ! %s", c)
		}
	}
	tw.line("")
	tw.line("%s", strings.TrimRight(FormatSummaryReport(s), "\n"))
	return tw.err
}

const maxLabelWidth = 48

type tableWriter struct {
	w   io.Writer
	p   *message.Printer
	err error
}

func (t *tableWriter) line(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = t.p.Fprintf(t.w, format+"\n", args...)
}

func (t *tableWriter) rule(ch string) {
	t.line("%s", strings.Repeat(ch, 70))
}

func entryLabel(e models.PortfolioEntry) string {
	if e.Sentinel {
		return "<sentinel: baseline>"
	}
	if len(e.Descriptor) == 0 {
		return fmt.Sprintf("#%d", e.Index)
	}
	return e.Descriptor.String()
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func padLeft(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return strings.Repeat(" ", width-sw) + s
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func shareNames(s *models.Summary) []string {
	var names []string
	seen := map[string]bool{}
	for _, r := range s.Runs {
		for _, sh := range r.Shares {
			if sh.Name == models.RawBaseline || seen[sh.Name] {
				continue
			}
			seen[sh.Name] = true
			names = append(names, sh.Name)
		}
	}
	return names
}

func joinInts(v []int, sep string) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
