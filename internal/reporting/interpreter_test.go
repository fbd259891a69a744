package reporting

import (
	"strings"
	"testing"

	"github.com/spboyer/portsel/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestInterpretSavings(t *testing.T) {
	tests := []struct {
		name string
		pct  float64
		want string
	}{
		{"strong", 60, "Strong savings (40.0% smaller)"},
		{"strong boundary", 90, "Strong savings (10.0% smaller)"},
		{"moderate", 95, "Moderate savings (5.0% smaller)"},
		{"marginal", 99.5, "Marginal savings (0.5% smaller)"},
		{"equal", 100, "Marginal savings (0.0% smaller)"},
		{"worse", 103, "Larger than baseline (3.0% bigger)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpretSavings(tt.pct))
		})
	}
}

func TestInterpretHeadroom(t *testing.T) {
	tests := []struct {
		name     string
		achieved float64
		perfect  float64
		contains string
	}{
		{"nothing", 0, 0, "Nothing left"},
		{"matches", 1000, 1000, "matches"},
		{"ineligible beats bound", 900, 950, "matches"},
		{"close", 1000, 995, "within 0.50%"},
		{"far", 1800, 1500, "further 16.7%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, InterpretHeadroom(tt.achieved, tt.perfect), tt.contains)
		})
	}
}

func TestInterpretDegenerate(t *testing.T) {
	assert.Equal(t, "No degenerate samples.", InterpretDegenerate(0))
	assert.Contains(t, InterpretDegenerate(0.01), "1.00%")
	assert.Contains(t, InterpretDegenerate(0.2), "compare the exclude and neutralize runs")
}

func TestFormatSummaryReport(t *testing.T) {
	s := &models.Summary{
		DegenerateFraction: 0.25,
		Runs: []*models.Report{{
			Policy:            models.PolicyExclude,
			Achieved:          1800,
			PerfectPrediction: 1500,
			Shares: []models.BaselineShare{
				{Name: "raw", Total: 3000, Percent: 60, Defined: true},
				{Name: "zlib", Total: 0},
			},
			Portfolio: []models.PortfolioEntry{
				{Index: 0, Eligible: true},
				{Index: 1},
				{Index: 2, Sentinel: true},
			},
		}},
	}

	report := FormatSummaryReport(s)

	assert.Contains(t, report, "=== Interpretation ===")
	assert.Contains(t, report, "Many degenerate bytes (25.0%)")
	assert.Contains(t, report, "exclude:")
	assert.Contains(t, report, "Strong savings (40.0% smaller)")
	assert.Contains(t, report, "zlib     undefined")
	assert.Contains(t, report, "further 16.7%")
	assert.Contains(t, report, "1 selected configuration(s) violate eligibility rules.")
}

func TestFormatSummaryReport_Empty(t *testing.T) {
	report := FormatSummaryReport(&models.Summary{})
	assert.True(t, strings.Contains(report, "Interpretation"))
}
