// Package telemetry exports run results as Prometheus metrics, written to a
// node_exporter textfile so batch runs can be scraped after they finish.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spboyer/portsel/internal/models"
	"github.com/spboyer/portsel/internal/orchestration"
)

// Recorder holds the metrics of one process on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	samples            *prometheus.GaugeVec
	degenerateSamples  *prometheus.GaugeVec
	achievedBytes      *prometheus.GaugeVec
	objective          *prometheus.GaugeVec
	percentOfBaseline  *prometheus.GaugeVec
	headroomBytes      *prometheus.GaugeVec
	portfolioSize      *prometheus.GaugeVec
	degenerateFraction prometheus.Gauge
	recordsRead        prometheus.Gauge
	recordsSkipped     *prometheus.GaugeVec
	policiesCompleted  prometheus.Counter
}

// NewRecorder registers all metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		samples: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portsel_samples",
			Help: "Samples that took part in selection",
		}, []string{"policy"}),
		degenerateSamples: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portsel_degenerate_samples",
			Help: "Samples classified degenerate",
		}, []string{"policy"}),
		achievedBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portsel_achieved_bytes",
			Help: "Weighted total cost of the selected portfolio",
		}, []string{"policy"}),
		objective: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portsel_objective",
			Help: "Final penalized objective of the selection",
		}, []string{"policy"}),
		percentOfBaseline: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portsel_percent_of_baseline",
			Help: "Portfolio cost as a percentage of a baseline total",
		}, []string{"policy", "baseline"}),
		headroomBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portsel_headroom_bytes",
			Help: "Gap between the portfolio and perfect per-sample prediction",
		}, []string{"policy"}),
		portfolioSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portsel_portfolio_size",
			Help: "Number of selected configurations",
		}, []string{"policy"}),
		degenerateFraction: f.NewGauge(prometheus.GaugeOpts{
			Name: "portsel_degenerate_fraction",
			Help: "Fraction of raw bytes in degenerate samples",
		}),
		recordsRead: f.NewGauge(prometheus.GaugeOpts{
			Name: "portsel_records_read",
			Help: "Corpus records read",
		}),
		recordsSkipped: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portsel_records_skipped",
			Help: "Corpus records dropped during ingestion",
		}, []string{"reason"}),
		policiesCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "portsel_policies_completed_total",
			Help: "Selection runs completed",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Listener returns a progress listener that records runner events.
func (r *Recorder) Listener() orchestration.ProgressListener {
	return func(e orchestration.ProgressEvent) {
		switch e.EventType {
		case orchestration.EventPolicyComplete:
			if e.Report != nil {
				r.ObserveReport(e.Report)
			}
		case orchestration.EventRunComplete:
			if e.Summary != nil {
				r.ObserveSummary(e.Summary)
			}
		}
	}
}

// ObserveReport records one policy's report.
func (r *Recorder) ObserveReport(rep *models.Report) {
	policy := string(rep.Policy)
	r.samples.WithLabelValues(policy).Set(float64(rep.Samples))
	r.degenerateSamples.WithLabelValues(policy).Set(float64(rep.DegenerateSamples))
	r.achievedBytes.WithLabelValues(policy).Set(rep.Achieved)
	r.objective.WithLabelValues(policy).Set(rep.Objective)
	r.headroomBytes.WithLabelValues(policy).Set(rep.Headroom)
	r.portfolioSize.WithLabelValues(policy).Set(float64(len(rep.Portfolio)))
	for _, s := range rep.Shares {
		if s.Defined {
			r.percentOfBaseline.WithLabelValues(policy, s.Name).Set(s.Percent)
		}
	}
	r.policiesCompleted.Inc()
}

// ObserveSummary records run-wide values.
func (r *Recorder) ObserveSummary(s *models.Summary) {
	r.degenerateFraction.Set(s.DegenerateFraction)
	r.recordsRead.Set(float64(s.Stats.Read))
	for reason, n := range s.Stats.Skipped {
		r.recordsSkipped.WithLabelValues(reason).Set(float64(n))
	}
}

// WriteFile writes the metrics in the text exposition format.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
