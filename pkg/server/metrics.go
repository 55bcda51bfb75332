package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
)

// Metrics holds Prometheus metrics for the analysis proxy.
//
// Metrics:
//   - morningglow_analyze_requests_total{outcome} - analyze requests by result
//   - morningglow_upstream_duration_seconds - vision model call latency
//   - morningglow_score_mismatch_total - scores that disagree with the weighted breakdown
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	upstream   prometheus.Histogram
	mismatches prometheus.Counter
}

// NewMetrics creates metrics on a private registry so several servers can
// coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morningglow_analyze_requests_total",
				Help: "Total number of analyze requests by outcome",
			},
			[]string{"outcome"},
		),
		upstream: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "morningglow_upstream_duration_seconds",
			Help:    "Duration of vision model calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		mismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "morningglow_score_mismatch_total",
			Help: "Model scores that differ from round(0.5*neatness + 0.3*corners + 0.2*pillows)",
		}),
	}
}

// ObserveUpstream records one vision model call.
func (m *Metrics) ObserveUpstream(d time.Duration) {
	m.upstream.Observe(d.Seconds())
}

// ObserveMismatch records a score that disagrees with its breakdown.
func (m *Metrics) ObserveMismatch(analysis.Detailed) {
	m.mismatches.Inc()
}

func (m *Metrics) observeOutcome(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
