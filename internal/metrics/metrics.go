// Package metrics exports Prometheus metrics for the digest pipeline and
// the click tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Digest run metrics
	DigestRuns     *prometheus.CounterVec
	DigestDuration prometheus.Histogram
	Highlights     prometheus.Histogram

	// Click tracker metrics
	ClicksRecorded    *prometheus.CounterVec
	InvalidSignatures prometheus.Counter
	BotRedirects      prometheus.Counter

	// LLM metrics
	LLMCalls *prometheus.CounterVec
}

// New registers and returns the metric set.
func New() *Metrics {
	return &Metrics{
		DigestRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Total digest runs by exit code",
		}, []string{"exit_code"}),
		DigestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "digest_run_duration_seconds",
			Help:    "Wall-clock time of a full digest run",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		Highlights: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "digest_highlights_selected",
			Help:    "Number of highlights selected per run",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 12, 16, 24, 32},
		}),
		ClicksRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_clicks_recorded_total",
			Help: "Total tracked clicks by channel",
		}, []string{"channel"}),
		InvalidSignatures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracker_invalid_signatures_total",
			Help: "Total redirect requests rejected for a bad signature",
		}),
		BotRedirects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracker_bot_redirects_total",
			Help: "Total redirects served without counting (bots and HEAD probes)",
		}),
		LLMCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_calls_total",
			Help: "Total LLM chat completions by purpose and outcome",
		}, []string{"purpose", "outcome"}),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
