// internal/app/system/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline counters and latency histograms. Registered on the default
// registry and served from /metrics.
var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digesthub_ticks_total",
		Help: "Number of scheduler ticks processed.",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digesthub_digest_runs_total",
		Help: "Team digest runs by terminal state.",
	}, []string{"state"})

	MemberFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digesthub_member_summary_failures_total",
		Help: "Member summarization attempts that failed and were skipped.",
	})

	ActivityRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digesthub_activity_records_total",
		Help: "Activity records ingested, by source.",
	}, []string{"source"})

	SummarizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "digesthub_summarize_duration_seconds",
		Help:    "Latency of individual summarizer completions.",
		Buckets: prometheus.DefBuckets,
	})

	DeliverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "digesthub_deliver_duration_seconds",
		Help:    "Latency of digest delivery calls.",
		Buckets: prometheus.DefBuckets,
	})
)

// Terminal run states used as the "state" label on RunsTotal.
const (
	StateDelivered        = "delivered"
	StateNoDeliveryTarget = "no_delivery_target"
	StateFailed           = "failed"
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
