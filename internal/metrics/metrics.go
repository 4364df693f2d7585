// Package metrics exposes the Prometheus collectors the scanner updates
// during operation, served over HTTP at the configured listen address in
// text exposition format.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scanner_passes_total",
		Help: "Total number of completed scan passes.",
	})

	PassDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scanner_pass_duration_seconds",
		Help:    "Wall-clock duration of a single scan pass.",
		Buckets: prometheus.DefBuckets,
	})

	PathsEvaluatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scanner_paths_evaluated_total",
		Help: "Total number of paths that reached evaluation (had all required snapshots).",
	})

	OpportunitiesFoundTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scanner_opportunities_found_total",
		Help: "Total number of paths accepted above the profit threshold.",
	})

	BestDeltaFinal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scanner_best_delta_final",
		Help: "Delta-final of the best opportunity from the most recent pass that found one.",
	})

	RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scanner_rejections_total",
		Help: "Evaluation rejections by reason.",
	}, []string{"reason"})

	OrderbookCacheMarkets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orderbook_cache_markets",
		Help: "Number of (exchange, market) pairs currently populated in the order-book cache.",
	})

	IngestionFeedErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_feed_errors_total",
		Help: "Ingestion feed errors by source.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(
		PassesTotal,
		PassDurationSeconds,
		PathsEvaluatedTotal,
		OpportunitiesFoundTotal,
		BestDeltaFinal,
		RejectionsTotal,
		OrderbookCacheMarkets,
		IngestionFeedErrorsTotal,
	)
}

// ObserveSummary records the counters/gauges derived from one scan pass.
func ObserveSummary(evaluated, opportunities int, durationMs int64, bestDeltaFinal float64, hasOpportunity bool) {
	PassesTotal.Inc()
	PassDurationSeconds.Observe(float64(durationMs) / 1000.0)
	PathsEvaluatedTotal.Add(float64(evaluated))
	OpportunitiesFoundTotal.Add(float64(opportunities))
	if hasOpportunity {
		BestDeltaFinal.Set(bestDeltaFinal)
	}
}
