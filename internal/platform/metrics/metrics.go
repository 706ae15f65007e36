// Package metrics holds the Prometheus collectors shared by the chart pipeline.
// Collectors are usable before Register is called; registration only exposes them.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SourceRequests counts candle source requests by outcome (ok, error, timeout, status).
	SourceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chart",
		Subsystem: "source",
		Name:      "requests_total",
		Help:      "Candle source requests by outcome",
	}, []string{"outcome"})

	// SourceLatency observes the duration of candle source requests.
	SourceLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chart",
		Subsystem: "source",
		Name:      "request_duration_seconds",
		Help:      "Candle source request duration (seconds)",
		Buckets:   prometheus.DefBuckets,
	})

	// RowsSkipped counts raw rows dropped by the normalizer, by reason.
	RowsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chart",
		Subsystem: "normalizer",
		Name:      "rows_skipped_total",
		Help:      "Raw rows dropped during normalization",
	}, []string{"reason"})

	// StaleResults counts fetch results discarded because a newer request superseded them.
	StaleResults = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chart",
		Subsystem: "session",
		Name:      "stale_results_total",
		Help:      "Fetch results dropped because they were superseded",
	})

	// LiveMerges counts candles merged into a session by live polling.
	LiveMerges = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chart",
		Subsystem: "session",
		Name:      "live_merges_total",
		Help:      "Candles merged into sessions from live polling",
	})

	// ActiveSessions is the number of running chart sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chart",
		Subsystem: "session",
		Name:      "active",
		Help:      "Number of running chart sessions",
	})

	// FeedTicks counts upstream feed ticks by outcome (ok, error).
	FeedTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chart",
		Subsystem: "feed",
		Name:      "ticks_total",
		Help:      "Upstream feed ticks by outcome",
	}, []string{"outcome"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chart",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Feed cache lookups by result (hit, miss, corrupt)",
	}, []string{"result"})
)

// Register registers every collector. Without arguments the default registerer is used.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			SourceRequests,
			SourceLatency,
			RowsSkipped,
			StaleResults,
			LiveMerges,
			ActiveSessions,
			FeedTicks,
			CacheLookups,
		)
	})
}
