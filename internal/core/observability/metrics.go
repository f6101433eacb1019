// Package observability owns the Prometheus collectors of the service.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"method", "route", "status"},
	)

	gridCells = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hexgrid_cells",
			Help:    "Number of hex cells emitted per generated grid.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1 to ~262k
		},
		[]string{"mode"},
	)

	gridDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hexgrid_generate_duration_seconds",
			Help:    "Time spent generating and matching one grid.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"mode"},
	)

	matchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hexgrid_match_total",
			Help: "Grid requests by match mode and whether any measurement matched.",
		},
		[]string{"mode", "outcome"},
	)

	rejectedQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hexgrid_rejected_total",
			Help: "Grid requests rejected before generation, by reason.",
		},
		[]string{"reason"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Response cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Cache backend operations by op and result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Latency of cache backend operations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"op"},
	)

	measurementsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "measurements_loaded",
			Help: "Measurements held in memory.",
		},
	)

	measurementsDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "measurements_dropped",
			Help: "Rows dropped at load because a numeric field did not parse.",
		},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_events_dropped_total",
			Help: "Query events dropped because the publish queue was full.",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveGrid(mode string, cells int, matched bool, durationSeconds float64) {
	gridCells.WithLabelValues(mode).Observe(float64(cells))
	gridDurationSeconds.WithLabelValues(mode).Observe(durationSeconds)
	outcome := "no_match"
	if matched {
		outcome = "match"
	}
	matchResults.WithLabelValues(mode, outcome).Inc()
}

func IncRejected(reason string) {
	rejectedQueries.WithLabelValues(reason).Inc()
}

func IncCacheHit() {
	cacheResults.WithLabelValues("hit").Inc()
}

func IncCacheMiss() {
	cacheResults.WithLabelValues("miss").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOps.WithLabelValues(op, result).Inc()
	cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func SetMeasurements(loaded, dropped int) {
	measurementsLoaded.Set(float64(loaded))
	measurementsDropped.Set(float64(dropped))
}

func IncEventDropped() {
	eventsDropped.Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// Collectors lists every collector so a dedicated registry can expose them.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		gridCells, gridDurationSeconds, matchResults, rejectedQueries,
		cacheResults, cacheOps, cacheOpDurationSeconds,
		measurementsLoaded, measurementsDropped, eventsDropped, buildInfo,
	}
}
