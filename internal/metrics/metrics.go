// Package metrics exposes Prometheus collectors for index builds and recommendation queries.
//
// Collectors are registered on the default registry and served at /metrics:
//
//	eiga_recommend_requests_total{outcome}    counter
//	eiga_recommend_duration_seconds           histogram
//	eiga_rebuilds_total{outcome}              counter
//	eiga_build_duration_seconds               histogram
//	eiga_index_movies                         gauge
//	eiga_index_vocabulary_terms               gauge
//	eiga_http_requests_total{method,route,status} counter
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recommend outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeUnknownTitle = "unknown_title"
	OutcomeInvalid      = "invalid"
	OutcomeUnavailable  = "unavailable"
	OutcomeError        = "error"
)

// Rebuild outcomes.
const (
	RebuildBuilt     = "built"
	RebuildUnchanged = "unchanged"
	RebuildFailed    = "failed"
)

var (
	RecommendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eiga_recommend_requests_total",
		Help: "Total recommendation queries by outcome",
	}, []string{"outcome"})

	RecommendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eiga_recommend_duration_seconds",
		Help:    "Recommendation query latency in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})

	RebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eiga_rebuilds_total",
		Help: "Total index rebuild attempts by outcome",
	}, []string{"outcome"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eiga_build_duration_seconds",
		Help:    "Index build time (ingest, features, similarity, persist) in seconds",
		Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
	})

	IndexMovies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eiga_index_movies",
		Help: "Number of movies in the live index",
	})

	IndexVocabulary = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eiga_index_vocabulary_terms",
		Help: "Vocabulary size of the live index",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eiga_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
)

// RecordRecommend records one recommendation query.
func RecordRecommend(outcome string, duration time.Duration) {
	RecommendRequestsTotal.WithLabelValues(outcome).Inc()
	RecommendDuration.Observe(duration.Seconds())
}

// RecordRebuild records a rebuild attempt. Duration is only observed for completed builds.
func RecordRebuild(outcome string, duration time.Duration) {
	RebuildsTotal.WithLabelValues(outcome).Inc()
	if outcome == RebuildBuilt {
		BuildDuration.Observe(duration.Seconds())
	}
}

// SetIndexSize updates the live index gauges.
func SetIndexSize(movies, vocabulary int) {
	IndexMovies.Set(float64(movies))
	IndexVocabulary.Set(float64(vocabulary))
}

// RouteUnmatched labels requests no route matched, so arbitrary paths share one series.
const RouteUnmatched = "unmatched"

// RecordHTTPRequest records a served HTTP request. route must be a route pattern
// or RouteUnmatched, never a raw request path.
func RecordHTTPRequest(method, route string, status int) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
