// Package metrics holds the Prometheus collectors shared by the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rift_tracker"

// Registry is the registry every collector in this package registers with.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	httpDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	ingestRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_runs_total",
		Help:      "Ingestion runs by outcome.",
	}, []string{"outcome"})

	ingestMatches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_matches_total",
		Help:      "Match IDs handled during ingestion by result.",
	}, []string{"result"})

	riotRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "riot_requests_total",
		Help:      "Riot API requests by endpoint and status.",
	}, []string{"endpoint", "status"})

	statsMaterialized = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stats_materialized_total",
		Help:      "Stats summary materializations by outcome.",
	}, []string{"outcome"})
)

// Ingest match results.
const (
	MatchInserted             = "inserted"
	MatchSkippedExisting      = "skipped_existing"
	MatchSkippedNoParticipant = "skipped_no_participant"
	MatchConflict             = "conflict"
)

// Outcomes for runs and materializations.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordIngestRun records the outcome of one ingestion call.
func RecordIngestRun(outcome string) {
	ingestRuns.WithLabelValues(outcome).Inc()
}

// RecordIngestMatch records what happened to one match ID.
func RecordIngestMatch(result string) {
	ingestMatches.WithLabelValues(result).Inc()
}

// RecordRiotRequest records one upstream call; status is the HTTP code or "error".
func RecordRiotRequest(endpoint, status string) {
	riotRequests.WithLabelValues(endpoint, status).Inc()
}

// RecordStatsMaterialized records one summary upsert.
func RecordStatsMaterialized(outcome string) {
	statsMaterialized.WithLabelValues(outcome).Inc()
}
