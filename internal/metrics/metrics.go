package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	compareTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheapmatch_compare_total",
			Help: "Compare requests by outcome",
		},
		[]string{"outcome"},
	)

	resultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheapmatch_result_cache_total",
			Help: "Result cache lookups by entry state",
		},
		[]string{"state"},
	)

	filterRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheapmatch_filter_rejections_total",
			Help: "Candidates dropped by the deterministic pre-filters",
		},
		[]string{"reason"},
	)

	scoreDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheapmatch_score_decisions_total",
			Help: "Local scorer decisions",
		},
		[]string{"decision"},
	)

	verifierCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheapmatch_verifier_calls_total",
			Help: "Semantic and visual verifier calls by outcome",
		},
		[]string{"verifier", "outcome"},
	)

	fingerprintCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheapmatch_fingerprint_cache_total",
			Help: "Image fingerprint cache lookups",
		},
		[]string{"result"},
	)

	catalogRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheapmatch_catalog_requests_total",
			Help: "Catalog API requests by method and outcome",
		},
		[]string{"method", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		compareTotal,
		resultCacheTotal,
		filterRejectionsTotal,
		scoreDecisionsTotal,
		verifierCallsTotal,
		fingerprintCacheTotal,
		catalogRequestsTotal,
	)
}

// RecordCompare counts a finished compare request ("found", "not_found", "error", "canceled")
func RecordCompare(outcome string) {
	compareTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheState counts a result cache lookup by the state of the entry found
func RecordCacheState(state string) {
	resultCacheTotal.WithLabelValues(state).Inc()
}

// RecordFilterRejection counts a pre-filter rejection
func RecordFilterRejection(reason string) {
	filterRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordDecision counts a local scorer decision
func RecordDecision(decision string) {
	scoreDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordVerifierCall counts a verifier invocation
func RecordVerifierCall(verifier, outcome string) {
	verifierCallsTotal.WithLabelValues(verifier, outcome).Inc()
}

// RecordFingerprintLookup counts a fingerprint cache lookup ("hit", "miss", "failed")
func RecordFingerprintLookup(result string) {
	fingerprintCacheTotal.WithLabelValues(result).Inc()
}

// RecordCatalogRequest counts a catalog API request
func RecordCatalogRequest(method, outcome string) {
	catalogRequestsTotal.WithLabelValues(method, outcome).Inc()
}
