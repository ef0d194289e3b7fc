package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameRecommendations        = "finder_recommendations_total"
	MetricNameRecommendationDuration = "finder_recommendation_duration_seconds"
	MetricNameCandidates             = "finder_candidates"
	MetricNameExcluded               = "finder_excluded_total"
	MetricNameCacheLookups           = "finder_cache_lookups_total"
	MetricNameGeocoderRequests       = "finder_geocoder_requests_total"
	MetricNameRequestBodyTooLarge    = "finder_request_body_too_large_total"
	MetricNameRateLimited            = "finder_rate_limited_total"
	MetricNameEmbeddingJobsEnqueued  = "finder_embedding_jobs_enqueued_total"
	MetricNameEmbeddingEnqueueErrors = "finder_embedding_enqueue_errors_total"
	MetricNameEmbeddingOutcomes      = "finder_embedding_jobs_total"
	MetricNameEmbeddingWorkerErrors  = "finder_embedding_worker_errors_total"
	MetricNameEmbeddingDuration      = "finder_embedding_duration_seconds"
	MetricNameReviewsEmbedded        = "finder_reviews_embedded_total"
)

// Attribute keys.
const (
	AttrOutcome = "outcome"
	AttrStage   = "stage"
	AttrReason  = "reason"
	AttrStatus  = "status"
	AttrCache   = "cache"
	AttrResult  = "result"
)

// AllowedRecommendOutcomes for finder_recommendations_total.
var AllowedRecommendOutcomes = map[string]bool{
	"ok":               true,
	"empty":            true,
	"invalid_request":  true,
	"geocoding_failed": true,
	"embedding_failed": true,
	"degenerate_query": true,
	"error":            true,
}

// AllowedStages for finder_candidates.
var AllowedStages = map[string]bool{
	"nearby":   true,
	"cuisine":  true,
	"ranked":   true,
	"returned": true,
}

// AllowedExcludedReasons for finder_excluded_total.
var AllowedExcludedReasons = map[string]bool{
	"degenerate_vector": true,
}

// AllowedCacheNames for finder_cache_lookups_total.
var AllowedCacheNames = map[string]bool{
	"query_embedding": true,
	"geocode":         true,
}

// AllowedGeocoderStatuses for finder_geocoder_requests_total.
var AllowedGeocoderStatuses = map[string]bool{
	"ok":           true,
	"not_found":    true,
	"error":        true,
	"circuit_open": true,
}

// AllowedEmbeddingOutcomes for finder_embedding_jobs_total.
var AllowedEmbeddingOutcomes = map[string]bool{
	"success":       true,
	"nothing_to_do": true,
	"failed_retry":  true,
	"failed_final":  true,
}

// AllowedEmbeddingWorkerReasons for finder_embedding_worker_errors_total.
var AllowedEmbeddingWorkerReasons = map[string]bool{
	"list_reviews": true,
	"embed":        true,
	"store":        true,
	"rate_limit":   true,
}

// AllowedEmbeddingProviderReasons for enqueue failures.
var AllowedEmbeddingProviderReasons = map[string]bool{
	"enqueue_failed": true,
	"enqueue_retry":  true,
	"list_failed":    true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}
