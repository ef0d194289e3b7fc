package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/fuzzyrestaurants/finder/internal/api/response"
)

// RateLimitedRecorder records requests rejected by RateLimit.
// observability.APIMetrics satisfies it; pass nil when metrics are disabled.
type RateLimitedRecorder interface {
	RecordRateLimited(ctx context.Context)
}

func passthrough(next http.Handler) http.Handler { return next }

// CORS allows browser front ends on origins to call the API. go-chi/cors treats
// an empty origin list as "allow all", so no origins means no CORS headers.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return passthrough
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	})
}

// RateLimit allows requests per window for each client IP and answers the
// rest with 429 problem details. requests <= 0 disables the limiter.
func RateLimit(requests int, window time.Duration, recorder RateLimitedRecorder) func(http.Handler) http.Handler {
	if requests <= 0 {
		return passthrough
	}

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		if recorder != nil {
			recorder.RecordRateLimited(r.Context())
		}

		response.RespondTooManyRequests(w, "rate limit exceeded, retry later")
	}

	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(onLimit),
	)
}
