// Package metrics provides Prometheus collectors for the auth service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobhunter"

// Outcome labels shared by the auth counters.
const (
	OutcomeSuccess             = "success"
	OutcomeInvalidCredentials  = "invalid_credentials"
	OutcomeValidationError     = "validation_error"
	OutcomeUnauthenticated     = "unauthenticated"
	OutcomeThrottled           = "throttled"
	OutcomeInternalServerError = "error"
)

//nolint:gochecknoglobals
var (
	// LoginTotal counts credential checks by outcome.
	LoginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_total",
			Help:      "Total number of login attempts",
		},
		[]string{"outcome"},
	)

	// IdentityResolveTotal counts current-user lookups by outcome.
	IdentityResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "identity_resolve_total",
			Help:      "Total number of identity resolutions",
		},
		[]string{"outcome"},
	)

	// HTTPRequestDuration measures handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// RecordLogin records the outcome of a login attempt.
func RecordLogin(outcome string) {
	LoginTotal.WithLabelValues(outcome).Inc()
}

// RecordIdentityResolve records the outcome of an identity resolution.
func RecordIdentityResolve(outcome string) {
	IdentityResolveTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest observes one served request.
func RecordHTTPRequest(method string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
