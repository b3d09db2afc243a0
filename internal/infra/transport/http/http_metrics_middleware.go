package http

import (
	"net/http"
	"time"

	"github.com/mkrupp/jobhunter/internal/infra/metrics"
)

// MetricsMiddleware records request latency by method and status.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(r.Method, rec.StatusCode, time.Since(start))
	})
}
