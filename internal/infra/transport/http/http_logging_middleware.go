package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mkrupp/jobhunter/internal/infra/logging"
)

// StatusRecorder wraps http.ResponseWriter to capture the status code and body size.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	BytesSent  int

	wroteHeader bool
}

// NewStatusRecorder wraps w. The status defaults to 200 until WriteHeader is called.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
		BytesSent:      0,
		wroteHeader:    false,
	}
}

func (w *StatusRecorder) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
	w.StatusCode = code
	w.wroteHeader = true
}

// HeaderWritten reports whether the response has been started.
func (w *StatusRecorder) HeaderWritten() bool {
	return w.wroteHeader
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *StatusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *StatusRecorder) Write(b []byte) (int, error) {
	w.BytesSent += len(b)
	w.wroteHeader = true

	n, err := w.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

// LoggingMiddleware creates middleware that logs HTTP request and response details.
// It logs requests at DEBUG level and responses at a level determined by the status code:
// - 5xx: ERROR
// - 4xx: WARN
// - Other: INFO.
func LoggingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	//nolint:varnamelen
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.DebugContext(r.Context(), "request", slog.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
		))

		mw := NewStatusRecorder(w)

		next.ServeHTTP(mw, r)

		var level logging.Level

		switch {
		case mw.StatusCode >= http.StatusInternalServerError:
			level = logging.LevelError
		case mw.StatusCode >= http.StatusBadRequest:
			level = logging.LevelWarn
		default:
			level = logging.LevelInfo
		}

		log.Log(r.Context(), level, "response", slog.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
			"status", mw.StatusCode,
			"bytes_sent", mw.BytesSent,
		))
	})
}
