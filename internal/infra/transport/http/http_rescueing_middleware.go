package http

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/jobhunter/internal/infra/logging"
)

// RescueingMiddleware turns a handler panic into a 500 envelope and an error log
// carrying the stack.
// http.ErrAbortHandler is passed on so net/http can abort the connection.
// If the handler already started the response, nothing more is written.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := NewStatusRecorder(w)

		defer func() {
			p := recover()
			if p == nil {
				return
			}

			if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(p)
			}

			log.ErrorContext(r.Context(), "handler panicked",
				slog.Group("http", "uri", r.RequestURI, "method", r.Method, "started", rec.HeaderWritten()),
				slog.Group("error", "panic", p, "stack", string(debug.Stack())),
			)

			if !rec.HeaderWritten() {
				WriteError(rec, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}
		}()

		next.ServeHTTP(rec, r)
	})
}
