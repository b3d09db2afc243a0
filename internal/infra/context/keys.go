// Package context carries request-scoped values shared by transport, services and logging.
package context

type contextKey string

const (
	contextKeyTraceID  = contextKey("traceID")
	contextKeyIdentity = contextKey("identity")
)
