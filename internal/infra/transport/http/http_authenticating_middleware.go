package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/mkrupp/jobhunter/internal/domain"
	context_ "github.com/mkrupp/jobhunter/internal/infra/context"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
)

// IdentityResolver turns a session cookie value into the identity it belongs to.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, sessionToken string) (domain.Identity, error)
}

// AuthenticatingMiddleware creates middleware that requires a valid session cookie.
// Requests without one are rejected with 401. On success the identity and the raw
// token are added to the request context.
func AuthenticatingMiddleware(
	next http.Handler,
	resolver IdentityResolver,
	cookieName string,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(cookieName)
		if err != nil || cookie.Value == "" {
			log.DebugContext(r.Context(), "no session cookie")
			WriteError(w, http.StatusUnauthorized, "Unauthorized request")

			return
		}

		identity, err := resolver.ResolveIdentity(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				log.DebugContext(r.Context(), "invalid session", "error", err)
				WriteError(w, http.StatusUnauthorized, "Unauthorized request")
			} else {
				log.ErrorContext(r.Context(), "resolve identity failed", "error", err)
				WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}

			return
		}

		ctx := context_.WithIdentity(r.Context(), identity)
		ctx = withSessionToken(ctx, cookie.Value)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type sessionTokenKey struct{}

func withSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenKey{}, token)
}

// SessionTokenFromContext returns the session cookie value accepted by AuthenticatingMiddleware.
func SessionTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenKey{}).(string)

	return token, ok
}
