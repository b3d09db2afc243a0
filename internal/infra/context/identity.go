package context

import (
	"context"

	"github.com/mkrupp/jobhunter/internal/domain"
)

// IdentityFromContext returns the identity the authenticating middleware resolved for this request.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(domain.Identity)

	return identity, ok
}

// WithIdentity stores the authenticated identity in the context.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}
