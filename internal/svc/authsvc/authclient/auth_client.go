// Package authclient talks to the auth service user endpoints. The session
// cookie lives in the client's cookie jar and is never read by callers.
package authclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mkrupp/jobhunter/internal/domain"
)

// AuthClient is the client side of the auth service API.
type AuthClient interface {
	// Login submits credentials. On success the session cookie is stored in the jar.
	Login(ctx context.Context, creds domain.Credentials) error

	// CurrentUser resolves the identity of the session in the jar.
	CurrentUser(ctx context.Context) (domain.Identity, error)

	// Logout ends the session and drops the cookie.
	Logout(ctx context.Context) error

	// Register creates an account without logging in.
	Register(ctx context.Context, reg domain.Registration) (domain.Identity, error)

	// CompleteOnboarding marks the current user's onboarding as done.
	CompleteOnboarding(ctx context.Context) (domain.Identity, error)
}

// ResponseError is returned for any non-2xx answer from the server.
type ResponseError struct {
	StatusCode int
	Message    string
	// Fields holds per-field validation messages when the server sent them.
	Fields map[string]string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	return fmt.Sprintf("server responded %d: %s", e.StatusCode, e.Message)
}
