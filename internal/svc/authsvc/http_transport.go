package authsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/jobhunter/internal/domain"
	context_ "github.com/mkrupp/jobhunter/internal/infra/context"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
	"github.com/mkrupp/jobhunter/internal/infra/metrics"
	http_ "github.com/mkrupp/jobhunter/internal/infra/transport/http"
	"github.com/mkrupp/jobhunter/internal/infra/validate"
)

// APIPrefix is where the user endpoints are mounted.
const APIPrefix = "/api/v1/users"

const defaultMaxBodyBytes = 1 << 20

// User-facing messages. Clients show these verbatim.
const (
	MessageLoggedIn           = "logged in"
	MessageLoggedOut          = "logged out"
	MessageRegistered         = "registered"
	MessageCurrentUser        = "current user"
	MessageOnboardingDone     = "onboarding completed"
	MessageInvalidCredentials = "Invalid email or password"
	MessageInvalidBody        = "Invalid request body"
	MessageUserExists         = "User with this email already exists"
	MessageInternal           = "Internal server error"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// MaxBodyBytes caps request bodies
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" default:"1048576"`

	// Login throttles POST /login per client IP
	Login http_.RateLimitConfig `envPrefix:"LOGIN_"`
}

// HTTPTransport serves the user endpoints of the auth service.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	cfg     HTTPTransportConfig
	cookie  CookieConfig
	mux     *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport and registers its routes:
//   - POST /api/v1/users/register
//   - POST /api/v1/users/login (rate limited)
//   - GET  /api/v1/users/current-user (session cookie)
//   - POST /api/v1/users/logout (session cookie)
//   - POST /api/v1/users/onboarding/complete (session cookie)
//   - GET  /metrics
//   - GET  /healthz
func NewHTTPTransport(
	authSvc *AuthService,
	cfg HTTPTransportConfig,
	cookie CookieConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
		cookie:  cookie,
		mux:     http.NewServeMux(),
	}

	limiter := http_.NewRateLimiter(cfg.Login)
	authenticated := func(h http.HandlerFunc) http.Handler {
		return http_.AuthenticatingMiddleware(h, authSvc, cookie.Name, ht.log)
	}

	ht.mux.HandleFunc("POST "+APIPrefix+"/register", ht.HandleRegister)
	ht.mux.Handle("POST "+APIPrefix+"/login", limiter.Middleware(
		http.HandlerFunc(ht.HandleLogin),
		ht.log,
		func() { metrics.RecordLogin(metrics.OutcomeThrottled) },
	))
	ht.mux.Handle("GET "+APIPrefix+"/current-user", authenticated(ht.HandleCurrentUser))
	ht.mux.Handle("POST "+APIPrefix+"/logout", authenticated(ht.HandleLogout))
	ht.mux.Handle("POST "+APIPrefix+"/onboarding/complete", authenticated(ht.HandleCompleteOnboarding))
	ht.mux.Handle("GET /metrics", metrics.Handler())
	ht.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

func (ht *HTTPTransport) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	limit := ht.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http_.WriteError(w, http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
		} else {
			http_.WriteError(w, http.StatusBadRequest, MessageInvalidBody)
		}

		return errors.Join(domain.ErrValidation, fmt.Errorf("decode body: %w", err))
	}

	return nil
}

// writeValidationError answers 400 with the per-field messages as data.
func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErrs *validate.FieldErrors
	if errors.As(err, &fieldErrs) {
		_ = http_.WriteJSON(w, http.StatusBadRequest, fieldErrs.Error(), fieldErrs)

		return
	}

	http_.WriteError(w, http.StatusBadRequest, MessageInvalidBody)
}

// HandleRegister creates an account. Responds 201 with the new identity.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.DebugContext(r.Context(), "user register failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "user registered")
		}
	}()

	var reg domain.Registration
	if err := ht.decode(w, r, &reg); err != nil {
		return err
	}

	usr, err := ht.authSvc.RegisterUser(r.Context(), reg)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeValidationError(w, err)
		case errors.Is(err, domain.ErrUserAlreadyExists):
			http_.WriteError(w, http.StatusConflict, MessageUserExists)
		default:
			http_.WriteError(w, http.StatusInternalServerError, MessageInternal)
		}

		return fmt.Errorf("register user: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, MessageRegistered, usr.Identity())
}

// HandleLogin checks the submitted credentials and sets the session cookie.
// The body carries only an acknowledgement.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.DebugContext(r.Context(), "user login failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "user logged in")
		}
	}()

	var creds domain.Credentials
	if err := ht.decode(w, r, &creds); err != nil {
		metrics.RecordLogin(metrics.OutcomeValidationError)

		return err
	}

	token, sess, err := ht.authSvc.Login(r.Context(), creds)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeValidationError(w, err)
		case errors.Is(err, domain.ErrInvalidCredentials):
			http_.WriteError(w, http.StatusUnauthorized, MessageInvalidCredentials)
		default:
			http_.WriteError(w, http.StatusInternalServerError, MessageInternal)
		}

		return fmt.Errorf("login user: %w", err)
	}

	http.SetCookie(w, ht.cookie.SessionCookie(token, sess.ExpiresAt))

	return http_.WriteJSON(w, http.StatusOK, MessageLoggedIn, nil)
}

// HandleCurrentUser returns the identity resolved by the authenticating middleware.
func (ht *HTTPTransport) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := context_.IdentityFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Unauthorized request")

		return
	}

	if err := http_.WriteJSON(w, http.StatusOK, MessageCurrentUser, identity); err != nil {
		ht.log.ErrorContext(r.Context(), "write current user failed", "error", err)
	}
}

// HandleLogout deletes the session and clears the cookie.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogout(w, r)
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "user logout failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "user logged out")
		}
	}()

	token, _ := http_.SessionTokenFromContext(r.Context())

	if err := ht.authSvc.Logout(r.Context(), token); err != nil {
		http_.WriteError(w, http.StatusInternalServerError, MessageInternal)

		return fmt.Errorf("logout: %w", err)
	}

	http.SetCookie(w, ht.cookie.ExpiredCookie())

	return http_.WriteJSON(w, http.StatusOK, MessageLoggedOut, nil)
}

// HandleCompleteOnboarding marks onboarding as done for the authenticated user.
func (ht *HTTPTransport) HandleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCompleteOnboarding(w, r)
}

func (ht *HTTPTransport) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "complete onboarding failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "onboarding completed")
		}
	}()

	identity, ok := context_.IdentityFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Unauthorized request")

		return domain.ErrUnauthenticated
	}

	updated, err := ht.authSvc.CompleteOnboarding(r.Context(), identity.ID)
	if err != nil {
		http_.WriteError(w, http.StatusInternalServerError, MessageInternal)

		return fmt.Errorf("complete onboarding: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, MessageOnboardingDone, updated)
}
