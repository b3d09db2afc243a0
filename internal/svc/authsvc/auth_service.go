package authsvc

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/jobhunter/internal/domain"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
	"github.com/mkrupp/jobhunter/internal/infra/metrics"
	"github.com/mkrupp/jobhunter/internal/infra/validate"
	"github.com/mkrupp/jobhunter/internal/repo/session"
	"github.com/mkrupp/jobhunter/internal/repo/user"
	"github.com/mkrupp/jobhunter/internal/util/encoding"
)

const (
	// sessionIDBytes is the entropy of a session id (160 bits).
	sessionIDBytes = 20

	defaultSessionPurgeInterval = 10 * time.Minute
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/authsvc.key"`

	// SessionTTL is how long a session stays valid after login
	SessionTTL time.Duration `env:"SESSION_TTL" default:"24h"`

	// BcryptCost is the work factor for password hashes
	BcryptCost int `env:"BCRYPT_COST" default:"10"`

	// SessionPurgeInterval is how often expired sessions are removed from the store
	SessionPurgeInterval time.Duration `env:"SESSION_PURGE_INTERVAL" default:"10m"`
}

// AuthService registers users, checks credentials, issues sessions and
// resolves session cookies back into identities.
type AuthService struct {
	Config      AuthConfig
	UserRepo    user.Repository
	SessionRepo session.Repository
	Validator   *validate.Validator
	Log         logging.Logger
	SigningKey  *rsa.PrivateKey

	// Now defaults to time.Now when nil.
	Now func() time.Time

	// comparePassword defaults to bcrypt.CompareHashAndPassword when nil.
	comparePassword func(hash, password []byte) error

	dummyOnce sync.Once
	dummy     []byte
}

// NewAuthService creates a new AuthService with the given repository factories and configuration.
// Returns an error if the signing key cannot be loaded or a repository cannot be created.
func NewAuthService(
	userRepoFactory user.RepositoryFactory,
	sessionRepoFactory session.RepositoryFactory,
	cfg AuthConfig,
) (_ *AuthService, err error) {
	log := logging.GetLogger("svc.authsvc.auth_service")

	signingKey, err := GetPrivateKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	userRepo, err := userRepoFactory()
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	sessionRepo, err := sessionRepoFactory()
	if err != nil {
		_ = userRepo.Close()

		return nil, fmt.Errorf("new session repo: %w", err)
	}

	return &AuthService{
		Config:      cfg,
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Validator:   validate.New(),
		Log:         log,
		SigningKey:  signingKey,
	}, nil
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}

	return time.Now()
}

func (s *AuthService) validator() *validate.Validator {
	if s.Validator == nil {
		s.Validator = validate.New()
	}

	return s.Validator
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser creates a new account. The password is stored as a bcrypt hash
// and the account starts with onboarding not done. It does not log the user in.
func (s *AuthService) RegisterUser(ctx context.Context, reg domain.Registration) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "role", reg.Role))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}()

	reg.Email = normalizeEmail(reg.Email)
	reg.FullName = strings.TrimSpace(reg.FullName)

	if err := s.validator().Struct(reg); err != nil {
		return nil, err //nolint:wrapcheck
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("new user id: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)
	usr := &domain.User{
		ID:             id.String(),
		Email:          reg.Email,
		PasswordHash:   passwordHash,
		Role:           reg.Role,
		FullName:       reg.FullName,
		DoneOnboarding: false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.UserRepo.CreateUser(ctx, usr); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return usr, nil
}

func (s *AuthService) compare(hash, password []byte) error {
	if s.comparePassword != nil {
		return s.comparePassword(hash, password)
	}

	return bcrypt.CompareHashAndPassword(hash, password) //nolint:wrapcheck
}

// dummyHash is what unknown emails are checked against, so a rejected login
// costs one bcrypt comparison whether or not the email is registered.
func (s *AuthService) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("jobhunter-unknown-user"), s.bcryptCost())
		if err != nil {
			if s.Log != nil {
				s.Log.Error("generate dummy password hash failed", "error", err)
			}

			return
		}

		s.dummy = hash
	})

	return s.dummy
}

func (s *AuthService) bcryptCost() int {
	if s.Config.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}

	return s.Config.BcryptCost
}

// Login checks creds and, only if both the user lookup and the password check
// succeed, stores a new session and returns the signed cookie value for it.
// Unknown emails and wrong passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (_ string, _ domain.Session, err error) {
	log := s.Log

	defer func() {
		switch {
		case err == nil:
			metrics.RecordLogin(metrics.OutcomeSuccess)
			log.DebugContext(ctx, "login successful")
		case errors.Is(err, domain.ErrValidation):
			metrics.RecordLogin(metrics.OutcomeValidationError)
			log.DebugContext(ctx, "login rejected", "error", err)
		case errors.Is(err, domain.ErrInvalidCredentials):
			metrics.RecordLogin(metrics.OutcomeInvalidCredentials)
			log.InfoContext(ctx, "login rejected", "error", err)
		default:
			metrics.RecordLogin(metrics.OutcomeInternalServerError)
			log.ErrorContext(ctx, "login failed", "error", err)
		}
	}()

	creds.Email = normalizeEmail(creds.Email)

	if err := s.validator().Struct(creds); err != nil {
		return "", domain.Session{}, err //nolint:wrapcheck
	}

	usr, ok, err := s.UserRepo.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = s.compare(s.dummyHash(), []byte(creds.Password))

			return "", domain.Session{}, errors.Join(domain.ErrInvalidCredentials, err)
		}

		return "", domain.Session{}, fmt.Errorf("get user: %w", err)
	} else if !ok {
		_ = s.compare(s.dummyHash(), []byte(creds.Password))

		return "", domain.Session{}, domain.ErrInvalidCredentials
	}

	log = log.With(logging.Group("user", "id", usr.ID))

	if err := s.compare(usr.PasswordHash, []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", domain.Session{}, domain.ErrInvalidCredentials
		}

		return "", domain.Session{}, fmt.Errorf("compare password: %w", err)
	}

	sessionID, err := encoding.RandomID(sessionIDBytes)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("new session id: %w", err)
	}

	now := s.now().UTC()
	sess := domain.Session{
		ID:        sessionID,
		UserID:    usr.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.Config.SessionTTL),
	}

	token, err := SignSessionToken(s.SigningKey, sess)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("sign session token: %w", err)
	}

	if err := s.SessionRepo.CreateSession(ctx, sess); err != nil {
		return "", domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	return token, sess, nil
}

// ResolveIdentity returns the identity behind a session cookie value. It
// always consults the session store and the user table. Any reason the
// session is not usable wraps domain.ErrUnauthenticated.
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (_ domain.Identity, err error) {
	log := s.Log

	defer func() {
		switch {
		case err == nil:
			metrics.RecordIdentityResolve(metrics.OutcomeSuccess)
			log.DebugContext(ctx, "identity resolved")
		case errors.Is(err, domain.ErrUnauthenticated):
			metrics.RecordIdentityResolve(metrics.OutcomeUnauthenticated)
			log.DebugContext(ctx, "identity rejected", "error", err)
		default:
			metrics.RecordIdentityResolve(metrics.OutcomeInternalServerError)
			log.ErrorContext(ctx, "resolve identity failed", "error", err)
		}
	}()

	sess, err := s.lookupSession(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}

	log = log.With(logging.Group("session", "user_id", sess.UserID))

	usr, ok, err := s.UserRepo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Identity{}, errors.Join(domain.ErrUnauthenticated, err)
		}

		return domain.Identity{}, fmt.Errorf("get user: %w", err)
	} else if !ok {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	return usr.Identity(), nil
}

func (s *AuthService) lookupSession(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims, err := ParseSessionToken(token, &s.SigningKey.PublicKey, s.now())
	if err != nil {
		return nil, errors.Join(domain.ErrUnauthenticated, err)
	}

	sess, ok, err := s.SessionRepo.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, errors.Join(domain.ErrUnauthenticated, err)
		}

		return nil, fmt.Errorf("get session: %w", err)
	} else if !ok {
		return nil, domain.ErrUnauthenticated
	}

	if sess.UserID != claims.Subject {
		return nil, fmt.Errorf("session owner mismatch: %w", domain.ErrUnauthenticated)
	}

	return sess, nil
}

// Logout deletes the session behind token.
func (s *AuthService) Logout(ctx context.Context, token string) (err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "logout failed", "error", err)
		} else {
			log.DebugContext(ctx, "logged out")
		}
	}()

	claims, err := ParseSessionToken(token, &s.SigningKey.PublicKey, s.now())
	if err != nil {
		return errors.Join(domain.ErrUnauthenticated, err)
	}

	if err := s.SessionRepo.DeleteSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// CompleteOnboarding marks the user's onboarding as done and returns the updated identity.
func (s *AuthService) CompleteOnboarding(ctx context.Context, userID string) (_ domain.Identity, err error) {
	log := s.Log.With(logging.Group("user", "id", userID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "complete onboarding failed", "error", err)
		} else {
			log.DebugContext(ctx, "onboarding completed")
		}
	}()

	if err := s.UserRepo.SetOnboardingDone(ctx, userID, true); err != nil {
		return domain.Identity{}, fmt.Errorf("set onboarding done: %w", err)
	}

	usr, _, err := s.UserRepo.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("get user: %w", err)
	}

	return usr.Identity(), nil
}

// Close releases resources held by the service, such as database connections.
// PurgeSessions removes expired sessions every SessionPurgeInterval until ctx
// is done. A failed purge is logged and tried again on the next tick.
func (s *AuthService) PurgeSessions(ctx context.Context) error {
	interval := s.Config.SessionPurgeInterval
	if interval <= 0 {
		interval = defaultSessionPurgeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			purged, err := s.SessionRepo.PurgeExpired(ctx)

			switch {
			case err != nil && ctx.Err() == nil:
				s.Log.ErrorContext(ctx, "purge sessions failed", "error", err)
			case purged > 0:
				s.Log.DebugContext(ctx, "purged expired sessions", "count", purged)
			}
		}
	}
}

func (s *AuthService) Close() error {
	return errors.Join(s.UserRepo.Close(), s.SessionRepo.Close())
}
