package authsvc_test

import (
	"context"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/jobhunter/internal/domain"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
	"github.com/mkrupp/jobhunter/internal/svc/authsvc"
)

// mockUserRepository implements user.Repository for testing.
type mockUserRepository struct {
	users map[string]*domain.User // by email
	err   error
	m     sync.Mutex
}

func (m *mockUserRepository) CreateUser(_ context.Context, user *domain.User) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}
	if _, exists := m.users[user.Email]; exists {
		return domain.ErrUserAlreadyExists
	}
	stored := *user
	m.users[user.Email] = &stored
	return nil
}

func (m *mockUserRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}
	user, exists := m.users[email]
	if !exists {
		return nil, false, domain.ErrUserNotFound
	}
	found := *user
	return &found, true, nil
}

func (m *mockUserRepository) GetUserByID(_ context.Context, id string) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}
	for _, user := range m.users {
		if user.ID == id {
			found := *user
			return &found, true, nil
		}
	}
	return nil, false, domain.ErrUserNotFound
}

func (m *mockUserRepository) SetOnboardingDone(_ context.Context, id string, done bool) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}
	for _, user := range m.users {
		if user.ID == id {
			user.DoneOnboarding = done
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (m *mockUserRepository) Close() error {
	return nil
}

// mockSessionRepository implements session.Repository for testing.
type mockSessionRepository struct {
	sessions map[string]domain.Session
	err      error
	creates  int
	purges   int
	m        sync.Mutex
}

func (m *mockSessionRepository) CreateSession(_ context.Context, session domain.Session) error {
	m.m.Lock()
	defer m.m.Unlock()

	m.creates++
	if m.err != nil {
		return m.err
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepository) GetSession(_ context.Context, id string) (*domain.Session, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}
	session, ok := m.sessions[id]
	if !ok {
		return nil, false, domain.ErrSessionNotFound
	}
	return &session, true, nil
}

func (m *mockSessionRepository) DeleteSession(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepository) PurgeExpired(_ context.Context) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()

	m.purges++
	if m.err != nil {
		return 0, m.err
	}

	var purged int64
	for id, session := range m.sessions {
		if session.Expired(time.Now()) {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}

func (m *mockSessionRepository) purgeCount() int {
	m.m.Lock()
	defer m.m.Unlock()

	return m.purges
}

func (m *mockSessionRepository) Close() error {
	return nil
}

func (m *mockSessionRepository) count() int {
	m.m.Lock()
	defer m.m.Unlock()

	return len(m.sessions)
}

var ErrRepoError = errors.New("repository error")

//nolint:gochecknoglobals
var testSigningKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return authsvc.GeneratePrivateKey(2048)
})

func setupTestService(t *testing.T) (*authsvc.AuthService, *mockUserRepository, *mockSessionRepository) {
	t.Helper()

	signingKey, err := testSigningKey()
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}

	userRepo := &mockUserRepository{users: make(map[string]*domain.User)}
	sessionRepo := &mockSessionRepository{sessions: make(map[string]domain.Session)}

	svc := &authsvc.AuthService{
		Config: authsvc.AuthConfig{
			SessionTTL: time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Log:         logging.GetLogger("test.authsvc"),
		SigningKey:  signingKey,
	}

	return svc, userRepo, sessionRepo
}

func mustRegister(t *testing.T, svc *authsvc.AuthService, email, password string, role domain.Role) *domain.User {
	t.Helper()

	user, err := svc.RegisterUser(context.Background(), domain.Registration{
		Email:    email,
		Password: password,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}

	return user
}

//nolint:paralleltest
func TestAuthService_RegisterUser(t *testing.T) {
	svc, userRepo, _ := setupTestService(t)

	mustRegister(t, svc, "existing@example.com", "password123", domain.RoleEmployer)

	tests := []struct {
		name    string
		reg     domain.Registration
		repoErr error
		wantErr error
	}{
		{
			name: "successful registration",
			reg:  domain.Registration{Email: "New@Example.com ", Password: "password123", Role: domain.RoleJobSeeker},
		},
		{
			name:    "duplicate email",
			reg:     domain.Registration{Email: "existing@example.com", Password: "password123", Role: domain.RoleJobSeeker},
			wantErr: domain.ErrUserAlreadyExists,
		},
		{
			name:    "short password",
			reg:     domain.Registration{Email: "short@example.com", Password: "short", Role: domain.RoleJobSeeker},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "unknown role",
			reg:     domain.Registration{Email: "admin@example.com", Password: "password123", Role: "admin"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "repository error",
			reg:     domain.Registration{Email: "error@example.com", Password: "password123", Role: domain.RoleJobSeeker},
			repoErr: ErrRepoError,
			wantErr: ErrRepoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo.err = tt.repoErr
			defer func() { userRepo.err = nil }()

			user, err := svc.RegisterUser(context.Background(), tt.reg)

			if (err != nil) != (tt.wantErr != nil) {
				t.Fatalf("RegisterUser() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("RegisterUser() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if user.Email != "new@example.com" {
					t.Errorf("RegisterUser() email = %q, want normalized", user.Email)
				}
				if user.DoneOnboarding {
					t.Error("RegisterUser() new user has onboarding done")
				}
				if string(user.PasswordHash) == tt.reg.Password {
					t.Error("RegisterUser() stored plaintext password")
				}
			}
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	svc, _, sessionRepo := setupTestService(t)
	mustRegister(t, svc, "seeker@example.com", "testpass123", domain.RoleJobSeeker)

	tests := []struct {
		name    string
		creds   domain.Credentials
		wantErr error
	}{
		{
			name:  "successful login",
			creds: domain.Credentials{Email: "Seeker@Example.com", Password: "testpass123"},
		},
		{
			name:    "wrong password",
			creds:   domain.Credentials{Email: "seeker@example.com", Password: "wrongpass"},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:    "user not found",
			creds:   domain.Credentials{Email: "nobody@example.com", Password: "anypass"},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:    "malformed email",
			creds:   domain.Credentials{Email: "not-an-email", Password: "anypass"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "missing password",
			creds:   domain.Credentials{Email: "seeker@example.com"},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := sessionRepo.count()

			token, session, err := svc.Login(context.Background(), tt.creds)

			if (err != nil) != (tt.wantErr != nil) {
				t.Fatalf("Login() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Login() error = %v, wantErr %v", err, tt.wantErr)
				}
				if token != "" {
					t.Error("Login() returned a token on failure")
				}
				if sessionRepo.count() != before {
					t.Error("Login() stored a session on failure")
				}
				return
			}

			if !session.ExpiresAt.After(time.Now()) {
				t.Error("Login() session already expired")
			}

			identity, err := svc.ResolveIdentity(context.Background(), token)
			if err != nil {
				t.Fatalf("Login() generated unusable token: %v", err)
			}
			if identity.Email != "seeker@example.com" || identity.Role != domain.RoleJobSeeker {
				t.Errorf("ResolveIdentity() = %+v", identity)
			}
		})
	}
}

func TestAuthService_Login_SessionStoreFailure(t *testing.T) {
	t.Parallel()

	svc, _, sessionRepo := setupTestService(t)
	mustRegister(t, svc, "seeker@example.com", "testpass123", domain.RoleJobSeeker)

	sessionRepo.err = ErrRepoError

	token, _, err := svc.Login(context.Background(), domain.Credentials{Email: "seeker@example.com", Password: "testpass123"})
	if !errors.Is(err, ErrRepoError) {
		t.Fatalf("Login() error = %v, want %v", err, ErrRepoError)
	}
	if token != "" {
		t.Error("Login() returned a token although the session was not stored")
	}
}

func TestAuthService_Login_RejectionsCostOneComparison(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupTestService(t)
	svc.Config.BcryptCost = bcrypt.MinCost + 1
	mustRegister(t, svc, "seeker@example.com", "testpass123", domain.RoleJobSeeker)

	var (
		mu     sync.Mutex
		hashes [][]byte
	)

	authsvc.SetPasswordCompare(svc, func(hash, password []byte) error {
		mu.Lock()
		hashes = append(hashes, hash)
		mu.Unlock()

		return bcrypt.CompareHashAndPassword(hash, password)
	})

	for _, email := range []string{"seeker@example.com", "nobody@example.com"} {
		mu.Lock()
		hashes = nil
		mu.Unlock()

		_, _, err := svc.Login(context.Background(), domain.Credentials{Email: email, Password: "wrongpass"})
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("Login(%s) error = %v, want %v", email, err, domain.ErrInvalidCredentials)
		}

		mu.Lock()
		got := hashes
		mu.Unlock()

		if len(got) != 1 {
			t.Fatalf("Login(%s) compared %d hashes, want 1", email, len(got))
		}

		cost, err := bcrypt.Cost(got[0])
		if err != nil {
			t.Fatalf("Login(%s) compared against an invalid hash: %v", email, err)
		}
		if cost != bcrypt.MinCost+1 {
			t.Errorf("Login(%s) hash cost = %d, want %d", email, cost, bcrypt.MinCost+1)
		}
	}
}

func TestAuthService_ResolveIdentity(t *testing.T) {
	t.Parallel()

	svc, _, sessionRepo := setupTestService(t)
	ctx := context.Background()

	mustRegister(t, svc, "boss@example.com", "testpass123", domain.RoleEmployer)

	validToken, session, err := svc.Login(ctx, domain.Credentials{Email: "boss@example.com", Password: "testpass123"})
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}

	loggedOutToken, _, err := svc.Login(ctx, domain.Credentials{Email: "boss@example.com", Password: "testpass123"})
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	if err := svc.Logout(ctx, loggedOutToken); err != nil {
		t.Fatalf("failed to log out: %v", err)
	}

	otherKey, err := authsvc.GeneratePrivateKey(1024)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	forged, err := authsvc.SignSessionToken(otherKey, session)
	if err != nil {
		t.Fatalf("failed to sign forged token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid session", token: validToken},
		{name: "logged out session", token: loggedOutToken, wantErr: domain.ErrUnauthenticated},
		{name: "forged signature", token: forged, wantErr: domain.ErrUnauthenticated},
		{name: "garbage", token: "invalid-token", wantErr: domain.ErrUnauthenticated},
		{name: "empty token", token: "", wantErr: domain.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			identity, err := svc.ResolveIdentity(ctx, tt.token)

			if (err != nil) != (tt.wantErr != nil) {
				t.Fatalf("ResolveIdentity() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveIdentity() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && identity.Role != domain.RoleEmployer {
				t.Errorf("ResolveIdentity() role = %v, want %v", identity.Role, domain.RoleEmployer)
			}
		})
	}

	if sessionRepo.count() != 1 {
		t.Errorf("sessions = %d, want 1", sessionRepo.count())
	}
}

func TestAuthService_ResolveIdentity_Expired(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	mustRegister(t, svc, "seeker@example.com", "testpass123", domain.RoleJobSeeker)

	token, _, err := svc.Login(ctx, domain.Credentials{Email: "seeker@example.com", Password: "testpass123"})
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}

	svc.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := svc.ResolveIdentity(ctx, token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("ResolveIdentity() error = %v, want %v", err, domain.ErrUnauthenticated)
	}
}

func TestAuthService_ResolveIdentity_StoreFailure(t *testing.T) {
	t.Parallel()

	svc, _, sessionRepo := setupTestService(t)
	ctx := context.Background()

	mustRegister(t, svc, "seeker@example.com", "testpass123", domain.RoleJobSeeker)

	token, _, err := svc.Login(ctx, domain.Credentials{Email: "seeker@example.com", Password: "testpass123"})
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}

	sessionRepo.m.Lock()
	sessionRepo.err = ErrRepoError
	sessionRepo.m.Unlock()

	_, err = svc.ResolveIdentity(ctx, token)
	if !errors.Is(err, ErrRepoError) || errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("ResolveIdentity() error = %v, want store error only", err)
	}
}

func TestAuthService_CompleteOnboarding(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	user := mustRegister(t, svc, "seeker@example.com", "testpass123", domain.RoleJobSeeker)

	identity, err := svc.CompleteOnboarding(ctx, user.ID)
	if err != nil {
		t.Fatalf("CompleteOnboarding() error = %v", err)
	}
	if !identity.UserProfile.DoneOnboarding {
		t.Error("CompleteOnboarding() did not mark onboarding done")
	}

	if _, err := svc.CompleteOnboarding(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("CompleteOnboarding() error = %v, want %v", err, domain.ErrUserNotFound)
	}
}

func TestAuthService_PurgeSessions(t *testing.T) {
	t.Parallel()

	svc, _, sessionRepo := setupTestService(t)
	svc.Config.SessionPurgeInterval = 5 * time.Millisecond

	now := time.Now()
	sessionRepo.m.Lock()
	sessionRepo.sessions["live"] = domain.Session{ID: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}
	sessionRepo.sessions["stale"] = domain.Session{ID: "stale", UserID: "u2", ExpiresAt: now.Add(-time.Minute)}
	sessionRepo.m.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.PurgeSessions(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sessionRepo.count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("PurgeSessions() left %d sessions, want 1", sessionRepo.count())
		}
		time.Sleep(time.Millisecond)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("PurgeSessions() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PurgeSessions() did not return after cancel")
	}

	if sessionRepo.purgeCount() == 0 {
		t.Error("PurgeSessions() never called the store")
	}

	if _, ok, _ := sessionRepo.GetSession(context.Background(), "live"); !ok {
		t.Error("PurgeSessions() removed a live session")
	}
}
