package login_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/jobhunter/internal/client/login"
	"github.com/mkrupp/jobhunter/internal/client/sessioncache"
	"github.com/mkrupp/jobhunter/internal/domain"
	"github.com/mkrupp/jobhunter/internal/svc/authsvc/authclient"
)

var (
	newSeeker = domain.Identity{ID: "u1", Email: "seeker@example.com", Role: domain.RoleJobSeeker}
	previous  = domain.Identity{ID: "u0", Email: "old@example.com", Role: domain.RoleEmployer,
		UserProfile: domain.UserProfile{DoneOnboarding: true}}
	goodCreds = domain.Credentials{Email: "seeker@example.com", Password: "testpass123"}
)

// fakeClient implements login.Client and records every call.
type fakeClient struct {
	mu sync.Mutex

	loginCalls, currentUserCalls, logoutCalls int

	loginErr       error
	identity       domain.Identity
	currentUserErr error
	logoutErr      error

	// loginGate blocks Login until closed or the context ends.
	loginGate chan struct{}
	// resolveGate blocks CurrentUser until closed, ignoring the context.
	resolveGate chan struct{}
	// logoutGate blocks Logout until closed, ignoring the context.
	logoutGate chan struct{}
}

func (f *fakeClient) Login(ctx context.Context, _ domain.Credentials) error {
	f.mu.Lock()
	f.loginCalls++
	gate, err := f.loginGate, f.loginErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}

func (f *fakeClient) CurrentUser(_ context.Context) (domain.Identity, error) {
	f.mu.Lock()
	f.currentUserCalls++
	gate, identity, err := f.resolveGate, f.identity, f.currentUserErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	return identity, err
}

func (f *fakeClient) Logout(_ context.Context) error {
	f.mu.Lock()
	f.logoutCalls++
	gate, err := f.logoutGate, f.logoutErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	return err
}

func (f *fakeClient) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loginCalls, f.currentUserCalls
}

// recordingNavigator implements login.Navigator.
type recordingNavigator struct {
	mu    sync.Mutex
	dests []domain.Destination
}

func (n *recordingNavigator) Navigate(_ context.Context, dest domain.Destination) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.dests = append(n.dests, dest)
}

func (n *recordingNavigator) visited() []domain.Destination {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]domain.Destination(nil), n.dests...)
}

func setup(client *fakeClient, clearDelay time.Duration) (*login.Orchestrator, *sessioncache.Cache, *recordingNavigator) {
	cache := sessioncache.New()
	cache.Replace(previous)

	nav := &recordingNavigator{}
	orch := login.New(client, cache, nav, login.Config{ErrorClearDelay: clearDelay})

	return orch, cache, nav
}

func TestSubmit_RoutesNewJobSeeker(t *testing.T) {
	t.Parallel()

	client := &fakeClient{identity: newSeeker}
	orch, cache, nav := setup(client, time.Second)

	var (
		mu          sync.Mutex
		transitions []login.State
	)
	orch.OnTransition(func(_, to login.State) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, to)
	})

	dest, err := orch.Submit(context.Background(), goodCreds)
	require.NoError(t, err)

	assert.Equal(t, domain.DestinationUserOnboarding, dest)
	assert.Equal(t, login.StateRouted, orch.State())
	assert.Equal(t, []domain.Destination{domain.DestinationUserOnboarding}, nav.visited())

	cached, ok := cache.Identity()
	require.True(t, ok)
	assert.Equal(t, newSeeker, cached)

	loginCalls, resolveCalls := client.calls()
	assert.Equal(t, 1, loginCalls)
	assert.Equal(t, 1, resolveCalls)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []login.State{
		login.StateSubmitting,
		login.StateValidating,
		login.StateResolving,
		login.StateSyncing,
		login.StateRouted,
	}, transitions)
}

func TestSubmit_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		creds          domain.Credentials
		loginErr       error
		identity       domain.Identity
		currentUserErr error
		wantKind       login.Kind
		wantMessage    string
		wantLogins     int
		wantResolves   int
	}{
		{
			name:        "client side validation",
			creds:       domain.Credentials{Email: "not-an-email", Password: "x"},
			wantKind:    login.KindValidationError,
			wantMessage: "email must be a valid email address",
		},
		{
			name:        "server rejects input",
			loginErr:    &authclient.ResponseError{StatusCode: http.StatusBadRequest, Message: "email is required"},
			wantKind:    login.KindValidationError,
			wantMessage: "email is required",
			wantLogins:  1,
		},
		{
			name:        "wrong password with server message",
			loginErr:    &authclient.ResponseError{StatusCode: http.StatusUnauthorized, Message: "Wrong credentials"},
			wantKind:    login.KindInvalidCredentials,
			wantMessage: "Wrong credentials",
			wantLogins:  1,
		},
		{
			name:        "unknown user without message",
			loginErr:    &authclient.ResponseError{StatusCode: http.StatusNotFound},
			wantKind:    login.KindInvalidCredentials,
			wantMessage: login.MessageInvalidCredentials,
			wantLogins:  1,
		},
		{
			name:        "server error on login",
			loginErr:    &authclient.ResponseError{StatusCode: http.StatusInternalServerError, Message: "boom"},
			wantKind:    login.KindServerUnavailable,
			wantMessage: login.MessageServerUnavailable,
			wantLogins:  1,
		},
		{
			name:        "throttled",
			loginErr:    &authclient.ResponseError{StatusCode: http.StatusTooManyRequests},
			wantKind:    login.KindServerUnavailable,
			wantMessage: login.MessageServerUnavailable,
			wantLogins:  1,
		},
		{
			name:        "transport failure on login",
			loginErr:    errors.New("dial tcp 127.0.0.1:8080: connect: connection refused"),
			wantKind:    login.KindServerUnavailable,
			wantMessage: login.MessageServerUnavailable,
			wantLogins:  1,
		},
		{
			name:           "session missing right after login",
			currentUserErr: &authclient.ResponseError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized request"},
			wantKind:       login.KindUnauthenticated,
			wantMessage:    login.MessageUnauthenticated,
			wantLogins:     1,
			wantResolves:   1,
		},
		{
			name:           "server error on resolve",
			currentUserErr: &authclient.ResponseError{StatusCode: http.StatusServiceUnavailable},
			wantKind:       login.KindServerUnavailable,
			wantMessage:    login.MessageServerUnavailable,
			wantLogins:     1,
			wantResolves:   1,
		},
		{
			name:         "unknown role",
			identity:     domain.Identity{ID: "u9", Email: "admin@example.com", Role: "admin"},
			wantKind:     login.KindUnroutableIdentity,
			wantMessage:  login.MessageUnroutable,
			wantLogins:   1,
			wantResolves: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeClient{loginErr: tt.loginErr, identity: tt.identity, currentUserErr: tt.currentUserErr}
			orch, cache, nav := setup(client, time.Minute)

			creds := tt.creds
			if creds == (domain.Credentials{}) {
				creds = goodCreds
			}

			dest, err := orch.Submit(context.Background(), creds)
			assert.Empty(t, dest)

			var loginErr *login.Error
			require.True(t, errors.As(err, &loginErr), "got %v", err)
			assert.Equal(t, tt.wantKind, loginErr.Kind)
			assert.Equal(t, tt.wantMessage, loginErr.Message)

			assert.Equal(t, login.StateFailed, orch.State())

			notice, ok := orch.Notice()
			assert.True(t, ok)
			assert.Equal(t, login.Notice{Kind: tt.wantKind, Message: tt.wantMessage}, notice)

			loginCalls, resolveCalls := client.calls()
			assert.Equal(t, tt.wantLogins, loginCalls)
			assert.Equal(t, tt.wantResolves, resolveCalls)

			assert.Empty(t, nav.visited())

			cached, ok := cache.Identity()
			assert.True(t, ok)
			assert.Equal(t, previous, cached)
		})
	}
}

func TestSubmit_RejectsConcurrentAttempt(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	client := &fakeClient{identity: newSeeker, resolveGate: gate}
	orch, cache, nav := setup(client, time.Second)

	type result struct {
		dest domain.Destination
		err  error
	}

	done := make(chan result, 1)
	go func() {
		dest, err := orch.Submit(context.Background(), goodCreds)
		done <- result{dest, err}
	}()

	require.Eventually(t, func() bool { return orch.State() == login.StateResolving },
		time.Second, time.Millisecond)

	_, err := orch.Submit(context.Background(), goodCreds)
	assert.ErrorIs(t, err, login.ErrLoginInProgress)

	_, err = orch.Bootstrap(context.Background())
	assert.ErrorIs(t, err, login.ErrLoginInProgress)

	loginCalls, resolveCalls := client.calls()
	assert.Equal(t, 1, loginCalls)
	assert.Equal(t, 1, resolveCalls)

	close(gate)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, domain.DestinationUserOnboarding, res.dest)
	assert.Len(t, nav.visited(), 1)

	cached, _ := cache.Identity()
	assert.Equal(t, newSeeker, cached)
}

func TestSubmit_NoticeClearsAfterDelay(t *testing.T) {
	t.Parallel()

	client := &fakeClient{loginErr: errors.New("connection refused")}
	orch, _, _ := setup(client, 200*time.Millisecond)

	_, err := orch.Submit(context.Background(), goodCreds)

	var loginErr *login.Error
	require.True(t, errors.As(err, &loginErr))
	require.Equal(t, login.KindServerUnavailable, loginErr.Kind)

	first, ok := orch.Notice()
	require.True(t, ok)
	second, ok := orch.Notice()
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, login.MessageServerUnavailable, first.Message)
	assert.Equal(t, login.StateFailed, orch.State())

	assert.Eventually(t, func() bool {
		_, shown := orch.Notice()

		return !shown && orch.State() == login.StateIdle
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmit_NewAttemptReplacesNotice(t *testing.T) {
	t.Parallel()

	client := &fakeClient{loginErr: &authclient.ResponseError{StatusCode: http.StatusUnauthorized}}
	orch, _, _ := setup(client, time.Minute)

	_, err := orch.Submit(context.Background(), goodCreds)
	require.Error(t, err)

	_, ok := orch.Notice()
	require.True(t, ok)

	client.mu.Lock()
	client.loginErr = nil
	client.identity = newSeeker
	client.mu.Unlock()

	_, err = orch.Submit(context.Background(), goodCreds)
	require.NoError(t, err)

	_, ok = orch.Notice()
	assert.False(t, ok)
	assert.Equal(t, login.StateRouted, orch.State())
}

func TestCancel_DiscardsInFlightAttempt(t *testing.T) {
	t.Parallel()

	client := &fakeClient{identity: newSeeker, loginGate: make(chan struct{})}
	orch, cache, nav := setup(client, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Submit(context.Background(), goodCreds)
		done <- err
	}()

	require.Eventually(t, func() bool { return orch.State() == login.StateValidating },
		time.Second, time.Millisecond)

	orch.Cancel()

	assert.ErrorIs(t, <-done, login.ErrAttemptSuperseded)
	assert.Equal(t, login.StateIdle, orch.State())
	assert.Empty(t, nav.visited())

	_, resolveCalls := client.calls()
	assert.Zero(t, resolveCalls)

	cached, _ := cache.Identity()
	assert.Equal(t, previous, cached)
}

func TestCancel_DiscardsLateIdentity(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	client := &fakeClient{identity: newSeeker, resolveGate: gate}
	orch, cache, nav := setup(client, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Submit(context.Background(), goodCreds)
		done <- err
	}()

	require.Eventually(t, func() bool { return orch.State() == login.StateResolving },
		time.Second, time.Millisecond)

	orch.Cancel()
	close(gate)

	assert.ErrorIs(t, <-done, login.ErrAttemptSuperseded)
	assert.Empty(t, nav.visited())

	cached, _ := cache.Identity()
	assert.Equal(t, previous, cached)
}

func TestBootstrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		identity   domain.Identity
		err        error
		wantKind   login.Kind
		wantCached *domain.Identity
	}{
		{name: "resolved", identity: newSeeker, wantCached: &newSeeker},
		{
			name:     "unauthenticated",
			err:      &authclient.ResponseError{StatusCode: http.StatusUnauthorized},
			wantKind: login.KindUnauthenticated,
		},
		{
			name:       "server unavailable",
			err:        errors.New("connection refused"),
			wantKind:   login.KindServerUnavailable,
			wantCached: &previous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeClient{identity: tt.identity, currentUserErr: tt.err}
			orch, cache, nav := setup(client, time.Second)

			_, err := orch.Bootstrap(context.Background())
			if tt.wantKind == 0 {
				require.NoError(t, err)
			} else {
				var loginErr *login.Error
				require.True(t, errors.As(err, &loginErr))
				assert.Equal(t, tt.wantKind, loginErr.Kind)
			}

			cached, ok := cache.Identity()
			if tt.wantCached == nil {
				assert.False(t, ok)
			} else {
				assert.Equal(t, *tt.wantCached, cached)
			}

			assert.Empty(t, nav.visited())
		})
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	t.Run("clears cache", func(t *testing.T) {
		t.Parallel()

		orch, cache, _ := setup(&fakeClient{}, time.Second)

		require.NoError(t, orch.Logout(context.Background()))

		_, ok := cache.Identity()
		assert.False(t, ok)
	})

	t.Run("session already gone", func(t *testing.T) {
		t.Parallel()

		orch, cache, _ := setup(&fakeClient{
			logoutErr: &authclient.ResponseError{StatusCode: http.StatusUnauthorized},
		}, time.Second)

		require.NoError(t, orch.Logout(context.Background()))

		_, ok := cache.Identity()
		assert.False(t, ok)
	})

	t.Run("server unavailable keeps cache", func(t *testing.T) {
		t.Parallel()

		orch, cache, _ := setup(&fakeClient{logoutErr: errors.New("connection refused")}, time.Second)

		err := orch.Logout(context.Background())

		var loginErr *login.Error
		require.True(t, errors.As(err, &loginErr))
		assert.Equal(t, login.KindServerUnavailable, loginErr.Kind)

		_, ok := cache.Identity()
		assert.True(t, ok)
	})
}

func TestLogout_BlocksSubmitWhilePending(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	client := &fakeClient{
		identity:   domain.Identity{ID: "u2", Role: domain.RoleEmployer},
		logoutGate: gate,
	}
	orch, cache, nav := setup(client, time.Second)

	done := make(chan error, 1)
	go func() { done <- orch.Logout(context.Background()) }()

	require.Eventually(t, func() bool { return orch.State() == login.StateLoggingOut },
		time.Second, time.Millisecond)

	_, err := orch.Submit(context.Background(), goodCreds)
	require.ErrorIs(t, err, login.ErrLoginInProgress)

	_, err = orch.Bootstrap(context.Background())
	require.ErrorIs(t, err, login.ErrLoginInProgress)

	require.ErrorIs(t, orch.Logout(context.Background()), login.ErrLoginInProgress)

	loginCalls, resolveCalls := client.calls()
	assert.Zero(t, loginCalls)
	assert.Zero(t, resolveCalls)

	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, login.StateIdle, orch.State())
	assert.Empty(t, nav.visited())

	_, ok := cache.Identity()
	assert.False(t, ok)

	// a login after the logout completes sticks
	dest, err := orch.Submit(context.Background(), goodCreds)
	require.NoError(t, err)
	assert.Equal(t, domain.DestinationCompanyOnboarding, dest)

	cached, ok := cache.Identity()
	require.True(t, ok)
	assert.Equal(t, "u2", cached.ID)
}

func TestLogout_CancelledWhilePendingKeepsCache(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	orch, cache, _ := setup(&fakeClient{logoutGate: gate}, time.Second)

	done := make(chan error, 1)
	go func() { done <- orch.Logout(context.Background()) }()

	require.Eventually(t, func() bool { return orch.State() == login.StateLoggingOut },
		time.Second, time.Millisecond)

	orch.Cancel()
	close(gate)

	require.ErrorIs(t, <-done, login.ErrAttemptSuperseded)
	assert.Equal(t, login.StateIdle, orch.State())

	cached, ok := cache.Identity()
	require.True(t, ok)
	assert.Equal(t, previous, cached)
}

func TestSubmit_LogsUnroutableIdentity(t *testing.T) {
	t.Parallel()

	client := &fakeClient{identity: domain.Identity{ID: "u9", Role: domain.Role("admin")}}
	orch, _, _ := setup(client, time.Second)

	var buf bytes.Buffer
	login.SetLogger(orch, slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	_, err := orch.Submit(context.Background(), goodCreds)

	var loginErr *login.Error
	require.ErrorAs(t, err, &loginErr)
	assert.Equal(t, login.KindUnroutableIdentity, loginErr.Kind)

	var found bool

	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var record map[string]any
		require.NoError(t, json.Unmarshal(line, &record))

		if record["msg"] == "identity cannot be routed" {
			found = true

			assert.Equal(t, "ERROR", record["level"])
			assert.Contains(t, record["error"], "admin")
		}
	}

	assert.True(t, found, "no error record for the unroutable identity")
}
