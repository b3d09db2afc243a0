// Package login sequences a login attempt: credential check, identity
// resolution, session cache update, routing and navigation.
package login

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mkrupp/jobhunter/internal/client/onboarding"
	"github.com/mkrupp/jobhunter/internal/client/sessioncache"
	"github.com/mkrupp/jobhunter/internal/domain"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
	"github.com/mkrupp/jobhunter/internal/infra/validate"
)

// State of the orchestrator.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateValidating
	StateResolving
	StateSyncing
	StateRouted
	StateFailed
	StateLoggingOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSubmitting:
		return "Submitting"
	case StateValidating:
		return "Validating"
	case StateResolving:
		return "Resolving"
	case StateSyncing:
		return "Syncing"
	case StateRouted:
		return "Routed"
	case StateFailed:
		return "Failed"
	case StateLoggingOut:
		return "LoggingOut"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InFlight reports whether s belongs to a running login attempt or logout.
func (s State) InFlight() bool {
	return (s >= StateSubmitting && s <= StateSyncing) || s == StateLoggingOut
}

// Client is the part of the auth API the orchestrator needs.
type Client interface {
	Login(ctx context.Context, creds domain.Credentials) error
	CurrentUser(ctx context.Context) (domain.Identity, error)
	Logout(ctx context.Context) error
}

// Navigator performs the navigation side effect after a successful login.
type Navigator interface {
	Navigate(ctx context.Context, dest domain.Destination)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, dest domain.Destination)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, dest domain.Destination) {
	f(ctx, dest)
}

// Notice is the failure message currently on display. The zero value means none.
type Notice struct {
	Kind    Kind
	Message string
}

// Config holds orchestrator settings.
type Config struct {
	// ErrorClearDelay is how long a failure notice stays before the orchestrator returns to Idle
	ErrorClearDelay time.Duration `env:"ERROR_CLEAR_DELAY" default:"5s"`
}

// DefaultErrorClearDelay is used when Config.ErrorClearDelay is not positive.
const DefaultErrorClearDelay = 5 * time.Second

// Orchestrator runs one login attempt at a time.
//
// Each attempt gets an id. Responses are applied only while their attempt is
// still the current one, so a cancelled or superseded attempt can never touch
// the cache or navigate.
type Orchestrator struct {
	client     Client
	cache      *sessioncache.Cache
	nav        Navigator
	validator  *validate.Validator
	log        logging.Logger
	clearDelay time.Duration

	mu           sync.Mutex
	state        State
	attempt      uint64
	cancel       context.CancelFunc
	notice       Notice
	clearTimer   *time.Timer
	onTransition func(from, to State)
}

// New creates an Orchestrator in state Idle.
func New(client Client, cache *sessioncache.Cache, nav Navigator, cfg Config) *Orchestrator {
	clearDelay := cfg.ErrorClearDelay
	if clearDelay <= 0 {
		clearDelay = DefaultErrorClearDelay
	}

	//nolint:exhaustruct
	return &Orchestrator{
		client:     client,
		cache:      cache,
		nav:        nav,
		validator:  validate.New(),
		log:        logging.GetLogger("client.login.orchestrator"),
		clearDelay: clearDelay,
		state:      StateIdle,
	}
}

// OnTransition registers fn to be called on every state change. fn runs with
// the orchestrator locked and must not call back into it.
func (o *Orchestrator) OnTransition(fn func(from, to State)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.onTransition = fn
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Notice returns the failure notice on display, if any.
func (o *Orchestrator) Notice() (Notice, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.notice, o.notice != Notice{}
}

func (o *Orchestrator) setStateLocked(to State) {
	from := o.state
	o.state = to

	if from != to && o.onTransition != nil {
		o.onTransition(from, to)
	}
}

func (o *Orchestrator) stopClearTimerLocked() {
	if o.clearTimer != nil {
		o.clearTimer.Stop()
		o.clearTimer = nil
	}
}

// begin starts a new attempt unless one is already in flight.
func (o *Orchestrator) begin(ctx context.Context) (uint64, context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.InFlight() {
		return 0, nil, ErrLoginInProgress
	}

	o.stopClearTimerLocked()
	o.notice = Notice{}

	o.attempt++

	attemptCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.setStateLocked(StateSubmitting)

	return o.attempt, attemptCtx, nil
}

// advance moves attempt id to state to. It reports false if id is stale.
func (o *Orchestrator) advance(id uint64, to State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		return false
	}

	o.setStateLocked(to)

	return true
}

// Submit runs a full login attempt and returns where the user was sent.
// Failures are returned as *Error. A concurrent call while an attempt is in
// flight returns ErrLoginInProgress without any network call.
func (o *Orchestrator) Submit(ctx context.Context, creds domain.Credentials) (_ domain.Destination, err error) {
	id, attemptCtx, err := o.begin(ctx)
	if err != nil {
		return "", err
	}

	log := o.log.With("attempt", id)

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "login attempt failed", "error", err)
		} else {
			log.DebugContext(ctx, "login attempt routed")
		}
	}()

	creds.Email = strings.TrimSpace(creds.Email)

	if err := o.validator.Struct(creds); err != nil {
		return "", o.fail(attemptCtx, id, stepValidate, err)
	}

	if !o.advance(id, StateValidating) {
		return "", ErrAttemptSuperseded
	}

	if err := o.client.Login(attemptCtx, creds); err != nil {
		return "", o.fail(attemptCtx, id, stepValidate, err)
	}

	if !o.advance(id, StateResolving) {
		return "", ErrAttemptSuperseded
	}

	identity, err := o.client.CurrentUser(attemptCtx)
	if err != nil {
		return "", o.fail(attemptCtx, id, stepResolve, err)
	}

	if !o.advance(id, StateSyncing) {
		return "", ErrAttemptSuperseded
	}

	dest, err := onboarding.Route(identity)
	if err != nil {
		return "", o.fail(attemptCtx, id, stepResolve, err)
	}

	if !o.commit(id, identity) {
		return "", ErrAttemptSuperseded
	}

	o.nav.Navigate(ctx, dest)

	return dest, nil
}

// commit replaces the cache and enters Routed if id is still current.
func (o *Orchestrator) commit(id uint64, identity domain.Identity) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		return false
	}

	o.cache.Replace(identity)
	o.setStateLocked(StateRouted)
	o.finishLocked()

	return true
}

func (o *Orchestrator) finishLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// fail records the classified failure for attempt id and arms the notice timer.
func (o *Orchestrator) fail(attemptCtx context.Context, id uint64, s step, cause error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		return ErrAttemptSuperseded
	}

	if isCancellation(attemptCtx, cause) {
		o.finishLocked()
		o.setStateLocked(StateIdle)

		return fmt.Errorf("%w: %w", ErrAttemptSuperseded, cause)
	}

	loginErr := classify(s, cause)

	if loginErr.Kind == KindUnroutableIdentity {
		o.log.ErrorContext(attemptCtx, "identity cannot be routed", "error", cause)
	}

	o.finishLocked()
	o.notice = Notice{Kind: loginErr.Kind, Message: loginErr.Message}
	o.setStateLocked(StateFailed)

	o.stopClearTimerLocked()
	o.clearTimer = time.AfterFunc(o.clearDelay, func() { o.clearNotice(id) })

	return loginErr
}

func (o *Orchestrator) clearNotice(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt || o.state != StateFailed {
		return
	}

	o.notice = Notice{}
	o.clearTimer = nil
	o.setStateLocked(StateIdle)
}

// Cancel abandons the running attempt, if any. Late responses for it are
// discarded and the orchestrator returns to Idle.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.attempt++
	o.finishLocked()
	o.stopClearTimerLocked()
	o.notice = Notice{}
	o.setStateLocked(StateIdle)
}

// Bootstrap re-validates the session at app start. A resolved identity
// replaces the cache and Unauthenticated clears it. Other failures leave the
// cache as it was.
func (o *Orchestrator) Bootstrap(ctx context.Context) (_ domain.Identity, err error) {
	o.mu.Lock()
	if o.state.InFlight() {
		o.mu.Unlock()

		return domain.Identity{}, ErrLoginInProgress
	}
	id := o.attempt
	o.mu.Unlock()

	defer func() {
		if err != nil {
			o.log.DebugContext(ctx, "bootstrap failed", "error", err)
		} else {
			o.log.DebugContext(ctx, "bootstrap done")
		}
	}()

	identity, err := o.client.CurrentUser(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt || o.state.InFlight() {
		return domain.Identity{}, ErrAttemptSuperseded
	}

	if err != nil {
		loginErr := classify(stepResolve, err)
		if loginErr.Kind == KindUnauthenticated {
			o.cache.Clear()
		}

		return domain.Identity{}, loginErr
	}

	o.cache.Replace(identity)

	return identity, nil
}

// Logout ends the server session and clears the cache. A login attempt still
// running is abandoned first. While the logout is pending, Submit and Bootstrap
// return ErrLoginInProgress. If the server already considers the session gone,
// the cache is cleared all the same.
func (o *Orchestrator) Logout(ctx context.Context) (err error) {
	o.mu.Lock()
	if o.state == StateLoggingOut {
		o.mu.Unlock()

		return ErrLoginInProgress
	}

	o.attempt++
	o.finishLocked()
	o.stopClearTimerLocked()
	o.notice = Notice{}

	id := o.attempt
	logoutCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.setStateLocked(StateLoggingOut)
	o.mu.Unlock()

	defer func() {
		if err != nil {
			o.log.ErrorContext(ctx, "logout failed", "error", err)
		} else {
			o.log.DebugContext(ctx, "logged out")
		}
	}()

	callErr := o.client.Logout(logoutCtx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		return ErrAttemptSuperseded
	}

	o.finishLocked()
	o.setStateLocked(StateIdle)

	if callErr != nil {
		loginErr := classify(stepResolve, callErr)
		if loginErr.Kind != KindUnauthenticated {
			return loginErr
		}
	}

	o.cache.Clear()

	return nil
}
