package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/jobhunter/internal/client/onboarding"
	"github.com/mkrupp/jobhunter/internal/domain"
	"github.com/mkrupp/jobhunter/internal/infra/validate"
	"github.com/mkrupp/jobhunter/internal/svc/authsvc/authclient"
)

var (
	// ErrLoginInProgress is returned when Submit is called while an attempt is in flight.
	ErrLoginInProgress = errors.New("login already in progress")
	// ErrAttemptSuperseded is returned for an attempt that was cancelled or
	// replaced before its responses arrived. Its results are discarded.
	ErrAttemptSuperseded = errors.New("login attempt superseded")
)

// Kind classifies every failure that leaves the orchestrator.
type Kind int

const (
	KindValidationError Kind = iota + 1
	KindInvalidCredentials
	KindUnauthenticated
	KindServerUnavailable
	KindUnroutableIdentity
)

func (k Kind) String() string {
	switch k {
	case KindValidationError:
		return "ValidationError"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindServerUnavailable:
		return "ServerUnavailable"
	case KindUnroutableIdentity:
		return "UnroutableIdentity"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Messages shown to the user for each kind when the server gave none.
const (
	MessageValidation         = "Please check the highlighted fields"
	MessageInvalidCredentials = "Invalid email or password"
	MessageUnauthenticated    = "Your session could not be established, please log in again"
	MessageServerUnavailable  = "Server not responding"
	MessageUnroutable         = "Your account cannot be routed, please contact support"
)

// Error is a classified failure. Message is safe to display; Err keeps the cause.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for KindValidationError.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// step names the network call an error came from.
type step int

const (
	stepValidate step = iota
	stepResolve
)

// classify turns err into exactly one Kind.
func classify(s step, err error) *Error {
	var loginErr *Error
	if errors.As(err, &loginErr) {
		return loginErr
	}

	var fieldErrs *validate.FieldErrors
	if errors.As(err, &fieldErrs) {
		return &Error{Kind: KindValidationError, Message: fieldErrs.Error(), Fields: fieldErrs.Fields, Err: err}
	}

	if errors.Is(err, onboarding.ErrUnroutableIdentity) {
		return &Error{Kind: KindUnroutableIdentity, Message: MessageUnroutable, Err: err}
	}

	var respErr *authclient.ResponseError
	if !errors.As(err, &respErr) {
		return &Error{Kind: KindServerUnavailable, Message: MessageServerUnavailable, Err: err}
	}

	switch {
	case s == stepValidate && respErr.StatusCode == http.StatusBadRequest:
		return &Error{
			Kind:    KindValidationError,
			Message: orDefault(respErr.Message, MessageValidation),
			Fields:  respErr.Fields,
			Err:     errors.Join(domain.ErrValidation, err),
		}
	case s == stepValidate && (respErr.StatusCode == http.StatusUnauthorized ||
		respErr.StatusCode == http.StatusForbidden ||
		respErr.StatusCode == http.StatusNotFound):
		return &Error{
			Kind:    KindInvalidCredentials,
			Message: orDefault(respErr.Message, MessageInvalidCredentials),
			Err:     errors.Join(domain.ErrInvalidCredentials, err),
		}
	case s == stepResolve && respErr.StatusCode == http.StatusUnauthorized:
		return &Error{
			Kind:    KindUnauthenticated,
			Message: MessageUnauthenticated,
			Err:     errors.Join(domain.ErrUnauthenticated, err),
		}
	default:
		return &Error{Kind: KindServerUnavailable, Message: MessageServerUnavailable, Err: err}
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}

// isCancellation reports whether err is the attempt's own context ending.
func isCancellation(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.Canceled) && errors.Is(err, context.Canceled)
}
