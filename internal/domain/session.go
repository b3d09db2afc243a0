package domain

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnauthenticated is returned when a request carries no usable session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidSessionToken is returned when a session cookie fails signature or expiry checks.
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// Session is the server-side record a session cookie refers to.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
