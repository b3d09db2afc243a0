package domain

import (
	"errors"
	"time"
)

var (
	// ErrUserAlreadyExists is returned when trying to create a user with an existing email.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is the stored account record. Identity is the view of it handed to clients.
type User struct {
	ID             string    // UUIDv7
	Email          string    // Lowercased login email
	PasswordHash   []byte    // bcrypt hash
	Role           Role      // jobSeeker or employer
	FullName       string    // Optional display name
	DoneOnboarding bool      // Set once the role-specific onboarding has been submitted
	CreatedAt      time.Time // Account creation
	UpdatedAt      time.Time // Last profile change
}

// Identity returns the client-facing view of the user.
func (u *User) Identity() Identity {
	return Identity{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
		UserProfile: UserProfile{
			FullName:       u.FullName,
			DoneOnboarding: u.DoneOnboarding,
		},
	}
}
