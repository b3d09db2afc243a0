package user

import (
	"context"

	"github.com/mkrupp/jobhunter/internal/domain"
)

// Repository defines the interface for user data persistence.
type Repository interface {
	// CreateUser adds a new user to the repository.
	// Returns ErrUserAlreadyExists if the email is already taken.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUserByEmail retrieves a user by their (lowercased) email.
	// Returns the user object and true if found, or nil and false if not found.
	// Returns an error if the operation fails.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error)

	// GetUserByID retrieves a user by id with the same contract as GetUserByEmail.
	GetUserByID(ctx context.Context, id string) (*domain.User, bool, error)

	// SetOnboardingDone updates the onboarding flag of a user.
	// Returns ErrUserNotFound if no such user exists.
	SetOnboardingDone(ctx context.Context, id string, done bool) error

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)
