package domain

import "errors"

// ErrValidation is returned when submitted input is malformed.
var ErrValidation = errors.New("validation failed")

// Credentials is a login submission. It is never persisted.
type Credentials struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// Registration is a sign-up submission.
type Registration struct {
	Email    string `json:"email"              validate:"required,email"`
	Password string `json:"password"           validate:"required,min=8,max=72"`
	Role     Role   `json:"role"               validate:"required,oneof=jobSeeker employer"`
	FullName string `json:"fullName,omitempty" validate:"max=120"`
}
