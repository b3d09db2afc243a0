package domain

// Role is the account type chosen at registration.
type Role string

const (
	RoleJobSeeker Role = "jobSeeker"
	RoleEmployer  Role = "employer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleJobSeeker || r == RoleEmployer
}

func (r Role) String() string {
	return string(r)
}

// UserProfile holds the profile state relevant to routing.
type UserProfile struct {
	FullName       string `json:"fullName,omitempty"`
	DoneOnboarding bool   `json:"doneOnboarding"`
}

// Identity is the authenticated user as reported by the current-user endpoint.
type Identity struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Role        Role        `json:"role"`
	UserProfile UserProfile `json:"userProfile"`
}
