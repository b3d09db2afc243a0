// Package onboarding decides where a user lands after logging in.
package onboarding

import (
	"errors"
	"fmt"

	"github.com/mkrupp/jobhunter/internal/domain"
)

// ErrUnroutableIdentity is returned for identities outside the routing table.
var ErrUnroutableIdentity = errors.New("unroutable identity")

type routeKey struct {
	role           domain.Role
	doneOnboarding bool
}

//nolint:gochecknoglobals
var routes = map[routeKey]domain.Destination{
	{domain.RoleJobSeeker, true}:  domain.DestinationHome,
	{domain.RoleJobSeeker, false}: domain.DestinationUserOnboarding,
	{domain.RoleEmployer, true}:   domain.DestinationEmployerDashboard,
	{domain.RoleEmployer, false}:  domain.DestinationCompanyOnboarding,
}

// Route maps (role, doneOnboarding) to a destination. Unknown roles are an
// error, never a default route.
func Route(identity domain.Identity) (domain.Destination, error) {
	dest, ok := routes[routeKey{identity.Role, identity.UserProfile.DoneOnboarding}]
	if !ok {
		return "", fmt.Errorf("%w: role %q", ErrUnroutableIdentity, identity.Role)
	}

	return dest, nil
}
