package domain

// Destination is a client route the user lands on after login.
type Destination string

const (
	DestinationHome              Destination = "/"
	DestinationUserOnboarding    Destination = "/user-onboarding"
	DestinationEmployerDashboard Destination = "/dashboard/home"
	DestinationCompanyOnboarding Destination = "/company-onboarding"
)

func (d Destination) String() string {
	return string(d)
}
