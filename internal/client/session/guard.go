package session

// Area is a part of the client the route gate controls.
type Area int

const (
	// AreaPublic needs no decision: share-link downloads, stats, help.
	AreaPublic Area = iota
	// AreaLogin covers login and registration.
	AreaLogin
	// AreaDashboard covers everything that acts on the user's uploads.
	AreaDashboard
)

func (a Area) String() string {
	switch a {
	case AreaLogin:
		return "login"
	case AreaDashboard:
		return "dashboard"
	default:
		return "public"
	}
}

// Guard returns the area a request for area should land in. The dashboard
// without a credential goes to login; login with a credential goes to the
// dashboard. It only looks at the credential, not at the session status.
func Guard(area Area, hasCredential bool) Area {
	switch {
	case area == AreaDashboard && !hasCredential:
		return AreaLogin
	case area == AreaLogin && hasCredential:
		return AreaDashboard
	default:
		return area
	}
}
