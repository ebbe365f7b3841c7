package domain

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleTeller  Role = "teller"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTeller:
		return true
	default:
		return false
	}
}

// HasRole reports whether profile grants exactly role. A nil profile grants
// nothing.
func HasRole(profile *Profile, role Role) bool {
	if profile == nil || !role.Valid() {
		return false
	}
	return profile.Role == role
}
