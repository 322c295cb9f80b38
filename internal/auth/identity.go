package auth

import "strings"

// Role is the authorization level of an account.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleUser      Role = "USER"
)

// ParseRole validates s against the known roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return r, true
	}
	return "", false
}

// IsStaff reports whether the role may triage reports.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleModerator
}

// Identity is the authenticated caller of a request.
type Identity struct {
	ID          int64
	Email       string
	DisplayName string
	Role        Role
}

func (i *Identity) IsStaff() bool {
	return i != nil && i.Role.IsStaff()
}

// HasRole reports whether the identity holds any of roles.
func (i *Identity) HasRole(roles ...Role) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
