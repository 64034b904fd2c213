package auth

import "time"

// Role is a coarse authority granted to a principal. Role names double as
// security identities in ACL entries.
type Role string

const (
	// RoleUser is the default role granted on registration.
	RoleUser Role = "ROLE_USER"
	// RoleAdministrator grants access to account and ACL administration.
	RoleAdministrator Role = "ROLE_ADMINISTRATOR"
	// RoleInactive is the sentinel role carried by deactivated accounts.
	RoleInactive Role = "ROLE_INACTIVE"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdministrator, RoleInactive:
		return true
	}
	return false
}

// RoleSet is a set of roles keyed for membership checks.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports whether the set contains r.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// HasAny reports whether the set contains at least one of the given roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Principal represents an account that can authenticate and hold authorities.
type Principal struct {
	ID             int64
	Username       string
	FirstName      string
	LastName       string
	Email          string
	PasswordHash   string
	Roles          []Role
	Groups         []string
	Active         bool
	Locked         bool
	LockedUntil    time.Time
	FailedAttempts int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasRole reports whether the principal holds the given role.
func (p *Principal) HasRole(r Role) bool {
	for _, held := range p.Roles {
		if held == r {
			return true
		}
	}
	return false
}

// RoleSet returns the principal's roles as a set.
func (p *Principal) RoleSet() RoleSet {
	return NewRoleSet(p.Roles...)
}

// InGroup reports whether the principal belongs to the named group.
func (p *Principal) InGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// LockActive reports whether a lockout window is in effect at the given time.
// The stored flag alone is not authoritative: a lock expires by the passage
// of LockedUntil even before the sweep job clears it.
func (p *Principal) LockActive(now time.Time) bool {
	return p.Locked && now.Before(p.LockedUntil)
}
