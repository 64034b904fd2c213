package principals

import (
	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/guard"
)

// principalPolicy is the protected-field table for principal updates.
// Username is the stored identity key and is immutable post-creation; the
// authority-bearing fields require the administrator role.
var principalPolicy = guard.Policy[auth.Principal]{
	{
		Field: "username",
		Roles: guard.Forbidden,
		Changed: func(o, p auth.Principal) bool {
			return o.Username != p.Username
		},
	},
	{
		Field: "roles",
		Roles: []auth.Role{auth.RoleAdministrator},
		Changed: func(o, p auth.Principal) bool {
			return !equalRoles(o.Roles, p.Roles)
		},
	},
	{
		Field: "active",
		Roles: []auth.Role{auth.RoleAdministrator},
		Changed: func(o, p auth.Principal) bool {
			return o.Active != p.Active
		},
	},
	{
		Field: "groups",
		Roles: []auth.Role{auth.RoleAdministrator},
		Changed: func(o, p auth.Principal) bool {
			return !equalStrings(o.Groups, p.Groups)
		},
	},
}

func equalRoles(a, b []auth.Role) bool {
	if len(a) != len(b) {
		return false
	}
	set := auth.NewRoleSet(a...)
	for _, r := range b {
		if !set.Has(r) {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
