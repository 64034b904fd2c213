package acl

import (
	"fmt"
	"strings"

	"github.com/sentra-id/sentra/internal/auth"
)

// Permission is the ordered hierarchy of operations on a securable resource.
// The ordinal is the canonical representation; the legacy bitmask view exists
// only at the compatibility boundary via Mask and PermissionFromMask.
type Permission uint8

const (
	PermissionRead Permission = iota
	PermissionWrite
	PermissionDelete
	PermissionAdministrate
)

var permissionNames = [...]string{"READ", "WRITE", "DELETE", "ADMINISTRATE"}

// String returns the wire name of the permission.
func (p Permission) String() string {
	if int(p) < len(permissionNames) {
		return permissionNames[p]
	}
	return fmt.Sprintf("PERMISSION(%d)", uint8(p))
}

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	return p <= PermissionAdministrate
}

// Mask returns the legacy bit-flag encoding used by peer implementations.
func (p Permission) Mask() uint32 {
	return 1 << uint32(p)
}

// ParsePermission converts a wire name into a Permission.
func ParsePermission(name string) (Permission, error) {
	for i, n := range permissionNames {
		if strings.EqualFold(name, n) {
			return Permission(i), nil
		}
	}
	return 0, fmt.Errorf("acl: unknown permission %q", name)
}

// PermissionFromMask converts a single legacy bit flag into a Permission.
func PermissionFromMask(mask uint32) (Permission, error) {
	for p := PermissionRead; p <= PermissionAdministrate; p++ {
		if p.Mask() == mask {
			return p, nil
		}
	}
	return 0, fmt.Errorf("acl: unknown permission mask %#x", mask)
}

// AtLeast expands "p or higher" into the explicit exact-match set the
// evaluator requires. Evaluation never does implied-permission comparisons;
// callers wanting "write or higher" pass AtLeast(PermissionWrite).
func AtLeast(p Permission) []Permission {
	perms := make([]Permission, 0, PermissionAdministrate-p+1)
	for q := p; q <= PermissionAdministrate; q++ {
		perms = append(perms, q)
	}
	return perms
}

// SID is a security identity: a principal username or a role name.
type SID string

// PrincipalSID names a principal as an ACE subject.
func PrincipalSID(username string) SID {
	return SID(username)
}

// RoleSID names a role as an ACE subject.
func RoleSID(r auth.Role) SID {
	return SID(r)
}

// SIDsFor resolves a principal to its own SID plus one SID per held role.
func SIDsFor(username string, roles []auth.Role) []SID {
	sids := make([]SID, 0, len(roles)+1)
	if username != "" {
		sids = append(sids, PrincipalSID(username))
	}
	for _, r := range roles {
		sids = append(sids, RoleSID(r))
	}
	return sids
}

// ObjectIdentity is the stable (type, id) key naming a securable resource
// instance.
type ObjectIdentity struct {
	Type string
	ID   string
}

// String renders the identity as "type:id".
func (o ObjectIdentity) String() string {
	return o.Type + ":" + o.ID
}

// Zero reports whether the identity is empty.
func (o ObjectIdentity) Zero() bool {
	return o.Type == "" && o.ID == ""
}

// Entry is one (position, permission, sid, granting) rule within an ACL.
// Position defines evaluation order and is unique within the owning list.
type Entry struct {
	ID         int64
	Position   int
	Permission Permission
	SID        SID
	Granting   bool
}

// ACL is the ordered rule list for one object, with optional parent
// inheritance.
type ACL struct {
	ID      int64
	Object  ObjectIdentity
	Entries []Entry // ascending position
	Parent  *ACL
	// InheritParent controls whether the parent chain is consulted when no
	// local entry applies.
	InheritParent bool
}
