// Package guard decides whether a proposed mutation of a resource may change
// its protected fields, given the caller's roles. Policies are declared
// statically per resource type; there is no reflection at evaluation time.
package guard

import (
	"fmt"
	"strings"

	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/shared"
)

// Forbidden is the sentinel role list for fields that can never be changed
// through the guard, such as identifiers. An empty role list rejects every
// caller, which is exactly the forbidden semantics.
var Forbidden []auth.Role

// Rule protects one field of a resource type. Changed reports whether the
// field's value differs between the two snapshots; value equality, not
// identity, is the contract.
type Rule[T any] struct {
	// Field names the protected field in rejections.
	Field string
	// Roles that are each independently sufficient to authorize a change.
	Roles []auth.Role
	// Changed compares the field between original and proposed.
	Changed func(original, proposed T) bool
}

// Policy is the statically declared protected-field table for one resource
// type. Fields without a rule carry no restriction.
type Policy[T any] []Rule[T]

// ForbiddenFieldsError reports every protected field the caller may not
// change. It matches shared.ErrUpdateForbidden under errors.Is.
type ForbiddenFieldsError struct {
	Fields []string
}

// Error implements error.
func (e *ForbiddenFieldsError) Error() string {
	return fmt.Sprintf("update forbidden: field(s) %s", strings.Join(e.Fields, ", "))
}

// Is reports a match against shared.ErrUpdateForbidden.
func (e *ForbiddenFieldsError) Is(target error) bool {
	return target == shared.ErrUpdateForbidden
}

// FieldNames returns the violating field names for response bodies.
func (e *ForbiddenFieldsError) FieldNames() []string {
	return e.Fields
}

// CanApply decides field-by-field whether the proposed snapshot may replace
// the original. A nil original is a creation and is never blocked. Every
// protected field is evaluated; the rejection names the full set of
// violating fields.
func (p Policy[T]) CanApply(original *T, proposed T, roles auth.RoleSet) error {
	if original == nil {
		return nil
	}
	var violations []string
	for _, rule := range p {
		if rule.Changed == nil || !rule.Changed(*original, proposed) {
			continue
		}
		if !sufficient(rule.Roles, roles) {
			violations = append(violations, rule.Field)
		}
	}
	if len(violations) > 0 {
		return &ForbiddenFieldsError{Fields: violations}
	}
	return nil
}

// CanUpdate is the strict creation variant: with no original to compare
// against, the write is always approved.
func (p Policy[T]) CanUpdate(proposed T, roles auth.RoleSet) error {
	return p.CanApply(nil, proposed, roles)
}

func sufficient(allowed []auth.Role, held auth.RoleSet) bool {
	for _, r := range allowed {
		if held.Has(r) {
			return true
		}
	}
	return false
}
