package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. Unknown username,
	// disabled account and wrong secret all surface as this error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates an active lockout window. Mapped to the
	// same external signal as ErrInvalidCredentials but logged distinctly.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidToken indicates a token that failed signature, format or
	// expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAccessDenied indicates an ACL evaluation denied the operation,
	// including the no-applicable-entry case.
	ErrAccessDenied = errors.New("access denied")
	// ErrUpdateForbidden indicates a protected field was changed without a
	// sufficient role.
	ErrUpdateForbidden = errors.New("update forbidden")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrConflict indicates a state transition that is not permitted, such
	// as deleting an account that is still active.
	ErrConflict = errors.New("conflict")
)
