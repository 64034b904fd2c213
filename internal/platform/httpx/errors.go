// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/sentra-id/sentra/internal/shared"
)

// ErrValidation marks request payloads that failed validation.
var ErrValidation = errors.New("validation failed")

// RespondError maps decision-core errors to HTTP responses using RFC7807.
// InvalidCredentials and AccountLocked share one uniform 401 body so callers
// cannot probe account state.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrAccountLocked):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	case errors.Is(err, shared.ErrInvalidToken):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
	case errors.Is(err, shared.ErrUpdateForbidden):
		var fielded interface{ FieldNames() []string }
		if errors.As(err, &fielded) {
			ProblemWithFields(w, http.StatusForbidden, "Update Forbidden", err.Error(), fielded.FieldNames())
			return
		}
		Problem(w, http.StatusForbidden, "Update Forbidden", err.Error())
	case errors.Is(err, shared.ErrAccessDenied):
		Problem(w, http.StatusForbidden, "Forbidden", "access denied")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
