package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sentra-id/sentra/internal/platform/httpx"
	"github.com/sentra-id/sentra/internal/shared"
)

// Middleware wires bearer-token authentication for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate requires a valid bearer token and stores its claims in the
// request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httpx.RespondError(w, shared.ErrInvalidToken)
			return
		}
		claims, err := m.Service.Claims(r.Context(), raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Info("bearer token rejected", slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, shared.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireRoles ensures the authenticated caller holds at least one of the
// given roles. Must run after Authenticate.
func (m Middleware) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				httpx.RespondError(w, shared.ErrInvalidToken)
				return
			}
			if len(roles) > 0 && !claims.RoleSet().HasAny(roles...) {
				httpx.RespondError(w, shared.ErrAccessDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
