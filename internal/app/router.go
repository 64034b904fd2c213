package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentra-id/sentra/internal/acl"
	"github.com/sentra-id/sentra/internal/audit/audithttp"
	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/observability"
	"github.com/sentra-id/sentra/internal/principals"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Metrics           *observability.Metrics
	AuthMiddleware    auth.Middleware
	AuthHandler       *auth.Handler
	ACLHandler        *acl.Handler
	PrincipalsHandler *principals.Handler
	AuditHandler      *audithttp.Handler
}

// NewRouter assembles the chi router with the full middleware stack.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		p.AuthHandler.MountRoutes(r, p.AuthMiddleware)
		p.PrincipalsHandler.MountPublicRoutes(r)
		p.PrincipalsHandler.MountAccountRoutes(r, p.AuthMiddleware)
		r.Route("/acl", func(r chi.Router) {
			p.ACLHandler.MountRoutes(r, p.AuthMiddleware)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Route("/users", func(r chi.Router) {
				p.PrincipalsHandler.MountAdminRoutes(r, p.AuthMiddleware)
			})
			r.Route("/audit", func(r chi.Router) {
				p.AuditHandler.MountRoutes(r, p.AuthMiddleware)
			})
		})
	})

	return r
}
