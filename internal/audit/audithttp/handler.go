package audithttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sentra-id/sentra/internal/audit"
	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/platform/httpx"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	logger  *slog.Logger
	service *audit.Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *audit.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router, mw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Use(mw.RequireRoles(auth.RoleAdministrator))
		r.Get("/", h.list)
	})
}

type entryResponse struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	Actor      string    `json:"actor,omitempty"`
	Action     string    `json:"action"`
	ObjectType string    `json:"objectType,omitempty"`
	ObjectID   string    `json:"objectId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Actor:  r.URL.Query().Get("actor"),
		Action: r.URL.Query().Get("action"),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err == nil {
			filter.Since = since
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list audit entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, len(entries))
	for i, entry := range entries {
		out[i] = entryResponse{
			ID:         entry.ID,
			OccurredAt: entry.OccurredAt,
			Actor:      entry.Actor,
			Action:     entry.Action,
			ObjectType: entry.ObjectType,
			ObjectID:   entry.ObjectID,
			Detail:     entry.Detail,
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}
