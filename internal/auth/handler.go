package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-id/sentra/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. The credential
// endpoint carries its own tighter per-IP rate limit on top of the global
// one; the lockout counter is the durable throttle, this just blunts
// high-volume spraying.
func (h *Handler) MountRoutes(r chi.Router, mw Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/authenticate", h.authenticate)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Get("/account", h.account)
	})
}

type authenticateRequest struct {
	Username    string `json:"username" validate:"required,min=1,max=100"`
	Password    string `json:"password" validate:"required,min=4,max=128"`
	ActiveGroup string `json:"activeGroup" validate:"omitempty,max=100"`
}

type authenticateResponse struct {
	IDToken string `json:"id_token"`
}

type accountResponse struct {
	Username    string   `json:"username"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Email       string   `json:"email,omitempty"`
	ActiveGroup string   `json:"activeGroup,omitempty"`
	Roles       []string `json:"roles"`
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	principal, err := h.service.AuthenticateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, err := h.service.IssueToken(principal, req.ActiveGroup)
	if err != nil {
		h.logger.Error("issue token", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, authenticateResponse{IDToken: token})
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	roles := make([]string, len(claims.Roles))
	for i, role := range claims.Roles {
		roles[i] = string(role)
	}
	httpx.JSON(w, http.StatusOK, accountResponse{
		Username:    claims.Username(),
		FirstName:   claims.FirstName,
		LastName:    claims.LastName,
		Email:       claims.Email,
		ActiveGroup: claims.ActiveGroup,
		Roles:       roles,
	})
}
