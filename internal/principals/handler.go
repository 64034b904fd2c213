package principals

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/platform/httpx"
)

// Handler wires account management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountPublicRoutes registers the unauthenticated registration endpoint.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/register", h.register)
}

// MountAccountRoutes registers self-service routes; requires authentication.
func (h *Handler) MountAccountRoutes(r chi.Router, mw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Put("/account", h.updateSelf)
	})
}

// MountAdminRoutes registers administrative routes.
func (h *Handler) MountAdminRoutes(r chi.Router, mw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Use(mw.RequireRoles(auth.RoleAdministrator))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Post("/{id}/deactivate", h.deactivate)
		r.Post("/{id}/unlock", h.unlock)
		r.Delete("/{id}", h.remove)
	})
}

type registerRequest struct {
	Username  string   `json:"username" validate:"required,min=1,max=100"`
	Password  string   `json:"password" validate:"required,min=8,max=128"`
	FirstName string   `json:"firstName" validate:"omitempty,max=100"`
	LastName  string   `json:"lastName" validate:"omitempty,max=100"`
	Email     string   `json:"email" validate:"omitempty,email"`
	Groups    []string `json:"groups" validate:"omitempty,dive,max=100"`
}

type updateRequest struct {
	Username  *string   `json:"username" validate:"omitempty,min=1,max=100"`
	FirstName *string   `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string   `json:"lastName" validate:"omitempty,max=100"`
	Email     *string   `json:"email" validate:"omitempty,email"`
	Groups    *[]string `json:"groups" validate:"omitempty,dive,max=100"`
	Roles     *[]string `json:"roles" validate:"omitempty,dive,required"`
	Active    *bool     `json:"active"`
}

type principalResponse struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	FirstName      string     `json:"firstName,omitempty"`
	LastName       string     `json:"lastName,omitempty"`
	Email          string     `json:"email,omitempty"`
	Roles          []string   `json:"roles"`
	Groups         []string   `json:"groups,omitempty"`
	Active         bool       `json:"active"`
	Locked         bool       `json:"locked"`
	LockedUntil    *time.Time `json:"lockedUntil,omitempty"`
	FailedAttempts int        `json:"failedAttempts"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	created, err := h.service.Register(r.Context(), RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Groups:    req.Groups,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list principals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]principalResponse, len(principals))
	for i := range principals {
		out[i] = toResponse(&principals[i])
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	h.applyUpdate(w, r, id)
}

// updateSelf lets a caller change their own account; the field guard decides
// which changed fields their roles actually permit.
func (h *Handler) updateSelf(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	p, err := h.service.GetByUsername(r.Context(), claims.Username())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.applyUpdate(w, r, p.ID)
}

func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	input := UpdateInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Groups:    req.Groups,
		Active:    req.Active,
	}
	if req.Roles != nil {
		roles := make([]auth.Role, 0, len(*req.Roles))
		for _, name := range *req.Roles {
			role := auth.Role(name)
			if !role.Valid() {
				httpx.RespondError(w, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, name))
				return
			}
			roles = append(roles, role)
		}
		input.Roles = &roles
	}

	claims := auth.ClaimsFromContext(r.Context())
	updated, err := h.service.Update(r.Context(), id, input, claims.RoleSet(), claims.Username())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if h.targetsSelf(w, r, id) {
		return
	}
	p, err := h.service.Deactivate(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	p, err := h.service.Unlock(r.Context(), id, claims.Username())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if h.targetsSelf(w, r, id) {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) targetsSelf(w http.ResponseWriter, r *http.Request, id int64) bool {
	claims := auth.ClaimsFromContext(r.Context())
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return true
	}
	if p.Username == claims.Username() {
		httpx.Problem(w, http.StatusConflict, "Conflict", ErrSelfTarget.Error())
		return true
	}
	return false
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: bad id", httpx.ErrValidation))
		return 0, false
	}
	return id, true
}

func toResponse(p *auth.Principal) principalResponse {
	roles := make([]string, len(p.Roles))
	for i, role := range p.Roles {
		roles[i] = string(role)
	}
	resp := principalResponse{
		ID:             p.ID,
		Username:       p.Username,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Roles:          roles,
		Groups:         p.Groups,
		Active:         p.Active,
		Locked:         p.Locked,
		FailedAttempts: p.FailedAttempts,
	}
	if !p.LockedUntil.IsZero() {
		t := p.LockedUntil
		resp.LockedUntil = &t
	}
	return resp
}
