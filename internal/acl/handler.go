package acl

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/platform/httpx"
)

// Handler exposes ACL checks and administrative mutations.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ACL routes. Checks are open to any authenticated
// caller; mutations require the administrator role.
func (h *Handler) MountRoutes(r chi.Router, mw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/check", h.check)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Use(mw.RequireRoles(auth.RoleAdministrator))
		r.Get("/{type}/{id}", h.read)
		r.Post("/", h.create)
		r.Put("/{type}/{id}", h.update)
		r.Post("/{type}/{id}/entries", h.insertEntry)
		r.Put("/{type}/{id}/entries/{position}", h.updateEntry)
		r.Delete("/{type}/{id}/entries/{position}", h.deleteEntry)
	})
}

type entryPayload struct {
	Position   int    `json:"position" validate:"min=0"`
	Permission string `json:"permission" validate:"required"`
	SID        string `json:"sid" validate:"required"`
	Granting   bool   `json:"granting"`
}

type aclPayload struct {
	ObjectType    string         `json:"objectType" validate:"required,max=100"`
	ObjectID      string         `json:"objectId" validate:"required,max=100"`
	ParentType    string         `json:"parentType" validate:"omitempty,max=100"`
	ParentID      string         `json:"parentId" validate:"omitempty,max=100"`
	InheritParent bool           `json:"inheritParent"`
	Entries       []entryPayload `json:"entries" validate:"dive"`
}

type checkRequest struct {
	ObjectType  string   `json:"objectType" validate:"required,max=100"`
	ObjectID    string   `json:"objectId" validate:"required,max=100"`
	Permissions []string `json:"permissions" validate:"omitempty,min=1,dive,required"`
	// AtLeast expands into the exact-match set for that permission and
	// every stronger one. Mutually exclusive with Permissions.
	AtLeast string `json:"atLeast" validate:"omitempty"`
}

type checkResponse struct {
	Granted bool `json:"granted"`
}

type aclResponse struct {
	ObjectType    string         `json:"objectType"`
	ObjectID      string         `json:"objectId"`
	InheritParent bool           `json:"inheritParent"`
	Entries       []entryPayload `json:"entries"`
	Parent        *aclResponse   `json:"parent,omitempty"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	required, err := requiredPermissions(req)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	claims := auth.ClaimsFromContext(r.Context())
	object := ObjectIdentity{Type: req.ObjectType, ID: req.ObjectID}
	granted, err := h.service.Check(r.Context(), object, required, claims.Username(), claims.Roles, false)
	if err != nil {
		h.logger.Error("acl check", slog.String("object", object.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkResponse{Granted: granted})
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request) {
	object := objectFromURL(r)
	list, err := h.service.ReadACL(r.Context(), object)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toACLResponse(list))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	node, ok := h.decodeACL(w, r)
	if !ok {
		return
	}
	if err := h.service.CreateACL(r.Context(), node); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"object": node.Object.String()})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	node, ok := h.decodeACL(w, r)
	if !ok {
		return
	}
	node.Object = objectFromURL(r)
	if err := h.service.UpdateACL(r.Context(), node); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) insertEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	if err := h.service.InsertEntry(r.Context(), objectFromURL(r), entry); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int{"position": entry.Position})
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: bad position", httpx.ErrValidation))
		return
	}
	entry.Position = position
	if err := h.service.UpdateEntry(r.Context(), objectFromURL(r), entry); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: bad position", httpx.ErrValidation))
		return
	}
	if err := h.service.DeleteEntry(r.Context(), objectFromURL(r), position); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodeACL(w http.ResponseWriter, r *http.Request) (Node, bool) {
	var payload aclPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return Node{}, false
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return Node{}, false
	}
	node := Node{
		Object:        ObjectIdentity{Type: payload.ObjectType, ID: payload.ObjectID},
		InheritParent: payload.InheritParent,
	}
	if payload.ParentType != "" || payload.ParentID != "" {
		node.Parent = &ObjectIdentity{Type: payload.ParentType, ID: payload.ParentID}
	}
	for _, p := range payload.Entries {
		entry, err := toEntry(p)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
			return Node{}, false
		}
		node.Entries = append(node.Entries, entry)
	}
	return node, true
}

func (h *Handler) decodeEntry(w http.ResponseWriter, r *http.Request) (Entry, bool) {
	var payload entryPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return Entry{}, false
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return Entry{}, false
	}
	entry, err := toEntry(payload)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return Entry{}, false
	}
	return entry, true
}

func requiredPermissions(req checkRequest) ([]Permission, error) {
	if req.AtLeast != "" {
		if len(req.Permissions) > 0 {
			return nil, fmt.Errorf("permissions and atLeast are mutually exclusive")
		}
		p, err := ParsePermission(req.AtLeast)
		if err != nil {
			return nil, err
		}
		return AtLeast(p), nil
	}
	if len(req.Permissions) == 0 {
		return nil, fmt.Errorf("permissions or atLeast is required")
	}
	perms := make([]Permission, 0, len(req.Permissions))
	for _, name := range req.Permissions {
		p, err := ParsePermission(name)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, nil
}

func toEntry(p entryPayload) (Entry, error) {
	permission, err := ParsePermission(p.Permission)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Position:   p.Position,
		Permission: permission,
		SID:        SID(p.SID),
		Granting:   p.Granting,
	}, nil
}

func toACLResponse(list *ACL) *aclResponse {
	if list == nil {
		return nil
	}
	resp := &aclResponse{
		ObjectType:    list.Object.Type,
		ObjectID:      list.Object.ID,
		InheritParent: list.InheritParent,
		Parent:        toACLResponse(list.Parent),
	}
	for _, entry := range list.Entries {
		resp.Entries = append(resp.Entries, entryPayload{
			Position:   entry.Position,
			Permission: entry.Permission.String(),
			SID:        string(entry.SID),
			Granting:   entry.Granting,
		})
	}
	return resp
}

func objectFromURL(r *http.Request) ObjectIdentity {
	return ObjectIdentity{
		Type: chi.URLParam(r, "type"),
		ID:   chi.URLParam(r, "id"),
	}
}
