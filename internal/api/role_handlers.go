package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/filmgate/auth-service/internal/api/helpers"
	"github.com/filmgate/auth-service/internal/rbac"
	"github.com/filmgate/auth-service/internal/storage"
)

// RoleHandlers serves the /roles route group.
type RoleHandlers struct {
	service *rbac.Service
}

func NewRoleHandlers(service *rbac.Service) *RoleHandlers {
	return &RoleHandlers{service: service}
}

type roleView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

func newRoleView(role *storage.Role) roleView {
	permissions := role.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	view := roleView{
		ID:          role.ID,
		Name:        role.Name,
		Permissions: permissions,
		CreatedAt:   role.CreatedAt,
	}
	if role.Description != nil {
		view.Description = *role.Description
	}
	return view
}

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
}

func (req *createRoleRequest) validate() map[string]string {
	fields := make(map[string]string)
	if l := len(req.Name); l < 1 || l > 50 {
		fields["name"] = "Name must be between 1 and 50 characters."
	}
	if len(req.Description) > 255 {
		fields["description"] = "Description must be at most 255 characters."
	}
	for _, p := range req.Permissions {
		if len(p) < 1 || len(p) > 100 {
			fields["permissions"] = "Each permission must be between 1 and 100 characters."
			break
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Create handles POST /roles/.
func (h *RoleHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if fields := req.validate(); fields != nil {
		helpers.RespondFieldErrors(w, http.StatusUnprocessableEntity, fields)
		return
	}

	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleExists) {
			helpers.RespondFieldErrors(w, http.StatusConflict, map[string]string{
				"name": "Role with this name already exists.",
			})
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, newRoleView(role))
}

// List handles GET /roles/.
func (h *RoleHandlers) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	views := make([]roleView, 0, len(roles))
	for i := range roles {
		views = append(views, newRoleView(&roles[i]))
	}
	helpers.RespondJSON(w, http.StatusOK, views)
}

// Get handles GET /roles/{id}.
func (h *RoleHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			helpers.RespondError(w, http.StatusNotFound, "Role not found")
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	helpers.RespondJSON(w, http.StatusOK, newRoleView(role))
}

type updateRoleRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Permissions *[]string `json:"permissions,omitempty"`
}

// Update handles PUT /roles/{id}.
func (h *RoleHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	role, err := h.service.UpdateRole(r.Context(), id, rbac.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrRoleNotFound):
			helpers.RespondError(w, http.StatusNotFound, "Role not found")
		case errors.Is(err, rbac.ErrRoleExists):
			helpers.RespondFieldErrors(w, http.StatusConflict, map[string]string{
				"name": "Role with this name already exists.",
			})
		default:
			helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	helpers.RespondJSON(w, http.StatusOK, newRoleView(role))
}

// Delete handles DELETE /roles/{id}.
func (h *RoleHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			helpers.RespondError(w, http.StatusNotFound, "Role not found")
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Assign handles POST /roles/{role_id}/assign/{user_id}.
func (h *RoleHandlers) Assign(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathUUID(w, r, "role_id")
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.service.AssignRole(r.Context(), userID, roleID); err != nil {
		switch {
		case errors.Is(err, rbac.ErrUserNotFound), errors.Is(err, rbac.ErrRoleNotFound):
			helpers.RespondError(w, http.StatusBadRequest, "Unknown user or role")
		case errors.Is(err, rbac.ErrBindingExists):
			helpers.RespondError(w, http.StatusBadRequest, "Role is already assigned to this user")
		default:
			helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Role assigned"})
}

// Revoke handles DELETE /roles/{role_id}/revoke/{user_id}.
func (h *RoleHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathUUID(w, r, "role_id")
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.service.RevokeRole(r.Context(), userID, roleID); err != nil {
		if errors.Is(err, rbac.ErrBindingNotFound) {
			helpers.RespondError(w, http.StatusBadRequest, "Role is not assigned to this user")
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Role revoked"})
}

// UserPermissions handles GET /roles/{user_id}/permissions.
func (h *RoleHandlers) UserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}

	permissions, err := h.service.EffectivePermissions(r.Context(), userID)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			helpers.RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"permissions": permissions,
	})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		helpers.RespondFieldErrors(w, http.StatusUnprocessableEntity, map[string]string{
			name: "must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}
