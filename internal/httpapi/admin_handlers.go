package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"gatehouse.dev/internal/audit"
	"gatehouse.dev/internal/auth"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, "roles", "read") {
			return
		}
		roles, err := a.store.Roles(r.Context()).List(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		if !a.ensurePermission(w, r, "roles", "create") {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, r, http.StatusBadRequest, "name is required")
			return
		}
		role := &auth.Role{Name: req.Name, Description: req.Description, Active: true}
		if err := a.store.Roles(r.Context()).Create(r.Context(), role); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/admin/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/roles/"), "/")
	parts := strings.Split(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.ensurePermission(w, r, "roles", "read") {
			return
		}
		role, err := a.store.Roles(r.Context()).Find(r.Context(), roleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, roleID)
	case len(parts) == 2 && (parts[1] == "activate" || parts[1] == "deactivate"):
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if !a.ensurePermission(w, r, "roles", "update") {
			return
		}
		active := parts[1] == "activate"
		if err := a.store.Roles(r.Context()).SetActive(r.Context(), roleID, active); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.set_active", map[string]any{
			"role_id": roleID,
			"active":  active,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, "roles", "read") {
			return
		}
		perms, err := a.store.Permissions(r.Context()).ForRole(r.Context(), roleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	case http.MethodPut:
		if !a.ensurePermission(w, r, "roles", "update") {
			return
		}
		var req updateRolePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.store.Roles(r.Context()).SetPermissions(r.Context(), roleID, req.Permissions); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.permissions.update", map[string]any{
			"role_id": roleID,
			"count":   len(req.Permissions),
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, "roles", "read") {
		return
	}
	perms, err := a.store.Permissions(r.Context()).List(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (a *API) handleAdmins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermission(w, r, "admins", "create") {
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.svc.Register(r.Context(), auth.KindAdmin, auth.Candidate{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.admin.create", map[string]any{
		"admin_id": p.ID,
	})
	writeJSON(w, http.StatusCreated, toPrincipalResponse(p))
}

func (a *API) handleAdminResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/admins/"), "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) < 2 || parts[1] != "roles" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	adminID := parts[0]

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		if !a.ensurePermission(w, r, "admins", "read") {
			return
		}
		assignments, err := a.store.Roles(r.Context()).AssignmentsFor(r.Context(), adminID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
	case len(parts) == 2 && r.Method == http.MethodPost:
		if !a.ensurePermission(w, r, "admins", "update") {
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.RoleID = strings.TrimSpace(req.RoleID)
		if req.RoleID == "" {
			writeError(w, r, http.StatusBadRequest, "role_id is required")
			return
		}
		assignment, err := a.store.Roles(r.Context()).Assign(r.Context(), adminID, req.RoleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.admin.assign_role", map[string]any{
			"admin_id": adminID,
			"role_id":  assignment.RoleID,
		})
		writeJSON(w, http.StatusCreated, assignment)
	case len(parts) == 3 && r.Method == http.MethodDelete:
		if !a.ensurePermission(w, r, "admins", "update") {
			return
		}
		roleID := parts[2]
		if err := a.store.Roles(r.Context()).Unassign(r.Context(), adminID, roleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.admin.unassign_role", map[string]any{
			"admin_id": adminID,
			"role_id":  roleID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

// handleUserResource covers the moderation operations on user accounts:
// activate, block (deactivate) and soft delete.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/users/"), "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, op := parts[0], parts[1]

	ctx := r.Context()
	principals := a.store.Principals(ctx)
	var err error
	switch op {
	case "activate":
		if !a.ensurePermission(w, r, "users", "update") {
			return
		}
		err = principals.SetActive(ctx, auth.KindUser, userID, true)
	case "block":
		if !a.ensurePermission(w, r, "users", "update") {
			return
		}
		err = principals.SetActive(ctx, auth.KindUser, userID, false)
	case "delete":
		if !a.ensurePermission(w, r, "users", "delete") {
			return
		}
		err = principals.SoftDelete(ctx, auth.KindUser, userID)
	case "restore":
		if !a.ensurePermission(w, r, "users", "update") {
			return
		}
		err = principals.Restore(ctx, auth.KindUser, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user."+op, map[string]any{
		"user_id": userID,
	})
	w.WriteHeader(http.StatusNoContent)
}
