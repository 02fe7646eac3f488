package auth

import (
	"context"
	"strings"
)

// Permission names follow "resource:action". The catalog is flat; a grant is
// an exact (resource, action) match through at least one active role.
const (
	PermUsersCreate = "users:create"
	PermUsersRead   = "users:read"
	PermUsersUpdate = "users:update"
	PermUsersDelete = "users:delete"

	PermAdminsCreate = "admins:create"
	PermAdminsRead   = "admins:read"
	PermAdminsUpdate = "admins:update"
	PermAdminsDelete = "admins:delete"

	PermRolesCreate = "roles:create"
	PermRolesRead   = "roles:read"
	PermRolesUpdate = "roles:update"
	PermRolesDelete = "roles:delete"

	PermCollectionsCreate = "collections:create"
	PermCollectionsRead   = "collections:read"
	PermCollectionsUpdate = "collections:update"
	PermCollectionsDelete = "collections:delete"

	PermSettingsCreate = "settings:create"
	PermSettingsRead   = "settings:read"
	PermSettingsUpdate = "settings:update"
	PermSettingsDelete = "settings:delete"

	PermAuditLogsRead = "audit_logs:read"
)

// BuiltinPermissions is the seed catalog ensured at startup.
var BuiltinPermissions = []Permission{
	{Name: PermUsersCreate, Resource: "users", Action: "create", Description: "Create users"},
	{Name: PermUsersRead, Resource: "users", Action: "read", Description: "Read users"},
	{Name: PermUsersUpdate, Resource: "users", Action: "update", Description: "Update users"},
	{Name: PermUsersDelete, Resource: "users", Action: "delete", Description: "Delete users"},
	{Name: PermAdminsCreate, Resource: "admins", Action: "create", Description: "Create admins"},
	{Name: PermAdminsRead, Resource: "admins", Action: "read", Description: "Read admins"},
	{Name: PermAdminsUpdate, Resource: "admins", Action: "update", Description: "Update admins"},
	{Name: PermAdminsDelete, Resource: "admins", Action: "delete", Description: "Delete admins"},
	{Name: PermRolesCreate, Resource: "roles", Action: "create", Description: "Create roles"},
	{Name: PermRolesRead, Resource: "roles", Action: "read", Description: "Read roles"},
	{Name: PermRolesUpdate, Resource: "roles", Action: "update", Description: "Update roles"},
	{Name: PermRolesDelete, Resource: "roles", Action: "delete", Description: "Delete roles"},
	{Name: PermCollectionsCreate, Resource: "collections", Action: "create", Description: "Create collections"},
	{Name: PermCollectionsRead, Resource: "collections", Action: "read", Description: "Read collections"},
	{Name: PermCollectionsUpdate, Resource: "collections", Action: "update", Description: "Update collections"},
	{Name: PermCollectionsDelete, Resource: "collections", Action: "delete", Description: "Delete collections"},
	{Name: PermSettingsCreate, Resource: "settings", Action: "create", Description: "Create settings"},
	{Name: PermSettingsRead, Resource: "settings", Action: "read", Description: "Read settings"},
	{Name: PermSettingsUpdate, Resource: "settings", Action: "update", Description: "Update settings"},
	{Name: PermSettingsDelete, Resource: "settings", Action: "delete", Description: "Delete settings"},
	{Name: PermAuditLogsRead, Resource: "audit_logs", Action: "read", Description: "Read audit logs"},
}

// PermissionResolver evaluates whether an admin's active roles grant a
// (resource, action) pair. Every call re-reads role and permission state so
// membership changes take effect on the next request without invalidation
// machinery.
type PermissionResolver struct {
	permissions PermissionStore
}

// NewPermissionResolver builds a resolver over the permission store.
func NewPermissionResolver(permissions PermissionStore) *PermissionResolver {
	return &PermissionResolver{permissions: permissions}
}

// HasPermission reports whether the admin holds the exact (resource, action)
// pair through any active role.
func (r *PermissionResolver) HasPermission(ctx context.Context, adminID, resource, action string) (bool, error) {
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if adminID == "" || resource == "" || action == "" {
		return false, nil
	}
	granted, err := r.permissions.ForAdmin(ctx, adminID)
	if err != nil {
		return false, err
	}
	for _, p := range granted {
		if p.Resource == resource && p.Action == action {
			return true, nil
		}
	}
	return false, nil
}

// RequirePermission is HasPermission raising ErrForbidden on denial; composed
// in front of protected operations.
func (r *PermissionResolver) RequirePermission(ctx context.Context, adminID, resource, action string) error {
	ok, err := r.HasPermission(ctx, adminID, resource, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
