package auth

import (
	"context"
	"time"
)

// Store describes the persistence collaborator the engine consumes. The
// engine never owns principal records; every mutation goes through these
// operations.
type Store interface {
	Principals(ctx context.Context) PrincipalStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
}

// PrincipalStore manages principal records. All finders exclude soft-deleted
// records unless stated otherwise.
type PrincipalStore interface {
	Create(ctx context.Context, p *Principal) error
	FindByID(ctx context.Context, kind Kind, id string) (*Principal, error)
	// FindByIdentifier matches username or email.
	FindByIdentifier(ctx context.Context, kind Kind, identifier string) (*Principal, error)
	FindByUsername(ctx context.Context, kind Kind, username string) (*Principal, error)
	FindByEmail(ctx context.Context, kind Kind, email string) (*Principal, error)
	FindByPhone(ctx context.Context, kind Kind, phone string) (*Principal, error)

	// IncrementFailedAttempts bumps the counter and sets locked_until to
	// lockUntil once the incremented counter reaches threshold, all in one
	// transactional statement. Returns the new counter and lock expiry.
	IncrementFailedAttempts(ctx context.Context, kind Kind, id string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	// ResetFailedAttempts zeroes the counter and clears locked_until.
	ResetFailedAttempts(ctx context.Context, kind Kind, id string) error

	SetActive(ctx context.Context, kind Kind, id string, active bool) error
	SoftDelete(ctx context.Context, kind Kind, id string) error
	Restore(ctx context.Context, kind Kind, id string) error
}

// RoleStore manages roles and admin role assignments.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetPermissions(ctx context.Context, roleID string, permissionNames []string) error
	Assign(ctx context.Context, adminID, roleID string) (Assignment, error)
	Unassign(ctx context.Context, adminID, roleID string) error
	AssignmentsFor(ctx context.Context, adminID string) ([]Assignment, error)
}

// PermissionStore manages the permission catalog and resolves grants.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	ForRole(ctx context.Context, roleID string) ([]Permission, error)
	// ForAdmin returns the union of permissions across the admin's ACTIVE
	// role assignments, freshly read.
	ForAdmin(ctx context.Context, adminID string) ([]Permission, error)
}
