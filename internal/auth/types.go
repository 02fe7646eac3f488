package auth

import "time"

// Kind partitions principals into the two logically separate populations.
// The structures are identical; the partition is enforced by every store
// query and by the kind claim inside issued tokens.
type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

// Valid reports whether k is one of the recognized principal kinds.
func (k Kind) Valid() bool {
	return k == KindUser || k == KindAdmin
}

// Principal is an authenticatable identity. Never physically deleted by the
// engine; DeletedAt marks soft deletion.
type Principal struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	Username       string     `json:"username"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          *string    `json:"phone,omitempty"`
	PasswordHash   string     `json:"-"`
	Active         bool       `json:"active"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	DeletedAt      *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Deleted reports whether the principal is soft-deleted.
func (p *Principal) Deleted() bool {
	return p.DeletedAt != nil
}

// Role groups permissions. An inactive role grants nothing even while
// assigned.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a flat (resource, action) capability with a unique name.
// No wildcard or hierarchy semantics.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Assignment links an admin principal to a role.
type Assignment struct {
	AdminID   string    `json:"admin_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate carries registration input before hashing.
type Candidate struct {
	Username string
	Name     string
	Email    string
	Phone    string
	Password string
}
