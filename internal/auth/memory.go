package auth

import (
	"context"
	"sync"
	"time"

	"gatehouse.dev/internal/ids"
)

// MemoryStore is an in-memory Store. It mirrors the persistence contract,
// including soft-delete filtering and the atomic increment-and-maybe-lock
// semantics, and backs tests and single-process development runs.
type MemoryStore struct {
	principals *memPrincipalStore
	roles      *memRoleStore
	perms      *memPermissionStore
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		principals: &memPrincipalStore{byID: make(map[string]*Principal)},
		roles: &memRoleStore{
			byID:        make(map[string]*Role),
			rolePerms:   make(map[string][]string),
			assignments: make(map[string][]string),
		},
	}
	s.perms = &memPermissionStore{byName: make(map[string]Permission), roles: s.roles}
	return s
}

func (s *MemoryStore) Principals(context.Context) PrincipalStore   { return s.principals }
func (s *MemoryStore) Roles(context.Context) RoleStore             { return s.roles }
func (s *MemoryStore) Permissions(context.Context) PermissionStore { return s.perms }

// Principals ---------------------------------------------------------------

type memPrincipalStore struct {
	mu   sync.Mutex
	byID map[string]*Principal
}

func clonePrincipal(p *Principal) *Principal {
	cp := *p
	if p.Phone != nil {
		v := *p.Phone
		cp.Phone = &v
	}
	if p.LockedUntil != nil {
		v := *p.LockedUntil
		cp.LockedUntil = &v
	}
	if p.DeletedAt != nil {
		v := *p.DeletedAt
		cp.DeletedAt = &v
	}
	return &cp
}

func (s *memPrincipalStore) Create(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	for _, existing := range s.byID {
		if existing.Kind != p.Kind || existing.Deleted() {
			continue
		}
		if existing.Username == p.Username || existing.Email == p.Email {
			return ErrConflict
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
		p.UpdatedAt = p.CreatedAt
	}
	s.byID[p.ID] = clonePrincipal(p)
	return nil
}

func (s *memPrincipalStore) find(kind Kind, match func(*Principal) bool) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.Kind == kind && !p.Deleted() && match(p) {
			return clonePrincipal(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memPrincipalStore) FindByID(_ context.Context, kind Kind, id string) (*Principal, error) {
	return s.find(kind, func(p *Principal) bool { return p.ID == id })
}

func (s *memPrincipalStore) FindByIdentifier(_ context.Context, kind Kind, identifier string) (*Principal, error) {
	return s.find(kind, func(p *Principal) bool { return p.Username == identifier || p.Email == identifier })
}

func (s *memPrincipalStore) FindByUsername(_ context.Context, kind Kind, username string) (*Principal, error) {
	return s.find(kind, func(p *Principal) bool { return p.Username == username })
}

func (s *memPrincipalStore) FindByEmail(_ context.Context, kind Kind, email string) (*Principal, error) {
	return s.find(kind, func(p *Principal) bool { return p.Email == email })
}

func (s *memPrincipalStore) FindByPhone(_ context.Context, kind Kind, phone string) (*Principal, error) {
	return s.find(kind, func(p *Principal) bool { return p.Phone != nil && *p.Phone == phone })
}

func (s *memPrincipalStore) IncrementFailedAttempts(_ context.Context, kind Kind, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.Kind != kind || p.Deleted() {
		return 0, nil, ErrNotFound
	}
	p.FailedAttempts++
	if p.FailedAttempts >= threshold {
		until := lockUntil
		p.LockedUntil = &until
	}
	var lockedUntil *time.Time
	if p.LockedUntil != nil {
		v := *p.LockedUntil
		lockedUntil = &v
	}
	return p.FailedAttempts, lockedUntil, nil
}

func (s *memPrincipalStore) ResetFailedAttempts(_ context.Context, kind Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.Kind != kind || p.Deleted() {
		return ErrNotFound
	}
	p.FailedAttempts = 0
	p.LockedUntil = nil
	return nil
}

func (s *memPrincipalStore) SetActive(_ context.Context, kind Kind, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.Kind != kind || p.Deleted() {
		return ErrNotFound
	}
	p.Active = active
	return nil
}

func (s *memPrincipalStore) SoftDelete(_ context.Context, kind Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.Kind != kind || p.Deleted() {
		return ErrNotFound
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	return nil
}

func (s *memPrincipalStore) Restore(_ context.Context, kind Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.Kind != kind || !p.Deleted() {
		return ErrNotFound
	}
	p.DeletedAt = nil
	return nil
}

// raw returns the live record, for test assertions on persisted state.
func (s *memPrincipalStore) raw(id string) *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

// Roles --------------------------------------------------------------------

type memRoleStore struct {
	mu          sync.Mutex
	byID        map[string]*Role
	rolePerms   map[string][]string
	assignments map[string][]string
}

func (s *memRoleStore) Create(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == "" {
		role.ID = ids.New()
	}
	for _, existing := range s.byID {
		if existing.Name == role.Name {
			return ErrConflict
		}
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
		role.UpdatedAt = role.CreatedAt
	}
	cp := *role
	s.byID[role.ID] = &cp
	return nil
}

func (s *memRoleStore) Find(_ context.Context, id string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *memRoleStore) List(_ context.Context) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var roles []Role
	for _, role := range s.byID {
		roles = append(roles, *role)
	}
	return roles, nil
}

func (s *memRoleStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	role.Active = active
	return nil
}

func (s *memRoleStore) SetPermissions(_ context.Context, roleID string, permissionNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[roleID]; !ok {
		return ErrNotFound
	}
	s.rolePerms[roleID] = append([]string(nil), permissionNames...)
	return nil
}

func (s *memRoleStore) Assign(_ context.Context, adminID, roleID string) (Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments[adminID] {
		if existing == roleID {
			return Assignment{AdminID: adminID, RoleID: roleID}, nil
		}
	}
	s.assignments[adminID] = append(s.assignments[adminID], roleID)
	return Assignment{AdminID: adminID, RoleID: roleID, CreatedAt: time.Now().UTC()}, nil
}

func (s *memRoleStore) Unassign(_ context.Context, adminID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.assignments[adminID]
	for i, existing := range list {
		if existing == roleID {
			s.assignments[adminID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memRoleStore) AssignmentsFor(_ context.Context, adminID string) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Assignment
	for _, roleID := range s.assignments[adminID] {
		result = append(result, Assignment{AdminID: adminID, RoleID: roleID})
	}
	return result, nil
}

// Permissions --------------------------------------------------------------

type memPermissionStore struct {
	mu     sync.Mutex
	byName map[string]Permission
	roles  *memRoleStore
}

func (s *memPermissionStore) Ensure(_ context.Context, perms []Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		if _, ok := s.byName[p.Name]; !ok {
			s.byName[p.Name] = p
		}
	}
	return nil
}

func (s *memPermissionStore) List(_ context.Context) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Permission
	for _, p := range s.byName {
		result = append(result, p)
	}
	return result, nil
}

func (s *memPermissionStore) ForRole(_ context.Context, roleID string) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles.mu.Lock()
	names := s.roles.rolePerms[roleID]
	s.roles.mu.Unlock()
	var result []Permission
	for _, name := range names {
		if p, ok := s.byName[name]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *memPermissionStore) ForAdmin(_ context.Context, adminID string) ([]Permission, error) {
	s.roles.mu.Lock()
	var names []string
	for _, roleID := range s.roles.assignments[adminID] {
		role, ok := s.roles.byID[roleID]
		if !ok || !role.Active {
			continue
		}
		names = append(names, s.roles.rolePerms[roleID]...)
	}
	s.roles.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var result []Permission
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if p, ok := s.byName[name]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}
