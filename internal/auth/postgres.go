package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gatehouse.dev/internal/ids"
)

const pgErrUniqueViolation = "23505"

var _ Store = (*PGStore)(nil)

// PGStore implements Store over PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Principals(context.Context) PrincipalStore { return &principalStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore           { return &roleStore{db: s.db} }
func (s *PGStore) Permissions(context.Context) PermissionStore {
	return &permissionStore{db: s.db}
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// Principal store ----------------------------------------------------------

type principalStore struct{ db *sql.DB }

const principalColumns = `id, kind, username, name, email, phone, password_hash, active,
	failed_attempts, locked_until, deleted_at, created_at, updated_at`

func scanPrincipal(row interface{ Scan(...any) error }) (*Principal, error) {
	var p Principal
	err := row.Scan(
		&p.ID, &p.Kind, &p.Username, &p.Name, &p.Email, &p.Phone, &p.PasswordHash, &p.Active,
		&p.FailedAttempts, &p.LockedUntil, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *principalStore) Create(ctx context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into principals (id, kind, username, name, email, phone, password_hash, active)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, p.ID, p.Kind, p.Username, p.Name, p.Email, p.Phone, p.PasswordHash, p.Active)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *principalStore) FindByID(ctx context.Context, kind Kind, id string) (*Principal, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx, `
		select `+principalColumns+`
		from principals
		where id = $1 and kind = $2 and deleted_at is null
	`, id, kind))
}

func (s *principalStore) FindByIdentifier(ctx context.Context, kind Kind, identifier string) (*Principal, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx, `
		select `+principalColumns+`
		from principals
		where (username = $1 or email = $1) and kind = $2 and deleted_at is null
	`, identifier, kind))
}

func (s *principalStore) FindByUsername(ctx context.Context, kind Kind, username string) (*Principal, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx, `
		select `+principalColumns+`
		from principals
		where username = $1 and kind = $2 and deleted_at is null
	`, username, kind))
}

func (s *principalStore) FindByEmail(ctx context.Context, kind Kind, email string) (*Principal, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx, `
		select `+principalColumns+`
		from principals
		where email = $1 and kind = $2 and deleted_at is null
	`, email, kind))
}

func (s *principalStore) FindByPhone(ctx context.Context, kind Kind, phone string) (*Principal, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx, `
		select `+principalColumns+`
		from principals
		where phone = $1 and kind = $2 and deleted_at is null
	`, phone, kind))
}

// IncrementFailedAttempts is a single statement so concurrent failed logins
// never lose an update; the lock decision rides on the incremented value.
func (s *principalStore) IncrementFailedAttempts(ctx context.Context, kind Kind, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		update principals
		set failed_attempts = failed_attempts + 1,
		    locked_until = case when failed_attempts + 1 >= $3 then $4 else locked_until end,
		    updated_at = now()
		where id = $1 and kind = $2 and deleted_at is null
		returning failed_attempts, locked_until
	`, id, kind, threshold, lockUntil)

	var (
		attempts    int
		lockedUntil *time.Time
	)
	if err := row.Scan(&attempts, &lockedUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, err
	}
	return attempts, lockedUntil, nil
}

func (s *principalStore) ResetFailedAttempts(ctx context.Context, kind Kind, id string) error {
	return s.exec(ctx, `
		update principals
		set failed_attempts = 0, locked_until = null, updated_at = now()
		where id = $1 and kind = $2 and deleted_at is null
	`, id, kind)
}

func (s *principalStore) SetActive(ctx context.Context, kind Kind, id string, active bool) error {
	return s.exec(ctx, `
		update principals
		set active = $3, updated_at = now()
		where id = $1 and kind = $2 and deleted_at is null
	`, id, kind, active)
}

func (s *principalStore) SoftDelete(ctx context.Context, kind Kind, id string) error {
	return s.exec(ctx, `
		update principals
		set deleted_at = now(), updated_at = now()
		where id = $1 and kind = $2 and deleted_at is null
	`, id, kind)
}

func (s *principalStore) Restore(ctx context.Context, kind Kind, id string) error {
	return s.exec(ctx, `
		update principals
		set deleted_at = null, updated_at = now()
		where id = $1 and kind = $2 and deleted_at is not null
	`, id, kind)
}

func (s *principalStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description, active)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, role.ID, role.Name, role.Description, role.Active)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *roleStore) Find(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, description, active, created_at, updated_at
		from roles where id = $1
	`, id)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Active, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *roleStore) List(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, active, created_at, updated_at
		from roles order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Active, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *roleStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		update roles set active = $2, updated_at = now() where id = $1
	`, id, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *roleStore) SetPermissions(ctx context.Context, roleID string, permissionNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, name := range permissionNames {
		res, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where name = $2
		`, roleID, name)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
	}
	return tx.Commit()
}

func (s *roleStore) Assign(ctx context.Context, adminID, roleID string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into admin_roles (admin_id, role_id)
		values ($1, $2)
		on conflict (admin_id, role_id) do update set admin_id = excluded.admin_id
		returning created_at
	`, adminID, roleID)
	a := Assignment{AdminID: adminID, RoleID: roleID}
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (s *roleStore) Unassign(ctx context.Context, adminID, roleID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from admin_roles where admin_id = $1 and role_id = $2
	`, adminID, roleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *roleStore) AssignmentsFor(ctx context.Context, adminID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select admin_id, role_id, created_at
		from admin_roles where admin_id = $1 order by created_at
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.AdminID, &a.RoleID, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Permission store ---------------------------------------------------------

type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Ensure(ctx context.Context, perms []Permission) error {
	for _, perm := range perms {
		id := perm.ID
		if id == "" {
			id = ids.New()
		}
		_, err := s.db.ExecContext(ctx, `
			insert into permissions (id, name, resource, action, description)
			values ($1, $2, $3, $4, $5)
			on conflict (name) do nothing
		`, id, perm.Name, perm.Resource, perm.Action, perm.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, resource, action, description, created_at
		from permissions order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *permissionStore) ForRole(ctx context.Context, roleID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.resource, p.action, p.description, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// ForAdmin joins through ACTIVE roles only; a deactivated role grants
// nothing even while assigned.
func (s *permissionStore) ForAdmin(ctx context.Context, adminID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.id, p.name, p.resource, p.action, p.description, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		join roles r on r.id = rp.role_id and r.active
		join admin_roles ar on ar.role_id = r.id
		where ar.admin_id = $1
		order by p.name
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func collectPermissions(rows *sql.Rows) ([]Permission, error) {
	var result []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
