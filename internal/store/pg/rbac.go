package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
)

var (
	_ auth.PermissionStore = (*Store)(nil)
	_ auth.UserStore       = (*Store)(nil)
)

const moduleColumns = `key, name, is_active, actions, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModule(row rowScanner) (auth.Module, error) {
	var (
		m   auth.Module
		raw []byte
	)
	if err := row.Scan(&m.Key, &m.Name, &m.IsActive, &raw, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return auth.Module{}, err
	}
	actions, err := decodeActions(raw)
	if err != nil {
		return auth.Module{}, err
	}
	m.Actions = actions
	return m, nil
}

func (s *Store) CreateModule(ctx context.Context, m auth.Module) (auth.Module, error) {
	if s.db == nil {
		return auth.Module{}, errNoDB
	}
	actions, err := encodeActions(m.Actions)
	if err != nil {
		return auth.Module{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into modules (key, name, is_active, actions)
		values ($1, $2, $3, $4)
		returning `+moduleColumns, m.Key, m.Name, m.IsActive, actions)
	out, err := scanModule(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Module{}, auth.ErrConflict
		}
		return auth.Module{}, err
	}
	return out, nil
}

func (s *Store) GetModule(ctx context.Context, key string) (auth.Module, error) {
	if s.db == nil {
		return auth.Module{}, errNoDB
	}
	m, err := scanModule(s.db.QueryRowContext(ctx, `select `+moduleColumns+` from modules where key = $1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Module{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Module{}, err
	}
	return m, nil
}

func (s *Store) ListModules(ctx context.Context, includeInactive bool) ([]auth.Module, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+moduleColumns+`
		from modules
		where is_active or $1
		order by key
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []auth.Module{}
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateModule(ctx context.Context, key string, upd auth.ModuleUpdate) (auth.Module, error) {
	if s.db == nil {
		return auth.Module{}, errNoDB
	}

	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *upd.IsActive)
		idx++
	}
	if upd.Actions != nil {
		actions, err := encodeActions(upd.Actions)
		if err != nil {
			return auth.Module{}, err
		}
		setClauses = append(setClauses, fmt.Sprintf("actions = $%d", idx))
		args = append(args, actions)
		idx++
	}
	if len(setClauses) == 0 {
		return s.GetModule(ctx, key)
	}
	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf(`update modules set %s where key = $%d returning %s`, strings.Join(setClauses, ", "), idx, moduleColumns)
	args = append(args, key)
	m, err := scanModule(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Module{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Module{}, err
	}
	return m, nil
}

func (s *Store) GetPermission(ctx context.Context, role auth.Role, moduleKey string) (auth.Permission, error) {
	if s.db == nil {
		return auth.Permission{}, errNoDB
	}
	var (
		p   auth.Permission
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select role, module_key, actions, updated_at
		from permissions
		where role = $1 and module_key = $2
	`, string(role), moduleKey).Scan(&p.Role, &p.ModuleKey, &raw, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Permission{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Permission{}, err
	}
	if p.Actions, err = decodeActions(raw); err != nil {
		return auth.Permission{}, err
	}
	return p, nil
}

// UpsertPermission replaces the full action set of the (role, module) row.
func (s *Store) UpsertPermission(ctx context.Context, p auth.Permission) (auth.Permission, error) {
	if s.db == nil {
		return auth.Permission{}, errNoDB
	}
	actions, err := encodeActions(p.Actions)
	if err != nil {
		return auth.Permission{}, err
	}
	var (
		out auth.Permission
		raw []byte
	)
	err = s.db.QueryRowContext(ctx, `
		insert into permissions (role, module_key, actions, updated_at)
		values ($1, $2, $3, now())
		on conflict (role, module_key) do update
		set actions = excluded.actions, updated_at = now()
		returning role, module_key, actions, updated_at
	`, string(p.Role), p.ModuleKey, actions).Scan(&out.Role, &out.ModuleKey, &raw, &out.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.Permission{}, auth.ErrNotFound
		}
		return auth.Permission{}, err
	}
	if out.Actions, err = decodeActions(raw); err != nil {
		return auth.Permission{}, err
	}
	return out, nil
}

func (s *Store) ListPermissions(ctx context.Context, role auth.Role) ([]auth.Permission, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select role, module_key, actions, updated_at
		from permissions
		where role = $1
		order by module_key
	`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []auth.Permission{}
	for rows.Next() {
		var (
			p   auth.Permission
			raw []byte
		)
		if err := rows.Scan(&p.Role, &p.ModuleKey, &raw, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.Actions, err = decodeActions(raw); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	var out auth.User
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, username, password_hash, role, is_active)
		values ($1, $2, $3, $4, $5)
		returning id, username, password_hash, role, is_active, created_at
	`, u.ID, strings.ToLower(u.Username), u.PasswordHash, string(u.Role), u.IsActive).
		Scan(&out.ID, &out.Username, &out.PasswordHash, &out.Role, &out.IsActive, &out.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, err
	}
	return out, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	var u auth.User
	err := s.db.QueryRowContext(ctx, `
		select id, username, password_hash, role, is_active, created_at
		from users
		where username = $1
	`, strings.ToLower(username)).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}
