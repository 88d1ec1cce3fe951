package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepo persists roles and user-role bindings.
type RoleRepo struct {
	pool *pgxpool.Pool
}

func NewRoleRepo(pool *pgxpool.Pool) *RoleRepo {
	return &RoleRepo{pool: pool}
}

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	return &role, nil
}

func (r *RoleRepo) Create(ctx context.Context, role *Role) error {
	const query = `
		INSERT INTO roles (id, name, description, permissions)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		role.ID, role.Name, role.Description, role.Permissions,
	).Scan(&role.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (r *RoleRepo) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	const query = `SELECT id, name, description, permissions, created_at FROM roles WHERE id = $1`
	return scanRole(r.pool.QueryRow(ctx, query, id))
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*Role, error) {
	const query = `SELECT id, name, description, permissions, created_at FROM roles WHERE name = $1`
	return scanRole(r.pool.QueryRow(ctx, query, name))
}

func (r *RoleRepo) List(ctx context.Context) ([]Role, error) {
	const query = `SELECT id, name, description, permissions, created_at FROM roles ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleRepo) Update(ctx context.Context, role *Role) error {
	const query = `
		UPDATE roles SET name = $2, description = $3, permissions = $4 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, role.ID, role.Name, role.Description, role.Permissions)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a role; bindings cascade at the DB level.
func (r *RoleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Bind creates a user-role binding. A duplicate pair is ErrConflict.
func (r *RoleRepo) Bind(ctx context.Context, userID, roleID uuid.UUID) error {
	const query = `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`

	_, err := r.pool.Exec(ctx, query, userID, roleID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("bind role: %w", err)
	}
	return nil
}

// Unbind removes a user-role binding. A missing pair is ErrNotFound.
func (r *RoleRepo) Unbind(ctx context.Context, userID, roleID uuid.UUID) error {
	const query = `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`

	tag, err := r.pool.Exec(ctx, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("unbind role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PermissionsForUser returns the union of permission sets across all roles
// bound to the user. No bindings yields an empty slice.
func (r *RoleRepo) PermissionsForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const query = `
		SELECT r.permissions
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("user permissions: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	perms := []string{}
	for rows.Next() {
		var set []string
		if err := rows.Scan(&set); err != nil {
			return nil, fmt.Errorf("scan permissions: %w", err)
		}
		for _, p := range set {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	return perms, rows.Err()
}

// RoleNamesForUser returns the names of all roles bound to the user.
func (r *RoleRepo) RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const query = `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("user roles: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
