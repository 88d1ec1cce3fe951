package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, login, password_hash, email, is_superuser, mfa_secret, mfa_enabled, created_at, updated_at`

// UserRepo persists users.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Email, &u.IsSuperuser,
		&u.MFASecret, &u.MFAEnabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Create inserts a new user. The caller supplies the ID.
func (r *UserRepo) Create(ctx context.Context, user *User) error {
	const query = `
		INSERT INTO users (id, login, password_hash, email, is_superuser)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Login, user.PasswordHash, user.Email, user.IsSuperuser,
	).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1`
	return scanUser(r.pool.QueryRow(ctx, query, login))
}

// FindByLoginOrEmail returns the first user matching either value.
// Used by registration to detect conflicts with a single round trip.
func (r *UserRepo) FindByLoginOrEmail(ctx context.Context, login string, email *string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1`
	args := []any{login}
	if email != nil && *email != "" {
		query += ` OR email = $2`
		args = append(args, *email)
	}
	query += ` LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

// Update persists mutable profile fields and bumps updated_at.
func (r *UserRepo) Update(ctx context.Context, user *User) error {
	const query = `
		UPDATE users
		SET login = $2, password_hash = $3, email = $4,
		    mfa_secret = $5, mfa_enabled = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Login, user.PasswordHash, user.Email,
		user.MFASecret, user.MFAEnabled,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes a user; bindings and history cascade at the DB level.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
