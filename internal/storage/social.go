package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SocialAccountRepo links federated identities to local users.
type SocialAccountRepo struct {
	pool *pgxpool.Pool
}

func NewSocialAccountRepo(pool *pgxpool.Pool) *SocialAccountRepo {
	return &SocialAccountRepo{pool: pool}
}

func (r *SocialAccountRepo) Create(ctx context.Context, account *SocialAccount) error {
	const query = `
		INSERT INTO social_accounts (id, user_id, provider, provider_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		account.ID, account.UserID, account.Provider, account.ProviderUserID,
	).Scan(&account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create social account: %w", err)
	}
	return nil
}

// FindByProvider resolves a federated identity to its local link.
func (r *SocialAccountRepo) FindByProvider(ctx context.Context, provider, providerUserID string) (*SocialAccount, error) {
	const query = `
		SELECT id, user_id, provider, provider_user_id, created_at
		FROM social_accounts
		WHERE provider = $1 AND provider_user_id = $2`

	var a SocialAccount
	err := r.pool.QueryRow(ctx, query, provider, providerUserID).Scan(
		&a.ID, &a.UserID, &a.Provider, &a.ProviderUserID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find social account: %w", err)
	}
	return &a, nil
}

func (r *SocialAccountRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]SocialAccount, error) {
	const query = `
		SELECT id, user_id, provider, provider_user_id, created_at
		FROM social_accounts
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}
	defer rows.Close()

	accounts := []SocialAccount{}
	for rows.Next() {
		var a SocialAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderUserID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan social account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
