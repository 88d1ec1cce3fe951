package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepo appends to and reads the partitioned login_history table.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Append inserts one audit row. login_at defaults to now() in the DB so the
// row always lands in the current partition.
func (r *HistoryRepo) Append(ctx context.Context, entry *LoginHistoryEntry) error {
	const query = `
		INSERT INTO login_history (id, user_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING login_at`

	err := r.pool.QueryRow(ctx, query,
		entry.ID, entry.UserID, entry.IPAddress, entry.UserAgent,
	).Scan(&entry.LoginAt)
	if err != nil {
		return fmt.Errorf("append login history: %w", err)
	}
	return nil
}

// ListByUser returns entries newest-first. The login_at ordering keeps the
// scan within the partitions that actually hold the user's rows.
func (r *HistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]LoginHistoryEntry, error) {
	const query = `
		SELECT id, user_id, login_at, ip_address, user_agent
		FROM login_history
		WHERE user_id = $1
		ORDER BY login_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list login history: %w", err)
	}
	defer rows.Close()

	entries := []LoginHistoryEntry{}
	for rows.Next() {
		var e LoginHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.LoginAt, &e.IPAddress, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("scan login history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
