// Package auth implements credential verification, token issuance and the
// refresh-session lifecycle. Durable user state lives in Postgres; the
// session index, deny list and permission cache live in Redis.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/filmgate/auth-service/internal/storage"
)

// UserRepository is the slice of user storage the auth service needs.
type UserRepository interface {
	Create(ctx context.Context, user *storage.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	GetByLogin(ctx context.Context, login string) (*storage.User, error)
	FindByLoginOrEmail(ctx context.Context, login string, email *string) (*storage.User, error)
	Update(ctx context.Context, user *storage.User) error
}

// HistoryRepository records and lists login events.
type HistoryRepository interface {
	Append(ctx context.Context, entry *storage.LoginHistoryEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]storage.LoginHistoryEntry, error)
}

// SessionStore is the per-user index of live refresh jtis.
type SessionStore interface {
	Add(ctx context.Context, userID uuid.UUID, jti string, ttl time.Duration) error
	Remove(ctx context.Context, userID uuid.UUID, jti string) error
	Contains(ctx context.Context, userID uuid.UUID, jti string) (bool, error)
	Members(ctx context.Context, userID uuid.UUID) ([]string, error)
	Replace(ctx context.Context, userID uuid.UUID, jti string, ttl time.Duration) error
}

// DenyStore revokes token identifiers until their natural expiry.
type DenyStore interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Service owns the authentication flows: register, login, refresh, logout
// and profile maintenance.
type Service struct {
	users      UserRepository
	history    HistoryRepository
	sessions   SessionStore
	denyList   DenyStore
	hasher     PasswordHasher
	tokens     TokenProvider
	refreshTTL time.Duration
	logger     *slog.Logger
}

func NewService(
	users UserRepository,
	history HistoryRepository,
	sessions SessionStore,
	denyList DenyStore,
	hasher PasswordHasher,
	tokens TokenProvider,
	refreshTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:      users,
		history:    history,
		sessions:   sessions,
		denyList:   denyList,
		hasher:     hasher,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// RegisterInput carries a new account's credentials.
type RegisterInput struct {
	Login    string
	Password string
	Email    *string
}

// Register creates a user with a hashed password. Conflicts come back as a
// field-to-message map so the handler can report exactly which identifier
// is taken; a nil map means the account was created.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*storage.User, map[string]string, error) {
	existing, err := s.users.FindByLoginOrEmail(ctx, in.Login, in.Email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, conflictFields(existing, in), nil
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &storage.User{
		ID:           uuid.New(),
		Login:        in.Login,
		PasswordHash: hash,
		Email:        in.Email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Lost a race with a concurrent registration.
			return nil, map[string]string{
				"login": fmt.Sprintf("User with login '%s' already exists.", in.Login),
			}, nil
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "login", user.Login)
	return user, nil, nil
}

func conflictFields(existing *storage.User, in RegisterInput) map[string]string {
	fields := make(map[string]string, 1)
	if existing.Login == in.Login {
		fields["login"] = fmt.Sprintf("User with login '%s' already exists.", in.Login)
	}
	if in.Email != nil && existing.Email != nil && *existing.Email == *in.Email {
		fields["email"] = fmt.Sprintf("User with email '%s' already exists.", *in.Email)
	}
	if len(fields) == 0 {
		fields["login"] = fmt.Sprintf("User with login '%s' already exists.", in.Login)
	}
	return fields
}
