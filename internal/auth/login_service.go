package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/filmgate/auth-service/internal/storage"
)

// LoginInput carries the credentials plus the client metadata recorded in
// login history.
type LoginInput struct {
	Login     string
	Password  string
	IPAddress string
	UserAgent string
}

// Login verifies credentials and mints a fresh token pair. The new refresh
// jti is registered in the session index before the pair is returned; if
// that write fails the login fails, because the refresh token would be
// dead on arrival. History recording is best effort.
func (s *Service) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	user, err := s.users.GetByLogin(ctx, in.Login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(user.PasswordHash, in.Password) {
		s.logger.Warn("failed login attempt", "login", in.Login, "ip", in.IPAddress)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	entry := &storage.LoginHistoryEntry{
		ID:        uuid.New(),
		UserID:    user.ID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		// A full audit trail is not worth failing an otherwise valid login.
		s.logger.Error("record login history", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "ip", in.IPAddress)
	return pair, nil
}

func (s *Service) issuePair(ctx context.Context, user *storage.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Login, false)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Add(ctx, user.ID, refresh.JTI, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	return &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "bearer",
	}, nil
}
