package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/filmgate/auth-service/internal/storage"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Refresh rotates a refresh token. The presented token must carry a valid
// signature, be unexpired, not sit on the deny list, and its jti must
// still be registered in the owner's session index. The old jti is denied
// and deregistered before the new one is registered, so a crash mid-way
// can only lose a session, never resurrect one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Decode(ctx, refreshToken, TokenKindRefresh)
	if err != nil {
		if isTokenError(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil || claims.ExpiresAt == nil {
		return nil, ErrInvalidRefreshToken
	}

	denied, err := s.denyList.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check deny list: %w", err)
	}
	if denied {
		return nil, ErrInvalidRefreshToken
	}

	active, err := s.sessions.Contains(ctx, userID, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session index: %w", err)
	}
	if !active {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.denyList.Add(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return nil, fmt.Errorf("deny old refresh jti: %w", err)
	}
	if err := s.sessions.Remove(ctx, userID, claims.ID); err != nil {
		return nil, fmt.Errorf("deregister old session: %w", err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("refresh token rotated", "user_id", userID)
	return pair, nil
}

// Logout revokes a refresh token and removes it from the session index.
// An expired token is still accepted so a stale client can always tear
// its session down; only signature or shape failures are rejected.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.DecodeAllowExpired(refreshToken, TokenKindRefresh)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil || claims.ExpiresAt == nil {
		return ErrInvalidRefreshToken
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.denyList.Add(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("deny refresh jti: %w", err)
	}
	if err := s.sessions.Remove(ctx, userID, claims.ID); err != nil {
		return fmt.Errorf("deregister session: %w", err)
	}

	s.logger.Info("user logged out", "user_id", userID)
	return nil
}

// LogoutAllOtherSessions revokes every refresh session of the user except
// the one presented, then resets the session index to that single jti.
func (s *Service) LogoutAllOtherSessions(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	claims, err := s.tokens.Decode(ctx, refreshToken, TokenKindRefresh)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	subject, err := claims.UserID()
	if err != nil || subject != userID {
		return ErrInvalidRefreshToken
	}

	members, err := s.sessions.Members(ctx, userID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	revoked := 0
	for _, jti := range members {
		if jti == claims.ID {
			continue
		}
		// Remaining lifetime of the other sessions is unknown, so deny for
		// the full refresh TTL.
		if err := s.denyList.Add(ctx, jti, s.refreshTTL); err != nil {
			return fmt.Errorf("deny session %s: %w", jti, err)
		}
		revoked++
	}

	if err := s.sessions.Replace(ctx, userID, claims.ID, s.refreshTTL); err != nil {
		return fmt.Errorf("reset session index: %w", err)
	}

	s.logger.Info("revoked other sessions", "user_id", userID, "count", revoked)
	return nil
}

// GetLoginHistory returns the user's login events, newest first. The limit
// is clamped to [1, 1000] and a negative offset is treated as zero.
func (s *Service) GetLoginHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]storage.LoginHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.history.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list login history: %w", err)
	}
	return entries, nil
}

func isTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenSignature) ||
		errors.Is(err, ErrTokenRevoked)
}
