package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionIndex tracks the set of currently valid refresh-token identifiers
// per user. A refresh token is only honored while its jti is a member of
// the owner's set; the set expires with the longest remaining refresh
// lifetime.
type SessionIndex struct {
	client *redis.Client
}

func NewSessionIndex(client *redis.Client) *SessionIndex {
	return &SessionIndex{client: client}
}

func sessionKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_active_refresh_jtis:%s", userID)
}

// Add registers a refresh jti for the user and pushes the set's TTL out to
// the full refresh lifetime.
func (s *SessionIndex) Add(ctx context.Context, userID uuid.UUID, jti string, ttl time.Duration) error {
	key := sessionKey(userID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, jti)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session index add: %w", err)
	}
	return nil
}

// Remove drops one jti from the user's set.
func (s *SessionIndex) Remove(ctx context.Context, userID uuid.UUID, jti string) error {
	if err := s.client.SRem(ctx, sessionKey(userID), jti).Err(); err != nil {
		return fmt.Errorf("session index remove: %w", err)
	}
	return nil
}

// Contains reports whether the jti is currently registered for the user.
func (s *SessionIndex) Contains(ctx context.Context, userID uuid.UUID, jti string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, sessionKey(userID), jti).Result()
	if err != nil {
		return false, fmt.Errorf("session index lookup: %w", err)
	}
	return ok, nil
}

// Members returns every registered jti for the user.
func (s *SessionIndex) Members(ctx context.Context, userID uuid.UUID) ([]string, error) {
	members, err := s.client.SMembers(ctx, sessionKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session index members: %w", err)
	}
	return members, nil
}

// Replace atomically resets the user's set to the single given jti with a
// fresh TTL. Used by logout-all-other-sessions.
func (s *SessionIndex) Replace(ctx context.Context, userID uuid.UUID, jti string, ttl time.Duration) error {
	key := sessionKey(userID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, jti)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session index replace: %w", err)
	}
	return nil
}
