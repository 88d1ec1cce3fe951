package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PermissionCacheTTL bounds staleness for reads that bypass invalidation.
const PermissionCacheTTL = time.Hour

// PermissionCache stores each user's resolved permission list as a
// comma-joined string. Entries are invalidated on every role grant or
// revoke touching the user, and expire after an hour regardless.
type PermissionCache struct {
	client *redis.Client
}

func NewPermissionCache(client *redis.Client) *PermissionCache {
	return &PermissionCache{client: client}
}

func permissionKey(userID uuid.UUID) string {
	return fmt.Sprintf("permissions:%s", userID)
}

// Get returns the cached permission list, or ok=false on a miss.
func (c *PermissionCache) Get(ctx context.Context, userID uuid.UUID) ([]string, bool, error) {
	val, err := c.client.Get(ctx, permissionKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("permission cache get: %w", err)
	}
	return strings.Split(val, ","), true, nil
}

// Set writes the resolved permission list through to the cache.
func (c *PermissionCache) Set(ctx context.Context, userID uuid.UUID, permissions []string) error {
	if len(permissions) == 0 {
		return nil
	}
	err := c.client.Set(ctx, permissionKey(userID), strings.Join(permissions, ","), PermissionCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("permission cache set: %w", err)
	}
	return nil
}

// Invalidate drops the user's cache entry.
func (c *PermissionCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, permissionKey(userID)).Err(); err != nil {
		return fmt.Errorf("permission cache invalidate: %w", err)
	}
	return nil
}
