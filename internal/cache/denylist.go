package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DenyList holds revoked token identifiers until their natural expiry.
// Once a jti is added it stays denied for the full TTL; there is no
// removal path.
type DenyList struct {
	client *redis.Client
}

func NewDenyList(client *redis.Client) *DenyList {
	return &DenyList{client: client}
}

func denyKey(jti string) string {
	return "blacklist:" + jti
}

// Add revokes a jti for ttl. TTLs below one second are clamped up so a
// token expiring right now is still observably revoked.
func (d *DenyList) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := d.client.Set(ctx, denyKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("deny list add: %w", err)
	}
	return nil
}

// Contains reports whether the jti has been revoked.
func (d *DenyList) Contains(ctx context.Context, jti string) (bool, error) {
	_, err := d.client.Get(ctx, denyKey(jti)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("deny list lookup: %w", err)
	}
	return true, nil
}
