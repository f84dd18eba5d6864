package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	// adminAuthPrefix is the Redis key prefix for verified admin keys.
	adminAuthPrefix = "auth:admin:"
	// adminAuthTTL is the time-to-live for cached verifications.
	adminAuthTTL = 5 * time.Minute
)

// adminAuthKey derives the cache key from the presented API key. Only a
// digest of the key ever reaches Redis.
func adminAuthKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return adminAuthPrefix + hex.EncodeToString(sum[:])
}

// GetAdminVerified reports whether the presented key passed argon2
// verification recently. A miss or cache error just means re-verify.
func (c *Cache) GetAdminVerified(ctx context.Context, apiKey string) bool {
	n, err := c.client.Exists(ctx, adminAuthKey(apiKey)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// SetAdminVerified caches a successful key verification.
func (c *Cache) SetAdminVerified(ctx context.Context, apiKey string) error {
	return c.client.Set(ctx, adminAuthKey(apiKey), "1", adminAuthTTL).Err()
}
