package cache

import (
	"context"
	"fmt"
	"time"
)

// dedupPrefix is the Redis key prefix for processed-sale claims.
const dedupPrefix = "sale:processed:"

// ClaimSale atomically marks a transaction as processed. Returns true if
// this caller won the claim, false if the sale was already claimed.
//
// The claim is taken before matching and never released: a claimed sale is
// not re-evaluated even when the downstream forward fails, so a poison
// event cannot be retried forever. The TTL bounds memory; expired claims
// age out of the dedup set naturally.
func (c *Cache) ClaimSale(ctx context.Context, transactionID string, ttl time.Duration) (bool, error) {
	key := dedupPrefix + transactionID

	ok, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim sale %s: %w", transactionID, err)
	}
	return ok, nil
}

// HasProcessedSale reports whether a transaction holds an active claim.
func (c *Cache) HasProcessedSale(ctx context.Context, transactionID string) (bool, error) {
	key := dedupPrefix + transactionID

	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check sale %s: %w", transactionID, err)
	}
	return n > 0, nil
}
