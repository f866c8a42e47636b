// Package cache keeps the donor matching feed in Redis for a short TTL. The
// feed is read far more often than requests change, and a stale entry only
// risks a precondition-failed on schedule, which the CAS store write already
// handles.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"bloodlink/internal/blood"
	"bloodlink/internal/request"
)

const matchingKeyPrefix = "match:feed:"

// MatchingCache caches FindMatching results per blood group.
type MatchingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMatchingCache(client *redis.Client, ttl time.Duration) *MatchingCache {
	return &MatchingCache{client: client, ttl: ttl}
}

// Get returns the cached feed for a group, or (nil, false, nil) on a miss.
func (c *MatchingCache) Get(ctx context.Context, group blood.Group) ([]*request.Request, bool, error) {
	payload, err := c.client.Get(ctx, matchingKeyPrefix+group.InventoryKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var requests []*request.Request
	if err := json.Unmarshal(payload, &requests); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return requests, true, nil
}

// Set stores the feed for a group with the configured TTL.
func (c *MatchingCache) Set(ctx context.Context, group blood.Group, requests []*request.Request) error {
	payload, err := json.Marshal(requests)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, matchingKeyPrefix+group.InventoryKey(), payload, c.ttl).Err()
}
