package adjustments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stoklink/stoklink/internal/accurate"
)

const itemCacheTTL = 10 * time.Minute

// ItemCache memoises item lookups in Redis, keyed per database host. Item
// codes are stable; a short TTL keeps renames from going stale for long
// while saving one rate-limited ERP call per repeated lookup.
type ItemCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewItemCache constructs the cache.
func NewItemCache(rdb *redis.Client) *ItemCache {
	return &ItemCache{rdb: rdb, ttl: itemCacheTTL}
}

func (c *ItemCache) key(host, code string) string {
	return "stoklink:item:" + host + ":" + code
}

// Get returns a cached item. A miss, a decode failure or a Redis error all
// report false; the caller falls through to the ERP.
func (c *ItemCache) Get(ctx context.Context, host, code string) (*accurate.Item, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.key(host, code)).Bytes()
	if err != nil {
		return nil, false
	}
	var item accurate.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, false
	}
	return &item, true
}

// Set stores an item. Failures are ignored; the cache is best-effort.
func (c *ItemCache) Set(ctx context.Context, host, code string, item *accurate.Item) {
	if c == nil || c.rdb == nil || item == nil {
		return
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, c.key(host, code), raw, c.ttl)
}
