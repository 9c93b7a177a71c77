package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	availabilityKeyFmt = "stock:avail:%d:%d"
	vendorsKeyFmt      = "stock:vendors:%d"
)

// AvailabilityCache is a cache-aside layer over the availability queries.
// Concurrent cold reads for the same key collapse through singleflight.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewAvailabilityCache instantiates the cache helper. A nil client disables
// caching; loaders are invoked directly.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

// Stock returns the cached availability for the pair, populating on miss.
func (c *AvailabilityCache) Stock(ctx context.Context, productID, vendorID int64, loader func(context.Context) (int64, error)) (int64, error) {
	if loader == nil {
		return 0, errors.New("inventory: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := fmt.Sprintf(availabilityKeyFmt, productID, vendorID)
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		if total, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return total, nil
		}
	}
	value, err, _ := c.group.Do(key, func() (any, error) {
		total, err := loader(ctx)
		if err != nil {
			return int64(0), err
		}
		if err := c.client.Set(ctx, key, strconv.FormatInt(total, 10), c.ttl).Err(); err != nil {
			return int64(0), err
		}
		return total, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(int64), nil
}

// Vendors returns the cached vendor availability list for a product.
func (c *AvailabilityCache) Vendors(ctx context.Context, productID int64, loader func(context.Context) ([]VendorStock, error)) ([]VendorStock, error) {
	if loader == nil {
		return nil, errors.New("inventory: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := fmt.Sprintf(vendorsKeyFmt, productID)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached []VendorStock
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}
	value, err, _ := c.group.Do(key, func() (any, error) {
		list, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]VendorStock), nil
}

// Invalidate drops the cached entries touched by a mutation of the pair.
func (c *AvailabilityCache) Invalidate(ctx context.Context, productID, vendorID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx,
		fmt.Sprintf(availabilityKeyFmt, productID, vendorID),
		fmt.Sprintf(vendorsKeyFmt, productID),
	).Err()
}
