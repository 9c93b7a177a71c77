package inventory

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *AvailabilityCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAvailabilityCache(client, time.Minute)
}

func TestStockCachesLoaderResult(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (int64, error) {
		calls++
		return 42, nil
	}

	total, err := cache.Stock(ctx, 7, 3, loader)
	require.NoError(t, err)
	require.Equal(t, int64(42), total)

	total, err = cache.Stock(ctx, 7, 3, loader)
	require.NoError(t, err)
	require.Equal(t, int64(42), total)
	require.Equal(t, 1, calls)
}

func TestInvalidateForcesReload(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	stock := int64(10)
	loader := func(context.Context) (int64, error) {
		return stock, nil
	}

	total, err := cache.Stock(ctx, 7, 3, loader)
	require.NoError(t, err)
	require.Equal(t, int64(10), total)

	stock = 4
	cache.Invalidate(ctx, 7, 3)

	total, err = cache.Stock(ctx, 7, 3, loader)
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
}

func TestVendorsCachesList(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) ([]VendorStock, error) {
		calls++
		return []VendorStock{{VendorID: 3, Stock: 12}, {VendorID: 5, Stock: 7}}, nil
	}

	list, err := cache.Vendors(ctx, 7, loader)
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = cache.Vendors(ctx, 7, loader)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 1, calls)

	// Invalidating any pair of the product drops the vendor list too.
	cache.Invalidate(ctx, 7, 3)
	_, err = cache.Vendors(ctx, 7, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestNilClientFallsThroughToLoader(t *testing.T) {
	cache := NewAvailabilityCache(nil, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (int64, error) {
		calls++
		return 9, nil
	}

	for i := 0; i < 2; i++ {
		total, err := cache.Stock(ctx, 1, 1, loader)
		require.NoError(t, err)
		require.Equal(t, int64(9), total)
	}
	require.Equal(t, 2, calls)
}
