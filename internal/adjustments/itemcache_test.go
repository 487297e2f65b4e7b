package adjustments

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stoklink/stoklink/internal/accurate"
)

func testItemCache(t *testing.T) *ItemCache {
	t.Helper()
	srv := miniredis.RunT(t)
	return NewItemCache(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
}

func TestItemCacheRoundTrip(t *testing.T) {
	cache := testItemCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "https://zeus.accurate.id", "W-1")
	require.False(t, ok)

	cache.Set(ctx, "https://zeus.accurate.id", "W-1", &accurate.Item{ID: 42, Name: "Widget", No: "W-1"})

	item, ok := cache.Get(ctx, "https://zeus.accurate.id", "W-1")
	require.True(t, ok)
	require.Equal(t, int64(42), item.ID)
	require.Equal(t, "Widget", item.Name)

	// Same code on another database host is a different entry.
	_, ok = cache.Get(ctx, "https://hera.accurate.id", "W-1")
	require.False(t, ok)
}

func TestFindItemUsesCache(t *testing.T) {
	cache := testItemCache(t)
	erp := &fakeERP{items: map[string]*accurate.Item{"W-1": {ID: 42, Name: "Widget", No: "W-1"}}}
	svc := NewService(erp, nil)
	svc.UseItemCache(cache)

	creds := accurate.Credentials{Host: "https://zeus.accurate.id"}
	ctx := context.Background()

	item, err := svc.FindItem(ctx, creds, "W-1")
	require.NoError(t, err)
	require.Equal(t, int64(42), item.ID)

	item, err = svc.FindItem(ctx, creds, "W-1")
	require.NoError(t, err)
	require.Equal(t, int64(42), item.ID)
	require.Equal(t, 1, erp.findCalls)

	// Misses are not cached: each lookup for an unknown code hits the ERP.
	missing, err := svc.FindItem(ctx, creds, "NOPE")
	require.NoError(t, err)
	require.Nil(t, missing)
	_, err = svc.FindItem(ctx, creds, "NOPE")
	require.NoError(t, err)
	require.Equal(t, 3, erp.findCalls)
}

func TestFindItemWithoutCache(t *testing.T) {
	erp := &fakeERP{items: map[string]*accurate.Item{"W-1": {ID: 42, Name: "Widget", No: "W-1"}}}
	svc := NewService(erp, nil)

	item, err := svc.FindItem(context.Background(), accurate.Credentials{}, "W-1")
	require.NoError(t, err)
	require.Equal(t, "Widget", item.Name)
}
