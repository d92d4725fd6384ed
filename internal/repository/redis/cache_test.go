package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeroclaim/internal/domain/cache"
	"aeroclaim/internal/testsupport"
	pkgerrors "aeroclaim/pkg/errors"
)

func TestCacheStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	store := NewCacheStore(testsupport.NewTestRedis(t))
	ctx := context.Background()

	_, err := store.Get(ctx, cache.NamespaceFlightStatus, "LH123:2026-08-15")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrCacheMiss))

	payload := []byte(`{"flight_number":"LH123"}`)
	require.NoError(t, store.Set(ctx, cache.NamespaceFlightStatus, "LH123:2026-08-15", payload, time.Hour))

	got, err := store.Get(ctx, cache.NamespaceFlightStatus, "LH123:2026-08-15")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCacheStoreNamespaceIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	store := NewCacheStore(testsupport.NewTestRedis(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, cache.NamespaceFlightStatus, "shared-key", []byte("a"), time.Hour))
	require.NoError(t, store.Set(ctx, cache.NamespaceRouteSearch, "shared-key", []byte("b"), time.Hour))

	got, err := store.Get(ctx, cache.NamespaceRouteSearch, "shared-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}

func TestCacheStoreZeroTTLPersists(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testsupport.NewTestRedis(t)
	store := NewCacheStore(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, cache.NamespaceAirportInfo, "FRA", []byte("{}"), 0))

	ttl, err := client.TTL(ctx, "aeroclaim:cache:airport-info:FRA").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "zero ttl must mean no expiry")
}

func TestCacheStoreDeleteRemovesHitCounter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	store := NewCacheStore(testsupport.NewTestRedis(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, cache.NamespaceFlightStatus, "k1", []byte("v"), time.Hour))

	count, err := store.IncrementHits(ctx, cache.NamespaceFlightStatus, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.Delete(ctx, cache.NamespaceFlightStatus, "k1"))

	_, err = store.Get(ctx, cache.NamespaceFlightStatus, "k1")
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrCacheMiss))

	// Counter starts over after deletion
	count, err = store.IncrementHits(ctx, cache.NamespaceFlightStatus, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCacheStoreClearNamespace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	store := NewCacheStore(testsupport.NewTestRedis(t))
	ctx := context.Background()

	for _, key := range []string{"k1", "k2", "k3"} {
		require.NoError(t, store.Set(ctx, cache.NamespaceFlightStatus, key, []byte("v"), time.Hour))
	}
	require.NoError(t, store.Set(ctx, cache.NamespaceAirportInfo, "FRA", []byte("{}"), 0))

	deleted, err := store.ClearNamespace(ctx, cache.NamespaceFlightStatus)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = store.Get(ctx, cache.NamespaceFlightStatus, "k1")
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrCacheMiss))

	// Other namespaces untouched
	_, err = store.Get(ctx, cache.NamespaceAirportInfo, "FRA")
	assert.NoError(t, err)
}

func TestCacheStoreIncrementHitsAccumulates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	store := NewCacheStore(testsupport.NewTestRedis(t))
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, err := store.IncrementHits(ctx, cache.NamespaceRouteSearch, "FRA:MAD:2026-08-15")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}
