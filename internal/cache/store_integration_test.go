//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-sdk/internal/cache"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/testsupport"
)

const integrationJSON = `{"f":{"flag":{"t":0,"v":{"b":true}}}}`

// exerciseStore runs the Store contract against a live backend.
func exerciseStore(t *testing.T, store cache.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Should return empty for an unknown key", func(t *testing.T) {
		v, err := store.Get(ctx, cache.KeyFor(uuid.NewString()))
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("Should persist a serialized entry and parse it back", func(t *testing.T) {
		// Arrange
		cfg, err := model.Parse([]byte(integrationJSON))
		require.NoError(t, err)
		entry := cache.NewEntry(integrationJSON, cfg, `"etag-1"`, time.Now())
		key := cache.KeyFor(uuid.NewString())

		// Act
		require.NoError(t, store.Set(ctx, key, entry.Serialize()))
		raw, err := store.Get(ctx, key)
		require.NoError(t, err)
		parsed, err := cache.ParseEntry(raw)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, entry.ETag, parsed.ETag)
		assert.True(t, entry.FetchTime.Equal(parsed.FetchTime))
		assert.True(t, parsed.Config.Settings["flag"].Value.Value().Bool())
	})

	t.Run("Should overwrite with the last write", func(t *testing.T) {
		key := cache.KeyFor(uuid.NewString())

		require.NoError(t, store.Set(ctx, key, "first"))
		require.NoError(t, store.Set(ctx, key, "second"))

		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", v)
	})
}

func TestRedisStore_Integration(t *testing.T) {
	ctx := context.Background()
	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	exerciseStore(t, redisCtr.Store)

	t.Run("Should namespace keys and apply the TTL", func(t *testing.T) {
		key := cache.KeyFor(uuid.NewString())
		require.NoError(t, redisCtr.Store.Set(ctx, key, "value"))

		ttl, err := redisCtr.Client.TTL(ctx, cache.KeyPrefix+":"+key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("Should report healthy", func(t *testing.T) {
		assert.Equal(t, "redis", redisCtr.Store.Name())
		assert.NoError(t, redisCtr.Store.Check(ctx))
	})

	t.Run("Should count errors once the server is gone", func(t *testing.T) {
		broken := cache.NewRedisStore(redisCtr.Client, 0)
		require.NoError(t, redisCtr.Client.Close())

		testsupport.AssertMetricDelta(t, "heimdall_cache_errors_total",
			map[string]string{"backend": "redis", "op": "get"}, 1, func() {
				_, err := broken.Get(ctx, "any")
				assert.Error(t, err)
			})
	})
}

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()
	pgCtr, err := testsupport.StartPostgresContainer(ctx)
	require.NoError(t, err)
	defer pgCtr.Terminate(ctx)

	exerciseStore(t, pgCtr.Store)

	t.Run("Should tolerate repeated schema creation", func(t *testing.T) {
		assert.NoError(t, pgCtr.Store.EnsureSchema(ctx))
	})

	t.Run("Should report healthy", func(t *testing.T) {
		assert.Equal(t, "postgres", pgCtr.Store.Name())
		assert.NoError(t, pgCtr.Store.Check(ctx))
	})
}
