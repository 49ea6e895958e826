package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-sdk/internal/cache"
	"github.com/rafaeljc/heimdall-sdk/internal/config"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
)

func runtimeConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flags.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flags:\n  enabledFeature: true\n"), 0o600))

	return &config.Config{
		SDK: config.SDKConfig{
			PollingMode:      config.PollingModeManual,
			PollInterval:     time.Minute,
			CacheTTL:         time.Minute,
			HTTPTimeout:      time.Second,
			DataGovernance:   "global",
			OverrideFile:     path,
			OverrideBehavior: config.OverrideLocalOnly,
		},
		Cache: config.CacheConfig{
			Backend:        backend,
			MemoryCapacity: 10,
			MemoryTTL:      time.Hour,
		},
	}
}

func TestNewRuntime(t *testing.T) {
	t.Parallel()

	t.Run("Should wire the memory backend", func(t *testing.T) {
		t.Parallel()

		// Act
		rt, err := NewRuntime(context.Background(), runtimeConfig(t, config.CacheBackendMemory), logger.Discard())

		// Assert
		require.NoError(t, err)
		t.Cleanup(rt.Close)
		assert.IsType(t, &cache.MemoryStore{}, rt.Store)
		assert.Len(t, rt.Checkers(), 1)
		assert.True(t, rt.Client.GetBoolValue(context.Background(), "enabledFeature", false, nil))
	})

	t.Run("Should run without a cache backend", func(t *testing.T) {
		t.Parallel()

		rt, err := NewRuntime(context.Background(), runtimeConfig(t, config.CacheBackendNone), logger.Discard())

		require.NoError(t, err)
		t.Cleanup(rt.Close)
		assert.Nil(t, rt.Store)
	})

	t.Run("Should reject an unknown polling mode", func(t *testing.T) {
		t.Parallel()

		cfg := runtimeConfig(t, config.CacheBackendNone)
		cfg.SDK.PollingMode = "sometimes"

		_, err := NewRuntime(context.Background(), cfg, logger.Discard())

		assert.ErrorContains(t, err, "unknown polling mode")
	})

	t.Run("Should fail for a missing override file", func(t *testing.T) {
		t.Parallel()

		cfg := runtimeConfig(t, config.CacheBackendNone)
		cfg.SDK.OverrideFile = filepath.Join(t.TempDir(), "absent.json")

		_, err := NewRuntime(context.Background(), cfg, logger.Discard())

		assert.ErrorContains(t, err, "failed to read override file")
	})

	t.Run("Should require an SDK key without local only overrides", func(t *testing.T) {
		t.Parallel()

		cfg := runtimeConfig(t, config.CacheBackendNone)
		cfg.SDK.OverrideBehavior = config.OverrideLocalOverRemote

		_, err := NewRuntime(context.Background(), cfg, logger.Discard())

		assert.ErrorIs(t, err, ErrEmptySDKKey)
	})
}
