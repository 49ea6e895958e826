package client

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-sdk/internal/configservice"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
)

const otherSDKKey = "AAAAAAAAAAAAAAAAAAAAAA/BBBBBBBBBBBBBBBBBBBBBB"

func registryOptions(key string) Options {
	return Options{
		SDKKey:      key,
		PollingMode: configservice.Manual,
		Offline:     true,
		Logger:      logger.Discard(),
	}
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	t.Run("Should return the same client for the same SDK key", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logs bytes.Buffer
		r := NewRegistry(slog.New(slog.NewJSONHandler(&logs, nil)))
		t.Cleanup(r.Close)

		// Act
		first, err := r.Get(registryOptions(testSDKKey))
		require.NoError(t, err)
		second, err := r.Get(registryOptions(testSDKKey))
		require.NoError(t, err)

		// Assert
		assert.Same(t, first, second)
		assert.Equal(t, 1, r.Len())
		assert.Contains(t, logs.String(), "there is an existing client instance")
		assert.Contains(t, logs.String(), "***wi17GQ")
		assert.NotContains(t, logs.String(), testSDKKey)
	})

	t.Run("Should keep one client per SDK key", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(logger.Discard())
		t.Cleanup(r.Close)

		a, err := r.Get(registryOptions(testSDKKey))
		require.NoError(t, err)
		b, err := r.Get(registryOptions(otherSDKKey))
		require.NoError(t, err)

		assert.NotSame(t, a, b)
		assert.Equal(t, 2, r.Len())
	})

	t.Run("Should create a single client under concurrent calls", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(logger.Discard())
		t.Cleanup(r.Close)

		const callers = 10
		got := make([]*Client, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := r.Get(registryOptions(testSDKKey))
				assert.NoError(t, err)
				got[i] = c
			}()
		}
		wg.Wait()

		for _, c := range got {
			assert.Same(t, got[0], c)
		}
		assert.Equal(t, 1, r.Len())
	})

	t.Run("Should not register a client that failed to build", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(logger.Discard())
		t.Cleanup(r.Close)

		_, err := r.Get(registryOptions(""))

		assert.ErrorIs(t, err, ErrEmptySDKKey)
		assert.Zero(t, r.Len())
	})
}

func TestRegistry_Close(t *testing.T) {
	t.Parallel()

	t.Run("Should forget a client closed by the caller", func(t *testing.T) {
		t.Parallel()

		// Arrange
		r := NewRegistry(logger.Discard())
		t.Cleanup(r.Close)
		first, err := r.Get(registryOptions(testSDKKey))
		require.NoError(t, err)

		// Act
		first.Close()
		second, err := r.Get(registryOptions(testSDKKey))

		// Assert
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("Should close every client and refuse new ones", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(logger.Discard())
		c, err := r.Get(registryOptions(testSDKKey))
		require.NoError(t, err)

		r.Close()

		assert.ErrorIs(t, c.Refresh(context.Background()), ErrClosed)
		_, err = r.Get(registryOptions(otherSDKKey))
		assert.ErrorIs(t, err, ErrClosed)
	})
}
