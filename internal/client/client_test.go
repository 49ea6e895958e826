package client

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-sdk/internal/configservice"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/override"
	"github.com/rafaeljc/heimdall-sdk/internal/testsupport"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

const testSDKKey = "PKDVCLf-Hq-h-kCzMp-L7Q/HhOWfwVtZ0mb30i9wi17GQ"

const testConfig = `{"p":{"s":"test-salt"},"f":{
	"enabledFeature":{"t":0,"v":{"b":true},"i":"v-bool"},
	"greeting":{"t":1,"v":{"s":"hello"},"i":"v-default","r":[
		{"c":[{"u":{"a":"Email","c":2,"l":["@example.com"]}}],"s":{"v":{"s":"hi insider"},"i":"v-insider"}}
	]},
	"maxItems":{"t":2,"v":{"i":10},"i":"v-int"},
	"ratio":{"t":3,"v":{"d":0.25},"i":"v-double"},
	"broken":{"t":1,"v":{"s":"x"},"r":[{"c":[{"p":{"f":"missing","c":0,"v":{"b":true}}}],"s":{"v":{"s":"y"}}}]}
}}`

// newCDN serves body with a fixed ETag and counts requests.
func newCDN(t *testing.T, body *atomic.Value) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		b := body.Load().(string)
		w.Header().Set("ETag", `"`+time.Now().String()+`"`)
		_, _ = w.Write([]byte(b))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newManualClient(t *testing.T, opts Options) *Client {
	t.Helper()
	var body atomic.Value
	body.Store(testConfig)
	server, _ := newCDN(t, &body)

	opts.SDKKey = testSDKKey
	opts.BaseURL = server.URL
	opts.PollingMode = configservice.Manual
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.Refresh(context.Background()))
	return c
}

func TestValidateSDKKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		key       string
		customURL bool
		wantErr   error
	}{
		{name: "Should accept a legacy key", key: testSDKKey},
		{name: "Should accept a prefixed key", key: "heimdall-sdk-1/PKDVCLf-Hq-h-kCzMp-L7Q/HhOWfwVtZ0mb30i9wi17GQ"},
		{name: "Should reject an empty key", key: "", wantErr: ErrEmptySDKKey},
		{name: "Should reject an empty key with a custom URL", key: "", customURL: true, wantErr: ErrEmptySDKKey},
		{name: "Should reject a short key", key: "abc/def", wantErr: ErrInvalidSDKKey},
		{name: "Should reject a wrong prefix", key: "other-sdk-1/PKDVCLf-Hq-h-kCzMp-L7Q/HhOWfwVtZ0mb30i9wi17GQ", wantErr: ErrInvalidSDKKey},
		{name: "Should accept any key with a custom URL", key: "heimdall-proxy/my-proxy", customURL: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateSDKKey(tt.key, tt.customURL)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("Should fail without an SDK key", func(t *testing.T) {
		t.Parallel()

		_, err := New(Options{Logger: logger.Discard()})

		assert.ErrorIs(t, err, ErrEmptySDKKey)
	})

	t.Run("Should accept a missing key with local only overrides", func(t *testing.T) {
		t.Parallel()

		// Arrange
		o, err := override.FromMap(map[string]any{"enabledFeature": true}, override.LocalOnly)
		require.NoError(t, err)

		// Act
		c, err := New(Options{Overrides: o, Logger: logger.Discard()})

		// Assert
		require.NoError(t, err)
		t.Cleanup(c.Close)
		assert.True(t, c.GetBoolValue(context.Background(), "enabledFeature", false, nil))
		assert.True(t, c.IsOffline())
		assert.NoError(t, c.Check(context.Background()))
	})

	t.Run("Should report the configured polling mode", func(t *testing.T) {
		t.Parallel()

		c := newManualClient(t, Options{})

		assert.Equal(t, configservice.Manual, c.PollingMode())
	})
}

func TestClient_TypedGetters(t *testing.T) {
	t.Parallel()

	c := newManualClient(t, Options{})
	ctx := context.Background()

	t.Run("Should return the bool value", func(t *testing.T) {
		t.Parallel()
		assert.True(t, c.GetBoolValue(ctx, "enabledFeature", false, nil))
	})

	t.Run("Should return the string value", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "hello", c.GetStringValue(ctx, "greeting", "", nil))
	})

	t.Run("Should return the int value", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 10, c.GetIntValue(ctx, "maxItems", 0, nil))
	})

	t.Run("Should return the float value", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 0.25, c.GetFloatValue(ctx, "ratio", 0, nil), 1e-9)
	})

	t.Run("Should serve the targeted value to a matching user", func(t *testing.T) {
		t.Parallel()

		// Arrange
		u := &user.User{Identifier: "42", Email: "jane@example.com"}

		// Act
		d := c.GetStringValueDetails(ctx, "greeting", "", u)

		// Assert
		assert.Equal(t, "hi insider", d.Value)
		assert.Equal(t, "v-insider", d.Data.VariationID)
		assert.False(t, d.Data.IsDefaultValue)
		assert.NoError(t, d.Data.Error)
		assert.NotNil(t, d.Data.MatchedTargetingRule)
		assert.Nil(t, d.Data.MatchedPercentageOption)
		assert.Same(t, u, d.Data.User)
		assert.False(t, d.Data.FetchTime.IsZero())
	})
}

func TestClient_EvaluationErrors(t *testing.T) {
	t.Parallel()

	t.Run("Should return the default when no config is available", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var reported atomic.Int32
		c, err := New(Options{
			SDKKey:      testSDKKey,
			PollingMode: configservice.Manual,
			Logger:      logger.Discard(),
			Hooks:       Hooks{OnError: func(string, error) { reported.Add(1) }},
		})
		require.NoError(t, err)
		t.Cleanup(c.Close)

		// Act
		d := c.GetBoolValueDetails(context.Background(), "enabledFeature", true, nil)

		// Assert
		assert.True(t, d.Value)
		assert.True(t, d.Data.IsDefaultValue)
		assert.ErrorIs(t, d.Data.Error, ErrConfigMissing)
		assert.EqualValues(t, 1, reported.Load())
		assert.Nil(t, c.GetAllKeys(context.Background()))
	})

	c := newManualClient(t, Options{})

	tests := []struct {
		name    string
		eval    func() (any, DetailsData)
		want    any
		wantErr error
	}{
		{
			name: "Should report an unknown key",
			eval: func() (any, DetailsData) {
				d := c.GetStringValueDetails(context.Background(), "unknown", "fallback", nil)
				return d.Value, d.Data
			},
			want:    "fallback",
			wantErr: ErrSettingKeyMissing,
		},
		{
			name: "Should report a type mismatch",
			eval: func() (any, DetailsData) {
				d := c.GetIntValueDetails(context.Background(), "greeting", 7, nil)
				return d.Value, d.Data
			},
			want:    7,
			wantErr: ErrTypeMismatch,
		},
		{
			name: "Should not treat a double setting as int",
			eval: func() (any, DetailsData) {
				d := c.GetIntValueDetails(context.Background(), "ratio", 3, nil)
				return d.Value, d.Data
			},
			want:    3,
			wantErr: ErrTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, data := tt.eval()

			assert.Equal(t, tt.want, got)
			assert.True(t, data.IsDefaultValue)
			assert.ErrorIs(t, data.Error, tt.wantErr)
		})
	}

	t.Run("Should return the default on structural errors", func(t *testing.T) {
		t.Parallel()

		// Act
		d := c.GetStringValueDetails(context.Background(), "broken", "fallback", nil)

		// Assert
		assert.Equal(t, "fallback", d.Value)
		assert.True(t, d.Data.IsDefaultValue)
		assert.ErrorContains(t, d.Data.Error, "missing")
	})
}

func TestClient_Collections(t *testing.T) {
	t.Parallel()

	c := newManualClient(t, Options{})
	ctx := context.Background()

	t.Run("Should list keys in order", func(t *testing.T) {
		t.Parallel()

		keys := c.GetAllKeys(ctx)

		assert.Equal(t, []string{"broken", "enabledFeature", "greeting", "maxItems", "ratio"}, keys)
	})

	t.Run("Should evaluate all values skipping failures", func(t *testing.T) {
		t.Parallel()

		values := c.GetAllValues(ctx, &user.User{Identifier: "1", Email: "a@example.com"})

		assert.Equal(t, map[string]any{
			"enabledFeature": true,
			"greeting":       "hi insider",
			"maxItems":       10,
			"ratio":          0.25,
		}, values)
	})

	t.Run("Should find the setting behind a variation ID", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			variationID string
			key         string
			value       any
		}{
			{variationID: "v-bool", key: "enabledFeature", value: true},
			{variationID: "v-insider", key: "greeting", value: "hi insider"},
			{variationID: "v-double", key: "ratio", value: 0.25},
		}
		for _, tt := range tests {
			key, v, ok := c.GetKeyAndValue(ctx, tt.variationID)

			require.True(t, ok, tt.variationID)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, v.Any())
		}

		_, _, ok := c.GetKeyAndValue(ctx, "nope")
		assert.False(t, ok)
	})
}

func TestClient_DefaultUser(t *testing.T) {
	t.Parallel()

	// Arrange
	c := newManualClient(t, Options{DefaultUser: &user.User{Identifier: "1", Email: "x@example.com"}})
	ctx := context.Background()

	// Act & Assert
	assert.Equal(t, "hi insider", c.GetStringValue(ctx, "greeting", "", nil))
	assert.Equal(t, "hello", c.GetStringValue(ctx, "greeting", "", &user.User{Identifier: "2"}))

	c.ClearDefaultUser()
	assert.Equal(t, "hello", c.GetStringValue(ctx, "greeting", "", nil))

	c.SetDefaultUser(&user.User{Identifier: "3", Email: "y@example.com"})
	assert.Equal(t, "hi insider", c.GetStringValue(ctx, "greeting", "", nil))
}

func TestClient_Overrides(t *testing.T) {
	t.Parallel()

	// Arrange
	o, err := override.FromMap(map[string]any{"greeting": "local", "extra": 1.5}, override.LocalOverRemote)
	require.NoError(t, err)

	// Act
	c := newManualClient(t, Options{Overrides: o})

	// Assert
	ctx := context.Background()
	assert.Equal(t, "local", c.GetStringValue(ctx, "greeting", "", nil))
	assert.True(t, c.GetBoolValue(ctx, "enabledFeature", false, nil))
	assert.InDelta(t, 1.5, c.GetFloatValue(ctx, "extra", 0, nil), 1e-9)
}

func TestClient_Hooks(t *testing.T) {
	t.Parallel()

	t.Run("Should notify readiness, changes and evaluations", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ready := make(chan struct{})
		var mu sync.Mutex
		var changed []map[string]*model.Setting
		var evaluated []string

		var body atomic.Value
		body.Store(testConfig)
		server, _ := newCDN(t, &body)

		c, err := New(Options{
			SDKKey:      testSDKKey,
			BaseURL:     server.URL,
			PollingMode: configservice.AutoPoll,
			Logger:      logger.Discard(),
			Hooks: Hooks{
				OnClientReady: func() { close(ready) },
				OnConfigChanged: func(s map[string]*model.Setting) {
					mu.Lock()
					changed = append(changed, s)
					mu.Unlock()
				},
				OnFlagEvaluated: func(d Details[model.Value]) {
					mu.Lock()
					evaluated = append(evaluated, d.Data.Key)
					mu.Unlock()
				},
			},
		})
		require.NoError(t, err)
		t.Cleanup(c.Close)

		// Act
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
			t.Fatal("client did not become ready")
		}
		c.GetBoolValue(context.Background(), "enabledFeature", false, nil)

		// Assert
		mu.Lock()
		defer mu.Unlock()
		require.Len(t, changed, 1)
		assert.Contains(t, changed[0], "greeting")
		assert.Equal(t, []string{"enabledFeature"}, evaluated)
	})
}

func TestClient_EvaluationLog(t *testing.T) {
	t.Parallel()

	// Arrange
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	c := newManualClient(t, Options{Logger: log})

	// Act
	d := c.GetBoolValueDetails(context.Background(), "enabledFeature", false, nil)

	// Assert
	assert.Equal(t, "Evaluating 'enabledFeature'\n  Returning 'true'.", d.Data.EvaluationLog)
	assert.Contains(t, buf.String(), `"event_id":5000`)
}

func TestClient_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("Should refuse to refresh after Close", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newManualClient(t, Options{})

		// Act
		c.Close()
		c.Close()

		// Assert
		assert.ErrorIs(t, c.Refresh(context.Background()), ErrClosed)
		assert.ErrorIs(t, c.Check(context.Background()), ErrClosed)
		assert.Equal(t, "hello", c.GetStringValue(context.Background(), "greeting", "", nil))
	})

	t.Run("Should toggle offline mode", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newManualClient(t, Options{})

		// Act
		c.SetOffline()
		offlineErr := c.Refresh(context.Background())
		c.SetOnline()

		// Assert
		assert.ErrorIs(t, offlineErr, configservice.ErrOffline)
		assert.False(t, c.IsOffline())
		assert.NoError(t, c.Refresh(context.Background()))
	})
}

func TestClient_EvaluationMetrics(t *testing.T) {
	// Not parallel: asserts deltas on the global Prometheus registry.
	c := newManualClient(t, Options{})
	ctx := context.Background()

	testsupport.AssertMetricDelta(t, "heimdall_sdk_evaluations_total", map[string]string{"result": "success"}, 1, func() {
		c.GetBoolValue(ctx, "enabledFeature", false, nil)
	})
	testsupport.AssertMetricDelta(t, "heimdall_sdk_evaluations_total", map[string]string{"result": "error"}, 1, func() {
		c.GetBoolValue(ctx, "unknown", false, nil)
	})
	testsupport.AssertHistogramRecorded(t, "heimdall_sdk_evaluation_duration_seconds", nil)
}
