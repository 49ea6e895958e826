package agentapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-sdk/internal/client"
	"github.com/rafaeljc/heimdall-sdk/internal/configservice"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/override"
	"github.com/rafaeljc/heimdall-sdk/internal/testsupport"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

const testAPIKey = "agent-test-key"

const localConfig = `{"f":{
	"darkMode":{"t":0,"v":{"b":false},"i":"v-off","r":[
		{"c":[{"u":{"a":"Country","c":0,"l":["NL"]}}],"s":{"v":{"b":true},"i":"v-on"}}
	]},
	"plan":{"t":1,"v":{"s":"free"}},
	"broken":{"t":1,"v":{"s":"x"},"r":[{"c":[{"p":{"f":"missing","c":0,"v":{"b":true}}}],"s":{"v":{"s":"y"}}}]}
}}`

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func newLocalClient(t *testing.T) *client.Client {
	t.Helper()
	o, err := override.Parse([]byte(localConfig), override.FormatJSON, override.LocalOnly)
	require.NoError(t, err)
	c, err := client.New(client.Options{Overrides: o, Logger: logger.Discard()})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func newTestAPI(t *testing.T, eval Evaluator) *API {
	t.Helper()
	return NewAPI(eval, logger.Discard(), hashKey(testAPIKey))
}

func do(t *testing.T, api *API, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	api.Router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

// stubEvaluator answers Refresh with a fixed error.
type stubEvaluator struct {
	refreshErr error
}

func (s *stubEvaluator) GetValueDetails(_ context.Context, key string, def model.Value, _ *user.User) client.Details[model.Value] {
	return client.Details[model.Value]{Value: def, Data: client.DetailsData{Key: key, IsDefaultValue: true}}
}

func (s *stubEvaluator) GetAllValueDetails(context.Context, *user.User) []client.Details[model.Value] {
	return nil
}

func (s *stubEvaluator) GetAllKeys(context.Context) []string { return nil }

func (s *stubEvaluator) Refresh(context.Context) error { return s.refreshErr }

func TestNewAPI(t *testing.T) {
	t.Parallel()

	t.Run("Should panic without an evaluator", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { NewAPI(nil, nil, "hash") })
	})

	t.Run("Should panic without an API key hash", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { NewAPI(&stubEvaluator{}, nil, "") })
	})

	t.Run("Should allow a missing hash when auth is skipped", func(t *testing.T) {
		t.Parallel()
		assert.NotPanics(t, func() { NewAPIWithConfig(&stubEvaluator{}, nil, "", true) })
	})
}

func TestAPI_Authentication(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, &stubEvaluator{})

	tests := []struct {
		name     string
		headers  map[string]string
		path     string
		expected int
	}{
		{name: "Should accept the X-API-Key header", path: "/api/v1/keys", expected: http.StatusOK},
		{name: "Should accept a bearer token", path: "/api/v1/keys", headers: map[string]string{"X-API-Key": "", "Authorization": "Bearer " + testAPIKey}, expected: http.StatusOK},
		{name: "Should reject a missing key", path: "/api/v1/keys", headers: map[string]string{"X-API-Key": ""}, expected: http.StatusUnauthorized},
		{name: "Should reject a wrong key", path: "/api/v1/keys", headers: map[string]string{"X-API-Key": "wrong"}, expected: http.StatusUnauthorized},
		{name: "Should keep the health check public", path: "/health", headers: map[string]string{"X-API-Key": ""}, expected: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rr := do(t, api, http.MethodGet, tt.path, nil, tt.headers)

			assert.Equal(t, tt.expected, rr.Code)
			if tt.expected == http.StatusUnauthorized {
				assert.Equal(t, "ERR_UNAUTHORIZED", decode[ErrorResponse](t, rr).Code)
			}
		})
	}
}

func TestAPI_Evaluate(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, newLocalClient(t))

	t.Run("Should serve the base value", func(t *testing.T) {
		t.Parallel()

		rr := do(t, api, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{Key: "darkMode"}, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[EvaluationResponse](t, rr)
		assert.Equal(t, false, resp.Value)
		assert.Equal(t, "v-off", resp.VariationID)
		assert.False(t, resp.IsDefaultValue)
	})

	t.Run("Should target the user", func(t *testing.T) {
		t.Parallel()

		body := EvaluateRequest{Key: " darkMode ", User: &UserRequest{Identifier: "1", Country: "NL"}}
		rr := do(t, api, http.MethodPost, "/api/v1/evaluate", body, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[EvaluationResponse](t, rr)
		assert.Equal(t, true, resp.Value)
		assert.Equal(t, "v-on", resp.VariationID)
	})

	t.Run("Should return the default value with the reason", func(t *testing.T) {
		t.Parallel()

		rr := do(t, api, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{Key: "broken", DefaultValue: "fallback"}, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[EvaluationResponse](t, rr)
		assert.Equal(t, "fallback", resp.Value)
		assert.True(t, resp.IsDefaultValue)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("Should answer 404 for an unknown key", func(t *testing.T) {
		t.Parallel()

		rr := do(t, api, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{Key: "unknown"}, nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "ERR_NOT_FOUND", decode[ErrorResponse](t, rr).Code)
	})

	badRequests := []struct {
		name string
		body any
		code string
	}{
		{name: "Should reject malformed JSON", body: `{invalid-json`, code: "ERR_INVALID_JSON"},
		{name: "Should reject a missing key", body: EvaluateRequest{Key: "  "}, code: "ERR_INVALID_INPUT"},
		{name: "Should reject an unsupported default", body: `{"key":"plan","default_value":{"a":1}}`, code: "ERR_INVALID_INPUT"},
		{name: "Should reject mixed arrays", body: `{"key":"plan","user":{"identifier":"1","custom":{"roles":["a",1]}}}`, code: "ERR_INVALID_INPUT"},
	}
	for _, tt := range badRequests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rr := do(t, api, http.MethodPost, "/api/v1/evaluate", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rr).Code)
		})
	}
}

func TestAPI_Collections(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, newLocalClient(t))

	t.Run("Should list keys", func(t *testing.T) {
		t.Parallel()

		rr := do(t, api, http.MethodGet, "/api/v1/keys", nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"broken", "darkMode", "plan"}, decode[KeysResponse](t, rr).Keys)
	})

	t.Run("Should evaluate every flag", func(t *testing.T) {
		t.Parallel()

		body := EvaluateAllRequest{User: &UserRequest{Identifier: "1", Country: "NL"}}
		rr := do(t, api, http.MethodPost, "/api/v1/evaluate-all", body, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[EvaluateAllResponse](t, rr)
		require.Len(t, resp.Data, 3)
		assert.Equal(t, "darkMode", resp.Data[1].Key)
		assert.Equal(t, true, resp.Data[1].Value)
		assert.Equal(t, "free", resp.Data[2].Value)
		assert.True(t, resp.Data[0].IsDefaultValue)
	})

	t.Run("Should accept an empty body", func(t *testing.T) {
		t.Parallel()

		rr := do(t, api, http.MethodPost, "/api/v1/evaluate-all", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestAPI_Refresh(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "Should answer 204 on success", expected: http.StatusNoContent},
		{name: "Should answer 503 while offline", err: configservice.ErrOffline, expected: http.StatusServiceUnavailable},
		{name: "Should answer 503 after close", err: client.ErrClosed, expected: http.StatusServiceUnavailable},
		{name: "Should answer 502 on download failure", err: errors.New("boom"), expected: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newTestAPI(t, &stubEvaluator{refreshErr: tt.err})

			rr := do(t, api, http.MethodPost, "/api/v1/refresh", nil, nil)

			assert.Equal(t, tt.expected, rr.Code)
		})
	}
}

func TestAPI_RequestID(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, &stubEvaluator{})

	t.Run("Should echo the caller's request id", func(t *testing.T) {
		t.Parallel()

		rr := do(t, api, http.MethodGet, "/health", nil, map[string]string{RequestIDHeader: "req-123"})

		assert.Equal(t, "req-123", rr.Header().Get(RequestIDHeader))
	})

	t.Run("Should generate a request id", func(t *testing.T) {
		t.Parallel()

		rr := do(t, api, http.MethodGet, "/health", nil, nil)

		_, err := uuid.Parse(rr.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})
}

func TestAPI_Metrics(t *testing.T) {
	// Not parallel: asserts deltas on the global Prometheus registry.
	api := newTestAPI(t, newLocalClient(t))

	t.Run("Should label requests by route pattern", func(t *testing.T) {
		labels := map[string]string{"method": "POST", "route": "/api/v1/evaluate", "code": "404"}

		testsupport.AssertMetricDelta(t, "heimdall_agent_http_requests_total", labels, 1, func() {
			rr := do(t, api, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{Key: "unknown"}, nil)
			require.Equal(t, http.StatusNotFound, rr.Code)
		})
		testsupport.AssertHistogramRecorded(t, "heimdall_agent_http_handling_seconds", map[string]string{"method": "POST", "route": "/api/v1/evaluate"})
	})

	t.Run("Should collapse unknown routes", func(t *testing.T) {
		labels := map[string]string{"method": "GET", "route": "not_found", "code": "404"}

		testsupport.AssertMetricDelta(t, "heimdall_agent_http_requests_total", labels, 1, func() {
			rr := do(t, api, http.MethodGet, "/admin.php", nil, nil)
			require.Equal(t, http.StatusNotFound, rr.Code)
		})
	})
}
