package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// redisURLConfig swaps the Redis components of env for a single URL.
func redisURLConfig(env map[string]string, rawURL string) map[string]string {
	for _, k := range []string{"HEIMDALL_REDIS_HOST", "HEIMDALL_REDIS_PORT", "HEIMDALL_REDIS_PASSWORD", "HEIMDALL_REDIS_TLS_ENABLED"} {
		delete(env, k)
	}
	env["HEIMDALL_REDIS_URL"] = rawURL
	return env
}

func TestRedisConfig_Validation(t *testing.T) {
	tests := []loadCase{
		{
			name:    "Should apply store-sized pool defaults",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10, cfg.Redis.PoolSize)
				assert.Equal(t, 1, cfg.Redis.MinIdleConns)
				assert.Equal(t, 3*time.Second, cfg.Redis.ReadTimeout)
				assert.Equal(t, "localhost:6379", cfg.Redis.Address())
			},
		},
		{
			name:    "Should prefer the URL as address",
			envVars: redisURLConfig(minimalRequiredConfig(), "redis://cache.internal:6380/2"),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis://cache.internal:6380/2", cfg.Redis.Address())
				assert.True(t, cfg.Redis.IsConfigured())
			},
		},
		{
			name:    "Should accept a URL without database number",
			envVars: redisURLConfig(minimalRequiredConfig(), "redis://cache.internal:6379"),
		},
		{
			name:    "Should accept a TLS URL in production",
			envVars: redisURLConfig(validProductionConfig(), "rediss://:password@redis.example.com:6379/0"),
		},
		{
			name:    "Should reject a URL with a non-redis scheme",
			envVars: redisURLConfig(minimalRequiredConfig(), "http://cache.internal:6379/0"),
			wantErr: true,
		},
		{
			name:    "Should reject a URL database above 15",
			envVars: redisURLConfig(minimalRequiredConfig(), "redis://cache.internal:6379/16"),
			wantErr: true,
		},
		{
			name:    "Should reject a non-numeric URL database",
			envVars: redisURLConfig(minimalRequiredConfig(), "redis://cache.internal:6379/abc"),
			wantErr: true,
		},
		{
			name:    "Should reject a DB number out of range",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_DB": "16"}),
			wantErr: true,
		},
		{
			name:    "Should reject a non-numeric port",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_PORT": "abc"}),
			wantErr: true,
		},
		{
			name:    "Should reject a host with surrounding whitespace",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_HOST": " localhost"}),
			wantErr: true,
		},
		{
			name:    "Should reject more idle connections than the pool holds",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_POOL_SIZE": "2", "HEIMDALL_REDIS_MIN_IDLE_CONNS": "3"}),
			wantErr: true,
		},
		{
			name:    "Should reject zero ping retries",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_PING_MAX_RETRIES": "0"}),
			wantErr: true,
		},
		{
			name:    "Should reject a malformed ping backoff",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_PING_BACKOFF": "soon"}),
			wantErr: true,
		},
		{
			name:    "Should allow a passwordless Redis in development",
			envVars: mergeEnvVars(map[string]string{"HEIMDALL_REDIS_PASSWORD": ""}),
			want: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Redis.Password)
			},
		},
		{
			name: "Should require a password in production",
			envVars: func() map[string]string {
				env := validProductionConfig()
				delete(env, "HEIMDALL_REDIS_PASSWORD")
				return env
			}(),
			wantErr: true,
		},
		{
			name: "Should reject a short password in production",
			envVars: func() map[string]string {
				env := validProductionConfig()
				env["HEIMDALL_REDIS_PASSWORD"] = "short"
				return env
			}(),
			wantErr: true,
		},
		{
			name: "Should require TLS in production",
			envVars: func() map[string]string {
				env := validProductionConfig()
				env["HEIMDALL_REDIS_TLS_ENABLED"] = "false"
				return env
			}(),
			wantErr: true,
		},
	}

	for i := range tests {
		tests[i].envVars = withBackend(CacheBackendRedis, tests[i].envVars)
	}
	runLoadCases(t, tests)
}

func TestRedisConfig_IgnoredForOtherBackends(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should not validate Redis when the memory backend is selected",
			envVars: withBackend(CacheBackendMemory, mergeEnvVars(map[string]string{"HEIMDALL_REDIS_PORT": "abc"})),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
			},
		},
	})
}
