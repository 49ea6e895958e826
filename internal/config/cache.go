package config

import "time"

// Cache backends accepted by CacheConfig.Backend.
const (
	CacheBackendNone     = "none"
	CacheBackendMemory   = "memory"
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
)

// CacheConfig selects the external store shared config entries are persisted to.
type CacheConfig struct {
	Backend string `envconfig:"BACKEND" default:"none" validate:"oneof=none memory redis postgres"`

	// MemoryCapacity bounds the in-process store (number of SDK keys).
	MemoryCapacity int           `envconfig:"MEMORY_CAPACITY" default:"100" validate:"min=1"`
	MemoryTTL      time.Duration `envconfig:"MEMORY_TTL" default:"24h" validate:"min=1s"`

	// RedisTTL of zero keeps entries until overwritten.
	RedisTTL time.Duration `envconfig:"REDIS_TTL" default:"0s" validate:"min=0"`

	PostgresTable string `envconfig:"POSTGRES_TABLE" default:"config_cache" validate:"max=63"`
}
