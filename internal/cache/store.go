// Package cache provides the persistence layer for config JSON documents.
// A Store keeps one serialized Entry per SDK key; implementations exist for an
// in-process cache (otter), Redis and PostgreSQL so several processes can share
// the latest downloaded config.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
)

// Store defines the contract of an external config cache.
// Stores are last-write-wins; no transactional guarantees are expected.
type Store interface {
	// Get returns the cached value for key, or "" when absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
}

// configFileName and formatVersion are mixed into the cache key so entries of
// different SDK keys or serialization versions never collide.
const (
	configFileName = "config_v6.json"
	formatVersion  = "v2"
)

// KeyFor derives the cache key for an SDK key: the hex encoded SHA-1 of
// "<sdkKey>_config_v6.json_v2".
func KeyFor(sdkKey string) string {
	sum := sha1.Sum([]byte(sdkKey + "_" + configFileName + "_" + formatVersion))
	return hex.EncodeToString(sum[:])
}
