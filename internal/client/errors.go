package client

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrClosed is returned when a closed client or registry is used.
	ErrClosed = errors.New("client is closed")
	// ErrEmptySDKKey is returned when no SDK key is configured.
	ErrEmptySDKKey = errors.New("SDK key cannot be empty")
	// ErrInvalidSDKKey is returned for a malformed SDK key.
	ErrInvalidSDKKey = errors.New("SDK key is invalid")

	// ErrConfigMissing is reported when no config JSON is available.
	ErrConfigMissing = errors.New("config JSON is not present")
	// ErrSettingKeyMissing is reported for unknown setting keys.
	ErrSettingKeyMissing = errors.New("setting key not found in config JSON")
	// ErrTypeMismatch is reported when the default value type differs from
	// the setting type.
	ErrTypeMismatch = errors.New("setting type does not match default value type")
)

var (
	legacyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{22}/[A-Za-z0-9_-]{22}$`)
	sdkKeyPattern    = regexp.MustCompile(`^heimdall-sdk-1/[A-Za-z0-9_-]{22}/[A-Za-z0-9_-]{22}$`)
)

// ValidateSDKKey checks the key format. With a custom base URL any non-empty
// key is accepted because proxies may issue their own keys.
func ValidateSDKKey(key string, customURL bool) error {
	if key == "" {
		return ErrEmptySDKKey
	}
	if customURL || legacyKeyPattern.MatchString(key) || sdkKeyPattern.MatchString(key) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSDKKey, key)
}
