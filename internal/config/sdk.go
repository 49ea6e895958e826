package config

import (
	"fmt"
	"time"
)

// Polling modes accepted by SDKConfig.PollingMode.
const (
	PollingModeAuto   = "auto"
	PollingModeLazy   = "lazy"
	PollingModeManual = "manual"
)

// Override behaviors accepted by SDKConfig.OverrideBehavior.
const (
	OverrideLocalOnly       = "local_only"
	OverrideLocalOverRemote = "local_over_remote"
	OverrideRemoteOverLocal = "remote_over_local"
)

// SDKConfig holds the settings of the embedded flag client.
type SDKConfig struct {
	// Key identifies the config file on the CDN. Optional when only local overrides are used.
	Key string `envconfig:"KEY"`

	PollingMode  string        `envconfig:"POLLING_MODE" default:"auto" validate:"oneof=auto lazy manual"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"60s" validate:"min=1s"`
	MaxInitWait  time.Duration `envconfig:"MAX_INIT_WAIT" default:"5s" validate:"min=0"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"60s" validate:"min=1s"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s" validate:"min=1s"`

	// BaseURL overrides the CDN location. Empty means the data governance default.
	BaseURL        string `envconfig:"BASE_URL"`
	DataGovernance string `envconfig:"DATA_GOVERNANCE" default:"global" validate:"oneof=global eu"`
	Offline        bool   `envconfig:"OFFLINE" default:"false"`

	OverrideFile     string `envconfig:"OVERRIDE_FILE"`
	OverrideBehavior string `envconfig:"OVERRIDE_BEHAVIOR" default:"local_over_remote" validate:"oneof=local_only local_over_remote remote_over_local"`
}

// LocalOnly reports whether the client never talks to the CDN.
func (c *SDKConfig) LocalOnly() bool {
	return c.OverrideFile != "" && c.OverrideBehavior == OverrideLocalOnly
}

// Validate checks the cross-field rules validator tags cannot express.
func (c *SDKConfig) Validate() error {
	if c.Key == "" && !c.LocalOnly() {
		return fmt.Errorf("sdk key is required unless a local_only override file is configured")
	}
	if c.Key != "" {
		if err := validateNoWhitespace(c.Key, "sdk key"); err != nil {
			return err
		}
	}
	if c.BaseURL != "" {
		if _, err := parseAndValidateURL(c.BaseURL, []string{"http", "https"}); err != nil {
			return fmt.Errorf("invalid sdk base URL: %w", err)
		}
	}
	if c.OverrideFile != "" {
		if err := validateNoWhitespace(c.OverrideFile, "override file"); err != nil {
			return err
		}
	}
	return nil
}
