package client

import (
	"log/slog"
	"time"

	"github.com/rafaeljc/heimdall-sdk/internal/cache"
	"github.com/rafaeljc/heimdall-sdk/internal/configservice"
	"github.com/rafaeljc/heimdall-sdk/internal/fetcher"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/override"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

// Version is reported to the CDN in the product header.
const Version = "1.0.0"

// Options configures a Client. Only SDKKey is required.
type Options struct {
	SDKKey string

	// BaseURL replaces the CDN location. Any non-empty SDK key is accepted
	// when it is set.
	BaseURL        string
	DataGovernance fetcher.DataGovernance

	PollingMode  configservice.PollingMode
	PollInterval time.Duration
	MaxInitWait  time.Duration
	CacheTTL     time.Duration
	HTTPTimeout  time.Duration

	// Offline starts the client without network access.
	Offline bool

	// Store shares downloaded config JSON between processes. Optional.
	Store cache.Store
	// Transport defaults to a dedicated *http.Client.
	Transport fetcher.Transport
	// Overrides are optional local flag values.
	Overrides *override.Overrides
	// DefaultUser is used by evaluations that pass a nil user.
	DefaultUser *user.User

	Logger *slog.Logger
	Hooks  Hooks
}

// Hooks are invoked synchronously on the goroutine that caused the event and
// must be safe for concurrent use.
type Hooks struct {
	// OnClientReady runs once the first config is available or the initial
	// wait expired.
	OnClientReady func()
	// OnConfigChanged receives the settings after a new config is applied,
	// overrides included.
	OnConfigChanged func(settings map[string]*model.Setting)
	// OnFlagEvaluated receives the details of every evaluation.
	OnFlagEvaluated func(details Details[model.Value])
	// OnError receives evaluation, fetch and cache failures.
	OnError func(msg string, err error)
}
