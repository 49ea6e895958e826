// Package client is the public face of the SDK: it asks the config service
// for the current settings, applies local overrides and evaluates flags for
// a user. Evaluation never fails; problems are reported through the details,
// the log and the OnError hook while the caller's default value is returned.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rafaeljc/heimdall-sdk/internal/cache"
	"github.com/rafaeljc/heimdall-sdk/internal/configservice"
	"github.com/rafaeljc/heimdall-sdk/internal/fetcher"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/observability"
	"github.com/rafaeljc/heimdall-sdk/internal/override"
	"github.com/rafaeljc/heimdall-sdk/internal/ruleengine"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

// Log event ids emitted by the client.
const (
	EventConfigMissing       = 1000
	EventSettingKeyMissing   = 1001
	EventEvaluationFailed    = 1002
	EventVariationIDNotFound = 2011
)

// Evaluation results recorded in heimdall_sdk_evaluations_total.
const (
	resultSuccess = "success"
	resultError   = "error"
)

// Client evaluates feature flags. It is safe for concurrent use.
type Client struct {
	sdkKey    string
	logger    *slog.Logger
	engine    *ruleengine.Engine
	service   *configservice.Service
	overrides *override.Overrides
	localOnly bool
	hooks     Hooks

	defaultUser atomic.Pointer[user.User]
	closed      atomic.Bool
	onClose     func()
}

// New validates the options and starts the client. In auto-poll mode the
// first download starts immediately in the background.
func New(opts Options) (*Client, error) {
	localOnly := opts.Overrides != nil && opts.Overrides.Behavior() == override.LocalOnly
	if !localOnly {
		if err := ValidateSDKKey(opts.SDKKey, opts.BaseURL != ""); err != nil {
			return nil, err
		}
	}

	log := logger.OrDefault(opts.Logger)
	c := &Client{
		sdkKey:    opts.SDKKey,
		logger:    log,
		engine:    ruleengine.New(log),
		overrides: opts.Overrides,
		localOnly: localOnly,
		hooks:     opts.Hooks,
	}
	c.defaultUser.Store(opts.DefaultUser)

	f := fetcher.New(fetcher.Options{
		SDKKey:         opts.SDKKey,
		BaseURL:        opts.BaseURL,
		DataGovernance: opts.DataGovernance,
		Mode:           opts.PollingMode.Identifier(),
		Version:        Version,
		Timeout:        opts.HTTPTimeout,
		Transport:      opts.Transport,
		Logger:         log,
	})

	c.service = configservice.New(configservice.Options{
		SDKKey:          opts.SDKKey,
		Mode:            opts.PollingMode,
		PollInterval:    opts.PollInterval,
		MaxInitWait:     opts.MaxInitWait,
		CacheTTL:        opts.CacheTTL,
		Offline:         opts.Offline || localOnly,
		Fetcher:         f,
		Store:           opts.Store,
		Logger:          log,
		OnConfigChanged: c.configChanged,
		OnError: func(err error) {
			c.reportError("config service error", err)
		},
	})

	if c.hooks.OnClientReady != nil {
		go func() {
			<-c.service.Ready()
			if !c.closed.Load() {
				c.hooks.OnClientReady()
			}
		}()
	}

	log.Debug("client initialized",
		slog.String("polling_mode", c.PollingMode().String()),
		slog.Bool("offline", opts.Offline || localOnly),
		slog.Bool("overrides", opts.Overrides != nil),
	)
	return c, nil
}

// GetBoolValue returns the value of a bool setting, or def.
func (c *Client) GetBoolValue(ctx context.Context, key string, def bool, u *user.User) bool {
	return c.GetBoolValueDetails(ctx, key, def, u).Value
}

// GetBoolValueDetails is GetBoolValue with evaluation details.
func (c *Client) GetBoolValueDetails(ctx context.Context, key string, def bool, u *user.User) Details[bool] {
	d := c.evaluate(ctx, key, model.BoolValue(def), u)
	return convert(d, d.Value.Bool())
}

// GetStringValue returns the value of a string setting, or def.
func (c *Client) GetStringValue(ctx context.Context, key, def string, u *user.User) string {
	return c.GetStringValueDetails(ctx, key, def, u).Value
}

// GetStringValueDetails is GetStringValue with evaluation details.
func (c *Client) GetStringValueDetails(ctx context.Context, key, def string, u *user.User) Details[string] {
	d := c.evaluate(ctx, key, model.StringValue(def), u)
	return convert(d, d.Value.Str())
}

// GetIntValue returns the value of a whole number setting, or def.
func (c *Client) GetIntValue(ctx context.Context, key string, def int, u *user.User) int {
	return c.GetIntValueDetails(ctx, key, def, u).Value
}

// GetIntValueDetails is GetIntValue with evaluation details. def must fit
// into 32 bits.
func (c *Client) GetIntValueDetails(ctx context.Context, key string, def int, u *user.User) Details[int] {
	d := c.evaluate(ctx, key, model.IntValue(int32(def)), u)
	if d.Data.IsDefaultValue {
		return convert(d, def)
	}
	return convert(d, int(d.Value.Int()))
}

// GetFloatValue returns the value of a decimal number setting, or def.
func (c *Client) GetFloatValue(ctx context.Context, key string, def float64, u *user.User) float64 {
	return c.GetFloatValueDetails(ctx, key, def, u).Value
}

// GetFloatValueDetails is GetFloatValue with evaluation details.
func (c *Client) GetFloatValueDetails(ctx context.Context, key string, def float64, u *user.User) Details[float64] {
	d := c.evaluate(ctx, key, model.FloatValue(def), u)
	return convert(d, d.Value.Float())
}

// GetValueDetails evaluates a setting of any type. def may be the invalid
// Value, which skips the type check.
func (c *Client) GetValueDetails(ctx context.Context, key string, def model.Value, u *user.User) Details[model.Value] {
	return c.evaluate(ctx, key, def, u)
}

// GetAllKeys returns the keys of every available setting in lexical order.
func (c *Client) GetAllKeys(ctx context.Context) []string {
	cfg, _ := c.settings(ctx)
	if cfg == nil {
		c.logConfigMissing("")
		return nil
	}
	return cfg.Keys()
}

// GetAllValues evaluates every setting for u. Settings that fail to
// evaluate are left out.
func (c *Client) GetAllValues(ctx context.Context, u *user.User) map[string]any {
	details := c.GetAllValueDetails(ctx, u)
	values := make(map[string]any, len(details))
	for _, d := range details {
		if d.Data.Error == nil {
			values[d.Data.Key] = d.Value.Any()
		}
	}
	return values
}

// GetAllValueDetails evaluates every setting for u in key order.
func (c *Client) GetAllValueDetails(ctx context.Context, u *user.User) []Details[model.Value] {
	cfg, fetchTime := c.settings(ctx)
	if cfg == nil {
		c.logConfigMissing("")
		return nil
	}

	keys := cfg.Keys()
	out := make([]Details[model.Value], 0, len(keys))
	for _, key := range keys {
		out = append(out, c.evaluateIn(ctx, cfg, fetchTime, key, model.InvalidValue(), u))
	}
	return out
}

// GetKeyAndValue finds the setting and value behind a variation ID.
func (c *Client) GetKeyAndValue(ctx context.Context, variationID string) (string, model.Value, bool) {
	cfg, _ := c.settings(ctx)
	if cfg == nil {
		c.logConfigMissing("")
		return "", model.InvalidValue(), false
	}

	for _, key := range cfg.Keys() {
		if v, ok := findVariation(cfg.Settings[key], variationID); ok {
			return key, v, true
		}
	}

	c.logger.Error("could not find the setting for the specified variation ID",
		slog.Int("event_id", EventVariationIDNotFound),
		slog.String("variation_id", variationID),
	)
	return "", model.InvalidValue(), false
}

func findVariation(s *model.Setting, variationID string) (model.Value, bool) {
	if s.VariationID == variationID {
		return s.Value.Value(), true
	}
	for _, rule := range s.TargetingRules {
		if rule.ServedValue != nil && rule.ServedValue.VariationID == variationID {
			return rule.ServedValue.Value.Value(), true
		}
		for _, opt := range rule.PercentageOptions {
			if opt.VariationID == variationID {
				return opt.Value.Value(), true
			}
		}
	}
	for _, opt := range s.PercentageOptions {
		if opt.VariationID == variationID {
			return opt.Value.Value(), true
		}
	}
	return model.InvalidValue(), false
}

// Refresh downloads the latest config JSON. Local only clients have nothing
// to download.
func (c *Client) Refresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.localOnly {
		return nil
	}
	return c.service.Refresh(ctx)
}

// PollingMode reports how the client refreshes its config.
func (c *Client) PollingMode() configservice.PollingMode {
	return c.service.Mode()
}

// Ready is closed once the first config is available or the initial wait
// expired.
func (c *Client) Ready() <-chan struct{} {
	return c.service.Ready()
}

// SetOffline stops network access.
func (c *Client) SetOffline() {
	c.service.SetOffline()
}

// SetOnline restores network access. Local only clients stay offline.
func (c *Client) SetOnline() {
	if c.localOnly {
		return
	}
	c.service.SetOnline()
}

// IsOffline reports whether network access is disabled.
func (c *Client) IsOffline() bool {
	return c.service.IsOffline()
}

// SetDefaultUser sets the user for evaluations that pass nil.
func (c *Client) SetDefaultUser(u *user.User) {
	c.defaultUser.Store(u)
}

// ClearDefaultUser removes the default user.
func (c *Client) ClearDefaultUser() {
	c.defaultUser.Store(nil)
}

// Close stops background work. Evaluations keep serving the last config.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.service.Close()
	if c.onClose != nil {
		c.onClose()
	}
}

// Name implements observability.Checker.
func (c *Client) Name() string {
	return "heimdall_client"
}

// Check implements observability.Checker: healthy once a config is available.
func (c *Client) Check(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.localOnly {
		return nil
	}
	return c.service.Check(ctx)
}

// settings returns the config evaluations should use, overrides applied.
func (c *Client) settings(ctx context.Context) (*model.Config, time.Time) {
	entry := cache.EmptyEntry
	if !c.localOnly {
		entry = c.service.GetSettings(ctx)
	}
	return c.overrides.Apply(entry.Config), entry.FetchTime
}

func (c *Client) evaluate(ctx context.Context, key string, def model.Value, u *user.User) Details[model.Value] {
	cfg, fetchTime := c.settings(ctx)
	return c.evaluateIn(ctx, cfg, fetchTime, key, def, u)
}

func (c *Client) evaluateIn(ctx context.Context, cfg *model.Config, fetchTime time.Time, key string, def model.Value, u *user.User) Details[model.Value] {
	start := time.Now()
	if u == nil {
		u = c.defaultUser.Load()
	}

	d := Details[model.Value]{
		Value: def,
		Data: DetailsData{
			Key:            key,
			User:           u,
			IsDefaultValue: true,
			FetchTime:      fetchTime,
		},
	}

	err := c.resolve(ctx, cfg, key, def, u, &d)
	if err != nil {
		d.Data.Error = err
		observability.EvaluationsTotal.WithLabelValues(resultError).Inc()
	} else {
		observability.EvaluationsTotal.WithLabelValues(resultSuccess).Inc()
	}
	observability.EvaluationDuration.Observe(time.Since(start).Seconds())

	if c.hooks.OnFlagEvaluated != nil {
		c.hooks.OnFlagEvaluated(d)
	}
	return d
}

func (c *Client) resolve(ctx context.Context, cfg *model.Config, key string, def model.Value, u *user.User, d *Details[model.Value]) error {
	if cfg == nil {
		c.logConfigMissing(key)
		err := fmt.Errorf("%w: cannot evaluate setting '%s'", ErrConfigMissing, key)
		c.reportError("config JSON is not present", err)
		return err
	}

	setting, ok := cfg.Settings[key]
	if !ok {
		c.logger.Error("failed to evaluate setting: the key was not found in config JSON; returning the default value",
			slog.Int("event_id", EventSettingKeyMissing),
			slog.String("key", key),
			slog.String("default_value", def.String()),
			slog.Any("available_keys", cfg.Keys()),
		)
		err := fmt.Errorf("%w: '%s'", ErrSettingKeyMissing, key)
		c.reportError("setting key not found", err)
		return err
	}

	if def.IsValid() && setting.Type != def.Type() {
		err := fmt.Errorf("%w: setting '%s' is %s but the default value is %s",
			ErrTypeMismatch, key, setting.Type, def.Type())
		c.logEvaluationError(key, def, err)
		return err
	}

	res, err := c.engine.Evaluate(ctx, ruleengine.Request{
		Key:      key,
		Setting:  setting,
		User:     u,
		Settings: cfg.Settings,
		Default:  def,
	})
	d.Data.EvaluationLog = res.Log
	if err != nil {
		c.logEvaluationError(key, def, err)
		return err
	}

	d.Value = res.Value
	d.Data.VariationID = res.VariationID
	d.Data.IsDefaultValue = false
	d.Data.MatchedTargetingRule = res.MatchedTargetingRule
	d.Data.MatchedPercentageOption = res.MatchedPercentageOption
	return nil
}

func (c *Client) logConfigMissing(key string) {
	c.logger.Error("config JSON is not present; returning the default value",
		slog.Int("event_id", EventConfigMissing),
		slog.String("key", key),
	)
}

func (c *Client) logEvaluationError(key string, def model.Value, err error) {
	c.logger.Error("failed to evaluate setting; returning the default value",
		slog.Int("event_id", EventEvaluationFailed),
		slog.String("key", key),
		slog.String("default_value", def.String()),
		slog.String("error", err.Error()),
	)
	c.reportError("evaluation error", err)
}

func (c *Client) configChanged(cfg *model.Config) {
	if c.hooks.OnConfigChanged == nil {
		return
	}
	merged := c.overrides.Apply(cfg)
	if merged == nil {
		return
	}
	c.hooks.OnConfigChanged(merged.Settings)
}

func (c *Client) reportError(msg string, err error) {
	if c.hooks.OnError != nil {
		c.hooks.OnError(msg, err)
	}
}
