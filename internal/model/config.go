package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is a parsed config JSON document. It is immutable after Parse and is
// shared by reference across concurrent evaluations.
type Config struct {
	Preferences *Preferences        `json:"p,omitempty" yaml:"p,omitempty"`
	Segments    []Segment           `json:"s,omitempty" yaml:"s,omitempty"`
	Settings    map[string]*Setting `json:"f,omitempty" yaml:"f,omitempty"`
}

// ErrEmptyConfig is returned by Parse for empty input.
var ErrEmptyConfig = errors.New("config JSON is empty")

// Parse decodes a config JSON document and binds the document-level salt and
// segments into every setting.
func Parse(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, ErrEmptyConfig
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}
	cfg.Fixup()
	return &cfg, nil
}

// Fixup binds the document-level salt and segment list into each setting and
// prepares segment condition lists. It must be called once after the document
// is built by hand (Parse calls it).
func (c *Config) Fixup() {
	salt := ""
	if c.Preferences != nil {
		salt = c.Preferences.Salt
	}
	for i := range c.Segments {
		c.Segments[i].conditions = wrapUserConditions(c.Segments[i].Conditions)
	}
	for key, s := range c.Settings {
		if s == nil {
			delete(c.Settings, key)
			continue
		}
		s.salt = salt
		s.segments = c.Segments
	}
}

// Keys returns the setting keys in lexical order.
func (c *Config) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Settings))
	for k := range c.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Salt returns the document salt, if any.
func (c *Config) Salt() string {
	if c == nil || c.Preferences == nil {
		return ""
	}
	return c.Preferences.Salt
}

// NewSetting builds a setting that always serves v.
func NewSetting(v Value) *Setting {
	return &Setting{Type: v.Type(), Value: v.ToSettingValue()}
}

// FromValues builds a config holding one plain setting per entry. Values are
// converted with ValueOf; JSON numbers decoded as float64 become Int when they
// are integral and fit into int32.
func FromValues(values map[string]any) (*Config, error) {
	cfg := &Config{Settings: make(map[string]*Setting, len(values))}
	for key, raw := range values {
		if f, ok := raw.(float64); ok && f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			raw = int32(f)
		}
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("flag %q: %w", key, err)
		}
		cfg.Settings[key] = NewSetting(v)
	}
	cfg.Fixup()
	return cfg, nil
}

// Merge returns a new config whose settings are those of base overlaid with
// the settings of overlay. Preferences and segments come from base when
// present, otherwise from overlay. Neither input is modified.
func Merge(base, overlay *Config) *Config {
	switch {
	case base == nil:
		return overlay
	case overlay == nil:
		return base
	}
	out := &Config{
		Preferences: base.Preferences,
		Segments:    base.Segments,
		Settings:    make(map[string]*Setting, len(base.Settings)+len(overlay.Settings)),
	}
	if out.Preferences == nil {
		out.Preferences = overlay.Preferences
	}
	for k, s := range base.Settings {
		out.Settings[k] = s
	}
	for k, s := range overlay.Settings {
		out.Settings[k] = s
	}
	return out
}
