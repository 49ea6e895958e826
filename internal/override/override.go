// Package override supplies locally defined flag values that replace or
// complement the downloaded config.
package override

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Behavior decides how local values combine with the downloaded config.
type Behavior int

const (
	// LocalOnly ignores the downloaded config entirely.
	LocalOnly Behavior = iota
	// LocalOverRemote serves local values where a key exists in both.
	LocalOverRemote
	// RemoteOverLocal serves downloaded values where a key exists in both.
	RemoteOverLocal
)

func (b Behavior) String() string {
	switch b {
	case LocalOnly:
		return "local_only"
	case RemoteOverLocal:
		return "remote_over_local"
	default:
		return "local_over_remote"
	}
}

// ParseBehavior accepts the names produced by Behavior.String.
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local_only":
		return LocalOnly, nil
	case "local_over_remote", "":
		return LocalOverRemote, nil
	case "remote_over_local":
		return RemoteOverLocal, nil
	}
	return LocalOverRemote, fmt.Errorf("unknown override behavior %q", s)
}

// Overrides is an immutable set of local settings with a merge behavior.
type Overrides struct {
	behavior Behavior
	config   *model.Config
}

// FromMap builds overrides serving each map value unconditionally.
func FromMap(values map[string]any, behavior Behavior) (*Overrides, error) {
	cfg, err := model.FromValues(values)
	if err != nil {
		return nil, fmt.Errorf("invalid override values: %w", err)
	}
	return &Overrides{behavior: behavior, config: cfg}, nil
}

// FromFile reads a JSON or YAML file, chosen by extension (.yaml and .yml
// are YAML, everything else JSON).
func FromFile(path string, behavior Behavior) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read override file: %w", err)
	}

	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	o, err := Parse(data, format, behavior)
	if err != nil {
		return nil, fmt.Errorf("override file %s: %w", path, err)
	}
	return o, nil
}

// Format is the encoding of override content.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// Parse decodes override content. Two layouts are accepted: a complete config
// document with targeting rules ({"f": {...}}), or the simplified form
// {"flags": {"key": value}} mapping keys to plain values.
func Parse(data []byte, format Format, behavior Behavior) (*Overrides, error) {
	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	var probe struct {
		Flags map[string]any `json:"flags"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode overrides: %w", err)
	}
	if probe.Flags != nil {
		return FromMap(probe.Flags, behavior)
	}

	cfg, err := model.Parse(data)
	if err != nil {
		return nil, err
	}
	return &Overrides{behavior: behavior, config: cfg}, nil
}

// yamlToJSON re-encodes a YAML document as JSON so both encodings share one
// decoding path.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode YAML overrides: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML overrides: %w", err)
	}
	return out, nil
}

// Behavior returns the merge behavior.
func (o *Overrides) Behavior() Behavior {
	return o.behavior
}

// Config returns the local settings.
func (o *Overrides) Config() *model.Config {
	return o.config
}

// Apply combines remote with the local settings. remote may be nil when no
// config was downloaded yet.
func (o *Overrides) Apply(remote *model.Config) *model.Config {
	if o == nil {
		return remote
	}
	switch o.behavior {
	case LocalOnly:
		return o.config
	case RemoteOverLocal:
		return model.Merge(o.config, remote)
	default:
		return model.Merge(remote, o.config)
	}
}
