package ruleengine

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	jsoniter "github.com/json-iterator/go"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

var json = jsoniter.Config{EscapeHTML: false}.Froze()

// CoercionError reports a user attribute whose value cannot be converted to
// the type a comparator works with.
type CoercionError struct {
	Attribute string
	Reason    string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("the User.%s attribute is invalid (%s)", e.Attribute, e.Reason)
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses a decimal literal. Surrounding whitespace is ignored, the
// first comma is treated as the decimal separator and the NaN and (signed)
// Infinity literals are accepted. Hexadecimal notation and trailing garbage
// are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	switch s {
	case "NaN":
		return math.NaN(), true
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if !decimalLiteral.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// numeric converts Go number types to float64.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// unixSeconds returns t as seconds since the Unix epoch with millisecond
// precision.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

// AttributeText converts an attribute value to the text used by text
// comparators and percentage hashing. The boolean result reports whether v
// already was a string.
func AttributeText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case time.Time:
		return model.FormatNumber(unixSeconds(t)), false
	case []string:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), false
		}
		return string(b), false
	}
	if f, ok := numeric(v); ok {
		return model.FormatNumber(f), false
	}
	return fmt.Sprint(v), false
}

func invalid(attr string, v any, format string) *CoercionError {
	text, _ := AttributeText(v)
	return &CoercionError{Attribute: attr, Reason: fmt.Sprintf(format, text)}
}

func toSemVer(attr string, v any) (*semver.Version, error) {
	if s, ok := v.(string); ok {
		if ver, err := semver.StrictNewVersion(strings.TrimSpace(s)); err == nil {
			return ver, nil
		}
	}
	return nil, invalid(attr, v, "'%s' is not a valid semantic version")
}

func toNumber(attr string, v any) (float64, error) {
	if f, ok := numeric(v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		if f, ok := ParseNumber(s); ok {
			return f, nil
		}
	}
	return 0, invalid(attr, v, "'%s' is not a valid decimal number")
}

func toUnixSeconds(attr string, v any) (float64, error) {
	const reason = "'%s' is not a valid Unix timestamp (number of seconds elapsed since Unix epoch)"

	if t, ok := v.(time.Time); ok {
		if y := t.UTC().Year(); y < 1 || y > 9999 {
			return 0, invalid(attr, v, reason)
		}
		return unixSeconds(t), nil
	}
	if f, ok := numeric(v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		if f, ok := ParseNumber(s); ok {
			return f, nil
		}
	}
	return 0, invalid(attr, v, reason)
}

func toStringArray(attr string, v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		var list []string
		if err := json.Unmarshal([]byte(t), &list); err == nil && list != nil {
			return list, nil
		}
	}
	return nil, invalid(attr, v, "'%s' is not a valid string array")
}
