// Package model defines the canonical value and setting model of a config JSON
// document: typed values, settings, targeting rules, conditions, segments and
// percentage options, together with their wire (JSON) mapping.
package model

import (
	"fmt"
	"math"
)

// SettingType is the declared type of a setting. The numeric values are part
// of the wire format.
type SettingType int

const (
	SettingTypeUnknown SettingType = -1
	SettingTypeBool    SettingType = 0
	SettingTypeString  SettingType = 1
	SettingTypeInt     SettingType = 2
	SettingTypeFloat   SettingType = 3
)

// String returns the display name used in error messages.
func (t SettingType) String() string {
	switch t {
	case SettingTypeBool:
		return "Boolean"
	case SettingTypeString:
		return "String"
	case SettingTypeInt:
		return "Int"
	case SettingTypeFloat:
		return "Double"
	default:
		return "Unknown"
	}
}

// IsValid reports whether t is one of the four supported setting types.
func (t SettingType) IsValid() bool {
	return t >= SettingTypeBool && t <= SettingTypeFloat
}

// SettingValue is the wire container of a value: exactly one field is expected
// to be set. A container with no (or more than one) field set is the
// unsupported/null variant.
type SettingValue struct {
	Bool   *bool    `json:"b,omitempty" yaml:"b,omitempty"`
	String *string  `json:"s,omitempty" yaml:"s,omitempty"`
	Int    *int32   `json:"i,omitempty" yaml:"i,omitempty"`
	Double *float64 `json:"d,omitempty" yaml:"d,omitempty"`
}

// Value is a typed flag value: a tagged union over bool, string, int32 and
// float64. The zero Value is invalid (SettingTypeUnknown).
type Value struct {
	// kind is SettingType+1 so that the zero Value is invalid.
	kind uint8
	b    bool
	s    string
	i    int32
	d    float64
}

// BoolValue returns a Boolean value.
func BoolValue(b bool) Value { return Value{kind: kindOf(SettingTypeBool), b: b} }

// StringValue returns a String value.
func StringValue(s string) Value { return Value{kind: kindOf(SettingTypeString), s: s} }

// IntValue returns an Int value.
func IntValue(i int32) Value { return Value{kind: kindOf(SettingTypeInt), i: i} }

// FloatValue returns a Double value.
func FloatValue(d float64) Value { return Value{kind: kindOf(SettingTypeFloat), d: d} }

// InvalidValue returns the unsupported/null value.
func InvalidValue() Value { return Value{} }

func kindOf(t SettingType) uint8 { return uint8(t + 1) }

// Type returns the runtime variant of v.
func (v Value) Type() SettingType {
	if v.kind == 0 {
		return SettingTypeUnknown
	}
	return SettingType(v.kind) - 1
}

// IsValid reports whether v holds one of the four supported kinds.
func (v Value) IsValid() bool { return v.kind != 0 }

// Bool returns the boolean payload (false for other kinds).
func (v Value) Bool() bool { return v.b }

// Str returns the string payload ("" for other kinds).
func (v Value) Str() string { return v.s }

// Int returns the integer payload (0 for other kinds).
func (v Value) Int() int32 { return v.i }

// Float returns the floating point payload (0 for other kinds).
func (v Value) Float() float64 { return v.d }

// Any returns the payload as bool, string, int or float64, or nil for the
// invalid value.
func (v Value) Any() any {
	switch v.Type() {
	case SettingTypeBool:
		return v.b
	case SettingTypeString:
		return v.s
	case SettingTypeInt:
		return int(v.i)
	case SettingTypeFloat:
		return v.d
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and payload. Doubles
// follow IEEE-754 equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.Type() {
	case SettingTypeBool:
		return v.b == o.b
	case SettingTypeString:
		return v.s == o.s
	case SettingTypeInt:
		return v.i == o.i
	case SettingTypeFloat:
		return v.d == o.d
	default:
		return false
	}
}

// String renders v in the canonical format used by evaluation logs.
func (v Value) String() string {
	switch v.Type() {
	case SettingTypeBool:
		if v.b {
			return "true"
		}
		return "false"
	case SettingTypeString:
		return v.s
	case SettingTypeInt:
		return FormatNumber(float64(v.i))
	case SettingTypeFloat:
		return FormatNumber(v.d)
	default:
		return InvalidValuePlaceholder
	}
}

// InvalidValuePlaceholder is rendered in place of an unsupported value.
const InvalidValuePlaceholder = "<invalid value>"

// ToSettingValue converts v into its wire container. The invalid value maps to
// an empty container.
func (v Value) ToSettingValue() SettingValue {
	switch v.Type() {
	case SettingTypeBool:
		b := v.b
		return SettingValue{Bool: &b}
	case SettingTypeString:
		s := v.s
		return SettingValue{String: &s}
	case SettingTypeInt:
		i := v.i
		return SettingValue{Int: &i}
	case SettingTypeFloat:
		d := v.d
		return SettingValue{Double: &d}
	default:
		return SettingValue{}
	}
}

// Value converts the wire container into a typed Value. Containers with zero
// or several populated fields yield the invalid value.
func (sv SettingValue) Value() Value {
	n := 0
	var v Value
	if sv.Bool != nil {
		n++
		v = BoolValue(*sv.Bool)
	}
	if sv.String != nil {
		n++
		v = StringValue(*sv.String)
	}
	if sv.Int != nil {
		n++
		v = IntValue(*sv.Int)
	}
	if sv.Double != nil {
		n++
		v = FloatValue(*sv.Double)
	}
	if n != 1 {
		return InvalidValue()
	}
	return v
}

// ValueOf converts a Go value into a typed Value. Booleans, strings, integers
// fitting into int32 and floats are supported; integral values from other
// integer types outside the int32 range are converted to Double.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case int:
		return intOrFloat(int64(t)), nil
	case int8:
		return IntValue(int32(t)), nil
	case int16:
		return IntValue(int32(t)), nil
	case int32:
		return IntValue(t), nil
	case int64:
		return intOrFloat(t), nil
	case uint8:
		return IntValue(int32(t)), nil
	case uint16:
		return IntValue(int32(t)), nil
	case uint32:
		return intOrFloat(int64(t)), nil
	case float32:
		return FloatValue(float64(t)), nil
	case float64:
		return FloatValue(t), nil
	case Value:
		if !t.IsValid() {
			return InvalidValue(), fmt.Errorf("unsupported value")
		}
		return t, nil
	default:
		return InvalidValue(), fmt.Errorf("unsupported value type %T", x)
	}
}

func intOrFloat(i int64) Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return IntValue(int32(i))
	}
	return FloatValue(float64(i))
}
