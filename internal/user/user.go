// Package user defines the User Object: the attribute bag evaluated by
// targeting rules and percentage options.
package user

import (
	"bytes"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Names of the built-in attributes.
const (
	IdentifierAttribute = "Identifier"
	EmailAttribute      = "Email"
	CountryAttribute    = "Country"
)

var json = jsoniter.Config{EscapeHTML: false, SortMapKeys: true}.Froze()

// User carries the attributes of the entity a flag is evaluated for.
//
// Custom attribute values may be strings, numbers (any Go integer or float
// type), time.Time or []string. Attribute names are matched
// case-insensitively, an exact match taking precedence.
type User struct {
	Identifier string
	Email      string
	Country    string
	Custom     map[string]any
}

// New returns a User with the given identifier.
func New(identifier string) *User {
	return &User{Identifier: identifier}
}

// With returns a copy of u with the custom attribute name set to value.
func (u *User) With(name string, value any) *User {
	c := *u
	c.Custom = make(map[string]any, len(u.Custom)+1)
	for k, v := range u.Custom {
		c.Custom[k] = v
	}
	c.Custom[name] = value
	return &c
}

// Attribute returns the value of the named attribute. Absent attributes, nil
// values and empty strings are reported as missing.
func (u *User) Attribute(name string) (any, bool) {
	v, ok := u.Lookup(name)
	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}
	return v, ok
}

// Lookup returns the raw value of the named attribute. Unlike Attribute, an
// empty string is a present value; only absent and nil values are missing.
func (u *User) Lookup(name string) (any, bool) {
	if u == nil {
		return nil, false
	}

	var v any
	switch {
	case strings.EqualFold(name, IdentifierAttribute):
		v = u.Identifier
	case strings.EqualFold(name, EmailAttribute):
		v = u.Email
	case strings.EqualFold(name, CountryAttribute):
		v = u.Country
	default:
		v = u.custom(name)
	}
	if v == nil {
		return nil, false
	}
	return v, true
}

func (u *User) custom(name string) any {
	if v, ok := u.Custom[name]; ok {
		return v
	}
	for k, v := range u.Custom {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// MarshalJSON renders the user the way evaluation logs show it: built-in
// attributes first, then custom attributes ordered by name. HTML characters
// are not escaped and times are rendered in RFC 3339 with milliseconds.
func (u *User) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	write := func(name string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		if t, ok := value.(time.Time); ok {
			value = t.UTC().Format("2006-01-02T15:04:05.000Z")
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := write(IdentifierAttribute, u.Identifier); err != nil {
		return nil, err
	}
	if u.Email != "" {
		if err := write(EmailAttribute, u.Email); err != nil {
			return nil, err
		}
	}
	if u.Country != "" {
		if err := write(CountryAttribute, u.Country); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(u.Custom))
	for k := range u.Custom {
		if isBuiltin(k) {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := write(k, u.Custom[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the JSON rendering of the user.
func (u *User) String() string {
	b, err := u.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

func isBuiltin(name string) bool {
	return strings.EqualFold(name, IdentifierAttribute) ||
		strings.EqualFold(name, EmailAttribute) ||
		strings.EqualFold(name, CountryAttribute)
}
