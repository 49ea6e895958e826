// Package validation holds constructor assertions. They panic because a
// missing mandatory dependency is a programming error, not a runtime failure.
package validation

import (
	"fmt"
	"reflect"
)

// AssertNotNil panics if ptr is nil.
//
//	validation.AssertNotNil(pool, "postgres pool")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

// AssertPresent panics if v is a nil interface or wraps a nil pointer, map,
// slice, func or channel.
func AssertPresent(v any, name string) {
	if isNil(v) {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
