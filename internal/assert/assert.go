// Package assert provides lightweight invariant checks for conditions that
// should never occur by construction. A failed assertion panics; it is not
// a substitute for error handling on the boundary of the process (bad
// input, network errors, missing config), which is always returned as an
// error instead.
package assert

import (
	"fmt"
	"reflect"
)

// Assert panics with the formatted message if cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

// IsNotNil panics with the formatted message if v is nil, including the
// case where v holds a typed nil pointer/map/slice/chan/func/interface
// (the common trap with a plain `v == nil` check on an any-typed value).
func IsNotNil(v any, format string, args ...any) {
	if v == nil {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if rv.IsNil() {
			panic(fmt.Sprintf("assertion failed: "+format, args...))
		}
	}
}

// IsNil panics with the formatted message if err is non-nil.
func IsNil(err error, format string, args ...any) {
	if err != nil {
		panic(fmt.Sprintf("assertion failed: "+format+": %v", append(args, err)...))
	}
}

// Never panics unconditionally; use it to mark code paths that should be
// unreachable.
func Never(format string, args ...any) {
	panic(fmt.Sprintf("unreachable: "+format, args...))
}
