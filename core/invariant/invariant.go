// Package invariant provides contract assertions for programmer errors.
//
// A failed assertion panics: these conditions describe bugs in the caller,
// never bad input data. Data errors are returned as ordinary errors.
package invariant

import (
	"fmt"
	"reflect"
)

// Violation is the panic value raised by a failed assertion.
type Violation struct {
	Kind    string // "precondition", "postcondition", "invariant"
	Message string
}

func (v *Violation) Error() string {
	return v.Kind + " violated: " + v.Message
}

// Precondition panics if cond is false. Use at function entry.
func Precondition(cond bool, format string, args ...any) {
	if !cond {
		fail("precondition", format, args...)
	}
}

// Postcondition panics if cond is false. Use before returning.
func Postcondition(cond bool, format string, args ...any) {
	if !cond {
		fail("postcondition", format, args...)
	}
}

// Invariant panics if cond is false.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		fail("invariant", format, args...)
	}
}

// NotNil panics if v is nil, including typed nil pointers wrapped in an interface.
func NotNil(v any, name string) {
	if v == nil {
		fail("precondition", "%s must not be nil", name)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			fail("precondition", "%s must not be nil", name)
		}
	}
}

func fail(kind, format string, args ...any) {
	panic(&Violation{Kind: kind, Message: fmt.Sprintf(format, args...)})
}
