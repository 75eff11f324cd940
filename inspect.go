package funnel

import "reflect"

// Kind tags the wrap-time classification of a target. It is decided once by
// Classify and never re-inspected per call.
type Kind uint8

const (
	// KindNone marks values that cannot be wrapped.
	KindNone Kind = iota
	// KindPlain marks single callables: handler functions and *Callable.
	KindPlain
	// KindConstructible marks class-like targets: *Bundle and controller
	// struct pointers.
	KindConstructible
)

// String returns a human-readable kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindConstructible:
		return "constructible"
	default:
		return "none"
	}
}

// Classify reports how the wrapping layer treats v. It never panics; any
// input is acceptable and classified. Nil values (typed or untyped) are
// KindNone.
func Classify(v any) Kind {
	if v == nil || isNilValue(v) {
		return KindNone
	}

	switch v.(type) {
	case *Callable, HandlerFunc, func(*Context, Next) any,
		ErrorHandlerFunc, func(error, *Context, Next) any:
		return KindPlain
	case *Bundle:
		return KindConstructible
	}

	// A pointer to a struct is the controller shape: its embedded structs
	// form the level chain and its handler-shaped methods form the members.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct {
		return KindConstructible
	}

	return KindNone
}

// IsCallable reports whether v is a single callable the wrapping layer can
// delegate to.
func IsCallable(v any) bool {
	return Classify(v) == KindPlain
}

// IsConstructible reports whether v is a class-like target whose members can
// be wrapped in bulk.
func IsConstructible(v any) bool {
	return Classify(v) == KindConstructible
}

// isNilValue reports whether v holds a nil pointer, func, map, slice, chan,
// or interface value.
func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
