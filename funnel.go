package funnel

import (
	"fmt"
	"log/slog"
)

// Next is the continuation passed as the trailing argument of every handler.
// Calling it with nil signals success, with a non-nil error signals failure.
// At most one call per handler invocation is delivered; the wrapping layer
// drops the rest.
type Next func(err error)

// HandlerFunc processes a request and signals completion through next.
// The return value is opaque to callers, with one exception: a non-nil
// Awaiter is drained by the wrapping layer and its eventual failure is
// delivered through next.
type HandlerFunc func(ctx *Context, next Next) any

// ErrorHandlerFunc processes a failure produced earlier in the chain.
// It follows the same continuation and return-value contract as HandlerFunc.
type ErrorHandlerFunc func(err error, ctx *Context, next Next) any

// DropHook observes continuation signals dropped by the at-most-once guard.
// The callable name identifies the wrapped handler; dropped is the error the
// handler tried to deliver after the continuation had already fired (nil for
// a redundant success signal).
type DropHook func(callable string, dropped error)

// Option configures wrapping behavior.
type Option func(*options)

type options struct {
	logger *slog.Logger
	onDrop DropHook
}

// WithLogger sets the logger used for wrapping diagnostics.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDropHook registers a hook invoked whenever a continuation signal is
// dropped because the continuation already fired for that invocation.
func WithDropHook(hook DropHook) Option {
	return func(o *options) {
		o.onDrop = hook
	}
}

func newOptions(opts ...Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Wrap is the dual-mode entry point of the package. It accepts either a
// plain callable (HandlerFunc, ErrorHandlerFunc, or *Callable) or a
// constructible bundle (*Bundle, or a controller struct pointer), and
// returns the wrapped form of the same shape.
//
// A nil target (including a typed nil pointer) is returned unchanged.
// Any other input fails with ErrNotWrappable.
func Wrap(target any, opts ...Option) (any, error) {
	if target == nil || isNilValue(target) {
		return target, nil
	}

	switch Classify(target) {
	case KindConstructible:
		if b, ok := target.(*Bundle); ok {
			return WrapBundle(b, opts...)
		}
		b, err := FromController(target)
		if err != nil {
			return nil, err
		}
		return WrapBundle(b, opts...)

	case KindPlain:
		switch t := target.(type) {
		case *Callable:
			return WrapCallable(t, opts...)
		case HandlerFunc:
			return WrapHandler(t, opts...), nil
		case func(*Context, Next) any:
			return WrapHandler(t, opts...), nil
		case ErrorHandlerFunc:
			return WrapErrorHandler(t, opts...), nil
		case func(error, *Context, Next) any:
			return WrapErrorHandler(t, opts...), nil
		}
	}

	return nil, fmt.Errorf("%w: %T", ErrNotWrappable, target)
}

// MustWrap is like Wrap but panics on error. Intended for registration-time
// setup where a wrapping failure is a programming defect.
func MustWrap(target any, opts ...Option) any {
	wrapped, err := Wrap(target, opts...)
	if err != nil {
		panic(err)
	}
	return wrapped
}
