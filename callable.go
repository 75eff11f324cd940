package funnel

import (
	"log/slog"
	"reflect"
	"runtime"
	"strings"
)

// WrappedPrefix marks the diagnostic name of a wrapped callable.
const WrappedPrefix = "wrapped_"

const (
	arityHandler      = 2 // (ctx, next)
	arityErrorHandler = 3 // (err, ctx, next)
)

// Callable carries a handler function together with the metadata routing
// layers dispatch on: a diagnostic name, the declared arity (continuation
// included), and named attachments. Wrapping produces a new Callable that
// delegates to the original; the original is never mutated.
type Callable struct {
	name    string
	arity   int
	meta    map[string]any
	fn      any // HandlerFunc or ErrorHandlerFunc
	log     *slog.Logger
	wrapped bool
}

// NewHandler builds a Callable around a normal-path handler. An empty name
// is derived from the function's runtime name.
func NewHandler(name string, fn HandlerFunc) *Callable {
	if name == "" {
		name = funcName(fn)
	}
	return &Callable{name: name, arity: arityHandler, fn: fn}
}

// NewErrorHandler builds a Callable around an error-path handler.
func NewErrorHandler(name string, fn ErrorHandlerFunc) *Callable {
	if name == "" {
		name = funcName(fn)
	}
	return &Callable{name: name, arity: arityErrorHandler, fn: fn}
}

// Name returns the diagnostic name. Wrapped callables carry WrappedPrefix.
func (c *Callable) Name() string {
	return c.name
}

// Arity returns the declared positional argument count, continuation
// included.
func (c *Callable) Arity() int {
	return c.arity
}

// IsWrapped reports whether the callable already funnels failures.
func (c *Callable) IsWrapped() bool {
	return c.wrapped
}

// IsErrorShape reports whether the callable expects a leading error argument.
func (c *Callable) IsErrorShape() bool {
	return c.arity == arityErrorHandler
}

// SetMeta attaches a named metadata value. Attachments survive wrapping.
func (c *Callable) SetMeta(key string, value any) {
	if c.meta == nil {
		c.meta = make(map[string]any)
	}
	c.meta[key] = value
}

// MetaValue returns a named metadata value.
func (c *Callable) MetaValue(key string) (any, bool) {
	v, ok := c.meta[key]
	return v, ok
}

// Handler returns the underlying normal-path function, if that is the shape.
func (c *Callable) Handler() (HandlerFunc, bool) {
	fn, ok := c.fn.(HandlerFunc)
	return fn, ok
}

// ErrorHandler returns the underlying error-path function, if that is the
// shape.
func (c *Callable) ErrorHandler() (ErrorHandlerFunc, bool) {
	fn, ok := c.fn.(ErrorHandlerFunc)
	return fn, ok
}

// Invoke calls the callable through the variadic shape-based surface used by
// routing layers. args hold the positional arguments in declaration order,
// the trailing one being the continuation.
//
// Supplying fewer arguments than the declared arity is diagnosed but the
// call proceeds; hosts legitimately vary the argument count between the
// normal and error paths. A missing or non-continuation trailing argument
// aborts the call: there is no channel to deliver failures through.
func (c *Callable) Invoke(args ...any) any {
	log := c.logger()
	if len(args) < c.arity {
		log.Warn("callable invoked with fewer arguments than declared",
			slog.String("callable", c.name),
			slog.Int("declared", c.arity),
			slog.Int("supplied", len(args)))
	}

	var next Next
	if len(args) > 0 {
		next = asNext(args[len(args)-1])
	}
	if next == nil {
		log.Error("aborting call: "+ErrMissingContinuation.Error(),
			slog.String("callable", c.name))
		return nil
	}

	switch fn := c.fn.(type) {
	case HandlerFunc:
		ctx, _ := argAt(args, 0).(*Context)
		return fn(ctx, next)
	case ErrorHandlerFunc:
		err, _ := argAt(args, 0).(error)
		ctx, _ := argAt(args, 1).(*Context)
		return fn(err, ctx, next)
	default:
		log.Error("aborting call: callable holds no invocable function",
			slog.String("callable", c.name))
		return nil
	}
}

func (c *Callable) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slog.Default()
}

// asNext converts a trailing argument to a continuation, accepting both the
// named type and its raw shape.
func asNext(v any) Next {
	switch n := v.(type) {
	case Next:
		return n
	case func(error):
		return n
	default:
		return nil
	}
}

func argAt(args []any, i int) any {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

// funcName derives a diagnostic name from the function's runtime symbol.
func funcName(fn any) string {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return "anonymous"
	}
	f := runtime.FuncForPC(rv.Pointer())
	if f == nil {
		return "anonymous"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" {
		return "anonymous"
	}
	return name
}
