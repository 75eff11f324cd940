package funnel

import (
	"fmt"
	"maps"

	"github.com/dmitrymomot/funnel/core/logger"
)

// WrapHandler wraps a normal-path handler so that every failure it produces
// reaches the continuation exactly once:
//
//   - an explicit next(err) call is forwarded verbatim;
//   - a panic is recovered, normalized to an error, and delivered;
//   - a returned pending result is drained in the background and its
//     eventual failure is delivered.
//
// Later failure signals in the same invocation are dropped with a warning.
// A nil continuation aborts the call without invoking the handler.
func WrapHandler(fn HandlerFunc, opts ...Option) HandlerFunc {
	if fn == nil {
		return nil
	}
	return wrapHandler(funcName(fn), fn, newOptions(opts...))
}

// WrapErrorHandler is WrapHandler for error-path handlers.
func WrapErrorHandler(fn ErrorHandlerFunc, opts ...Option) ErrorHandlerFunc {
	if fn == nil {
		return nil
	}
	return wrapErrorHandler(funcName(fn), fn, newOptions(opts...))
}

// WrapCallable wraps the callable's function and returns a new Callable with
// the name prefixed by WrappedPrefix, the same arity and shape, and the
// metadata attachments copied over, so that introspecting routing tables
// keep working. Wrapping an already wrapped callable is a no-op.
func WrapCallable(c *Callable, opts ...Option) (*Callable, error) {
	if c == nil {
		return nil, ErrNilCallable
	}
	if c.wrapped {
		return c, nil
	}

	o := newOptions(opts...)
	w := &Callable{
		name:    WrappedPrefix + c.name,
		arity:   c.arity,
		meta:    maps.Clone(c.meta),
		log:     o.logger,
		wrapped: true,
	}

	switch fn := c.fn.(type) {
	case HandlerFunc:
		w.fn = wrapHandler(c.name, fn, o)
	case ErrorHandlerFunc:
		w.fn = wrapErrorHandler(c.name, fn, o)
	default:
		return nil, fmt.Errorf("%w: callable %q holds %T", ErrNotWrappable, c.name, c.fn)
	}
	return w, nil
}

func wrapHandler(name string, fn HandlerFunc, o *options) HandlerFunc {
	return func(ctx *Context, next Next) (ret any) {
		if next == nil {
			o.logger.Error("aborting call: "+ErrMissingContinuation.Error(),
				logger.Callable(name))
			return nil
		}
		g := newGuard(name, next, o)
		defer funnelPanic(g)
		return settle(fn(ctx, g.continuation()), g)
	}
}

func wrapErrorHandler(name string, fn ErrorHandlerFunc, o *options) ErrorHandlerFunc {
	return func(err error, ctx *Context, next Next) (ret any) {
		if next == nil {
			o.logger.Error("aborting call: "+ErrMissingContinuation.Error(),
				logger.Callable(name))
			return nil
		}
		g := newGuard(name, next, o)
		defer funnelPanic(g)
		return settle(fn(err, ctx, g.continuation()), g)
	}
}

// funnelPanic recovers a panic from the original callable and delivers it
// through the guard. The panic never escapes the wrapper.
func funnelPanic(g *guard) {
	if rec := recover(); rec != nil {
		g.fire(toError(rec))
	}
}

// settle passes through the original's return value, except for a pending
// result: that is drained in the background, its eventual failure delivered
// through the guard, and a pending result resolving to nothing once drained
// is returned instead.
func settle(ret any, g *guard) any {
	aw, ok := ret.(Awaiter)
	if !ok || isNilValue(aw) {
		return ret
	}
	return Go(func() error {
		if err := aw.Await(); err != nil {
			g.fire(toError(err))
		}
		return nil
	})
}
