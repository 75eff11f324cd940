package funnel_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/funnel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects continuation calls from concurrent goroutines.
type recorder struct {
	mu    sync.Mutex
	calls []error
}

func (r *recorder) next(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, err)
}

func (r *recorder) recorded() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.calls...)
}

func TestWrapHandler_PanicDelivery(t *testing.T) {
	t.Parallel()

	t.Run("panic_with_error_is_delivered_once", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			panic(errors.New("x"))
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		assert.NotPanics(t, func() {
			wrapped(nil, rec.next)
		})

		calls := rec.recorded()
		require.Len(t, calls, 1)
		require.Error(t, calls[0])
		assert.Equal(t, "x", calls[0].Error())
	})

	t.Run("panic_with_string_is_normalized", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			panic("database exploded")
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		wrapped(nil, rec.next)

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].Error(), "database exploded")
	})

	t.Run("panic_with_arbitrary_value_is_normalized", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			panic(42)
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		wrapped(nil, rec.next)

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].Error(), "42")
	})
}

func TestWrapHandler_AtMostOnceDelivery(t *testing.T) {
	t.Parallel()

	t.Run("explicit_next_then_panic_delivers_first_error", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			next(errors.New("a"))
			panic(errors.New("b"))
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		assert.NotPanics(t, func() {
			wrapped(nil, rec.next)
		})

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "a", calls[0].Error())
	})

	t.Run("double_next_delivers_first_call_only", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			next(errors.New("first"))
			next(errors.New("second"))
			return nil
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		wrapped(nil, rec.next)

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "first", calls[0].Error())
	})

	t.Run("success_signal_is_forwarded_verbatim", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			next(nil)
			return nil
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		wrapped(nil, rec.next)

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.NoError(t, calls[0])
	})

	t.Run("drop_hook_observes_dropped_error", func(t *testing.T) {
		t.Parallel()

		var (
			mu      sync.Mutex
			dropped []error
		)
		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			next(nil)
			panic(errors.New("late"))
		},
			funnel.WithLogger(discardLogger()),
			funnel.WithDropHook(func(callable string, err error) {
				mu.Lock()
				defer mu.Unlock()
				dropped = append(dropped, err)
			}))

		rec := &recorder{}
		wrapped(nil, rec.next)

		require.Len(t, rec.recorded(), 1)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, dropped, 1)
		assert.Equal(t, "late", dropped[0].Error())
	})

	t.Run("state_is_per_invocation_not_per_wrapper", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			next(errors.New("boom"))
			return nil
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		wrapped(nil, rec.next)
		wrapped(nil, rec.next)
		wrapped(nil, rec.next)

		// Each invocation gets its own guard, so each delivers once.
		assert.Len(t, rec.recorded(), 3)
	})
}

func TestWrapHandler_PendingResults(t *testing.T) {
	t.Parallel()

	t.Run("async_failure_is_delivered", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			return funnel.Go(func() error {
				return errors.New("x")
			})
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		ret := wrapped(nil, rec.next)

		// The wrapper returns a pending result that resolves once drained.
		drained, ok := ret.(funnel.Awaiter)
		require.True(t, ok)
		require.NoError(t, drained.Await())

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "x", calls[0].Error())
	})

	t.Run("async_panic_is_normalized_and_delivered", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			return funnel.Go(func() error {
				panic("async boom")
			})
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		ret := wrapped(nil, rec.next)

		drained, ok := ret.(funnel.Awaiter)
		require.True(t, ok)
		require.NoError(t, drained.Await())

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].Error(), "async boom")
	})

	t.Run("async_success_is_not_delivered", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			return funnel.Resolved()
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		ret := wrapped(nil, rec.next)

		drained, ok := ret.(funnel.Awaiter)
		require.True(t, ok)
		require.NoError(t, drained.Await())

		assert.Empty(t, rec.recorded())
	})

	t.Run("async_failure_after_explicit_next_is_dropped", func(t *testing.T) {
		t.Parallel()

		var (
			mu      sync.Mutex
			dropped []error
		)
		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			next(errors.New("handled"))
			return funnel.Rejected(errors.New("too late"))
		},
			funnel.WithLogger(discardLogger()),
			funnel.WithDropHook(func(callable string, err error) {
				mu.Lock()
				defer mu.Unlock()
				dropped = append(dropped, err)
			}))

		rec := &recorder{}
		ret := wrapped(nil, rec.next)

		drained, ok := ret.(funnel.Awaiter)
		require.True(t, ok)
		require.NoError(t, drained.Await())

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "handled", calls[0].Error())

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, dropped, 1)
		assert.Equal(t, "too late", dropped[0].Error())
	})

	t.Run("typed_nil_pending_is_ignored", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			var p *funnel.Pending
			return p
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		ret := wrapped(nil, rec.next)

		p, ok := ret.(*funnel.Pending)
		require.True(t, ok)
		assert.Nil(t, p)
		assert.Empty(t, rec.recorded())
	})

	t.Run("plain_return_value_passes_through", func(t *testing.T) {
		t.Parallel()

		wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
			return "payload"
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		ret := wrapped(nil, rec.next)

		assert.Equal(t, "payload", ret)
	})
}

func TestWrapHandler_MissingContinuation(t *testing.T) {
	t.Parallel()

	invoked := false
	wrapped := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
		invoked = true
		return nil
	}, funnel.WithLogger(discardLogger()))

	ret := wrapped(nil, nil)

	// No delivery channel: the call is aborted without invoking the original.
	assert.Nil(t, ret)
	assert.False(t, invoked)
}

func TestWrapErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("receives_failure_and_panics_are_funneled", func(t *testing.T) {
		t.Parallel()

		var seen error
		wrapped := funnel.WrapErrorHandler(func(err error, ctx *funnel.Context, next funnel.Next) any {
			seen = err
			panic(errors.New("rethrown"))
		}, funnel.WithLogger(discardLogger()))

		rec := &recorder{}
		assert.NotPanics(t, func() {
			wrapped(errors.New("upstream"), nil, rec.next)
		})

		require.Error(t, seen)
		assert.Equal(t, "upstream", seen.Error())

		calls := rec.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "rethrown", calls[0].Error())
	})

	t.Run("nil_function_wraps_to_nil", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, funnel.WrapErrorHandler(nil))
		assert.Nil(t, funnel.WrapHandler(nil))
	})
}

func TestWrapCallable(t *testing.T) {
	t.Parallel()

	t.Run("preserves_name_arity_and_meta", func(t *testing.T) {
		t.Parallel()

		c := funnel.NewHandler("listUsers", func(ctx *funnel.Context, next funnel.Next) any {
			return nil
		})
		c.SetMeta("route", "/users")

		w, err := funnel.WrapCallable(c, funnel.WithLogger(discardLogger()))
		require.NoError(t, err)

		assert.Equal(t, funnel.WrappedPrefix+"listUsers", w.Name())
		assert.Equal(t, c.Arity(), w.Arity())
		assert.True(t, w.IsWrapped())
		assert.False(t, c.IsWrapped())

		route, ok := w.MetaValue("route")
		require.True(t, ok)
		assert.Equal(t, "/users", route)
	})

	t.Run("wrapping_is_idempotent", func(t *testing.T) {
		t.Parallel()

		c := funnel.NewHandler("h", func(ctx *funnel.Context, next funnel.Next) any {
			return nil
		})

		w1, err := funnel.WrapCallable(c, funnel.WithLogger(discardLogger()))
		require.NoError(t, err)
		w2, err := funnel.WrapCallable(w1, funnel.WithLogger(discardLogger()))
		require.NoError(t, err)

		assert.Same(t, w1, w2)
		assert.Equal(t, funnel.WrappedPrefix+"h", w2.Name())
	})

	t.Run("nil_callable_fails", func(t *testing.T) {
		t.Parallel()

		_, err := funnel.WrapCallable(nil)
		assert.ErrorIs(t, err, funnel.ErrNilCallable)
	})

	t.Run("error_shape_is_preserved", func(t *testing.T) {
		t.Parallel()

		c := funnel.NewErrorHandler("recoverer", func(err error, ctx *funnel.Context, next funnel.Next) any {
			return nil
		})

		w, err := funnel.WrapCallable(c, funnel.WithLogger(discardLogger()))
		require.NoError(t, err)

		assert.True(t, w.IsErrorShape())
		_, ok := w.ErrorHandler()
		assert.True(t, ok)
	})
}
