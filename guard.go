package funnel

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dmitrymomot/funnel/core/logger"
)

// guard enforces at-most-once continuation delivery for a single invocation
// of a wrapped callable. Every invocation gets a fresh guard; the fired flag
// is never shared across calls. The flag is atomic because drained pending
// results settle on other goroutines.
type guard struct {
	callable string
	next     Next
	log      *slog.Logger
	onDrop   DropHook
	fired    atomic.Bool
	id       func() string
}

func newGuard(callable string, next Next, o *options) *guard {
	return &guard{
		callable: callable,
		next:     next,
		log:      o.logger,
		onDrop:   o.onDrop,
		id:       sync.OnceValue(uuid.NewString),
	}
}

// fire delivers err through the continuation unless it already fired for
// this invocation. Losing attempts are dropped with a warning and reported
// to the drop hook; they are never delivered.
func (g *guard) fire(err error) {
	if !g.fired.CompareAndSwap(false, true) {
		g.log.Warn("continuation already fired for this invocation, dropping signal",
			logger.Callable(g.callable),
			logger.InvocationID(g.id()),
			logger.Dropped(err))
		if g.onDrop != nil {
			g.onDrop(g.callable, err)
		}
		return
	}
	g.next(err)
}

// continuation is the guarded replacement handed to the original callable.
func (g *guard) continuation() Next {
	return g.fire
}
