package funnel

import (
	"errors"
	"sync"
	"time"
)

// ErrAwaitTimeout is returned by AwaitWithTimeout when the pending result
// does not settle in time.
var ErrAwaitTimeout = errors.New("await timeout")

// Awaiter is the pending-result contract understood by the wrapping layer:
// Await blocks until the asynchronous operation settles and returns its
// failure, if any. A handler returning a non-nil Awaiter has its eventual
// failure funneled to the continuation.
type Awaiter interface {
	Await() error
}

// Pending is the canonical Awaiter implementation: a future settled by
// exactly one completion. Safe for concurrent use.
type Pending struct {
	err  error
	once sync.Once
	done chan struct{}
}

// Go runs fn on a new goroutine and returns its Pending result. A panic in
// fn is normalized into an error and settles the result.
func Go(fn func() error) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				p.complete(toError(rec))
			}
		}()
		p.complete(fn())
	}()
	return p
}

// Resolved returns an already settled successful result.
func Resolved() *Pending {
	p := &Pending{done: make(chan struct{})}
	p.complete(nil)
	return p
}

// Rejected returns an already settled failed result.
func Rejected(err error) *Pending {
	p := &Pending{done: make(chan struct{})}
	p.complete(err)
	return p
}

func (p *Pending) complete(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Await blocks until the result settles and returns its failure, if any.
// Await on a nil Pending returns nil.
func (p *Pending) Await() error {
	if p == nil {
		return nil
	}
	<-p.done
	return p.err
}

// AwaitWithTimeout is Await with an upper bound on the wait. It returns
// ErrAwaitTimeout when the result does not settle before the timeout.
func (p *Pending) AwaitWithTimeout(timeout time.Duration) error {
	if p == nil {
		return nil
	}
	select {
	case <-p.done:
		return p.err
	case <-time.After(timeout):
		return ErrAwaitTimeout
	}
}

// IsComplete reports whether the result has settled, without blocking.
func (p *Pending) IsComplete() bool {
	if p == nil {
		return true
	}
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
