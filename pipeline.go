package funnel

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/funnel/core/logger"
)

// Responder writes the terminal response for a failure that reached the end
// of the chain unhandled.
type Responder func(ctx *Context, err error)

// Pipeline is a minimal host that dispatches a chain of wrapped callables by
// shape: normal-path steps run while no failure is pending, error-path steps
// run once one is. Steps are wrapped at registration time, so every failure
// they produce arrives through the continuation.
type Pipeline struct {
	steps    []*Callable
	wrapOpts []Option
	logger   *slog.Logger
	respond  Responder
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWrapOptions sets the wrap options applied to every registered step.
func WithWrapOptions(opts ...Option) PipelineOption {
	return func(p *Pipeline) {
		p.wrapOpts = opts
	}
}

// WithResponder replaces the terminal failure responder.
func WithResponder(respond Responder) PipelineOption {
	return func(p *Pipeline) {
		if respond != nil {
			p.respond = respond
		}
	}
}

// WithPipelineLogger sets the logger used by the pipeline itself.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates an empty pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	p.respond = p.respondDefault
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Use wraps each target and appends it to the chain. Targets may be
// HandlerFunc, ErrorHandlerFunc, or *Callable; anything else fails with
// ErrNotWrappable.
func (p *Pipeline) Use(targets ...any) error {
	for _, target := range targets {
		c, err := p.register(target)
		if err != nil {
			return err
		}
		p.steps = append(p.steps, c)
	}
	return nil
}

// Controller wraps the controller's bundle and appends the named members to
// the chain in the given order. ctrl may be a *Bundle or a controller struct
// pointer.
func (p *Pipeline) Controller(ctrl any, members ...string) error {
	wrapped, err := Wrap(ctrl, p.wrapOpts...)
	if err != nil {
		return err
	}
	b, ok := wrapped.(*Bundle)
	if !ok {
		return fmt.Errorf("%w: %T is not a bundle", ErrNotWrappable, ctrl)
	}
	for _, member := range members {
		c, err := b.Member(member)
		if err != nil {
			return err
		}
		p.steps = append(p.steps, c)
	}
	return nil
}

func (p *Pipeline) register(target any) (*Callable, error) {
	switch t := target.(type) {
	case *Callable:
		return WrapCallable(t, p.wrapOpts...)
	case HandlerFunc:
		return WrapCallable(NewHandler("", t), p.wrapOpts...)
	case func(*Context, Next) any:
		return WrapCallable(NewHandler("", t), p.wrapOpts...)
	case ErrorHandlerFunc:
		return WrapCallable(NewErrorHandler("", t), p.wrapOpts...)
	case func(error, *Context, Next) any:
		return WrapCallable(NewErrorHandler("", t), p.wrapOpts...)
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotWrappable, target)
	}
}

// ServeHTTP implements http.Handler.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := &responseWriter{ResponseWriter: w}
	p.dispatch(NewContext(ww, r), 0, nil)
	p.logger.Debug("request chain completed",
		logger.Component("pipeline"),
		logger.Elapsed(start))
}

// dispatch advances the chain by callable shape. The continuation handed to
// each step resumes dispatch after it: next(nil) from an error-path step
// marks the failure handled and returns to the normal chain, next(err)
// forwards it to the following error-path step.
func (p *Pipeline) dispatch(ctx *Context, from int, failure error) {
	for i := from; i < len(p.steps); i++ {
		step := p.steps[i]
		if step.IsErrorShape() != (failure != nil) {
			continue
		}
		next := Next(func(err error) {
			p.dispatch(ctx, i+1, err)
		})
		if failure != nil {
			step.Invoke(failure, ctx, next)
		} else {
			step.Invoke(ctx, next)
		}
		return
	}
	if failure != nil {
		p.respond(ctx, failure)
	}
}

// respondDefault translates an unhandled failure into a JSON response.
// Structured Errors keep their status; everything else becomes a 500.
func (p *Pipeline) respondDefault(ctx *Context, err error) {
	w := ctx.ResponseWriter()
	if ww, ok := w.(*responseWriter); ok && ww.Written() {
		return
	}

	var appErr Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.Status)
	if encErr := json.NewEncoder(w).Encode(appErr); encErr != nil {
		p.logger.Error("failed to encode error response", logger.Error(encErr))
	}
}
