// Package funnel wraps HTTP request handlers so that every failure they
// produce — a panic, a rejected pending result, or an explicit continuation
// error — is delivered to the trailing continuation exactly once instead of
// being lost or crashing the host framework.
//
// The package works at registration time: it takes a handler (or a bundle of
// handlers extracted from a controller) and returns a wrapped form with the
// same invocable shape. The host routing layer dispatches purely by callable
// shape and never needs to know about the wrapping.
//
// # Wrapping a single handler
//
//	h := funnel.WrapHandler(func(ctx *funnel.Context, next funnel.Next) any {
//		panic("boom") // recovered and delivered through next
//	})
//
// # Wrapping a controller bundle
//
//	type UserController struct {
//		BaseController // handlers on embedded levels are wrapped too
//	}
//
//	bundle, err := funnel.Wrap(&UserController{})
//
// # Running handlers through a pipeline
//
//	p := funnel.NewPipeline()
//	p.Use(listUsers, handleErrors)
//	http.ListenAndServe(":8080", p)
//
// The continuation contract allows a single signal per invocation. When a
// handler both calls next and subsequently panics, the first signal wins and
// the second is dropped with a diagnostic warning. Dropped signals can be
// observed through WithDropHook, e.g. for metrics.
package funnel
