package funnel

import (
	"net/http"
	"time"
)

// Context is the request context passed as the first argument of every
// handler. It delegates all context.Context methods to the request's
// context.
type Context struct {
	w      http.ResponseWriter
	r      *http.Request
	params map[string]string
	values map[any]any
}

// NewContext creates a request context around the writer and request.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{w: w, r: r}
}

// Deadline delegates to the request's context. A context built without a
// request never expires.
func (c *Context) Deadline() (deadline time.Time, ok bool) {
	if c.r == nil {
		return time.Time{}, false
	}
	return c.r.Context().Deadline()
}

// Done delegates to the request's context. A context built without a
// request is never canceled.
func (c *Context) Done() <-chan struct{} {
	if c.r == nil {
		return nil
	}
	return c.r.Context().Done()
}

// Err delegates to the request's context.
func (c *Context) Err() error {
	if c.r == nil {
		return nil
	}
	return c.r.Context().Err()
}

// Value returns a value set with SetValue, falling back to the request's
// context.
func (c *Context) Value(key any) any {
	if v, ok := c.values[key]; ok {
		return v
	}
	if c.r == nil {
		return nil
	}
	return c.r.Context().Value(key)
}

// SetValue stores a request-scoped value on the context.
func (c *Context) SetValue(key, val any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = val
}

// Request returns the *http.Request associated with the context.
func (c *Context) Request() *http.Request {
	return c.r
}

// ResponseWriter returns the http.ResponseWriter associated with the context.
func (c *Context) ResponseWriter() http.ResponseWriter {
	return c.w
}

// Param returns the value of the URL parameter by key.
func (c *Context) Param(key string) string {
	return c.params[key]
}

// SetParam sets a URL parameter value. Router adapters use it to expose
// their own path parameters to handlers.
func (c *Context) SetParam(key, value string) {
	if c.params == nil {
		c.params = make(map[string]string)
	}
	c.params[key] = value
}
