package render

import (
	"context"
	"time"
)

// Info describes one pipeline invocation to middleware. Outcome is set
// once next has returned.
type Info struct {
	InvocationID string
	URL          string
	Start        time.Time

	Outcome *Outcome
}

// Middleware wraps pipeline invocations.
type Middleware interface {
	Handle(ctx context.Context, info *Info, next func(context.Context) error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, info *Info, next func(context.Context) error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, info *Info, next func(context.Context) error) error {
	return f(ctx, info, next)
}

// chain wraps handler with middleware; the first middleware is outermost.
func chain(mw []Middleware, info *Info, handler func(context.Context) error) func(context.Context) error {
	next := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m, inner := mw[i], next
		next = func(ctx context.Context) error {
			return m.Handle(ctx, info, inner)
		}
	}
	return next
}
