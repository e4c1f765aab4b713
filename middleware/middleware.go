package middleware

import (
	"context"

	"packrpc/serial"
)

// HandlerFunc processes one decoded request form and returns the
// response form (usually the same object, mutated in place).
type HandlerFunc func(ctx context.Context, form serial.Form) serial.Form

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one. Chain(A, B, C)(h) runs A's
// before-phase first and its after-phase last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
