package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"packrpc/rpcerr"
	"packrpc/serial"
)

// RateLimit rejects requests above a token-bucket rate. Rejected calls
// never reach the handler; the client sees a remote_exec error.
func RateLimit(ad serial.Adapter, r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, form serial.Form) serial.Form {
			if !limiter.Allow() {
				ad.SetException(form, rpcerr.New(rpcerr.RemoteExec, "rate limit exceeded"))
				return form
			}
			return next(ctx, form)
		}
	}
}
