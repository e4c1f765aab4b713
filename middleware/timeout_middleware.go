package middleware

import (
	"context"
	"time"

	"packrpc/rpcerr"
	"packrpc/serial"
)

// Timeout bounds handler execution. On expiry the caller gets a
// remote_exec error; the handler goroutine is left to finish on its own
// (its response form is discarded).
func Timeout(ad serial.Adapter, timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, form serial.Form) serial.Form {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan serial.Form, 1)
			go func() {
				done <- next(ctx, form)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				errObj := ad.EmptyObject()
				errObj["func_name"] = ad.FuncName(form)
				ad.SetException(errObj, rpcerr.New(rpcerr.RemoteExec, "request timed out"))
				return errObj
			}
		}
	}
}
