package middleware

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"packrpc/serial"
)

// Logging reports each dispatched call with its duration, and any error
// the response carries. The adapter is needed to read the function name
// and error fields out of the form.
func Logging(ad serial.Adapter) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, form serial.Form) serial.Form {
			start := time.Now()
			resp := next(ctx, form)
			if exc := ad.ExtractException(resp); exc != nil {
				log.Errorf("dispatch %s failed after %s: %s: %s",
					ad.FuncName(form), time.Since(start), exc.Kind, exc.Mesg)
			} else {
				log.Debugf("dispatch %s took %s", ad.FuncName(form), time.Since(start))
			}
			return resp
		}
	}
}
