package middleware

import (
	"log/slog"
	"net/http"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain composes mws so the first one is the outermost: Chain(a, b)(h)
// serves a(b(h)).
func Chain(mws ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			final = mws[i](final)
		}
		return final
	}
}

// Ops is the stack in front of the health endpoints. The request id is set
// first so both the recovered panic and the access log carry it. Requests
// to quietPaths are logged at debug.
func Ops(logger *slog.Logger, quietPaths ...string) Middleware {
	return Chain(
		RequestID(),
		Logger(logger, quietPaths...),
		Recovery(logger),
	)
}
