package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/heartmarshall/satstream-ledger/pkg/ctxutil"
)

// errorBody matches the shape of the health endpoints' JSON.
type errorBody struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Recovery turns a panic in next into a logged 500 with a JSON body. The
// log line carries the request id and, for handlers run from a scheduled
// job, the job name. http.ErrAbortHandler is re-raised so the server can
// abort the response.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				requestID := ctxutil.RequestIDFromCtx(ctx)
				attrs := []slog.Attr{
					slog.Any("error", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", requestID),
					slog.String("stack", string(debug.Stack())),
				}
				if job := ctxutil.JobFromCtx(ctx); job != "" {
					attrs = append(attrs, slog.String("job", job))
				}
				logger.LogAttrs(ctx, slog.LevelError, "panic recovered", attrs...)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(errorBody{ //nolint:errcheck
					Status:    "error",
					Error:     "internal server error",
					RequestID: requestID,
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
