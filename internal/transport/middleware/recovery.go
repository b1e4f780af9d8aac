package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/middleware"

	"github.com/imec-int/monument-plwd-sub001/internal"
)

// RecoveryMiddleware turns a handler panic into a 500 error envelope. When the
// handler already started the response only the log entry is written.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww, ok := w.(chimiddleware.WrapResponseWriter)
			if !ok {
				ww = chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"trace_id", internal.TraceIDFromContext(r.Context()),
					"stack", string(debug.Stack()))

				if ww.Status() != 0 {
					return
				}
				status, body := internal.NewInternalError("Internal server error", nil).ToHTTPResponse()
				ww.Header().Set("Content-Type", "application/json")
				ww.WriteHeader(status)
				_ = json.NewEncoder(ww).Encode(body)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
