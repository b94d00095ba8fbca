package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/openboard/openboard/internal/logging"
)

// errorLogger records request context for responses that end in a server
// error. Status codes below 500 are left to the request logger.
func errorLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() >= http.StatusInternalServerError {
				log.Error(r.Context(), "request failed",
					"status", ww.Status(),
					"method", r.Method,
					"url", r.URL.String(),
					"ip", r.RemoteAddr,
					"user_agent", r.UserAgent(),
				)
			}
		})
	}
}

// recoverer converts panics into 500 responses. The panic value is included
// in the body only in development mode.
func recoverer(log logging.Logger, dev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error(r.Context(), "panic recovered",
						"error", fmt.Sprint(rec),
						"method", r.Method,
						"url", r.URL.String(),
						"ip", r.RemoteAddr,
						"user_agent", r.UserAgent(),
						"stack", string(debug.Stack()),
					)

					message := "internal server error"
					if dev {
						message = fmt.Sprintf("internal server error: %v", rec)
					}
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"success": false,
						"message": message,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
