package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds request handling end to end: the request context
// deadline cancels in-flight provider and database calls, and a handler
// that overruns gets cut off with the API error envelope. Capture work
// is unaffected; the worker runs on its own context.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			timeoutHandler := http.TimeoutHandler(
				next,
				timeout,
				`{"success":false,"error":{"code":"TIMEOUT","message":"Request timeout"}}`,
			)

			timeoutHandler.ServeHTTP(w, r)
		})
	}
}
