// Package requesttime pins one "now" per HTTP request so request logs and
// latency measurements agree.
package requesttime

import (
	"net/http"
	"time"

	"visitledger/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Since reports the time elapsed since the request-scoped start.
func Since(r *http.Request) time.Duration {
	return time.Since(requestcontext.Now(r.Context()))
}
