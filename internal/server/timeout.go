package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds the lifetime of each request context. Handlers and
// the upstream calls they make observe the deadline through ctx; nothing is
// written on their behalf when it fires, so a streamed answer is simply cut
// off. A non-positive timeout returns next unchanged.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
