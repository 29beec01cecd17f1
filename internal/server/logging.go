package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type requestLogKey struct{}

// requestLog collects attributes that handlers attach while serving a
// request. Attributes are emitted in the order they were first added.
type requestLog struct {
	mu    sync.Mutex
	attrs []slog.Attr
	index map[string]int
}

func (l *requestLog) set(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[key]; ok {
		l.attrs[i] = slog.String(key, value)
		return
	}
	l.index[key] = len(l.attrs)
	l.attrs = append(l.attrs, slog.String(key, value))
}

func (l *requestLog) snapshot() []slog.Attr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]slog.Attr(nil), l.attrs...)
}

// LoggingMiddleware emits one "request completed" record per request with
// the status, bytes relayed, whether the response was streamed, and any
// fields handlers attached through AddLogField or AddError. Server errors are
// logged at error level.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := GetRequestID(r.Context())

			rl := &requestLog{index: make(map[string]int)}
			ctx := context.WithValue(r.Context(), requestLogKey{}, rl)
			rw := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

			logger.LogAttrs(ctx, slog.LevelDebug, "request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.Int64("bytes", rw.bytes),
				slog.Bool("streamed", rw.flushes > 0),
				slog.Duration("duration", time.Since(start)),
			}
			attrs = append(attrs, rl.snapshot()...)

			level := slog.LevelInfo
			if rw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(ctx, level, "request completed", attrs...)
		})
	}
}

// responseRecorder observes what a handler sends without buffering it.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	bytes       int64
	flushes     int
}

func (rw *responseRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(p []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += int64(n)
	return n, err
}

// Flush keeps NDJSON relays streaming through the middleware.
func (rw *responseRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		rw.flushes++
		f.Flush()
	}
}

// AddLogField attaches key=value to the request's completion record. Empty
// values are ignored, as are calls outside LoggingMiddleware.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if rl, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		rl.set(key, value)
	}
}

// AddError records err under the "error" field.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error", err.Error())
}
