// Package server provides the HTTP router and the middleware shared by every
// route: request IDs, structured request logging, timeouts and tracing.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ServiceName names the service in traces.
const ServiceName = "courtside"

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

// New creates a router with the middleware stack applied. A requestTimeout
// of zero leaves request lifetimes to the client.
func New(port int, logger *slog.Logger, requestTimeout time.Duration) *Server {
	r := chi.NewRouter()

	// The span is opened first so every later layer can annotate it.
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, ServiceName)
	})
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

// HTTPServer returns an http.Server for the router. Write timeouts are left
// unset because chat responses stream for as long as the model generates.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
