// Package runtime assembles the shim from configuration and manages the HTTP
// server lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	backend "github.com/tjfontaine/courtside/internal/backend/ollama"
	"github.com/tjfontaine/courtside/internal/capability"
	"github.com/tjfontaine/courtside/internal/capability/nba"
	"github.com/tjfontaine/courtside/internal/config"
	"github.com/tjfontaine/courtside/internal/frontdoor/ollama"
	"github.com/tjfontaine/courtside/internal/server"
	"github.com/tjfontaine/courtside/internal/storage"
	"github.com/tjfontaine/courtside/internal/tokens"
	"github.com/tjfontaine/courtside/internal/toolloop"
)

// Gateway is the assembled shim: Ollama client, capability registry, tool
// loop and HTTP surface.
type Gateway struct {
	// Dependencies (injected via options or built from config)
	cfg      *config.Config
	logger   *slog.Logger
	upstream ollama.Upstream
	provider nba.Provider
	store    storage.InvocationStore

	// Internal state
	registry *capability.Registry
	srv      *server.Server
	server   *http.Server
	listener net.Listener
	done     chan struct{}
	serveErr error

	mu sync.Mutex
}

// New creates a Gateway with the given options.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	// Validate required dependencies
	if gw.cfg == nil {
		return nil, fmt.Errorf("config required (use WithFileConfig or WithConfig)")
	}
	cfg := gw.cfg

	if gw.upstream == nil {
		gw.upstream = backend.NewClient(backend.WithBaseURL(cfg.Ollama.BaseURL))
	}
	if gw.provider == nil {
		gw.provider = NewNBAProvider(cfg.NBA, gw.logger)
	}
	if gw.store == nil {
		store, err := NewInvocationStore(cfg.Storage)
		if err != nil {
			return nil, err
		}
		gw.store = store
	}

	registry, err := NewRegistry(gw.provider, cfg.NBA, gw.logger)
	if err != nil {
		gw.closeStore()
		return nil, fmt.Errorf("create capability registry: %w", err)
	}
	gw.registry = registry

	loop, err := gw.newLoop()
	if err != nil {
		gw.closeStore()
		return nil, err
	}

	handlerOpts := []ollama.Option{
		ollama.WithLogger(gw.logger),
		ollama.WithDefaultModel(cfg.Chat.DefaultModel),
		ollama.WithTaskModel(cfg.Chat.TaskModel),
		ollama.WithSystemPrompt(cfg.Chat.SystemPrompt),
		ollama.WithPromptPrefix(cfg.Generate.PromptPrefix),
	}
	if gw.store != nil {
		handlerOpts = append(handlerOpts, ollama.WithInvocationStore(gw.store))
	}
	handler := ollama.NewHandler(gw.upstream, loop, handlerOpts...)

	gw.srv = server.New(cfg.Server.Port, gw.logger, cfg.Server.RequestTimeout)
	for _, reg := range handler.Handlers() {
		method := reg.Method
		if method == "" {
			method = http.MethodPost
		}

		switch method {
		case http.MethodGet:
			gw.srv.Router.Get(reg.Path, reg.Handler)
		case http.MethodPost:
			gw.srv.Router.Post(reg.Path, reg.Handler)
		default:
			gw.srv.Router.Method(method, reg.Path, reg.Handler)
		}

		gw.logger.Debug("registered handler",
			slog.String("method", method),
			slog.String("path", reg.Path))
	}

	return gw, nil
}

func (g *Gateway) newLoop() (*toolloop.Loop, error) {
	chat := g.cfg.Chat

	policy, err := toolloop.ParseToolErrorPolicy(chat.ToolErrorPolicy)
	if err != nil {
		return nil, err
	}
	budget, err := tokens.NewBudget(chat.MaxToolResultTokens)
	if err != nil {
		return nil, fmt.Errorf("create result budget: %w", err)
	}

	opts := []toolloop.Option{
		toolloop.WithLogger(g.logger),
		toolloop.WithMaxAttempts(chat.MaxAttempts),
		toolloop.WithToolErrorPolicy(policy),
		toolloop.WithCorrectiveReprompt(chat.CorrectiveReprompt),
		toolloop.WithMaxFrameBytes(chat.MaxFrameBytes),
		toolloop.WithResultBudget(budget),
	}
	if g.store != nil {
		opts = append(opts, toolloop.WithInvocationStore(g.store))
	}
	return toolloop.New(g.upstream, g.registry, opts...), nil
}

// Config returns the configuration in use.
func (g *Gateway) Config() *config.Config { return g.cfg }

// Registry returns the capability registry.
func (g *Gateway) Registry() *capability.Registry { return g.registry }

// Handler returns the HTTP handler with all routes and middleware.
func (g *Gateway) Handler() http.Handler { return g.srv.Router }

// Addr returns the listening address once started.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Start binds the configured port and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.server != nil {
		return errors.New("gateway already started")
	}

	srv := g.srv.HTTPServer()
	srv.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }

	ln, err := new(net.ListenConfig).Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	g.server = srv
	g.listener = ln
	g.done = make(chan struct{})

	go func() {
		defer close(g.done)
		g.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("server error", slog.String("error", err.Error()))
			g.mu.Lock()
			g.serveErr = err
			g.mu.Unlock()
		}
	}()

	g.logger.Info("gateway started",
		slog.String("ollama", g.cfg.Ollama.BaseURL),
		slog.Int("capabilities", len(g.registry.Names())),
		slog.String("storage", g.cfg.Storage.Type))

	return nil
}

// Done is closed when the server stops serving. It is nil before Start.
func (g *Gateway) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// Err returns the error that stopped the server, if any.
func (g *Gateway) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.serveErr
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires and closes the invocation store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	srv := g.server
	g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	var err error
	if srv != nil {
		if err = srv.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		}
	}

	g.closeStore()

	g.logger.Info("gateway shutdown complete")
	return err
}

func (g *Gateway) closeStore() {
	if g.store == nil {
		return
	}
	if err := g.store.Close(); err != nil {
		g.logger.Error("failed to close storage", slog.String("error", err.Error()))
	}
	g.store = nil
}
