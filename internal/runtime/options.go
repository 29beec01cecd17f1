package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/courtside/internal/capability/nba"
	"github.com/tjfontaine/courtside/internal/config"
	"github.com/tjfontaine/courtside/internal/frontdoor/ollama"
	"github.com/tjfontaine/courtside/internal/storage"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig loads configuration from path, falling back to defaults and
// environment variables. An empty path reads config.yaml when present.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithUpstream replaces the Ollama client built from configuration.
func WithUpstream(upstream ollama.Upstream) Option {
	return func(g *Gateway) error {
		g.upstream = upstream
		return nil
	}
}

// WithNBAProvider replaces the sports data provider selected by configuration.
func WithNBAProvider(provider nba.Provider) Option {
	return func(g *Gateway) error {
		g.provider = provider
		return nil
	}
}

// WithInvocationStore replaces the invocation store selected by configuration.
// The gateway closes it on Shutdown.
func WithInvocationStore(store storage.InvocationStore) Option {
	return func(g *Gateway) error {
		g.store = store
		return nil
	}
}
