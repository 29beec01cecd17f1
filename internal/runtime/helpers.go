package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/courtside/internal/capability"
	"github.com/tjfontaine/courtside/internal/capability/nba"
	"github.com/tjfontaine/courtside/internal/config"
	"github.com/tjfontaine/courtside/internal/pkg/safehttp"
	"github.com/tjfontaine/courtside/internal/storage"
	"github.com/tjfontaine/courtside/internal/storage/memory"
	"github.com/tjfontaine/courtside/internal/storage/sqlite"
)

// NewNBAProvider selects the sports data provider for cfg.
func NewNBAProvider(cfg config.NBAConfig, logger *slog.Logger) nba.Provider {
	if cfg.UseMockNBA() {
		if !cfg.Mock {
			logger.Warn("no balldontlie API key configured, serving the built-in dataset")
		}
		return nba.NewMockProvider()
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.SafeTransport {
		transport = safehttp.NewTransport()
	}
	return nba.NewClient(cfg.APIKey,
		nba.WithBaseURL(cfg.BaseURL),
		nba.WithHTTPClient(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		}),
	)
}

// NewRegistry builds the capability registry over provider.
func NewRegistry(provider nba.Provider, cfg config.NBAConfig, logger *slog.Logger) (*capability.Registry, error) {
	return capability.NewRegistry(nba.Capabilities(provider),
		capability.WithLogger(logger),
		capability.WithDebug(cfg.Debug),
	)
}

// NewInvocationStore opens the store selected by cfg. It returns nil for
// storage type "none".
func NewInvocationStore(cfg config.StorageConfig) (storage.InvocationStore, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "memory":
		return memory.New(cfg.Capacity), nil
	case "sqlite":
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
