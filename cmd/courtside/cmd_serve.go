package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/courtside/internal/frontdoor/ollama"
	"github.com/tjfontaine/courtside/internal/server"
	"github.com/tjfontaine/courtside/internal/telemetry"
	"github.com/tjfontaine/courtside/pkg/gateway"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if cfg.Telemetry.Enabled {
		opts := []telemetry.Option{telemetry.WithWriter(os.Stderr)}
		if cfg.Telemetry.PrettyPrint {
			opts = append(opts, telemetry.WithPrettyPrint())
		}
		shutdown, err := telemetry.InitTracer(server.ServiceName, ollama.Version, logger, opts...)
		if err != nil {
			return fmt.Errorf("initialize tracer: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	gw, err := gateway.New(
		gateway.WithConfig(cfg),
		gateway.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gw.Start(ctx); err != nil {
		release(context.Background(), logger, gw)
		return fmt.Errorf("start gateway: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gw.Done():
			if err := gw.Err(); err != nil {
				return err
			}
			return errors.New("server stopped unexpectedly")
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, draining requests",
			slog.Duration("timeout", cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return gw.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// release shuts down a gateway that is being abandoned because of an earlier
// error. Its own failure is logged so the earlier error stays the one returned.
func release(ctx context.Context, logger *slog.Logger, gw shutdowner) {
	if err := gw.Shutdown(ctx); err != nil {
		logger.Error("failed to release gateway", slog.String("error", err.Error()))
	}
}
