// internal/cli/serve.go
package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"capacity-engine/internal/api"
	"capacity-engine/internal/common/config"
	"capacity-engine/internal/common/observability"
	refreshcache "capacity-engine/internal/workers/capacity/refresh-cache"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capacity HTTP API and background cache refresher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if addr != "" {
				cfg.Server.Address = addr
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting capacity engine",
		zap.String("name", cfg.App.Name),
		zap.String("version", Version),
		zap.String("environment", cfg.App.Environment),
	)

	shutdownTracing, err := observability.InitTracing(cfg.Tracing, cfg.App.Name, Version)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	a, err := buildApp(ctx, cfg, log, buildOptions{Server: true})
	if err != nil {
		_ = shutdownTracing(context.Background())
		return err
	}
	defer a.Close()

	srv := api.NewServer(api.Options{
		Calculator: a.calc,
		Breaker:    a.provider,
		Clock:      a.clock,
		Logger:     a.log,
		Version:    Version,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	refresher := refreshcache.NewHandler(refreshcache.LoadConfig(cfg.Capacity), a.calc, a.log)
	if err := runServer(ctx, httpServer, refresher, config.GetDuration(cfg.Server.ShutdownTimeout), shutdownTracing, log); err != nil {
		return err
	}

	log.Info("Capacity engine stopped gracefully")
	return nil
}

type backgroundRunner interface {
	Run(ctx context.Context) error
}

// runServer serves until ctx is done or the listener fails. Either way the
// background runner is stopped and tracing flushed before it returns.
func runServer(
	ctx context.Context,
	httpServer *http.Server,
	background backgroundRunner,
	shutdownTimeout time.Duration,
	shutdownTracing func(context.Context) error,
	log *zap.Logger,
) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	backgroundDone := make(chan struct{})
	go func() {
		defer close(backgroundDone)
		_ = background.Run(runCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
			runErr = err
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	<-backgroundDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("Tracing shutdown error", zap.Error(err))
	}
	return runErr
}
