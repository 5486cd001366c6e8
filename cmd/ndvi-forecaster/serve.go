package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aouyang1/go-ndvi-forecaster/internal/api"
	"github.com/aouyang1/go-ndvi-forecaster/internal/observability"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var ErrUnknownProfile = errors.New("unknown profile mode")

// serveCmd runs the HTTP prediction service until interrupted
func serveCmd(flags *rootFlags) *cobra.Command {
	var profileMode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forecasts over HTTP",
		Long: `Starts the HTTP prediction service. Learned models are loaded once at startup; regions
without a usable model answer learned forecasts with 503 while statistical forecasts keep working.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd)

			switch profileMode {
			case "":
			case "cpu":
				defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
			case "mem":
				defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
			default:
				return fmt.Errorf("%q, %w", profileMode, ErrUnknownProfile)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing, version)
			if err != nil {
				return fmt.Errorf("failed to init tracing: %w", err)
			}
			defer func() {
				tctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				if err := shutdownTracer(tctx); err != nil {
					logger.Error("failed to flush traces", "error", err)
				}
			}()

			engine, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}

			srv := api.NewServer(engine, logger,
				api.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout),
				api.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst),
				api.WithDefaultBackend(cfg.DefaultBackend()),
				api.WithVersion(version),
				api.WithMetrics(observability.NewMetrics(), prometheus.DefaultGatherer),
			)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(cfg.HTTP.Addr)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("http server failed: %w", err)
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			}

			sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}

	cmd.Flags().StringVar(&profileMode, "profile", "", "Write a cpu or mem profile to the working directory")

	return cmd
}
