package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/rainfall-forecast-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/rainfall-forecast-service/internal/app"
	"github.com/couchcryptid/rainfall-forecast-service/internal/config"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forecast"
	"github.com/couchcryptid/rainfall-forecast-service/internal/observability"
	"github.com/couchcryptid/rainfall-forecast-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	components, err := app.New(cfg, logger, metrics, pipeline.Options{})
	if err != nil {
		logger.Error("failed to initialize service", "error", err)
		os.Exit(1)
	}
	p := components.Pipeline

	var opts []httpadapter.Option
	if components.Geocoder != nil {
		opts = append(opts, httpadapter.WithGeocoder(components.Geocoder, cfg.GeocodeRegion))
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server; /readyz reports not ready until the registry is up.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Bring the registry up: cache, or retrain on a miss.
	failed := make(chan struct{})
	go func() {
		reg, err := p.Run(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("model registry startup failed", "error", err)
				close(failed)
			}
			return
		}
		srv.SetForecaster(forecast.NewService(reg, metrics))
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case <-failed:
		exitCode = 1
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := components.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}
