// Command forecastctl queries, retrains and inspects the rainfall model
// registry from the command line, using the same environment configuration as
// the forecast service.
//
// Usage:
//
//	forecastctl categories
//	forecastctl predict "COASTAL KARNATAKA" JUL 2030
//	forecastctl train --json
//	forecastctl inspect
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/rainfall-forecast-service/cmd/forecastctl/commands"
	"github.com/couchcryptid/rainfall-forecast-service/internal/app"
	"github.com/couchcryptid/rainfall-forecast-service/internal/config"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forecast"
	"github.com/couchcryptid/rainfall-forecast-service/internal/observability"
	"github.com/couchcryptid/rainfall-forecast-service/internal/pipeline"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}

	// Logs go to stderr as text so stdout carries only command output.
	svc := &service{
		cfg:     cfg,
		logger:  observability.NewLoggerTo(stderr, "text", cfg.LogLevel),
		metrics: observability.NewMetricsWithRegistry(prometheus.NewRegistry()),
	}

	cli := commands.New(svc)
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	return 0
}

// service implements commands.Application on top of the startup pipeline.
type service struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func (s *service) start(ctx context.Context, opts pipeline.Options) (*app.Components, *registry.Registry, error) {
	c, err := app.New(s.cfg, s.logger, s.metrics, opts)
	if err != nil {
		return nil, nil, err
	}
	reg, err := c.Pipeline.Run(ctx)
	if err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	closeComponents(s.logger, c)
	return c, reg, nil
}

// closeComponents releases the report publisher once the registry is loaded.
// The registry is already usable, so a close failure is only logged.
func closeComponents(logger *slog.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("failed to close components", "error", err)
	}
}

func (s *service) Forecaster(ctx context.Context) (commands.Forecaster, error) {
	_, reg, err := s.start(ctx, pipeline.Options{})
	if err != nil {
		return nil, err
	}
	return forecast.NewService(reg, s.metrics), nil
}

func (s *service) Retrain(ctx context.Context) (*registry.TrainReport, error) {
	c, _, err := s.start(ctx, pipeline.Options{ForceRetrain: true})
	if err != nil {
		return nil, err
	}
	return c.Pipeline.LastReport(), nil
}

func (s *service) Inspect(ctx context.Context) (*registry.Summary, error) {
	store, err := app.NewStore(s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	return registry.Inspect(ctx, store)
}
