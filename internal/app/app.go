// Package app assembles the service components from configuration. It is
// shared by the forecast server and the forecastctl operator tool.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/rainfall-forecast-service/internal/adapter/badger"
	"github.com/couchcryptid/rainfall-forecast-service/internal/adapter/filestore"
	"github.com/couchcryptid/rainfall-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/rainfall-forecast-service/internal/adapter/mapbox"
	"github.com/couchcryptid/rainfall-forecast-service/internal/config"
	"github.com/couchcryptid/rainfall-forecast-service/internal/dataset"
	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/observability"
	"github.com/couchcryptid/rainfall-forecast-service/internal/pipeline"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
)

// Components holds everything a process needs to bring the registry up.
type Components struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Store    registry.BlobStore
	Pipeline *pipeline.Pipeline
	Geocoder domain.Geocoder // nil when geocoding is disabled

	closers []io.Closer
}

// New wires the store, dataset loader, trainer and optional report publisher
// and geocoder into a pipeline.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, opts pipeline.Options) (*Components, error) {
	store, err := NewStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	trainer, err := registry.NewTrainer(cfg.Trainer(), logger)
	if err != nil {
		return nil, err
	}

	c := &Components{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Store:   store,
	}

	// A nil *ReportWriter must not reach the pipeline as a non-nil interface.
	var publisher pipeline.ReportPublisher
	if cfg.KafkaEnabled() {
		w := kafka.NewReportWriter(cfg, logger)
		c.closers = append(c.closers, w)
		publisher = w
		logger.Info("training report publishing enabled", "topic", cfg.KafkaReportTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("training report publishing disabled")
	}

	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		c.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	loader := dataset.NewLoader(cfg.DatasetPath, logger)
	c.Pipeline = pipeline.New(loader, store, trainer, publisher, logger, metrics, opts)
	return c, nil
}

// NewStore returns the blob store selected by CACHE_BACKEND.
func NewStore(cfg *config.Config, logger *slog.Logger) (registry.BlobStore, error) {
	switch cfg.CacheBackend {
	case config.BackendFile, "":
		return filestore.New(cfg.CachePath), nil
	case config.BackendBadger:
		return badger.New(cfg.CachePath, logger), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

// Close releases the publisher connection, if any.
func (c *Components) Close() error {
	var errs []error
	for _, cl := range c.closers {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}
