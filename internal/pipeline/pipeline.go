package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/observability"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
)

// DatasetLoader reads the cleaned dataset rows.
type DatasetLoader interface {
	Load(ctx context.Context) ([]domain.Row, error)
}

// Trainer fits one model per (category, month) key.
type Trainer interface {
	TrainAll(ctx context.Context, categories []string, partitions map[domain.Key]domain.TrainingSet) (*registry.Registry, registry.TrainReport, error)
}

// ReportPublisher ships the evaluation report of a fresh training pass.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report registry.TrainReport) error
}

// State is the startup state of the registry.
type State int32

const (
	// StateCold means no registry is available yet.
	StateCold State = iota
	// StateReady means the registry is loaded and serving. It is terminal.
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "cold"
}

// Source tells where the ready registry came from.
type Source string

// Registry sources.
const (
	SourceNone    Source = ""
	SourceCache   Source = "cache"
	SourceTrained Source = "trained"
)

// Options adjusts a startup run.
type Options struct {
	// ForceRetrain skips the cache load and always trains (and saves) a new registry.
	ForceRetrain bool
}

// Pipeline takes the service from COLD to READY: load the dataset, reuse the
// cached registry when it matches, otherwise partition, train and save.
type Pipeline struct {
	loader    DatasetLoader
	store     registry.BlobStore
	trainer   Trainer
	publisher ReportPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options

	runMu    sync.Mutex
	state    atomic.Int32
	source   atomic.Value // Source
	registry atomic.Pointer[registry.Registry]
	report   atomic.Pointer[registry.TrainReport]
}

// New creates a Pipeline. publisher may be nil to disable report publishing.
func New(loader DatasetLoader, store registry.BlobStore, trainer Trainer, publisher ReportPublisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	p := &Pipeline{
		loader:    loader,
		store:     store,
		trainer:   trainer,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
	p.source.Store(SourceNone)
	return p
}

// CheckReadiness returns nil once the registry is ready to serve forecasts.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.State() != StateReady {
		return errors.New("model registry is not ready")
	}
	return nil
}

// State returns the current startup state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// Source returns where the ready registry came from, or SourceNone before READY.
func (p *Pipeline) Source() Source { return p.source.Load().(Source) }

// Registry returns the ready registry, or nil before READY.
func (p *Pipeline) Registry() *registry.Registry { return p.registry.Load() }

// LastReport returns the report of the training pass run by this pipeline, or
// nil when the registry came from the cache.
func (p *Pipeline) LastReport() *registry.TrainReport { return p.report.Load() }

// Run drives startup to READY and returns the registry. Only a dataset failure,
// a training pass with no usable model, or cancellation is returned as an error;
// cache misses and save failures are logged and absorbed. READY is terminal:
// once reached, Run returns the same registry without doing any work.
func (p *Pipeline) Run(ctx context.Context) (*registry.Registry, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.State() == StateReady {
		return p.Registry(), nil
	}

	rows, err := p.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	records := domain.FlattenRows(rows)
	fingerprint := domain.Fingerprint(records)
	p.logger.Info("dataset ready", "rows", len(rows), "records", len(records), "fingerprint", fingerprint)

	if !p.opts.ForceRetrain {
		reg, err := registry.Load(ctx, p.store, fingerprint)
		if err == nil {
			p.metrics.CacheLoads.WithLabelValues("hit").Inc()
			p.logger.Info("registry loaded from cache", "models", reg.Len(), "categories", len(reg.Categories()))
			p.markReady(reg, SourceCache)
			return reg, nil
		}
		p.metrics.CacheLoads.WithLabelValues("miss").Inc()
		p.logger.Warn("registry cache unusable, retraining", "error", err)
	} else {
		p.logger.Info("forced retrain requested, skipping cache")
	}

	reg, report, err := p.train(ctx, records)
	if err != nil {
		return nil, err
	}

	if err := registry.Save(ctx, p.store, reg, fingerprint); err != nil {
		p.metrics.CacheSaveErrors.Inc()
		p.logger.Error("registry cache not saved", "error", err)
	} else {
		p.logger.Info("registry cache saved", "models", reg.Len())
	}

	p.publish(ctx, report)
	p.report.Store(&report)
	p.markReady(reg, SourceTrained)
	return reg, nil
}

func (p *Pipeline) train(ctx context.Context, records []domain.Record) (*registry.Registry, registry.TrainReport, error) {
	start := time.Now()
	categories := domain.Categories(records)
	partitions := domain.Partition(records, categories)

	reg, report, err := p.trainer.TrainAll(ctx, categories, partitions)
	if err != nil {
		return nil, report, err
	}
	p.metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	p.metrics.ModelsTrained.Add(float64(reg.Len()))
	p.metrics.EmptyPartitions.Add(float64(len(report.Skipped)))

	if reg.Len() == 0 {
		return nil, report, fmt.Errorf("train registry: %w", domain.ErrNoModels)
	}
	return reg, report, nil
}

func (p *Pipeline) publish(ctx context.Context, report registry.TrainReport) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishReport(ctx, report); err != nil {
		p.logger.Error("publish training report failed", "run_id", report.RunID, "error", err)
		return
	}
	p.metrics.ReportsPublished.Add(float64(len(report.Evaluations)))
}

func (p *Pipeline) markReady(reg *registry.Registry, source Source) {
	p.registry.Store(reg)
	p.source.Store(source)
	p.state.Store(int32(StateReady))
	p.metrics.RegistryModels.Set(float64(reg.Len()))
	p.metrics.RegistryReady.Set(1)
	p.logger.Info("registry ready", "source", string(source), "models", reg.Len())
}
