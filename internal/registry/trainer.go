package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forest"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// TrainerConfig controls a training pass.
type TrainerConfig struct {
	Params       forest.Params
	TestFraction float64 // share of each training set held out for evaluation
	Seed         *uint64 // nil trains non-deterministically
	Workers      int     // parallel keys; <= 0 uses runtime.NumCPU()
}

// Trainer fits one model per key.
type Trainer struct {
	cfg    TrainerConfig
	logger *slog.Logger
}

// ErrInvalidConfig is returned by NewTrainer for unusable settings.
var ErrInvalidConfig = errors.New("invalid trainer config")

// NewTrainer creates a Trainer.
func NewTrainer(cfg TrainerConfig, logger *slog.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Trainer{cfg: cfg, logger: logger}, nil
}

// Evaluation is the held-out accuracy of one model. Error fields are zero when
// nothing was held out; R2 is nil when it is undefined (fewer than two held-out
// observations or constant held-out values).
type Evaluation struct {
	Key       domain.Key `json:"key"`
	TrainSize int        `json:"train_size"`
	TestSize  int        `json:"test_size"`
	MAE       float64    `json:"mae"`
	RMSE      float64    `json:"rmse"`
	R2        *float64   `json:"r2,omitempty"`
	TrainedAt time.Time  `json:"trained_at"`
}

// KeyFailure records a key whose model could not be fitted.
type KeyFailure struct {
	Key   domain.Key `json:"key"`
	Error string     `json:"error"`
}

// TrainReport summarizes a training pass. It is never persisted with the registry.
type TrainReport struct {
	RunID       string       `json:"run_id"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Seed        *uint64      `json:"seed,omitempty"`
	Evaluations []Evaluation `json:"evaluations"`
	Skipped     []domain.Key `json:"skipped,omitempty"`
	Failed      []KeyFailure `json:"failed,omitempty"`
}

// Duration returns the wall time of the pass.
func (r TrainReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type job struct {
	key domain.Key
	set domain.TrainingSet
}

type outcome struct {
	model *Model
	eval  Evaluation
	err   error
}

// TrainAll fits a model for every non-empty training set. Categories fix the
// registry's category order; keys missing from partitions or with no
// observations are skipped and listed in the report. A key that fails to fit is
// left out without failing the pass. Only context cancellation aborts training.
func (t *Trainer) TrainAll(ctx context.Context, categories []string, partitions map[domain.Key]domain.TrainingSet) (*Registry, TrainReport, error) {
	report := TrainReport{
		RunID:     uuid.NewString(),
		StartedAt: domain.Now(),
		Seed:      t.cfg.Seed,
	}

	var jobs []job
	for _, c := range categories {
		for _, m := range domain.Months {
			key := domain.Key{Category: c, Month: m}
			set := partitions[key]
			if len(set) == 0 {
				t.logger.Warn("skipping key with no observations",
					"category", c, "month", m.String(), "error", domain.ErrEmptyPartition)
				report.Skipped = append(report.Skipped, key)
				continue
			}
			jobs = append(jobs, job{key: key, set: set})
		}
	}

	results := make([]outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)

	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = t.trainKey(j)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, fmt.Errorf("train models: %w", err)
	}

	reg := newRegistry()
	for i, res := range results {
		if res.err != nil {
			t.logger.Error("model training failed", "key", jobs[i].key.String(), "error", res.err)
			report.Failed = append(report.Failed, KeyFailure{Key: jobs[i].key, Error: res.err.Error()})
			continue
		}
		reg.add(res.model)
		report.Evaluations = append(report.Evaluations, res.eval)
	}
	report.FinishedAt = domain.Now()

	t.logger.Info("training pass complete",
		"run_id", report.RunID,
		"models", reg.Len(),
		"categories", len(reg.Categories()),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"duration", report.Duration(),
	)
	return reg, report, nil
}

func (t *Trainer) trainKey(j job) outcome {
	rng := t.rngFor(j.key)
	train, test := splitTrainTest(j.set, t.cfg.TestFraction, rng)

	est, err := forest.Fit(train.Features(), train.Targets(), t.cfg.Params, rng)
	if err != nil {
		return outcome{err: err}
	}

	m := &Model{
		Key:       j.key,
		Estimator: est,
		TrainedAt: domain.Now(),
		TrainSize: len(train),
		TestSize:  len(test),
	}
	t.logger.Debug("model trained", "key", j.key.String(), "train_size", m.TrainSize, "test_size", m.TestSize)
	return outcome{model: m, eval: evaluate(m, test)}
}

// rngFor derives the random source for one key. With a seed, the source depends
// only on the seed and the key, so results do not depend on worker scheduling or
// on the data of other keys.
func (t *Trainer) rngFor(key domain.Key) *rand.Rand {
	if t.cfg.Seed != nil {
		return rand.New(rand.NewPCG(*t.cfg.Seed, xxhash.Sum64String(key.String())))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// splitTrainTest shuffles set and holds out ceil(n*fraction) observations,
// always keeping at least one for training. Sets of fewer than two observations
// are used whole for training.
func splitTrainTest(set domain.TrainingSet, fraction float64, rng *rand.Rand) (train, test domain.TrainingSet) {
	n := len(set)
	nTest := 0
	if n >= 2 && fraction > 0 {
		nTest = int(math.Ceil(float64(n) * fraction))
		nTest = min(nTest, n-1)
	}

	perm := rng.Perm(n)
	test = make(domain.TrainingSet, 0, nTest)
	train = make(domain.TrainingSet, 0, n-nTest)
	for i, p := range perm {
		if i < nTest {
			test = append(test, set[p])
		} else {
			train = append(train, set[p])
		}
	}
	return train, test
}

func evaluate(m *Model, test domain.TrainingSet) Evaluation {
	ev := Evaluation{
		Key:       m.Key,
		TrainSize: m.TrainSize,
		TestSize:  len(test),
		TrainedAt: m.TrainedAt,
	}
	if len(test) == 0 {
		return ev
	}

	actual := test.Targets()
	predicted := make([]float64, len(test))
	absErr := make([]float64, len(test))
	sqErr := make([]float64, len(test))
	for i, o := range test {
		predicted[i] = m.Predict(o.Year)
		d := predicted[i] - actual[i]
		absErr[i] = math.Abs(d)
		sqErr[i] = d * d
	}

	ev.MAE = stat.Mean(absErr, nil)
	ev.RMSE = math.Sqrt(stat.Mean(sqErr, nil))
	if len(test) >= 2 {
		r2 := stat.RSquaredFrom(predicted, actual, nil)
		if !math.IsNaN(r2) && !math.IsInf(r2, 0) {
			ev.R2 = &r2
		}
	}
	return ev
}

// Validate reports configuration errors before a pass starts.
func (c TrainerConfig) Validate() error {
	if c.TestFraction < 0 || c.TestFraction >= 1 {
		return fmt.Errorf("%w: test fraction %v outside [0,1)", ErrInvalidConfig, c.TestFraction)
	}
	if c.Params.Trees < 1 {
		return fmt.Errorf("%w: trees must be >= 1", ErrInvalidConfig)
	}
	return nil
}
