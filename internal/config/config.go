package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/forest"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatasetPath  string `env:"DATASET_PATH" validate:"required"`
	CacheBackend string `env:"CACHE_BACKEND" validate:"oneof=file badger"`
	CachePath    string `env:"CACHE_PATH" validate:"required"`

	// Training.
	TrainSeed            *uint64 `env:"TRAIN_SEED"`
	TrainTestFraction    float64 `env:"TRAIN_TEST_FRACTION" validate:"gt=0,lt=1"`
	TrainWorkers         int     `env:"TRAIN_WORKERS" validate:"min=1"`
	ForestTrees          int     `env:"FOREST_TREES" validate:"min=1,max=1000"`
	ForestMaxDepth       int     `env:"FOREST_MAX_DEPTH" validate:"min=0"`
	ForestMinSamplesLeaf int     `env:"FOREST_MIN_SAMPLES_LEAF" validate:"min=1"`

	HTTPAddr        string        `env:"HTTP_ADDR" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`

	// Training report publishing; disabled when no brokers are set.
	KafkaBrokers     []string `env:"KAFKA_BROKERS"`
	KafkaReportTopic string   `env:"KAFKA_REPORT_TOPIC" validate:"required"`

	// Mapbox geocoding configuration.
	MapboxToken     string        `env:"MAPBOX_TOKEN" validate:"required_if=MapboxEnabled true"`
	MapboxEnabled   bool          `env:"MAPBOX_ENABLED"`
	MapboxTimeout   time.Duration `env:"MAPBOX_TIMEOUT" validate:"gt=0"`
	MapboxCacheSize int           `env:"MAPBOX_CACHE_SIZE" validate:"min=1"`
	GeocodeRegion   string        `env:"GEOCODE_REGION"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		DatasetPath:  sharedcfg.EnvOrDefault("DATASET_PATH", "data/rainfall_in_india_1901-2015.csv"),
		CacheBackend: strings.ToLower(sharedcfg.EnvOrDefault("CACHE_BACKEND", BackendFile)),
		CachePath:    sharedcfg.EnvOrDefault("CACHE_PATH", "data/models.registry"),

		TrainSeed:            p.seed("TRAIN_SEED"),
		TrainTestFraction:    p.float("TRAIN_TEST_FRACTION", 0.25),
		TrainWorkers:         p.int("TRAIN_WORKERS", runtime.NumCPU()),
		ForestTrees:          p.int("FOREST_TREES", 100),
		ForestMaxDepth:       p.int("FOREST_MAX_DEPTH", 0),
		ForestMinSamplesLeaf: p.int("FOREST_MIN_SAMPLES_LEAF", 1),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "rainfall-model-reports"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   p.duration("MAPBOX_TIMEOUT", 5*time.Second),
		MapboxCacheSize: p.int("MAPBOX_CACHE_SIZE", 1000),
		GeocodeRegion:   sharedcfg.EnvOrDefault("GEOCODE_REGION", "India"),
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KafkaEnabled reports whether training reports should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Trainer converts the training settings to a registry.TrainerConfig.
func (c *Config) Trainer() registry.TrainerConfig {
	params := forest.DefaultParams()
	params.Trees = c.ForestTrees
	params.MaxDepth = c.ForestMaxDepth
	params.MinSamplesLeaf = c.ForestMinSamplesLeaf
	return registry.TrainerConfig{
		Params:       params,
		TestFraction: c.TrainTestFraction,
		Seed:         c.TrainSeed,
		Workers:      c.TrainWorkers,
	}
}

func parseBrokers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(raw)
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) fail(key, raw string, err error) {
	p.errs = append(p.errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}

func (p *parser) seed(key string) *uint64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		p.fail(key, raw, err)
		return nil
	}
	return &v
}

var validate = newValidator()

func newValidator() func(*Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return func(cfg *Config) error {
		err := v.Struct(cfg)
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldError(fe))
		}
		return errors.Join(msgs...)
	}
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "required_if":
		return fmt.Errorf("%s is required when MAPBOX_ENABLED is true", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "min", "gt", "max", "lt":
		return fmt.Errorf("%s must be %s %s, got %v", fe.Field(), bound(fe.Tag()), fe.Param(), fe.Value())
	}
	return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
}

func bound(tag string) string {
	switch tag {
	case "min":
		return ">="
	case "gt":
		return ">"
	case "max":
		return "<="
	}
	return "<"
}
