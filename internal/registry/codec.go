package registry

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forest"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

const (
	blobFormat  = "rainfall-forecast/registry"
	blobVersion = 1
)

var (
	errFormat      = errors.New("unrecognized blob format")
	errVersion     = errors.New("unsupported blob version")
	errChecksum    = errors.New("payload checksum mismatch")
	errStale       = errors.New("dataset fingerprint mismatch")
	errModelRecord = errors.New("invalid model record")
)

// envelope is the outer JSON document of a cache blob. Payload is kept raw so the
// checksum covers exactly the bytes that were written.
type envelope struct {
	Format      string          `json:"format"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	Fingerprint string          `json:"fingerprint"`
	Checksum    string          `json:"checksum"`
	Payload     json.RawMessage `json:"payload"`
}

type payload struct {
	Categories []string      `json:"categories"`
	Models     []modelRecord `json:"models"`
}

type modelRecord struct {
	Category  string         `json:"category"`
	Month     domain.Month   `json:"month"`
	TrainedAt time.Time      `json:"trained_at"`
	TrainSize int            `json:"train_size"`
	TestSize  int            `json:"test_size"`
	Forest    *forest.Forest `json:"forest"`
}

// Header describes a blob without its models.
type Header struct {
	Format      string    `json:"format"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	Checksum    string    `json:"checksum"`
	Size        int       `json:"size_bytes"`
}

func checksum(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// encode serializes the registry into a compressed blob.
func encode(reg *Registry, fingerprint string) ([]byte, error) {
	p := payload{Categories: reg.Categories()}
	for _, k := range reg.Keys() {
		m, _ := reg.Model(k.Category, k.Month)
		p.Models = append(p.Models, modelRecord{
			Category:  k.Category,
			Month:     k.Month,
			TrainedAt: m.TrainedAt,
			TrainSize: m.TrainSize,
			TestSize:  m.TestSize,
			Forest:    m.Estimator,
		})
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	doc, err := json.Marshal(envelope{
		Format:      blobFormat,
		Version:     blobVersion,
		CreatedAt:   domain.Now(),
		Fingerprint: fingerprint,
		Checksum:    checksum(raw),
		Payload:     raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(doc, make([]byte, 0, len(doc)/4)), nil
}

// openEnvelope decompresses blob and checks format, version and checksum.
func openEnvelope(blob []byte) (*envelope, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	doc, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress blob: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Format != blobFormat {
		return nil, fmt.Errorf("%w: %q", errFormat, env.Format)
	}
	if env.Version != blobVersion {
		return nil, fmt.Errorf("%w: %d", errVersion, env.Version)
	}
	if got := checksum(env.Payload); got != env.Checksum {
		return nil, fmt.Errorf("%w: stored %s, computed %s", errChecksum, env.Checksum, got)
	}
	return &env, nil
}

// decode rebuilds a registry from blob. A non-empty fingerprint must match the
// one recorded in the blob.
func decode(blob []byte, fingerprint string) (*Registry, error) {
	env, err := openEnvelope(blob)
	if err != nil {
		return nil, err
	}
	if fingerprint != "" && env.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: blob %s, dataset %s", errStale, env.Fingerprint, fingerprint)
	}

	var p payload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	reg := newRegistry()
	// Seed category order from the stored list so categories keep their order
	// even when the first model of a category is missing.
	known := make(map[string]struct{}, len(p.Categories))
	for _, c := range p.Categories {
		known[c] = struct{}{}
	}
	for i, rec := range p.Models {
		if err := rec.validate(known); err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		reg.add(&Model{
			Key:       domain.Key{Category: rec.Category, Month: rec.Month},
			Estimator: rec.Forest,
			TrainedAt: rec.TrainedAt,
			TrainSize: rec.TrainSize,
			TestSize:  rec.TestSize,
		})
	}
	reg.orderCategories(p.Categories)
	return reg, nil
}

func (rec modelRecord) validate(known map[string]struct{}) error {
	if rec.Category == "" {
		return fmt.Errorf("%w: empty category", errModelRecord)
	}
	if _, ok := known[rec.Category]; !ok {
		return fmt.Errorf("%w: category %q not listed", errModelRecord, rec.Category)
	}
	if !rec.Month.Valid() {
		return fmt.Errorf("%w: month %d", errModelRecord, uint8(rec.Month))
	}
	if rec.TrainSize < 1 || rec.TestSize < 0 {
		return fmt.Errorf("%w: sizes %d/%d", errModelRecord, rec.TrainSize, rec.TestSize)
	}
	if err := rec.Forest.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errModelRecord, err)
	}
	return nil
}
