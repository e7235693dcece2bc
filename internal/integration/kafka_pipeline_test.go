//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/adapter/filestore"
	"github.com/couchcryptid/rainfall-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/rainfall-forecast-service/internal/config"
	"github.com/couchcryptid/rainfall-forecast-service/internal/dataset"
	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forest"
	"github.com/couchcryptid/rainfall-forecast-service/internal/observability"
	"github.com/couchcryptid/rainfall-forecast-service/internal/pipeline"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	testReportTopic = "test-model-reports"
	mockDataset     = "../../data/mock/rainfall_mock.csv"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("rainfall-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}))
}

func smallTrainer(t *testing.T) *registry.Trainer {
	t.Helper()
	seed := uint64(11)
	params := forest.DefaultParams()
	params.Trees = 5
	tr, err := registry.NewTrainer(registry.TrainerConfig{
		Params:       params,
		TestFraction: 0.25,
		Seed:         &seed,
		Workers:      4,
	}, discardLogger())
	require.NoError(t, err)
	return tr
}

type reportMessage struct {
	RunID string     `json:"run_id"`
	Key   domain.Key `json:"key"`
}

// TestPipelinePublishesReport trains from the mock dataset with a real broker
// and verifies one report message arrives per evaluated model.
func TestPipelinePublishesReport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testReportTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaReportTopic: testReportTopic,
	}
	writer := kafka.NewReportWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	store := filestore.New(filepath.Join(t.TempDir(), "models.registry"))
	loader := dataset.NewLoader(mockDataset, discardLogger())
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(loader, store, smallTrainer(t), writer, discardLogger(), metrics, pipeline.Options{})
	reg, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, pipeline.SourceTrained, p.Source())

	report := p.LastReport()
	require.NotNil(t, report)
	require.Len(t, report.Evaluations, reg.Len())

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testReportTopic,
		GroupID:     fmt.Sprintf("test-reports-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	seen := make(map[string]bool, reg.Len())
	for len(seen) < reg.Len() {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from report topic")

		var rm reportMessage
		require.NoError(t, json.Unmarshal(msg.Value, &rm))
		assert.Equal(t, report.RunID, rm.RunID)
		assert.Equal(t, rm.Key.String(), string(msg.Key))

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, report.RunID, headers["run_id"])
		_, err = time.Parse(time.RFC3339, headers["trained_at"])
		assert.NoError(t, err, "trained_at should be valid RFC3339")

		seen[string(msg.Key)] = true
	}

	for _, k := range reg.Keys() {
		assert.True(t, seen[k.String()], "missing report for %s", k)
	}

	// A second start reuses the cache and publishes nothing new.
	again := pipeline.New(loader, store, smallTrainer(t), writer, discardLogger(), metrics, pipeline.Options{})
	_, err = again.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.SourceCache, again.Source())
	assert.Nil(t, again.LastReport())

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further report messages")
}
