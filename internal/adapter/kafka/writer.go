package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/config"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by ReportWriter.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ReportWriter publishes model evaluations of a training pass to a Kafka topic.
// It implements pipeline.ReportPublisher.
type ReportWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewReportWriter creates a Kafka producer for the configured report topic.
func NewReportWriter(cfg *config.Config, logger *slog.Logger) *ReportWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaReportTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &ReportWriter{writer: w, logger: logger}
}

// evaluationMessage is the value of one report message.
type evaluationMessage struct {
	RunID string  `json:"run_id"`
	Seed  *uint64 `json:"seed,omitempty"`
	registry.Evaluation
}

// PublishReport writes one message per evaluated model in a single
// WriteMessages call. Messages are keyed by "<category>|<MON>" so every report
// for a key lands on the same partition.
func (w *ReportWriter) PublishReport(ctx context.Context, report registry.TrainReport) error {
	if len(report.Evaluations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Evaluations))
	for i := range report.Evaluations {
		msg, err := serializeEvaluation(report, report.Evaluations[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write report messages: %w", err)
	}
	w.logger.Info("training report published", "run_id", report.RunID, "messages", len(msgs))
	return nil
}

func (w *ReportWriter) Close() error {
	return w.writer.Close()
}

// serializeEvaluation marshals one evaluation into a Kafka message.
func serializeEvaluation(report registry.TrainReport, ev registry.Evaluation) (kafkago.Message, error) {
	data, err := json.Marshal(evaluationMessage{RunID: report.RunID, Seed: report.Seed, Evaluation: ev})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize evaluation %s: %w", ev.Key, err)
	}
	return kafkago.Message{
		Key:   []byte(ev.Key.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(report.RunID)},
			{Key: "trained_at", Value: []byte(ev.TrainedAt.Format(time.RFC3339))},
		},
	}, nil
}
