package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/feedback-dedup-service/internal/observability"
)

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka publisher settings.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic events are written to.
	Topic string
	// Source identifies this service instance in published events.
	Source string
	// BatchSize is the maximum number of messages per batch.
	BatchSize int
	// BatchTimeout bounds how long a partial batch waits before it is flushed.
	BatchTimeout time.Duration
}

// Compile-time interface verification.
var _ Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes events to a Kafka topic, keyed by aggregate ID so
// events for one feedback item stay ordered within a partition.
type KafkaPublisher struct {
	writer  messageWriter
	source  string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Logger:       observability.NewKafkaLogger(logger),
		ErrorLogger:  observability.NewKafkaErrorLogger(logger),
	}
	return newKafkaPublisher(writer, cfg.Source, logger, metrics)
}

func newKafkaPublisher(w messageWriter, source string, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		source:  source,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
		metrics: metrics,
	}
}

// Publish writes events in one batch. Events without a Source are stamped
// with this publisher's source.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for i := range events {
		if events[i].Source == "" {
			events[i].Source = p.source
		}
		value, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", events[i].ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(events[i].AggregateID),
			Value: value,
			Time:  events[i].OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(events[i].Type)},
			},
		})
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	for _, e := range events {
		p.metrics.RecordEventPublished(e.Type, err == nil)
	}
	if err != nil {
		p.logger.Error().Err(err).Int("count", len(events)).Msg("failed to publish events")
		return fmt.Errorf("publish events: %w", err)
	}

	p.logger.Debug().Int("count", len(events)).Str("first_type", events[0].Type).Msg("published events")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
