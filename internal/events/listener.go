package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/feedback-dedup-service/internal/observability"
	"github.com/helixir/feedback-dedup-service/internal/policy"
)

// messageReader is the subset of *kafka.Reader used by PolicyListener.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// PolicyApplier is the policy store surface the listener drives.
type PolicyApplier interface {
	Update(p policy.Patch) (policy.Config, error)
	Reset() policy.Config
}

// ListenerConfig holds configuration for the policy listener.
type ListenerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic policy events are read from.
	Topic string
	// GroupID is the consumer group ID. Each replica needs its own group so
	// that every replica sees every change.
	GroupID string
	// Source is this instance's source name; its own events are skipped.
	Source string
}

// PolicyListener consumes policy.changed events published by other replicas
// and replays them on the local policy store.
type PolicyListener struct {
	reader  messageReader
	store   PolicyApplier
	source  string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewPolicyListener creates a new policy listener.
func NewPolicyListener(cfg ListenerConfig, store PolicyApplier, logger zerolog.Logger, metrics *observability.Metrics) *PolicyListener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     3 * time.Second,
		Logger:      observability.NewKafkaLogger(logger),
		ErrorLogger: observability.NewKafkaErrorLogger(logger),
	})
	return newPolicyListener(reader, store, cfg.Source, logger, metrics)
}

func newPolicyListener(r messageReader, store PolicyApplier, source string, logger zerolog.Logger, metrics *observability.Metrics) *PolicyListener {
	return &PolicyListener{
		reader:  r,
		store:   store,
		source:  source,
		logger:  logger.With().Str("component", "policy_listener").Logger(),
		metrics: metrics,
	}
}

// Run starts the listener loop. Blocks until context is cancelled.
func (l *PolicyListener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting policy listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("policy listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal event")
			continue
		}

		if event.Type != TypePolicyChanged || event.Source == l.source {
			continue
		}

		if err := l.apply(event); err != nil {
			l.logger.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("source", event.Source).
				Msg("failed to apply policy change")
		}
	}
}

// apply replays one policy change on the local store.
func (l *PolicyListener) apply(event Event) error {
	var payload PolicyChangedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode policy payload: %w", err)
	}

	var cfg policy.Config
	switch payload.Operation {
	case PolicyOpUpdate, PolicyOpAdjust:
		if payload.Patch == nil {
			return fmt.Errorf("%s event %s has no patch", payload.Operation, event.ID)
		}
		next, err := l.store.Update(*payload.Patch)
		if err != nil {
			return fmt.Errorf("apply policy patch: %w", err)
		}
		cfg = next
	case PolicyOpReset:
		cfg = l.store.Reset()
	default:
		return fmt.Errorf("unknown policy operation %q", payload.Operation)
	}

	l.metrics.RecordPolicyChange(payload.Operation, cfg.SimilarityThreshold)
	l.logger.Info().
		Str("operation", payload.Operation).
		Str("source", event.Source).
		Int("similarity_threshold", cfg.SimilarityThreshold).
		Msg("applied remote policy change")
	return nil
}

// Close closes the Kafka reader.
func (l *PolicyListener) Close() error {
	l.logger.Info().Msg("closing policy listener")
	return l.reader.Close()
}
