// Package events publishes feedback lifecycle events to Kafka and consumes
// policy change events so every replica serves the same detection policy.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/feedback-dedup-service/internal/policy"
)

// Event type constants.
const (
	TypeDuplicateDetected = "feedback.duplicate_detected"
	TypeSubmittedAnyway   = "feedback.submitted_anyway"
	TypeMarkedDuplicate   = "feedback.marked_duplicate"
	TypeMerged            = "feedback.merged"
	TypePolicyChanged     = "policy.changed"
)

// Event is the envelope written to the topic. Payload holds one of the
// *Payload types below, JSON-encoded.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Source      string          `json:"source"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEvent builds an event with a fresh ID. The payload is JSON-serialized.
func NewEvent(eventType, aggregateID string, payload interface{}) (Event, error) {
	if eventType == "" {
		return Event{}, fmt.Errorf("event type is required")
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Payload:     b,
	}, nil
}

// DuplicateDetectedPayload is the payload for feedback.duplicate_detected events,
// the admin notification raised when a submission is flagged.
type DuplicateDetectedPayload struct {
	Title      string      `json:"title"`
	Category   string      `json:"category"`
	MatchedIDs []int64     `json:"matched_ids"`
	TopScore   int         `json:"top_score"`
	ExactMatch bool        `json:"exact_match"`
	LogIDs     []uuid.UUID `json:"log_ids"`
}

// SubmittedAnywayPayload is the payload for feedback.submitted_anyway events.
type SubmittedAnywayPayload struct {
	FeedbackID int64       `json:"feedback_id"`
	LogIDs     []uuid.UUID `json:"log_ids"`
}

// MarkedDuplicatePayload is the payload for feedback.marked_duplicate events.
type MarkedDuplicatePayload struct {
	FeedbackID int64 `json:"feedback_id"`
	OriginalID int64 `json:"original_id"`
}

// MergedPayload is the payload for feedback.merged events.
type MergedPayload struct {
	SourceID int64 `json:"source_id"`
	TargetID int64 `json:"target_id"`
}

// Policy change operations.
const (
	PolicyOpUpdate = "update"
	PolicyOpReset  = "reset"
	PolicyOpAdjust = "adjust"
)

// PolicyChangedPayload is the payload for policy.changed events. Patch is set
// for update and adjust. An adjust patch carries the resulting absolute
// threshold; the rates that produced it are informational.
type PolicyChangedPayload struct {
	Operation         string        `json:"operation"`
	Patch             *policy.Patch `json:"patch,omitempty"`
	FalsePositiveRate float64       `json:"false_positive_rate,omitempty"`
	FalseNegativeRate float64       `json:"false_negative_rate,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// NoopPublisher discards events. It is used when Kafka is disabled.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, ...Event) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
