package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter implements messageWriter for testing.
type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewEvent(t *testing.T) {
	t.Run("encodes payload", func(t *testing.T) {
		e, err := NewEvent(TypeMerged, "12", MergedPayload{SourceID: 12, TargetID: 3})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.Equal(t, TypeMerged, e.Type)
		assert.Equal(t, "12", e.AggregateID)
		assert.False(t, e.OccurredAt.IsZero())
		assert.JSONEq(t, `{"source_id":12,"target_id":3}`, string(e.Payload))
	})

	t.Run("requires a type", func(t *testing.T) {
		_, err := NewEvent("", "1", nil)
		assert.Error(t, err)
	})

	t.Run("unencodable payload", func(t *testing.T) {
		_, err := NewEvent(TypeMerged, "1", make(chan int))
		assert.Error(t, err)
	})
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Run("writes keyed messages with source", func(t *testing.T) {
		w := &fakeWriter{}
		p := newKafkaPublisher(w, "replica-a", zerolog.Nop(), nil)

		e1, err := NewEvent(TypeMarkedDuplicate, "8", MarkedDuplicatePayload{FeedbackID: 8, OriginalID: 2})
		require.NoError(t, err)
		e2, err := NewEvent(TypeMerged, "9", MergedPayload{SourceID: 9, TargetID: 2})
		require.NoError(t, err)
		e2.Source = "other"

		require.NoError(t, p.Publish(context.Background(), e1, e2))
		require.Len(t, w.written, 2)

		assert.Equal(t, []byte("8"), w.written[0].Key)
		assert.Equal(t, "event_type", w.written[0].Headers[0].Key)
		assert.Equal(t, []byte(TypeMarkedDuplicate), w.written[0].Headers[0].Value)

		var decoded Event
		require.NoError(t, json.Unmarshal(w.written[0].Value, &decoded))
		assert.Equal(t, e1.ID, decoded.ID)
		assert.Equal(t, "replica-a", decoded.Source)

		require.NoError(t, json.Unmarshal(w.written[1].Value, &decoded))
		assert.Equal(t, "other", decoded.Source)
	})

	t.Run("no events is a no-op", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("should not be called")}
		p := newKafkaPublisher(w, "replica-a", zerolog.Nop(), nil)

		assert.NoError(t, p.Publish(context.Background()))
	})

	t.Run("wraps writer error", func(t *testing.T) {
		writeErr := errors.New("leader not available")
		w := &fakeWriter{err: writeErr}
		p := newKafkaPublisher(w, "replica-a", zerolog.Nop(), nil)

		e, err := NewEvent(TypeMerged, "1", MergedPayload{})
		require.NoError(t, err)

		err = p.Publish(context.Background(), e)
		assert.ErrorIs(t, err, writeErr)
	})

	t.Run("close closes writer", func(t *testing.T) {
		w := &fakeWriter{}
		p := newKafkaPublisher(w, "replica-a", zerolog.Nop(), nil)

		require.NoError(t, p.Close())
		assert.True(t, w.closed)
	})
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeMerged}))
	assert.NoError(t, p.Close())
}
