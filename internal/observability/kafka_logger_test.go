package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaLogger(t *testing.T) {
	t.Run("routine messages at debug", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewKafkaLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

		l.Printf("writing %d messages to %s\n", 3, "feedback-events")

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
		assert.Equal(t, "debug", logEntry["level"])
		assert.Equal(t, "kafka", logEntry["component"])
		assert.Equal(t, "writing 3 messages to feedback-events", logEntry["message"])
	})

	t.Run("errors at error level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewKafkaErrorLogger(zerolog.New(&buf))

		l.Printf("broker unreachable")

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
		assert.Equal(t, "error", logEntry["level"])
	})

	t.Run("suppressed below logger level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewKafkaLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

		l.Printf("noise")
		assert.Empty(t, buf.String())
	})
}
