package observability

import (
	"strings"

	"github.com/rs/zerolog"
)

// KafkaLogger adapts zerolog to the Printf-style logger interface used by
// kafka-go writers and readers, adding a "component":"kafka" field.
type KafkaLogger struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// NewKafkaLogger returns a logger for routine client messages, logged at debug level.
func NewKafkaLogger(logger zerolog.Logger) *KafkaLogger {
	return &KafkaLogger{
		logger: logger.With().Str("component", "kafka").Logger(),
		level:  zerolog.DebugLevel,
	}
}

// NewKafkaErrorLogger returns a logger for client errors, logged at error level.
func NewKafkaErrorLogger(logger zerolog.Logger) *KafkaLogger {
	return &KafkaLogger{
		logger: logger.With().Str("component", "kafka").Logger(),
		level:  zerolog.ErrorLevel,
	}
}

// Printf logs a formatted message at the logger's level.
func (l *KafkaLogger) Printf(format string, args ...interface{}) {
	l.logger.WithLevel(l.level).Msgf(strings.TrimRight(format, "\n"), args...)
}
