// Package observability provides logging, metrics, and context helpers for
// the feedback dedup service.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger = observability.WithCheckContext(logger, requestID, "bug")
//	logger.Info().Int("pool_size", n).Msg("duplicate check completed")
//
// kafka-go clients log through NewKafkaLogger and NewKafkaErrorLogger.
//
// # Metrics
//
//	metrics := observability.NewMetrics("feedback_dedup")
//	metrics.RecordDuplicateCheck(observability.CheckResultDuplicate, elapsed, poolSize)
//
// # Standard Fields
//
//   - request_id: HTTP request identifier
//   - category: feedback category of the submission
//   - feedback_id: feedback item identifier
//   - user_id: submitter identifier supplied by the identity provider
//   - client_ip: submitter address, recorded for anonymous submissions
//   - log_id: comparison log entry identifier
//
// All components are safe for concurrent use.
package observability
