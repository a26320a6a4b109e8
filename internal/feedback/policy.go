package feedback

import (
	"context"
	"fmt"

	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/events"
	"github.com/helixir/feedback-dedup-service/internal/policy"
)

const policyAggregateID = "detection-policy"

// Policy returns the global policy, or the effective policy for category when
// one is given.
func (s *Service) Policy(category string) (policy.Config, error) {
	if category == "" {
		return s.policies.Snapshot(), nil
	}
	cat, err := domain.ParseCategory(category)
	if err != nil {
		return policy.Config{}, err
	}
	return s.policies.CategoryConfig(cat), nil
}

// UpdatePolicy applies a partial policy change and announces it to other replicas.
func (s *Service) UpdatePolicy(ctx context.Context, patch policy.Patch) (policy.Config, error) {
	cfg, err := s.policies.Update(patch)
	if err != nil {
		return policy.Config{}, fmt.Errorf("update policy: %w", err)
	}
	s.policyChanged(ctx, events.PolicyChangedPayload{Operation: events.PolicyOpUpdate, Patch: &patch}, cfg)
	return cfg, nil
}

// ResetPolicy restores the baseline policy.
func (s *Service) ResetPolicy(ctx context.Context) policy.Config {
	cfg := s.policies.Reset()
	s.policyChanged(ctx, events.PolicyChangedPayload{Operation: events.PolicyOpReset}, cfg)
	return cfg
}

// AdjustPolicy moves the global threshold for the given error rates, in percent.
// Other replicas receive the resulting threshold rather than the rates.
// Nothing is announced when the threshold does not move.
func (s *Service) AdjustPolicy(ctx context.Context, falsePositiveRate, falseNegativeRate float64) (policy.Config, error) {
	if falsePositiveRate < 0 || falsePositiveRate > 100 {
		return policy.Config{}, domain.NewValidationError("false_positive_rate", "must be between 0 and 100")
	}
	if falseNegativeRate < 0 || falseNegativeRate > 100 {
		return policy.Config{}, domain.NewValidationError("false_negative_rate", "must be between 0 and 100")
	}

	before := s.policies.Snapshot().SimilarityThreshold
	cfg := s.policies.AdjustThresholds(falsePositiveRate, falseNegativeRate)
	if cfg.SimilarityThreshold == before {
		return cfg, nil
	}

	threshold := cfg.SimilarityThreshold
	s.policyChanged(ctx, events.PolicyChangedPayload{
		Operation:         events.PolicyOpAdjust,
		Patch:             &policy.Patch{SimilarityThreshold: &threshold},
		FalsePositiveRate: falsePositiveRate,
		FalseNegativeRate: falseNegativeRate,
	}, cfg)
	return cfg, nil
}

func (s *Service) policyChanged(ctx context.Context, payload events.PolicyChangedPayload, cfg policy.Config) {
	s.metrics.RecordPolicyChange(payload.Operation, cfg.SimilarityThreshold)
	s.logger.Info().
		Str("operation", payload.Operation).
		Int("similarity_threshold", cfg.SimilarityThreshold).
		Msg("detection policy changed")
	s.publish(ctx, events.TypePolicyChanged, policyAggregateID, payload)
}
