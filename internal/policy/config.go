// Package policy holds the duplicate detection policy: global thresholds and
// weights, typed per-category overrides, and a store that serves consistent
// snapshots while allowing runtime updates.
package policy

import (
	"maps"
	"time"

	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/similarity"
)

// Threshold bounds used by adaptive adjustment.
const (
	MaxAdaptiveThreshold = 95
	MinAdaptiveThreshold = 50
	// adaptiveRateTrigger is the error rate, in percent, above which adaptation kicks in.
	adaptiveRateTrigger = 10.0
)

// Config is the full detection policy.
type Config struct {
	SimilarityThreshold          int                          `json:"similarity_threshold" validate:"gte=0,lte=100"`
	TitleWeight                  float64                      `json:"title_weight" validate:"gte=0"`
	DescriptionWeight            float64                      `json:"description_weight" validate:"gte=0"`
	Algorithm                    similarity.Algorithm         `json:"algorithm" validate:"oneof=levenshtein jaccard cosine multi"`
	AlgorithmWeights             similarity.Weights           `json:"algorithm_weights"`
	TimeThreshold                time.Duration                `json:"time_threshold" validate:"gte=0"`
	CheckIPAddress               bool                         `json:"check_ip_address"`
	EnableCrossCategoryDetection bool                         `json:"enable_cross_category_detection"`
	EnableAdaptiveThresholds     bool                         `json:"enable_adaptive_thresholds"`
	AdaptationRate               float64                      `json:"adaptation_rate" validate:"gte=0,lte=1"`
	NearMissRatio                float64                      `json:"near_miss_ratio" validate:"gte=0,lte=1"`
	DetailedLogging              bool                         `json:"detailed_logging"`
	NotifyAdminsOnDuplicate      bool                         `json:"notify_admins_on_duplicate"`
	CategorySettings             map[domain.Category]Override `json:"category_settings" validate:"dive"`
}

// Override replaces selected global fields for one category. A nil field
// inherits the global value.
type Override struct {
	SimilarityThreshold          *int                  `json:"similarity_threshold,omitempty" validate:"omitempty,gte=0,lte=100"`
	TitleWeight                  *float64              `json:"title_weight,omitempty" validate:"omitempty,gte=0"`
	DescriptionWeight            *float64              `json:"description_weight,omitempty" validate:"omitempty,gte=0"`
	Algorithm                    *similarity.Algorithm `json:"algorithm,omitempty" validate:"omitempty,oneof=levenshtein jaccard cosine multi"`
	AlgorithmWeights             *similarity.Weights   `json:"algorithm_weights,omitempty"`
	TimeThreshold                *time.Duration        `json:"time_threshold,omitempty" validate:"omitempty,gte=0"`
	CheckIPAddress               *bool                 `json:"check_ip_address,omitempty"`
	EnableCrossCategoryDetection *bool                 `json:"enable_cross_category_detection,omitempty"`
}

// DefaultConfig returns the documented default policy.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:          65,
		TitleWeight:                  0.7,
		DescriptionWeight:            0.3,
		Algorithm:                    similarity.AlgorithmMulti,
		AlgorithmWeights:             similarity.DefaultWeights(),
		TimeThreshold:                24 * time.Hour,
		CheckIPAddress:               true,
		EnableCrossCategoryDetection: true,
		EnableAdaptiveThresholds:     true,
		AdaptationRate:               0.05,
		NearMissRatio:                0.8,
		DetailedLogging:              true,
		NotifyAdminsOnDuplicate:      true,
		CategorySettings: map[domain.Category]Override{
			domain.CategoryBug: {
				SimilarityThreshold: ptr(60),
				TitleWeight:         ptr(0.6),
				DescriptionWeight:   ptr(0.4),
			},
			domain.CategoryFeature: {
				SimilarityThreshold: ptr(60),
				TitleWeight:         ptr(0.8),
				DescriptionWeight:   ptr(0.2),
			},
		},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	if c.CategorySettings != nil {
		out.CategorySettings = make(map[domain.Category]Override, len(c.CategorySettings))
		for cat, o := range c.CategorySettings {
			out.CategorySettings[cat] = o.clone()
		}
	}
	return out
}

// ForCategory merges the category override, if any, over the global fields.
// The returned value shares nothing with c.
func (c Config) ForCategory(category domain.Category) Config {
	out := c.Clone()
	o, ok := c.CategorySettings[category]
	if !ok {
		return out
	}

	if o.SimilarityThreshold != nil {
		out.SimilarityThreshold = *o.SimilarityThreshold
	}
	if o.TitleWeight != nil {
		out.TitleWeight = *o.TitleWeight
	}
	if o.DescriptionWeight != nil {
		out.DescriptionWeight = *o.DescriptionWeight
	}
	if o.Algorithm != nil {
		out.Algorithm = *o.Algorithm
	}
	if o.AlgorithmWeights != nil {
		out.AlgorithmWeights = *o.AlgorithmWeights
	}
	if o.TimeThreshold != nil {
		out.TimeThreshold = *o.TimeThreshold
	}
	if o.CheckIPAddress != nil {
		out.CheckIPAddress = *o.CheckIPAddress
	}
	if o.EnableCrossCategoryDetection != nil {
		out.EnableCrossCategoryDetection = *o.EnableCrossCategoryDetection
	}

	return out
}

// CompareOptions projects the scoring parameters of c.
func (c Config) CompareOptions() similarity.CompareOptions {
	return similarity.CompareOptions{
		Algorithm:         c.Algorithm,
		AlgorithmWeights:  c.AlgorithmWeights,
		TitleWeight:       c.TitleWeight,
		DescriptionWeight: c.DescriptionWeight,
		Threshold:         c.SimilarityThreshold,
	}
}

// NearMissCutoff is the score above which a non-duplicate candidate is still
// surfaced for review.
func (c Config) NearMissCutoff() float64 {
	return float64(c.SimilarityThreshold) * c.NearMissRatio
}

func (o Override) clone() Override {
	out := Override{}
	if o.SimilarityThreshold != nil {
		out.SimilarityThreshold = ptr(*o.SimilarityThreshold)
	}
	if o.TitleWeight != nil {
		out.TitleWeight = ptr(*o.TitleWeight)
	}
	if o.DescriptionWeight != nil {
		out.DescriptionWeight = ptr(*o.DescriptionWeight)
	}
	if o.Algorithm != nil {
		out.Algorithm = ptr(*o.Algorithm)
	}
	if o.AlgorithmWeights != nil {
		out.AlgorithmWeights = ptr(*o.AlgorithmWeights)
	}
	if o.TimeThreshold != nil {
		out.TimeThreshold = ptr(*o.TimeThreshold)
	}
	if o.CheckIPAddress != nil {
		out.CheckIPAddress = ptr(*o.CheckIPAddress)
	}
	if o.EnableCrossCategoryDetection != nil {
		out.EnableCrossCategoryDetection = ptr(*o.EnableCrossCategoryDetection)
	}
	return out
}

// Patch is a partial update of the global policy. Nil fields are left alone.
// A CategorySettings entry replaces that category's override; a nil entry removes it.
type Patch struct {
	SimilarityThreshold          *int                          `json:"similarity_threshold,omitempty"`
	TitleWeight                  *float64                      `json:"title_weight,omitempty"`
	DescriptionWeight            *float64                      `json:"description_weight,omitempty"`
	Algorithm                    *similarity.Algorithm         `json:"algorithm,omitempty"`
	AlgorithmWeights             *similarity.Weights           `json:"algorithm_weights,omitempty"`
	TimeThreshold                *time.Duration                `json:"time_threshold,omitempty"`
	CheckIPAddress               *bool                         `json:"check_ip_address,omitempty"`
	EnableCrossCategoryDetection *bool                         `json:"enable_cross_category_detection,omitempty"`
	EnableAdaptiveThresholds     *bool                         `json:"enable_adaptive_thresholds,omitempty"`
	AdaptationRate               *float64                      `json:"adaptation_rate,omitempty"`
	NearMissRatio                *float64                      `json:"near_miss_ratio,omitempty"`
	DetailedLogging              *bool                         `json:"detailed_logging,omitempty"`
	NotifyAdminsOnDuplicate      *bool                         `json:"notify_admins_on_duplicate,omitempty"`
	CategorySettings             map[domain.Category]*Override `json:"category_settings,omitempty"`
}

// apply returns c with p applied. c is not modified.
func (p Patch) apply(c Config) Config {
	out := c.Clone()

	setIf(&out.SimilarityThreshold, p.SimilarityThreshold)
	setIf(&out.TitleWeight, p.TitleWeight)
	setIf(&out.DescriptionWeight, p.DescriptionWeight)
	setIf(&out.Algorithm, p.Algorithm)
	setIf(&out.AlgorithmWeights, p.AlgorithmWeights)
	setIf(&out.TimeThreshold, p.TimeThreshold)
	setIf(&out.CheckIPAddress, p.CheckIPAddress)
	setIf(&out.EnableCrossCategoryDetection, p.EnableCrossCategoryDetection)
	setIf(&out.EnableAdaptiveThresholds, p.EnableAdaptiveThresholds)
	setIf(&out.AdaptationRate, p.AdaptationRate)
	setIf(&out.NearMissRatio, p.NearMissRatio)
	setIf(&out.DetailedLogging, p.DetailedLogging)
	setIf(&out.NotifyAdminsOnDuplicate, p.NotifyAdminsOnDuplicate)

	if len(p.CategorySettings) > 0 {
		settings := maps.Clone(out.CategorySettings)
		if settings == nil {
			settings = make(map[domain.Category]Override, len(p.CategorySettings))
		}
		for cat, o := range p.CategorySettings {
			if o == nil {
				delete(settings, cat)
				continue
			}
			settings[cat] = o.clone()
		}
		out.CategorySettings = settings
	}

	return out
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func ptr[T any](v T) *T {
	return &v
}
