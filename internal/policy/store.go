package policy

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

// Store serves the live policy. Readers get immutable snapshots; writers
// build a new Config and swap it in, so an in-flight duplicate check never
// observes a half-applied update.
type Store struct {
	current  atomic.Pointer[Config]
	baseline Config
	validate *validator.Validate

	// writeMu serializes read-modify-write updates. Readers never take it.
	writeMu sync.Mutex
}

// NewStore creates a store whose initial and reset state is baseline.
func NewStore(baseline Config) (*Store, error) {
	s := &Store{
		baseline: baseline.Clone(),
		validate: newValidator(),
	}
	if err := s.check(baseline); err != nil {
		return nil, fmt.Errorf("baseline policy: %w", err)
	}
	initial := baseline.Clone()
	s.current.Store(&initial)
	return s, nil
}

// Snapshot returns a deep copy of the global policy.
func (s *Store) Snapshot() Config {
	return s.current.Load().Clone()
}

// CategoryConfig returns the effective policy for category: the global policy
// with the category's override merged field by field. An empty or unknown
// category yields the global policy.
func (s *Store) CategoryConfig(category domain.Category) Config {
	return s.current.Load().ForCategory(category)
}

// Update applies a partial change. The whole patch is rejected if the result
// is invalid.
func (s *Store) Update(p Patch) (Config, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := p.apply(*s.current.Load())
	if err := s.check(next); err != nil {
		return Config{}, err
	}
	s.current.Store(&next)
	return next.Clone(), nil
}

// Reset restores the baseline policy.
func (s *Store) Reset() Config {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.baseline.Clone()
	s.current.Store(&next)
	return next.Clone()
}

// AdjustThresholds moves the global similarity threshold in response to
// measured error rates, given in percent. A false positive rate above 10
// raises it by round(rate * fp), capped at 95. A false negative rate above
// 10 lowers it by round(rate * fn), floored at 50. Both may apply in one
// call. Nothing changes when adaptive thresholds are disabled.
func (s *Store) AdjustThresholds(falsePositiveRate, falseNegativeRate float64) Config {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current.Load()
	if !cur.EnableAdaptiveThresholds {
		return cur.Clone()
	}

	next := cur.Clone()
	if falsePositiveRate > adaptiveRateTrigger {
		step := int(math.Round(next.AdaptationRate * falsePositiveRate))
		next.SimilarityThreshold = min(MaxAdaptiveThreshold, next.SimilarityThreshold+step)
	}
	if falseNegativeRate > adaptiveRateTrigger {
		step := int(math.Round(next.AdaptationRate * falseNegativeRate))
		next.SimilarityThreshold = max(MinAdaptiveThreshold, next.SimilarityThreshold-step)
	}

	s.current.Store(&next)
	return next.Clone()
}

// check validates struct constraints and category keys.
func (s *Store) check(c Config) error {
	for cat := range c.CategorySettings {
		if !cat.IsValid() {
			return domain.NewConfigError("category_settings", fmt.Sprintf("unknown category %q", cat))
		}
	}

	err := s.validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewConfigError(fieldPath(fe.Namespace()), fmt.Sprintf("failed %q constraint", fe.Tag()))
	}
	return domain.NewConfigError("config", err.Error())
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
