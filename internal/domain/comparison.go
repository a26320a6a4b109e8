package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UserAction is a post-hoc annotation attached to a comparison log entry
// when a human acts on a duplicate decision.
type UserAction string

const (
	UserActionSubmittedAnyway   UserAction = "submitted_anyway"
	UserActionCancelled         UserAction = "cancelled"
	UserActionMerged            UserAction = "merged"
	UserActionMarkedAsDuplicate UserAction = "marked_as_duplicate"
)

// IsValid reports whether a is a known user action.
func (a UserAction) IsValid() bool {
	switch a {
	case UserActionSubmittedAnyway, UserActionCancelled, UserActionMerged, UserActionMarkedAsDuplicate:
		return true
	}
	return false
}

// Decision reasons recorded on comparison log entries.
const (
	ReasonExactMatch     = "Exact match detected"
	ReasonContainment    = "One text contains the other"
	ReasonSharedKeyTerms = "Shared key terms detected"
	ReasonSameSubmitter  = "Same submitter within time threshold with moderate content similarity"
)

// ComparedText is the new submission side of a comparison.
type ComparedText struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	SubmitterInfo *SubmitterInfo `json:"submitter_info,omitempty"`
}

// ComparedFeedback is the stored candidate side of a comparison.
type ComparedFeedback struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	SubmitterInfo *SubmitterInfo `json:"submitter_info,omitempty"`
}

// SimilarityResults captures the scorer output together with the policy it ran under.
type SimilarityResults struct {
	Algorithm             string `json:"algorithm"`
	TitleSimilarity       int    `json:"title_similarity"`
	DescriptionSimilarity int    `json:"description_similarity"`
	OverallSimilarity     int    `json:"overall_similarity"`
	Threshold             int    `json:"threshold"`
	IsSimilar             bool   `json:"is_similar"`
}

// TimeProximity records how far apart two submissions were. Durations are
// encoded as milliseconds.
type TimeProximity struct {
	TimeDifference    time.Duration `json:"-"`
	Threshold         time.Duration `json:"-"`
	IsWithinThreshold bool          `json:"is_within_threshold"`
}

type timeProximityJSON struct {
	TimeDifference    int64 `json:"time_difference"`
	Threshold         int64 `json:"threshold"`
	IsWithinThreshold bool  `json:"is_within_threshold"`
}

// MarshalJSON implements json.Marshaler.
func (t TimeProximity) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeProximityJSON{
		TimeDifference:    t.TimeDifference.Milliseconds(),
		Threshold:         t.Threshold.Milliseconds(),
		IsWithinThreshold: t.IsWithinThreshold,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimeProximity) UnmarshalJSON(data []byte) error {
	var aux timeProximityJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.TimeDifference = time.Duration(aux.TimeDifference) * time.Millisecond
	t.Threshold = time.Duration(aux.Threshold) * time.Millisecond
	t.IsWithinThreshold = aux.IsWithinThreshold
	return nil
}

// MatchFlag is a boolean signal wrapper kept as a struct so it can be absent.
type MatchFlag struct {
	IsMatch bool `json:"is_match"`
}

// FinalDecision is the per-candidate verdict and the rule that produced it.
type FinalDecision struct {
	IsDuplicate bool   `json:"is_duplicate"`
	Reason      string `json:"reason"`
}

// UserActionRecord is a user action with the time it was recorded.
type UserActionRecord struct {
	Action    UserAction `json:"action"`
	Timestamp time.Time  `json:"timestamp"`
}

// ComparisonLogEntry is an audit record of one submission-vs-candidate evaluation.
// Entries are append-only; UserAction is the only field set after creation.
type ComparisonLogEntry struct {
	ID                uuid.UUID         `json:"id"`
	Timestamp         time.Time         `json:"timestamp"`
	NewFeedback       ComparedText      `json:"new_feedback"`
	ComparedWith      ComparedFeedback  `json:"compared_with"`
	SimilarityResults SimilarityResults `json:"similarity_results"`
	TimeProximity     *TimeProximity    `json:"time_proximity,omitempty"`
	IPMatch           *MatchFlag        `json:"ip_match,omitempty"`
	UserMatch         *MatchFlag        `json:"user_match,omitempty"`
	FinalDecision     FinalDecision     `json:"final_decision"`
	UserAction        *UserActionRecord `json:"user_action,omitempty"`
}

// LogFilter selects comparison log entries. Zero fields do not filter.
type LogFilter struct {
	// FeedbackID matches entries whose compared item has this ID.
	FeedbackID *int64
	From       time.Time
	To         time.Time
	// IsDuplicate matches the final decision.
	IsDuplicate *bool
	Limit       int
}

// Matches reports whether the entry satisfies every set criterion.
func (f LogFilter) Matches(e *ComparisonLogEntry) bool {
	if f.FeedbackID != nil && e.ComparedWith.ID != *f.FeedbackID {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.IsDuplicate != nil && e.FinalDecision.IsDuplicate != *f.IsDuplicate {
		return false
	}
	return true
}
