// Package domain provides domain models for the feedback duplicate detection service.
package domain

import (
	"strings"
	"time"
)

// Category classifies a feedback item.
// These values must match the database enum feedback_category.
type Category string

const (
	CategoryGeneral     Category = "general"
	CategoryBug         Category = "bug"
	CategoryFeature     Category = "feature"
	CategoryImprovement Category = "improvement"
)

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryGeneral, CategoryBug, CategoryFeature, CategoryImprovement:
		return true
	}
	return false
}

// ParseCategory normalizes a raw category string. Empty input yields CategoryGeneral.
func ParseCategory(raw string) (Category, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return CategoryGeneral, nil
	}
	c := Category(raw)
	if !c.IsValid() {
		return "", NewValidationError("category", "must be one of general, bug, feature, improvement")
	}
	return c, nil
}

// Status represents the lifecycle state of a feedback item.
// These values must match the database enum feedback_status.
type Status string

const (
	StatusActive      Status = "active"
	StatusDuplicate   Status = "duplicate"
	StatusMerged      Status = "merged"
	StatusArchived    Status = "archived"
	StatusUnderReview Status = "under_review"
	StatusPlanned     Status = "planned"
	StatusInProgress  Status = "in_progress"
	StatusImplemented Status = "implemented"
	StatusDeclined    Status = "declined"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDuplicate, StatusMerged, StatusArchived, StatusUnderReview,
		StatusPlanned, StatusInProgress, StatusImplemented, StatusDeclined:
		return true
	}
	return false
}

// VoteType is the direction of a vote on a feedback item.
type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// IsValid reports whether v is a known vote direction.
func (v VoteType) IsValid() bool {
	return v == VoteUp || v == VoteDown
}

// SubmitterInfo records who submitted a feedback item and when.
type SubmitterInfo struct {
	UserID    string    `json:"user_id,omitempty"`
	UserName  string    `json:"user_name,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// HasTimestamp reports whether a submission time was recorded.
func (s *SubmitterInfo) HasTimestamp() bool {
	return s != nil && !s.Timestamp.IsZero()
}

// SimilarityCheckRef links a stored item to a comparison log entry the submitter overrode.
type SimilarityCheckRef struct {
	LogID     string    `json:"log_id"`
	Timestamp time.Time `json:"timestamp"`
	Result    bool      `json:"result"`
}

// FeedbackItem is a piece of user feedback held by the active-item store.
type FeedbackItem struct {
	ID               int64                `json:"id"`
	Title            string               `json:"title"`
	Description      string               `json:"description"`
	Category         Category             `json:"category"`
	Status           Status               `json:"status"`
	Upvotes          int                  `json:"upvotes"`
	Downvotes        int                  `json:"downvotes"`
	DuplicateOf      *int64               `json:"duplicate_of,omitempty"`
	SubmitterInfo    *SubmitterInfo       `json:"submitter_info,omitempty"`
	SimilarityChecks []SimilarityCheckRef `json:"similarity_checks,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// IsActive reports whether the item participates in duplicate detection.
func (f *FeedbackItem) IsActive() bool {
	return f.Status == StatusActive
}

// CombinedText returns the lower-cased title and description joined by a space.
func (f *FeedbackItem) CombinedText() string {
	return strings.ToLower(f.Title + " " + f.Description)
}
