package models

import (
	"time"

	"gorm.io/datatypes"
)

// Competition lifecycle states. Transitions only move forward along this list.
const (
	CompetitionStatusDraft                = "draft"
	CompetitionStatusAcceptingSubmissions = "accepting_submissions"
	CompetitionStatusClosed               = "closed"
	CompetitionStatusEvaluating           = "evaluating"
	CompetitionStatusAdminReview          = "admin_review"
	CompetitionStatusCompleted            = "completed"
	CompetitionStatusArchived             = "archived"
)

// Prize structure keys addressed by winner rank.
const (
	PrizeKeyFirstPlace  = "first_place"
	PrizeKeySecondPlace = "second_place"
	PrizeKeyThirdPlace  = "third_place"
)

// Competition is a time-boxed manuscript contest.
type Competition struct {
	ID                      uint                                  `gorm:"primaryKey" json:"id"`
	Title                   string                                `gorm:"size:255;not null" json:"title"`
	Description             string                                `gorm:"type:text" json:"description"`
	GenreCategories         datatypes.JSONSlice[string]           `gorm:"type:json" json:"genre_categories"`
	SubmissionStart         time.Time                             `gorm:"not null" json:"submission_start"`
	SubmissionEnd           time.Time                             `gorm:"not null" json:"submission_end"`
	WinnerAnnouncementDate  *time.Time                            `json:"winner_announcement_date"`
	EvaluationCriteria      datatypes.JSONType[map[string]int]    `gorm:"type:json" json:"evaluation_criteria"`
	MaxSubmissionsPerAuthor int                                   `gorm:"not null;default:1" json:"max_submissions_per_author"`
	EntryFee                float64                               `gorm:"not null;default:0" json:"entry_fee"`
	PrizeStructure          datatypes.JSONType[map[string]string] `gorm:"type:json" json:"prize_structure"`
	Status                  string                                `gorm:"size:32;not null;index" json:"status"`
	ShowRankings            bool                                  `gorm:"not null;default:false" json:"show_rankings"`
	ShowScores              bool                                  `gorm:"not null;default:false" json:"show_scores"`
	ShowFeedbackToAll       bool                                  `gorm:"not null;default:false" json:"show_feedback_to_all"`
	CreatedBy               uint                                  `gorm:"index" json:"created_by"`
	UnevaluatedCount        int                                   `gorm:"not null;default:0" json:"unevaluated_count"`
	LastEvaluatedAt         *time.Time                            `json:"last_evaluated_at"`
	CreatedAt               time.Time                             `json:"created_at"`
	UpdatedAt               time.Time                             `json:"updated_at"`
}

// Criteria returns the weighted evaluation criteria, never nil.
func (c Competition) Criteria() map[string]int {
	criteria := c.EvaluationCriteria.Data()
	if criteria == nil {
		return map[string]int{}
	}
	return criteria
}

// Prizes returns the prize structure keyed by rank key, never nil.
func (c Competition) Prizes() map[string]string {
	prizes := c.PrizeStructure.Data()
	if prizes == nil {
		return map[string]string{}
	}
	return prizes
}

// AcceptsAt reports whether t lies inside the inclusive submission window.
func (c Competition) AcceptsAt(t time.Time) bool {
	return !t.Before(c.SubmissionStart) && !t.After(c.SubmissionEnd)
}
