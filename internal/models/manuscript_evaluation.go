package models

import (
	"time"

	"gorm.io/datatypes"
)

// ManuscriptEvaluation is the critic's scored assessment of exactly one submission.
// Rows are immutable once written.
type ManuscriptEvaluation struct {
	ID                  uint                                   `gorm:"primaryKey" json:"id"`
	SubmissionID        uint                                   `gorm:"not null;uniqueIndex" json:"submission_id"`
	CompetitionID       uint                                   `gorm:"not null;index" json:"competition_id"`
	ModelVersion        string                                 `gorm:"size:64" json:"model_version"`
	CriteriaScores      datatypes.JSONType[map[string]float64] `gorm:"type:json" json:"criteria_scores"`
	OverallScore        float64                                `gorm:"not null;index" json:"overall_score"`
	OverallScoreDerived bool                                   `gorm:"not null;default:false" json:"overall_score_derived"`
	ConfidenceScore     float64                                `json:"confidence_score"`
	Strengths           datatypes.JSONSlice[string]            `gorm:"type:json" json:"strengths"`
	Weaknesses          datatypes.JSONSlice[string]            `gorm:"type:json" json:"weaknesses"`
	DetailedFeedback    string                                 `gorm:"type:text" json:"detailed_feedback"`
	ProcessingTimeMs    int64                                  `json:"processing_time_ms"`
	RawResponse         string                                 `gorm:"type:text" json:"-"`
	CreatedAt           time.Time                              `json:"created_at"`
	Submission          *CompetitionSubmission                 `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"submission,omitempty"`
}

// Scores returns the per-criterion scores, never nil.
func (e ManuscriptEvaluation) Scores() map[string]float64 {
	scores := e.CriteriaScores.Data()
	if scores == nil {
		return map[string]float64{}
	}
	return scores
}
