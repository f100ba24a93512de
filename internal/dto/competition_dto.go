package dto

import (
	"time"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// CompetitionRequest is the payload to create or edit a competition.
type CompetitionRequest struct {
	Title                   string            `json:"title" validate:"required,min=3,max=255"`
	Description             string            `json:"description" validate:"max=10000"`
	GenreCategories         []string          `json:"genre_categories" validate:"dive,required,max=128"`
	SubmissionStart         time.Time         `json:"submission_start" validate:"required"`
	SubmissionEnd           time.Time         `json:"submission_end" validate:"required"`
	WinnerAnnouncementDate  *time.Time        `json:"winner_announcement_date"`
	EvaluationCriteria      map[string]int    `json:"evaluation_criteria" validate:"dive,keys,required,max=64,endkeys,min=0,max=100"`
	MaxSubmissionsPerAuthor int               `json:"max_submissions_per_author"`
	EntryFee                float64           `json:"entry_fee" validate:"min=0"`
	PrizeStructure          map[string]string `json:"prize_structure" validate:"dive,keys,required,max=64,endkeys,max=255"`
	ShowRankings            bool              `json:"show_rankings"`
	ShowScores              bool              `json:"show_scores"`
	ShowFeedbackToAll       bool              `json:"show_feedback_to_all"`
}

// CompetitionListRequest filters the admin competition listing.
type CompetitionListRequest struct {
	Status   string `validate:"omitempty,oneof=draft accepting_submissions closed evaluating admin_review completed archived"`
	Page     int    `validate:"min=0"`
	PageSize int    `validate:"min=0,max=100"`
}

// CompetitionResponse serializes a competition.
type CompetitionResponse struct {
	ID                      uint              `json:"id"`
	Title                   string            `json:"title"`
	Description             string            `json:"description"`
	GenreCategories         []string          `json:"genre_categories"`
	SubmissionStart         time.Time         `json:"submission_start"`
	SubmissionEnd           time.Time         `json:"submission_end"`
	WinnerAnnouncementDate  *time.Time        `json:"winner_announcement_date"`
	EvaluationCriteria      map[string]int    `json:"evaluation_criteria"`
	MaxSubmissionsPerAuthor int               `json:"max_submissions_per_author"`
	EntryFee                float64           `json:"entry_fee"`
	PrizeStructure          map[string]string `json:"prize_structure"`
	Status                  string            `json:"status"`
	ShowRankings            bool              `json:"show_rankings"`
	ShowScores              bool              `json:"show_scores"`
	ShowFeedbackToAll       bool              `json:"show_feedback_to_all"`
	SubmissionCount         int64             `json:"submission_count"`
	UnevaluatedCount        int               `json:"unevaluated_count"`
	LastEvaluatedAt         *time.Time        `json:"last_evaluated_at"`
	CreatedBy               uint              `json:"created_by"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// CompetitionListResponse wraps a paginated competition listing.
type CompetitionListResponse struct {
	Items      []CompetitionResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// PublicCompetitionsResponse groups competitions visible to authors.
type PublicCompetitionsResponse struct {
	Open     []CompetitionResponse `json:"open"`
	Upcoming []CompetitionResponse `json:"upcoming"`
}

// NewCompetitionResponse converts a competition model to DTO.
func NewCompetitionResponse(model models.Competition, submissionCount int64) CompetitionResponse {
	genres := []string(model.GenreCategories)
	if genres == nil {
		genres = []string{}
	}
	return CompetitionResponse{
		ID:                      model.ID,
		Title:                   model.Title,
		Description:             model.Description,
		GenreCategories:         genres,
		SubmissionStart:         model.SubmissionStart,
		SubmissionEnd:           model.SubmissionEnd,
		WinnerAnnouncementDate:  model.WinnerAnnouncementDate,
		EvaluationCriteria:      model.Criteria(),
		MaxSubmissionsPerAuthor: model.MaxSubmissionsPerAuthor,
		EntryFee:                model.EntryFee,
		PrizeStructure:          model.Prizes(),
		Status:                  model.Status,
		ShowRankings:            model.ShowRankings,
		ShowScores:              model.ShowScores,
		ShowFeedbackToAll:       model.ShowFeedbackToAll,
		SubmissionCount:         submissionCount,
		UnevaluatedCount:        model.UnevaluatedCount,
		LastEvaluatedAt:         model.LastEvaluatedAt,
		CreatedBy:               model.CreatedBy,
		CreatedAt:               model.CreatedAt,
		UpdatedAt:               model.UpdatedAt,
	}
}
