package dto

import (
	"time"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// EvaluationFailure describes a submission the critic could not evaluate.
type EvaluationFailure struct {
	SubmissionID uint   `json:"submission_id"`
	Reason       string `json:"reason"`
}

// EvaluationRunReport summarises one orchestration run.
type EvaluationRunReport struct {
	CompetitionID    uint                `json:"competition_id"`
	Total            int                 `json:"total"`
	AlreadyEvaluated int                 `json:"already_evaluated"`
	Evaluated        int                 `json:"evaluated"`
	ClaimedElsewhere int                 `json:"claimed_elsewhere"`
	Skipped          int                 `json:"skipped"`
	Failed           []EvaluationFailure `json:"failed"`
	Unevaluated      int                 `json:"unevaluated"`
	Status           string              `json:"status"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
}

// Evaluation progress event types.
const (
	EvaluationEventStarted   = "started"
	EvaluationEventEvaluated = "evaluated"
	EvaluationEventFailed    = "failed"
	EvaluationEventFinished  = "finished"
)

// EvaluationProgressEvent is streamed to administrators while a run is in flight.
type EvaluationProgressEvent struct {
	Type          string               `json:"type"`
	CompetitionID uint                 `json:"competition_id"`
	SubmissionID  uint                 `json:"submission_id,omitempty"`
	OverallScore  float64              `json:"overall_score,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Report        *EvaluationRunReport `json:"report,omitempty"`
	At            time.Time            `json:"at"`
}

// EvaluationResponse serializes a stored evaluation.
type EvaluationResponse struct {
	ID                  uint               `json:"id"`
	SubmissionID        uint               `json:"submission_id"`
	CompetitionID       uint               `json:"competition_id"`
	ModelVersion        string             `json:"model_version"`
	CriteriaScores      map[string]float64 `json:"criteria_scores"`
	OverallScore        float64            `json:"overall_score"`
	OverallScoreDerived bool               `json:"overall_score_derived"`
	ConfidenceScore     float64            `json:"confidence_score"`
	Strengths           []string           `json:"strengths"`
	Weaknesses          []string           `json:"weaknesses"`
	DetailedFeedback    string             `json:"detailed_feedback"`
	ProcessingTimeMs    int64              `json:"processing_time_ms"`
	CreatedAt           time.Time          `json:"created_at"`
}

// LeaderboardEntry is one ranked evaluation in a competition.
type LeaderboardEntry struct {
	Position             int                `json:"position"`
	SubmissionID         uint               `json:"submission_id"`
	AuthorID             uint               `json:"author_id"`
	ManuscriptTitle      string             `json:"manuscript_title"`
	Genre                string             `json:"genre"`
	WordCount            int                `json:"word_count"`
	WordCountApproximate bool               `json:"word_count_approximate"`
	SubmissionStatus     string             `json:"submission_status"`
	Evaluation           EvaluationResponse `json:"evaluation"`
}

// LeaderboardResponse lists evaluations by descending overall score.
type LeaderboardResponse struct {
	CompetitionID uint               `json:"competition_id"`
	Entries       []LeaderboardEntry `json:"entries"`
	Unevaluated   int                `json:"unevaluated"`
	CacheHit      bool               `json:"cache_hit"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// WinnerSelectionRequest lists submissions in rank order, best first.
type WinnerSelectionRequest struct {
	SubmissionIDs []uint `json:"submission_ids" validate:"required,min=1,dive,required"`
}

// WinnerResponse serializes a winner record.
type WinnerResponse struct {
	ID               uint      `json:"id"`
	CompetitionID    uint      `json:"competition_id"`
	CompetitionTitle string    `json:"competition_title,omitempty"`
	SubmissionID     uint      `json:"submission_id"`
	AuthorID         uint      `json:"author_id"`
	ManuscriptTitle  string    `json:"manuscript_title,omitempty"`
	Rank             int       `json:"rank"`
	FinalScore       float64   `json:"final_score"`
	PrizeAwarded     string    `json:"prize_awarded"`
	WinnerFeedback   string    `json:"winner_feedback"`
	AnnouncedAt      time.Time `json:"announced_at"`
	NotificationSent bool      `json:"notification_sent"`
}

// WinnerSelectionResponse reports a finalized competition.
type WinnerSelectionResponse struct {
	Competition CompetitionResponse `json:"competition"`
	Winners     []WinnerResponse    `json:"winners"`
	Omitted     []uint              `json:"omitted"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// NewEvaluationResponse converts an evaluation model to DTO.
func NewEvaluationResponse(model models.ManuscriptEvaluation) EvaluationResponse {
	strengths := []string(model.Strengths)
	if strengths == nil {
		strengths = []string{}
	}
	weaknesses := []string(model.Weaknesses)
	if weaknesses == nil {
		weaknesses = []string{}
	}
	return EvaluationResponse{
		ID:                  model.ID,
		SubmissionID:        model.SubmissionID,
		CompetitionID:       model.CompetitionID,
		ModelVersion:        model.ModelVersion,
		CriteriaScores:      model.Scores(),
		OverallScore:        model.OverallScore,
		OverallScoreDerived: model.OverallScoreDerived,
		ConfidenceScore:     model.ConfidenceScore,
		Strengths:           strengths,
		Weaknesses:          weaknesses,
		DetailedFeedback:    model.DetailedFeedback,
		ProcessingTimeMs:    model.ProcessingTimeMs,
		CreatedAt:           model.CreatedAt,
	}
}

// NewWinnerResponse converts a winner model to DTO.
func NewWinnerResponse(model models.CompetitionWinner) WinnerResponse {
	response := WinnerResponse{
		ID:               model.ID,
		CompetitionID:    model.CompetitionID,
		SubmissionID:     model.SubmissionID,
		AuthorID:         model.AuthorID,
		Rank:             model.Rank,
		FinalScore:       model.FinalScore,
		PrizeAwarded:     model.PrizeAwarded,
		WinnerFeedback:   model.WinnerFeedback,
		AnnouncedAt:      model.AnnouncedAt,
		NotificationSent: model.NotificationSent,
	}
	if model.Competition != nil {
		response.CompetitionTitle = model.Competition.Title
	}
	if model.Submission != nil {
		response.ManuscriptTitle = model.Submission.ManuscriptTitle
	}
	return response
}

// NewWinnerResponseSlice converts winner models to DTOs.
func NewWinnerResponseSlice(items []models.CompetitionWinner) []WinnerResponse {
	out := make([]WinnerResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewWinnerResponse(item))
	}
	return out
}
