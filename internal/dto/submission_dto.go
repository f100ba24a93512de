package dto

import (
	"time"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// Submission entry modes.
const (
	EntryModeNew    = "new"
	EntryModeReused = "reused"
)

// SubmissionRequest captures a competition entry. New manuscripts carry a
// file and an explicit word count; reused works reference a catalog book.
type SubmissionRequest struct {
	Mode            string `form:"mode" json:"mode" validate:"required,oneof=new reused"`
	ManuscriptTitle string `form:"manuscript_title" json:"manuscript_title" validate:"required_if=Mode new,max=255"`
	WordCount       int    `form:"word_count" json:"word_count" validate:"required_if=Mode new,min=0,max=2000000"`
	Genre           string `form:"genre" json:"genre" validate:"required_if=Mode new,max=128"`
	Synopsis        string `form:"synopsis" json:"synopsis" validate:"max=10000"`
	AuthorStatement string `form:"author_statement" json:"author_statement" validate:"max=5000"`
	BookID          uint   `form:"book_id" json:"book_id" validate:"required_if=Mode reused"`
}

// DisqualifyRequest records why a submission is removed from judging.
type DisqualifyRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=2000"`
}

// ConfirmEntryFeeRequest records an externally processed entry fee payment.
type ConfirmEntryFeeRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,max=128"`
}

// SubmissionListRequest filters the admin submission listing of a competition.
type SubmissionListRequest struct {
	Status   string `validate:"omitempty,oneof=pending validated under_review disqualified winner participant"`
	Page     int    `validate:"min=0"`
	PageSize int    `validate:"min=0,max=100"`
}

// SubmissionResponse serializes a competition submission.
type SubmissionResponse struct {
	ID                     uint      `json:"id"`
	CompetitionID          uint      `json:"competition_id"`
	AuthorID               uint      `json:"author_id"`
	ManuscriptTitle        string    `json:"manuscript_title"`
	ManuscriptURL          string    `json:"manuscript_url,omitempty"`
	BookID                 *uint     `json:"book_id,omitempty"`
	WordCount              int       `json:"word_count"`
	WordCountApproximate   bool      `json:"word_count_approximate"`
	Genre                  string    `json:"genre"`
	Synopsis               string    `json:"synopsis"`
	AuthorStatement        string    `json:"author_statement"`
	SubmittedAt            time.Time `json:"submitted_at"`
	EntryFeePaid           bool      `json:"entry_fee_paid"`
	PaymentTransactionID   string    `json:"payment_transaction_id,omitempty"`
	Status                 string    `json:"status"`
	DisqualificationReason string    `json:"disqualification_reason,omitempty"`
}

// SubmissionListResponse wraps a paginated submission listing.
type SubmissionListResponse struct {
	Items      []SubmissionResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// AuthorSubmissionResponse is a submission listed on the author's own dashboard.
type AuthorSubmissionResponse struct {
	SubmissionResponse
	CompetitionTitle  string `json:"competition_title"`
	CompetitionStatus string `json:"competition_status"`
	WinnerRank        *int   `json:"winner_rank,omitempty"`
}

// AuthorStatsResponse exposes an author's competition counters and badges.
type AuthorStatsResponse struct {
	AuthorID         uint            `json:"author_id"`
	TotalSubmissions int             `json:"total_submissions"`
	TotalEntered     int             `json:"total_entered"`
	TotalWins        int             `json:"total_wins"`
	TotalFinalist    int             `json:"total_finalist"`
	BestRank         *int            `json:"best_rank"`
	Badges           []BadgeResponse `json:"badges"`
}

// BadgeResponse serializes an author badge.
type BadgeResponse struct {
	ID            uint      `json:"id"`
	BadgeType     string    `json:"badge_type"`
	Name          string    `json:"name"`
	Icon          string    `json:"icon"`
	CompetitionID *uint     `json:"competition_id,omitempty"`
	AwardedAt     time.Time `json:"awarded_at"`
}

// NewSubmissionResponse converts a submission model to DTO.
func NewSubmissionResponse(model models.CompetitionSubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:                     model.ID,
		CompetitionID:          model.CompetitionID,
		AuthorID:               model.AuthorID,
		ManuscriptTitle:        model.ManuscriptTitle,
		ManuscriptURL:          model.ManuscriptURL,
		BookID:                 model.BookID,
		WordCount:              model.WordCount,
		WordCountApproximate:   model.WordCountApproximate,
		Genre:                  model.Genre,
		Synopsis:               model.Synopsis,
		AuthorStatement:        model.AuthorStatement,
		SubmittedAt:            model.SubmittedAt,
		EntryFeePaid:           model.EntryFeePaid,
		PaymentTransactionID:   model.PaymentTransactionID,
		Status:                 model.Status,
		DisqualificationReason: model.DisqualificationReason,
	}
}

// NewSubmissionResponseSlice converts submissions to DTOs.
func NewSubmissionResponseSlice(items []models.CompetitionSubmission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewSubmissionResponse(item))
	}
	return out
}

// NewBadgeResponse converts a badge model to DTO.
func NewBadgeResponse(model models.AuthorBadge) BadgeResponse {
	return BadgeResponse{
		ID:            model.ID,
		BadgeType:     model.BadgeType,
		Name:          model.Name,
		Icon:          model.Icon,
		CompetitionID: model.CompetitionID,
		AwardedAt:     model.AwardedAt,
	}
}
