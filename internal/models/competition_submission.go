package models

import "time"

// Submission states.
const (
	SubmissionStatusPending      = "pending"
	SubmissionStatusValidated    = "validated"
	SubmissionStatusUnderReview  = "under_review"
	SubmissionStatusDisqualified = "disqualified"
	SubmissionStatusWinner       = "winner"
	SubmissionStatusParticipant  = "participant"
)

// ApproxWordsPerPage converts a catalog page count into an approximate word count.
const ApproxWordsPerPage = 250

// CompetitionSubmission is one author's entry into a competition.
type CompetitionSubmission struct {
	ID                     uint         `gorm:"primaryKey" json:"id"`
	CompetitionID          uint         `gorm:"not null;index:idx_submission_competition_author" json:"competition_id"`
	AuthorID               uint         `gorm:"not null;index:idx_submission_competition_author" json:"author_id"`
	ManuscriptTitle        string       `gorm:"size:255;not null" json:"manuscript_title"`
	ManuscriptURL          string       `gorm:"size:512" json:"manuscript_url"`
	BookID                 *uint        `json:"book_id"`
	WordCount              int          `gorm:"not null" json:"word_count"`
	WordCountApproximate   bool         `gorm:"not null;default:false" json:"word_count_approximate"`
	Genre                  string       `gorm:"size:128" json:"genre"`
	Synopsis               string       `gorm:"type:text" json:"synopsis"`
	AuthorStatement        string       `gorm:"type:text" json:"author_statement"`
	SubmittedAt            time.Time    `gorm:"not null" json:"submitted_at"`
	EntryFeePaid           bool         `gorm:"not null;default:false" json:"entry_fee_paid"`
	PaymentTransactionID   string       `gorm:"size:128" json:"payment_transaction_id,omitempty"`
	Status                 string       `gorm:"size:32;not null;index" json:"status"`
	DisqualificationReason string       `gorm:"type:text" json:"disqualification_reason,omitempty"`
	EvaluationClaimToken   string       `gorm:"size:64;index" json:"-"`
	EvaluationClaimedAt    *time.Time   `json:"-"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
	Competition            *Competition `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"competition,omitempty"`
}
