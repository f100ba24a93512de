package models

import "time"

// CompetitionWinner records a finalized rank and prize. Created once per competition.
type CompetitionWinner struct {
	ID               uint                   `gorm:"primaryKey" json:"id"`
	CompetitionID    uint                   `gorm:"not null;uniqueIndex:idx_winner_competition_rank" json:"competition_id"`
	SubmissionID     uint                   `gorm:"not null;uniqueIndex" json:"submission_id"`
	AuthorID         uint                   `gorm:"not null;index" json:"author_id"`
	Rank             int                    `gorm:"not null;uniqueIndex:idx_winner_competition_rank" json:"rank"`
	FinalScore       float64                `json:"final_score"`
	PrizeAwarded     string                 `gorm:"size:255" json:"prize_awarded"`
	WinnerFeedback   string                 `gorm:"type:text" json:"winner_feedback"`
	AnnouncedAt      time.Time              `json:"announced_at"`
	NotificationSent bool                   `gorm:"not null;default:false" json:"notification_sent"`
	CreatedAt        time.Time              `json:"created_at"`
	Submission       *CompetitionSubmission `json:"submission,omitempty"`
	Competition      *Competition           `json:"competition,omitempty"`
}

// PrizeKeyForRank maps a rank to its prize structure key.
func PrizeKeyForRank(rank int) string {
	switch rank {
	case 1:
		return PrizeKeyFirstPlace
	case 2:
		return PrizeKeySecondPlace
	case 3:
		return PrizeKeyThirdPlace
	default:
		return ""
	}
}
