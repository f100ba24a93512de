package models

import "time"

// BadgeTypeCompetitionWinner tags badges awarded by winner selection.
const BadgeTypeCompetitionWinner = "competition_winner"

// AuthorCompetitionStats aggregates an author's competition history.
type AuthorCompetitionStats struct {
	AuthorID         uint      `gorm:"primaryKey;autoIncrement:false" json:"author_id"`
	TotalSubmissions int       `gorm:"not null;default:0" json:"total_submissions"`
	TotalEntered     int       `gorm:"not null;default:0" json:"total_entered"`
	TotalWins        int       `gorm:"not null;default:0" json:"total_wins"`
	TotalFinalist    int       `gorm:"not null;default:0" json:"total_finalist"`
	BestRank         *int      `json:"best_rank"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AuthorBadge is an achievement appended to an author's profile.
type AuthorBadge struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AuthorID      uint      `gorm:"not null;index" json:"author_id"`
	BadgeType     string    `gorm:"size:64;not null" json:"badge_type"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Icon          string    `gorm:"size:16" json:"icon"`
	CompetitionID *uint     `gorm:"index" json:"competition_id"`
	AwardedAt     time.Time `json:"awarded_at"`
}

// Book is a published catalog entry an author may enter into a competition.
type Book struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Genre       string    `gorm:"size:128" json:"genre"`
	Description string    `gorm:"type:text" json:"description"`
	PageCount   int       `json:"page_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
