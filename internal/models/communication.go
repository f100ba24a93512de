package models

import "time"

// Notification kinds delivered to authors.
const (
	NotificationKindWinner       = "competition.winner"
	NotificationKindDisqualified = "submission.disqualified"
)

// Notification is an inbox entry addressed to one author, usually pointing at
// a competition or one of the author's submissions.
type Notification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index:idx_notifications_inbox,priority:1" json:"user_id"`
	Kind          string     `gorm:"size:64;not null" json:"kind"`
	Title         string     `gorm:"size:160" json:"title"`
	Message       string     `gorm:"type:text" json:"message"`
	CompetitionID *uint      `gorm:"index" json:"competition_id,omitempty"`
	SubmissionID  *uint      `json:"submission_id,omitempty"`
	Link          string     `gorm:"size:255" json:"link,omitempty"`
	ReadAt        *time.Time `gorm:"index:idx_notifications_inbox,priority:2" json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Unread reports whether the author has not opened the entry yet.
func (n Notification) Unread() bool {
	return n.ReadAt == nil
}
