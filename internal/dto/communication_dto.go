package dto

import (
	"time"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// NotificationCreateRequest is produced by the services that notify authors.
type NotificationCreateRequest struct {
	UserID        uint   `json:"user_id" validate:"required"`
	Kind          string `json:"kind" validate:"required,max=64"`
	Title         string `json:"title" validate:"max=160"`
	Message       string `json:"message" validate:"required,min=1,max=2000"`
	CompetitionID *uint  `json:"competition_id"`
	SubmissionID  *uint  `json:"submission_id"`
	Link          string `json:"link" validate:"omitempty,max=255"`
}

// NotificationInboxRequest pages through an author's inbox.
type NotificationInboxRequest struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationResponse is one inbox entry.
type NotificationResponse struct {
	ID            uint       `json:"id"`
	UserID        uint       `json:"user_id"`
	Kind          string     `json:"kind"`
	Title         string     `json:"title,omitempty"`
	Message       string     `json:"message"`
	CompetitionID *uint      `json:"competition_id,omitempty"`
	SubmissionID  *uint      `json:"submission_id,omitempty"`
	Link          string     `json:"link,omitempty"`
	Read          bool       `json:"read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NotificationInboxResponse carries a page of the inbox and the unread total.
type NotificationInboxResponse struct {
	Items  []NotificationResponse `json:"items"`
	Unread int64                  `json:"unread"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            model.ID,
		UserID:        model.UserID,
		Kind:          model.Kind,
		Title:         model.Title,
		Message:       model.Message,
		CompetitionID: model.CompetitionID,
		SubmissionID:  model.SubmissionID,
		Link:          model.Link,
		Read:          !model.Unread(),
		ReadAt:        model.ReadAt,
		CreatedAt:     model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
