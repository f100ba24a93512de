package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 100
)

// InboxQuery selects a page of one author's notifications.
type InboxQuery struct {
	UserID     uint
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Normalize clamps the paging values to the supported range.
func (q InboxQuery) Normalize() InboxQuery {
	if q.Limit <= 0 || q.Limit > maxInboxLimit {
		q.Limit = defaultInboxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// NotificationRepository stores author inbox entries.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	Inbox(ctx context.Context, query InboxQuery) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint, at time.Time) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) Inbox(ctx context.Context, query InboxQuery) ([]models.Notification, error) {
	query = query.Normalize()

	db := r.db.WithContext(ctx).Where("user_id = ?", query.UserID)
	if query.UnreadOnly {
		db = db.Where("read_at IS NULL")
	}

	var notifications []models.Notification
	err := db.Order("created_at DESC").
		Order("id DESC").
		Offset(query.Offset).
		Limit(query.Limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// MarkRead stamps the entry once; repeated calls keep the first read time.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint, at time.Time) (models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
			return err
		}
		if !notification.Unread() {
			return nil
		}
		if err := tx.Model(&notification).Update("read_at", at).Error; err != nil {
			return err
		}
		notification.ReadAt = &at
		return nil
	})
	if err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}
