package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

func TestNotificationInboxFiltersAndMarksRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	older := models.Notification{UserID: 5, Kind: models.NotificationKindWinner, Message: "First place", CreatedAt: time.Now().Add(-time.Hour)}
	newer := models.Notification{UserID: 5, Kind: models.NotificationKindDisqualified, Message: "Entry removed"}
	foreign := models.Notification{UserID: 6, Kind: models.NotificationKindWinner, Message: "Not yours"}
	for _, n := range []*models.Notification{&older, &newer, &foreign} {
		require.NoError(t, repo.Create(ctx, n))
	}

	inbox, err := repo.Inbox(ctx, InboxQuery{UserID: 5})
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	require.Equal(t, newer.ID, inbox[0].ID)

	readAt := time.Now().UTC().Truncate(time.Second)
	read, err := repo.MarkRead(ctx, older.ID, 5, readAt)
	require.NoError(t, err)
	require.False(t, read.Unread())

	again, err := repo.MarkRead(ctx, older.ID, 5, readAt.Add(time.Hour))
	require.NoError(t, err)
	require.WithinDuration(t, readAt, *again.ReadAt, time.Second)

	unread, err := repo.Inbox(ctx, InboxQuery{UserID: 5, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, newer.ID, unread[0].ID)

	_, err = repo.MarkRead(ctx, foreign.ID, 5, readAt)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	marked, err := repo.MarkAllRead(ctx, 5, readAt)
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)

	count, err := repo.CountUnread(ctx, 5)
	require.NoError(t, err)
	require.Zero(t, count)

	count, err = repo.CountUnread(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestInboxQueryNormalize(t *testing.T) {
	q := InboxQuery{Limit: 500, Offset: -3}.Normalize()
	require.Equal(t, maxInboxLimit, q.Limit)
	require.Zero(t, q.Offset)
}
