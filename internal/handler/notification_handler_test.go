package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/models"
)

func TestNotificationInboxListAndMarkRead(t *testing.T) {
	app := setupCompetitionApp(t)

	mine := models.Notification{UserID: authorUser.id, Kind: models.NotificationKindWinner, Message: "You placed first."}
	require.NoError(t, app.db.Create(&mine).Error)
	second := models.Notification{UserID: authorUser.id, Kind: models.NotificationKindWinner, Message: "Runner-up too."}
	require.NoError(t, app.db.Create(&second).Error)
	other := models.Notification{UserID: 77, Kind: models.NotificationKindWinner, Message: "Someone else."}
	require.NoError(t, app.db.Create(&other).Error)

	status, body := app.do(t, http.MethodGet, "/api/v2/notifications?limit=10", authorUser, nil)
	require.Equal(t, http.StatusOK, status, body.Message)
	inbox := decode[[]dto.NotificationResponse](t, body.Data)
	require.Len(t, inbox, 2)
	require.Equal(t, float64(2), decode[map[string]interface{}](t, body.Meta)["unread"])

	status, body = app.do(t, http.MethodPatch, fmt.Sprintf("/api/v2/notifications/%d/read", mine.ID), authorUser, nil)
	require.Equal(t, http.StatusOK, status, body.Message)
	require.True(t, decode[dto.NotificationResponse](t, body.Data).Read)

	status, body = app.do(t, http.MethodGet, "/api/v2/notifications?unread=true", authorUser, nil)
	require.Equal(t, http.StatusOK, status, body.Message)
	unread := decode[[]dto.NotificationResponse](t, body.Data)
	require.Len(t, unread, 1)
	require.Equal(t, second.ID, unread[0].ID)

	status, body = app.do(t, http.MethodPost, "/api/v2/notifications/read-all", authorUser, nil)
	require.Equal(t, http.StatusOK, status, body.Message)
	require.Equal(t, float64(1), decode[map[string]interface{}](t, body.Data)["marked"])

	status, _ = app.do(t, http.MethodPatch, fmt.Sprintf("/api/v2/notifications/%d/read", other.ID), authorUser, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = app.do(t, http.MethodGet, "/api/v2/notifications?limit=abc", authorUser, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = app.do(t, http.MethodGet, "/api/v2/notifications?unread=maybe", authorUser, nil)
	require.Equal(t, http.StatusBadRequest, status)
}
