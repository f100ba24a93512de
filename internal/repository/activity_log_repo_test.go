package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

func TestActivityLogFiltersByCompetitionPrefixAndWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	competitionID := uint(3)
	otherCompetition := uint(4)
	submissionID := uint(11)
	earlier := time.Now().UTC().Add(-2 * time.Hour)

	entries := []models.ActivityLog{
		{ActorID: 1, ActorRole: "admin", Action: "competition.published", EntityType: "competition", EntityID: &competitionID, CompetitionID: &competitionID, CreatedAt: earlier},
		{ActorID: 1, ActorRole: "admin", Action: "submission.disqualified", EntityType: "submission", EntityID: &submissionID, CompetitionID: &competitionID},
		{ActorID: 1, ActorRole: "admin", Action: "competition.closed", EntityType: "competition", EntityID: &competitionID, CompetitionID: &competitionID},
		{ActorID: 2, ActorRole: "admin", Action: "competition.published", EntityType: "competition", EntityID: &otherCompetition, CompetitionID: &otherCompetition},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	timeline, total, err := repo.List(ctx, ActivityLogFilter{CompetitionID: &competitionID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, timeline, 3)
	require.Equal(t, "competition.published", timeline[2].Action)

	lifecycle, total, err := repo.List(ctx, ActivityLogFilter{CompetitionID: &competitionID, Action: "competition.*", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	for _, entry := range lifecycle {
		require.Equal(t, "competition", entry.EntityType)
	}

	since := earlier.Add(time.Hour)
	recent, total, err := repo.List(ctx, ActivityLogFilter{CompetitionID: &competitionID, Since: &since, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, recent, 2)
}
