package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/middleware"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
	filters []repository.ActivityLogFilter
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	m.filters = append(m.filters, filter)
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func TestActivityServiceRecordMasksSensitiveMetadata(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		Actor:      Actor{ID: 1, Role: "Admin"},
		Action:     "Submission.Entry_Fee_Confirmed",
		EntityType: EntitySubmission,
		EntityID:   uintPtr(5),
		Metadata: map[string]interface{}{
			"transaction_id": "txn_123",
			"author_email":   "writer@example.com",
			"competition_id": 3,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["transaction_id"])
	require.Equal(t, "w***r@example.com", entry.Metadata["author_email"])
	require.Equal(t, 3, entry.Metadata["competition_id"])
	require.Equal(t, "admin", entry.ActorRole)
	require.Equal(t, "submission.entry_fee_confirmed", entry.Action)
	require.Equal(t, uint(1), entry.ActorID)
}

func TestActivityServiceRecordRequiresActionAndEntity(t *testing.T) {
	svc := NewActivityService(&memoryActivityRepo{}, testValidator(), testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: EntityCompetition})
	require.Error(t, err)

	entry, err := svc.Record(context.Background(), ActivityEntry{Action: "competition.published", EntityType: EntityCompetition})
	require.NoError(t, err)
	require.Equal(t, "system", entry.ActorRole)

	_, err = svc.Record(context.Background(), ActivityEntry{Action: "competition.published"})
	require.Error(t, err)
}

func TestActivityServiceListPassesFilters(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())
	audit(context.Background(), svc, testLogger(), ActivityEntry{
		Actor:      testAdmin,
		Action:     "competition.closed",
		EntityType: EntityCompetition,
		EntityID:   uintPtr(9),
	})

	response, err := svc.List(context.Background(), dto.AdminActivityListRequest{
		Page:       1,
		PageSize:   20,
		Action:     " competition.closed ",
		EntityType: EntityCompetition,
		EntityID:   9,
	})
	require.NoError(t, err)
	require.Len(t, response.Items, 1)
	require.Equal(t, int64(1), response.Pagination.TotalItems)

	require.Len(t, repo.filters, 1)
	filter := repo.filters[0]
	require.Equal(t, "competition.closed", filter.Action)
	require.NotNil(t, filter.EntityID)
	require.Equal(t, uint(9), *filter.EntityID)
	require.Nil(t, filter.ActorID)
}

func TestActivityServiceRecordScopesEntriesToCompetition(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())
	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-42")

	published, err := svc.Record(ctx, ActivityEntry{
		Actor:      testAdmin,
		Action:     "competition.published",
		EntityType: EntityCompetition,
		EntityID:   uintPtr(7),
	})
	require.NoError(t, err)
	require.NotNil(t, published.CompetitionID)
	require.Equal(t, uint(7), *published.CompetitionID)
	require.Equal(t, "corr-42", published.CorrelationID)

	disqualified, err := svc.Record(context.Background(), ActivityEntry{
		Actor:         testAdmin,
		Action:        "submission.disqualified",
		EntityType:    EntitySubmission,
		EntityID:      uintPtr(40),
		CompetitionID: uintPtr(7),
	})
	require.NoError(t, err)
	require.Equal(t, uint(7), *disqualified.CompetitionID)
	require.Empty(t, disqualified.CorrelationID)
}

func TestActivityServiceListRejectsInvertedWindow(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())

	since := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	until := since.Add(-time.Hour)
	_, err := svc.List(context.Background(), dto.AdminActivityListRequest{Since: &since, Until: &until})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Empty(t, repo.filters)

	until = since.Add(24 * time.Hour)
	_, err = svc.List(context.Background(), dto.AdminActivityListRequest{CompetitionID: 7, Action: "Competition.*", Since: &since, Until: &until})
	require.NoError(t, err)
	require.Len(t, repo.filters, 1)
	require.Equal(t, uint(7), *repo.filters[0].CompetitionID)
	require.Equal(t, "competition.*", repo.filters[0].Action)
	require.Equal(t, until, *repo.filters[0].Until)
}
