package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/pkg/ai"
)

func fixedCritic(text string) *stubCritic {
	return newStubCritic(func(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error) {
		return ai.Critique{Text: text, ModelVersion: "stub-critic", Duration: 120 * time.Millisecond}, nil
	})
}

func TestRunEvaluatesEverySubmissionAndMovesToAdminReview(t *testing.T) {
	db := setupServiceDB(t)
	critic := fixedCritic(critiqueText(8, 7, 9, 6, 7.6))
	services := newServiceSet(db, serviceOptions{critic: critic})
	competition := seedCompetition(t, db, models.CompetitionStatusClosed)

	for _, title := range []string{"One", "Two", "Three"} {
		seedSubmission(t, db, competition.ID, testAuthor.ID, title, models.SubmissionStatusPending)
	}

	report, err := services.evaluations.Run(context.Background(), testAdmin, competition.ID)
	require.NoError(t, err)
	require.Equal(t, 3, report.Total)
	require.Equal(t, 3, report.Evaluated)
	require.Zero(t, report.AlreadyEvaluated)
	require.Empty(t, report.Failed)
	require.Zero(t, report.Unevaluated)
	require.Equal(t, models.CompetitionStatusAdminReview, report.Status)
	require.Equal(t, 3, critic.totalCalls())

	var evaluations []models.ManuscriptEvaluation
	require.NoError(t, db.Where("competition_id = ?", competition.ID).Find(&evaluations).Error)
	require.Len(t, evaluations, 3)
	for _, evaluation := range evaluations {
		require.InDelta(t, 7.6, evaluation.OverallScore, 0.0001)
		require.False(t, evaluation.OverallScoreDerived)
		require.Equal(t, "stub-critic", evaluation.ModelVersion)
		require.Equal(t, int64(120), evaluation.ProcessingTimeMs)
		require.InDelta(t, 8, evaluation.Scores()["plot_story_structure"], 0.0001)
		require.InDelta(t, 6, evaluation.Scores()["originality_creativity"], 0.0001)
		require.NotEmpty(t, evaluation.DetailedFeedback)
	}

	for _, status := range submissionStatuses(t, db, competition.ID) {
		require.Equal(t, models.SubmissionStatusUnderReview, status)
	}

	var stored models.Competition
	require.NoError(t, db.First(&stored, competition.ID).Error)
	require.Equal(t, models.CompetitionStatusAdminReview, stored.Status)
	require.Zero(t, stored.UnevaluatedCount)
	require.NotNil(t, stored.LastEvaluatedAt)
}

func TestRunToleratesCriticTimeout(t *testing.T) {
	db := setupServiceDB(t)
	critic := newStubCritic(func(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error) {
		if req.ManuscriptTitle == "Two" {
			<-ctx.Done()
			return ai.Critique{}, ctx.Err()
		}
		return ai.Critique{Text: critiqueText(8, 8, 8, 8, 8), ModelVersion: "stub-critic"}, nil
	})
	services := newServiceSet(db, serviceOptions{
		critic: critic,
		config: EvaluationConfig{Workers: 2, CallTimeout: 50 * time.Millisecond},
	})
	competition := seedCompetition(t, db, models.CompetitionStatusClosed)

	one := seedSubmission(t, db, competition.ID, testAuthor.ID, "One", models.SubmissionStatusPending)
	two := seedSubmission(t, db, competition.ID, testAuthor.ID, "Two", models.SubmissionStatusPending)
	three := seedSubmission(t, db, competition.ID, testAuthor.ID, "Three", models.SubmissionStatusPending)

	report, err := services.evaluations.Run(context.Background(), testAdmin, competition.ID)
	require.NoError(t, err)
	require.Equal(t, 2, report.Evaluated)
	require.Len(t, report.Failed, 1)
	require.Equal(t, two.ID, report.Failed[0].SubmissionID)
	require.Contains(t, report.Failed[0].Reason, "deadline exceeded")
	require.Equal(t, 1, report.Unevaluated)
	require.Equal(t, models.CompetitionStatusAdminReview, competitionStatus(t, db, competition.ID))

	var evaluated []uint
	require.NoError(t, db.Model(&models.ManuscriptEvaluation{}).Order("submission_id").Pluck("submission_id", &evaluated).Error)
	require.Equal(t, []uint{one.ID, three.ID}, evaluated)

	var released models.CompetitionSubmission
	require.NoError(t, db.First(&released, two.ID).Error)
	require.Empty(t, released.EvaluationClaimToken)
	require.Equal(t, models.SubmissionStatusPending, released.Status)
}

func TestRunIsIdempotentAcrossReruns(t *testing.T) {
	db := setupServiceDB(t)
	var failTwo sync.Mutex
	shouldFail := true
	critic := newStubCritic(func(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error) {
		failTwo.Lock()
		defer failTwo.Unlock()
		if req.ManuscriptTitle == "Two" && shouldFail {
			return ai.Critique{}, errors.New("upstream 502")
		}
		return ai.Critique{Text: critiqueText(7, 7, 7, 7, 7), ModelVersion: "stub-critic"}, nil
	})
	services := newServiceSet(db, serviceOptions{critic: critic})
	competition := seedCompetition(t, db, models.CompetitionStatusClosed)
	for _, title := range []string{"One", "Two", "Three"} {
		seedSubmission(t, db, competition.ID, testAuthor.ID, title, models.SubmissionStatusValidated)
	}

	first, err := services.evaluations.Run(context.Background(), testAdmin, competition.ID)
	require.NoError(t, err)
	require.Equal(t, 2, first.Evaluated)
	require.Equal(t, 1, first.Unevaluated)
	require.Equal(t, 3, critic.totalCalls())

	require.Equal(t, models.CompetitionStatusAdminReview, competitionStatus(t, db, competition.ID))

	failTwo.Lock()
	shouldFail = false
	failTwo.Unlock()

	second, err := services.evaluations.Run(context.Background(), testAdmin, competition.ID)
	require.NoError(t, err)
	require.Equal(t, 2, second.AlreadyEvaluated)
	require.Equal(t, 1, second.Evaluated)
	require.Zero(t, second.Unevaluated)
	require.Equal(t, 4, critic.totalCalls())

	var count int64
	require.NoError(t, db.Model(&models.ManuscriptEvaluation{}).Where("competition_id = ?", competition.ID).Count(&count).Error)
	require.Equal(t, int64(3), count)

	_, err = services.evaluations.Run(context.Background(), testAdmin, competition.ID)
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, models.CompetitionStatusAdminReview, conflict.From)
	require.Equal(t, 4, critic.totalCalls())
}

func TestConcurrentRunsCallCriticOncePerSubmission(t *testing.T) {
	db := setupServiceDB(t)
	critic := newStubCritic(func(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error) {
		time.Sleep(10 * time.Millisecond)
		return ai.Critique{Text: critiqueText(6, 6, 6, 6, 6), ModelVersion: "stub-critic"}, nil
	})
	services := newServiceSet(db, serviceOptions{critic: critic, config: EvaluationConfig{Workers: 2}})
	competition := seedCompetition(t, db, models.CompetitionStatusClosed)
	titles := []string{"One", "Two", "Three", "Four", "Five", "Six"}
	for _, title := range titles {
		seedSubmission(t, db, competition.ID, testAuthor.ID, title, models.SubmissionStatusPending)
	}

	var wg sync.WaitGroup
	reports := make([]dto.EvaluationRunReport, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = services.evaluations.Run(context.Background(), testAdmin, competition.ID)
		}(i)
	}
	wg.Wait()

	evaluated := 0
	for i, err := range errs {
		if err != nil {
			var conflict *StateConflictError
			require.ErrorAs(t, err, &conflict)
			continue
		}
		evaluated += reports[i].Evaluated
	}
	require.Equal(t, len(titles), evaluated)
	require.Equal(t, len(titles), critic.totalCalls())
	for _, title := range titles {
		require.Equal(t, 1, critic.calls[title], title)
	}
	require.Equal(t, models.CompetitionStatusAdminReview, competitionStatus(t, db, competition.ID))
}

func TestRunDerivesOverallScoreAndSkipsDisqualified(t *testing.T) {
	db := setupServiceDB(t)
	critic := fixedCritic(critiqueText(8, 6, 7, 9, 0))
	services := newServiceSet(db, serviceOptions{critic: critic})
	competition := seedCompetition(t, db, models.CompetitionStatusClosed)
	kept := seedSubmission(t, db, competition.ID, testAuthor.ID, "Kept", models.SubmissionStatusPending)
	seedSubmission(t, db, competition.ID, 77, "Removed", models.SubmissionStatusDisqualified)

	report, err := services.evaluations.Run(context.Background(), testAdmin, competition.ID)
	require.NoError(t, err)
	require.Equal(t, 2, report.Total)
	require.Equal(t, 1, report.Evaluated)
	require.Equal(t, 1, report.Skipped)
	require.Zero(t, report.Unevaluated)
	require.Equal(t, 1, critic.totalCalls())

	var evaluation models.ManuscriptEvaluation
	require.NoError(t, db.Where("submission_id = ?", kept.ID).First(&evaluation).Error)
	require.True(t, evaluation.OverallScoreDerived)
	require.InDelta(t, 7.5, evaluation.OverallScore, 0.0001)
}

func TestRunRejectsInvalidStates(t *testing.T) {
	db := setupServiceDB(t)
	critic := fixedCritic(critiqueText(5, 5, 5, 5, 5))
	services := newServiceSet(db, serviceOptions{critic: critic})
	ctx := context.Background()

	for _, status := range []string{
		models.CompetitionStatusDraft,
		models.CompetitionStatusAcceptingSubmissions,
		models.CompetitionStatusAdminReview,
		models.CompetitionStatusCompleted,
	} {
		competition := seedCompetition(t, db, status)
		_, err := services.evaluations.Run(ctx, testAdmin, competition.ID)
		var conflict *StateConflictError
		require.ErrorAs(t, err, &conflict, status)
		require.Equal(t, status, conflict.From)
		require.Equal(t, models.CompetitionStatusEvaluating, conflict.To)
		require.ErrorIs(t, err, ErrStateConflict)
		require.Equal(t, status, competitionStatus(t, db, competition.ID))
	}

	closed := seedCompetition(t, db, models.CompetitionStatusClosed)
	_, err := services.evaluations.Run(ctx, testAuthor, closed.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = services.evaluations.Run(ctx, testAdmin, 4040)
	require.ErrorIs(t, err, ErrCompetitionNotFound)

	noCritic := newServiceSet(db, serviceOptions{})
	_, err = noCritic.evaluations.Run(ctx, testAdmin, closed.ID)
	require.ErrorIs(t, err, ErrCriticUnavailable)
	require.Zero(t, critic.totalCalls())
}

func TestRunStreamsProgressEvents(t *testing.T) {
	db := setupServiceDB(t)
	critic := newStubCritic(func(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error) {
		if req.ManuscriptTitle == "Broken" {
			return ai.Critique{Text: "I cannot evaluate this manuscript."}, nil
		}
		return ai.Critique{Text: critiqueText(9, 9, 9, 9, 9)}, nil
	})
	services := newServiceSet(db, serviceOptions{critic: critic})
	competition := seedCompetition(t, db, models.CompetitionStatusClosed)
	seedSubmission(t, db, competition.ID, testAuthor.ID, "Fine", models.SubmissionStatusPending)
	broken := seedSubmission(t, db, competition.ID, testAuthor.ID, "Broken", models.SubmissionStatusPending)

	events, cleanup := services.evaluations.Subscribe(competition.ID)
	defer cleanup()

	_, err := services.evaluations.Run(context.Background(), testAdmin, competition.ID)
	require.NoError(t, err)

	var received []dto.EvaluationProgressEvent
	for len(received) < 4 {
		select {
		case event := <-events:
			received = append(received, event)
		case <-time.After(time.Second):
			t.Fatalf("expected 4 progress events, got %d", len(received))
		}
	}

	require.Equal(t, dto.EvaluationEventStarted, received[0].Type)
	require.Equal(t, dto.EvaluationEventFinished, received[3].Type)
	require.NotNil(t, received[3].Report)
	require.Equal(t, 1, received[3].Report.Evaluated)

	types := map[string]uint{}
	for _, event := range received[1:3] {
		types[event.Type] = event.SubmissionID
	}
	require.Equal(t, broken.ID, types[dto.EvaluationEventFailed])
	require.Contains(t, types, dto.EvaluationEventEvaluated)
}

func TestOverlappingRunsHoldAdminReviewUntilLastClaimSettles(t *testing.T) {
	db := setupServiceDB(t)
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	critic := newStubCritic(func(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error) {
		if req.ManuscriptTitle == "Slow" {
			close(slowStarted)
			<-releaseSlow
		}
		return ai.Critique{Text: critiqueText(7, 7, 7, 7, 7), ModelVersion: "stub-critic"}, nil
	})
	services := newServiceSet(db, serviceOptions{critic: critic, config: EvaluationConfig{Workers: 2, CallTimeout: 30 * time.Second}})
	competition := seedCompetition(t, db, models.CompetitionStatusClosed)
	slow := seedSubmission(t, db, competition.ID, 101, "Slow", models.SubmissionStatusPending)
	fast := seedSubmission(t, db, competition.ID, 102, "Fast", models.SubmissionStatusPending)

	type runResult struct {
		report dto.EvaluationRunReport
		err    error
	}
	first := make(chan runResult, 1)
	go func() {
		report, err := services.evaluations.Run(context.Background(), testAdmin, competition.ID)
		first <- runResult{report: report, err: err}
	}()

	<-slowStarted
	require.Eventually(t, func() bool {
		var count int64
		err := db.Model(&models.ManuscriptEvaluation{}).Where("submission_id = ?", fast.ID).Count(&count).Error
		return err == nil && count == 1
	}, 2*time.Second, 10*time.Millisecond)

	second, err := services.evaluations.Run(context.Background(), testAdmin, competition.ID)
	require.NoError(t, err)
	require.Equal(t, 1, second.ClaimedElsewhere)
	require.Equal(t, 1, second.Unevaluated)
	require.Equal(t, models.CompetitionStatusEvaluating, second.Status)
	require.Equal(t, models.CompetitionStatusEvaluating, competitionStatus(t, db, competition.ID))

	_, err = services.winners.SelectWinners(context.Background(), testAdmin, competition.ID, dto.WinnerSelectionRequest{
		SubmissionIDs: []uint{fast.ID},
	})
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)

	close(releaseSlow)
	result := <-first
	require.NoError(t, result.err)
	require.Equal(t, models.CompetitionStatusAdminReview, result.report.Status)
	require.Zero(t, result.report.Unevaluated)

	var stored models.CompetitionSubmission
	require.NoError(t, db.First(&stored, slow.ID).Error)
	require.Equal(t, models.SubmissionStatusUnderReview, stored.Status)
	require.Empty(t, stored.EvaluationClaimToken)

	response, err := services.winners.SelectWinners(context.Background(), testAdmin, competition.ID, dto.WinnerSelectionRequest{
		SubmissionIDs: []uint{fast.ID},
	})
	require.NoError(t, err)
	require.Len(t, response.Winners, 1)
}
