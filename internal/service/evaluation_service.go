package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/observability"
	"github.com/noah-isme/inklaunch-api/internal/repository"
	"github.com/noah-isme/inklaunch-api/pkg/ai"
)

// Per-submission outcomes reported to metrics.
const (
	outcomeEvaluated        = "evaluated"
	outcomeDuplicate        = "duplicate"
	outcomeFailed           = "failed"
	outcomeClaimedElsewhere = "claimed_elsewhere"
)

// EvaluationConfig bounds an evaluation run.
type EvaluationConfig struct {
	Workers     int
	CallTimeout time.Duration
	ClaimTTL    time.Duration
}

func (c EvaluationConfig) withDefaults() EvaluationConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 90 * time.Second
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 15 * time.Minute
	}
	return c
}

// EvaluationService runs the critic over a closed competition's submissions.
// Run is resumable: calling it again on an evaluating competition picks up the
// submissions that still have no evaluation.
type EvaluationService interface {
	Run(ctx context.Context, actor Actor, competitionID uint) (dto.EvaluationRunReport, error)
	Subscribe(competitionID uint) (<-chan dto.EvaluationProgressEvent, func())
}

type evaluationService struct {
	competitions repository.CompetitionRepository
	submissions  repository.CompetitionSubmissionRepository
	evaluations  repository.ManuscriptEvaluationRepository
	critic       ai.Critic
	leaderboard  LeaderboardService
	progress     *ProgressHub
	activities   ActivityRecorder
	events       CompetitionEventPublisher
	config       EvaluationConfig
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// EvaluationServiceDeps groups the collaborators of the evaluation service.
type EvaluationServiceDeps struct {
	Competitions repository.CompetitionRepository
	Submissions  repository.CompetitionSubmissionRepository
	Evaluations  repository.ManuscriptEvaluationRepository
	Critic       ai.Critic
	Leaderboard  LeaderboardService
	Progress     *ProgressHub
	Activities   ActivityRecorder
	Events       CompetitionEventPublisher
	Config       EvaluationConfig
}

type evaluationJob struct {
	submission models.CompetitionSubmission
	token      string
}

type evaluationOutcome struct {
	job              evaluationJob
	evaluation       *models.ManuscriptEvaluation
	claimedElsewhere bool
	err              error
}

// NewEvaluationService constructs the evaluation orchestrator.
func NewEvaluationService(deps EvaluationServiceDeps, logger zerolog.Logger) EvaluationService {
	progress := deps.Progress
	if progress == nil {
		progress = NewProgressHub(nil, "", logger)
	}
	return &evaluationService{
		competitions: deps.Competitions,
		submissions:  deps.Submissions,
		evaluations:  deps.Evaluations,
		critic:       deps.Critic,
		leaderboard:  deps.Leaderboard,
		progress:     progress,
		activities:   deps.Activities,
		events:       deps.Events,
		config:       deps.Config.withDefaults(),
		logger:       logger.With().Str("component", "evaluation_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/inklaunch-api/internal/service/evaluation"),
		now:          time.Now,
	}
}

func (s *evaluationService) Subscribe(competitionID uint) (<-chan dto.EvaluationProgressEvent, func()) {
	return s.progress.Subscribe(competitionID)
}

func (s *evaluationService) Run(ctx context.Context, actor Actor, competitionID uint) (dto.EvaluationRunReport, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.run", trace.WithAttributes(attribute.Int("competition.id", int(competitionID))))
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return dto.EvaluationRunReport{}, err
	}
	if s.critic == nil {
		return dto.EvaluationRunReport{}, ErrCriticUnavailable
	}

	competition, err := s.findCompetition(ctx, competitionID)
	if err != nil {
		return dto.EvaluationRunReport{}, err
	}
	resumable := resumableStatuses(competition)
	if !containsStatus(resumable, competition.Status) {
		span.SetStatus(codes.Error, "state_conflict")
		return dto.EvaluationRunReport{}, &StateConflictError{From: competition.Status, To: models.CompetitionStatusEvaluating}
	}
	if err := s.competitions.TransitionStatus(ctx, competitionID, resumable, models.CompetitionStatusEvaluating); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			current, findErr := s.findCompetition(ctx, competitionID)
			if findErr != nil {
				return dto.EvaluationRunReport{}, findErr
			}
			return dto.EvaluationRunReport{}, &StateConflictError{From: current.Status, To: models.CompetitionStatusEvaluating}
		}
		return dto.EvaluationRunReport{}, fmt.Errorf("start evaluation: %w", err)
	}

	started := s.now()
	report := dto.EvaluationRunReport{
		CompetitionID: competitionID,
		Failed:        []dto.EvaluationFailure{},
		StartedAt:     started.UTC(),
	}
	s.progress.Publish(ctx, dto.EvaluationProgressEvent{Type: dto.EvaluationEventStarted, CompetitionID: competitionID, At: started.UTC()})

	queue, err := s.pending(ctx, competitionID, &report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_submissions_failed")
		return report, fmt.Errorf("load submissions: %w", err)
	}

	s.process(ctx, competition, queue, &report)

	// Writes after the batch must land even when the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	unevaluated, err := s.evaluations.CountUnevaluated(persistCtx, competitionID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("competition_id", competitionID).Msg("failed to count unevaluated submissions")
		unevaluated = int64(len(report.Failed) + report.ClaimedElsewhere)
	}

	finished := s.now()
	status, err := s.competitions.CompleteEvaluationRun(persistCtx, competitionID, int(unevaluated), finished.UTC(), finished.Add(-s.config.ClaimTTL).UTC())
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrStatusChanged) {
			span.SetStatus(codes.Error, "state_conflict")
			current, findErr := s.findCompetition(persistCtx, competitionID)
			if findErr != nil {
				return report, findErr
			}
			return report, &StateConflictError{From: current.Status, To: models.CompetitionStatusAdminReview}
		}
		span.SetStatus(codes.Error, "complete_run_failed")
		return report, fmt.Errorf("complete evaluation run: %w", err)
	}

	report.Unevaluated = int(unevaluated)
	report.Status = status
	report.FinishedAt = finished.UTC()
	observability.EvaluationRunDuration().Observe(finished.Sub(started).Seconds())

	if s.leaderboard != nil {
		s.leaderboard.Invalidate(persistCtx, competitionID)
	}

	details := map[string]interface{}{
		"total":             report.Total,
		"evaluated":         report.Evaluated,
		"already_evaluated": report.AlreadyEvaluated,
		"failed":            len(report.Failed),
		"claimed_elsewhere": report.ClaimedElsewhere,
		"unevaluated":       report.Unevaluated,
	}
	audit(persistCtx, s.activities, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "competition.evaluated",
		EntityType: EntityCompetition,
		EntityID:   uintPtr(competitionID),
		Metadata:   details,
	})
	publishEvent(persistCtx, s.events, s.logger, CompetitionEvent{
		Type:          "evaluated",
		CompetitionID: competitionID,
		Status:        report.Status,
		ActorID:       actor.ID,
		Details:       details,
		OccurredAt:    report.FinishedAt,
	})

	finalReport := report
	s.progress.Publish(persistCtx, dto.EvaluationProgressEvent{
		Type:          dto.EvaluationEventFinished,
		CompetitionID: competitionID,
		Report:        &finalReport,
		At:            report.FinishedAt,
	})

	span.SetAttributes(
		attribute.Int("evaluation.evaluated", report.Evaluated),
		attribute.Int("evaluation.failed", len(report.Failed)),
		attribute.Int("evaluation.unevaluated", report.Unevaluated),
	)
	s.logger.Info().
		Uint("competition_id", competitionID).
		Int("total", report.Total).
		Int("evaluated", report.Evaluated).
		Int("failed", len(report.Failed)).
		Int("unevaluated", report.Unevaluated).
		Dur("elapsed", finished.Sub(started)).
		Msg("evaluation run finished")

	return report, nil
}

// resumableStatuses lists the states a run may start from. A competition already
// in admin_review is resumable only while it still has unevaluated submissions.
func resumableStatuses(competition models.Competition) []string {
	statuses := []string{models.CompetitionStatusClosed, models.CompetitionStatusEvaluating}
	if competition.UnevaluatedCount > 0 {
		statuses = append(statuses, models.CompetitionStatusAdminReview)
	}
	return statuses
}

func containsStatus(statuses []string, status string) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// pending returns the submissions that still need an evaluation and fills the
// report's totals.
func (s *evaluationService) pending(ctx context.Context, competitionID uint, report *dto.EvaluationRunReport) ([]models.CompetitionSubmission, error) {
	ids, err := s.submissions.ListIDsByCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	existing, err := s.evaluations.FindBySubmissionIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	report.Total = len(ids)
	report.AlreadyEvaluated = len(existing)

	remaining := make([]uint, 0, len(ids)-len(existing))
	for _, id := range ids {
		if _, done := existing[id]; !done {
			remaining = append(remaining, id)
		}
	}

	submissions, err := s.submissions.FindByIDs(ctx, remaining)
	if err != nil {
		return nil, err
	}

	queue := make([]models.CompetitionSubmission, 0, len(submissions))
	for _, submission := range submissions {
		if submission.Status == models.SubmissionStatusDisqualified {
			report.Skipped++
			continue
		}
		queue = append(queue, submission)
	}
	return queue, nil
}

// process claims each queued submission, runs the critic on a bounded pool of
// workers and persists results from this goroutine only.
func (s *evaluationService) process(ctx context.Context, competition models.Competition, queue []models.CompetitionSubmission, report *dto.EvaluationRunReport) {
	if len(queue) == 0 {
		return
	}

	workers := s.config.Workers
	if workers > len(queue) {
		workers = len(queue)
	}

	jobs := make(chan evaluationJob)
	results := make(chan evaluationOutcome, workers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for _, submission := range queue {
			if err := ctx.Err(); err != nil {
				results <- evaluationOutcome{job: evaluationJob{submission: submission}, err: err}
				continue
			}

			token := uuid.NewString()
			now := s.now()
			claimed, err := s.submissions.Claim(ctx, submission.ID, token, now.UTC(), now.Add(-s.config.ClaimTTL).UTC())
			if err != nil {
				results <- evaluationOutcome{job: evaluationJob{submission: submission}, err: fmt.Errorf("claim submission: %w", err)}
				continue
			}
			if !claimed {
				results <- evaluationOutcome{job: evaluationJob{submission: submission}, claimedElsewhere: true}
				continue
			}
			jobs <- evaluationJob{submission: submission, token: token}
		}
	}()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- s.evaluate(ctx, competition, job)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	persistCtx := context.WithoutCancel(ctx)
	for outcome := range results {
		s.record(persistCtx, outcome, report)
	}
}

func (s *evaluationService) evaluate(ctx context.Context, competition models.Competition, job evaluationJob) evaluationOutcome {
	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	observability.EvaluationWorkersBusy().Inc()
	defer observability.EvaluationWorkersBusy().Dec()

	criteria := competition.Criteria()
	request := ai.CritiqueRequest{
		ManuscriptTitle:  job.submission.ManuscriptTitle,
		Synopsis:         job.submission.Synopsis,
		WordCount:        job.submission.WordCount,
		Genre:            job.submission.Genre,
		WeightedCriteria: criteria,
	}

	type critiqueResult struct {
		critique ai.Critique
		err      error
	}
	done := make(chan critiqueResult, 1)
	started := time.Now()
	go func() {
		critique, err := s.critic.Critique(callCtx, request)
		done <- critiqueResult{critique: critique, err: err}
	}()

	var result critiqueResult
	select {
	case result = <-done:
	case <-callCtx.Done():
		return evaluationOutcome{job: job, err: fmt.Errorf("critic call: %w", callCtx.Err())}
	}
	if result.err != nil {
		return evaluationOutcome{job: job, err: fmt.Errorf("critic call: %w", result.err)}
	}

	assessment, err := ai.ParseCritique(result.critique.Text, criteria)
	if err != nil {
		return evaluationOutcome{job: job, err: err}
	}

	duration := result.critique.Duration
	if duration <= 0 {
		duration = time.Since(started)
	}

	return evaluationOutcome{
		job: job,
		evaluation: &models.ManuscriptEvaluation{
			SubmissionID:        job.submission.ID,
			CompetitionID:       competition.ID,
			ModelVersion:        result.critique.ModelVersion,
			CriteriaScores:      datatypes.NewJSONType(assessment.CriterionScores),
			OverallScore:        assessment.OverallScore,
			OverallScoreDerived: assessment.OverallScoreDerived,
			ConfidenceScore:     assessment.Confidence,
			Strengths:           datatypes.NewJSONSlice(assessment.Strengths),
			Weaknesses:          datatypes.NewJSONSlice(assessment.Weaknesses),
			DetailedFeedback:    assessment.Feedback,
			ProcessingTimeMs:    duration.Milliseconds(),
			RawResponse:         result.critique.Text,
		},
	}
}

func (s *evaluationService) record(ctx context.Context, outcome evaluationOutcome, report *dto.EvaluationRunReport) {
	submissionID := outcome.job.submission.ID

	if outcome.claimedElsewhere {
		report.ClaimedElsewhere++
		observability.EvaluationSubmissions().WithLabelValues(outcomeClaimedElsewhere).Inc()
		return
	}

	if outcome.err == nil {
		created, err := s.evaluations.Save(ctx, outcome.evaluation, outcome.job.token)
		if err != nil {
			outcome.err = fmt.Errorf("save evaluation: %w", err)
		} else if !created {
			report.AlreadyEvaluated++
			observability.EvaluationSubmissions().WithLabelValues(outcomeDuplicate).Inc()
			return
		} else {
			report.Evaluated++
			observability.EvaluationSubmissions().WithLabelValues(outcomeEvaluated).Inc()
			s.progress.Publish(ctx, dto.EvaluationProgressEvent{
				Type:          dto.EvaluationEventEvaluated,
				CompetitionID: outcome.evaluation.CompetitionID,
				SubmissionID:  submissionID,
				OverallScore:  outcome.evaluation.OverallScore,
				At:            s.now().UTC(),
			})
			return
		}
	}

	if outcome.job.token != "" {
		if err := s.submissions.ReleaseClaim(ctx, submissionID, outcome.job.token); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to release evaluation claim")
		}
	}

	report.Failed = append(report.Failed, dto.EvaluationFailure{SubmissionID: submissionID, Reason: outcome.err.Error()})
	observability.EvaluationSubmissions().WithLabelValues(outcomeFailed).Inc()
	s.logger.Warn().
		Err(outcome.err).
		Uint("submission_id", submissionID).
		Uint("competition_id", outcome.job.submission.CompetitionID).
		Msg("submission evaluation failed")
	s.progress.Publish(ctx, dto.EvaluationProgressEvent{
		Type:          dto.EvaluationEventFailed,
		CompetitionID: outcome.job.submission.CompetitionID,
		SubmissionID:  submissionID,
		Reason:        outcome.err.Error(),
		At:            s.now().UTC(),
	})
}

func (s *evaluationService) findCompetition(ctx context.Context, id uint) (models.Competition, error) {
	competition, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Competition{}, ErrCompetitionNotFound
		}
		return models.Competition{}, err
	}
	return competition, nil
}
