package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/repository"
)

const (
	maxWinnerRanks = 3
	defaultPrize   = "Recognition"
)

type winnerBadge struct {
	name string
	icon string
}

var winnerBadges = map[int]winnerBadge{
	1: {name: "Gold Winner 🥇", icon: "🏆"},
	2: {name: "Silver Winner 🥈", icon: "🥈"},
	3: {name: "Bronze Winner 🥉", icon: "🥉"},
}

// Notifier delivers a notification to one user.
type Notifier interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// WinnerService finalizes competitions and lists their winners.
type WinnerService interface {
	SelectWinners(ctx context.Context, actor Actor, competitionID uint, req dto.WinnerSelectionRequest) (dto.WinnerSelectionResponse, error)
	Winners(ctx context.Context, competitionID uint, public bool) ([]dto.WinnerResponse, error)
}

type winnerService struct {
	competitions repository.CompetitionRepository
	submissions  repository.CompetitionSubmissionRepository
	evaluations  repository.ManuscriptEvaluationRepository
	winners      repository.CompetitionWinnerRepository
	authors      repository.AuthorProfileRepository
	notifier     Notifier
	leaderboard  LeaderboardService
	activities   ActivityRecorder
	events       CompetitionEventPublisher
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// WinnerServiceDeps groups the collaborators of the winner service.
type WinnerServiceDeps struct {
	Competitions repository.CompetitionRepository
	Submissions  repository.CompetitionSubmissionRepository
	Evaluations  repository.ManuscriptEvaluationRepository
	Winners      repository.CompetitionWinnerRepository
	Authors      repository.AuthorProfileRepository
	Notifier     Notifier
	Leaderboard  LeaderboardService
	Activities   ActivityRecorder
	Events       CompetitionEventPublisher
	Validator    *validator.Validate
}

// NewWinnerService constructs the winner selector.
func NewWinnerService(deps WinnerServiceDeps, logger zerolog.Logger) WinnerService {
	return &winnerService{
		competitions: deps.Competitions,
		submissions:  deps.Submissions,
		evaluations:  deps.Evaluations,
		winners:      deps.Winners,
		authors:      deps.Authors,
		notifier:     deps.Notifier,
		leaderboard:  deps.Leaderboard,
		activities:   deps.Activities,
		events:       deps.Events,
		validator:    deps.Validator,
		logger:       logger.With().Str("component", "winner_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/inklaunch-api/internal/service/winner"),
		now:          time.Now,
	}
}

func (s *winnerService) SelectWinners(ctx context.Context, actor Actor, competitionID uint, req dto.WinnerSelectionRequest) (dto.WinnerSelectionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "winners.select", trace.WithAttributes(attribute.Int("competition.id", int(competitionID))))
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return dto.WinnerSelectionResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.WinnerSelectionResponse{}, validationFailure(err)
	}
	if err := rejectDuplicates(req.SubmissionIDs); err != nil {
		return dto.WinnerSelectionResponse{}, err
	}

	competition, err := s.findCompetition(ctx, competitionID)
	if err != nil {
		return dto.WinnerSelectionResponse{}, err
	}
	if competition.Status != models.CompetitionStatusAdminReview {
		span.SetStatus(codes.Error, "state_conflict")
		return dto.WinnerSelectionResponse{}, &StateConflictError{From: competition.Status, To: models.CompetitionStatusCompleted}
	}

	response := dto.WinnerSelectionResponse{Omitted: []uint{}}
	ranked := req.SubmissionIDs
	if len(ranked) > maxWinnerRanks {
		response.Warnings = append(response.Warnings, fmt.Sprintf("only the first %d submissions are ranked", maxWinnerRanks))
		ranked = ranked[:maxWinnerRanks]
	}

	records, omitted, err := s.buildRecords(ctx, competition, ranked)
	if err != nil {
		span.RecordError(err)
		return dto.WinnerSelectionResponse{}, err
	}
	response.Omitted = append(response.Omitted, omitted...)

	if err := s.winners.Finalize(ctx, competitionID, records); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			current, findErr := s.findCompetition(ctx, competitionID)
			if findErr != nil {
				return dto.WinnerSelectionResponse{}, findErr
			}
			return dto.WinnerSelectionResponse{}, &StateConflictError{From: current.Status, To: models.CompetitionStatusCompleted}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize_failed")
		return dto.WinnerSelectionResponse{}, fmt.Errorf("finalize winners: %w", err)
	}

	// The competition is completed at this point; follow-up failures only warn.
	persistCtx := context.WithoutCancel(ctx)
	for i := range records {
		response.Warnings = append(response.Warnings, s.reward(persistCtx, competition, &records[i])...)
	}

	if s.leaderboard != nil {
		s.leaderboard.Invalidate(persistCtx, competitionID)
	}

	winnerIDs := make([]uint, 0, len(records))
	for _, record := range records {
		winnerIDs = append(winnerIDs, record.SubmissionID)
	}
	details := map[string]interface{}{"winners": winnerIDs, "omitted": response.Omitted}
	audit(persistCtx, s.activities, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "competition.completed",
		EntityType: EntityCompetition,
		EntityID:   uintPtr(competitionID),
		Metadata:   details,
	})
	publishEvent(persistCtx, s.events, s.logger, CompetitionEvent{
		Type:          "completed",
		CompetitionID: competitionID,
		Status:        models.CompetitionStatusCompleted,
		ActorID:       actor.ID,
		Details:       details,
		OccurredAt:    s.now().UTC(),
	})

	finalized, err := s.findCompetition(persistCtx, competitionID)
	if err != nil {
		return dto.WinnerSelectionResponse{}, err
	}
	count, err := s.submissions.CountByCompetition(persistCtx, competitionID)
	if err != nil {
		return dto.WinnerSelectionResponse{}, err
	}
	stored, err := s.winners.ListByCompetition(persistCtx, competitionID)
	if err != nil {
		return dto.WinnerSelectionResponse{}, err
	}

	response.Competition = dto.NewCompetitionResponse(finalized, count)
	response.Winners = dto.NewWinnerResponseSlice(stored)

	s.logger.Info().
		Uint("competition_id", competitionID).
		Int("winners", len(records)).
		Int("omitted", len(response.Omitted)).
		Msg("competition winners finalized")

	return response, nil
}

// buildRecords resolves the ranked ids into winner records. Ids without a
// submission in this competition, without an evaluation, or disqualified are
// omitted and later entries move up, so ranks stay contiguous from 1.
func (s *winnerService) buildRecords(ctx context.Context, competition models.Competition, ranked []uint) ([]models.CompetitionWinner, []uint, error) {
	submissions, err := s.submissions.FindByIDs(ctx, ranked)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]models.CompetitionSubmission, len(submissions))
	for _, submission := range submissions {
		byID[submission.ID] = submission
	}

	evaluations, err := s.evaluations.FindBySubmissionIDs(ctx, ranked)
	if err != nil {
		return nil, nil, err
	}

	prizes := competition.Prizes()
	announcedAt := s.now().UTC()
	records := make([]models.CompetitionWinner, 0, len(ranked))
	omitted := make([]uint, 0)

	for _, id := range ranked {
		submission, found := byID[id]
		evaluation, evaluated := evaluations[id]
		if !found || !evaluated || submission.CompetitionID != competition.ID || submission.Status == models.SubmissionStatusDisqualified {
			omitted = append(omitted, id)
			continue
		}

		rank := len(records) + 1
		prize, ok := prizes[models.PrizeKeyForRank(rank)]
		if !ok || prize == "" {
			prize = defaultPrize
		}

		records = append(records, models.CompetitionWinner{
			CompetitionID:  competition.ID,
			SubmissionID:   submission.ID,
			AuthorID:       submission.AuthorID,
			Rank:           rank,
			FinalScore:     evaluation.OverallScore,
			PrizeAwarded:   prize,
			WinnerFeedback: evaluation.DetailedFeedback,
			AnnouncedAt:    announcedAt,
		})
	}

	return records, omitted, nil
}

// reward applies the author-facing side effects of one winner record.
func (s *winnerService) reward(ctx context.Context, competition models.Competition, record *models.CompetitionWinner) []string {
	var warnings []string
	warn := func(err error, what string) {
		s.logger.Warn().Err(err).Uint("author_id", record.AuthorID).Int("rank", record.Rank).Msg(what)
		warnings = append(warnings, fmt.Sprintf("rank %d: %s", record.Rank, what))
	}

	if badge, ok := winnerBadges[record.Rank]; ok {
		competitionID := competition.ID
		err := s.authors.AwardBadge(ctx, &models.AuthorBadge{
			AuthorID:      record.AuthorID,
			BadgeType:     models.BadgeTypeCompetitionWinner,
			Name:          fmt.Sprintf("%s - %s", badge.name, competition.Title),
			Icon:          badge.icon,
			CompetitionID: &competitionID,
			AwardedAt:     record.AnnouncedAt,
		})
		if err != nil {
			warn(err, "failed to award badge")
		}
	}

	if err := s.authors.RecordPlacement(ctx, record.AuthorID, record.Rank); err != nil {
		warn(err, "failed to update author statistics")
	}

	if s.notifier == nil {
		return warnings
	}
	competitionID := competition.ID
	submissionID := record.SubmissionID
	_, err := s.notifier.Publish(ctx, dto.NotificationCreateRequest{
		UserID:        record.AuthorID,
		Kind:          models.NotificationKindWinner,
		Title:         fmt.Sprintf("You placed #%d in %s", record.Rank, competition.Title),
		Message:       fmt.Sprintf("Congratulations! Your manuscript placed #%d in %s. Prize: %s", record.Rank, competition.Title, record.PrizeAwarded),
		CompetitionID: &competitionID,
		SubmissionID:  &submissionID,
		Link:          fmt.Sprintf("/competitions/%d/winners", competitionID),
	})
	if err != nil {
		warn(err, "failed to notify winner")
		return warnings
	}
	if err := s.winners.MarkNotificationSent(ctx, record.ID); err != nil {
		warn(err, "failed to flag winner notification")
		return warnings
	}
	record.NotificationSent = true
	return warnings
}

func (s *winnerService) Winners(ctx context.Context, competitionID uint, public bool) ([]dto.WinnerResponse, error) {
	competition, err := s.findCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	finalized := competition.Status == models.CompetitionStatusCompleted || competition.Status == models.CompetitionStatusArchived
	if public && !finalized {
		return []dto.WinnerResponse{}, nil
	}

	winners, err := s.winners.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	responses := dto.NewWinnerResponseSlice(winners)
	if public {
		for i := range responses {
			responses[i].CompetitionTitle = competition.Title
			if !competition.ShowScores {
				responses[i].FinalScore = 0
			}
			if !competition.ShowFeedbackToAll {
				responses[i].WinnerFeedback = ""
			}
		}
	}
	return responses, nil
}

func (s *winnerService) findCompetition(ctx context.Context, id uint) (models.Competition, error) {
	competition, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Competition{}, ErrCompetitionNotFound
		}
		return models.Competition{}, err
	}
	return competition, nil
}

func rejectDuplicates(ids []uint) error {
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return &ValidationError{Fields: []FieldViolation{{
				Field:   "submission_ids",
				Message: fmt.Sprintf("submission %d is listed more than once", id),
			}}}
		}
		seen[id] = struct{}{}
	}
	return nil
}
