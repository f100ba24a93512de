package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/repository"
	"github.com/noah-isme/inklaunch-api/pkg/ai"
)

// Criterion keys applied when a competition is created without explicit criteria.
var defaultEvaluationCriteria = map[string]int{
	"plot_story_structure":   25,
	"character_development":  25,
	"writing_quality_style":  25,
	"originality_creativity": 25,
}

// CompetitionService owns competitions and their lifecycle state machine.
type CompetitionService interface {
	Create(ctx context.Context, actor Actor, req dto.CompetitionRequest) (dto.CompetitionResponse, error)
	Update(ctx context.Context, actor Actor, id uint, req dto.CompetitionRequest) (dto.CompetitionResponse, error)
	Publish(ctx context.Context, actor Actor, id uint) (dto.CompetitionResponse, error)
	Close(ctx context.Context, actor Actor, id uint) (dto.CompetitionResponse, error)
	Archive(ctx context.Context, actor Actor, id uint) (dto.CompetitionResponse, error)
	Get(ctx context.Context, id uint) (dto.CompetitionResponse, error)
	List(ctx context.Context, req dto.CompetitionListRequest) (dto.CompetitionListResponse, error)
	ListPublic(ctx context.Context) (dto.PublicCompetitionsResponse, error)
	CountSubmissions(ctx context.Context, id uint) (int64, error)
}

type competitionService struct {
	competitions repository.CompetitionRepository
	submissions  repository.CompetitionSubmissionRepository
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	activities   ActivityRecorder
	events       CompetitionEventPublisher
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewCompetitionService constructs the competition registry.
func NewCompetitionService(
	competitions repository.CompetitionRepository,
	submissions repository.CompetitionSubmissionRepository,
	validate *validator.Validate,
	activities ActivityRecorder,
	events CompetitionEventPublisher,
	logger zerolog.Logger,
) CompetitionService {
	return &competitionService{
		competitions: competitions,
		submissions:  submissions,
		validator:    validate,
		sanitizer:    bluemonday.UGCPolicy(),
		activities:   activities,
		events:       events,
		logger:       logger.With().Str("component", "competition_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/inklaunch-api/internal/service/competition"),
		now:          time.Now,
	}
}

func (s *competitionService) Create(ctx context.Context, actor Actor, req dto.CompetitionRequest) (dto.CompetitionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "competition.create")
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return dto.CompetitionResponse{}, err
	}
	if err := s.validate(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.CompetitionResponse{}, err
	}

	competition := models.Competition{Status: models.CompetitionStatusDraft, CreatedBy: actor.ID}
	s.apply(&competition, req)

	if err := s.competitions.Create(ctx, &competition); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create_failed")
		return dto.CompetitionResponse{}, fmt.Errorf("create competition: %w", err)
	}
	span.SetAttributes(attribute.Int("competition.id", int(competition.ID)))

	s.afterChange(ctx, actor, competition, "created", map[string]interface{}{"title": competition.Title})
	return dto.NewCompetitionResponse(competition, 0), nil
}

func (s *competitionService) Update(ctx context.Context, actor Actor, id uint, req dto.CompetitionRequest) (dto.CompetitionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "competition.update", trace.WithAttributes(attribute.Int("competition.id", int(id))))
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return dto.CompetitionResponse{}, err
	}

	competition, err := s.find(ctx, id)
	if err != nil {
		return dto.CompetitionResponse{}, err
	}
	if competition.Status != models.CompetitionStatusDraft {
		return dto.CompetitionResponse{}, &StateConflictError{From: competition.Status, To: models.CompetitionStatusDraft}
	}
	if err := s.validate(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.CompetitionResponse{}, err
	}

	s.apply(&competition, req)
	if err := s.competitions.UpdateDraft(ctx, &competition); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return dto.CompetitionResponse{}, s.conflict(ctx, id, models.CompetitionStatusDraft)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "update_failed")
		return dto.CompetitionResponse{}, fmt.Errorf("update competition: %w", err)
	}

	s.afterChange(ctx, actor, competition, "updated", nil)
	return s.Get(ctx, id)
}

func (s *competitionService) Publish(ctx context.Context, actor Actor, id uint) (dto.CompetitionResponse, error) {
	return s.transition(ctx, actor, id, models.CompetitionStatusDraft, models.CompetitionStatusAcceptingSubmissions, "published")
}

func (s *competitionService) Close(ctx context.Context, actor Actor, id uint) (dto.CompetitionResponse, error) {
	return s.transition(ctx, actor, id, models.CompetitionStatusAcceptingSubmissions, models.CompetitionStatusClosed, "closed")
}

func (s *competitionService) Archive(ctx context.Context, actor Actor, id uint) (dto.CompetitionResponse, error) {
	return s.transition(ctx, actor, id, models.CompetitionStatusCompleted, models.CompetitionStatusArchived, "archived")
}

func (s *competitionService) Get(ctx context.Context, id uint) (dto.CompetitionResponse, error) {
	competition, err := s.find(ctx, id)
	if err != nil {
		return dto.CompetitionResponse{}, err
	}
	count, err := s.submissions.CountByCompetition(ctx, id)
	if err != nil {
		return dto.CompetitionResponse{}, err
	}
	return dto.NewCompetitionResponse(competition, count), nil
}

func (s *competitionService) List(ctx context.Context, req dto.CompetitionListRequest) (dto.CompetitionListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CompetitionListResponse{}, validationFailure(err)
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	items, total, err := s.competitions.List(ctx, repository.CompetitionFilter{
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.CompetitionListResponse{}, err
	}

	responses, err := s.withCounts(ctx, items)
	if err != nil {
		return dto.CompetitionListResponse{}, err
	}
	return dto.CompetitionListResponse{
		Items:      responses,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *competitionService) ListPublic(ctx context.Context) (dto.PublicCompetitionsResponse, error) {
	now := s.now()
	open, err := s.competitions.ListAccepting(ctx, now)
	if err != nil {
		return dto.PublicCompetitionsResponse{}, err
	}
	upcoming, err := s.competitions.ListUpcoming(ctx, now)
	if err != nil {
		return dto.PublicCompetitionsResponse{}, err
	}

	openResponses, err := s.withCounts(ctx, open)
	if err != nil {
		return dto.PublicCompetitionsResponse{}, err
	}
	upcomingResponses, err := s.withCounts(ctx, upcoming)
	if err != nil {
		return dto.PublicCompetitionsResponse{}, err
	}
	return dto.PublicCompetitionsResponse{Open: openResponses, Upcoming: upcomingResponses}, nil
}

func (s *competitionService) CountSubmissions(ctx context.Context, id uint) (int64, error) {
	if _, err := s.find(ctx, id); err != nil {
		return 0, err
	}
	return s.submissions.CountByCompetition(ctx, id)
}

func (s *competitionService) transition(ctx context.Context, actor Actor, id uint, from, to, verb string) (dto.CompetitionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "competition."+verb, trace.WithAttributes(
		attribute.Int("competition.id", int(id)),
		attribute.String("competition.target_status", to),
	))
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return dto.CompetitionResponse{}, err
	}

	if err := s.competitions.TransitionStatus(ctx, id, []string{from}, to); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			conflict := s.conflict(ctx, id, to)
			span.SetStatus(codes.Error, "state_conflict")
			return dto.CompetitionResponse{}, conflict
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_failed")
		return dto.CompetitionResponse{}, fmt.Errorf("%s competition: %w", verb, err)
	}

	response, err := s.Get(ctx, id)
	if err != nil {
		return dto.CompetitionResponse{}, err
	}

	competition := models.Competition{ID: id, Status: to}
	s.afterChange(ctx, actor, competition, verb, map[string]interface{}{"from": from, "to": to})
	s.logger.Info().Uint("competition_id", id).Str("from", from).Str("to", to).Msg("competition status changed")
	return response, nil
}

// conflict reports the state that blocked a transition, or not-found when the
// competition does not exist.
func (s *competitionService) conflict(ctx context.Context, id uint, target string) error {
	current, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return &StateConflictError{From: current.Status, To: target}
}

func (s *competitionService) find(ctx context.Context, id uint) (models.Competition, error) {
	competition, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Competition{}, ErrCompetitionNotFound
		}
		return models.Competition{}, err
	}
	return competition, nil
}

func (s *competitionService) withCounts(ctx context.Context, items []models.Competition) ([]dto.CompetitionResponse, error) {
	responses := make([]dto.CompetitionResponse, 0, len(items))
	for _, item := range items {
		count, err := s.submissions.CountByCompetition(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, dto.NewCompetitionResponse(item, count))
	}
	return responses, nil
}

func (s *competitionService) validate(req dto.CompetitionRequest) error {
	violations := &ValidationError{}
	if err := s.validator.Struct(req); err != nil {
		converted := validationFailure(err)
		var fields *ValidationError
		if !errors.As(converted, &fields) {
			return converted
		}
		violations.Fields = append(violations.Fields, fields.Fields...)
	}

	if !req.SubmissionStart.IsZero() && !req.SubmissionEnd.IsZero() && !req.SubmissionEnd.After(req.SubmissionStart) {
		violations.add("submission_end", "must be after submission_start")
	}
	if len(cleanGenres(req.GenreCategories)) == 0 {
		violations.add("genre_categories", "must contain at least one genre")
	}
	if req.MaxSubmissionsPerAuthor < 1 {
		violations.add("max_submissions_per_author", "must be at least 1")
	}
	if req.WinnerAnnouncementDate != nil && req.WinnerAnnouncementDate.Before(req.SubmissionEnd) {
		violations.add("winner_announcement_date", "must not be before submission_end")
	}
	for key, weight := range req.EvaluationCriteria {
		if ai.NormalizeLabel(key) == "" {
			violations.add("evaluation_criteria", "criterion names must contain letters or digits")
			break
		}
		if weight < 0 {
			violations.add("evaluation_criteria", "weights must not be negative")
			break
		}
	}
	if collision := criteriaCollision(req.EvaluationCriteria); collision != "" {
		violations.add("evaluation_criteria", fmt.Sprintf("criterion names collide on %q", collision))
	}

	return violations.orNil()
}

// criteriaCollision returns the normalized key two criterion names share, if any.
func criteriaCollision(criteria map[string]int) string {
	names := make([]string, 0, len(criteria))
	for key := range criteria {
		names = append(names, key)
	}
	sort.Strings(names)

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		normalized := ai.NormalizeLabel(name)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			return normalized
		}
		seen[normalized] = struct{}{}
	}
	return ""
}

func (s *competitionService) apply(competition *models.Competition, req dto.CompetitionRequest) {
	criteria := make(map[string]int, len(req.EvaluationCriteria))
	for key, weight := range req.EvaluationCriteria {
		criteria[ai.NormalizeLabel(key)] = weight
	}
	if len(criteria) == 0 {
		for key, weight := range defaultEvaluationCriteria {
			criteria[key] = weight
		}
	}

	prizes := make(map[string]string, len(req.PrizeStructure))
	for key, prize := range req.PrizeStructure {
		prizes[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(prize)
	}

	competition.Title = strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(req.Title))
	competition.Description = strings.TrimSpace(s.sanitizer.Sanitize(req.Description))
	competition.GenreCategories = datatypes.NewJSONSlice(cleanGenres(req.GenreCategories))
	competition.SubmissionStart = req.SubmissionStart.UTC()
	competition.SubmissionEnd = req.SubmissionEnd.UTC()
	competition.WinnerAnnouncementDate = nil
	if req.WinnerAnnouncementDate != nil {
		announcement := req.WinnerAnnouncementDate.UTC()
		competition.WinnerAnnouncementDate = &announcement
	}
	competition.EvaluationCriteria = datatypes.NewJSONType(criteria)
	competition.MaxSubmissionsPerAuthor = req.MaxSubmissionsPerAuthor
	competition.EntryFee = req.EntryFee
	competition.PrizeStructure = datatypes.NewJSONType(prizes)
	competition.ShowRankings = req.ShowRankings
	competition.ShowScores = req.ShowScores
	competition.ShowFeedbackToAll = req.ShowFeedbackToAll
}

func (s *competitionService) afterChange(ctx context.Context, actor Actor, competition models.Competition, verb string, metadata map[string]interface{}) {
	audit(ctx, s.activities, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "competition." + verb,
		EntityType: EntityCompetition,
		EntityID:   uintPtr(competition.ID),
		Metadata:   metadata,
	})
	publishEvent(ctx, s.events, s.logger, CompetitionEvent{
		Type:          verb,
		CompetitionID: competition.ID,
		Status:        competition.Status,
		ActorID:       actor.ID,
		Details:       metadata,
		OccurredAt:    s.now().UTC(),
	})
}

func cleanGenres(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	cleaned := make([]string, 0, len(genres))
	for _, genre := range genres {
		trimmed := strings.TrimSpace(genre)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
