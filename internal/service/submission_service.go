package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/repository"
	"github.com/noah-isme/inklaunch-api/pkg/cloudinary"
)

var allowedManuscriptTypes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/msword",
	"application/x-ole-storage",
	"text/plain",
}

// ManuscriptStorage persists uploaded manuscripts. DiscardManuscript removes
// an upload whose entry was rejected.
type ManuscriptStorage interface {
	StoreManuscript(ctx context.Context, manuscript cloudinary.Manuscript) (cloudinary.StoredManuscript, error)
	DiscardManuscript(ctx context.Context, publicID string) error
}

// SubmissionService accepts competition entries and manages their review state.
type SubmissionService interface {
	Submit(ctx context.Context, actor Actor, competitionID uint, req dto.SubmissionRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	ListByCompetition(ctx context.Context, actor Actor, competitionID uint, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error)
	ListMine(ctx context.Context, authorID uint) ([]dto.AuthorSubmissionResponse, error)
	ListWins(ctx context.Context, authorID uint) ([]dto.WinnerResponse, error)
	AuthorStats(ctx context.Context, authorID uint) (dto.AuthorStatsResponse, error)
	Validate(ctx context.Context, actor Actor, id uint) (dto.SubmissionResponse, error)
	Disqualify(ctx context.Context, actor Actor, id uint, req dto.DisqualifyRequest) (dto.SubmissionResponse, error)
	ConfirmEntryFee(ctx context.Context, actor Actor, id uint, req dto.ConfirmEntryFeeRequest) (dto.SubmissionResponse, error)
}

type submissionService struct {
	competitions repository.CompetitionRepository
	submissions  repository.CompetitionSubmissionRepository
	winners      repository.CompetitionWinnerRepository
	books        repository.BookRepository
	authors      repository.AuthorProfileRepository
	storage      ManuscriptStorage
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	activities   ActivityRecorder
	notifier     Notifier
	maxFileSize  int64
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// SubmissionServiceDeps groups the collaborators of the submission service.
type SubmissionServiceDeps struct {
	Competitions repository.CompetitionRepository
	Submissions  repository.CompetitionSubmissionRepository
	Winners      repository.CompetitionWinnerRepository
	Books        repository.BookRepository
	Authors      repository.AuthorProfileRepository
	Storage      ManuscriptStorage
	Validator    *validator.Validate
	Activities   ActivityRecorder
	Notifier     Notifier
	MaxFileSize  int64
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(deps SubmissionServiceDeps, logger zerolog.Logger) SubmissionService {
	maxFileSize := deps.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = 20 << 20
	}
	return &submissionService{
		competitions: deps.Competitions,
		submissions:  deps.Submissions,
		winners:      deps.Winners,
		books:        deps.Books,
		authors:      deps.Authors,
		storage:      deps.Storage,
		validator:    deps.Validator,
		sanitizer:    bluemonday.StrictPolicy(),
		activities:   deps.Activities,
		notifier:     deps.Notifier,
		maxFileSize:  maxFileSize,
		logger:       logger.With().Str("component", "submission_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/inklaunch-api/internal/service/submission"),
		now:          time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, actor Actor, competitionID uint, req dto.SubmissionRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int("competition.id", int(competitionID)),
		attribute.String("submission.mode", req.Mode),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, validationFailure(err)
	}

	competition, err := s.competitions.FindByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrCompetitionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	now := s.now()
	check := intakeCheck(now)

	// Fail fast before any upload; the same checks run again under the row lock.
	prior, err := s.submissions.CountByAuthor(ctx, competitionID, actor.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := check(competition, prior); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmissionResponse{}, err
	}

	submission := models.CompetitionSubmission{
		CompetitionID:   competitionID,
		AuthorID:        actor.ID,
		AuthorStatement: strings.TrimSpace(s.sanitizer.Sanitize(req.AuthorStatement)),
		SubmittedAt:     now.UTC(),
		EntryFeePaid:    competition.EntryFee == 0,
		Status:          models.SubmissionStatusPending,
	}

	var uploaded string
	switch req.Mode {
	case dto.EntryModeReused:
		if err := s.fillFromCatalog(ctx, actor.ID, req.BookID, &submission); err != nil {
			return dto.SubmissionResponse{}, err
		}
	default:
		if req.WordCount <= 0 {
			return dto.SubmissionResponse{}, &ValidationError{Fields: []FieldViolation{{Field: "word_count", Message: "must be greater than 0"}}}
		}
		stored, err := s.storeManuscript(ctx, competitionID, actor.ID, file)
		if err != nil {
			span.RecordError(err)
			return dto.SubmissionResponse{}, err
		}
		uploaded = stored.PublicID
		submission.ManuscriptTitle = strings.TrimSpace(s.sanitizer.Sanitize(req.ManuscriptTitle))
		submission.ManuscriptURL = stored.URL
		submission.WordCount = req.WordCount
		submission.Genre = strings.TrimSpace(req.Genre)
		submission.Synopsis = strings.TrimSpace(s.sanitizer.Sanitize(req.Synopsis))
	}

	prior, err = s.submissions.CreateChecked(ctx, &submission, check)
	if err != nil {
		s.discardManuscript(ctx, uploaded)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrCompetitionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create_failed")
		return dto.SubmissionResponse{}, err
	}

	if err := s.authors.IncrementSubmissions(ctx, actor.ID, prior == 0); err != nil {
		s.logger.Warn().Err(err).Uint("author_id", actor.ID).Msg("failed to update author submission counters")
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("competition_id", competitionID).
		Uint("author_id", actor.ID).
		Str("mode", req.Mode).
		Msg("submission received")

	return dto.NewSubmissionResponse(submission), nil
}

// intakeCheck applies the ordered intake preconditions; the first failure wins.
func intakeCheck(now time.Time) repository.IntakeCheck {
	return func(competition models.Competition, priorEntries int64) error {
		if competition.Status != models.CompetitionStatusAcceptingSubmissions {
			return ErrCompetitionNotAccepting
		}
		if !competition.AcceptsAt(now) {
			return ErrWindowClosed
		}
		if priorEntries >= int64(competition.MaxSubmissionsPerAuthor) {
			return ErrQuotaExceeded
		}
		return nil
	}
}

func (s *submissionService) fillFromCatalog(ctx context.Context, authorID, bookID uint, submission *models.CompetitionSubmission) error {
	book, err := s.books.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		return err
	}
	if book.AuthorID != authorID {
		return ErrBookNotOwned
	}

	submission.BookID = &book.ID
	submission.ManuscriptTitle = book.Title
	submission.Genre = book.Genre
	submission.Synopsis = strings.TrimSpace(s.sanitizer.Sanitize(book.Description))
	submission.WordCount = book.PageCount * models.ApproxWordsPerPage
	submission.WordCountApproximate = true
	return nil
}

func (s *submissionService) storeManuscript(ctx context.Context, competitionID, authorID uint, file *multipart.FileHeader) (cloudinary.StoredManuscript, error) {
	if file == nil {
		return cloudinary.StoredManuscript{}, ErrManuscriptFileRequired
	}
	if file.Size > s.maxFileSize {
		return cloudinary.StoredManuscript{}, ErrManuscriptTooLarge
	}
	if err := validateManuscriptType(file); err != nil {
		return cloudinary.StoredManuscript{}, err
	}
	if s.storage == nil {
		return cloudinary.StoredManuscript{}, fmt.Errorf("manuscript storage is not configured")
	}

	reader, err := file.Open()
	if err != nil {
		return cloudinary.StoredManuscript{}, fmt.Errorf("failed to open manuscript: %w", err)
	}
	defer reader.Close()

	stored, err := s.storage.StoreManuscript(ctx, cloudinary.Manuscript{
		CompetitionID: competitionID,
		AuthorID:      authorID,
		FileName:      file.Filename,
		Content:       reader,
	})
	if err != nil {
		return cloudinary.StoredManuscript{}, fmt.Errorf("failed to upload manuscript: %w", err)
	}
	return stored, nil
}

// discardManuscript removes an upload left behind by a rejected entry. It
// runs detached from the request so a cancelled client still cleans up.
func (s *submissionService) discardManuscript(ctx context.Context, publicID string) {
	if publicID == "" || s.storage == nil {
		return
	}
	if err := s.storage.DiscardManuscript(context.WithoutCancel(ctx), publicID); err != nil {
		s.logger.Warn().Err(err).Str("public_id", publicID).Msg("failed to discard orphaned manuscript")
	}
}

func validateManuscriptType(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open manuscript: %w", err)
	}
	defer reader.Close()

	detected, err := mimetype.DetectReader(io.LimitReader(reader, 3072))
	if err != nil {
		return fmt.Errorf("failed to detect manuscript type: %w", err)
	}

	for _, allowed := range allowedManuscriptTypes {
		if detected.Is(allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedManuscript, detected.String())
}

func (s *submissionService) ListByCompetition(ctx context.Context, actor Actor, competitionID uint, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.SubmissionListResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionListResponse{}, validationFailure(err)
	}
	if _, err := s.competitions.FindByID(ctx, competitionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionListResponse{}, ErrCompetitionNotFound
		}
		return dto.SubmissionListResponse{}, err
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}

	items, total, err := s.submissions.List(ctx, repository.SubmissionFilter{
		CompetitionID: competitionID,
		Status:        req.Status,
		Page:          req.Page,
		PageSize:      req.PageSize,
	})
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	return dto.SubmissionListResponse{
		Items:      dto.NewSubmissionResponseSlice(items),
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *submissionService) ListMine(ctx context.Context, authorID uint) ([]dto.AuthorSubmissionResponse, error) {
	submissions, err := s.submissions.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	wins, err := s.winners.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	ranks := make(map[uint]int, len(wins))
	for _, win := range wins {
		ranks[win.SubmissionID] = win.Rank
	}

	responses := make([]dto.AuthorSubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		response := dto.AuthorSubmissionResponse{SubmissionResponse: dto.NewSubmissionResponse(submission)}
		if submission.Competition != nil {
			response.CompetitionTitle = submission.Competition.Title
			response.CompetitionStatus = submission.Competition.Status
		}
		if rank, ok := ranks[submission.ID]; ok {
			rank := rank
			response.WinnerRank = &rank
		}
		responses = append(responses, response)
	}
	return responses, nil
}

func (s *submissionService) ListWins(ctx context.Context, authorID uint) ([]dto.WinnerResponse, error) {
	wins, err := s.winners.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	return dto.NewWinnerResponseSlice(wins), nil
}

func (s *submissionService) AuthorStats(ctx context.Context, authorID uint) (dto.AuthorStatsResponse, error) {
	stats, err := s.authors.GetStats(ctx, authorID)
	if err != nil {
		return dto.AuthorStatsResponse{}, err
	}
	badges, err := s.authors.ListBadges(ctx, authorID)
	if err != nil {
		return dto.AuthorStatsResponse{}, err
	}

	badgeResponses := make([]dto.BadgeResponse, 0, len(badges))
	for _, badge := range badges {
		badgeResponses = append(badgeResponses, dto.NewBadgeResponse(badge))
	}

	return dto.AuthorStatsResponse{
		AuthorID:         authorID,
		TotalSubmissions: stats.TotalSubmissions,
		TotalEntered:     stats.TotalEntered,
		TotalWins:        stats.TotalWins,
		TotalFinalist:    stats.TotalFinalist,
		BestRank:         stats.BestRank,
		Badges:           badgeResponses,
	}, nil
}

func (s *submissionService) Validate(ctx context.Context, actor Actor, id uint) (dto.SubmissionResponse, error) {
	return s.review(ctx, actor, id, "validated", []string{models.SubmissionStatusPending}, models.SubmissionStatusValidated, nil)
}

func (s *submissionService) Disqualify(ctx context.Context, actor Actor, id uint, req dto.DisqualifyRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, validationFailure(err)
	}
	reason := strings.TrimSpace(s.sanitizer.Sanitize(req.Reason))
	response, err := s.review(ctx, actor, id, "disqualified",
		[]string{models.SubmissionStatusPending, models.SubmissionStatusValidated, models.SubmissionStatusUnderReview},
		models.SubmissionStatusDisqualified,
		map[string]interface{}{"disqualification_reason": reason},
	)
	if err != nil {
		return response, err
	}
	s.notifyDisqualified(ctx, response, reason)
	return response, nil
}

// notifyDisqualified tells the author; delivery failures only warn because the
// status change is already committed.
func (s *submissionService) notifyDisqualified(ctx context.Context, submission dto.SubmissionResponse, reason string) {
	if s.notifier == nil {
		return
	}
	competitionID := submission.CompetitionID
	submissionID := submission.ID
	_, err := s.notifier.Publish(ctx, dto.NotificationCreateRequest{
		UserID:        submission.AuthorID,
		Kind:          models.NotificationKindDisqualified,
		Title:         fmt.Sprintf("%q was disqualified", submission.ManuscriptTitle),
		Message:       fmt.Sprintf("Your entry %q was disqualified. Reason: %s", submission.ManuscriptTitle, reason),
		CompetitionID: &competitionID,
		SubmissionID:  &submissionID,
		Link:          "/me/submissions",
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to notify disqualified author")
	}
}

func (s *submissionService) review(ctx context.Context, actor Actor, id uint, verb string, from []string, to string, fields map[string]interface{}) (dto.SubmissionResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.findSubmission(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	competition, err := s.competitions.FindByID(ctx, submission.CompetitionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if competition.Status == models.CompetitionStatusCompleted || competition.Status == models.CompetitionStatusArchived {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: competition is %s", ErrSubmissionStateInvalid, competition.Status)
	}

	if err := s.submissions.TransitionStatus(ctx, id, from, to, fields); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return dto.SubmissionResponse{}, ErrSubmissionStateInvalid
		}
		return dto.SubmissionResponse{}, err
	}

	audit(ctx, s.activities, s.logger, ActivityEntry{
		Actor:         actor,
		Action:        "submission." + verb,
		EntityType:    EntitySubmission,
		EntityID:      uintPtr(id),
		CompetitionID: uintPtr(submission.CompetitionID),
		Metadata:      map[string]interface{}{"from": submission.Status},
	})

	updated, err := s.findSubmission(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(updated), nil
}

func (s *submissionService) ConfirmEntryFee(ctx context.Context, actor Actor, id uint, req dto.ConfirmEntryFeeRequest) (dto.SubmissionResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, validationFailure(err)
	}

	if err := s.submissions.ConfirmEntryFee(ctx, id, strings.TrimSpace(req.TransactionID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	updated, err := s.findSubmission(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	audit(ctx, s.activities, s.logger, ActivityEntry{
		Actor:         actor,
		Action:        "submission.entry_fee_confirmed",
		EntityType:    EntitySubmission,
		EntityID:      uintPtr(id),
		CompetitionID: uintPtr(updated.CompetitionID),
		Metadata:      map[string]interface{}{"transaction_id": req.TransactionID},
	})
	return dto.NewSubmissionResponse(updated), nil
}

func (s *submissionService) findSubmission(ctx context.Context, id uint) (models.CompetitionSubmission, error) {
	submission, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CompetitionSubmission{}, ErrSubmissionNotFound
		}
		return models.CompetitionSubmission{}, err
	}
	return submission, nil
}
