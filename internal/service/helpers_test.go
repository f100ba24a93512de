package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/repository"
	"github.com/noah-isme/inklaunch-api/pkg/ai"
)

var (
	testAdmin  = Actor{ID: 1, Role: RoleAdmin}
	testAuthor = Actor{ID: 42, Role: "author"}
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:svc_"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Competition{},
		&models.CompetitionSubmission{},
		&models.ManuscriptEvaluation{},
		&models.CompetitionWinner{},
		&models.AuthorCompetitionStats{},
		&models.AuthorBadge{},
		&models.Book{},
		&models.ActivityLog{},
		&models.Notification{},
	))
	return db
}

var testCriteria = map[string]int{
	"plot_story_structure":   25,
	"character_development":  25,
	"writing_quality_style":  25,
	"originality_creativity": 25,
}

func seedCompetition(t *testing.T, db *gorm.DB, status string, mutate ...func(*models.Competition)) models.Competition {
	t.Helper()
	now := time.Now().UTC()
	competition := models.Competition{
		Title:                   "Spring Manuscript Prize",
		GenreCategories:         datatypes.JSONSlice[string]{"fantasy", "literary"},
		SubmissionStart:         now.Add(-24 * time.Hour),
		SubmissionEnd:           now.Add(24 * time.Hour),
		EvaluationCriteria:      datatypes.NewJSONType(testCriteria),
		MaxSubmissionsPerAuthor: 1,
		PrizeStructure: datatypes.NewJSONType(map[string]string{
			models.PrizeKeyFirstPlace:  "$500",
			models.PrizeKeySecondPlace: "$250",
		}),
		Status:    status,
		CreatedBy: testAdmin.ID,
	}
	for _, fn := range mutate {
		fn(&competition)
	}
	require.NoError(t, db.Create(&competition).Error)
	return competition
}

func seedSubmission(t *testing.T, db *gorm.DB, competitionID, authorID uint, title, status string) models.CompetitionSubmission {
	t.Helper()
	submission := models.CompetitionSubmission{
		CompetitionID:   competitionID,
		AuthorID:        authorID,
		ManuscriptTitle: title,
		WordCount:       80000,
		Genre:           "fantasy",
		Synopsis:        "A keeper of lanterns.",
		SubmittedAt:     time.Now().UTC(),
		Status:          status,
	}
	require.NoError(t, db.Omit("Competition").Create(&submission).Error)
	return submission
}

func seedEvaluation(t *testing.T, db *gorm.DB, submission models.CompetitionSubmission, score float64) models.ManuscriptEvaluation {
	t.Helper()
	evaluation := models.ManuscriptEvaluation{
		SubmissionID:     submission.ID,
		CompetitionID:    submission.CompetitionID,
		ModelVersion:     "test-model",
		CriteriaScores:   datatypes.NewJSONType(map[string]float64{"plot_story_structure": score}),
		OverallScore:     score,
		DetailedFeedback: "Feedback for " + submission.ManuscriptTitle,
	}
	require.NoError(t, db.Omit("Submission").Create(&evaluation).Error)
	return evaluation
}

// critiqueText renders a well-formed critic response.
func critiqueText(plot, character, writing, originality, overall float64) string {
	var b strings.Builder
	b.WriteString("## CRITERION SCORES\n")
	b.WriteString("- Plot & Story Structure: " + formatScore(plot) + " — tight pacing\n")
	b.WriteString("- Character Development: " + formatScore(character) + " — layered cast\n")
	b.WriteString("- Writing Quality & Style: " + formatScore(writing) + " — clean prose\n")
	b.WriteString("- Originality & Creativity: " + formatScore(originality) + " — fresh premise\n\n")
	if overall > 0 {
		b.WriteString("WEIGHTED OVERALL SCORE: " + formatScore(overall) + "\n\n")
	}
	b.WriteString("CONFIDENCE: 85%\n\n")
	b.WriteString("STRENGTHS\n- Vivid setting\n- Strong voice\n\n")
	b.WriteString("WEAKNESSES\n- Slow middle act\n\n")
	b.WriteString("DETAILED FEEDBACK\nA confident manuscript with room to tighten the middle.\n")
	return b.String()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type stubCritic struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error)
}

func newStubCritic(respond func(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error)) *stubCritic {
	return &stubCritic{calls: make(map[string]int), respond: respond}
}

func (c *stubCritic) Critique(ctx context.Context, req ai.CritiqueRequest) (ai.Critique, error) {
	c.mu.Lock()
	c.calls[req.ManuscriptTitle]++
	c.mu.Unlock()
	return c.respond(ctx, req)
}

func (c *stubCritic) totalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []dto.NotificationCreateRequest
	err      error
}

func (n *recordingNotifier) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return dto.NotificationResponse{}, n.err
	}
	n.payloads = append(n.payloads, payload)
	return dto.NotificationResponse{ID: uint(len(n.payloads)), UserID: payload.UserID, Kind: payload.Kind, Message: payload.Message}, nil
}

type serviceSet struct {
	competitions CompetitionService
	submissions  SubmissionService
	evaluations  EvaluationService
	winners      WinnerService
	leaderboard  LeaderboardService
	activities   ActivityService
}

type serviceOptions struct {
	critic   ai.Critic
	storage  ManuscriptStorage
	notifier Notifier
	config   EvaluationConfig
}

func newServiceSet(db *gorm.DB, opts serviceOptions) serviceSet {
	validate := testValidator()
	logger := testLogger()

	competitionRepo := repository.NewCompetitionRepository(db)
	submissionRepo := repository.NewCompetitionSubmissionRepository(db)
	evaluationRepo := repository.NewManuscriptEvaluationRepository(db)
	winnerRepo := repository.NewCompetitionWinnerRepository(db)
	authorRepo := repository.NewAuthorProfileRepository(db)
	bookRepo := repository.NewBookRepository(db)

	activities := NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	events := NewCompetitionEventPublisher(nil, "")
	leaderboard := NewLeaderboardService(competitionRepo, evaluationRepo, nil, time.Minute, logger)

	if opts.config.CallTimeout == 0 {
		opts.config.CallTimeout = time.Second
	}

	return serviceSet{
		competitions: NewCompetitionService(competitionRepo, submissionRepo, validate, activities, events, logger),
		submissions: NewSubmissionService(SubmissionServiceDeps{
			Competitions: competitionRepo,
			Submissions:  submissionRepo,
			Winners:      winnerRepo,
			Books:        bookRepo,
			Authors:      authorRepo,
			Storage:      opts.storage,
			Validator:    validate,
			Activities:   activities,
			Notifier:     opts.notifier,
		}, logger),
		evaluations: NewEvaluationService(EvaluationServiceDeps{
			Competitions: competitionRepo,
			Submissions:  submissionRepo,
			Evaluations:  evaluationRepo,
			Critic:       opts.critic,
			Leaderboard:  leaderboard,
			Activities:   activities,
			Events:       events,
			Config:       opts.config,
		}, logger),
		winners: NewWinnerService(WinnerServiceDeps{
			Competitions: competitionRepo,
			Submissions:  submissionRepo,
			Evaluations:  evaluationRepo,
			Winners:      winnerRepo,
			Authors:      authorRepo,
			Notifier:     opts.notifier,
			Leaderboard:  leaderboard,
			Activities:   activities,
			Events:       events,
			Validator:    validate,
		}, logger),
		leaderboard: leaderboard,
		activities:  activities,
	}
}

func submissionStatuses(t *testing.T, db *gorm.DB, competitionID uint) map[uint]string {
	t.Helper()
	var submissions []models.CompetitionSubmission
	require.NoError(t, db.Where("competition_id = ?", competitionID).Find(&submissions).Error)
	statuses := make(map[uint]string, len(submissions))
	for _, submission := range submissions {
		statuses[submission.ID] = submission.Status
	}
	return statuses
}

func competitionStatus(t *testing.T, db *gorm.DB, id uint) string {
	t.Helper()
	var competition models.Competition
	require.NoError(t, db.First(&competition, id).Error)
	return competition.Status
}
