package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/config"
	"github.com/noah-isme/inklaunch-api/internal/handler"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/repository"
	"github.com/noah-isme/inklaunch-api/internal/router"
	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
	"github.com/noah-isme/inklaunch-api/pkg/ai"
	"github.com/noah-isme/inklaunch-api/pkg/cloudinary"
)

const critiqueResponse = `## CRITERION SCORES
- Plot & Story Structure: 8 - tight pacing
- Character Development: 7 - layered cast
- Writing Quality & Style: 9 - clean prose
- Originality & Creativity: 6 - familiar premise

WEIGHTED OVERALL SCORE: 7.5

CONFIDENCE: 80%

STRENGTHS
- Strong voice

WEAKNESSES
- Slow middle act

DETAILED FEEDBACK
A confident manuscript.
`

var pdfManuscript = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type staticCritic struct{}

func (staticCritic) Critique(context.Context, ai.CritiqueRequest) (ai.Critique, error) {
	return ai.Critique{Text: critiqueResponse, ModelVersion: "stub-critic"}, nil
}

type memoryStorage struct {
	mu    sync.Mutex
	names []string
}

func (s *memoryStorage) StoreManuscript(_ context.Context, manuscript cloudinary.Manuscript) (cloudinary.StoredManuscript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, manuscript.FileName)
	return cloudinary.StoredManuscript{URL: "https://files.example.com/" + manuscript.FileName, PublicID: manuscript.FileName}, nil
}

func (s *memoryStorage) DiscardManuscript(context.Context, string) error {
	return nil
}

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

// testAuth stands in for JWT verification: X-Test-User and X-Test-Role become
// the authenticated identity.
func testAuth(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("user_id", uint(id))
		c.Locals("user_role", c.Get("X-Test-Role"))
		return c.Next()
	}
	return fiber.ErrUnauthorized
}

func setupCompetitionApp(t *testing.T) testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:handler_"+name+"?mode=memory&cache=shared"), &gorm.Config{})
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

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	competitionRepo := repository.NewCompetitionRepository(db)
	submissionRepo := repository.NewCompetitionSubmissionRepository(db)
	evaluationRepo := repository.NewManuscriptEvaluationRepository(db)
	winnerRepo := repository.NewCompetitionWinnerRepository(db)
	authorRepo := repository.NewAuthorProfileRepository(db)

	events := service.NewCompetitionEventPublisher(nil, "")
	activities := service.NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, logger)
	leaderboard := service.NewLeaderboardService(competitionRepo, evaluationRepo, nil, 0, logger)
	analytics := service.NewAdminAnalyticsService(repository.NewAdminAnalyticsRepository(db), nil, 0, logger)

	competitions := service.NewCompetitionService(competitionRepo, submissionRepo, validate, activities, events, logger)
	submissions := service.NewSubmissionService(service.SubmissionServiceDeps{
		Competitions: competitionRepo,
		Submissions:  submissionRepo,
		Winners:      winnerRepo,
		Books:        repository.NewBookRepository(db),
		Authors:      authorRepo,
		Storage:      &memoryStorage{},
		Validator:    validate,
		Activities:   activities,
		Notifier:     notifications,
	}, logger)
	evaluations := service.NewEvaluationService(service.EvaluationServiceDeps{
		Competitions: competitionRepo,
		Submissions:  submissionRepo,
		Evaluations:  evaluationRepo,
		Critic:       staticCritic{},
		Leaderboard:  leaderboard,
		Activities:   activities,
		Events:       events,
		Config:       service.EvaluationConfig{Workers: 2},
	}, logger)
	winners := service.NewWinnerService(service.WinnerServiceDeps{
		Competitions: competitionRepo,
		Submissions:  submissionRepo,
		Evaluations:  evaluationRepo,
		Winners:      winnerRepo,
		Authors:      authorRepo,
		Notifier:     notifications,
		Leaderboard:  leaderboard,
		Activities:   activities,
		Events:       events,
		Validator:    validate,
	}, logger)

	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test", JWTSecret: "secret"}, router.Dependencies{
		CompetitionHandler: handler.NewCompetitionHandler(handler.CompetitionHandlerDeps{
			Competitions: competitions,
			Submissions:  submissions,
			Evaluations:  evaluations,
			Winners:      winners,
			Leaderboard:  leaderboard,
		}, logger),
		PublicCompetitionHandler: handler.NewPublicCompetitionHandler(competitions, winners, logger),
		SubmissionHandler:        handler.NewSubmissionHandler(submissions, logger),
		NotificationHandler:      handler.NewNotificationHandler(notifications, logger, 0),
		AdminActivityHandler:     handler.NewAdminActivityHandler(activities, logger),
		AdminAnalyticsHandler:    handler.NewAdminAnalyticsHandler(analytics, logger),
		JWTMiddleware:            testAuth,
	})

	return testApp{app: app, db: db}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
	Message string          `json:"message"`
}

type identity struct {
	id   uint
	role string
}

var (
	adminUser  = identity{id: 1, role: "admin"}
	authorUser = identity{id: 42, role: "author"}
	anonymous  = identity{}
)

func (a testApp) do(t *testing.T, method, path string, who identity, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(t, req, who)
}

func (a testApp) submitManuscript(t *testing.T, competitionID uint, who identity, fields map[string]string, fileName string, content []byte) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("manuscript", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/competitions/"+strconv.Itoa(int(competitionID))+"/submissions", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return a.send(t, req, who)
}

func (a testApp) send(t *testing.T, req *http.Request, who identity) (int, envelope) {
	t.Helper()

	if who.id != 0 {
		req.Header.Set("X-Test-User", strconv.Itoa(int(who.id)))
		req.Header.Set("X-Test-Role", who.role)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp.StatusCode, payload
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
