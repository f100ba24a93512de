package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/config"
	"github.com/noah-isme/inklaunch-api/internal/database"
	"github.com/noah-isme/inklaunch-api/internal/handler"
	"github.com/noah-isme/inklaunch-api/internal/middleware"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/repository"
	"github.com/noah-isme/inklaunch-api/internal/router"
	"github.com/noah-isme/inklaunch-api/internal/service"
	"github.com/noah-isme/inklaunch-api/internal/utils"
	"github.com/noah-isme/inklaunch-api/pkg/ai"
	cloud "github.com/noah-isme/inklaunch-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{
		MaxOpenConns:  cfg.DatabaseMaxOpenConns,
		MaxIdleConns:  cfg.DatabaseMaxIdleConns,
		ConnMaxLife:   cfg.DatabaseConnMaxLife,
		SlowThreshold: cfg.DatabaseSlowQuery,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Competition{},
		&models.CompetitionSubmission{},
		&models.ManuscriptEvaluation{},
		&models.CompetitionWinner{},
		&models.Book{},
		&models.AuthorCompetitionStats{},
		&models.AuthorBadge{},
		&models.Notification{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; caching and cross-node relays disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats not configured; competition events will not be published")
	}

	var storage service.ManuscriptStorage
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("manuscript storage disabled")
	} else {
		storage = uploader
	}

	var critic ai.Critic
	switch cfg.AIProvider {
	case "openai":
		openaiCritic, err := ai.NewOpenAICritic(ai.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.AIModel,
			MaxTokens:   cfg.AIMaxTokens,
			Temperature: cfg.AITemperature,
			Logger:      logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("manuscript critic disabled")
		} else {
			critic = openaiCritic
		}
	default:
		logger.Warn().Str("provider", cfg.AIProvider).Msg("unsupported ai provider; manuscript critic disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	competitionRepo := repository.NewCompetitionRepository(db)
	submissionRepo := repository.NewCompetitionSubmissionRepository(db)
	evaluationRepo := repository.NewManuscriptEvaluationRepository(db)
	winnerRepo := repository.NewCompetitionWinnerRepository(db)
	bookRepo := repository.NewBookRepository(db)
	authorRepo := repository.NewAuthorProfileRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	analyticsRepo := repository.NewAdminAnalyticsRepository(db)

	events := service.NewCompetitionEventPublisher(natsConn, cfg.EventsSubjectPrefix)
	activityService := service.NewActivityService(activityRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	progressHub := service.NewProgressHub(redisClient, cfg.RealtimeChannel, logger)
	leaderboardService := service.NewLeaderboardService(competitionRepo, evaluationRepo, redisClient, cfg.LeaderboardCacheTTL, logger)
	analyticsService := service.NewAdminAnalyticsService(analyticsRepo, redisClient, cfg.AnalyticsCacheTTL, logger)

	competitionService := service.NewCompetitionService(competitionRepo, submissionRepo, validate, activityService, events, logger)
	submissionService := service.NewSubmissionService(service.SubmissionServiceDeps{
		Competitions: competitionRepo,
		Submissions:  submissionRepo,
		Winners:      winnerRepo,
		Books:        bookRepo,
		Authors:      authorRepo,
		Storage:      storage,
		Validator:    validate,
		Activities:   activityService,
		Notifier:     notificationService,
		MaxFileSize:  cfg.SubmissionMaxFileBytes,
	}, logger)
	evaluationService := service.NewEvaluationService(service.EvaluationServiceDeps{
		Competitions: competitionRepo,
		Submissions:  submissionRepo,
		Evaluations:  evaluationRepo,
		Critic:       critic,
		Leaderboard:  leaderboardService,
		Progress:     progressHub,
		Activities:   activityService,
		Events:       events,
		Config: service.EvaluationConfig{
			Workers:     cfg.EvaluationWorkers,
			CallTimeout: cfg.EvaluationCallTimeout,
			ClaimTTL:    cfg.EvaluationClaimTTL,
		},
	}, logger)
	winnerService := service.NewWinnerService(service.WinnerServiceDeps{
		Competitions: competitionRepo,
		Submissions:  submissionRepo,
		Evaluations:  evaluationRepo,
		Winners:      winnerRepo,
		Authors:      authorRepo,
		Notifier:     notificationService,
		Leaderboard:  leaderboardService,
		Activities:   activityService,
		Events:       events,
		Validator:    validate,
	}, logger)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	notificationService.Start(rootCtx)
	progressHub.Start(rootCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.SubmissionMaxFileBytes) + 1<<20,
		ErrorHandler: utils.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins, AccessLog: cfg.AppEnv != "production"})
	router.Register(app, cfg, router.Dependencies{
		CompetitionHandler: handler.NewCompetitionHandler(handler.CompetitionHandlerDeps{
			Competitions: competitionService,
			Submissions:  submissionService,
			Evaluations:  evaluationService,
			Winners:      winnerService,
			Leaderboard:  leaderboardService,
		}, logger),
		PublicCompetitionHandler:  handler.NewPublicCompetitionHandler(competitionService, winnerService, logger),
		SubmissionHandler:         handler.NewSubmissionHandler(submissionService, logger),
		EvaluationProgressHandler: handler.NewEvaluationProgressHandler(evaluationService, logger, cfg.NotificationKeepAlive),
		NotificationHandler:       handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		AdminActivityHandler:      handler.NewAdminActivityHandler(activityService, logger),
		AdminAnalyticsHandler:     handler.NewAdminAnalyticsHandler(analyticsService, logger),
		HealthProbes:              healthProbes(db, redisClient, natsConn),
		JWTMiddleware:             middleware.JWTProtected(cfg.JWTSecret),
		SubmitLimiter:             middleware.RateLimit("submissions", cfg.SubmissionRateLimitPerMin, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelRoot)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	if natsConn != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "nats",
			Check: func(context.Context) error {
				if !natsConn.IsConnected() {
					return nats.ErrConnectionClosed
				}
				return nil
			},
		})
	}
	return probes
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
