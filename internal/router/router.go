package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/inklaunch-api/internal/config"
	"github.com/noah-isme/inklaunch-api/internal/handler"
	"github.com/noah-isme/inklaunch-api/internal/middleware"
	"github.com/noah-isme/inklaunch-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CompetitionHandler        *handler.CompetitionHandler
	PublicCompetitionHandler  *handler.PublicCompetitionHandler
	SubmissionHandler         *handler.SubmissionHandler
	EvaluationProgressHandler *handler.EvaluationProgressHandler
	NotificationHandler       *handler.NotificationHandler
	AdminActivityHandler      *handler.AdminActivityHandler
	AdminAnalyticsHandler     *handler.AdminAnalyticsHandler
	HealthProbes              []handler.HealthProbe
	JWTMiddleware             fiber.Handler
	SubmitLimiter             fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	authorOnly := middleware.WithAuth(func(c *fiber.Ctx) error { return c.Next() }, middleware.AuthOptions{
		Role:        middleware.AuthRoleAuthor,
		RequireUser: true,
	})

	v2 := app.Group("/api/v2", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v2.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	competitions := v2.Group("/competitions")
	if deps.PublicCompetitionHandler != nil {
		deps.PublicCompetitionHandler.Register(competitions)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.RegisterEntry(competitions, jwtMiddleware, authorOnly, deps.SubmitLimiter)

		me := v2.Group("/me", jwtMiddleware, authorOnly)
		deps.SubmissionHandler.RegisterAuthor(me)
	}

	if deps.NotificationHandler != nil {
		notifications := v2.Group("/notifications", jwtMiddleware, authorOnly)
		deps.NotificationHandler.Register(notifications)
	}

	admin := v2.Group("/admin", jwtMiddleware, middleware.RequireRole("admin"))

	adminCompetitions := admin.Group("/competitions")
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.RegisterTimeline(adminCompetitions)
	}
	if deps.EvaluationProgressHandler != nil {
		deps.EvaluationProgressHandler.Register(adminCompetitions)
	}
	if deps.CompetitionHandler != nil {
		deps.CompetitionHandler.Register(adminCompetitions)
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.RegisterAdmin(admin.Group("/submissions"))
	}
	if deps.AdminAnalyticsHandler != nil {
		deps.AdminAnalyticsHandler.Register(admin.Group("/analytics"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activities"))
	}
}
