package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/repository"
)

const (
	analyticsTopLimit = 10
	analyticsCacheKey = "analytics:competitions"
)

// AdminAnalyticsService aggregates competition analytics for administrators.
// Summaries are cached in redis for the configured TTL; refresh recomputes and
// overwrites the cached copy.
type AdminAnalyticsService interface {
	GetSummary(ctx context.Context, refresh bool) (dto.CompetitionAnalyticsResponse, error)
}

type adminAnalyticsService struct {
	repo     repository.AdminAnalyticsRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewAdminAnalyticsService constructs the analytics service. A nil cache
// computes every summary from the database.
func NewAdminAnalyticsService(repo repository.AdminAnalyticsRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AdminAnalyticsService {
	return &adminAnalyticsService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "admin_analytics_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/inklaunch-api/internal/service/admin_analytics"),
		now:      time.Now,
	}
}

func (s *adminAnalyticsService) GetSummary(ctx context.Context, refresh bool) (dto.CompetitionAnalyticsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.summary", trace.WithAttributes(
		attribute.String("analytics.cache_key", analyticsCacheKey),
		attribute.Bool("analytics.refresh", refresh),
	))
	defer span.End()

	if !refresh {
		if cached, ok := s.cached(ctx, span); ok {
			return cached, nil
		}
	}

	summary, err := s.aggregate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate_failed")
		return dto.CompetitionAnalyticsResponse{}, err
	}
	span.SetAttributes(
		attribute.Int64("analytics.competitions", summary.TotalCompetitions),
		attribute.Int64("analytics.submissions", summary.TotalSubmissions),
	)

	s.store(ctx, span, summary)
	return summary, nil
}

func (s *adminAnalyticsService) cached(ctx context.Context, span trace.Span) (dto.CompetitionAnalyticsResponse, bool) {
	if s.cache == nil {
		return dto.CompetitionAnalyticsResponse{}, false
	}

	raw, err := s.cache.Get(ctx, analyticsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
			span.RecordError(err)
		}
		return dto.CompetitionAnalyticsResponse{}, false
	}

	var summary dto.CompetitionAnalyticsResponse
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable analytics cache entry")
		return dto.CompetitionAnalyticsResponse{}, false
	}
	summary.CacheHit = true
	span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
	return summary, true
}

func (s *adminAnalyticsService) store(ctx context.Context, span trace.Span, summary dto.CompetitionAnalyticsResponse) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, analyticsCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store analytics cache")
		span.RecordError(err)
	}
}

func (s *adminAnalyticsService) aggregate(ctx context.Context) (dto.CompetitionAnalyticsResponse, error) {
	summary := dto.CompetitionAnalyticsResponse{
		CompetitionStatuses: []dto.StatusCountResponse{},
		SubmissionsByGenre:  []dto.GenreCountResponse{},
		AverageScores:       []dto.CompetitionScoreResponse{},
		TopAuthors:          []dto.TopAuthorResponse{},
		GeneratedAt:         s.now().UTC(),
	}

	statuses, err := s.repo.CountCompetitionsByStatus(ctx)
	if err != nil {
		return summary, err
	}
	for _, status := range statuses {
		summary.TotalCompetitions += status.Total
		summary.CompetitionStatuses = append(summary.CompetitionStatuses, dto.StatusCountResponse{Status: status.Status, Total: status.Total})
	}

	genres, err := s.repo.CountSubmissionsByGenre(ctx)
	if err != nil {
		return summary, err
	}
	for _, genre := range genres {
		summary.SubmissionsByGenre = append(summary.SubmissionsByGenre, dto.GenreCountResponse{Genre: genre.Genre, Total: genre.Total})
	}

	if summary.TotalSubmissions, summary.TotalEvaluations, summary.TotalWinners, err = s.repo.Totals(ctx); err != nil {
		return summary, err
	}

	scores, err := s.repo.AverageScores(ctx, analyticsTopLimit)
	if err != nil {
		return summary, err
	}
	for _, score := range scores {
		summary.AverageScores = append(summary.AverageScores, dto.CompetitionScoreResponse{
			CompetitionID: score.CompetitionID,
			Title:         score.Title,
			Evaluations:   score.Evaluations,
			AverageScore:  score.AverageScore,
		})
	}

	authors, err := s.repo.TopAuthors(ctx, analyticsTopLimit)
	if err != nil {
		return summary, err
	}
	for _, author := range authors {
		summary.TopAuthors = append(summary.TopAuthors, dto.TopAuthorResponse{AuthorID: author.AuthorID, Wins: author.Wins, BestRank: author.BestRank})
	}

	return summary, nil
}
