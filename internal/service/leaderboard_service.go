package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/repository"
)

// LeaderboardService ranks a competition's evaluations by overall score.
type LeaderboardService interface {
	Leaderboard(ctx context.Context, competitionID uint) (dto.LeaderboardResponse, error)
	Invalidate(ctx context.Context, competitionID uint)
}

type leaderboardService struct {
	competitions repository.CompetitionRepository
	evaluations  repository.ManuscriptEvaluationRepository
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewLeaderboardService constructs the leaderboard service. cache may be nil.
func NewLeaderboardService(competitions repository.CompetitionRepository, evaluations repository.ManuscriptEvaluationRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) LeaderboardService {
	return &leaderboardService{
		competitions: competitions,
		evaluations:  evaluations,
		cache:        cache,
		cacheTTL:     ttl,
		logger:       logger.With().Str("component", "leaderboard_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/inklaunch-api/internal/service/leaderboard"),
		now:          time.Now,
	}
}

func leaderboardCacheKey(competitionID uint) string {
	return fmt.Sprintf("leaderboard:competition:%d", competitionID)
}

func (s *leaderboardService) Leaderboard(ctx context.Context, competitionID uint) (dto.LeaderboardResponse, error) {
	cacheKey := leaderboardCacheKey(competitionID)
	ctx, span := s.tracer.Start(ctx, "leaderboard.build", trace.WithAttributes(attribute.String("leaderboard.cache_key", cacheKey)))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.LeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("leaderboard.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
			span.RecordError(err)
		}
	}

	if _, err := s.competitions.FindByID(ctx, competitionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LeaderboardResponse{}, ErrCompetitionNotFound
		}
		return dto.LeaderboardResponse{}, err
	}

	evaluations, err := s.evaluations.ListByCompetition(ctx, competitionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_evaluations_failed")
		return dto.LeaderboardResponse{}, err
	}
	unevaluated, err := s.evaluations.CountUnevaluated(ctx, competitionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_unevaluated_failed")
		return dto.LeaderboardResponse{}, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(evaluations))
	for i, evaluation := range evaluations {
		entry := dto.LeaderboardEntry{
			Position:     i + 1,
			SubmissionID: evaluation.SubmissionID,
			Evaluation:   dto.NewEvaluationResponse(evaluation),
		}
		if submission := evaluation.Submission; submission != nil {
			entry.AuthorID = submission.AuthorID
			entry.ManuscriptTitle = submission.ManuscriptTitle
			entry.Genre = submission.Genre
			entry.WordCount = submission.WordCount
			entry.WordCountApproximate = submission.WordCountApproximate
			entry.SubmissionStatus = submission.Status
		}
		entries = append(entries, entry)
	}

	response := dto.LeaderboardResponse{
		CompetitionID: competitionID,
		Entries:       entries,
		Unevaluated:   int(unevaluated),
		GeneratedAt:   s.now().UTC(),
	}

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write leaderboard cache")
			}
		}
	}

	return response, nil
}

func (s *leaderboardService) Invalidate(ctx context.Context, competitionID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey(competitionID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("competition_id", competitionID).Msg("failed to invalidate leaderboard cache")
	}
}
