package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// StatusCount is a grouped count keyed by status.
type StatusCount struct {
	Status string
	Total  int64
}

// GenreCount is a grouped submission count keyed by genre.
type GenreCount struct {
	Genre string
	Total int64
}

// CompetitionScore is the mean evaluation score of one competition.
type CompetitionScore struct {
	CompetitionID uint
	Title         string
	Evaluations   int64
	AverageScore  float64
}

// AuthorWins is the number of winner records held by an author.
type AuthorWins struct {
	AuthorID uint
	Wins     int64
	BestRank int
}

// AdminAnalyticsRepository supplies aggregates for the admin analytics view.
type AdminAnalyticsRepository interface {
	CountCompetitionsByStatus(ctx context.Context) ([]StatusCount, error)
	CountSubmissionsByGenre(ctx context.Context) ([]GenreCount, error)
	Totals(ctx context.Context) (submissions, evaluations, winners int64, err error)
	AverageScores(ctx context.Context, limit int) ([]CompetitionScore, error)
	TopAuthors(ctx context.Context, limit int) ([]AuthorWins, error)
}

type adminAnalyticsRepository struct {
	db *gorm.DB
}

// NewAdminAnalyticsRepository constructs the analytics repository.
func NewAdminAnalyticsRepository(db *gorm.DB) AdminAnalyticsRepository {
	return &adminAnalyticsRepository{db: db}
}

func (r *adminAnalyticsRepository) CountCompetitionsByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&models.Competition{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *adminAnalyticsRepository) CountSubmissionsByGenre(ctx context.Context) ([]GenreCount, error) {
	var rows []GenreCount
	err := r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Select("genre, COUNT(*) AS total").
		Group("genre").
		Order("total DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *adminAnalyticsRepository) Totals(ctx context.Context) (int64, int64, int64, error) {
	var submissions, evaluations, winners int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.CompetitionSubmission{}).Count(&submissions).Error; err != nil {
		return 0, 0, 0, err
	}
	if err := db.Model(&models.ManuscriptEvaluation{}).Count(&evaluations).Error; err != nil {
		return 0, 0, 0, err
	}
	if err := db.Model(&models.CompetitionWinner{}).Count(&winners).Error; err != nil {
		return 0, 0, 0, err
	}
	return submissions, evaluations, winners, nil
}

func (r *adminAnalyticsRepository) AverageScores(ctx context.Context, limit int) ([]CompetitionScore, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []CompetitionScore
	err := r.db.WithContext(ctx).
		Table("manuscript_evaluations AS e").
		Select("e.competition_id AS competition_id, c.title AS title, COUNT(*) AS evaluations, AVG(e.overall_score) AS average_score").
		Joins("JOIN competitions AS c ON c.id = e.competition_id").
		Group("e.competition_id, c.title").
		Order("average_score DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *adminAnalyticsRepository) TopAuthors(ctx context.Context, limit int) ([]AuthorWins, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []AuthorWins
	err := r.db.WithContext(ctx).
		Model(&models.CompetitionWinner{}).
		Select("author_id, COUNT(*) AS wins, MIN(rank) AS best_rank").
		Group("author_id").
		Order("wins DESC").
		Order("best_rank ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
