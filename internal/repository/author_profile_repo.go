package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// AuthorProfileRepository stores competition counters, best rank and badges per author.
type AuthorProfileRepository interface {
	GetStats(ctx context.Context, authorID uint) (models.AuthorCompetitionStats, error)
	ListBadges(ctx context.Context, authorID uint) ([]models.AuthorBadge, error)
	IncrementSubmissions(ctx context.Context, authorID uint, firstEntry bool) error
	RecordPlacement(ctx context.Context, authorID uint, rank int) error
	AwardBadge(ctx context.Context, badge *models.AuthorBadge) error
}

type authorProfileRepository struct {
	db *gorm.DB
}

// NewAuthorProfileRepository constructs the author profile repository.
func NewAuthorProfileRepository(db *gorm.DB) AuthorProfileRepository {
	return &authorProfileRepository{db: db}
}

func (r *authorProfileRepository) GetStats(ctx context.Context, authorID uint) (models.AuthorCompetitionStats, error) {
	var stats models.AuthorCompetitionStats
	err := r.db.WithContext(ctx).Where("author_id = ?", authorID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AuthorCompetitionStats{AuthorID: authorID}, nil
	}
	if err != nil {
		return models.AuthorCompetitionStats{}, err
	}
	return stats, nil
}

func (r *authorProfileRepository) ListBadges(ctx context.Context, authorID uint) ([]models.AuthorBadge, error) {
	var badges []models.AuthorBadge
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("awarded_at DESC").
		Find(&badges).Error
	return badges, err
}

func (r *authorProfileRepository) IncrementSubmissions(ctx context.Context, authorID uint, firstEntry bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureStats(tx, authorID); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"total_submissions": gorm.Expr("total_submissions + ?", 1),
		}
		if firstEntry {
			updates["total_entered"] = gorm.Expr("total_entered + ?", 1)
		}
		return tx.Model(&models.AuthorCompetitionStats{}).
			Where("author_id = ?", authorID).
			Updates(updates).Error
	})
}

// RecordPlacement increments wins and finalist counters and lowers best_rank
// when rank beats the stored value.
func (r *authorProfileRepository) RecordPlacement(ctx context.Context, authorID uint, rank int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureStats(tx, authorID); err != nil {
			return err
		}

		if err := tx.Model(&models.AuthorCompetitionStats{}).
			Where("author_id = ?", authorID).
			Updates(map[string]interface{}{
				"total_wins":     gorm.Expr("total_wins + ?", 1),
				"total_finalist": gorm.Expr("total_finalist + ?", 1),
			}).Error; err != nil {
			return err
		}

		return tx.Model(&models.AuthorCompetitionStats{}).
			Where("author_id = ? AND (best_rank IS NULL OR best_rank > ?)", authorID, rank).
			Update("best_rank", rank).Error
	})
}

func (r *authorProfileRepository) AwardBadge(ctx context.Context, badge *models.AuthorBadge) error {
	return r.db.WithContext(ctx).Create(badge).Error
}

func ensureStats(tx *gorm.DB, authorID uint) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.AuthorCompetitionStats{AuthorID: authorID}).Error
}
