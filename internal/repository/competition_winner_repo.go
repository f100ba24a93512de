package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// CompetitionWinnerRepository finalizes and reads winner records.
type CompetitionWinnerRepository interface {
	Finalize(ctx context.Context, competitionID uint, winners []models.CompetitionWinner) error
	ListByCompetition(ctx context.Context, competitionID uint) ([]models.CompetitionWinner, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]models.CompetitionWinner, error)
	MarkNotificationSent(ctx context.Context, id uint) error
}

type competitionWinnerRepository struct {
	db *gorm.DB
}

// NewCompetitionWinnerRepository constructs the winner repository.
func NewCompetitionWinnerRepository(db *gorm.DB) CompetitionWinnerRepository {
	return &competitionWinnerRepository{db: db}
}

// Finalize completes the competition, inserts the winner records, marks the
// winning submissions and reclassifies every other submission as participant.
// Either all of it commits or none of it does.
func (r *competitionWinnerRepository) Finalize(ctx context.Context, competitionID uint, winners []models.CompetitionWinner) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Competition{}).
			Where("id = ? AND status = ?", competitionID, models.CompetitionStatusAdminReview).
			Update("status", models.CompetitionStatusCompleted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusChanged
		}

		winnerIDs := make([]uint, 0, len(winners))
		for i := range winners {
			winnerIDs = append(winnerIDs, winners[i].SubmissionID)
		}

		if len(winners) > 0 {
			if err := tx.Omit("Submission", "Competition").Create(&winners).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.CompetitionSubmission{}).
				Where("competition_id = ? AND id IN ?", competitionID, winnerIDs).
				Update("status", models.SubmissionStatusWinner).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.CompetitionSubmission{}).
			Where("competition_id = ? AND status <> ?", competitionID, models.SubmissionStatusWinner).
			Updates(map[string]interface{}{
				"status":                 models.SubmissionStatusParticipant,
				"evaluation_claim_token": "",
				"evaluation_claimed_at":  nil,
			}).Error
	})
}

func (r *competitionWinnerRepository) ListByCompetition(ctx context.Context, competitionID uint) ([]models.CompetitionWinner, error) {
	var winners []models.CompetitionWinner
	err := r.db.WithContext(ctx).
		Preload("Submission").
		Where("competition_id = ?", competitionID).
		Order("rank ASC").
		Find(&winners).Error
	return winners, err
}

func (r *competitionWinnerRepository) ListByAuthor(ctx context.Context, authorID uint) ([]models.CompetitionWinner, error) {
	var winners []models.CompetitionWinner
	err := r.db.WithContext(ctx).
		Preload("Submission").
		Preload("Competition").
		Where("author_id = ?", authorID).
		Order("announced_at DESC").
		Find(&winners).Error
	return winners, err
}

func (r *competitionWinnerRepository) MarkNotificationSent(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.CompetitionWinner{}).
		Where("id = ?", id).
		Update("notification_sent", true).Error
}
