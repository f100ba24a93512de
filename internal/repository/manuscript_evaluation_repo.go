package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// ManuscriptEvaluationRepository persists critic evaluations. Evaluations are insert-only.
type ManuscriptEvaluationRepository interface {
	Save(ctx context.Context, evaluation *models.ManuscriptEvaluation, claimToken string) (bool, error)
	FindBySubmission(ctx context.Context, submissionID uint) (models.ManuscriptEvaluation, error)
	FindBySubmissionIDs(ctx context.Context, submissionIDs []uint) (map[uint]models.ManuscriptEvaluation, error)
	ListByCompetition(ctx context.Context, competitionID uint) ([]models.ManuscriptEvaluation, error)
	CountByCompetition(ctx context.Context, competitionID uint) (int64, error)
	CountUnevaluated(ctx context.Context, competitionID uint) (int64, error)
}

type manuscriptEvaluationRepository struct {
	db *gorm.DB
}

// NewManuscriptEvaluationRepository constructs the evaluation repository.
func NewManuscriptEvaluationRepository(db *gorm.DB) ManuscriptEvaluationRepository {
	return &manuscriptEvaluationRepository{db: db}
}

// Save inserts the evaluation, moves its submission to under_review and releases
// the claim identified by claimToken. It reports false without error when an
// evaluation for the submission already exists, and ErrStatusChanged when the
// competition has left evaluating.
func (r *manuscriptEvaluationRepository) Save(ctx context.Context, evaluation *models.ManuscriptEvaluation, claimToken string) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var competition models.Competition
		if err := tx.Scopes(forUpdate()).Select("id", "status").First(&competition, evaluation.CompetitionID).Error; err != nil {
			return err
		}
		if competition.Status != models.CompetitionStatusEvaluating {
			return ErrStatusChanged
		}

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}},
			DoNothing: true,
		}).Omit("Submission").Create(evaluation)
		if result.Error != nil {
			return result.Error
		}
		created = result.RowsAffected > 0

		if created {
			if err := tx.Model(&models.CompetitionSubmission{}).
				Where("id = ? AND status IN ?", evaluation.SubmissionID, []string{models.SubmissionStatusPending, models.SubmissionStatusValidated}).
				Update("status", models.SubmissionStatusUnderReview).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.CompetitionSubmission{}).
			Where("id = ? AND evaluation_claim_token = ?", evaluation.SubmissionID, claimToken).
			Updates(map[string]interface{}{
				"evaluation_claim_token": "",
				"evaluation_claimed_at":  nil,
			}).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *manuscriptEvaluationRepository) FindBySubmission(ctx context.Context, submissionID uint) (models.ManuscriptEvaluation, error) {
	var evaluation models.ManuscriptEvaluation
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&evaluation).Error; err != nil {
		return models.ManuscriptEvaluation{}, err
	}
	return evaluation, nil
}

func (r *manuscriptEvaluationRepository) FindBySubmissionIDs(ctx context.Context, submissionIDs []uint) (map[uint]models.ManuscriptEvaluation, error) {
	result := make(map[uint]models.ManuscriptEvaluation, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return result, nil
	}

	var evaluations []models.ManuscriptEvaluation
	if err := r.db.WithContext(ctx).Where("submission_id IN ?", submissionIDs).Find(&evaluations).Error; err != nil {
		return nil, err
	}
	for _, evaluation := range evaluations {
		result[evaluation.SubmissionID] = evaluation
	}
	return result, nil
}

func (r *manuscriptEvaluationRepository) ListByCompetition(ctx context.Context, competitionID uint) ([]models.ManuscriptEvaluation, error) {
	var evaluations []models.ManuscriptEvaluation
	err := r.db.WithContext(ctx).
		Preload("Submission").
		Where("competition_id = ?", competitionID).
		Order("overall_score DESC").
		Order("submission_id ASC").
		Find(&evaluations).Error
	return evaluations, err
}

func (r *manuscriptEvaluationRepository) CountByCompetition(ctx context.Context, competitionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ManuscriptEvaluation{}).
		Where("competition_id = ?", competitionID).
		Count(&count).Error
	return count, err
}

// CountUnevaluated counts eligible submissions that still have no evaluation.
func (r *manuscriptEvaluationRepository) CountUnevaluated(ctx context.Context, competitionID uint) (int64, error) {
	evaluated := r.db.Model(&models.ManuscriptEvaluation{}).
		Select("1").
		Where("manuscript_evaluations.submission_id = competition_submissions.id")

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Where("competition_id = ?", competitionID).
		Where("status <> ?", models.SubmissionStatusDisqualified).
		Where("NOT EXISTS (?)", evaluated).
		Count(&count).Error
	return count, err
}
