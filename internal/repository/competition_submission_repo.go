package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// IntakeCheck validates a submission against the locked competition row and the
// author's prior entry count.
type IntakeCheck func(competition models.Competition, priorEntries int64) error

// SubmissionFilter narrows submission listings for administrators.
type SubmissionFilter struct {
	CompetitionID uint
	Status        string
	Page          int
	PageSize      int
}

// CompetitionSubmissionRepository persists submissions and the evaluation claims held on them.
type CompetitionSubmissionRepository interface {
	CreateChecked(ctx context.Context, submission *models.CompetitionSubmission, check IntakeCheck) (int64, error)
	FindByID(ctx context.Context, id uint) (models.CompetitionSubmission, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.CompetitionSubmission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.CompetitionSubmission, int64, error)
	ListIDsByCompetition(ctx context.Context, competitionID uint) ([]uint, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]models.CompetitionSubmission, error)
	CountByCompetition(ctx context.Context, competitionID uint) (int64, error)
	CountByAuthor(ctx context.Context, competitionID, authorID uint) (int64, error)
	TransitionStatus(ctx context.Context, id uint, from []string, to string, fields map[string]interface{}) error
	ConfirmEntryFee(ctx context.Context, id uint, transactionID string) error
	Claim(ctx context.Context, id uint, token string, now, staleBefore time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, id uint, token string) error
}

type competitionSubmissionRepository struct {
	db *gorm.DB
}

// NewCompetitionSubmissionRepository constructs the submission repository.
func NewCompetitionSubmissionRepository(db *gorm.DB) CompetitionSubmissionRepository {
	return &competitionSubmissionRepository{db: db}
}

// CreateChecked locks the competition row, counts the author's existing entries,
// runs check and inserts the submission in one transaction. It returns the prior
// entry count observed before the insert.
func (r *competitionSubmissionRepository) CreateChecked(ctx context.Context, submission *models.CompetitionSubmission, check IntakeCheck) (int64, error) {
	var prior int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var competition models.Competition
		if err := tx.Scopes(forUpdate()).First(&competition, submission.CompetitionID).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.CompetitionSubmission{}).
			Where("competition_id = ? AND author_id = ?", submission.CompetitionID, submission.AuthorID).
			Count(&prior).Error; err != nil {
			return err
		}

		if check != nil {
			if err := check(competition, prior); err != nil {
				return err
			}
		}

		return tx.Omit("Competition").Create(submission).Error
	})
	if err != nil {
		return 0, err
	}
	return prior, nil
}

func (r *competitionSubmissionRepository) FindByID(ctx context.Context, id uint) (models.CompetitionSubmission, error) {
	var submission models.CompetitionSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.CompetitionSubmission{}, err
	}
	return submission, nil
}

func (r *competitionSubmissionRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.CompetitionSubmission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var submissions []models.CompetitionSubmission
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&submissions).Error
	return submissions, err
}

func (r *competitionSubmissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.CompetitionSubmission, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CompetitionSubmission{})
	if filter.CompetitionID > 0 {
		query = query.Where("competition_id = ?", filter.CompetitionID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var submissions []models.CompetitionSubmission
	if err := query.Scopes(paginate(filter.Page, filter.PageSize)).
		Order("submitted_at ASC").
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

func (r *competitionSubmissionRepository) ListIDsByCompetition(ctx context.Context, competitionID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Where("competition_id = ?", competitionID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *competitionSubmissionRepository) ListByAuthor(ctx context.Context, authorID uint) ([]models.CompetitionSubmission, error) {
	var submissions []models.CompetitionSubmission
	err := r.db.WithContext(ctx).
		Preload("Competition").
		Where("author_id = ?", authorID).
		Order("submitted_at DESC").
		Find(&submissions).Error
	return submissions, err
}

func (r *competitionSubmissionRepository) CountByCompetition(ctx context.Context, competitionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Where("competition_id = ?", competitionID).
		Count(&count).Error
	return count, err
}

func (r *competitionSubmissionRepository) CountByAuthor(ctx context.Context, competitionID, authorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Where("competition_id = ? AND author_id = ?", competitionID, authorID).
		Count(&count).Error
	return count, err
}

func (r *competitionSubmissionRepository) TransitionStatus(ctx context.Context, id uint, from []string, to string, fields map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for key, value := range fields {
		updates[key] = value
	}

	result := r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *competitionSubmissionRepository) ConfirmEntryFee(ctx context.Context, id uint, transactionID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"entry_fee_paid":         true,
			"payment_transaction_id": transactionID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Claim marks a submission as being evaluated by the holder of token. It succeeds
// only for one caller: the submission must have no evaluation, must not be
// disqualified, must carry no claim newer than staleBefore and its competition
// must still be evaluating.
func (r *competitionSubmissionRepository) Claim(ctx context.Context, id uint, token string, now, staleBefore time.Time) (bool, error) {
	evaluated := r.db.Model(&models.ManuscriptEvaluation{}).
		Select("1").
		Where("manuscript_evaluations.submission_id = competition_submissions.id")
	evaluating := r.db.Model(&models.Competition{}).
		Select("1").
		Where("competitions.id = competition_submissions.competition_id AND competitions.status = ?", models.CompetitionStatusEvaluating)

	result := r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Where("id = ?", id).
		Where("status <> ?", models.SubmissionStatusDisqualified).
		Where("(evaluation_claim_token = '' OR evaluation_claim_token IS NULL OR evaluation_claimed_at < ?)", staleBefore).
		Where("NOT EXISTS (?)", evaluated).
		Where("EXISTS (?)", evaluating).
		Updates(map[string]interface{}{
			"evaluation_claim_token": token,
			"evaluation_claimed_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *competitionSubmissionRepository) ReleaseClaim(ctx context.Context, id uint, token string) error {
	return r.db.WithContext(ctx).
		Model(&models.CompetitionSubmission{}).
		Where("id = ? AND evaluation_claim_token = ?", id, token).
		Updates(map[string]interface{}{
			"evaluation_claim_token": "",
			"evaluation_claimed_at":  nil,
		}).Error
}
