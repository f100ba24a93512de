package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// CompetitionFilter narrows competition listings.
type CompetitionFilter struct {
	Status   string
	Page     int
	PageSize int
}

// CompetitionRepository persists competitions and guards their status transitions.
type CompetitionRepository interface {
	Create(ctx context.Context, competition *models.Competition) error
	UpdateDraft(ctx context.Context, competition *models.Competition) error
	FindByID(ctx context.Context, id uint) (models.Competition, error)
	List(ctx context.Context, filter CompetitionFilter) ([]models.Competition, int64, error)
	ListAccepting(ctx context.Context, now time.Time) ([]models.Competition, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]models.Competition, error)
	TransitionStatus(ctx context.Context, id uint, from []string, to string) error
	CompleteEvaluationRun(ctx context.Context, id uint, unevaluated int, at, liveClaimsSince time.Time) (string, error)
}

type competitionRepository struct {
	db *gorm.DB
}

// NewCompetitionRepository constructs a competition repository backed by GORM.
func NewCompetitionRepository(db *gorm.DB) CompetitionRepository {
	return &competitionRepository{db: db}
}

func (r *competitionRepository) Create(ctx context.Context, competition *models.Competition) error {
	return r.db.WithContext(ctx).Create(competition).Error
}

// UpdateDraft rewrites the editable fields while the competition is still a draft.
func (r *competitionRepository) UpdateDraft(ctx context.Context, competition *models.Competition) error {
	result := r.db.WithContext(ctx).
		Model(&models.Competition{}).
		Where("id = ? AND status = ?", competition.ID, models.CompetitionStatusDraft).
		Select(
			"title", "description", "genre_categories", "submission_start", "submission_end",
			"winner_announcement_date", "evaluation_criteria", "max_submissions_per_author",
			"entry_fee", "prize_structure", "show_rankings", "show_scores", "show_feedback_to_all", "updated_at",
		).
		Updates(competition)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *competitionRepository) FindByID(ctx context.Context, id uint) (models.Competition, error) {
	var competition models.Competition
	if err := r.db.WithContext(ctx).First(&competition, id).Error; err != nil {
		return models.Competition{}, err
	}
	return competition, nil
}

func (r *competitionRepository) List(ctx context.Context, filter CompetitionFilter) ([]models.Competition, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Competition{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var competitions []models.Competition
	if err := query.Scopes(paginate(filter.Page, filter.PageSize)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&competitions).Error; err != nil {
		return nil, 0, err
	}

	return competitions, total, nil
}

func (r *competitionRepository) ListAccepting(ctx context.Context, now time.Time) ([]models.Competition, error) {
	var competitions []models.Competition
	err := r.db.WithContext(ctx).
		Where("status = ?", models.CompetitionStatusAcceptingSubmissions).
		Where("submission_start <= ? AND submission_end >= ?", now, now).
		Order("submission_end ASC").
		Find(&competitions).Error
	return competitions, err
}

func (r *competitionRepository) ListUpcoming(ctx context.Context, now time.Time) ([]models.Competition, error) {
	var competitions []models.Competition
	err := r.db.WithContext(ctx).
		Where("status = ?", models.CompetitionStatusAcceptingSubmissions).
		Where("submission_start > ?", now).
		Order("submission_start ASC").
		Find(&competitions).Error
	return competitions, err
}

// TransitionStatus moves the competition to `to` only if its current status is one of `from`.
func (r *competitionRepository) TransitionStatus(ctx context.Context, id uint, from []string, to string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Competition{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// CompleteEvaluationRun records how many submissions are still without an
// evaluation and returns the status the competition ends in. The competition
// moves into admin review unless a submission still carries a claim taken at or
// after liveClaimsSince; then another run is in flight and it stays evaluating
// so that run moves it on.
func (r *competitionRepository) CompleteEvaluationRun(ctx context.Context, id uint, unevaluated int, at, liveClaimsSince time.Time) (string, error) {
	var status string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var competition models.Competition
		if err := tx.Scopes(forUpdate()).
			Where("status IN ?", []string{models.CompetitionStatusEvaluating, models.CompetitionStatusAdminReview}).
			First(&competition, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStatusChanged
			}
			return err
		}

		var live int64
		if err := tx.Model(&models.CompetitionSubmission{}).
			Where("competition_id = ?", id).
			Where("evaluation_claim_token <> '' AND evaluation_claim_token IS NOT NULL").
			Where("evaluation_claimed_at >= ?", liveClaimsSince).
			Count(&live).Error; err != nil {
			return err
		}

		status = models.CompetitionStatusAdminReview
		if live > 0 && competition.Status == models.CompetitionStatusEvaluating {
			status = models.CompetitionStatusEvaluating
		}

		return tx.Model(&models.Competition{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":            status,
				"unevaluated_count": unevaluated,
				"last_evaluated_at": at,
			}).Error
	})
	if err != nil {
		return "", err
	}
	return status, nil
}
