package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives page counts from the total.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}
	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: 1}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
		if meta.TotalPages == 0 {
			meta.TotalPages = 1
		}
	}
	return meta
}

// StatusCountResponse is a count grouped by status.
type StatusCountResponse struct {
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

// GenreCountResponse is a submission count grouped by genre.
type GenreCountResponse struct {
	Genre string `json:"genre"`
	Total int64  `json:"total"`
}

// CompetitionScoreResponse is the mean evaluation score for one competition.
type CompetitionScoreResponse struct {
	CompetitionID uint    `json:"competition_id"`
	Title         string  `json:"title"`
	Evaluations   int64   `json:"evaluations"`
	AverageScore  float64 `json:"average_score"`
}

// TopAuthorResponse ranks authors by wins.
type TopAuthorResponse struct {
	AuthorID uint  `json:"author_id"`
	Wins     int64 `json:"wins"`
	BestRank int   `json:"best_rank"`
}

// CompetitionAnalyticsResponse aggregates competition metrics for administrators.
type CompetitionAnalyticsResponse struct {
	TotalCompetitions   int64                      `json:"total_competitions"`
	TotalSubmissions    int64                      `json:"total_submissions"`
	TotalEvaluations    int64                      `json:"total_evaluations"`
	TotalWinners        int64                      `json:"total_winners"`
	CompetitionStatuses []StatusCountResponse      `json:"competition_statuses"`
	SubmissionsByGenre  []GenreCountResponse       `json:"submissions_by_genre"`
	AverageScores       []CompetitionScoreResponse `json:"average_scores"`
	TopAuthors          []TopAuthorResponse        `json:"top_authors"`
	GeneratedAt         time.Time                  `json:"generated_at"`
	CacheHit            bool                       `json:"cache_hit"`
}

// AdminActivityListRequest filters the audit trail. Since is inclusive and
// Until exclusive.
type AdminActivityListRequest struct {
	Page          int
	PageSize      int
	ActorID       uint
	Action        string
	EntityType    string
	EntityID      uint
	CompetitionID uint
	Since         *time.Time
	Until         *time.Time
}

// AdminActivityResponse serializes activity log entries.
type AdminActivityResponse struct {
	ID            uint                   `json:"id"`
	ActorID       uint                   `json:"actor_id"`
	ActorRole     string                 `json:"actor_role"`
	Action        string                 `json:"action"`
	EntityType    string                 `json:"entity_type"`
	EntityID      *uint                  `json:"entity_id"`
	CompetitionID *uint                  `json:"competition_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
}

// AdminActivityListResponse wraps paginated activity logs.
type AdminActivityListResponse struct {
	Items      []AdminActivityResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}

// NewAdminActivityResponse converts a model into an activity DTO.
func NewAdminActivityResponse(entry models.ActivityLog) AdminActivityResponse {
	return AdminActivityResponse{
		ID:            entry.ID,
		ActorID:       entry.ActorID,
		ActorRole:     entry.ActorRole,
		Action:        entry.Action,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		CompetitionID: entry.CompetitionID,
		CorrelationID: entry.CorrelationID,
		Metadata:      metadataFromJSON(entry.Metadata),
		CreatedAt:     entry.CreatedAt,
	}
}
