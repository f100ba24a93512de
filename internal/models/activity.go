package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is one audited administrative action. CompetitionID is set for
// every action that touches a competition or one of its submissions, so a
// competition's full timeline is a single indexed lookup.
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index" json:"action"`
	EntityType    string            `gorm:"size:32;not null;index:idx_activity_entity,priority:1" json:"entity_type"`
	EntityID      *uint             `gorm:"index:idx_activity_entity,priority:2" json:"entity_id"`
	CompetitionID *uint             `gorm:"index" json:"competition_id,omitempty"`
	CorrelationID string            `gorm:"size:64" json:"correlation_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}
