package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReviewItem is an acknowledged event waiting for an operator.
// (source, reason, reference) is unique so redeliveries collapse into one item.
type ReviewItem struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Source         string         `gorm:"size:50;not null;uniqueIndex:idx_review_items_key" json:"source"`
	Reason         string         `gorm:"size:50;not null;uniqueIndex:idx_review_items_key" json:"reason"`
	Reference      string         `gorm:"size:320;not null;uniqueIndex:idx_review_items_key" json:"reference"`
	Details        datatypes.JSON `json:"details"`
	Status         string         `gorm:"size:20;not null;default:'open';index" json:"status"`
	ResolutionNote *string        `gorm:"type:text" json:"resolution_note,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for GORM
func (ReviewItem) TableName() string {
	return "review_items"
}

func (r *ReviewItem) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}
