package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the receipt of one provider webhook delivery.
type WebhookEvent struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider    string         `gorm:"size:20;not null;uniqueIndex:idx_webhook_events_key" json:"provider"`
	EventID     string         `gorm:"size:255;not null;uniqueIndex:idx_webhook_events_key" json:"event_id"`
	EventType   string         `gorm:"size:100;not null;index" json:"event_type"`
	Status      WebhookStatus  `gorm:"type:webhook_status;not null;default:'pending';index" json:"status"`
	Payload     datatypes.JSON `json:"payload"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   *string        `gorm:"type:text" json:"last_error,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
