package model

import (
	"database/sql/driver"

	"github.com/google/uuid"
)

// newID fills a zero UUID primary key before insert.
func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// WebhookStatus represents the processing status of a webhook receipt
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusCompleted WebhookStatus = "completed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// All returns every model managed by the migrator, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Customer{},
		&Purchase{},
		&Booking{},
		&ReviewItem{},
		&WebhookEvent{},
	}
}

