package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking is a scheduled session. A NULL external id is never treated as a duplicate.
type Booking struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"purchase_id"`
	ExternalBookingID *string    `gorm:"size:255;uniqueIndex" json:"external_booking_id,omitempty"`
	ScheduledDate     *time.Time `json:"scheduled_date,omitempty"`
	Status            string     `gorm:"type:booking_status;not null" json:"status"`
	Notes             *string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Purchase *Purchase `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for GORM
func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	newID(&b.ID)
	return nil
}
