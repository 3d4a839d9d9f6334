package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase is one provider order. order_id is the idempotency key.
type Purchase struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Provider   string          `gorm:"size:20;not null" json:"provider"`
	OrderID    string          `gorm:"size:255;not null;uniqueIndex" json:"order_id"`
	CaptureID  *string         `gorm:"size:255;index" json:"capture_id,omitempty"`
	PlanType   string          `gorm:"type:plan_type;not null" json:"plan_type"`
	Amount     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency   string          `gorm:"size:3;not null" json:"currency"`
	Status     string          `gorm:"type:purchase_status;not null;index" json:"status"`
	CreatedAt  time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Customer *Customer `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for GORM
func (Purchase) TableName() string {
	return "purchases"
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
