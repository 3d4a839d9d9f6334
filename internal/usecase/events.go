package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/pkg/messaging"
)

// Channels published after a ledger write.
const (
	ChannelPurchaseCompleted = "purchase.completed"
	ChannelBookingCreated    = "booking.created"
)

// PurchaseCompletedEvent is published the first time a purchase is recorded.
type PurchaseCompletedEvent struct {
	PurchaseID    string    `json:"purchase_id"`
	OrderID       string    `json:"order_id"`
	Provider      string    `json:"provider"`
	PlanID        string    `json:"plan_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	CustomerEmail string    `json:"customer_email"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingCreatedEvent is published when a booking is stored.
type BookingCreatedEvent struct {
	BookingID         string     `json:"booking_id"`
	PurchaseID        string     `json:"purchase_id"`
	ExternalBookingID string     `json:"external_booking_id,omitempty"`
	CustomerEmail     string     `json:"customer_email"`
	ScheduledDate     *time.Time `json:"scheduled_date,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

func publish(ctx context.Context, publisher messaging.Publisher, logger *zap.Logger, channel string, event interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, channel, event); err != nil {
		logger.Warn("Failed to publish event", zap.String("channel", channel), zap.Error(err))
	}
}
