package entity

import (
	"time"

	"github.com/google/uuid"
)

// ReviewReason says why an item needs an operator.
type ReviewReason string

const (
	// ReviewUnmatchedPayment: a completed payment webhook for an order with no purchase.
	ReviewUnmatchedPayment ReviewReason = "unmatched_payment"
	// ReviewMissingPayerEmail: a capture succeeded without a payer email.
	ReviewMissingPayerEmail ReviewReason = "missing_payer_email"
	// ReviewBookingWithoutPurchase: a booking from a customer with no completed purchase.
	ReviewBookingWithoutPurchase ReviewReason = "booking_without_purchase"
)

// ReviewStatus is open until an operator resolves the item.
type ReviewStatus string

const (
	ReviewStatusOpen     ReviewStatus = "open"
	ReviewStatusResolved ReviewStatus = "resolved"
)

// ReviewItem is an event the system acknowledged but could not reconcile.
type ReviewItem struct {
	ID             uuid.UUID
	Source         string
	Reason         ReviewReason
	Reference      string
	Details        map[string]interface{}
	Status         ReviewStatus
	ResolutionNote *string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}
