package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseStatus is the lifecycle state of a Purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// purchaseTransitions lists, per current status, the status each payment event leads to.
// A missing entry is an illegal transition. Refunded and failed accept nothing but
// a repeat of the event that produced them.
var purchaseTransitions = map[PurchaseStatus]map[PaymentEventKind]PurchaseStatus{
	PurchaseStatusPending: {
		PaymentEventCompleted: PurchaseStatusCompleted,
		PaymentEventDenied:    PurchaseStatusFailed,
	},
	PurchaseStatusCompleted: {
		PaymentEventCompleted: PurchaseStatusCompleted,
		PaymentEventRefunded:  PurchaseStatusRefunded,
		PaymentEventDenied:    PurchaseStatusFailed,
	},
	PurchaseStatusRefunded: {
		PaymentEventRefunded: PurchaseStatusRefunded,
	},
	PurchaseStatusFailed: {
		PaymentEventDenied: PurchaseStatusFailed,
	},
}

// NextPurchaseStatus returns the status a purchase moves to when kind is observed.
// ok is false when the transition is not allowed. next == current means no change.
func NextPurchaseStatus(current PurchaseStatus, kind PaymentEventKind) (next PurchaseStatus, ok bool) {
	next, ok = purchaseTransitions[current][kind]
	return next, ok
}

// IsTerminal reports whether no event can move the status forward.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusRefunded || s == PurchaseStatusFailed
}

// Purchase is one paid order.
type Purchase struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Provider   ProviderType
	OrderID    string
	CaptureID  *string
	PlanType   PlanID
	Amount     decimal.Decimal
	Currency   string
	Status     PurchaseStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProviderType names a payment processor.
type ProviderType string

const (
	ProviderStripe ProviderType = "stripe"
	ProviderPayPal ProviderType = "paypal"
)
