package entity

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PaymentEventKind is the provider independent meaning of a payment webhook.
type PaymentEventKind int

const (
	PaymentEventIgnored PaymentEventKind = iota
	PaymentEventCompleted
	PaymentEventRefunded
	PaymentEventDenied
)

func (k PaymentEventKind) String() string {
	switch k {
	case PaymentEventCompleted:
		return "completed"
	case PaymentEventRefunded:
		return "refunded"
	case PaymentEventDenied:
		return "denied"
	default:
		return "ignored"
	}
}

// Payer is the identity a provider reports for a payment.
type Payer struct {
	Email string
	Name  string
}

// PaymentEvent is a provider webhook reduced to what reconciliation needs.
// Completed events are matched by OrderID, refunds and denials by CaptureID.
type PaymentEvent struct {
	Provider  ProviderType
	EventID   string
	Type      string
	Kind      PaymentEventKind
	OrderID   string
	CaptureID string
	Amount    decimal.Decimal
	Currency  string
	PlanID    PlanID
	// Region or currency code chosen at checkout.
	PriceKey string
	// Payer is nil when the payload carries no identity.
	Payer *Payer
	Raw   json.RawMessage
}

// HasIdentity reports whether the event can create a customer on its own.
func (e *PaymentEvent) HasIdentity() bool {
	return e.Payer != nil && e.Payer.Email != ""
}
