package provider

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

// PaymentProvider is the capability set every payment processor adapter offers.
type PaymentProvider interface {
	// CreateOrder starts a checkout. Nothing is written to the ledger.
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderHandle, error)

	// CaptureOrder completes (PayPal) or confirms (Stripe) a checkout.
	// A capture that is not completed is an UpstreamRejected error.
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)

	// VerifyWebhookSignature never errors; any failure or misconfiguration is false.
	VerifyWebhookSignature(ctx context.Context, body []byte, headers http.Header) bool

	// ParseWebhookEvent decodes an already verified webhook body.
	ParseWebhookEvent(body []byte) (*entity.PaymentEvent, error)

	// WebhookConfigured reports whether the server holds the webhook credential.
	WebhookConfigured() bool

	// GetProviderName returns the provider name
	GetProviderName() string
}

// CreateOrderRequest carries the raw checkout choice; adapters validate it.
type CreateOrderRequest struct {
	PlanID string `json:"plan_id"`
	// Region selects the PayPal price list.
	Region string `json:"region,omitempty"`
	// CurrencyCode selects the Stripe price.
	CurrencyCode string `json:"currency_code,omitempty"`
}

// OrderHandle is where the payer goes next.
type OrderHandle struct {
	OrderID    string `json:"order_id"`
	ApproveURL string `json:"approve_url"`
}

// CaptureResult is a completed capture.
type CaptureResult struct {
	OrderID   string
	CaptureID string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	PlanID    entity.PlanID
	PriceKey  string
	Payer     entity.Payer
}
