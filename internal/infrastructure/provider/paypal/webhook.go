package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

// PayPal webhook event types handled by reconciliation.
const (
	EventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	EventCaptureRefunded  = "PAYMENT.CAPTURE.REFUNDED"
)

// transmission headers signed by PayPal
var transmissionHeaders = []struct{ header, field string }{
	{"Paypal-Auth-Algo", "auth_algo"},
	{"Paypal-Cert-Url", "cert_url"},
	{"Paypal-Transmission-Id", "transmission_id"},
	{"Paypal-Transmission-Sig", "transmission_sig"},
	{"Paypal-Transmission-Time", "transmission_time"},
}

// VerifyWebhookSignature asks PayPal to verify the delivery.
// POST /v1/notifications/verify-webhook-signature
func (p *Provider) VerifyWebhookSignature(ctx context.Context, body []byte, headers http.Header) bool {
	if !p.WebhookConfigured() || !p.credentialsConfigured() {
		p.logger.Error("PayPal webhook verification is not configured")
		return false
	}
	if !json.Valid(body) {
		return false
	}

	req := map[string]interface{}{
		"webhook_id":    p.config.WebhookID,
		"webhook_event": json.RawMessage(body),
	}
	for _, h := range transmissionHeaders {
		value := headers.Get(h.header)
		if value == "" {
			p.logger.Warn("PayPal webhook missing transmission header", zap.String("header", h.header))
			return false
		}
		req[h.field] = value
	}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	status, err := p.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &resp)
	if err != nil || status >= 300 {
		p.logger.Error("PayPal webhook verification call failed",
			zap.Int("status_code", status),
			zap.Error(err))
		return false
	}

	return resp.VerificationStatus == verifySuccess
}

type webhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// resource covers the order and capture payloads we read.
type resource struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	CustomID string `json:"custom_id"`
	Amount   amount `json:"amount"`
	Links    []link `json:"links"`

	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`

	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Amount   amount `json:"amount"`
	} `json:"purchase_units"`
}

// ParseWebhookEvent maps a verified PayPal webhook onto a PaymentEvent.
// PayPal events never carry a payer identity usable for records.
func (p *Provider) ParseWebhookEvent(body []byte) (*entity.PaymentEvent, error) {
	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("failed to parse PayPal webhook: %w", err)
	}
	if evt.ID == "" {
		return nil, fmt.Errorf("PayPal webhook has no id")
	}

	var res resource
	if len(evt.Resource) > 0 {
		if err := json.Unmarshal(evt.Resource, &res); err != nil {
			return nil, fmt.Errorf("failed to parse PayPal webhook resource: %w", err)
		}
	}

	event := &entity.PaymentEvent{
		Provider: entity.ProviderPayPal,
		EventID:  evt.ID,
		Type:     evt.EventType,
		Kind:     entity.PaymentEventIgnored,
		Currency: currencyUSD,
		PlanID:   entity.PlanBasic,
		Raw:      json.RawMessage(body),
	}

	switch evt.EventType {
	case EventOrderApproved:
		// Approval moves no money; the capture call or PAYMENT.CAPTURE.COMPLETED records it.
		event.OrderID = res.ID
		if len(res.PurchaseUnits) > 0 {
			unit := res.PurchaseUnits[0]
			p.applyMetadata(event, unit.CustomID)
			p.applyAmount(event, unit.Amount)
		}

	case EventCaptureCompleted:
		event.Kind = entity.PaymentEventCompleted
		event.OrderID = res.SupplementaryData.RelatedIDs.OrderID
		event.CaptureID = res.ID
		p.applyMetadata(event, res.CustomID)
		p.applyAmount(event, res.Amount)

	case EventCaptureDenied:
		event.Kind = entity.PaymentEventDenied
		event.CaptureID = res.ID
		event.OrderID = res.SupplementaryData.RelatedIDs.OrderID

	case EventCaptureRefunded:
		event.Kind = entity.PaymentEventRefunded
		event.CaptureID = refundedCaptureID(res)
		p.applyAmount(event, res.Amount)
	}

	return event, nil
}

func (p *Provider) applyMetadata(event *entity.PaymentEvent, raw string) {
	if meta, ok := p.parseCustomID(raw); ok {
		event.PlanID = entity.PlanFromMetadata(meta.PlanID)
		event.PriceKey = meta.Region
	}
}

func (p *Provider) applyAmount(event *entity.PaymentEvent, a amount) {
	event.Amount = parseAmount(a.Value)
	if a.CurrencyCode != "" {
		event.Currency = a.CurrencyCode
	}
}

// refundedCaptureID reads the capture a refund belongs to from its "up" link,
// falling back to the resource id.
func refundedCaptureID(res resource) string {
	for _, l := range res.Links {
		if l.Rel != "up" {
			continue
		}
		if i := strings.LastIndex(l.Href, "/captures/"); i >= 0 {
			if id := strings.Trim(l.Href[i+len("/captures/"):], "/"); id != "" {
				return id
			}
		}
	}
	return res.ID
}

func parseAmount(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
