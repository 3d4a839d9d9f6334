package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	gostripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

// SignatureHeader carries the Stripe webhook signature.
const SignatureHeader = "Stripe-Signature"

// zeroDecimalCurrencies are charged in whole units by Stripe.
var zeroDecimalCurrencies = map[string]bool{
	"CLP": true,
}

// VerifyWebhookSignature checks the Stripe-Signature header with the signing secret.
func (p *Provider) VerifyWebhookSignature(ctx context.Context, body []byte, headers http.Header) bool {
	if !p.WebhookConfigured() {
		p.logger.Error("Stripe webhook secret is not configured")
		return false
	}
	if err := webhook.ValidatePayload(body, headers.Get(SignatureHeader), p.config.WebhookSecret); err != nil {
		p.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		return false
	}
	return true
}

// ParseWebhookEvent maps a verified Stripe event onto a PaymentEvent.
func (p *Provider) ParseWebhookEvent(body []byte) (*entity.PaymentEvent, error) {
	var evt gostripe.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("failed to parse Stripe event: %w", err)
	}
	if evt.ID == "" {
		return nil, fmt.Errorf("Stripe event has no id")
	}

	ignored := &entity.PaymentEvent{
		Provider: entity.ProviderStripe,
		EventID:  evt.ID,
		Type:     string(evt.Type),
		Kind:     entity.PaymentEventIgnored,
		PlanID:   entity.PlanBasic,
		Raw:      json.RawMessage(body),
	}
	if evt.Data == nil {
		return ignored, nil
	}

	switch evt.Type {
	case gostripe.EventTypeCheckoutSessionCompleted,
		gostripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		gostripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		var session gostripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}

		event := sessionToEvent(&session)
		event.EventID, event.Type, event.Raw = evt.ID, string(evt.Type), json.RawMessage(body)

		switch {
		case evt.Type == gostripe.EventTypeCheckoutSessionAsyncPaymentFailed:
			event.Kind = entity.PaymentEventDenied
		case session.PaymentStatus == gostripe.CheckoutSessionPaymentStatusPaid:
			event.Kind = entity.PaymentEventCompleted
		default:
			// Delayed methods complete later through async_payment_succeeded.
			event.Kind = entity.PaymentEventIgnored
		}
		return event, nil

	case gostripe.EventTypeChargeRefunded:
		var charge gostripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("failed to parse charge: %w", err)
		}
		if charge.PaymentIntent != nil {
			ignored.CaptureID = charge.PaymentIntent.ID
		}
		ignored.Currency = strings.ToUpper(string(charge.Currency))
		ignored.Amount = toMajorUnits(charge.AmountRefunded, ignored.Currency)
		if !charge.Refunded {
			p.logger.Info("Ignoring partial Stripe refund",
				zap.String("event_id", evt.ID),
				zap.String("capture_id", ignored.CaptureID),
				zap.String("amount_refunded", ignored.Amount.String()))
			return ignored, nil
		}
		ignored.Kind = entity.PaymentEventRefunded
		return ignored, nil
	}

	return ignored, nil
}

// sessionToEvent extracts ledger fields from a Checkout session.
func sessionToEvent(session *gostripe.CheckoutSession) *entity.PaymentEvent {
	currency := strings.ToUpper(string(session.Currency))
	event := &entity.PaymentEvent{
		Provider: entity.ProviderStripe,
		OrderID:  session.ID,
		Amount:   toMajorUnits(session.AmountTotal, currency),
		Currency: currency,
		PlanID:   entity.PlanFromMetadata(session.Metadata[metadataPlanID]),
		PriceKey: session.Metadata[metadataCurrencyCode],
	}
	if session.PaymentIntent != nil {
		event.CaptureID = session.PaymentIntent.ID
	}

	payer := entity.Payer{Email: session.CustomerEmail}
	if session.CustomerDetails != nil {
		if session.CustomerDetails.Email != "" {
			payer.Email = session.CustomerDetails.Email
		}
		payer.Name = session.CustomerDetails.Name
	}
	if payer.Email != "" || payer.Name != "" {
		event.Payer = &payer
	}
	return event
}

func toMajorUnits(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[currency] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
