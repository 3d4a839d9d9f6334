// Package stripe implements the PaymentProvider port on Stripe Checkout.
package stripe

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	gostripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/provider"
)

const providerName = "stripe"

const (
	metadataPlanID       = "plan_id"
	metadataCurrencyCode = "currency_code"
)

// Config holds the Stripe credentials.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// SiteURL is the public site used for success and cancel redirects.
	SiteURL string
	Timeout time.Duration
	// APIURL overrides the Stripe API host.
	APIURL string
}

// Provider implements provider.PaymentProvider with Stripe Checkout sessions.
// The session id plays the role of the order id.
type Provider struct {
	config  Config
	catalog *catalog.Catalog
	api     *client.API
	logger  *zap.Logger
}

// NewStripeProvider creates a new Stripe provider
func NewStripeProvider(cfg Config, cat *catalog.Catalog, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	httpClient := &http.Client{Timeout: cfg.Timeout}
	backends := gostripe.NewBackends(httpClient)
	if cfg.APIURL != "" {
		backends = &gostripe.Backends{
			API: gostripe.GetBackendWithConfig(gostripe.APIBackend, &gostripe.BackendConfig{
				URL:               gostripe.String(cfg.APIURL),
				HTTPClient:        httpClient,
				MaxNetworkRetries: gostripe.Int64(0),
			}),
		}
	}

	return &Provider{
		config:  cfg,
		catalog: cat,
		api:     client.New(cfg.SecretKey, backends),
		logger:  logger.Named("stripe"),
	}
}

// GetProviderName returns the provider name
func (p *Provider) GetProviderName() string {
	return string(entity.ProviderStripe)
}

func (p *Provider) WebhookConfigured() bool {
	return p.config.WebhookSecret != ""
}

// CreateOrder opens a one-time payment Checkout session for a catalog price.
func (p *Provider) CreateOrder(ctx context.Context, req *provider.CreateOrderRequest) (*provider.OrderHandle, error) {
	if req.PlanID == "" || req.CurrencyCode == "" {
		return nil, domainerrors.NewInvalidArgument("planId and currencyCode are required")
	}
	planID, ok := entity.ParsePlanID(req.PlanID)
	if !ok {
		return nil, domainerrors.NewInvalidArgument("invalid plan: %s", req.PlanID)
	}
	if !entity.IsValidCurrency(req.CurrencyCode) {
		return nil, domainerrors.NewInvalidArgument("invalid currency: %s", req.CurrencyCode)
	}

	priceID, ok := p.catalog.StripePriceID(planID, req.CurrencyCode)
	if !ok {
		p.logger.Warn("Stripe price not provisioned",
			zap.String("plan_id", string(planID)),
			zap.String("currency", req.CurrencyCode),
			zap.String("price_id", priceID))
		return nil, domainerrors.NewNotProvisioned("plan %s is not available in %s yet", planID, req.CurrencyCode)
	}
	if p.config.SecretKey == "" {
		return nil, domainerrors.NewUpstreamUnavailable(providerName, errors.New("secret key not configured"))
	}

	params := &gostripe.CheckoutSessionParams{
		Mode: gostripe.String(string(gostripe.CheckoutSessionModePayment)),
		LineItems: []*gostripe.CheckoutSessionLineItemParams{
			{
				Price:    gostripe.String(priceID),
				Quantity: gostripe.Int64(1),
			},
		},
		SuccessURL:               gostripe.String(p.config.SiteURL + "/exito?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:                gostripe.String(p.config.SiteURL + "/#precios"),
		BillingAddressCollection: gostripe.String(string(gostripe.CheckoutSessionBillingAddressCollectionAuto)),
	}
	params.Context = ctx
	params.AddMetadata(metadataPlanID, string(planID))
	params.AddMetadata(metadataCurrencyCode, req.CurrencyCode)

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, p.classify("create checkout session", err)
	}

	p.logger.Info("Stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("plan_id", string(planID)),
		zap.String("currency", req.CurrencyCode))

	return &provider.OrderHandle{
		OrderID:    session.ID,
		ApproveURL: session.URL,
	}, nil
}

// CaptureOrder confirms a Checkout session was paid. Stripe captures on its
// own, so this only reads the session.
func (p *Provider) CaptureOrder(ctx context.Context, sessionID string) (*provider.CaptureResult, error) {
	if sessionID == "" {
		return nil, domainerrors.NewInvalidArgument("sessionId is required")
	}
	if p.config.SecretKey == "" {
		return nil, domainerrors.NewUpstreamUnavailable(providerName, errors.New("secret key not configured"))
	}

	params := &gostripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, p.classify("retrieve checkout session", err)
	}

	if session.PaymentStatus != gostripe.CheckoutSessionPaymentStatusPaid {
		p.logger.Warn("Stripe checkout session not paid",
			zap.String("session_id", sessionID),
			zap.String("payment_status", string(session.PaymentStatus)))
		return nil, domainerrors.NewUpstreamRejected(providerName,
			"payment not completed, status "+string(session.PaymentStatus), domainerrors.ErrPaymentNotCompleted)
	}

	event := sessionToEvent(session)
	result := &provider.CaptureResult{
		OrderID:   session.ID,
		CaptureID: event.CaptureID,
		Status:    string(session.PaymentStatus),
		Amount:    event.Amount,
		Currency:  event.Currency,
		PlanID:    event.PlanID,
		PriceKey:  event.PriceKey,
	}
	if event.Payer != nil {
		result.Payer = *event.Payer
	}

	p.logger.Info("Stripe checkout session confirmed",
		zap.String("session_id", session.ID),
		zap.String("payment_intent", result.CaptureID))

	return result, nil
}

// classify turns a stripe-go error into the provider error taxonomy.
func (p *Provider) classify(op string, err error) error {
	var stripeErr *gostripe.Error
	if errors.As(err, &stripeErr) {
		p.logger.Error("Stripe API error",
			zap.String("op", op),
			zap.Int("status_code", stripeErr.HTTPStatusCode),
			zap.String("code", string(stripeErr.Code)),
			zap.String("message", stripeErr.Msg))
		switch stripeErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusNotFound:
			return domainerrors.NewUpstreamRejected(providerName, stripeErr.Msg, err)
		}
		return domainerrors.NewUpstreamUnavailable(providerName, err)
	}

	p.logger.Error("Stripe request failed", zap.String("op", op), zap.Error(err))
	return domainerrors.NewUpstreamUnavailable(providerName, err)
}
