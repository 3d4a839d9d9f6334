package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/config"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/provider"
	paypalProvider "github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/provider/paypal"
	stripeProvider "github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/provider/stripe"
)

// Factory holds one adapter per payment provider.
type Factory struct {
	providers map[entity.ProviderType]provider.PaymentProvider
}

// NewFactory builds the PayPal and Stripe adapters from config. Missing
// credentials do not fail startup; the adapters report them per call.
func NewFactory(cfg *config.Config, cat *catalog.Catalog, logger *zap.Logger) *Factory {
	paypal := paypalProvider.NewPayPalProvider(paypalProvider.Config{
		ClientID:     cfg.Service.PayPal.ClientID,
		ClientSecret: cfg.Service.PayPal.ClientSecret,
		WebhookID:    cfg.Service.PayPal.WebhookID,
		APIBase:      cfg.Service.PayPal.APIBase(),
		Timeout:      cfg.Provider.Timeout,
	}, cat, logger)

	stripe := stripeProvider.NewStripeProvider(stripeProvider.Config{
		SecretKey:     cfg.Service.Stripe.SecretKey,
		WebhookSecret: cfg.Service.Stripe.WebhookSecret,
		SiteURL:       cfg.Service.BaseURL,
		Timeout:       cfg.Provider.Timeout,
	}, cat, logger)

	if cfg.Service.PayPal.ClientID == "" {
		logger.Warn("PayPal credentials not configured")
	}
	if cfg.Service.Stripe.SecretKey == "" {
		logger.Warn("Stripe secret key not configured")
	}

	return NewFactoryWith(paypal, stripe)
}

// NewFactoryWith registers already built adapters under their provider names.
func NewFactoryWith(providers ...provider.PaymentProvider) *Factory {
	f := &Factory{providers: make(map[entity.ProviderType]provider.PaymentProvider, len(providers))}
	for _, p := range providers {
		f.providers[entity.ProviderType(p.GetProviderName())] = p
	}
	return f
}

// GetProvider returns a payment provider based on the provider type
func (f *Factory) GetProvider(providerType entity.ProviderType) (provider.PaymentProvider, error) {
	p, ok := f.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrUnknownProvider, providerType)
	}
	return p, nil
}
