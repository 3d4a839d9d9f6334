// Command check-prices verifies that every Stripe price in the catalog is
// provisioned and active in the configured Stripe account.
package main

import (
	"log"
	"os"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/config"
	"github.com/pcoptimize/pcoptimize-backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.Service.Stripe.SecretKey == "" {
		zapLogger.Fatal("service.stripe.secret_key is required")
	}

	cat, err := catalog.Default()
	if err != nil {
		zapLogger.Fatal("Failed to load catalog", zap.Error(err))
	}
	if err := cat.OverrideStripePrices(cfg.Service.Stripe.PriceIDs); err != nil {
		zapLogger.Fatal("Invalid Stripe price overrides", zap.Error(err))
	}

	sc := &client.API{}
	sc.Init(cfg.Service.Stripe.SecretKey, nil)

	active, err := listActivePrices(sc)
	if err != nil {
		zapLogger.Fatal("Failed to list Stripe prices", zap.Error(err))
	}
	zapLogger.Info("Fetched active Stripe prices", zap.Int("count", len(active)))

	findings := checkPrices(cat.StripePrices(), active)
	for _, f := range findings {
		zapLogger.Error("Stripe price not provisioned",
			zap.String("plan", string(f.Plan)),
			zap.String("currency", f.Currency),
			zap.String("price_id", f.PriceID),
			zap.String("problem", string(f.Problem)))
	}

	if len(findings) > 0 {
		_ = zapLogger.Sync()
		os.Exit(1)
	}
	zapLogger.Info("All Stripe prices provisioned")
}

func listActivePrices(sc *client.API) (map[string]*stripe.Price, error) {
	params := &stripe.PriceListParams{
		Active: stripe.Bool(true),
	}
	params.Limit = stripe.Int64(100)

	prices := make(map[string]*stripe.Price)
	iter := sc.Prices.List(params)
	for iter.Next() {
		p := iter.Price()
		prices[p.ID] = p
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}
