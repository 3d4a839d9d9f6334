// Package paypal implements the PaymentProvider port on the PayPal REST API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/provider"
)

const (
	providerName = "paypal"
	currencyUSD  = "USD"

	statusCompleted = "COMPLETED"
	verifySuccess   = "SUCCESS"

	// maxErrorBody caps how much of an error response is logged.
	maxErrorBody = 2048
)

// Config holds the PayPal credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	// APIBase is the REST host, e.g. https://api-m.sandbox.paypal.com.
	APIBase string
	Timeout time.Duration
}

// Provider implements provider.PaymentProvider for PayPal orders.
type Provider struct {
	config  Config
	catalog *catalog.Catalog
	client  *http.Client
	logger  *zap.Logger
}

// NewPayPalProvider creates a PayPal provider. The returned client fetches and
// caches OAuth tokens with the client-credentials grant.
func NewPayPalProvider(cfg Config, cat *catalog.Catalog, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.APIBase + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// The token endpoint shares the outbound timeout.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	client := oauthCfg.Client(ctx)
	client.Timeout = cfg.Timeout

	return &Provider{
		config:  cfg,
		catalog: cat,
		client:  client,
		logger:  logger.Named("paypal"),
	}
}

// GetProviderName returns the provider name
func (p *Provider) GetProviderName() string {
	return string(entity.ProviderPayPal)
}

func (p *Provider) WebhookConfigured() bool {
	return p.config.WebhookID != ""
}

func (p *Provider) credentialsConfigured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// customID is the metadata stored on the purchase unit and echoed back on capture.
type customID struct {
	PlanID string `json:"plan_id"`
	Region string `json:"region"`
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type createOrderBody struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []createPurchaseUnit `json:"purchase_units"`
}

type createPurchaseUnit struct {
	Description string `json:"description"`
	Amount      amount `json:"amount"`
	CustomID    string `json:"custom_id"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
	Payer  *payer `json:"payer"`

	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount amount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type payer struct {
	EmailAddress string `json:"email_address"`
	Name         *struct {
		GivenName string `json:"given_name"`
		Surname   string `json:"surname"`
	} `json:"name"`
}

func (p *payer) toEntity() entity.Payer {
	if p == nil {
		return entity.Payer{}
	}
	out := entity.Payer{Email: p.EmailAddress}
	if p.Name != nil {
		out.Name = strings.TrimSpace(p.Name.GivenName + " " + p.Name.Surname)
	}
	return out
}

// CreateOrder creates a CAPTURE intent order priced from the catalog.
// POST /v2/checkout/orders
func (p *Provider) CreateOrder(ctx context.Context, req *provider.CreateOrderRequest) (*provider.OrderHandle, error) {
	if req.PlanID == "" || req.Region == "" {
		return nil, domainerrors.NewInvalidArgument("planId and region are required")
	}
	planID, ok := entity.ParsePlanID(req.PlanID)
	if !ok {
		return nil, domainerrors.NewInvalidArgument("invalid plan: %s", req.PlanID)
	}
	region, ok := entity.ParseRegion(req.Region)
	if !ok {
		return nil, domainerrors.NewInvalidArgument("invalid region: %s", req.Region)
	}

	price, ok := p.catalog.PayPalPrice(planID, region)
	if !ok {
		return nil, domainerrors.NewNotProvisioned("plan %s has no PayPal price for %s", planID, region)
	}
	if !p.credentialsConfigured() {
		return nil, domainerrors.NewUpstreamUnavailable(providerName, errors.New("credentials not configured"))
	}

	meta, err := json.Marshal(customID{PlanID: string(planID), Region: string(region)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode custom_id: %w", err)
	}

	body := createOrderBody{
		Intent: "CAPTURE",
		PurchaseUnits: []createPurchaseUnit{{
			Description: p.catalog.DisplayName(planID),
			Amount:      amount{CurrencyCode: currencyUSD, Value: price.StringFixed(2)},
			CustomID:    string(meta),
		}},
	}

	var order orderResponse
	status, err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &order)
	if err != nil {
		return nil, domainerrors.NewUpstreamUnavailable(providerName, err)
	}
	if status >= 300 {
		return nil, domainerrors.NewUpstreamUnavailable(providerName, fmt.Errorf("create order returned %d", status))
	}

	p.logger.Info("PayPal order created",
		zap.String("order_id", order.ID),
		zap.String("plan_id", string(planID)),
		zap.String("region", string(region)),
		zap.String("amount", price.StringFixed(2)))

	return &provider.OrderHandle{
		OrderID:    order.ID,
		ApproveURL: approveLink(order.Links),
	}, nil
}

func approveLink(links []link) string {
	for _, l := range links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// CaptureOrder captures an approved order.
// POST /v2/checkout/orders/{id}/capture
func (p *Provider) CaptureOrder(ctx context.Context, orderID string) (*provider.CaptureResult, error) {
	if orderID == "" {
		return nil, domainerrors.NewInvalidArgument("orderID is required")
	}
	if !p.credentialsConfigured() {
		return nil, domainerrors.NewUpstreamUnavailable(providerName, errors.New("credentials not configured"))
	}

	var order orderResponse
	status, err := p.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", nil, &order)
	switch {
	case err != nil:
		return nil, domainerrors.NewUpstreamUnavailable(providerName, err)
	case status >= 500:
		return nil, domainerrors.NewUpstreamUnavailable(providerName, fmt.Errorf("capture returned %d", status))
	case status >= 400:
		return nil, domainerrors.NewUpstreamRejected(providerName, fmt.Sprintf("capture returned %d", status), nil)
	}

	if order.Status != statusCompleted {
		p.logger.Warn("PayPal capture not completed",
			zap.String("order_id", orderID),
			zap.String("status", order.Status))
		return nil, domainerrors.NewUpstreamRejected(providerName,
			"payment not completed, status "+order.Status, domainerrors.ErrPaymentNotCompleted)
	}

	result := &provider.CaptureResult{
		OrderID:  orderID,
		Status:   order.Status,
		Currency: currencyUSD,
		PlanID:   entity.PlanBasic,
		PriceKey: string(entity.RegionLatam),
		Payer:    order.Payer.toEntity(),
	}

	if len(order.PurchaseUnits) > 0 {
		unit := order.PurchaseUnits[0]
		if meta, ok := p.parseCustomID(unit.CustomID); ok {
			result.PlanID = entity.PlanFromMetadata(meta.PlanID)
			if meta.Region != "" {
				result.PriceKey = meta.Region
			}
		}
		if len(unit.Payments.Captures) > 0 {
			capture := unit.Payments.Captures[0]
			result.CaptureID = capture.ID
			result.Amount = parseAmount(capture.Amount.Value)
			if capture.Amount.CurrencyCode != "" {
				result.Currency = capture.Amount.CurrencyCode
			}
		}
	}

	p.logger.Info("PayPal order captured",
		zap.String("order_id", orderID),
		zap.String("capture_id", result.CaptureID),
		zap.String("plan_id", string(result.PlanID)))

	return result, nil
}

func (p *Provider) parseCustomID(raw string) (customID, bool) {
	var meta customID
	if raw == "" {
		return meta, false
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		p.logger.Warn("Unparseable PayPal custom_id", zap.String("custom_id", raw))
		return meta, false
	}
	return meta, true
}

// do sends a JSON request and decodes a 2xx response into out.
// Non-2xx responses return their status with a nil error.
func (p *Provider) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.config.APIBase+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error("PayPal request failed",
			zap.String("path", path),
			zap.Error(err))
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		p.logger.Error("PayPal request rejected",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)))
		return resp.StatusCode, nil
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
