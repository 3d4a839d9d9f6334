package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/usecase"
	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
)

// WebhookHandler receives payment provider webhooks. Once a signature is
// verified the delivery is always acknowledged; failures stay in the receipt log.
type WebhookHandler struct {
	providers usecase.ProviderResolver
	payments  PaymentService
	logger    *zap.Logger
}

func NewWebhookHandler(providers usecase.ProviderResolver, payments PaymentService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		providers: providers,
		payments:  payments,
		logger:    logger,
	}
}

// HandleStripeWebhook handles POST /api/webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c echo.Context) error {
	return h.handle(c, entity.ProviderStripe)
}

// HandlePayPalWebhook handles POST /api/webhooks/paypal
func (h *WebhookHandler) HandlePayPalWebhook(c echo.Context) error {
	return h.handle(c, entity.ProviderPayPal)
}

func (h *WebhookHandler) handle(c echo.Context, providerType entity.ProviderType) error {
	logger := h.logger.With(zap.String("provider", string(providerType)))

	p, err := h.providers.GetProvider(providerType)
	if err != nil {
		return errorResponse(c, logger, err, "Webhook provider not available")
	}

	if !p.WebhookConfigured() {
		logger.Error("Webhook credential not configured")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Webhook not configured",
			"code":  apperrors.ErrInternal,
		})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Error reading request body",
			"code":  apperrors.ErrInvalidArgument,
		})
	}

	if !p.VerifyWebhookSignature(c.Request().Context(), body, c.Request().Header) {
		logger.Warn("Webhook signature verification failed")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid webhook signature",
			"code":  apperrors.ErrInvalidArgument,
		})
	}

	event, err := p.ParseWebhookEvent(body)
	if err != nil {
		logger.Error("Failed to parse verified webhook", zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	logger.Info("Webhook event received",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.Type),
		zap.String("kind", event.Kind.String()))

	outcome, err := h.payments.HandlePaymentEvent(c.Request().Context(), event)
	if err != nil {
		logger.Error("Failed to process webhook",
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	logger.Debug("Webhook handled",
		zap.String("event_id", event.EventID),
		zap.String("outcome", string(outcome)))
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
