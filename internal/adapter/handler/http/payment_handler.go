package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/provider"
)

// PaymentHandler serves order creation and capture for both providers.
type PaymentHandler struct {
	payments PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

type CreatePayPalOrderRequest struct {
	PlanID string `json:"planId" validate:"required"`
	Region string `json:"region" validate:"required"`
}

type CreatePayPalOrderResponse struct {
	OrderID    string `json:"orderID"`
	ApproveURL string `json:"approveUrl"`
}

type CapturePayPalOrderRequest struct {
	OrderID string `json:"orderID" validate:"required"`
}

type CreateCheckoutRequest struct {
	PlanID       string `json:"planId" validate:"required"`
	CurrencyCode string `json:"currencyCode" validate:"required"`
}

type CreateCheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type ConfirmCheckoutRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// CreatePayPalOrder handles POST /api/paypal/create-order
func (h *PaymentHandler) CreatePayPalOrder(c echo.Context) error {
	var req CreatePayPalOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid create order request")
	}

	handle, err := h.payments.CreateOrder(c.Request().Context(), entity.ProviderPayPal, &provider.CreateOrderRequest{
		PlanID: req.PlanID,
		Region: req.Region,
	})
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to create PayPal order")
	}

	return c.JSON(http.StatusCreated, CreatePayPalOrderResponse{
		OrderID:    handle.OrderID,
		ApproveURL: handle.ApproveURL,
	})
}

// CapturePayPalOrder handles POST /api/paypal/capture-order
func (h *PaymentHandler) CapturePayPalOrder(c echo.Context) error {
	var req CapturePayPalOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid capture request")
	}

	resp, err := h.payments.CapturePayment(c.Request().Context(), entity.ProviderPayPal, req.OrderID)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to capture PayPal order")
	}

	return c.JSON(http.StatusOK, resp)
}

// CreateCheckout handles POST /api/checkout
func (h *PaymentHandler) CreateCheckout(c echo.Context) error {
	var req CreateCheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid checkout request")
	}

	handle, err := h.payments.CreateOrder(c.Request().Context(), entity.ProviderStripe, &provider.CreateOrderRequest{
		PlanID:       req.PlanID,
		CurrencyCode: req.CurrencyCode,
	})
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to create checkout session")
	}

	return c.JSON(http.StatusOK, CreateCheckoutResponse{
		URL:       handle.ApproveURL,
		SessionID: handle.OrderID,
	})
}

// ConfirmCheckout handles POST /api/checkout/confirm
func (h *PaymentHandler) ConfirmCheckout(c echo.Context) error {
	var req ConfirmCheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid checkout confirmation")
	}

	resp, err := h.payments.CapturePayment(c.Request().Context(), entity.ProviderStripe, req.SessionID)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to confirm checkout session")
	}

	return c.JSON(http.StatusOK, resp)
}
