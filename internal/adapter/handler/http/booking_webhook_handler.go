package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/usecase"
	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
)

// Booking source authentication headers.
const (
	HeaderWebhookSecret = "X-Webhook-Secret"
	HeaderCalSignature  = "X-Cal-Signature-256"
)

type BookingWebhookConfig struct {
	Secret string
	// RequireSecret rejects every delivery while Secret is empty.
	RequireSecret bool
}

// BookingWebhookHandler receives Cal.com booking webhooks.
type BookingWebhookHandler struct {
	bookings BookingService
	config   BookingWebhookConfig
	logger   *zap.Logger
}

func NewBookingWebhookHandler(bookings BookingService, config BookingWebhookConfig, logger *zap.Logger) *BookingWebhookHandler {
	return &BookingWebhookHandler{
		bookings: bookings,
		config:   config,
		logger:   logger,
	}
}

type calcomAttendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone,omitempty"`
}

type calcomWebhook struct {
	TriggerEvent string `json:"triggerEvent"`
	CreatedAt    string `json:"createdAt"`
	Payload      struct {
		BookingID *int64           `json:"bookingId"`
		UID       string           `json:"uid"`
		Title     string           `json:"title"`
		StartTime string           `json:"startTime"`
		EndTime   string           `json:"endTime"`
		Attendees []calcomAttendee `json:"attendees"`
		Status    string           `json:"status"`
	} `json:"payload"`
}

// BookingWebhookResponse is the acknowledgment body.
type BookingWebhookResponse struct {
	Received  bool   `json:"received"`
	Processed bool   `json:"processed"`
	Reason    string `json:"reason,omitempty"`
}

// HandleCalcomWebhook handles POST /api/webhooks/calcom. Only authentication
// failures are refused; everything else is acknowledged with 200.
func (h *BookingWebhookHandler) HandleCalcomWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading booking webhook body", zap.Error(err))
		return c.JSON(http.StatusOK, BookingWebhookResponse{Received: true, Reason: usecase.ReasonInternalError})
	}

	if h.config.Secret == "" {
		if h.config.RequireSecret {
			h.logger.Error("Booking webhook secret required but not configured")
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "Webhook not configured",
				"code":  apperrors.ErrInternal,
			})
		}
		h.logger.Warn("Booking webhook secret not configured, accepting unauthenticated delivery")
	} else if !h.authenticated(c.Request().Header, body) {
		h.logger.Warn("Booking webhook authentication failed")
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Unauthorized",
			"code":  apperrors.ErrUnauthenticated,
		})
	}

	var payload calcomWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Error("Malformed booking webhook", zap.Error(err))
		return c.JSON(http.StatusOK, BookingWebhookResponse{Received: true, Reason: usecase.ReasonInternalError})
	}

	h.logger.Info("Booking webhook received", zap.String("trigger", payload.TriggerEvent))

	result := h.process(c.Request().Context(), &payload)
	return c.JSON(http.StatusOK, BookingWebhookResponse{
		Received:  true,
		Processed: result.Processed,
		Reason:    result.Reason,
	})
}

// process reports a panic in booking handling as an unprocessed internal_error result.
func (h *BookingWebhookHandler) process(ctx context.Context, payload *calcomWebhook) (result usecase.BookingResult) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Booking webhook handling panicked",
				zap.String("trigger", payload.TriggerEvent),
				zap.Any("panic", r),
				zap.Stack("stack"))
			result = usecase.BookingResult{Reason: usecase.ReasonInternalError}
		}
	}()
	return h.bookings.HandleBookingEvent(ctx, h.toEvent(payload))
}

// authenticated accepts the shared secret in either header, or a hex
// HMAC-SHA256 of the body keyed with it in the signature header.
func (h *BookingWebhookHandler) authenticated(headers http.Header, body []byte) bool {
	secret := []byte(h.config.Secret)

	if v := headers.Get(HeaderWebhookSecret); v != "" && subtle.ConstantTimeCompare([]byte(v), secret) == 1 {
		return true
	}

	sig := headers.Get(HeaderCalSignature)
	if sig == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(sig), secret) == 1 {
		return true
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected))
}

func (h *BookingWebhookHandler) toEvent(p *calcomWebhook) *entity.BookingEvent {
	event := &entity.BookingEvent{
		Trigger: p.TriggerEvent,
		Title:   p.Payload.Title,
	}

	if len(p.Payload.Attendees) > 0 {
		event.AttendeeEmail = strings.TrimSpace(p.Payload.Attendees[0].Email)
		event.AttendeeName = strings.TrimSpace(p.Payload.Attendees[0].Name)
	}

	switch {
	case p.Payload.UID != "":
		uid := p.Payload.UID
		event.ExternalBookingID = &uid
	case p.Payload.BookingID != nil:
		id := strconv.FormatInt(*p.Payload.BookingID, 10)
		event.ExternalBookingID = &id
	}

	if p.Payload.StartTime != "" {
		start, err := time.Parse(time.RFC3339, p.Payload.StartTime)
		if err != nil {
			h.logger.Warn("Unparseable booking start time",
				zap.String("start_time", p.Payload.StartTime),
				zap.Error(err))
		} else {
			event.ScheduledDate = &start
		}
	}

	return event
}
