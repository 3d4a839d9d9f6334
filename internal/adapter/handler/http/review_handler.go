package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	"github.com/pcoptimize/pcoptimize-backend/internal/middleware/auth"
)

// ReviewHandler serves the operator routes under /api/v1/internal.
type ReviewHandler struct {
	reviews ReviewService
	logger  *zap.Logger
}

func NewReviewHandler(reviews ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews: reviews,
		logger:  logger,
	}
}

type ReviewItemResponse struct {
	ID             string                 `json:"id"`
	Source         string                 `json:"source"`
	Reason         string                 `json:"reason"`
	Reference      string                 `json:"reference"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Status         string                 `json:"status"`
	ResolutionNote *string                `json:"resolution_note,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	ResolvedAt     *time.Time             `json:"resolved_at,omitempty"`
}

type ResolveReviewRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type BookingResponse struct {
	ID                string     `json:"id"`
	PurchaseID        string     `json:"purchase_id"`
	ExternalBookingID *string    `json:"external_booking_id,omitempty"`
	ScheduledDate     *time.Time `json:"scheduled_date,omitempty"`
	Status            string     `json:"status"`
	Notes             *string    `json:"notes,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ListReviews handles GET /api/v1/internal/reviews
func (h *ReviewHandler) ListReviews(c echo.Context) error {
	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return errorResponse(c, h.logger, domainerrors.NewInvalidArgument("limit must be a number"), "Invalid review list request")
		}
		limit = parsed
	}

	items, err := h.reviews.List(c.Request().Context(), c.QueryParam("status"), limit)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to list review items")
	}

	out := make([]ReviewItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toReviewItemResponse(item))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": out,
		"count": len(out),
	})
}

// ResolveReview handles POST /api/v1/internal/reviews/:id/resolve
func (h *ReviewHandler) ResolveReview(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorResponse(c, h.logger, domainerrors.NewInvalidArgument("invalid review id"), "Invalid resolve request")
	}

	var req ResolveReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid resolve request")
	}

	item, err := h.reviews.Resolve(c.Request().Context(), id, req.Note)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to resolve review item")
	}

	if operator, err := auth.GetOperatorFromContext(c); err == nil {
		h.logger.Info("Review item resolved by operator",
			zap.String("review_id", id.String()),
			zap.String("operator", operator.Subject))
	}

	return c.JSON(http.StatusOK, toReviewItemResponse(item))
}

// UpdateBookingStatus handles PATCH /api/v1/internal/bookings/:id/status
func (h *ReviewHandler) UpdateBookingStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorResponse(c, h.logger, domainerrors.NewInvalidArgument("invalid booking id"), "Invalid booking status request")
	}

	var req UpdateBookingStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid booking status request")
	}

	booking, err := h.reviews.UpdateBookingStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to update booking status")
	}

	return c.JSON(http.StatusOK, BookingResponse{
		ID:                booking.ID.String(),
		PurchaseID:        booking.PurchaseID.String(),
		ExternalBookingID: booking.ExternalBookingID,
		ScheduledDate:     booking.ScheduledDate,
		Status:            string(booking.Status),
		Notes:             booking.Notes,
		UpdatedAt:         booking.UpdatedAt,
	})
}

func toReviewItemResponse(item *entity.ReviewItem) ReviewItemResponse {
	return ReviewItemResponse{
		ID:             item.ID.String(),
		Source:         item.Source,
		Reason:         string(item.Reason),
		Reference:      item.Reference,
		Details:        item.Details,
		Status:         string(item.Status),
		ResolutionNote: item.ResolutionNote,
		CreatedAt:      item.CreatedAt,
		ResolvedAt:     item.ResolvedAt,
	}
}
