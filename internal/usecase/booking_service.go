package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/notification"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
	"github.com/pcoptimize/pcoptimize-backend/pkg/messaging"
)

// BookingSource names the scheduling system in review items.
const BookingSource = "calcom"

// Booking webhook reasons.
const (
	ReasonIgnoredTrigger   = "ignored_trigger"
	ReasonNoEmail          = "no_email"
	ReasonNoCustomer       = "no_customer"
	ReasonNoPurchase       = "no_purchase"
	ReasonAlreadyProcessed = "already_processed"
	ReasonInternalError    = "internal_error"
)

const scheduledDateLayout = "2006-01-02 15:04 UTC"

// BookingResult is acknowledged to the booking source as is.
type BookingResult struct {
	Processed bool   `json:"processed"`
	Reason    string `json:"reason,omitempty"`
}

// BookingService attaches bookings to the purchase that paid for them.
type BookingService struct {
	customers    repository.CustomerRepository
	purchases    repository.PurchaseRepository
	bookings     repository.BookingRepository
	reviews      repository.ReviewRepository
	notifier     notification.Notifier
	publisher    messaging.Publisher
	catalog      *catalog.Catalog
	queryTimeout time.Duration
	logger       *zap.Logger
}

func NewBookingService(
	repos repository.Repositories,
	notifier notification.Notifier,
	publisher messaging.Publisher,
	cat *catalog.Catalog,
	queryTimeout time.Duration,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		customers:    repos.Customers,
		purchases:    repos.Purchases,
		bookings:     repos.Bookings,
		reviews:      repos.Reviews,
		notifier:     notifier,
		publisher:    publisher,
		catalog:      cat,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// HandleBookingEvent stores a new booking against the attendee's latest
// completed purchase. It never returns an error; failures are reported as a reason.
func (s *BookingService) HandleBookingEvent(ctx context.Context, event *entity.BookingEvent) BookingResult {
	logger := s.logger.With(zap.String("trigger", event.Trigger), zap.String("email", event.AttendeeEmail))

	if event.Trigger != entity.TriggerBookingCreated {
		logger.Debug("Ignoring booking trigger")
		return BookingResult{Reason: ReasonIgnoredTrigger}
	}
	if event.AttendeeEmail == "" {
		logger.Warn("Booking without attendee email")
		return BookingResult{Reason: ReasonNoEmail}
	}

	lctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	customer, err := s.customers.GetByEmail(lctx, event.AttendeeEmail)
	if err != nil {
		logger.Error("Failed to load customer", zap.Error(err))
		return BookingResult{Reason: ReasonInternalError}
	}
	if customer == nil {
		logger.Warn("Booking from unknown customer")
		return BookingResult{Reason: ReasonNoCustomer}
	}

	purchase, err := s.purchases.LatestCompletedByCustomer(lctx, customer.ID)
	if err != nil {
		logger.Error("Failed to load purchase", zap.Error(err))
		return BookingResult{Reason: ReasonInternalError}
	}
	if purchase == nil {
		logger.Warn("Booking without a completed purchase")
		s.queueBookingWithoutPurchase(lctx, event, logger)
		return BookingResult{Reason: ReasonNoPurchase}
	}

	booking := &entity.Booking{
		PurchaseID:        purchase.ID,
		ExternalBookingID: event.ExternalBookingID,
		ScheduledDate:     event.ScheduledDate,
		Status:            entity.BookingStatusScheduled,
	}
	if event.Title != "" {
		title := event.Title
		booking.Notes = &title
	}

	created, err := s.bookings.Create(lctx, booking)
	if err != nil {
		logger.Error("Failed to insert booking", zap.Error(err))
		return BookingResult{Reason: ReasonInternalError}
	}
	if !created {
		logger.Info("Booking already processed")
		return BookingResult{Processed: true, Reason: ReasonAlreadyProcessed}
	}

	logger.Info("Booking recorded",
		zap.String("booking_id", booking.ID.String()),
		zap.String("order_id", purchase.OrderID))

	name := event.AttendeeName
	if name == "" && customer.Name != nil {
		name = *customer.Name
	}
	data := notification.TemplateData{
		PlanName: s.catalog.DisplayName(purchase.PlanType),
		OrderID:  purchase.OrderID,
	}
	if event.ScheduledDate != nil {
		data.ScheduledDate = event.ScheduledDate.UTC().Format(scheduledDateLayout)
	}
	if !s.notifier.Send(ctx, notification.BookingConfirmed, notification.Recipient{Email: customer.Email, Name: name}, data) {
		logger.Warn("Booking confirmation email not sent")
	}

	published := BookingCreatedEvent{
		BookingID:     booking.ID.String(),
		PurchaseID:    purchase.ID.String(),
		CustomerEmail: customer.Email,
		ScheduledDate: event.ScheduledDate,
		OccurredAt:    time.Now().UTC(),
	}
	if event.ExternalBookingID != nil {
		published.ExternalBookingID = *event.ExternalBookingID
	}
	publish(ctx, s.publisher, logger, ChannelBookingCreated, published)

	return BookingResult{Processed: true}
}

func (s *BookingService) queueBookingWithoutPurchase(ctx context.Context, event *entity.BookingEvent, logger *zap.Logger) {
	reference := event.AttendeeEmail
	if event.ExternalBookingID != nil {
		reference = *event.ExternalBookingID
	}
	details := map[string]interface{}{
		"email": event.AttendeeEmail,
		"name":  event.AttendeeName,
		"title": event.Title,
	}
	if event.ScheduledDate != nil {
		details["scheduled_date"] = event.ScheduledDate.UTC().Format(time.RFC3339)
	}

	if _, err := s.reviews.Add(ctx, &entity.ReviewItem{
		Source:    BookingSource,
		Reason:    entity.ReviewBookingWithoutPurchase,
		Reference: reference,
		Details:   details,
	}); err != nil {
		logger.Error("Failed to queue review item", zap.Error(err))
	}
}
