package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
)

const (
	defaultReviewLimit = 50
	maxReviewLimit     = 200
)

// ReviewService is the operator side of the ledger: the manual review
// queue and booking status changes.
type ReviewService struct {
	reviews  repository.ReviewRepository
	bookings repository.BookingRepository
	now      func() time.Time
	logger   *zap.Logger
}

func NewReviewService(repos repository.Repositories, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		reviews:  repos.Reviews,
		bookings: repos.Bookings,
		now:      time.Now,
		logger:   logger,
	}
}

// List returns review items with status, oldest first. An empty status means open.
func (s *ReviewService) List(ctx context.Context, status string, limit int) ([]*entity.ReviewItem, error) {
	reviewStatus := entity.ReviewStatusOpen
	switch entity.ReviewStatus(strings.ToLower(status)) {
	case "", entity.ReviewStatusOpen:
	case entity.ReviewStatusResolved:
		reviewStatus = entity.ReviewStatusResolved
	default:
		return nil, domainerrors.NewInvalidArgument("unknown review status %q", status)
	}

	if limit < 1 {
		limit = defaultReviewLimit
	} else if limit > maxReviewLimit {
		limit = maxReviewLimit
	}

	return s.reviews.List(ctx, reviewStatus, limit)
}

// Resolve closes an open review item with an operator note.
func (s *ReviewService) Resolve(ctx context.Context, id uuid.UUID, note string) (*entity.ReviewItem, error) {
	item, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domainerrors.NewNotFound("review item %s not found", id)
	}
	if item.Status == entity.ReviewStatusResolved {
		return nil, alreadyResolved()
	}

	ok, err := s.reviews.Resolve(ctx, id, strings.TrimSpace(note), s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alreadyResolved()
	}

	s.logger.Info("Review item resolved",
		zap.String("review_id", id.String()),
		zap.String("reason", string(item.Reason)),
		zap.String("reference", item.Reference))

	return s.reviews.GetByID(ctx, id)
}

// UpdateBookingStatus moves a booking along its status table.
func (s *ReviewService) UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status string) (*entity.Booking, error) {
	next, ok := entity.ParseBookingStatus(status)
	if !ok {
		return nil, domainerrors.NewInvalidArgument("unknown booking status %q", status)
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domainerrors.NewNotFound("booking %s not found", bookingID)
	}

	if !booking.Status.CanTransitionTo(next) {
		return nil, illegalBookingTransition(booking.Status, next)
	}

	moved, err := s.bookings.TransitionStatus(ctx, bookingID, booking.Status, next)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, illegalBookingTransition(booking.Status, next)
	}

	s.logger.Info("Booking status changed",
		zap.String("booking_id", bookingID.String()),
		zap.String("from", string(booking.Status)),
		zap.String("to", string(next)))

	return s.bookings.GetByID(ctx, bookingID)
}

func alreadyResolved() error {
	return apperrors.NewAppError(apperrors.ErrInvalidArgument, "review item already resolved", domainerrors.ErrReviewAlreadyResolved)
}

func illegalBookingTransition(from, to entity.BookingStatus) error {
	return apperrors.NewAppError(apperrors.ErrInvalidArgument,
		"booking cannot move from "+string(from)+" to "+string(to), domainerrors.ErrIllegalTransition)
}
