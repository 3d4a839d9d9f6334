package usecase_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
)

func TestReviewService_ListAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := &entity.ReviewItem{Source: "paypal", Reason: entity.ReviewUnmatchedPayment, Reference: "ORDER-1"}
	created, err := f.repos.Reviews.Add(ctx, item)
	require.NoError(t, err)
	require.True(t, created)

	items, err := f.reviews.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = f.reviews.List(ctx, "closed", 10)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))

	resolved, err := f.reviews.Resolve(ctx, item.ID, "  refunded manually ")
	require.NoError(t, err)
	assert.Equal(t, entity.ReviewStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionNote)
	assert.Equal(t, "refunded manually", *resolved.ResolutionNote)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = f.reviews.Resolve(ctx, item.ID, "again")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))
	assert.ErrorIs(t, err, domainerrors.ErrReviewAlreadyResolved)

	_, err = f.reviews.Resolve(ctx, uuid.New(), "note")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	open, err := f.reviews.List(ctx, "open", 10)
	require.NoError(t, err)
	assert.Empty(t, open)

	done, err := f.reviews.List(ctx, "resolved", 10)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func TestReviewService_UpdateBookingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.paypal.On("CaptureOrder", mock.Anything, "ORDER-S").Return(paypalCapture("ORDER-S", "ana@example.com"), nil)
	_, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-S")
	require.NoError(t, err)
	require.True(t, f.bookings.HandleBookingEvent(ctx, bookingCreated("uid-s", "ana@example.com")).Processed)

	var bookingID uuid.UUID
	require.NoError(t, f.db.Table("bookings").Select("id").Row().Scan(&bookingID))

	_, err = f.reviews.UpdateBookingStatus(ctx, bookingID, "finished")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))

	booking, err := f.reviews.UpdateBookingStatus(ctx, bookingID, "completed")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, booking.Status)

	_, err = f.reviews.UpdateBookingStatus(ctx, bookingID, "cancelled")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))
	assert.ErrorIs(t, err, domainerrors.ErrIllegalTransition)

	_, err = f.reviews.UpdateBookingStatus(ctx, uuid.New(), "completed")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
