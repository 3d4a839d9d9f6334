package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

type BookingRepository interface {
	// Create inserts b. created is false when the external booking id already exists.
	Create(ctx context.Context, b *entity.Booking) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus) (ok bool, err error)
}
