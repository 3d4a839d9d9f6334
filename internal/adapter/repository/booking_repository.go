package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
)

type bookingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *gorm.DB, logger *zap.Logger) repository.BookingRepository {
	return &bookingRepository{
		db:     db,
		logger: logger,
	}
}

// Create relies on the unique external booking id; a redelivered booking is not an error.
func (r *bookingRepository) Create(ctx context.Context, b *entity.Booking) (bool, error) {
	row := &model.Booking{
		ID:                b.ID,
		PurchaseID:        b.PurchaseID,
		ExternalBookingID: b.ExternalBookingID,
		ScheduledDate:     b.ScheduledDate,
		Status:            string(b.Status),
		Notes:             b.Notes,
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		r.logger.Error("Failed to insert booking",
			zap.String("purchase_id", b.PurchaseID.String()),
			zap.Error(err))
		return false, fmt.Errorf("failed to insert booking: %w", err)
	}

	*b = *bookingToEntity(row)
	return true, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	var booking model.Booking

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get booking",
			zap.String("booking_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return bookingToEntity(&booking), nil
}

func (r *bookingRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		r.logger.Error("Failed to update booking status",
			zap.String("booking_id", id.String()),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to update booking status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func bookingToEntity(m *model.Booking) *entity.Booking {
	return &entity.Booking{
		ID:                m.ID,
		PurchaseID:        m.PurchaseID,
		ExternalBookingID: m.ExternalBookingID,
		ScheduledDate:     m.ScheduledDate,
		Status:            entity.BookingStatus(m.Status),
		Notes:             m.Notes,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
