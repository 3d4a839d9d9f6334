package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
)

type purchaseRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db *gorm.DB, logger *zap.Logger) repository.PurchaseRepository {
	return &purchaseRepository{
		db:     db,
		logger: logger,
	}
}

func (r *purchaseRepository) CreateIfAbsent(ctx context.Context, p *entity.Purchase) (bool, error) {
	row := purchaseToModel(p)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(row)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		r.logger.Error("Failed to insert purchase",
			zap.String("order_id", p.OrderID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to insert purchase: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	*p = *purchaseToEntity(row)
	return true, nil
}

func (r *purchaseRepository) GetByOrderID(ctx context.Context, orderID string) (*entity.Purchase, error) {
	return r.first(ctx, "order_id = ?", orderID)
}

func (r *purchaseRepository) GetByCaptureID(ctx context.Context, captureID string) (*entity.Purchase, error) {
	return r.first(ctx, "capture_id = ?", captureID)
}

func (r *purchaseRepository) LatestCompletedByCustomer(ctx context.Context, customerID uuid.UUID) (*entity.Purchase, error) {
	var purchase model.Purchase

	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, string(entity.PurchaseStatusCompleted)).
		Order("created_at DESC").
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get latest completed purchase",
			zap.String("customer_id", customerID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get latest purchase: %w", err)
	}

	return purchaseToEntity(&purchase), nil
}

// TransitionStatus is a compare-and-set on status so racing transitions cannot both apply.
func (r *purchaseRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.PurchaseStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		r.logger.Error("Failed to update purchase status",
			zap.String("purchase_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to update purchase status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *purchaseRepository) SetCaptureID(ctx context.Context, id uuid.UUID, captureID string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("id = ? AND capture_id IS NULL", id).
		Update("capture_id", captureID).Error
	if err != nil {
		r.logger.Error("Failed to set capture id",
			zap.String("purchase_id", id.String()),
			zap.Error(err))
		return fmt.Errorf("failed to set capture id: %w", err)
	}
	return nil
}

func (r *purchaseRepository) first(ctx context.Context, query string, arg interface{}) (*entity.Purchase, error) {
	var purchase model.Purchase

	err := r.db.WithContext(ctx).Where(query, arg).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get purchase",
			zap.String("query", query),
			zap.Any("arg", arg),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	return purchaseToEntity(&purchase), nil
}

func purchaseToModel(p *entity.Purchase) *model.Purchase {
	return &model.Purchase{
		ID:         p.ID,
		CustomerID: p.CustomerID,
		Provider:   string(p.Provider),
		OrderID:    p.OrderID,
		CaptureID:  p.CaptureID,
		PlanType:   string(p.PlanType),
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     string(p.Status),
	}
}

func purchaseToEntity(m *model.Purchase) *entity.Purchase {
	return &entity.Purchase{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Provider:   entity.ProviderType(m.Provider),
		OrderID:    m.OrderID,
		CaptureID:  m.CaptureID,
		PlanType:   entity.PlanID(m.PlanType),
		Amount:     m.Amount,
		Currency:   m.Currency,
		Status:     entity.PurchaseStatus(m.Status),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
