package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
)

type reviewRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewReviewRepository creates a new review queue repository
func NewReviewRepository(db *gorm.DB, logger *zap.Logger) repository.ReviewRepository {
	return &reviewRepository{
		db:     db,
		logger: logger,
	}
}

func (r *reviewRepository) Add(ctx context.Context, item *entity.ReviewItem) (bool, error) {
	details, err := json.Marshal(item.Details)
	if err != nil {
		return false, fmt.Errorf("failed to encode review details: %w", err)
	}

	status := item.Status
	if status == "" {
		status = entity.ReviewStatusOpen
	}

	row := &model.ReviewItem{
		Source:    item.Source,
		Reason:    string(item.Reason),
		Reference: item.Reference,
		Details:   datatypes.JSON(details),
		Status:    string(status),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "reason"}, {Name: "reference"}},
			DoNothing: true,
		}).
		Create(row)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		r.logger.Error("Failed to insert review item",
			zap.String("reason", string(item.Reason)),
			zap.String("reference", item.Reference),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to insert review item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	*item = *reviewToEntity(row)
	return true, nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ReviewItem, error) {
	var item model.ReviewItem

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get review item: %w", err)
	}

	return reviewToEntity(&item), nil
}

func (r *reviewRepository) List(ctx context.Context, status entity.ReviewStatus, limit int) ([]*entity.ReviewItem, error) {
	var rows []*model.ReviewItem

	query := r.db.WithContext(ctx).Order("created_at ASC")
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&rows).Error; err != nil {
		r.logger.Error("Failed to list review items", zap.Error(err))
		return nil, fmt.Errorf("failed to list review items: %w", err)
	}

	items := make([]*entity.ReviewItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, reviewToEntity(row))
	}
	return items, nil
}

func (r *reviewRepository) Resolve(ctx context.Context, id uuid.UUID, note string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReviewItem{}).
		Where("id = ? AND status = ?", id, string(entity.ReviewStatusOpen)).
		Updates(map[string]interface{}{
			"status":          string(entity.ReviewStatusResolved),
			"resolution_note": note,
			"resolved_at":     at,
		})
	if result.Error != nil {
		r.logger.Error("Failed to resolve review item",
			zap.String("review_id", id.String()),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to resolve review item: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *reviewRepository) ResolveByReference(ctx context.Context, source string, reason entity.ReviewReason, reference, note string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReviewItem{}).
		Where("source = ? AND reason = ? AND reference = ? AND status = ?",
			source, string(reason), reference, string(entity.ReviewStatusOpen)).
		Updates(map[string]interface{}{
			"status":          string(entity.ReviewStatusResolved),
			"resolution_note": note,
			"resolved_at":     at,
		})
	if result.Error != nil {
		r.logger.Error("Failed to resolve review item by reference",
			zap.String("reason", string(reason)),
			zap.String("reference", reference),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to resolve review item: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func reviewToEntity(m *model.ReviewItem) *entity.ReviewItem {
	var details map[string]interface{}
	if len(m.Details) > 0 {
		_ = json.Unmarshal(m.Details, &details)
	}
	return &entity.ReviewItem{
		ID:             m.ID,
		Source:         m.Source,
		Reason:         entity.ReviewReason(m.Reason),
		Reference:      m.Reference,
		Details:        details,
		Status:         entity.ReviewStatus(m.Status),
		ResolutionNote: m.ResolutionNote,
		CreatedAt:      m.CreatedAt,
		ResolvedAt:     m.ResolvedAt,
	}
}
