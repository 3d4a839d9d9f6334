package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
)

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookRepository creates a new webhook receipt repository
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

// Record saves the receipt once; redeliveries return the existing row.
func (r *webhookRepository) Record(ctx context.Context, provider, eventID, eventType string, payload json.RawMessage) (*model.WebhookEvent, error) {
	if !json.Valid(payload) {
		payload = json.RawMessage("null")
	}

	event := &model.WebhookEvent{
		Provider:  provider,
		EventID:   eventID,
		EventType: eventType,
		Status:    model.WebhookStatusPending,
		Payload:   datatypes.JSON(payload),
	}

	// Use ON CONFLICT to handle duplicate deliveries
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(event).Error
	if err != nil && !isUniqueViolation(err) {
		r.logger.Error("Failed to save webhook event",
			zap.String("provider", provider),
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save webhook event: %w", err)
	}

	stored, err := r.GetEvent(ctx, provider, eventID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("webhook event %s/%s not found after insert", provider, eventID)
	}
	return stored, nil
}

// GetEvent retrieves a webhook receipt
func (r *webhookRepository) GetEvent(ctx context.Context, provider, eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent

	err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook event",
			zap.String("provider", provider),
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return &event, nil
}

// MarkProcessed marks a webhook receipt as processed
func (r *webhookRepository) MarkProcessed(ctx context.Context, provider, eventID string) error {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(map[string]interface{}{
			"status":       model.WebhookStatusCompleted,
			"processed_at": &now,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   nil,
		})
	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as processed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as processed: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s/%s", provider, eventID)
	}

	return nil
}

// MarkFailed records the processing error; the receipt stays eligible for redelivery.
func (r *webhookRepository) MarkFailed(ctx context.Context, provider, eventID string, cause error) error {
	errorMsg := cause.Error()

	result := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(map[string]interface{}{
			"status":     model.WebhookStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": &errorMsg,
		})
	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as failed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as failed: %w", result.Error)
	}

	return nil
}
