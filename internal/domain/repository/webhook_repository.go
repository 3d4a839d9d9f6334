package repository

import (
	"context"
	"encoding/json"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
)

// WebhookRepository stores webhook receipts keyed by provider and event id.
type WebhookRepository interface {
	// Record inserts the receipt if absent and returns the stored row.
	Record(ctx context.Context, provider, eventID, eventType string, payload json.RawMessage) (*model.WebhookEvent, error)
	GetEvent(ctx context.Context, provider, eventID string) (*model.WebhookEvent, error)
	MarkProcessed(ctx context.Context, provider, eventID string) error
	MarkFailed(ctx context.Context, provider, eventID string, err error) error
}
