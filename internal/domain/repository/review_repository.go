package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

type ReviewRepository interface {
	// Add records item. created is false when the same source, reason and reference is already queued.
	Add(ctx context.Context, item *entity.ReviewItem) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ReviewItem, error)
	List(ctx context.Context, status entity.ReviewStatus, limit int) ([]*entity.ReviewItem, error)
	// Resolve closes an open item. ok is false when it was not open.
	Resolve(ctx context.Context, id uuid.UUID, note string, at time.Time) (ok bool, err error)
	// ResolveByReference closes the open item keyed by source, reason and reference.
	ResolveByReference(ctx context.Context, source string, reason entity.ReviewReason, reference, note string, at time.Time) (ok bool, err error)
}
