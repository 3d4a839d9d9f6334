package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

// PurchaseRepository is the purchase side of the ledger.
// Lookups return nil, nil when nothing matches.
type PurchaseRepository interface {
	// CreateIfAbsent inserts p unless a purchase with the same order id exists.
	// created is false on conflict and p is left untouched.
	CreateIfAbsent(ctx context.Context, p *entity.Purchase) (created bool, err error)
	GetByOrderID(ctx context.Context, orderID string) (*entity.Purchase, error)
	GetByCaptureID(ctx context.Context, captureID string) (*entity.Purchase, error)
	// LatestCompletedByCustomer returns the newest completed purchase of a customer.
	LatestCompletedByCustomer(ctx context.Context, customerID uuid.UUID) (*entity.Purchase, error)
	// TransitionStatus moves the purchase from one status to another.
	// ok is false when the stored status was no longer from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.PurchaseStatus) (ok bool, err error)
	// SetCaptureID stores captureID when the purchase has none yet.
	SetCaptureID(ctx context.Context, id uuid.UUID, captureID string) error
}
