package repository

import (
	"context"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

type CustomerRepository interface {
	// FindOrCreate returns the customer with email, inserting it when absent.
	// Name and phone are only used on insert.
	FindOrCreate(ctx context.Context, email string, name, phone *string) (*entity.Customer, error)
	GetByEmail(ctx context.Context, email string) (*entity.Customer, error)
}
