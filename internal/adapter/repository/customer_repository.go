package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
)

type customerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB, logger *zap.Logger) repository.CustomerRepository {
	return &customerRepository{
		db:     db,
		logger: logger,
	}
}

// FindOrCreate inserts the customer when absent and always re-reads the stored row,
// so two concurrent first payments converge on a single customer.
func (r *customerRepository) FindOrCreate(ctx context.Context, email string, name, phone *string) (*entity.Customer, error) {
	customer := &model.Customer{
		Email: email,
		Name:  name,
		Phone: phone,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(customer).Error
	if err != nil && !isUniqueViolation(err) {
		r.logger.Error("Failed to insert customer",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}

	stored, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("customer %s vanished after insert", email)
	}
	return stored, nil
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*entity.Customer, error) {
	var customer model.Customer

	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get customer by email",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return customerToEntity(&customer), nil
}

func customerToEntity(m *model.Customer) *entity.Customer {
	return &entity.Customer{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		Phone:     m.Phone,
		CreatedAt: m.CreatedAt,
	}
}
