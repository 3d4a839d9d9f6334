package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pcoptimize/pcoptimize-backend/internal/adapter/repository"
	domainRepo "github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
)

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) domainRepo.Repositories {
	return domainRepo.Repositories{
		Customers: repository.NewCustomerRepository(db, logger),
		Purchases: repository.NewPurchaseRepository(db, logger),
		Bookings:  repository.NewBookingRepository(db, logger),
		Reviews:   repository.NewReviewRepository(db, logger),
		Webhooks:  repository.NewWebhookRepository(db, logger),
	}
}
