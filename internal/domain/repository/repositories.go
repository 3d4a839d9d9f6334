package repository

// Repositories groups the ledger repositories handed to the use cases.
type Repositories struct {
	Customers CustomerRepository
	Purchases PurchaseRepository
	Bookings  BookingRepository
	Reviews   ReviewRepository
	Webhooks  WebhookRepository
}
