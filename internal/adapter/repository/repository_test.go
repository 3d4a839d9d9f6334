package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestCustomerRepository_FindOrCreate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCustomerRepository(db, zap.NewNop())
	ctx := context.Background()

	first, err := repo.FindOrCreate(ctx, "ana@example.com", strPtr("Ana Lopez"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)

	second, err := repo.FindOrCreate(ctx, "ana@example.com", strPtr("Someone Else"), nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Name)
	assert.Equal(t, "Ana Lopez", *second.Name, "name is only set on insert")

	missing, err := repo.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing, "email match is exact")

	var count int64
	require.NoError(t, db.Model(&model.Customer{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func newPurchase(customerID uuid.UUID, orderID string) *entity.Purchase {
	return &entity.Purchase{
		CustomerID: customerID,
		Provider:   entity.ProviderPayPal,
		OrderID:    orderID,
		PlanType:   entity.PlanBasic,
		Amount:     decimal.RequireFromString("19.00"),
		Currency:   "USD",
		Status:     entity.PurchaseStatusCompleted,
	}
}

func TestPurchaseRepository_CreateIfAbsent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPurchaseRepository(db, zap.NewNop())
	ctx := context.Background()
	customerID := uuid.New()

	p := newPurchase(customerID, "ORDER-1")
	created, err := repo.CreateIfAbsent(ctx, p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, uuid.Nil, p.ID)

	dup := newPurchase(customerID, "ORDER-1")
	dup.Amount = decimal.NewFromInt(999)
	created, err = repo.CreateIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.GetByOrderID(ctx, "ORDER-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, decimal.RequireFromString("19").Equal(stored.Amount))
	assert.Equal(t, entity.PlanBasic, stored.PlanType)
	assert.Equal(t, entity.ProviderPayPal, stored.Provider)

	none, err := repo.GetByOrderID(ctx, "ORDER-X")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPurchaseRepository_ConcurrentInsert(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPurchaseRepository(db, zap.NewNop())
	ctx := context.Background()
	customerID := uuid.New()

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := repo.CreateIfAbsent(ctx, newPurchase(customerID, "ORDER-RACE"))
			assert.NoError(t, err)
			results[i] = created
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, created := range results {
		if created {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	var count int64
	require.NoError(t, db.Model(&model.Purchase{}).Where("order_id = ?", "ORDER-RACE").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPurchaseRepository_TransitionAndCapture(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPurchaseRepository(db, zap.NewNop())
	ctx := context.Background()

	p := newPurchase(uuid.New(), "ORDER-2")
	_, err := repo.CreateIfAbsent(ctx, p)
	require.NoError(t, err)

	require.NoError(t, repo.SetCaptureID(ctx, p.ID, "CAP-1"))
	require.NoError(t, repo.SetCaptureID(ctx, p.ID, "CAP-2"))

	byCapture, err := repo.GetByCaptureID(ctx, "CAP-1")
	require.NoError(t, err)
	require.NotNil(t, byCapture, "capture id is only filled once")

	ok, err := repo.TransitionStatus(ctx, p.ID, entity.PurchaseStatusCompleted, entity.PurchaseStatusRefunded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, p.ID, entity.PurchaseStatusCompleted, entity.PurchaseStatusFailed)
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status must not apply")

	stored, err := repo.GetByOrderID(ctx, "ORDER-2")
	require.NoError(t, err)
	assert.Equal(t, entity.PurchaseStatusRefunded, stored.Status)
}

func TestPurchaseRepository_LatestCompletedByCustomer(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPurchaseRepository(db, zap.NewNop())
	ctx := context.Background()
	customerID := uuid.New()

	none, err := repo.LatestCompletedByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Nil(t, none)

	older := newPurchase(customerID, "ORDER-OLD")
	_, err = repo.CreateIfAbsent(ctx, older)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.Purchase{}).Where("id = ?", older.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	newer := newPurchase(customerID, "ORDER-NEW")
	_, err = repo.CreateIfAbsent(ctx, newer)
	require.NoError(t, err)

	refunded := newPurchase(customerID, "ORDER-REFUNDED")
	refunded.Status = entity.PurchaseStatusRefunded
	_, err = repo.CreateIfAbsent(ctx, refunded)
	require.NoError(t, err)

	latest, err := repo.LatestCompletedByCustomer(ctx, customerID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "ORDER-NEW", latest.OrderID)
}

func TestBookingRepository_Create(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewBookingRepository(db, zap.NewNop())
	ctx := context.Background()
	purchaseID := uuid.New()

	b := &entity.Booking{PurchaseID: purchaseID, ExternalBookingID: strPtr("uid-1"), Status: entity.BookingStatusScheduled}
	created, err := repo.Create(ctx, b)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, &entity.Booking{PurchaseID: purchaseID, ExternalBookingID: strPtr("uid-1"), Status: entity.BookingStatusScheduled})
	require.NoError(t, err)
	assert.False(t, created)

	// Bookings without an external id are never duplicates of each other.
	for i := 0; i < 2; i++ {
		created, err = repo.Create(ctx, &entity.Booking{PurchaseID: purchaseID, Status: entity.BookingStatusScheduled})
		require.NoError(t, err)
		assert.True(t, created)
	}

	ok, err := repo.TransitionStatus(ctx, b.ID, entity.BookingStatusScheduled, entity.BookingStatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, stored.Status)
}

func TestBookingRepository_RequiresParentPurchase(t *testing.T) {
	db := testutil.NewTestDBWithForeignKeys(t)
	customers := NewCustomerRepository(db, zap.NewNop())
	purchases := NewPurchaseRepository(db, zap.NewNop())
	bookings := NewBookingRepository(db, zap.NewNop())
	ctx := context.Background()

	created, err := bookings.Create(ctx, &entity.Booking{PurchaseID: uuid.New(), ExternalBookingID: strPtr("uid-orphan"), Status: entity.BookingStatusScheduled})
	require.Error(t, err)
	assert.False(t, created)

	_, err = purchases.CreateIfAbsent(ctx, newPurchase(uuid.New(), "ORDER-ORPHAN"))
	require.Error(t, err)

	customer, err := customers.FindOrCreate(ctx, "ana@example.com", nil, nil)
	require.NoError(t, err)
	purchase := newPurchase(customer.ID, "ORDER-1")
	created, err = purchases.CreateIfAbsent(ctx, purchase)
	require.NoError(t, err)
	require.True(t, created)

	created, err = bookings.Create(ctx, &entity.Booking{PurchaseID: purchase.ID, ExternalBookingID: strPtr("uid-1"), Status: entity.BookingStatusScheduled})
	require.NoError(t, err)
	assert.True(t, created)

	var n int64
	require.NoError(t, db.Model(&model.Booking{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestReviewRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReviewRepository(db, zap.NewNop())
	ctx := context.Background()

	item := &entity.ReviewItem{
		Source:    "paypal",
		Reason:    entity.ReviewUnmatchedPayment,
		Reference: "ORDER-9",
		Details:   map[string]interface{}{"plan_id": "gamer", "amount": "32.00"},
	}
	created, err := repo.Add(ctx, item)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entity.ReviewStatusOpen, item.Status)

	created, err = repo.Add(ctx, &entity.ReviewItem{Source: "paypal", Reason: entity.ReviewUnmatchedPayment, Reference: "ORDER-9"})
	require.NoError(t, err)
	assert.False(t, created)

	open, err := repo.List(ctx, entity.ReviewStatusOpen, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "gamer", open[0].Details["plan_id"])

	ok, err := repo.Resolve(ctx, item.ID, "refunded manually", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Resolve(ctx, item.ID, "again", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReviewStatusResolved, stored.Status)
	require.NotNil(t, stored.ResolutionNote)
	assert.Equal(t, "refunded manually", *stored.ResolutionNote)

	open, err = repo.List(ctx, entity.ReviewStatusOpen, 10)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReviewRepository_ResolveByReference(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReviewRepository(db, zap.NewNop())
	ctx := context.Background()

	for _, item := range []*entity.ReviewItem{
		{Source: "paypal", Reason: entity.ReviewUnmatchedPayment, Reference: "ORDER-1"},
		{Source: "stripe", Reason: entity.ReviewUnmatchedPayment, Reference: "ORDER-1"},
		{Source: "paypal", Reason: entity.ReviewMissingPayerEmail, Reference: "ORDER-1"},
	} {
		_, err := repo.Add(ctx, item)
		require.NoError(t, err)
	}

	ok, err := repo.ResolveByReference(ctx, "paypal", entity.ReviewUnmatchedPayment, "ORDER-1", "recorded by capture", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ResolveByReference(ctx, "paypal", entity.ReviewUnmatchedPayment, "ORDER-1", "again", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ResolveByReference(ctx, "paypal", entity.ReviewUnmatchedPayment, "ORDER-2", "none", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	open, err := repo.List(ctx, entity.ReviewStatusOpen, 0)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, item := range open {
		assert.False(t, item.Source == "paypal" && item.Reason == entity.ReviewUnmatchedPayment)
	}
}

func TestWebhookRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewWebhookRepository(db, zap.NewNop())
	ctx := context.Background()
	payload := json.RawMessage(`{"id":"WH-1"}`)

	event, err := repo.Record(ctx, "paypal", "WH-1", "PAYMENT.CAPTURE.COMPLETED", payload)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStatusPending, event.Status)

	require.NoError(t, repo.MarkFailed(ctx, "paypal", "WH-1", errors.New("db down")))

	event, err = repo.Record(ctx, "paypal", "WH-1", "PAYMENT.CAPTURE.COMPLETED", payload)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStatusFailed, event.Status)
	require.NotNil(t, event.LastError)
	assert.Equal(t, "db down", *event.LastError)

	require.NoError(t, repo.MarkProcessed(ctx, "paypal", "WH-1"))

	event, err = repo.GetEvent(ctx, "paypal", "WH-1")
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStatusCompleted, event.Status)
	assert.Equal(t, 2, event.Attempts)
	assert.NotNil(t, event.ProcessedAt)

	// Same event id from another provider is a different receipt.
	other, err := repo.Record(ctx, "stripe", "WH-1", "charge.refunded", payload)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStatusPending, other.Status)

	assert.Error(t, repo.MarkProcessed(ctx, "paypal", "missing"))
}
