package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/notification"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/provider"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
	"github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/provider/paypal"
	"github.com/pcoptimize/pcoptimize-backend/internal/usecase"
	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
)

func paypalCapture(orderID, email string) *provider.CaptureResult {
	return &provider.CaptureResult{
		OrderID:   orderID,
		CaptureID: "CAP-" + orderID,
		Status:    "COMPLETED",
		Amount:    decimal.RequireFromString("19.00"),
		Currency:  "USD",
		PlanID:    entity.PlanBasic,
		PriceKey:  "latam",
		Payer:     entity.Payer{Email: email, Name: "Ana Lopez"},
	}
}

func stripeCompleted(eventID, sessionID string) *entity.PaymentEvent {
	return &entity.PaymentEvent{
		Provider:  entity.ProviderStripe,
		EventID:   eventID,
		Type:      "checkout.session.completed",
		Kind:      entity.PaymentEventCompleted,
		OrderID:   sessionID,
		CaptureID: "pi_" + sessionID,
		Amount:    decimal.RequireFromString("45.00"),
		Currency:  "USD",
		PlanID:    entity.PlanGamer,
		PriceKey:  "USD",
		Payer:     &entity.Payer{Email: "bob@example.com", Name: "Bob Smith"},
		Raw:       json.RawMessage(`{"id":"` + eventID + `"}`),
	}
}

func TestPaymentService_CapturePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("records customer and purchase", func(t *testing.T) {
		f := newFixture(t)
		f.paypal.On("CaptureOrder", mock.Anything, "ORDER-1").Return(paypalCapture("ORDER-1", "ana@example.com"), nil)

		resp, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-1")
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "ORDER-1", resp.OrderID)
		assert.Equal(t, testBaseURL+"/exito?order_id=ORDER-1", resp.RedirectURL)
		assert.Empty(t, resp.Warning)

		purchase, err := f.repos.Purchases.GetByOrderID(ctx, "ORDER-1")
		require.NoError(t, err)
		require.NotNil(t, purchase)
		assert.Equal(t, entity.PurchaseStatusCompleted, purchase.Status)
		assert.Equal(t, entity.PlanBasic, purchase.PlanType)
		assert.True(t, decimal.RequireFromString("19").Equal(purchase.Amount))
		require.NotNil(t, purchase.CaptureID)
		assert.Equal(t, "CAP-ORDER-1", *purchase.CaptureID)

		customer, err := f.repos.Customers.GetByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		require.NotNil(t, customer)
		assert.Equal(t, customer.ID, purchase.CustomerID)

		sent := f.notifier.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, notification.PaymentConfirmed, sent[0].Kind)
		assert.Equal(t, "ana@example.com", sent[0].To.Email)
		assert.Equal(t, "PCOptimize - Plan Básico", sent[0].Data.PlanName)
		assert.Equal(t, "19.00", sent[0].Data.Amount)
		assert.Equal(t, []string{usecase.ChannelPurchaseCompleted}, f.publisher.Channels())
	})

	t.Run("repeated capture notifies once", func(t *testing.T) {
		f := newFixture(t)
		f.paypal.On("CaptureOrder", mock.Anything, "ORDER-2").Return(paypalCapture("ORDER-2", "ana@example.com"), nil)

		for i := 0; i < 2; i++ {
			resp, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-2")
			require.NoError(t, err)
			assert.Empty(t, resp.Warning)
		}

		assert.Equal(t, int64(1), f.purchaseCount(t))
		assert.Equal(t, int64(1), f.customerCount(t))
		assert.Len(t, f.notifier.Sent(), 1)
	})

	t.Run("missing payer email", func(t *testing.T) {
		f := newFixture(t)
		f.paypal.On("CaptureOrder", mock.Anything, "ORDER-3").Return(paypalCapture("ORDER-3", ""), nil)

		resp, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-3")
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, usecase.WarningMissingPayerEmail, resp.Warning)

		assert.Zero(t, f.purchaseCount(t))
		assert.Zero(t, f.customerCount(t))
		assert.Empty(t, f.notifier.Sent())

		items, err := f.repos.Reviews.List(ctx, entity.ReviewStatusOpen, 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, entity.ReviewMissingPayerEmail, items[0].Reason)
		assert.Equal(t, "ORDER-3", items[0].Reference)
	})

	t.Run("provider rejection writes nothing", func(t *testing.T) {
		f := newFixture(t)
		rejected := domainerrors.NewUpstreamRejected("paypal", "status PENDING", domainerrors.ErrPaymentNotCompleted)
		f.paypal.On("CaptureOrder", mock.Anything, "ORDER-4").Return(nil, rejected)

		resp, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-4")
		assert.Nil(t, resp)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUpstreamRejected))
		assert.ErrorIs(t, err, domainerrors.ErrPaymentNotCompleted)
		assert.Zero(t, f.purchaseCount(t))
		assert.Empty(t, f.notifier.Sent())
	})

	t.Run("empty order id", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "  ")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))
		f.paypal.AssertNotCalled(t, "CaptureOrder", mock.Anything, mock.Anything)
	})

	t.Run("ledger failure is a warning", func(t *testing.T) {
		f := newFixture(t)
		f.repos.Customers = failingCustomers{f.repos.Customers}
		f.build()
		f.paypal.On("CaptureOrder", mock.Anything, "ORDER-5").Return(paypalCapture("ORDER-5", "ana@example.com"), nil)

		resp, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-5")
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, usecase.WarningPersistenceWarning, resp.Warning)
		assert.Empty(t, f.notifier.Sent())
	})

	t.Run("unknown provider", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.payments.CapturePayment(ctx, "mercadopago", "ORDER-6")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))
		assert.ErrorIs(t, err, domainerrors.ErrUnknownProvider)
	})
}

func TestPaymentService_CreateOrder(t *testing.T) {
	f := newFixture(t)
	req := &provider.CreateOrderRequest{PlanID: "gamer", CurrencyCode: "USD"}
	f.stripe.On("CreateOrder", mock.Anything, req).
		Return(&provider.OrderHandle{OrderID: "cs_1", ApproveURL: "https://checkout.stripe.test/cs_1"}, nil)

	handle, err := f.payments.CreateOrder(context.Background(), entity.ProviderStripe, req)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", handle.OrderID)
	assert.Zero(t, f.purchaseCount(t), "order creation does not touch the ledger")

	notProvisioned := domainerrors.NewNotProvisioned("no price")
	bad := &provider.CreateOrderRequest{PlanID: "premium", Region: "latam"}
	f.paypal.On("CreateOrder", mock.Anything, bad).Return(nil, notProvisioned)

	_, err = f.payments.CreateOrder(context.Background(), entity.ProviderPayPal, bad)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotProvisioned))
}

func TestPaymentService_HandlePaymentEvent_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := stripeCompleted("evt_1", "cs_1")

	outcome, err := f.payments.HandlePaymentEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeRecorded, outcome)

	outcome, err = f.payments.HandlePaymentEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeDuplicate, outcome)

	// A new event id for the same session is processed but changes nothing.
	outcome, err = f.payments.HandlePaymentEvent(ctx, stripeCompleted("evt_2", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeUpdated, outcome)

	assert.Equal(t, int64(1), f.purchaseCount(t))
	assert.Len(t, f.notifier.Sent(), 1)

	receipt, err := f.repos.Webhooks.GetEvent(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, model.WebhookStatusCompleted, receipt.Status)
	assert.NotNil(t, receipt.ProcessedAt)
}

func TestPaymentService_HandlePaymentEvent_UnknownOrderWithoutIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.payments.HandlePaymentEvent(ctx, &entity.PaymentEvent{
		Provider:  entity.ProviderPayPal,
		EventID:   "WH-1",
		Type:      "PAYMENT.CAPTURE.COMPLETED",
		Kind:      entity.PaymentEventCompleted,
		OrderID:   "ORDER-X",
		CaptureID: "CAP-X",
		Amount:    decimal.RequireFromString("30.00"),
		Currency:  "USD",
		PlanID:    entity.PlanBasic,
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeNeedsReview, outcome)

	assert.Zero(t, f.purchaseCount(t))
	assert.Zero(t, f.customerCount(t))
	assert.Empty(t, f.notifier.Sent())

	items, err := f.repos.Reviews.List(ctx, entity.ReviewStatusOpen, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entity.ReviewUnmatchedPayment, items[0].Reason)
	assert.Equal(t, "ORDER-X", items[0].Reference)
	assert.Equal(t, "30", items[0].Details["amount"])
}

func openReviews(t *testing.T, f *fixture) []*entity.ReviewItem {
	t.Helper()
	items, err := f.repos.Reviews.List(context.Background(), entity.ReviewStatusOpen, 0)
	require.NoError(t, err)
	return items
}

func TestPaymentService_ApprovalWebhookThenCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parser := paypal.NewPayPalProvider(paypal.Config{}, f.catalog, zap.NewNop())
	approved, err := parser.ParseWebhookEvent([]byte(`{"id":"WH-A1","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-A","purchase_units":[{"custom_id":"{\"plan_id\":\"basic\",\"region\":\"latam\"}","amount":{"currency_code":"USD","value":"19.00"}}]}}`))
	require.NoError(t, err)

	outcome, err := f.payments.HandlePaymentEvent(ctx, approved)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeIgnored, outcome)

	f.paypal.On("CaptureOrder", mock.Anything, "ORDER-A").Return(paypalCapture("ORDER-A", "ana@example.com"), nil)
	resp, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-A")
	require.NoError(t, err)
	assert.Empty(t, resp.Warning)

	assert.Equal(t, int64(1), f.purchaseCount(t))
	assert.Empty(t, openReviews(t, f))
}

func TestPaymentService_CaptureWebhookThenCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.payments.HandlePaymentEvent(ctx, &entity.PaymentEvent{
		Provider:  entity.ProviderPayPal,
		EventID:   "WH-B1",
		Type:      "PAYMENT.CAPTURE.COMPLETED",
		Kind:      entity.PaymentEventCompleted,
		OrderID:   "ORDER-B",
		CaptureID: "CAP-ORDER-B",
		Amount:    decimal.RequireFromString("19.00"),
		Currency:  "USD",
		PlanID:    entity.PlanBasic,
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeNeedsReview, outcome)
	require.Len(t, openReviews(t, f), 1)

	f.paypal.On("CaptureOrder", mock.Anything, "ORDER-B").Return(paypalCapture("ORDER-B", "ana@example.com"), nil)
	resp, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-B")
	require.NoError(t, err)
	assert.Empty(t, resp.Warning)

	assert.Equal(t, int64(1), f.purchaseCount(t))
	assert.Empty(t, openReviews(t, f))

	resolved, err := f.repos.Reviews.List(ctx, entity.ReviewStatusResolved, 0)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "ORDER-B", resolved[0].Reference)
	require.NotNil(t, resolved[0].ResolutionNote)
	assert.Equal(t, "recorded by capture", *resolved[0].ResolutionNote)
	assert.NotNil(t, resolved[0].ResolvedAt)
}

func TestPaymentService_CaptureKeepsOtherReviewsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.HandlePaymentEvent(ctx, &entity.PaymentEvent{
		Provider:  entity.ProviderPayPal,
		EventID:   "WH-C9",
		Type:      "PAYMENT.CAPTURE.COMPLETED",
		Kind:      entity.PaymentEventCompleted,
		OrderID:   "ORDER-OTHER",
		CaptureID: "CAP-OTHER",
	})
	require.NoError(t, err)

	f.paypal.On("CaptureOrder", mock.Anything, "ORDER-C").Return(paypalCapture("ORDER-C", "ana@example.com"), nil)
	_, err = f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-C")
	require.NoError(t, err)

	items := openReviews(t, f)
	require.Len(t, items, 1)
	assert.Equal(t, "ORDER-OTHER", items[0].Reference)
}

func TestPaymentService_HandlePaymentEvent_FillsCaptureID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	capture := paypalCapture("ORDER-7", "ana@example.com")
	capture.CaptureID = ""
	f.paypal.On("CaptureOrder", mock.Anything, "ORDER-7").Return(capture, nil)
	_, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-7")
	require.NoError(t, err)

	outcome, err := f.payments.HandlePaymentEvent(ctx, &entity.PaymentEvent{
		Provider:  entity.ProviderPayPal,
		EventID:   "WH-7",
		Type:      "PAYMENT.CAPTURE.COMPLETED",
		Kind:      entity.PaymentEventCompleted,
		OrderID:   "ORDER-7",
		CaptureID: "CAP-7",
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeUpdated, outcome)

	purchase, err := f.repos.Purchases.GetByOrderID(ctx, "ORDER-7")
	require.NoError(t, err)
	require.NotNil(t, purchase.CaptureID)
	assert.Equal(t, "CAP-7", *purchase.CaptureID)
	assert.Equal(t, entity.PurchaseStatusCompleted, purchase.Status)
	assert.Len(t, f.notifier.Sent(), 1)
}

func TestPaymentService_HandlePaymentEvent_Refund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.paypal.On("CaptureOrder", mock.Anything, "ORDER-8").Return(paypalCapture("ORDER-8", "ana@example.com"), nil)
	_, err := f.payments.CapturePayment(ctx, entity.ProviderPayPal, "ORDER-8")
	require.NoError(t, err)
	before, err := f.repos.Purchases.GetByOrderID(ctx, "ORDER-8")
	require.NoError(t, err)

	refund := &entity.PaymentEvent{
		Provider:  entity.ProviderPayPal,
		EventID:   "WH-R1",
		Type:      "PAYMENT.CAPTURE.REFUNDED",
		Kind:      entity.PaymentEventRefunded,
		CaptureID: "CAP-ORDER-8",
	}
	outcome, err := f.payments.HandlePaymentEvent(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeUpdated, outcome)

	after, err := f.repos.Purchases.GetByOrderID(ctx, "ORDER-8")
	require.NoError(t, err)
	assert.Equal(t, entity.PurchaseStatusRefunded, after.Status)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.CustomerID, after.CustomerID)
	assert.Equal(t, before.PlanType, after.PlanType)
	assert.True(t, before.Amount.Equal(after.Amount))
	assert.Equal(t, before.CaptureID, after.CaptureID)

	// A refunded purchase never completes or fails again.
	outcome, err = f.payments.HandlePaymentEvent(ctx, &entity.PaymentEvent{
		Provider:  entity.ProviderPayPal,
		EventID:   "WH-D1",
		Type:      "PAYMENT.CAPTURE.DENIED",
		Kind:      entity.PaymentEventDenied,
		CaptureID: "CAP-ORDER-8",
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeRejected, outcome)

	outcome, err = f.payments.HandlePaymentEvent(ctx, &entity.PaymentEvent{
		Provider: entity.ProviderPayPal,
		EventID:  "WH-C1",
		Type:     "PAYMENT.CAPTURE.COMPLETED",
		Kind:     entity.PaymentEventCompleted,
		OrderID:  "ORDER-8",
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeRejected, outcome)

	final, err := f.repos.Purchases.GetByOrderID(ctx, "ORDER-8")
	require.NoError(t, err)
	assert.Equal(t, entity.PurchaseStatusRefunded, final.Status)
}

func TestPaymentService_HandlePaymentEvent_RefundUnknownCapture(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.payments.HandlePaymentEvent(context.Background(), &entity.PaymentEvent{
		Provider:  entity.ProviderStripe,
		EventID:   "evt_refund",
		Type:      "charge.refunded",
		Kind:      entity.PaymentEventRefunded,
		CaptureID: "pi_unknown",
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeNotFound, outcome)
	assert.Zero(t, f.purchaseCount(t))
}

func TestPaymentService_HandlePaymentEvent_Ignored(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.payments.HandlePaymentEvent(context.Background(), &entity.PaymentEvent{
		Provider: entity.ProviderStripe,
		EventID:  "evt_other",
		Type:     "customer.created",
		Kind:     entity.PaymentEventIgnored,
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeIgnored, outcome)
}

func TestPaymentService_HandlePaymentEvent_FailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	healthy := f.repos.Purchases
	f.repos.Purchases = failingPurchases{healthy}
	f.build()

	event := stripeCompleted("evt_fail", "cs_fail")
	_, err := f.payments.HandlePaymentEvent(ctx, event)
	require.Error(t, err)

	receipt, err := f.repos.Webhooks.GetEvent(ctx, "stripe", "evt_fail")
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStatusFailed, receipt.Status)
	require.NotNil(t, receipt.LastError)

	f.repos.Purchases = healthy
	f.build()
	outcome, err := f.payments.HandlePaymentEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeRecorded, outcome)
}

func TestPaymentService_CaptureAndWebhookRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.stripe.On("CaptureOrder", mock.Anything, "cs_race").Return(&provider.CaptureResult{
		OrderID:   "cs_race",
		CaptureID: "pi_cs_race",
		Status:    "paid",
		Amount:    decimal.RequireFromString("45.00"),
		Currency:  "USD",
		PlanID:    entity.PlanGamer,
		Payer:     entity.Payer{Email: "bob@example.com", Name: "Bob Smith"},
	}, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		resp, err := f.payments.CapturePayment(ctx, entity.ProviderStripe, "cs_race")
		if assert.NoError(t, err) {
			assert.Empty(t, resp.Warning)
		}
	}()
	go func() {
		defer wg.Done()
		_, err := f.payments.HandlePaymentEvent(ctx, stripeCompleted("evt_race", "cs_race"))
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, int64(1), f.purchaseCount(t))
	assert.Equal(t, int64(1), f.customerCount(t))
	assert.Len(t, f.notifier.Sent(), 1)

	purchase, err := f.repos.Purchases.GetByOrderID(ctx, "cs_race")
	require.NoError(t, err)
	assert.Equal(t, entity.PurchaseStatusCompleted, purchase.Status)
}

type failingCustomers struct {
	repository.CustomerRepository
}

func (failingCustomers) FindOrCreate(context.Context, string, *string, *string) (*entity.Customer, error) {
	return nil, errors.New("connection reset by peer")
}

type failingPurchases struct {
	repository.PurchaseRepository
}

func (failingPurchases) GetByOrderID(context.Context, string) (*entity.Purchase, error) {
	return nil, errors.New("connection reset by peer")
}
