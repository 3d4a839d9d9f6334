package usecase_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	adapterrepo "github.com/pcoptimize/pcoptimize-backend/internal/adapter/repository"
	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/notification"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/provider"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
	providerfactory "github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/provider"
	"github.com/pcoptimize/pcoptimize-backend/internal/testutil"
	"github.com/pcoptimize/pcoptimize-backend/internal/usecase"
)

const testBaseURL = "https://pcoptimize.test"

// MockProvider is a mock implementation of provider.PaymentProvider
type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) CreateOrder(ctx context.Context, req *provider.CreateOrderRequest) (*provider.OrderHandle, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.OrderHandle), args.Error(1)
}

func (m *MockProvider) CaptureOrder(ctx context.Context, orderID string) (*provider.CaptureResult, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CaptureResult), args.Error(1)
}

func (m *MockProvider) VerifyWebhookSignature(ctx context.Context, body []byte, headers http.Header) bool {
	return m.Called(ctx, body, headers).Bool(0)
}

func (m *MockProvider) ParseWebhookEvent(body []byte) (*entity.PaymentEvent, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PaymentEvent), args.Error(1)
}

func (m *MockProvider) WebhookConfigured() bool { return true }

func (m *MockProvider) GetProviderName() string { return m.name }

type sentEmail struct {
	Kind notification.Kind
	To   notification.Recipient
	Data notification.TemplateData
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (n *recordingNotifier) Send(_ context.Context, kind notification.Kind, to notification.Recipient, data notification.TemplateData) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEmail{Kind: kind, To: to, Data: data})
	return true
}

func (n *recordingNotifier) Sent() []sentEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEmail(nil), n.sent...)
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.channels...)
}

type fixture struct {
	db        *gorm.DB
	repos     repository.Repositories
	catalog   *catalog.Catalog
	paypal    *MockProvider
	stripe    *MockProvider
	notifier  *recordingNotifier
	publisher *recordingPublisher
	payments  *usecase.PaymentService
	bookings  *usecase.BookingService
	reviews   *usecase.ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	logger := zap.NewNop()
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		db: db,
		repos: repository.Repositories{
			Customers: adapterrepo.NewCustomerRepository(db, logger),
			Purchases: adapterrepo.NewPurchaseRepository(db, logger),
			Bookings:  adapterrepo.NewBookingRepository(db, logger),
			Reviews:   adapterrepo.NewReviewRepository(db, logger),
			Webhooks:  adapterrepo.NewWebhookRepository(db, logger),
		},
		catalog:   cat,
		paypal:    &MockProvider{name: string(entity.ProviderPayPal)},
		stripe:    &MockProvider{name: string(entity.ProviderStripe)},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	f.build()
	return f
}

// build (re)creates the services over the current repositories.
func (f *fixture) build() {
	logger := zap.NewNop()
	providers := providerfactory.NewFactoryWith(f.paypal, f.stripe)
	f.payments = usecase.NewPaymentService(f.repos, providers, f.notifier, f.publisher, f.catalog,
		usecase.PaymentServiceConfig{BaseURL: testBaseURL}, logger)
	f.bookings = usecase.NewBookingService(f.repos, f.notifier, f.publisher, f.catalog, 0, logger)
	f.reviews = usecase.NewReviewService(f.repos, logger)
}

func (f *fixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func (f *fixture) purchaseCount(t *testing.T) int64 { return f.count(t, &model.Purchase{}) }

func (f *fixture) customerCount(t *testing.T) int64 { return f.count(t, &model.Customer{}) }

func (f *fixture) bookingCount(t *testing.T) int64 { return f.count(t, &model.Booking{}) }
