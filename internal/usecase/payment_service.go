package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/notification"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/provider"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/repository"
	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
	"github.com/pcoptimize/pcoptimize-backend/pkg/messaging"
)

// Capture warnings. The payer is charged in both cases.
const (
	WarningMissingPayerEmail  = "missing_payer_email"
	WarningPersistenceWarning = "persistence_warning"
)

// PaymentOutcome says what a payment webhook did to the ledger.
type PaymentOutcome string

const (
	OutcomeDuplicate   PaymentOutcome = "duplicate"
	OutcomeUpdated     PaymentOutcome = "updated"
	OutcomeRecorded    PaymentOutcome = "recorded"
	OutcomeNeedsReview PaymentOutcome = "needs_review"
	OutcomeNotFound    PaymentOutcome = "not_found"
	OutcomeRejected    PaymentOutcome = "rejected"
	OutcomeIgnored     PaymentOutcome = "ignored"
)

// ProviderResolver returns the adapter for a provider.
type ProviderResolver interface {
	GetProvider(providerType entity.ProviderType) (provider.PaymentProvider, error)
}

// CaptureResponse is returned to the payer after a capture.
type CaptureResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderID"`
	RedirectURL string `json:"redirectUrl"`
	Warning     string `json:"warning,omitempty"`
}

type PaymentServiceConfig struct {
	// BaseURL is the public site, used for the post-payment redirect.
	BaseURL string
	// QueryTimeout bounds each group of ledger calls. Zero means no bound.
	QueryTimeout time.Duration
}

// PaymentService reconciles captures and payment webhooks with the ledger.
type PaymentService struct {
	providers ProviderResolver
	customers repository.CustomerRepository
	purchases repository.PurchaseRepository
	reviews   repository.ReviewRepository
	webhooks  repository.WebhookRepository
	notifier  notification.Notifier
	publisher messaging.Publisher
	catalog   *catalog.Catalog
	config    PaymentServiceConfig
	logger    *zap.Logger
}

func NewPaymentService(
	repos repository.Repositories,
	providers ProviderResolver,
	notifier notification.Notifier,
	publisher messaging.Publisher,
	cat *catalog.Catalog,
	cfg PaymentServiceConfig,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		providers: providers,
		customers: repos.Customers,
		purchases: repos.Purchases,
		reviews:   repos.Reviews,
		webhooks:  repos.Webhooks,
		notifier:  notifier,
		publisher: publisher,
		catalog:   cat,
		config:    cfg,
		logger:    logger,
	}
}

// CreateOrder starts a checkout with the provider.
func (s *PaymentService) CreateOrder(ctx context.Context, providerType entity.ProviderType, req *provider.CreateOrderRequest) (*provider.OrderHandle, error) {
	p, err := s.resolve(providerType)
	if err != nil {
		return nil, err
	}

	handle, err := p.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("provider", string(providerType)),
		zap.String("order_id", handle.OrderID),
		zap.String("plan_id", req.PlanID))
	return handle, nil
}

// CapturePayment completes a checkout the payer approved and records it.
// Once the provider reports the charge as completed this never fails;
// bookkeeping problems come back as a warning.
func (s *PaymentService) CapturePayment(ctx context.Context, providerType entity.ProviderType, orderID string) (*CaptureResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domainerrors.NewInvalidArgument("order id is required")
	}

	p, err := s.resolve(providerType)
	if err != nil {
		return nil, err
	}

	result, err := p.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if result.OrderID != "" {
		orderID = result.OrderID
	}

	logger := s.logger.With(zap.String("provider", string(providerType)), zap.String("order_id", orderID))
	response := &CaptureResponse{
		Success:     true,
		OrderID:     orderID,
		RedirectURL: s.redirectURL(orderID),
	}

	if result.Payer.Email == "" {
		logger.Warn("Captured payment has no payer email")
		s.addReview(ctx, &entity.ReviewItem{
			Source:    string(providerType),
			Reason:    entity.ReviewMissingPayerEmail,
			Reference: orderID,
			Details: map[string]interface{}{
				"capture_id": result.CaptureID,
				"plan_id":    string(result.PlanID),
				"amount":     result.Amount.String(),
				"currency":   result.Currency,
			},
		})
		response.Warning = WarningMissingPayerEmail
		return response, nil
	}

	_, err = s.recordCompletedPayment(ctx, completedPayment{
		Provider:  providerType,
		OrderID:   orderID,
		CaptureID: result.CaptureID,
		PlanID:    result.PlanID,
		Amount:    result.Amount,
		Currency:  result.Currency,
		Payer:     result.Payer,
	})
	if err != nil {
		apperrors.LogError(logger, domainerrors.NewPersistenceWarning(orderID, err), "Payment captured but not recorded")
		response.Warning = WarningPersistenceWarning
	}

	return response, nil
}

// HandlePaymentEvent applies a verified provider webhook to the ledger.
func (s *PaymentService) HandlePaymentEvent(ctx context.Context, event *entity.PaymentEvent) (PaymentOutcome, error) {
	logger := s.logger.With(
		zap.String("provider", string(event.Provider)),
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.Type),
	)

	if event.EventID != "" {
		receipt, err := s.webhooks.Record(ctx, string(event.Provider), event.EventID, event.Type, event.Raw)
		if err != nil {
			return "", fmt.Errorf("failed to record webhook receipt: %w", err)
		}
		if receipt.ProcessedAt != nil {
			logger.Info("Webhook already processed")
			return OutcomeDuplicate, nil
		}
	} else {
		logger.Warn("Webhook has no event id, processing without receipt")
	}

	outcome, err := s.applyPaymentEvent(ctx, event, logger)

	if event.EventID != "" {
		if err != nil {
			if markErr := s.webhooks.MarkFailed(ctx, string(event.Provider), event.EventID, err); markErr != nil {
				logger.Error("Failed to mark webhook failed", zap.Error(markErr))
			}
		} else if markErr := s.webhooks.MarkProcessed(ctx, string(event.Provider), event.EventID); markErr != nil {
			logger.Error("Failed to mark webhook processed", zap.Error(markErr))
		}
	}

	if err != nil {
		return "", err
	}
	logger.Info("Webhook processed", zap.String("outcome", string(outcome)))
	return outcome, nil
}

func (s *PaymentService) applyPaymentEvent(ctx context.Context, event *entity.PaymentEvent, logger *zap.Logger) (PaymentOutcome, error) {
	switch event.Kind {
	case entity.PaymentEventCompleted:
		return s.applyCompleted(ctx, event, logger)
	case entity.PaymentEventRefunded, entity.PaymentEventDenied:
		return s.applyReversal(ctx, event, logger)
	default:
		logger.Debug("Ignoring webhook event")
		return OutcomeIgnored, nil
	}
}

func (s *PaymentService) applyCompleted(ctx context.Context, event *entity.PaymentEvent, logger *zap.Logger) (PaymentOutcome, error) {
	if event.OrderID == "" {
		logger.Warn("Completed payment without order id", zap.String("capture_id", event.CaptureID))
		return s.queueUnmatched(ctx, event, event.CaptureID)
	}

	lctx, cancel := s.ledgerContext(ctx)
	purchase, err := s.purchases.GetByOrderID(lctx, event.OrderID)
	cancel()
	if err != nil {
		return "", err
	}

	if purchase != nil {
		return s.mergeCompleted(ctx, purchase, event.CaptureID, logger)
	}

	if !event.HasIdentity() {
		logger.Warn("Completed payment for unknown order", zap.String("order_id", event.OrderID))
		return s.queueUnmatched(ctx, event, event.OrderID)
	}

	created, err := s.recordCompletedPayment(ctx, completedPayment{
		Provider:  event.Provider,
		OrderID:   event.OrderID,
		CaptureID: event.CaptureID,
		PlanID:    event.PlanID,
		Amount:    event.Amount,
		Currency:  event.Currency,
		Payer:     *event.Payer,
	})
	if err != nil {
		return "", err
	}
	if created {
		return OutcomeRecorded, nil
	}
	return OutcomeUpdated, nil
}

func (s *PaymentService) applyReversal(ctx context.Context, event *entity.PaymentEvent, logger *zap.Logger) (PaymentOutcome, error) {
	lctx, cancel := s.ledgerContext(ctx)
	defer cancel()

	var purchase *entity.Purchase
	var err error
	if event.CaptureID != "" {
		if purchase, err = s.purchases.GetByCaptureID(lctx, event.CaptureID); err != nil {
			return "", err
		}
	}
	if purchase == nil && event.OrderID != "" {
		if purchase, err = s.purchases.GetByOrderID(lctx, event.OrderID); err != nil {
			return "", err
		}
	}
	if purchase == nil {
		logger.Warn("No purchase for payment event",
			zap.String("kind", event.Kind.String()),
			zap.String("capture_id", event.CaptureID),
			zap.String("order_id", event.OrderID))
		return OutcomeNotFound, nil
	}

	return s.transition(lctx, purchase, event.Kind, logger)
}

// mergeCompleted fills a missing capture id and applies the completed transition.
// Nothing else on an existing purchase is ever overwritten.
func (s *PaymentService) mergeCompleted(ctx context.Context, purchase *entity.Purchase, captureID string, logger *zap.Logger) (PaymentOutcome, error) {
	lctx, cancel := s.ledgerContext(ctx)
	defer cancel()

	if captureID != "" && purchase.CaptureID == nil {
		if err := s.purchases.SetCaptureID(lctx, purchase.ID, captureID); err != nil {
			return "", err
		}
	}
	return s.transition(lctx, purchase, entity.PaymentEventCompleted, logger)
}

// transition applies kind to purchase, retrying once if the stored status moved underneath.
func (s *PaymentService) transition(ctx context.Context, purchase *entity.Purchase, kind entity.PaymentEventKind, logger *zap.Logger) (PaymentOutcome, error) {
	logger = logger.With(zap.String("order_id", purchase.OrderID), zap.String("kind", kind.String()))

	current := purchase
	for attempt := 0; attempt < 2; attempt++ {
		next, ok := entity.NextPurchaseStatus(current.Status, kind)
		if !ok {
			logger.Warn("Rejected purchase transition",
				zap.String("status", string(current.Status)),
				zap.Error(domainerrors.ErrIllegalTransition))
			return OutcomeRejected, nil
		}
		if next == current.Status {
			return OutcomeUpdated, nil
		}

		moved, err := s.purchases.TransitionStatus(ctx, current.ID, current.Status, next)
		if err != nil {
			return "", err
		}
		if moved {
			logger.Info("Purchase status changed",
				zap.String("from", string(current.Status)),
				zap.String("to", string(next)))
			return OutcomeUpdated, nil
		}

		current, err = s.purchases.GetByOrderID(ctx, purchase.OrderID)
		if err != nil {
			return "", err
		}
		if current == nil {
			return OutcomeNotFound, nil
		}
	}

	logger.Warn("Purchase status kept changing, giving up")
	return OutcomeRejected, nil
}

func (s *PaymentService) queueUnmatched(ctx context.Context, event *entity.PaymentEvent, reference string) (PaymentOutcome, error) {
	if reference == "" {
		reference = event.EventID
	}
	details := map[string]interface{}{
		"event_id":   event.EventID,
		"event_type": event.Type,
		"order_id":   event.OrderID,
		"capture_id": event.CaptureID,
		"plan_id":    string(event.PlanID),
		"currency":   event.Currency,
	}
	if !event.Amount.IsZero() {
		details["amount"] = event.Amount.String()
	}

	lctx, cancel := s.ledgerContext(ctx)
	defer cancel()
	created, err := s.reviews.Add(lctx, &entity.ReviewItem{
		Source:    string(event.Provider),
		Reason:    entity.ReviewUnmatchedPayment,
		Reference: reference,
		Details:   details,
	})
	if err != nil {
		return "", err
	}
	if !created || event.OrderID == "" || reference != event.OrderID {
		return OutcomeNeedsReview, nil
	}

	// A capture may have recorded the order between the lookup and the insert above.
	purchase, err := s.purchases.GetByOrderID(lctx, event.OrderID)
	if err != nil {
		return "", err
	}
	if purchase == nil {
		return OutcomeNeedsReview, nil
	}
	s.resolveUnmatched(ctx, event.Provider, event.OrderID)
	return s.mergeCompleted(ctx, purchase, event.CaptureID, s.logger.With(zap.String("provider", string(event.Provider))))
}

// resolveUnmatched closes the unmatched payment item for an order that now has a purchase.
func (s *PaymentService) resolveUnmatched(ctx context.Context, providerType entity.ProviderType, orderID string) {
	lctx, cancel := s.ledgerContext(ctx)
	defer cancel()

	ok, err := s.reviews.ResolveByReference(lctx, string(providerType), entity.ReviewUnmatchedPayment,
		orderID, unmatchedResolutionNote, time.Now().UTC())
	if err != nil {
		s.logger.Error("Failed to resolve unmatched payment review",
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}
	if ok {
		s.logger.Info("Unmatched payment review resolved", zap.String("order_id", orderID))
	}
}

const unmatchedResolutionNote = "recorded by capture"

type completedPayment struct {
	Provider  entity.ProviderType
	OrderID   string
	CaptureID string
	PlanID    entity.PlanID
	Amount    decimal.Decimal
	Currency  string
	Payer     entity.Payer
}

// recordCompletedPayment upserts the customer and the purchase for a completed payment.
// created is true only for the call that inserted the purchase; that call alone
// notifies the payer and publishes the event.
func (s *PaymentService) recordCompletedPayment(ctx context.Context, payment completedPayment) (created bool, err error) {
	logger := s.logger.With(zap.String("provider", string(payment.Provider)), zap.String("order_id", payment.OrderID))

	lctx, cancel := s.ledgerContext(ctx)
	defer cancel()

	var name *string
	if payment.Payer.Name != "" {
		name = &payment.Payer.Name
	}
	customer, err := s.customers.FindOrCreate(lctx, payment.Payer.Email, name, nil)
	if err != nil {
		return false, fmt.Errorf("failed to upsert customer: %w", err)
	}

	if payment.PlanID == "" {
		payment.PlanID = entity.PlanBasic
	}
	purchase := &entity.Purchase{
		CustomerID: customer.ID,
		Provider:   payment.Provider,
		OrderID:    payment.OrderID,
		PlanType:   payment.PlanID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		Status:     entity.PurchaseStatusCompleted,
	}
	if payment.CaptureID != "" {
		purchase.CaptureID = &payment.CaptureID
	}

	created, err = s.purchases.CreateIfAbsent(lctx, purchase)
	if err != nil {
		return false, fmt.Errorf("failed to insert purchase: %w", err)
	}

	if !created {
		existing, err := s.purchases.GetByOrderID(lctx, payment.OrderID)
		if err != nil {
			return false, fmt.Errorf("failed to load existing purchase: %w", err)
		}
		if existing == nil {
			return false, fmt.Errorf("purchase %s vanished after conflict", payment.OrderID)
		}
		if _, err := s.mergeCompleted(ctx, existing, payment.CaptureID, logger); err != nil {
			return false, fmt.Errorf("failed to merge purchase: %w", err)
		}
		logger.Info("Purchase already recorded, merged")
		return false, nil
	}

	s.resolveUnmatched(ctx, payment.Provider, payment.OrderID)

	logger.Info("Purchase recorded",
		zap.String("purchase_id", purchase.ID.String()),
		zap.String("plan_id", string(purchase.PlanType)),
		zap.String("amount", purchase.Amount.String()))

	sent := s.notifier.Send(ctx, notification.PaymentConfirmed,
		notification.Recipient{Email: customer.Email, Name: payment.Payer.Name},
		notification.TemplateData{
			PlanName: s.catalog.DisplayName(purchase.PlanType),
			Amount:   purchase.Amount.StringFixed(2),
			Currency: purchase.Currency,
			OrderID:  purchase.OrderID,
		})
	if !sent {
		logger.Warn("Payment confirmation email not sent")
	}

	publish(ctx, s.publisher, logger, ChannelPurchaseCompleted, PurchaseCompletedEvent{
		PurchaseID:    purchase.ID.String(),
		OrderID:       purchase.OrderID,
		Provider:      string(purchase.Provider),
		PlanID:        string(purchase.PlanType),
		Amount:        purchase.Amount.String(),
		Currency:      purchase.Currency,
		CustomerEmail: customer.Email,
		OccurredAt:    time.Now().UTC(),
	})

	return true, nil
}

func (s *PaymentService) addReview(ctx context.Context, item *entity.ReviewItem) {
	lctx, cancel := s.ledgerContext(ctx)
	defer cancel()

	created, err := s.reviews.Add(lctx, item)
	if err != nil {
		s.logger.Error("Failed to queue review item",
			zap.String("reason", string(item.Reason)),
			zap.String("reference", item.Reference),
			zap.Error(err))
		return
	}
	if created {
		s.logger.Info("Review item queued",
			zap.String("reason", string(item.Reason)),
			zap.String("reference", item.Reference))
	}
}

func (s *PaymentService) resolve(providerType entity.ProviderType) (provider.PaymentProvider, error) {
	p, err := s.providers.GetProvider(providerType)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidArgument, "unsupported payment provider", err)
	}
	return p, nil
}

func (s *PaymentService) redirectURL(orderID string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/exito?order_id=" + url.QueryEscape(orderID)
}

func (s *PaymentService) ledgerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withQueryTimeout(ctx, s.config.QueryTimeout)
}

func withQueryTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
