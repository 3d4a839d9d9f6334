package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	domainerrors "github.com/pcoptimize/pcoptimize-backend/internal/domain/errors"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/provider"
	"github.com/pcoptimize/pcoptimize-backend/internal/usecase"
	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
)

// PaymentService is the payment side of the reconciliation core.
type PaymentService interface {
	CreateOrder(ctx context.Context, providerType entity.ProviderType, req *provider.CreateOrderRequest) (*provider.OrderHandle, error)
	CapturePayment(ctx context.Context, providerType entity.ProviderType, orderID string) (*usecase.CaptureResponse, error)
	HandlePaymentEvent(ctx context.Context, event *entity.PaymentEvent) (usecase.PaymentOutcome, error)
}

type BookingService interface {
	HandleBookingEvent(ctx context.Context, event *entity.BookingEvent) usecase.BookingResult
}

type ReviewService interface {
	List(ctx context.Context, status string, limit int) ([]*entity.ReviewItem, error)
	Resolve(ctx context.Context, id uuid.UUID, note string) (*entity.ReviewItem, error)
	UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status string) (*entity.Booking, error)
}

// RequestValidator plugs go-playground/validator into echo.Context.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if apperrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return domainerrors.NewInvalidArgument("%s is required", fe.Field())
		case "max":
			return domainerrors.NewInvalidArgument("%s must be at most %s characters", fe.Field(), fe.Param())
		default:
			return domainerrors.NewInvalidArgument("%s is invalid", fe.Field())
		}
	}
	return domainerrors.NewInvalidArgument("invalid request: %v", err)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.NewInvalidArgument("invalid request body")
	}
	return c.Validate(req)
}

// errorResponse writes the {error, code} body for err. Server side failures
// are logged at error level, client mistakes at warn.
func errorResponse(c echo.Context, logger *zap.Logger, err error, msg string) error {
	status, body := apperrors.ToHTTPResponse(err)
	if status >= http.StatusInternalServerError {
		apperrors.LogError(logger, err, msg, zap.String("path", c.Path()))
	} else {
		logger.Warn(msg, zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, body)
}
