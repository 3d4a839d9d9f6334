package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	handlers "github.com/pcoptimize/pcoptimize-backend/internal/adapter/handler/http"
	"github.com/pcoptimize/pcoptimize-backend/internal/config"
	"github.com/pcoptimize/pcoptimize-backend/internal/middleware/auth"
	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
	"github.com/pcoptimize/pcoptimize-backend/pkg/logger"
)

const (
	metricsSubsystem = "pcoptimize"
	bodyLimit        = "1M"
	rateLimitExpiry  = 3 * time.Minute
)

// OperatorRoles may call the internal review routes.
var OperatorRoles = []string{"operator", "admin"}

// Handlers bundles the transport handlers mounted by the server.
type Handlers struct {
	Payments *handlers.PaymentHandler
	Webhooks *handlers.WebhookHandler
	Bookings *handlers.BookingWebhookHandler
	Reviews  *handlers.ReviewHandler
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	handlers Handlers
	registry *prometheus.Registry
}

func NewServer(cfg *config.Config, log *zap.Logger, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()
	logger.WithEchoLogger(e, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins(cfg.Service),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		handlers: h,
		registry: registry,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := s.config.Server.HTTP.Addr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})
	s.echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: s.registry,
	}))

	api := s.echo.Group("/api")
	limited := s.rateLimiter()

	// Payer facing checkout routes
	api.POST("/paypal/create-order", s.handlers.Payments.CreatePayPalOrder, limited)
	api.POST("/paypal/capture-order", s.handlers.Payments.CapturePayPalOrder, limited)
	api.POST("/checkout", s.handlers.Payments.CreateCheckout, limited)
	api.POST("/checkout/confirm", s.handlers.Payments.ConfirmCheckout, limited)

	// Provider and scheduler webhooks authenticate themselves
	webhooks := api.Group("/webhooks")
	webhooks.POST("/stripe", s.handlers.Webhooks.HandleStripeWebhook)
	webhooks.POST("/paypal", s.handlers.Webhooks.HandlePayPalWebhook)
	webhooks.POST("/calcom", s.handlers.Bookings.HandleCalcomWebhook)

	// Operator routes
	internal := api.Group("/v1/internal", auth.JWTMiddleware(auth.JWTConfig{
		Secret: s.config.Auth.JWTSecret,
		Logger: s.logger,
		Roles:  OperatorRoles,
	}))
	internal.GET("/reviews", s.handlers.Reviews.ListReviews)
	internal.POST("/reviews/:id/resolve", s.handlers.Reviews.ResolveReview)
	internal.PATCH("/bookings/:id/status", s.handlers.Reviews.UpdateBookingStatus)
}

// rateLimiter limits payer routes per client IP. A non-positive rate disables it.
func (s *Server) rateLimiter() echo.MiddlewareFunc {
	limit := s.config.Server.RateLimit
	if limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	burst := s.config.Server.RateBurst
	if burst <= 0 {
		burst = max(int(limit), 1)
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(limit),
			Burst:     burst,
			ExpiresIn: rateLimitExpiry,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Unable to identify client", "code": apperrors.ErrUnauthorized})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.logger.Warn("Rate limit exceeded",
				zap.String("ip", identifier),
				zap.String("path", c.Path()))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "Too many requests", "code": apperrors.ErrRateLimited})
		},
	})
}

func allowedOrigins(svc config.ServiceConfig) []string {
	var origins []string
	for _, origin := range []string{svc.ClientURL, svc.BaseURL} {
		if origin != "" && !slices.Contains(origins, origin) {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
