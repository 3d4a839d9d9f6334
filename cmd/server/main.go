package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	handlers "github.com/pcoptimize/pcoptimize-backend/internal/adapter/handler/http"
	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/config"
	"github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/database"
	grpcServer "github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/grpc"
	httpServer "github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/http"
	"github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/mail"
	providerfactory "github.com/pcoptimize/pcoptimize-backend/internal/infrastructure/provider"
	"github.com/pcoptimize/pcoptimize-backend/internal/usecase"
	"github.com/pcoptimize/pcoptimize-backend/pkg/logger"
	"github.com/pcoptimize/pcoptimize-backend/pkg/messaging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Error("Server stopped with error", zap.Error(err))
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	if err := cat.OverrideStripePrices(cfg.Service.Stripe.PriceIDs); err != nil {
		return err
	}
	for _, p := range cat.StripePrices() {
		if catalog.IsPlaceholder(p.PriceID) {
			zapLogger.Warn("Stripe price not provisioned",
				zap.String("plan", string(p.Plan)),
				zap.String("currency", p.Currency))
		}
	}

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, zapLogger); err != nil {
			return err
		}
	}

	repos := database.NewRepositories(db, zapLogger)

	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.Redis.Enabled {
		redisClient, err := messaging.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ChannelPrefix)
		if err != nil {
			zapLogger.Warn("Redis unavailable, domain events disabled", zap.Error(err))
		} else {
			publisher = redisClient
		}
	}
	defer publisher.Close()

	notifier, err := mail.NewNotifier(mail.Config{
		SMTPHost:   cfg.Mail.SMTPHost,
		SMTPPort:   cfg.Mail.SMTPPort,
		SMTPUser:   cfg.Mail.SMTPUser,
		SMTPKey:    cfg.Mail.SMTPKey,
		FromName:   cfg.Mail.FromName,
		FromEmail:  cfg.Mail.FromEmail,
		BookingURL: cfg.Mail.BookingURL,
	}, zapLogger)
	if err != nil {
		return err
	}

	providers := providerfactory.NewFactory(cfg, cat, zapLogger)

	payments := usecase.NewPaymentService(repos, providers, notifier, publisher, cat, usecase.PaymentServiceConfig{
		BaseURL:      cfg.Service.BaseURL,
		QueryTimeout: cfg.Database.QueryTimeout,
	}, zapLogger)
	bookings := usecase.NewBookingService(repos, notifier, publisher, cat, cfg.Database.QueryTimeout, zapLogger)
	reviews := usecase.NewReviewService(repos, zapLogger)

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, zapLogger)
	httpSrv := httpServer.NewServer(cfg, zapLogger, httpServer.Handlers{
		Payments: handlers.NewPaymentHandler(payments, zapLogger),
		Webhooks: handlers.NewWebhookHandler(providers, payments, zapLogger),
		Bookings: handlers.NewBookingWebhookHandler(bookings, handlers.BookingWebhookConfig{
			Secret:        cfg.Service.BookingWebhookSecret,
			RequireSecret: cfg.Service.RequireBookingSecret,
		}, zapLogger),
		Reviews: handlers.NewReviewHandler(reviews, zapLogger),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(grpcSrv.Start)
	g.Go(httpSrv.Start)

	// Wait for interrupt signal or a server failure
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	zapLogger.Info("Servers shut down successfully")
	return nil
}
