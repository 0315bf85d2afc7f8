package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deluxe_backend/internal/controller"
	"deluxe_backend/internal/repository"
	"deluxe_backend/internal/server"
	"deluxe_backend/internal/service"
	"deluxe_backend/pkg/billing"
	"deluxe_backend/pkg/config"
	appcron "deluxe_backend/pkg/cron"
	"deluxe_backend/pkg/email"
	"deluxe_backend/pkg/metrics"
	"deluxe_backend/pkg/utils/jwt"
	"deluxe_backend/pkg/utils/storage"
)

const sweepTimeout = 5 * time.Minute

type application struct {
	http    *fiber.App
	sweeper *service.Sweeper
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (*application, error) {
	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is not set, payment calls will fail")
	}
	gateway := billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, log)
	m := metrics.New()
	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)

	accounts := repository.NewAccountRepository(db)
	methods := repository.NewPaymentMethodRepository(db)
	catalog := repository.NewCatalogRepository(db)
	subs := repository.NewSubscriptionRepository(db)
	events := repository.NewWebhookRepository(db)

	checkoutOpts := []service.CheckoutOption{service.WithCheckoutMetrics(m)}
	webhookOpts := []service.WebhookOption{service.WithWebhookMetrics(m)}

	if cfg.Email.ResendAPIKey != "" {
		mailer, err := email.NewEmailService(cfg.Email.ResendAPIKey, cfg.Email.From, log)
		if err != nil {
			return nil, fmt.Errorf("email: %w", err)
		}
		checkoutOpts = append(checkoutOpts, service.WithNotifier(mailer))
		webhookOpts = append(webhookOpts, service.WithWebhookNotifier(mailer))
	} else {
		log.Info("RESEND_API_KEY is not set, emails are disabled")
	}

	if cfg.Storage.Enabled() {
		client, err := storage.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("invoice storage: %w", err)
		}
		webhookOpts = append(webhookOpts, service.WithArchiver(storage.NewInvoiceArchive(client, cfg.Storage.Bucket, log)))
	}

	syncer := service.NewSyncer(accounts, catalog, subs, log)
	accountSvc := service.NewAccountService(accounts, subs, gateway, log)
	methodSvc := service.NewPaymentMethodService(accounts, methods, gateway, log)
	checkoutSvc := service.NewCheckoutService(accounts, methods, catalog, subs, gateway, cfg.Stripe.TrialPeriodDays, log, checkoutOpts...)
	webhookSvc := service.NewWebhookService(gateway, events, syncer, accounts, methods, log, webhookOpts...)

	app := server.New(server.Handlers{
		Auth:           controller.NewAuthController(accountSvc, tokens),
		Accounts:       controller.NewAccountController(accountSvc),
		PaymentMethods: controller.NewPaymentMethodController(methodSvc),
		Subscriptions:  controller.NewSubscriptionController(checkoutSvc, webhookSvc),
		Catalog:        controller.NewCatalogController(service.NewCatalogService(catalog)),
	}, server.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Tokens:      tokens,
		Metrics:     m,
		Logger:      log,
	})

	return &application{
		http:    app,
		sweeper: service.NewSweeper(subs, gateway, syncer, cfg.Cron.IncompleteMaxAge, log),
		metrics: m,
		logger:  log,
	}, nil
}

func (a *application) startCron(cfg config.CronConfig) (*cron.Cron, error) {
	c, err := appcron.InitIncompleteSweepCron(cfg.IncompleteSweepSpec, sweepTimeout, a.sweeper, a.metrics, a.logger)
	if err != nil {
		return nil, fmt.Errorf("schedule incomplete sweep: %w", err)
	}
	return c, nil
}
