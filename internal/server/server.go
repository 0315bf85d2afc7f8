// Package server assembles the fiber application and its routes.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"deluxe_backend/internal/controller"
	"deluxe_backend/internal/middleware"
	"deluxe_backend/pkg/logger"
	"deluxe_backend/pkg/metrics"
	"deluxe_backend/pkg/utils/jwt"
)

type Handlers struct {
	Auth           *controller.AuthController
	Accounts       *controller.AccountController
	PaymentMethods *controller.PaymentMethodController
	Subscriptions  *controller.SubscriptionController
	Catalog        *controller.CatalogController
}

type Options struct {
	CORSOrigins string
	Tokens      *jwt.Manager
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

func New(h Handlers, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "deluxe-api",
		ErrorHandler: controller.ErrorHandler,
	})

	app.Use(requestid.New())
	app.Use(logger.RequestLogger(opts.Logger))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	if opts.Metrics != nil {
		app.Use(opts.Metrics.Middleware())
		app.Get("/metrics", opts.Metrics.Handler())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	setupRoutes(app, h, opts.Tokens)
	return app
}

func setupRoutes(app *fiber.App, h Handlers, tokens *jwt.Manager) {
	api := app.Group("/api")
	auth := middleware.AuthMiddleware(tokens)

	// Auth Routes
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", h.Auth.Register)
	authRoutes.Post("/login", h.Auth.Login)

	// Catalog
	api.Get("/plans", h.Catalog.ListPlans)
	api.Get("/products", h.Catalog.ListProducts)

	// Stripe webhook, authenticated by its signature
	api.Post("/stripe/webhook", h.Subscriptions.HandleWebhook)

	// Account
	account := api.Group("/account", auth)
	account.Post("/payment-methods", h.PaymentMethods.AddPaymentMethod)
	account.Delete("/payment-methods/:pmID", h.PaymentMethods.RemovePaymentMethod)
	account.Get("/:id", middleware.RequireAccountOwner(), h.Accounts.GetAccount)
	account.Patch("/:id", middleware.RequireAccountOwner(), h.Accounts.UpdateAccount)
	account.Delete("/:id", middleware.RequireAccountOwner(), h.Accounts.DeleteAccount)

	// Checkout
	api.Get("/checkout/:type", auth, h.Subscriptions.PreviewCheckout)

	api.Post("/stripe/subscriptions/:type", auth, h.Subscriptions.CreateSubscription)
	api.Post("/stripe/setup-intents", auth, h.PaymentMethods.CreateSetupIntent)
}
