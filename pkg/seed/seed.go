package seed

import (
	"context"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"deluxe_backend/internal/model"
	"deluxe_backend/internal/service"
	"deluxe_backend/pkg/billing"
	"deluxe_backend/pkg/config"
)

type AccountCreator interface {
	Create(ctx context.Context, account *model.Account, passwordHash string) error
}

type CatalogCreator interface {
	CreatePlans(ctx context.Context, plans []model.Plan) error
	CreateProduct(ctx context.Context, product *model.Product) error
}

// Seeder writes the fixed demo rows. Running it twice inserts duplicates
// or fails on unique columns; it is meant for a fresh database.
type Seeder struct {
	accounts AccountCreator
	catalog  CatalogCreator
	gateway  billing.Gateway
	stripe   config.StripeConfig
	logger   *zap.Logger
}

func NewSeeder(accounts AccountCreator, catalog CatalogCreator, gateway billing.Gateway, stripe config.StripeConfig, logger *zap.Logger) *Seeder {
	return &Seeder{
		accounts: accounts,
		catalog:  catalog,
		gateway:  gateway,
		stripe:   stripe,
		logger:   logger,
	}
}

func (s *Seeder) Run(ctx context.Context) error {
	if err := s.seedAccount(ctx); err != nil {
		return err
	}
	if err := s.seedProducts(ctx); err != nil {
		return err
	}
	if err := s.seedPlans(ctx); err != nil {
		return err
	}
	s.logger.Info("database seeded")
	return nil
}

func (s *Seeder) seedAccount(ctx context.Context) error {
	customerID, err := s.gateway.CreateCustomer(ctx, "kim@deluxe.com", "kim")
	if err != nil {
		return fmt.Errorf("create stripe customer: %w", err)
	}

	hash, err := service.HashPassword("123")
	if err != nil {
		return err
	}

	account := &model.Account{
		Username:         "kim",
		Email:            "kim@deluxe.com",
		StripeCustomerID: customerID,
	}
	if err := s.accounts.Create(ctx, account, hash); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	s.logger.Info("seeded account", zap.Uint("account_id", account.ID), zap.String("stripe_customer_id", customerID))
	return nil
}

func (s *Seeder) seedProducts(ctx context.Context) error {
	product := &model.Product{
		Name:        "iPhone 15 (Orange) - 128 GB",
		Price:       decimal.RequireFromString("1299.90"),
		Description: "The latest iPhone in orange, with 128 GB of storage.",
		ImageLink:   "https://images.deluxe.com/products/iphone-15-orange.png",
	}
	if err := s.catalog.CreateProduct(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *Seeder) seedPlans(ctx context.Context) error {
	plans := []model.Plan{
		{
			Name:            "Standard",
			Price:           decimal.RequireFromString("9.90"),
			Description:     "Standard membership with free delivery on every order.",
			StripeProductID: s.stripe.ProductStandard,
			StripePriceID:   s.stripe.PriceStandard,
		},
		{
			Name:            "Premium",
			Price:           decimal.RequireFromString("15.90"),
			Description:     "Everything in Standard plus early access to new arrivals.",
			StripeProductID: s.stripe.ProductPremium,
			StripePriceID:   s.stripe.PricePremium,
		},
	}
	for i := range plans {
		plans[i].Slug = slug.Make(plans[i].Name)
	}

	if err := s.catalog.CreatePlans(ctx, plans); err != nil {
		return fmt.Errorf("create plans: %w", err)
	}
	return nil
}
