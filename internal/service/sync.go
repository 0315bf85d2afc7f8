package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deluxe_backend/internal/model"
	"deluxe_backend/pkg/billing"
	"deluxe_backend/pkg/subscription"
)

// Syncer applies processor-side subscription and invoice state to the local mirror.
type Syncer struct {
	accounts      AccountStore
	catalog       CatalogStore
	subscriptions SubscriptionStore
	logger        *zap.Logger
}

func NewSyncer(accounts AccountStore, catalog CatalogStore, subscriptions SubscriptionStore, logger *zap.Logger) *Syncer {
	return &Syncer{
		accounts:      accounts,
		catalog:       catalog,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// ApplySubscription upserts the mirror row of remote. An incomplete_expired
// subscription is removed so it no longer blocks checkout. It returns the
// stored row, or nil when nothing is stored.
func (s *Syncer) ApplySubscription(ctx context.Context, remote *billing.Subscription) (*model.Subscription, error) {
	local, err := s.subscriptions.FindByStripeID(ctx, remote.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find subscription: %w", err)
	}

	if local == nil {
		if remote.Status.Expired() {
			return nil, nil
		}
		return s.adopt(ctx, remote)
	}

	if remote.Status.Expired() {
		if err := s.subscriptions.Delete(ctx, local.ID); err != nil {
			return nil, fmt.Errorf("delete expired subscription: %w", err)
		}
		s.logger.Info("expired subscription removed",
			zap.Uint("account_id", local.AccountID),
			zap.String("subscription_id", remote.ID),
		)
		return nil, nil
	}

	if err := s.subscriptions.UpdateState(ctx, local.ID, remote.Status, remote.CurrentPeriodEnd, remote.TrialEnd); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	local.StripeStatus = remote.Status
	local.CurrentPeriodEnd = remote.CurrentPeriodEnd
	local.TrialEnd = remote.TrialEnd

	if expanded(remote.LatestInvoice) {
		inv := invoiceRow(local.ID, remote.LatestInvoice)
		if err := s.subscriptions.UpsertInvoice(ctx, &inv); err != nil {
			return nil, fmt.Errorf("upsert invoice: %w", err)
		}
	}
	return local, nil
}

// ApplyInvoice upserts an invoice of a known subscription. Invoices of
// subscriptions the backend does not mirror are ignored.
func (s *Syncer) ApplyInvoice(ctx context.Context, remote *billing.Invoice) (*model.Subscription, error) {
	if remote.SubscriptionID == "" {
		return nil, nil
	}
	local, err := s.subscriptions.FindByStripeID(ctx, remote.SubscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	inv := invoiceRow(local.ID, remote)
	if err := s.subscriptions.UpsertInvoice(ctx, &inv); err != nil {
		return nil, fmt.Errorf("upsert invoice: %w", err)
	}
	return local, nil
}

// adopt stores a subscription created outside checkout, e.g. from the dashboard.
func (s *Syncer) adopt(ctx context.Context, remote *billing.Subscription) (*model.Subscription, error) {
	account, err := s.accounts.FindByStripeCustomerID(ctx, remote.CustomerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("subscription for unknown customer ignored",
			zap.String("subscription_id", remote.ID),
			zap.String("customer_id", remote.CustomerID),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	plan, err := s.catalog.FindPlanByStripePriceID(ctx, remote.PriceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("subscription for unknown price ignored",
			zap.String("subscription_id", remote.ID),
			zap.String("price_id", remote.PriceID),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}

	row := subscriptionRow(account.ID, plan, remote)
	trialed := remote.TrialEnd != nil || remote.Status == subscription.StatusTrialing
	if err := s.subscriptions.Create(ctx, row, trialed && !account.Trialed); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return row, nil
}

func subscriptionRow(accountID uint, plan *model.Plan, remote *billing.Subscription) *model.Subscription {
	row := &model.Subscription{
		AccountID:            accountID,
		PlanID:               plan.ID,
		StripeSubscriptionID: remote.ID,
		StripeStatus:         remote.Status,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		TrialEnd:             remote.TrialEnd,
		Plan:                 *plan,
	}
	if expanded(remote.LatestInvoice) {
		row.Invoices = []model.Invoice{invoiceRow(0, remote.LatestInvoice)}
	}
	return row
}

// expanded reports whether inv carries more than an id. Webhook payloads
// reference the latest invoice by id only.
func expanded(inv *billing.Invoice) bool {
	return inv != nil && inv.Status != ""
}

func invoiceRow(subscriptionID uint, inv *billing.Invoice) model.Invoice {
	return model.Invoice{
		SubscriptionID:        subscriptionID,
		StripeInvoiceID:       inv.ID,
		StripePaymentIntentID: inv.PaymentIntentID,
		StripeClientSecret:    inv.ClientSecret,
		Status:                inv.Status,
		AmountDue:             inv.AmountDue,
		Currency:              inv.Currency,
		HostedInvoiceURL:      inv.HostedURL,
	}
}
