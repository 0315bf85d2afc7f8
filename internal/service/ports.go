package service

import (
	"context"
	"encoding/json"
	"time"

	"deluxe_backend/internal/model"
	"deluxe_backend/pkg/subscription"
)

type AccountStore interface {
	FindByID(ctx context.Context, id uint) (*model.Account, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error)
	FindByLogin(ctx context.Context, login string) (*model.Account, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, account *model.Account, passwordHash string) error
	UpdateByID(ctx context.Context, id uint, updates map[string]interface{}) error
	CurrentPasswordHash(ctx context.Context, accountID uint) (string, error)
	Delete(ctx context.Context, id uint) error
	RecordLogin(ctx context.Context, entry *model.LoginHistory) error
}

type PaymentMethodStore interface {
	ListByAccount(ctx context.Context, accountID uint) ([]model.PaymentMethod, error)
	FindByStripeID(ctx context.Context, stripeID string) (*model.PaymentMethod, error)
	Create(ctx context.Context, pm *model.PaymentMethod) error
	DeleteByStripeID(ctx context.Context, stripeID string) (int64, error)
}

type CatalogStore interface {
	ListPlans(ctx context.Context) ([]model.Plan, error)
	FindPlanBySlug(ctx context.Context, slug string) (*model.Plan, error)
	FindPlanByStripePriceID(ctx context.Context, priceID string) (*model.Plan, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
}

type SubscriptionStore interface {
	FindLiveByAccount(ctx context.Context, accountID uint) (*model.Subscription, error)
	FindByStripeID(ctx context.Context, stripeID string) (*model.Subscription, error)
	Create(ctx context.Context, sub *model.Subscription, markTrialed bool) error
	UpdateState(ctx context.Context, id uint, status subscription.Status, periodEnd, trialEnd *time.Time) error
	Delete(ctx context.Context, id uint) error
	UpsertInvoice(ctx context.Context, inv *model.Invoice) error
	ListStaleIncomplete(ctx context.Context, cutoff time.Time) ([]model.Subscription, error)
}

type WebhookStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID, eventType string, payload json.RawMessage) error
}

// Notifier sends transactional email. Failures are logged, never returned to the caller's client.
type Notifier interface {
	TrialStarted(ctx context.Context, to, username, planName string, trialEnd time.Time) error
	PaymentActionRequired(ctx context.Context, to, username, planName, invoiceURL string) error
	TrialEnding(ctx context.Context, to, username, planName string, trialEnd time.Time) error
}

// Archiver keeps a copy of paid invoices.
type Archiver interface {
	ArchiveInvoice(ctx context.Context, customerID, invoiceID string, payload []byte) error
}

// Recorder counts business events for metrics.
type Recorder interface {
	CheckoutBranch(branch subscription.Branch)
	WebhookEvent(eventType, outcome string)
}

type nopNotifier struct{}

func (nopNotifier) TrialStarted(context.Context, string, string, string, time.Time) error { return nil }
func (nopNotifier) PaymentActionRequired(context.Context, string, string, string, string) error {
	return nil
}
func (nopNotifier) TrialEnding(context.Context, string, string, string, time.Time) error { return nil }

type nopArchiver struct{}

func (nopArchiver) ArchiveInvoice(context.Context, string, string, []byte) error { return nil }

type nopRecorder struct{}

func (nopRecorder) CheckoutBranch(subscription.Branch) {}
func (nopRecorder) WebhookEvent(string, string)        {}
