package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"deluxe_backend/internal/model"
	"deluxe_backend/internal/repository"
	"deluxe_backend/internal/service"
	"deluxe_backend/internal/testutil"
	"deluxe_backend/pkg/billing/billingtest"
	"deluxe_backend/pkg/subscription"
)

type env struct {
	db       *gorm.DB
	gateway  *billingtest.Gateway
	logger   *zap.Logger
	accounts *repository.AccountRepository
	methods  *repository.PaymentMethodRepository
	catalog  *repository.CatalogRepository
	subs     *repository.SubscriptionRepository
	events   *repository.WebhookRepository
	syncer   *service.Syncer

	standard *model.Plan
	premium  *model.Plan
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	e := &env{
		db:       db,
		gateway:  billingtest.New(),
		logger:   zaptest.NewLogger(t),
		accounts: repository.NewAccountRepository(db),
		methods:  repository.NewPaymentMethodRepository(db),
		catalog:  repository.NewCatalogRepository(db),
		subs:     repository.NewSubscriptionRepository(db),
		events:   repository.NewWebhookRepository(db),
	}
	e.syncer = service.NewSyncer(e.accounts, e.catalog, e.subs, e.logger)
	e.standard, e.premium = testutil.SeedPlans(t, db)
	return e
}

func (e *env) checkout(opts ...service.CheckoutOption) *service.CheckoutService {
	return service.NewCheckoutService(e.accounts, e.methods, e.catalog, e.subs, e.gateway, 7, e.logger, opts...)
}

// saveCard stores a card for the account locally and at the fake processor.
func (e *env) saveCard(t *testing.T, acc *model.Account, id string) {
	t.Helper()
	e.gateway.AddCard(id, acc.StripeCustomerID, "visa", "4242")
	require.NoError(t, e.methods.Create(context.Background(), &model.PaymentMethod{
		AccountID:             acc.ID,
		StripePaymentMethodID: id,
		CardBrand:             "visa",
		CardLast4:             "4242",
		CardExpMonth:          12,
		CardExpYear:           2030,
	}))
}

func (e *env) reload(t *testing.T, id uint) *model.Account {
	t.Helper()
	acc, err := e.accounts.FindByID(context.Background(), id)
	require.NoError(t, err)
	return acc
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) TrialStarted(ctx context.Context, to, username, planName string, trialEnd time.Time) error {
	return m.Called(ctx, to, username, planName, trialEnd).Error(0)
}

func (m *mockNotifier) PaymentActionRequired(ctx context.Context, to, username, planName, invoiceURL string) error {
	return m.Called(ctx, to, username, planName, invoiceURL).Error(0)
}

func (m *mockNotifier) TrialEnding(ctx context.Context, to, username, planName string, trialEnd time.Time) error {
	return m.Called(ctx, to, username, planName, trialEnd).Error(0)
}

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) ArchiveInvoice(ctx context.Context, customerID, invoiceID string, payload []byte) error {
	return m.Called(ctx, customerID, invoiceID, payload).Error(0)
}

type countingRecorder struct {
	branches map[subscription.Branch]int
	webhooks map[string]int
}

func newRecorder() *countingRecorder {
	return &countingRecorder{branches: map[subscription.Branch]int{}, webhooks: map[string]int{}}
}

func (r *countingRecorder) CheckoutBranch(b subscription.Branch) { r.branches[b]++ }
func (r *countingRecorder) WebhookEvent(_, outcome string)      { r.webhooks[outcome]++ }
