package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deluxe_backend/internal/model"
	"deluxe_backend/pkg/billing"
	"deluxe_backend/pkg/subscription"
)

type CheckoutService struct {
	accounts      AccountStore
	methods       PaymentMethodStore
	catalog       CatalogStore
	subscriptions SubscriptionStore
	gateway       billing.Gateway
	notifier      Notifier
	metrics       Recorder
	trialDays     int64
	logger        *zap.Logger
}

type CheckoutOption func(*CheckoutService)

func WithNotifier(n Notifier) CheckoutOption {
	return func(s *CheckoutService) { s.notifier = n }
}

func WithCheckoutMetrics(r Recorder) CheckoutOption {
	return func(s *CheckoutService) { s.metrics = r }
}

func NewCheckoutService(
	accounts AccountStore,
	methods PaymentMethodStore,
	catalog CatalogStore,
	subscriptions SubscriptionStore,
	gateway billing.Gateway,
	trialDays int64,
	logger *zap.Logger,
	opts ...CheckoutOption,
) *CheckoutService {
	s := &CheckoutService{
		accounts:      accounts,
		methods:       methods,
		catalog:       catalog,
		subscriptions: subscriptions,
		gateway:       gateway,
		notifier:      nopNotifier{},
		metrics:       nopRecorder{},
		trialDays:     trialDays,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckoutPreview tells the client which path checkout will take.
type CheckoutPreview struct {
	Branch       subscription.Branch
	Plan         *model.Plan
	ClientSecret string
	TrialDays    int64
}

// CheckoutResult is the outcome of a confirmed checkout.
type CheckoutResult struct {
	Branch         subscription.Branch
	Status         subscription.Status
	SubscriptionID string
	ClientSecret   string
}

type checkoutState struct {
	account  *model.Account
	plan     *model.Plan
	live     *model.Subscription
	decision subscription.Decision
}

// Preview resolves the checkout branch without touching the processor.
func (s *CheckoutService) Preview(ctx context.Context, accountID uint, planType string) (*CheckoutPreview, error) {
	st, err := s.resolve(ctx, accountID, planType)
	if err != nil {
		return nil, err
	}
	preview := &CheckoutPreview{
		Branch:       st.decision.Branch,
		Plan:         st.plan,
		ClientSecret: st.decision.ClientSecret,
	}
	if st.decision.Branch == subscription.BranchFreeTrial {
		preview.TrialDays = s.trialDays
	}
	return preview, nil
}

// Checkout confirms the resolved branch. A live incomplete subscription has
// its pending secret returned instead of a new subscription being created,
// so repeating the call does not double charge.
func (s *CheckoutService) Checkout(ctx context.Context, accountID uint, planType, paymentMethodID string) (*CheckoutResult, error) {
	st, err := s.resolve(ctx, accountID, planType)
	if err != nil {
		return nil, err
	}
	s.metrics.CheckoutBranch(st.decision.Branch)

	switch st.decision.Branch {
	case subscription.BranchAlreadySubscribed:
		return nil, ErrAlreadySubscribed
	case subscription.BranchCompletePayment:
		return s.completePayment(ctx, st)
	case subscription.BranchFreeTrial:
		return s.startTrial(ctx, st, paymentMethodID)
	default:
		return s.charge(ctx, st, paymentMethodID)
	}
}

func (s *CheckoutService) resolve(ctx context.Context, accountID uint, planType string) (*checkoutState, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	plan, err := s.catalog.FindPlanBySlug(ctx, planType)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}

	live, err := s.subscriptions.FindLiveByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("find live subscription: %w", err)
	}

	var current *subscription.Live
	if live != nil {
		current = &subscription.Live{Status: live.StripeStatus, ClientSecret: live.PendingClientSecret()}
	}
	return &checkoutState{
		account:  account,
		plan:     plan,
		live:     live,
		decision: subscription.Resolve(account.Trialed, current),
	}, nil
}

func (s *CheckoutService) completePayment(ctx context.Context, st *checkoutState) (*CheckoutResult, error) {
	secret := st.decision.ClientSecret
	if secret == "" {
		// the invoice may not have reached us yet
		remote, err := s.gateway.GetSubscription(ctx, st.live.StripeSubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("%w: get subscription: %v", ErrProvider, err)
		}
		if expanded(remote.LatestInvoice) {
			inv := invoiceRow(st.live.ID, remote.LatestInvoice)
			if err := s.subscriptions.UpsertInvoice(ctx, &inv); err != nil {
				return nil, fmt.Errorf("upsert invoice: %w", err)
			}
			secret = remote.LatestInvoice.ClientSecret
		}
	}
	if secret == "" {
		return nil, ErrNoPendingPayment
	}
	return &CheckoutResult{
		Branch:         subscription.BranchCompletePayment,
		Status:         st.live.StripeStatus,
		SubscriptionID: st.live.StripeSubscriptionID,
		ClientSecret:   secret,
	}, nil
}

func (s *CheckoutService) startTrial(ctx context.Context, st *checkoutState, paymentMethodID string) (*CheckoutResult, error) {
	if paymentMethodID == "" {
		return nil, ErrPaymentMethodRequired
	}
	if err := s.ownPaymentMethod(ctx, st.account.ID, paymentMethodID); err != nil {
		return nil, err
	}

	remote, err := s.create(ctx, st, paymentMethodID, s.trialDays)
	if err != nil {
		return nil, err
	}

	row := subscriptionRow(st.account.ID, st.plan, remote)
	if err := s.subscriptions.Create(ctx, row, true); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	if remote.TrialEnd != nil {
		if err := s.notifier.TrialStarted(ctx, st.account.Email, st.account.Username, st.plan.Name, *remote.TrialEnd); err != nil {
			s.logger.Warn("failed to send trial started email", zap.Uint("account_id", st.account.ID), zap.Error(err))
		}
	}

	return &CheckoutResult{
		Branch:         subscription.BranchFreeTrial,
		Status:         remote.Status,
		SubscriptionID: remote.ID,
	}, nil
}

func (s *CheckoutService) charge(ctx context.Context, st *checkoutState, paymentMethodID string) (*CheckoutResult, error) {
	if paymentMethodID != "" {
		if err := s.ownPaymentMethod(ctx, st.account.ID, paymentMethodID); err != nil {
			return nil, err
		}
	}

	remote, err := s.create(ctx, st, paymentMethodID, 0)
	if err != nil {
		return nil, err
	}

	row := subscriptionRow(st.account.ID, st.plan, remote)
	if err := s.subscriptions.Create(ctx, row, false); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	result := &CheckoutResult{
		Branch:         subscription.BranchCharge,
		Status:         remote.Status,
		SubscriptionID: remote.ID,
	}
	if remote.LatestInvoice != nil {
		result.ClientSecret = remote.LatestInvoice.ClientSecret
	}
	return result, nil
}

func (s *CheckoutService) create(ctx context.Context, st *checkoutState, paymentMethodID string, trialDays int64) (*billing.Subscription, error) {
	remote, err := s.gateway.CreateSubscription(ctx, billing.CreateSubscriptionRequest{
		CustomerID:      st.account.StripeCustomerID,
		PriceID:         st.plan.StripePriceID,
		PaymentMethodID: paymentMethodID,
		TrialDays:       trialDays,
		IdempotencyKey:  uuid.NewString(),
	})
	if err != nil {
		s.logger.Error("failed to create subscription",
			zap.Uint("account_id", st.account.ID),
			zap.String("plan", st.plan.Slug),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: create subscription: %v", ErrProvider, err)
	}
	s.logger.Info("subscription created",
		zap.Uint("account_id", st.account.ID),
		zap.String("plan", st.plan.Slug),
		zap.String("subscription_id", remote.ID),
		zap.String("status", string(remote.Status)),
	)
	return remote, nil
}

func (s *CheckoutService) ownPaymentMethod(ctx context.Context, accountID uint, paymentMethodID string) error {
	pm, err := s.methods.FindByStripeID(ctx, paymentMethodID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPaymentMethodNotFound
	}
	if err != nil {
		return fmt.Errorf("find payment method: %w", err)
	}
	if pm.AccountID != accountID {
		return ErrPaymentMethodNotFound
	}
	return nil
}
