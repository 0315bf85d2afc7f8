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

const (
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventSubscriptionTrialWillEnd = "customer.subscription.trial_will_end"
	EventInvoiceFinalized         = "invoice.finalized"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventInvoiceActionRequired    = "invoice.payment_action_required"
	EventPaymentMethodDetached    = "payment_method.detached"
)

// Webhook outcomes, as counted by metrics.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

type WebhookService struct {
	gateway  billing.Gateway
	events   WebhookStore
	syncer   *Syncer
	accounts AccountStore
	methods  PaymentMethodStore
	notifier Notifier
	archiver Archiver
	metrics  Recorder
	logger   *zap.Logger
}

type WebhookOption func(*WebhookService)

func WithWebhookNotifier(n Notifier) WebhookOption {
	return func(s *WebhookService) { s.notifier = n }
}

func WithArchiver(a Archiver) WebhookOption {
	return func(s *WebhookService) { s.archiver = a }
}

func WithWebhookMetrics(r Recorder) WebhookOption {
	return func(s *WebhookService) { s.metrics = r }
}

func NewWebhookService(
	gateway billing.Gateway,
	events WebhookStore,
	syncer *Syncer,
	accounts AccountStore,
	methods PaymentMethodStore,
	logger *zap.Logger,
	opts ...WebhookOption,
) *WebhookService {
	s := &WebhookService{
		gateway:  gateway,
		events:   events,
		syncer:   syncer,
		accounts: accounts,
		methods:  methods,
		notifier: nopNotifier{},
		archiver: nopArchiver{},
		metrics:  nopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleWebhook verifies and applies a Stripe event. An event id is applied
// at most once. The event is recorded only after it was applied, so a failure
// lets Stripe deliver it again.
func (s *WebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("webhook rejected", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	seen, err := s.events.Seen(ctx, event.ID)
	if err != nil {
		return "", fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		log.Debug("duplicate webhook skipped")
		s.metrics.WebhookEvent(event.Type, OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}

	handled, err := s.apply(ctx, event)
	if err != nil {
		log.Error("webhook processing failed", zap.Error(err))
		s.metrics.WebhookEvent(event.Type, OutcomeFailed)
		return "", err
	}

	if err := s.events.Record(ctx, event.ID, event.Type, event.Raw); err != nil {
		// a concurrent delivery of the same event got there first
		log.Warn("failed to record webhook event", zap.Error(err))
	}

	outcome := OutcomeProcessed
	if !handled {
		outcome = OutcomeIgnored
	}
	s.metrics.WebhookEvent(event.Type, outcome)
	log.Info("webhook handled", zap.String("outcome", outcome))
	return outcome, nil
}

func (s *WebhookService) apply(ctx context.Context, event *billing.Event) (bool, error) {
	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		remote, err := billing.DecodeSubscription(event.Raw)
		if err != nil {
			return false, err
		}
		_, err = s.syncer.ApplySubscription(ctx, remote)
		return true, err

	case EventSubscriptionDeleted:
		remote, err := billing.DecodeSubscription(event.Raw)
		if err != nil {
			return false, err
		}
		if !remote.Status.Expired() {
			remote.Status = subscription.StatusCanceled
		}
		_, err = s.syncer.ApplySubscription(ctx, remote)
		return true, err

	case EventSubscriptionTrialWillEnd:
		remote, err := billing.DecodeSubscription(event.Raw)
		if err != nil {
			return false, err
		}
		return true, s.trialWillEnd(ctx, remote)

	case EventInvoiceFinalized, EventInvoicePaid, EventInvoicePaymentFailed, EventInvoiceActionRequired:
		inv, err := billing.DecodeInvoice(event.Raw)
		if err != nil {
			return false, err
		}
		if inv == nil {
			return false, nil
		}
		return true, s.invoice(ctx, event, inv)

	case EventPaymentMethodDetached:
		pm, err := billing.DecodePaymentMethod(event.Raw)
		if err != nil {
			return false, err
		}
		n, err := s.methods.DeleteByStripeID(ctx, pm.ID)
		if err != nil {
			return false, fmt.Errorf("delete payment method: %w", err)
		}
		if n > 0 {
			s.logger.Info("detached payment method removed", zap.String("payment_method_id", pm.ID))
		}
		return true, nil
	}
	return false, nil
}

func (s *WebhookService) invoice(ctx context.Context, event *billing.Event, inv *billing.Invoice) error {
	local, err := s.syncer.ApplyInvoice(ctx, inv)
	if err != nil {
		return err
	}

	switch event.Type {
	case EventInvoicePaid:
		if err := s.archiver.ArchiveInvoice(ctx, inv.CustomerID, inv.ID, event.Raw); err != nil {
			s.logger.Warn("failed to archive invoice", zap.String("invoice_id", inv.ID), zap.Error(err))
		}
	case EventInvoicePaymentFailed, EventInvoiceActionRequired:
		if local == nil {
			return nil
		}
		account, err := s.owner(ctx, local)
		if err != nil || account == nil {
			return err
		}
		if err := s.notifier.PaymentActionRequired(ctx, account.Email, account.Username, local.Plan.Name, inv.HostedURL); err != nil {
			s.logger.Warn("failed to send payment action email", zap.Uint("account_id", account.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *WebhookService) trialWillEnd(ctx context.Context, remote *billing.Subscription) error {
	local, err := s.syncer.ApplySubscription(ctx, remote)
	if err != nil || local == nil || remote.TrialEnd == nil {
		return err
	}
	account, err := s.owner(ctx, local)
	if err != nil || account == nil {
		return err
	}
	if err := s.notifier.TrialEnding(ctx, account.Email, account.Username, local.Plan.Name, *remote.TrialEnd); err != nil {
		s.logger.Warn("failed to send trial ending email", zap.Uint("account_id", account.ID), zap.Error(err))
	}
	return nil
}

func (s *WebhookService) owner(ctx context.Context, sub *model.Subscription) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, sub.AccountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}
