package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deluxe_backend/internal/model"
	"deluxe_backend/internal/repository"
	"deluxe_backend/internal/service"
	"deluxe_backend/internal/testutil"
	"deluxe_backend/pkg/billing"
	"deluxe_backend/pkg/subscription"
)

// deliver registers an event with the fake processor and hands it to the service.
func deliver(t *testing.T, e *env, svc *service.WebhookService, id, eventType, raw string) (string, error) {
	t.Helper()
	e.gateway.Events[id] = &billing.Event{ID: id, Type: eventType, Raw: json.RawMessage(raw)}
	return svc.HandleWebhook(context.Background(), []byte(raw), id)
}

func subscriptionJSON(id, customer, price, status string) string {
	return fmt.Sprintf(`{"id":%q,"object":"subscription","customer":%q,"status":%q,"current_period_end":1893456000,"latest_invoice":"in_ref","items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":%q,"object":"price"}}]}}`,
		id, customer, status, price)
}

func invoiceJSON(id, customer, sub, status string) string {
	return fmt.Sprintf(`{"id":%q,"object":"invoice","customer":%q,"subscription":%q,"status":%q,"amount_due":990,"currency":"sgd","hosted_invoice_url":"https://invoice.stripe.test/in","payment_intent":"pi_ref"}`,
		id, customer, sub, status)
}

func TestWebhookSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", false)
	metrics := newRecorder()
	svc := service.NewWebhookService(e.gateway, e.events, e.syncer, e.accounts, e.methods, e.logger, service.WithWebhookMetrics(metrics))

	t.Run("created outside checkout is adopted", func(t *testing.T) {
		outcome, err := deliver(t, e, svc, "evt_1", service.EventSubscriptionCreated, subscriptionJSON("sub_dash", "cus_kim", "price_prem", "trialing"))
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeProcessed, outcome)

		live, err := e.subs.FindLiveByAccount(ctx, kim.ID)
		require.NoError(t, err)
		require.NotNil(t, live)
		assert.Equal(t, "sub_dash", live.StripeSubscriptionID)
		assert.Equal(t, "Premium", live.Plan.Name)
		assert.Empty(t, live.Invoices)
		assert.True(t, e.reload(t, kim.ID).Trialed)
	})

	t.Run("updated status is mirrored", func(t *testing.T) {
		_, err := deliver(t, e, svc, "evt_2", service.EventSubscriptionUpdated, subscriptionJSON("sub_dash", "cus_kim", "price_prem", "past_due"))
		require.NoError(t, err)

		sub, err := e.subs.FindByStripeID(ctx, "sub_dash")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPastDue, sub.StripeStatus)
		require.NotNil(t, sub.CurrentPeriodEnd)
		assert.Equal(t, int64(1893456000), sub.CurrentPeriodEnd.Unix())
	})

	t.Run("seen event is not applied again", func(t *testing.T) {
		require.NoError(t, e.subs.UpdateState(ctx, mustSub(t, e, "sub_dash").ID, subscription.StatusActive, nil, nil))

		outcome, err := svc.HandleWebhook(ctx, nil, "evt_2")
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeDuplicate, outcome)
		assert.Equal(t, subscription.StatusActive, mustSub(t, e, "sub_dash").StripeStatus)
	})

	t.Run("deleted marks canceled", func(t *testing.T) {
		_, err := deliver(t, e, svc, "evt_3", service.EventSubscriptionDeleted, subscriptionJSON("sub_dash", "cus_kim", "price_prem", "active"))
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, mustSub(t, e, "sub_dash").StripeStatus)

		live, err := e.subs.FindLiveByAccount(ctx, kim.ID)
		require.NoError(t, err)
		assert.Nil(t, live)
	})

	t.Run("unknown customer is ignored", func(t *testing.T) {
		_, err := deliver(t, e, svc, "evt_4", service.EventSubscriptionCreated, subscriptionJSON("sub_x", "cus_nobody", "price_std", "active"))
		require.NoError(t, err)
		_, err = e.subs.FindByStripeID(ctx, "sub_x")
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("unhandled type is acknowledged", func(t *testing.T) {
		outcome, err := deliver(t, e, svc, "evt_5", "charge.refunded", `{"id":"ch_1"}`)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeIgnored, outcome)
	})

	t.Run("bad signature", func(t *testing.T) {
		_, err := svc.HandleWebhook(ctx, []byte(`{}`), "forged")
		assert.ErrorIs(t, err, service.ErrInvalidWebhook)
	})

	assert.Equal(t, 1, metrics.webhooks[service.OutcomeDuplicate])
	assert.Equal(t, 1, metrics.webhooks[service.OutcomeIgnored])
}

func TestWebhookIncompleteExpiredRemovesSubscription(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", true)
	svc := service.NewWebhookService(e.gateway, e.events, e.syncer, e.accounts, e.methods, e.logger)

	result, err := e.checkout().Checkout(ctx, kim.ID, "standard", "")
	require.NoError(t, err)

	_, err = deliver(t, e, svc, "evt_exp", service.EventSubscriptionUpdated, subscriptionJSON(result.SubscriptionID, "cus_kim", "price_std", "incomplete_expired"))
	require.NoError(t, err)

	_, err = e.subs.FindByStripeID(ctx, result.SubscriptionID)
	assert.True(t, repository.IsNotFound(err))

	var invoices int64
	require.NoError(t, e.db.Model(&model.Invoice{}).Count(&invoices).Error)
	assert.Zero(t, invoices)

	preview, err := e.checkout().Preview(ctx, kim.ID, "standard")
	require.NoError(t, err)
	assert.Equal(t, subscription.BranchCharge, preview.Branch)
}

func TestWebhookInvoices(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", true)

	notifier := new(mockNotifier)
	archiver := new(mockArchiver)
	svc := service.NewWebhookService(e.gateway, e.events, e.syncer, e.accounts, e.methods, e.logger,
		service.WithWebhookNotifier(notifier), service.WithArchiver(archiver))

	result, err := e.checkout().Checkout(ctx, kim.ID, "standard", "")
	require.NoError(t, err)
	sub := mustSub(t, e, result.SubscriptionID)
	require.Len(t, sub.Invoices, 1)
	invoiceID := sub.Invoices[0].StripeInvoiceID

	t.Run("action required emails the owner", func(t *testing.T) {
		notifier.On("PaymentActionRequired", mock.Anything, "kim@deluxe.com", "kim", "Standard", "https://invoice.stripe.test/in").Return(nil).Once()

		_, err := deliver(t, e, svc, "evt_ar", service.EventInvoiceActionRequired, invoiceJSON(invoiceID, "cus_kim", result.SubscriptionID, "open"))
		require.NoError(t, err)
		notifier.AssertExpectations(t)
	})

	t.Run("paid is archived and keeps the secret", func(t *testing.T) {
		raw := invoiceJSON(invoiceID, "cus_kim", result.SubscriptionID, "paid")
		archiver.On("ArchiveInvoice", mock.Anything, "cus_kim", invoiceID, mock.Anything).Return(nil).Once()

		_, err := deliver(t, e, svc, "evt_paid", service.EventInvoicePaid, raw)
		require.NoError(t, err)
		archiver.AssertExpectations(t)

		got := mustSub(t, e, result.SubscriptionID)
		require.Len(t, got.Invoices, 1)
		assert.Equal(t, "paid", got.Invoices[0].Status)
		assert.Equal(t, "https://invoice.stripe.test/in", got.Invoices[0].HostedInvoiceURL)
		assert.Equal(t, result.ClientSecret, got.Invoices[0].StripeClientSecret)
	})

	t.Run("invoice of unknown subscription is ignored", func(t *testing.T) {
		_, err := deliver(t, e, svc, "evt_other", service.EventInvoiceFinalized, invoiceJSON("in_other", "cus_kim", "sub_unknown", "open"))
		require.NoError(t, err)

		var count int64
		require.NoError(t, e.db.Model(&model.Invoice{}).Where("stripe_invoice_id = ?", "in_other").Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestWebhookTrialWillEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", false)
	e.saveCard(t, kim, "pm_kim")

	trial, err := e.checkout().Checkout(ctx, kim.ID, "standard", "pm_kim")
	require.NoError(t, err)

	notifier := new(mockNotifier)
	notifier.On("TrialEnding", mock.Anything, "kim@deluxe.com", "kim", "Standard", mock.AnythingOfType("time.Time")).Return(nil).Once()
	svc := service.NewWebhookService(e.gateway, e.events, e.syncer, e.accounts, e.methods, e.logger, service.WithWebhookNotifier(notifier))

	raw := fmt.Sprintf(`{"id":%q,"object":"subscription","customer":"cus_kim","status":"trialing","trial_end":1893456000}`, trial.SubscriptionID)
	_, err = deliver(t, e, svc, "evt_twe", service.EventSubscriptionTrialWillEnd, raw)
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestWebhookPaymentMethodDetached(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", false)
	e.saveCard(t, kim, "pm_kim")
	svc := service.NewWebhookService(e.gateway, e.events, e.syncer, e.accounts, e.methods, e.logger)

	_, err := deliver(t, e, svc, "evt_det", service.EventPaymentMethodDetached,
		`{"id":"pm_kim","object":"payment_method","customer":null,"card":{"brand":"visa","last4":"4242","exp_month":12,"exp_year":2030}}`)
	require.NoError(t, err)

	left, err := e.methods.ListByAccount(ctx, kim.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func mustSub(t *testing.T, e *env, stripeID string) *model.Subscription {
	t.Helper()
	sub, err := e.subs.FindByStripeID(context.Background(), stripeID)
	require.NoError(t, err)
	return sub
}
