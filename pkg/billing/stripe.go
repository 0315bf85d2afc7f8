package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.uber.org/zap"

	"deluxe_backend/pkg/subscription"
)

// StripeGateway talks to the Stripe API through a per-instance client.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeGateway(secretKey, webhookSecret string, logger *zap.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        logger.Named("stripe"),
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx

	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	g.logger.Info("Stripe customer created", zap.String("customer_id", cust.ID))
	return cust.ID, nil
}

func (g *StripeGateway) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	si, err := g.api.SetupIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("create setup intent: %w", err)
	}
	return si.ClientSecret, nil
}

func (g *StripeGateway) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.Get(paymentMethodID, params)
	if err != nil {
		return nil, fmt.Errorf("get payment method %s: %w", paymentMethodID, err)
	}
	return PaymentMethodFromStripe(pm), nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error) {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.Attach(paymentMethodID, params)
	if err != nil {
		return nil, fmt.Errorf("attach payment method %s: %w", paymentMethodID, err)
	}
	return PaymentMethodFromStripe(pm), nil
}

func (g *StripeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx

	if _, err := g.api.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		return fmt.Errorf("detach payment method %s: %w", paymentMethodID, err)
	}
	return nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(req.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	if req.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(req.PaymentMethodID)
	}
	if req.TrialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(req.TrialDays)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx

	sub, err := g.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	g.logger.Info("Stripe subscription created",
		zap.String("subscription_id", sub.ID),
		zap.String("customer_id", req.CustomerID),
		zap.String("status", string(sub.Status)),
		zap.Int64("trial_days", req.TrialDays),
	)
	return SubscriptionFromStripe(sub), nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx

	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return SubscriptionFromStripe(sub), nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription %s: %w", subscriptionID, err)
	}
	return SubscriptionFromStripe(sub), nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	// events are decoded field by field, so an account API version newer
	// than the SDK pin is accepted
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}
	ev := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		ev.Raw = event.Data.Raw
	}
	return ev, nil
}

// DecodeSubscription reads a subscription object from a webhook payload.
func DecodeSubscription(raw json.RawMessage) (*Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return SubscriptionFromStripe(&sub), nil
}

// DecodeInvoice reads an invoice object from a webhook payload.
func DecodeInvoice(raw json.RawMessage) (*Invoice, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	return InvoiceFromStripe(&inv), nil
}

// DecodePaymentMethod reads a payment method object from a webhook payload.
func DecodePaymentMethod(raw json.RawMessage) (*PaymentMethod, error) {
	var pm stripe.PaymentMethod
	if err := json.Unmarshal(raw, &pm); err != nil {
		return nil, fmt.Errorf("decode payment method: %w", err)
	}
	return PaymentMethodFromStripe(&pm), nil
}

func SubscriptionFromStripe(sub *stripe.Subscription) *Subscription {
	if sub == nil {
		return nil
	}
	out := &Subscription{
		ID:               sub.ID,
		Status:           subscription.Status(sub.Status),
		CurrentPeriodEnd: unixTime(sub.CurrentPeriodEnd),
		TrialEnd:         unixTime(sub.TrialEnd),
		LatestInvoice:    InvoiceFromStripe(sub.LatestInvoice),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				out.PriceID = item.Price.ID
				break
			}
		}
	}
	if out.LatestInvoice != nil && out.LatestInvoice.SubscriptionID == "" {
		out.LatestInvoice.SubscriptionID = sub.ID
	}
	return out
}

func InvoiceFromStripe(inv *stripe.Invoice) *Invoice {
	if inv == nil || inv.ID == "" {
		return nil
	}
	out := &Invoice{
		ID:        inv.ID,
		Status:    string(inv.Status),
		AmountDue: MinorToMajor(inv.AmountDue, string(inv.Currency)),
		Currency:  string(inv.Currency),
		HostedURL: inv.HostedInvoiceURL,
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if inv.PaymentIntent != nil {
		out.PaymentIntentID = inv.PaymentIntent.ID
		out.ClientSecret = inv.PaymentIntent.ClientSecret
	}
	return out
}

func PaymentMethodFromStripe(pm *stripe.PaymentMethod) *PaymentMethod {
	if pm == nil {
		return nil
	}
	out := &PaymentMethod{ID: pm.ID}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
		out.ExpMonth = int(pm.Card.ExpMonth)
		out.ExpYear = int(pm.Card.ExpYear)
	}
	return out
}

// zeroDecimal lists the currencies Stripe charges in whole units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// MinorToMajor converts a Stripe amount in the smallest currency unit to a
// decimal amount in the currency's main unit.
func MinorToMajor(amount int64, currency string) decimal.Decimal {
	if zeroDecimal[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
