// Package billing is the boundary to the payment processor. Everything the
// rest of the backend knows about Stripe objects goes through these types.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"deluxe_backend/pkg/subscription"
)

// ErrNotConfigured is returned by ParseWebhook when no webhook signing secret is set.
var ErrNotConfigured = errors.New("billing: stripe webhook secret is not configured")

// Gateway is implemented by the Stripe client and by test fakes.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateSetupIntent(ctx context.Context, customerID string) (string, error)
	GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

type PaymentMethod struct {
	ID         string
	CustomerID string
	Brand      string
	Last4      string
	ExpMonth   int
	ExpYear    int
}

type CreateSubscriptionRequest struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	// TrialDays > 0 starts a trial and defers the first charge.
	TrialDays      int64
	IdempotencyKey string
}

type Subscription struct {
	ID               string
	CustomerID       string
	PriceID          string
	Status           subscription.Status
	CurrentPeriodEnd *time.Time
	TrialEnd         *time.Time
	LatestInvoice    *Invoice
}

type Invoice struct {
	ID              string
	CustomerID      string
	SubscriptionID  string
	PaymentIntentID string
	ClientSecret    string
	Status          string
	AmountDue       decimal.Decimal
	Currency        string
	HostedURL       string
}

// Event is a verified webhook event. Raw holds the JSON of the event's object.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}
