// Package billingtest provides an in-memory billing.Gateway for tests.
package billingtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"deluxe_backend/pkg/billing"
	"deluxe_backend/pkg/subscription"
)

// ErrUnavailable is what a failing fake returns.
var ErrUnavailable = errors.New("billingtest: processor unavailable")

type Gateway struct {
	mu sync.Mutex

	// Fail makes every processor call return ErrUnavailable.
	Fail bool

	Customers      map[string]string
	PaymentMethods map[string]*billing.PaymentMethod
	Subscriptions  map[string]*billing.Subscription
	Created        []billing.CreateSubscriptionRequest
	Detached       []string
	Events         map[string]*billing.Event

	seq int
}

func New() *Gateway {
	return &Gateway{
		Customers:      map[string]string{},
		PaymentMethods: map[string]*billing.PaymentMethod{},
		Subscriptions:  map[string]*billing.Subscription{},
		Events:         map[string]*billing.Event{},
	}
}

func (g *Gateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

// AddCard registers a card that can later be retrieved or attached.
func (g *Gateway) AddCard(id, customerID, brand, last4 string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PaymentMethods[id] = &billing.PaymentMethod{
		ID: id, CustomerID: customerID, Brand: brand, Last4: last4, ExpMonth: 12, ExpYear: 2030,
	}
}

func (g *Gateway) CreateCustomer(_ context.Context, email, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return "", ErrUnavailable
	}
	id := g.next("cus")
	g.Customers[id] = email
	return id, nil
}

func (g *Gateway) CreateSetupIntent(_ context.Context, customerID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return "", ErrUnavailable
	}
	return g.next("seti") + "_secret_" + customerID, nil
}

func (g *Gateway) GetPaymentMethod(_ context.Context, id string) (*billing.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrUnavailable
	}
	pm, ok := g.PaymentMethods[id]
	if !ok {
		return nil, fmt.Errorf("no such payment method %s", id)
	}
	cp := *pm
	return &cp, nil
}

func (g *Gateway) AttachPaymentMethod(_ context.Context, id, customerID string) (*billing.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrUnavailable
	}
	pm, ok := g.PaymentMethods[id]
	if !ok {
		return nil, fmt.Errorf("no such payment method %s", id)
	}
	pm.CustomerID = customerID
	cp := *pm
	return &cp, nil
}

func (g *Gateway) DetachPaymentMethod(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return ErrUnavailable
	}
	if pm, ok := g.PaymentMethods[id]; ok {
		pm.CustomerID = ""
	}
	g.Detached = append(g.Detached, id)
	return nil
}

// CreateSubscription mimics Stripe: trials start in trialing with no charge,
// everything else starts incomplete with an open invoice and a client secret.
func (g *Gateway) CreateSubscription(_ context.Context, req billing.CreateSubscriptionRequest) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrUnavailable
	}
	g.Created = append(g.Created, req)

	id := g.next("sub")
	sub := &billing.Subscription{
		ID:         id,
		CustomerID: req.CustomerID,
		PriceID:    req.PriceID,
	}
	end := time.Now().Add(30 * 24 * time.Hour).UTC()
	sub.CurrentPeriodEnd = &end

	inv := &billing.Invoice{
		ID:             g.next("in"),
		CustomerID:     req.CustomerID,
		SubscriptionID: id,
		Currency:       "sgd",
	}
	if req.TrialDays > 0 {
		trialEnd := time.Now().Add(time.Duration(req.TrialDays) * 24 * time.Hour).UTC()
		sub.TrialEnd = &trialEnd
		sub.Status = subscription.StatusTrialing
		inv.Status = "paid"
		inv.AmountDue = decimal.Zero
	} else {
		sub.Status = subscription.StatusIncomplete
		pi := g.next("pi")
		inv.Status = "open"
		inv.PaymentIntentID = pi
		inv.ClientSecret = pi + "_secret"
		inv.AmountDue = decimal.RequireFromString("9.90")
	}
	sub.LatestInvoice = inv
	g.Subscriptions[id] = sub

	cp := *sub
	return &cp, nil
}

func (g *Gateway) GetSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrUnavailable
	}
	sub, ok := g.Subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", id)
	}
	cp := *sub
	return &cp, nil
}

func (g *Gateway) CancelSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrUnavailable
	}
	sub, ok := g.Subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", id)
	}
	sub.Status = subscription.StatusCanceled
	cp := *sub
	return &cp, nil
}

// SetStatus changes the processor-side status, as Stripe would on its own.
func (g *Gateway) SetStatus(id string, status subscription.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sub, ok := g.Subscriptions[id]; ok {
		sub.Status = status
	}
}

// ParseWebhook treats the signature as a key into Events.
func (g *Gateway) ParseWebhook(_ []byte, signature string) (*billing.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ev, ok := g.Events[signature]
	if !ok {
		return nil, errors.New("billingtest: bad signature")
	}
	return ev, nil
}

var _ billing.Gateway = (*Gateway)(nil)
