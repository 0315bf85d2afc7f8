package model

import (
	"time"

	"github.com/shopspring/decimal"

	"deluxe_backend/pkg/subscription"
)

// Subscription mirrors a Stripe subscription owned by an account.
type Subscription struct {
	ID                   uint                `json:"id" gorm:"primaryKey"`
	AccountID            uint                `json:"account_id" gorm:"index;not null"`
	PlanID               uint                `json:"plan_id" gorm:"not null"`
	StripeSubscriptionID string              `json:"stripe_subscription_id" gorm:"uniqueIndex;not null"`
	StripeStatus         subscription.Status `json:"stripe_status" gorm:"index;not null"`
	CurrentPeriodEnd     *time.Time          `json:"current_period_end"`
	TrialEnd             *time.Time          `json:"trial_end"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`

	Plan     Plan      `json:"plan" gorm:"foreignKey:PlanID"`
	Invoices []Invoice `json:"invoices" gorm:"constraint:OnDelete:CASCADE"`
}

// PendingClientSecret returns the PaymentIntent secret of the newest invoice
// still carrying one.
func (s *Subscription) PendingClientSecret() string {
	var latest *Invoice
	for i := range s.Invoices {
		inv := &s.Invoices[i]
		if inv.StripeClientSecret == "" {
			continue
		}
		if latest == nil || inv.CreatedAt.After(latest.CreatedAt) || (inv.CreatedAt.Equal(latest.CreatedAt) && inv.ID > latest.ID) {
			latest = inv
		}
	}
	if latest == nil {
		return ""
	}
	return latest.StripeClientSecret
}

// Invoice mirrors a Stripe invoice of a subscription.
type Invoice struct {
	ID                    uint            `json:"id" gorm:"primaryKey"`
	SubscriptionID        uint            `json:"subscription_id" gorm:"index;not null"`
	StripeInvoiceID       string          `json:"stripe_invoice_id" gorm:"uniqueIndex;not null"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id"`
	StripeClientSecret    string          `json:"stripe_client_secret"`
	Status                string          `json:"status"`
	AmountDue             decimal.Decimal `json:"amount_due" gorm:"type:numeric(10,2)"`
	Currency              string          `json:"currency" gorm:"size:3"`
	HostedInvoiceURL      string          `json:"hosted_invoice_url"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
