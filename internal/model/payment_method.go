package model

import (
	"fmt"
	"time"
)

// PaymentMethod is a card saved at Stripe for an account. Rows are hard
// deleted so a detached card can be attached again later.
type PaymentMethod struct {
	ID                    uint      `json:"id" gorm:"primaryKey"`
	AccountID             uint      `json:"account_id" gorm:"index;not null"`
	StripePaymentMethodID string    `json:"stripe_payment_method_id" gorm:"uniqueIndex;not null"`
	CardBrand             string    `json:"card_brand"`
	CardLast4             string    `json:"card_last4" gorm:"size:4"`
	CardExpMonth          int       `json:"card_exp_month"`
	CardExpYear           int       `json:"card_exp_year"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ExpDate formats the expiry as MM/YY.
func (p PaymentMethod) ExpDate() string {
	return fmt.Sprintf("%02d/%02d", p.CardExpMonth, p.CardExpYear%100)
}

func (p PaymentMethod) Summary() map[string]interface{} {
	return map[string]interface{}{
		"stripe_payment_method_id": p.StripePaymentMethodID,
		"card_brand":               p.CardBrand,
		"last4":                    p.CardLast4,
		"exp_date":                 p.ExpDate(),
	}
}
