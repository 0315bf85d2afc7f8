package model

import (
	"time"

	"gorm.io/gorm"
)

type Account struct {
	gorm.Model
	Username         string `json:"username" gorm:"uniqueIndex;not null"`
	Email            string `json:"email" gorm:"uniqueIndex;not null"`
	StripeCustomerID string `json:"stripe_customer_id" gorm:"uniqueIndex;not null"`
	Trialed          bool   `json:"trialed" gorm:"not null;default:false"`

	Passwords      []Password      `json:"-"`
	PaymentMethods []PaymentMethod `json:"payment_methods" gorm:"constraint:OnDelete:CASCADE"`
}

// Password keeps every hash an account has used; the newest row is current.
type Password struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID uint      `gorm:"index;not null"`
	Hash      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (a *Account) GetPublicProfile() map[string]interface{} {
	methods := make([]map[string]interface{}, 0, len(a.PaymentMethods))
	for _, pm := range a.PaymentMethods {
		methods = append(methods, pm.Summary())
	}
	return map[string]interface{}{
		"id":              a.ID,
		"username":        a.Username,
		"email":           a.Email,
		"trialed":         a.Trialed,
		"payment_methods": methods,
		"created_at":      a.CreatedAt,
	}
}
