package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Plan is a catalog row. Slug is the plan type used in checkout routes.
type Plan struct {
	gorm.Model
	Name            string          `json:"name" gorm:"not null"`
	Slug            string          `json:"slug" gorm:"index;not null"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	Description     string          `json:"description"`
	StripeProductID string          `json:"stripe_product_id"`
	StripePriceID   string          `json:"stripe_price_id"`
}

type Product struct {
	gorm.Model
	Name        string          `json:"name" gorm:"not null"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	Description string          `json:"description"`
	ImageLink   string          `json:"image_link"`
}
