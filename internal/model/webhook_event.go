package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent records Stripe events that were already applied.
type WebhookEvent struct {
	ID            uint           `gorm:"primaryKey"`
	StripeEventID string         `gorm:"uniqueIndex;not null"`
	Type          string         `gorm:"index;not null"`
	Payload       datatypes.JSON `gorm:"not null"`
	ProcessedAt   time.Time      `gorm:"autoCreateTime"`
}
