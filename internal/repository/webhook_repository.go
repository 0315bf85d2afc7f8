package repository

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"deluxe_backend/internal/model"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Seen(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("stripe_event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

func (r *WebhookRepository) Record(ctx context.Context, eventID, eventType string, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return r.db.WithContext(ctx).Create(&model.WebhookEvent{
		StripeEventID: eventID,
		Type:          eventType,
		Payload:       datatypes.JSON(payload),
	}).Error
}
