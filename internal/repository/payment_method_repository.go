package repository

import (
	"context"

	"gorm.io/gorm"

	"deluxe_backend/internal/model"
)

type PaymentMethodRepository struct {
	db *gorm.DB
}

func NewPaymentMethodRepository(db *gorm.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

func (r *PaymentMethodRepository) ListByAccount(ctx context.Context, accountID uint) ([]model.PaymentMethod, error) {
	var methods []model.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC, id ASC").
		Find(&methods).Error
	return methods, err
}

func (r *PaymentMethodRepository) FindByStripeID(ctx context.Context, stripeID string) (*model.PaymentMethod, error) {
	var pm model.PaymentMethod
	if err := r.db.WithContext(ctx).Where("stripe_payment_method_id = ?", stripeID).First(&pm).Error; err != nil {
		return nil, err
	}
	return &pm, nil
}

func (r *PaymentMethodRepository) Create(ctx context.Context, pm *model.PaymentMethod) error {
	return r.db.WithContext(ctx).Create(pm).Error
}

// DeleteByStripeID returns the number of removed rows.
func (r *PaymentMethodRepository) DeleteByStripeID(ctx context.Context, stripeID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("stripe_payment_method_id = ?", stripeID).Delete(&model.PaymentMethod{})
	return res.RowsAffected, res.Error
}
