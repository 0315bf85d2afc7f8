package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deluxe_backend/internal/model"
	"deluxe_backend/pkg/subscription"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Plan").Preload("Invoices", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
}

func liveStatusValues() []string {
	statuses := subscription.LiveStatuses()
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return values
}

// FindLiveByAccount returns the account's live subscription, or nil when it has none.
func (r *SubscriptionRepository) FindLiveByAccount(ctx context.Context, accountID uint) (*model.Subscription, error) {
	var sub model.Subscription
	err := withDetails(r.db.WithContext(ctx)).
		Where("account_id = ? AND stripe_status IN ?", accountID, liveStatusValues()).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) FindByStripeID(ctx context.Context, stripeID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := withDetails(r.db.WithContext(ctx)).
		Where("stripe_subscription_id = ?", stripeID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create stores a new subscription with its invoices. When markTrialed is
// set the owning account's trial is consumed in the same transaction.
//
// A row with the same Stripe id may already exist when the
// customer.subscription.created webhook was applied first. The stored row is
// kept, sub takes its id, and sub's invoices are upserted onto it.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *model.Subscription, markTrialed bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored model.Subscription
		err := tx.Where("stripe_subscription_id = ?", sub.StripeSubscriptionID).Limit(1).Find(&stored).Error
		if err != nil {
			return err
		}
		if stored.ID == 0 {
			if err := tx.Omit("Plan").Create(sub).Error; err != nil {
				return err
			}
		} else {
			sub.ID = stored.ID
			sub.CreatedAt = stored.CreatedAt
			for i := range sub.Invoices {
				sub.Invoices[i].SubscriptionID = stored.ID
				if err := upsertInvoice(tx, &sub.Invoices[i]); err != nil {
					return err
				}
			}
		}
		if !markTrialed {
			return nil
		}
		return tx.Model(&model.Account{}).
			Where("id = ?", sub.AccountID).
			Update("trialed", true).Error
	})
}

// UpdateState writes the processor-owned fields of a subscription.
func (r *SubscriptionRepository) UpdateState(ctx context.Context, id uint, status subscription.Status, periodEnd, trialEnd *time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stripe_status":      string(status),
			"current_period_end": periodEnd,
			"trial_end":          trialEnd,
		}).Error
}

// Delete removes the subscription and its invoices.
func (r *SubscriptionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_id = ?", id).Delete(&model.Invoice{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Subscription{}, id).Error
	})
}

// UpsertInvoice inserts or refreshes an invoice keyed by its Stripe id.
// An empty client secret never overwrites a stored one.
func (r *SubscriptionRepository) UpsertInvoice(ctx context.Context, inv *model.Invoice) error {
	return upsertInvoice(r.db.WithContext(ctx), inv)
}

func upsertInvoice(db *gorm.DB, inv *model.Invoice) error {
	columns := []string{"status", "amount_due", "currency", "hosted_invoice_url", "updated_at"}
	if inv.StripePaymentIntentID != "" {
		columns = append(columns, "stripe_payment_intent_id")
	}
	if inv.StripeClientSecret != "" {
		columns = append(columns, "stripe_client_secret")
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_invoice_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(inv).Error
}

// ListStaleIncomplete returns incomplete subscriptions created before cutoff.
func (r *SubscriptionRepository) ListStaleIncomplete(ctx context.Context, cutoff time.Time) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_status = ? AND created_at < ?", string(subscription.StatusIncomplete), cutoff).
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}
