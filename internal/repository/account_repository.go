package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"deluxe_backend/internal/model"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func withPaymentMethods(db *gorm.DB) *gorm.DB {
	return db.Preload("PaymentMethods", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
}

// FindByID loads an account together with its payment methods.
func (r *AccountRepository) FindByID(ctx context.Context, id uint) (*model.Account, error) {
	var account model.Account
	if err := withPaymentMethods(r.db.WithContext(ctx)).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	var account model.Account
	err := withPaymentMethods(r.db.WithContext(ctx)).
		Where("stripe_customer_id = ?", customerID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByLogin matches either the username or the email.
func (r *AccountRepository) FindByLogin(ctx context.Context, login string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, login).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	return count > 0, err
}

// Create stores the account and its first password hash in one transaction.
func (r *AccountRepository) Create(ctx context.Context, account *model.Account, passwordHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("PaymentMethods", "Passwords").Create(account).Error; err != nil {
			return err
		}
		return tx.Create(&model.Password{AccountID: account.ID, Hash: passwordHash}).Error
	})
}

// UpdateByID applies a partial update. Unknown columns are rejected by the caller.
func (r *AccountRepository) UpdateByID(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CurrentPasswordHash returns the newest stored hash.
func (r *AccountRepository) CurrentPasswordHash(ctx context.Context, accountID uint) (string, error) {
	var pw model.Password
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		First(&pw).Error
	if err != nil {
		return "", err
	}
	return pw.Hash, nil
}

func (r *AccountRepository) AddPassword(ctx context.Context, accountID uint, hash string) error {
	return r.db.WithContext(ctx).Create(&model.Password{AccountID: accountID, Hash: hash}).Error
}

// Delete hard-deletes the account with everything it owns: payment methods,
// passwords, login history and the subscription mirror. The row is removed
// rather than soft-deleted so its username, email and customer id are free
// for a new registration.
func (r *AccountRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account model.Account
		if err := tx.First(&account, id).Error; err != nil {
			return err
		}
		subscriptionIDs := tx.Model(&model.Subscription{}).Select("id").Where("account_id = ?", id)
		if err := tx.Where("subscription_id IN (?)", subscriptionIDs).Delete(&model.Invoice{}).Error; err != nil {
			return err
		}
		for _, owned := range []interface{}{&model.Subscription{}, &model.PaymentMethod{}, &model.Password{}, &model.LoginHistory{}} {
			if err := tx.Where("account_id = ?", id).Delete(owned).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&account).Error
	})
}

func (r *AccountRepository) RecordLogin(ctx context.Context, entry *model.LoginHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
