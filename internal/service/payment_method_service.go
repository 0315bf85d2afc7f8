package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deluxe_backend/internal/model"
	"deluxe_backend/pkg/billing"
)

type PaymentMethodService struct {
	accounts AccountStore
	methods  PaymentMethodStore
	gateway  billing.Gateway
	logger   *zap.Logger
}

func NewPaymentMethodService(accounts AccountStore, methods PaymentMethodStore, gateway billing.Gateway, logger *zap.Logger) *PaymentMethodService {
	return &PaymentMethodService{
		accounts: accounts,
		methods:  methods,
		gateway:  gateway,
		logger:   logger,
	}
}

// CreateSetupIntent returns the client secret the browser uses to collect a card.
func (s *PaymentMethodService) CreateSetupIntent(ctx context.Context, accountID uint) (string, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return "", err
	}
	secret, err := s.gateway.CreateSetupIntent(ctx, account.StripeCustomerID)
	if err != nil {
		return "", fmt.Errorf("%w: create setup intent: %v", ErrProvider, err)
	}
	return secret, nil
}

// AddPaymentMethod saves a card collected by the client. The card is attached
// to the account's customer when it is not already, and saving the same card
// twice returns the stored row.
func (s *PaymentMethodService) AddPaymentMethod(ctx context.Context, accountID uint, paymentMethodID string) (*model.PaymentMethod, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	existing, err := s.methods.FindByStripeID(ctx, paymentMethodID)
	switch {
	case err == nil && existing.AccountID == accountID:
		return existing, nil
	case err == nil:
		return nil, ErrPaymentMethodInUse
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("find payment method: %w", err)
	}

	pm, err := s.gateway.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve payment method: %v", ErrProvider, err)
	}
	if pm.CustomerID != "" && pm.CustomerID != account.StripeCustomerID {
		return nil, ErrPaymentMethodInUse
	}
	if pm.CustomerID == "" {
		pm, err = s.gateway.AttachPaymentMethod(ctx, paymentMethodID, account.StripeCustomerID)
		if err != nil {
			return nil, fmt.Errorf("%w: attach payment method: %v", ErrProvider, err)
		}
	}

	row := &model.PaymentMethod{
		AccountID:             accountID,
		StripePaymentMethodID: pm.ID,
		CardBrand:             pm.Brand,
		CardLast4:             pm.Last4,
		CardExpMonth:          pm.ExpMonth,
		CardExpYear:           pm.ExpYear,
	}
	if err := s.methods.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("save payment method: %w", err)
	}

	s.logger.Info("payment method added",
		zap.Uint("account_id", accountID),
		zap.String("payment_method_id", pm.ID),
	)
	return row, nil
}

// RemovePaymentMethod detaches the card at Stripe and deletes the row.
// Only the owning account may remove it.
func (s *PaymentMethodService) RemovePaymentMethod(ctx context.Context, accountID uint, paymentMethodID string) error {
	pm, err := s.OwnedPaymentMethod(ctx, accountID, paymentMethodID)
	if err != nil {
		return err
	}
	if err := s.gateway.DetachPaymentMethod(ctx, pm.StripePaymentMethodID); err != nil {
		return fmt.Errorf("%w: detach payment method: %v", ErrProvider, err)
	}
	if _, err := s.methods.DeleteByStripeID(ctx, pm.StripePaymentMethodID); err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}
	s.logger.Info("payment method removed",
		zap.Uint("account_id", accountID),
		zap.String("payment_method_id", paymentMethodID),
	)
	return nil
}

// OwnedPaymentMethod returns the stored card when it belongs to the account.
func (s *PaymentMethodService) OwnedPaymentMethod(ctx context.Context, accountID uint, paymentMethodID string) (*model.PaymentMethod, error) {
	pm, err := s.methods.FindByStripeID(ctx, paymentMethodID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentMethodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment method: %w", err)
	}
	if pm.AccountID != accountID {
		return nil, ErrPaymentMethodNotFound
	}
	return pm, nil
}

func (s *PaymentMethodService) account(ctx context.Context, id uint) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}
