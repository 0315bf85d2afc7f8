package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"deluxe_backend/internal/model"
	"deluxe_backend/pkg/billing"
)

type AccountService struct {
	accounts      AccountStore
	subscriptions SubscriptionStore
	gateway       billing.Gateway
	logger        *zap.Logger
}

func NewAccountService(accounts AccountStore, subscriptions SubscriptionStore, gateway billing.Gateway, logger *zap.Logger) *AccountService {
	return &AccountService{
		accounts:      accounts,
		subscriptions: subscriptions,
		gateway:       gateway,
		logger:        logger,
	}
}

// AccountOverview is an account together with its live subscription, if any.
type AccountOverview struct {
	Account          *model.Account
	LiveSubscription *model.Subscription
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Login    string
	Password string
	Device   string
	IP       string
}

// Register creates the Stripe customer first so every stored account has one.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	exists, err := s.accounts.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("check account: %w", err)
	}
	if exists {
		return nil, ErrAccountExists
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("%w: create customer: %v", ErrProvider, err)
	}

	account := &model.Account{
		Username:         username,
		Email:            email,
		StripeCustomerID: customerID,
	}
	if err := s.accounts.Create(ctx, account, hash); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("account registered",
		zap.Uint("account_id", account.ID),
		zap.String("stripe_customer_id", customerID),
	)
	return account, nil
}

// Login checks the current password and records the attempt either way.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*model.Account, error) {
	account, err := s.accounts.FindByLogin(ctx, strings.TrimSpace(in.Login))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	hash, err := s.accounts.CurrentPasswordHash(ctx, account.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load password: %w", err)
	}
	ok := hash != "" && CheckPassword(hash, in.Password)

	entry := &model.LoginHistory{
		AccountID: account.ID,
		Device:    in.Device,
		IP:        in.IP,
		Succeeded: ok,
	}
	if err := s.accounts.RecordLogin(ctx, entry); err != nil {
		s.logger.Warn("failed to record login", zap.Uint("account_id", account.ID), zap.Error(err))
	}

	if !ok {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// GetAccount returns the account with its payment methods and live subscription.
func (s *AccountService) GetAccount(ctx context.Context, id uint) (*AccountOverview, error) {
	account, err := s.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	live, err := s.subscriptions.FindLiveByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find live subscription: %w", err)
	}
	return &AccountOverview{Account: account, LiveSubscription: live}, nil
}

type UpdateAccountInput struct {
	Username *string
	Email    *string
}

// UpdateAccount applies a partial update. Nil fields are left alone.
func (s *AccountService) UpdateAccount(ctx context.Context, id uint, in UpdateAccountInput) (*model.Account, error) {
	updates := map[string]interface{}{}
	if in.Username != nil {
		updates["username"] = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}

	if len(updates) > 0 {
		username, _ := updates["username"].(string)
		email, _ := updates["email"].(string)
		if taken, err := s.takenByOther(ctx, id, username, email); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrAccountExists
		}

		err := s.accounts.UpdateByID(ctx, id, updates)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("update account: %w", err)
		}
	}
	return s.findAccount(ctx, id)
}

// DeleteAccount cancels the account's live subscription at Stripe, then
// removes the account with everything it owns. Nothing is deleted when the
// cancel fails, so the customer is never left billed without an account.
func (s *AccountService) DeleteAccount(ctx context.Context, id uint) error {
	if _, err := s.findAccount(ctx, id); err != nil {
		return err
	}

	live, err := s.subscriptions.FindLiveByAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("find live subscription: %w", err)
	}
	if live != nil {
		if _, err := s.gateway.CancelSubscription(ctx, live.StripeSubscriptionID); err != nil {
			return fmt.Errorf("%w: cancel subscription: %v", ErrProvider, err)
		}
		s.logger.Info("subscription canceled for account deletion",
			zap.Uint("account_id", id),
			zap.String("subscription_id", live.StripeSubscriptionID),
		)
	}

	if err := s.accounts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.logger.Info("account deleted", zap.Uint("account_id", id))
	return nil
}

func (s *AccountService) findAccount(ctx context.Context, id uint) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *AccountService) takenByOther(ctx context.Context, id uint, username, email string) (bool, error) {
	for _, login := range []string{username, email} {
		if login == "" {
			continue
		}
		other, err := s.accounts.FindByLogin(ctx, login)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("check account: %w", err)
		}
		if other.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
