package service

import "errors"

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountExists         = errors.New("username or email already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPlanNotFound          = errors.New("plan not found")
	ErrAlreadySubscribed     = errors.New("account already has a live subscription")
	ErrPaymentMethodRequired = errors.New("a payment method is required to start the trial")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrPaymentMethodInUse    = errors.New("payment method belongs to another account")
	ErrNoPendingPayment      = errors.New("subscription has no pending payment secret")

	// ErrProvider wraps every failure reported by the payment processor.
	ErrProvider = errors.New("payment provider error")
)

// ErrInvalidWebhook is returned when a webhook payload fails signature verification.
var ErrInvalidWebhook = errors.New("invalid webhook signature")
