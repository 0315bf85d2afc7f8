package controller

import (
	"github.com/gofiber/fiber/v2"

	"deluxe_backend/internal/middleware"
	"deluxe_backend/internal/service"
	"deluxe_backend/pkg/subscription"
)

type CreateSubscriptionInput struct {
	PaymentMethodID string `json:"paymentMethodID" validate:"omitempty,startswith=pm_"`
}

type SubscriptionController struct {
	checkout *service.CheckoutService
	webhooks *service.WebhookService
}

func NewSubscriptionController(checkout *service.CheckoutService, webhooks *service.WebhookService) *SubscriptionController {
	return &SubscriptionController{checkout: checkout, webhooks: webhooks}
}

// PreviewCheckout reports which checkout branch applies. It never creates
// anything at Stripe.
func (ctl *SubscriptionController) PreviewCheckout(c *fiber.Ctx) error {
	preview, err := ctl.checkout.Preview(c.UserContext(), middleware.Claims(c).AccountID, c.Params("type"))
	if err != nil {
		return respondError(c, err)
	}

	resp := fiber.Map{
		"branch": preview.Branch,
		"plan": fiber.Map{
			"name":        preview.Plan.Name,
			"slug":        preview.Plan.Slug,
			"price":       preview.Plan.Price,
			"description": preview.Plan.Description,
		},
	}
	switch preview.Branch {
	case subscription.BranchCompletePayment:
		resp["clientSecret"] = preview.ClientSecret
	case subscription.BranchFreeTrial:
		resp["trialDays"] = preview.TrialDays
	case subscription.BranchAlreadySubscribed:
		resp["message"] = "You already have an existing plan!"
	}
	return c.JSON(resp)
}

// CreateSubscription creates a subscription for the plan type, or returns
// the pending secret of the account's incomplete one.
func (ctl *SubscriptionController) CreateSubscription(c *fiber.Ctx) error {
	input := new(CreateSubscriptionInput)
	if len(c.Body()) > 0 {
		if handled, err := parseBody(c, input); handled {
			return err
		}
	}

	result, err := ctl.checkout.Checkout(c.UserContext(), middleware.Claims(c).AccountID, c.Params("type"), input.PaymentMethodID)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if result.Branch == subscription.BranchCompletePayment {
		status = fiber.StatusOK
	}
	resp := fiber.Map{
		"branch":         result.Branch,
		"status":         result.Status,
		"subscriptionId": result.SubscriptionID,
	}
	if result.ClientSecret != "" {
		resp["clientSecret"] = result.ClientSecret
	}
	return c.Status(status).JSON(resp)
}

// HandleWebhook must answer 2xx quickly. Non-2xx makes Stripe redeliver.
func (ctl *SubscriptionController) HandleWebhook(c *fiber.Ctx) error {
	outcome, err := ctl.webhooks.HandleWebhook(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"received": true, "outcome": outcome})
}
