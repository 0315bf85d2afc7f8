package controller

import (
	"github.com/gofiber/fiber/v2"

	"deluxe_backend/internal/middleware"
	"deluxe_backend/internal/model"
	"deluxe_backend/internal/service"
)

type UpdateAccountInput struct {
	Username *string `json:"username" validate:"omitempty,min=2,max=50"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type AccountController struct {
	accounts *service.AccountService
}

func NewAccountController(accounts *service.AccountService) *AccountController {
	return &AccountController{accounts: accounts}
}

// GetAccount returns the account, its saved cards and its live subscription.
// Routed behind RequireAccountOwner, so the id is the caller's.
func (ctl *AccountController) GetAccount(c *fiber.Ctx) error {
	claims := middleware.Claims(c)

	overview, err := ctl.accounts.GetAccount(c.UserContext(), claims.AccountID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"account":          overview.Account.GetPublicProfile(),
		"liveSubscription": subscriptionView(overview.LiveSubscription),
	})
}

func (ctl *AccountController) UpdateAccount(c *fiber.Ctx) error {
	input := new(UpdateAccountInput)
	if handled, err := parseBody(c, input); handled {
		return err
	}

	account, err := ctl.accounts.UpdateAccount(c.UserContext(), middleware.Claims(c).AccountID, service.UpdateAccountInput{
		Username: input.Username,
		Email:    input.Email,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Account updated",
		"account": account.GetPublicProfile(),
	})
}

func (ctl *AccountController) DeleteAccount(c *fiber.Ctx) error {
	if err := ctl.accounts.DeleteAccount(c.UserContext(), middleware.Claims(c).AccountID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Account deleted"})
}

func subscriptionView(sub *model.Subscription) fiber.Map {
	if sub == nil {
		return nil
	}
	view := fiber.Map{
		"id":                 sub.StripeSubscriptionID,
		"status":             sub.StripeStatus,
		"current_period_end": sub.CurrentPeriodEnd,
		"trial_end":          sub.TrialEnd,
		"plan": fiber.Map{
			"name":  sub.Plan.Name,
			"slug":  sub.Plan.Slug,
			"price": sub.Plan.Price,
		},
	}
	if sub.StripeStatus.AwaitsPayment() {
		view["clientSecret"] = sub.PendingClientSecret()
	}
	return view
}
