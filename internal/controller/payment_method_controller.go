package controller

import (
	"github.com/gofiber/fiber/v2"

	"deluxe_backend/internal/middleware"
	"deluxe_backend/internal/service"
)

type AddPaymentMethodInput struct {
	PaymentMethodID string `json:"paymentMethodID" validate:"required,startswith=pm_"`
}

type PaymentMethodController struct {
	methods *service.PaymentMethodService
}

func NewPaymentMethodController(methods *service.PaymentMethodService) *PaymentMethodController {
	return &PaymentMethodController{methods: methods}
}

func (ctl *PaymentMethodController) CreateSetupIntent(c *fiber.Ctx) error {
	secret, err := ctl.methods.CreateSetupIntent(c.UserContext(), middleware.Claims(c).AccountID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"clientSecret": secret})
}

func (ctl *PaymentMethodController) AddPaymentMethod(c *fiber.Ctx) error {
	input := new(AddPaymentMethodInput)
	if handled, err := parseBody(c, input); handled {
		return err
	}

	pm, err := ctl.methods.AddPaymentMethod(c.UserContext(), middleware.Claims(c).AccountID, input.PaymentMethodID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payment_method": pm.Summary()})
}

func (ctl *PaymentMethodController) RemovePaymentMethod(c *fiber.Ctx) error {
	if err := ctl.methods.RemovePaymentMethod(c.UserContext(), middleware.Claims(c).AccountID, c.Params("pmID")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment method removed"})
}
