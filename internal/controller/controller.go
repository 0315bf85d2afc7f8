package controller

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"deluxe_backend/internal/service"
)

var validate = validator.New()

// MsgTryAgain is shown for every payment processor failure.
const MsgTryAgain = "Error! Try again later!"

// parseBody decodes and validates the request body. On failure the 400
// response has already been written and handled is true.
func parseBody(c *fiber.Ctx, dst interface{}) (handled bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if err := validate.Struct(dst); err != nil {
		return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Validation failed",
			"fields": validationFields(err),
		})
	}
	return false, nil
}

func validationFields(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fields
	}
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return fields
}

// respondError maps service errors to JSON responses. Anything unknown is
// returned to the app's error handler.
func respondError(c *fiber.Ctx, err error) error {
	status, msg := fiber.StatusInternalServerError, ""
	switch {
	case errors.Is(err, service.ErrProvider):
		status, msg = fiber.StatusBadGateway, MsgTryAgain
	case errors.Is(err, service.ErrAlreadySubscribed):
		status, msg = fiber.StatusConflict, "You already have an existing plan!"
	case errors.Is(err, service.ErrAccountNotFound):
		status, msg = fiber.StatusNotFound, "Account not found"
	case errors.Is(err, service.ErrPlanNotFound):
		status, msg = fiber.StatusNotFound, "Plan not found"
	case errors.Is(err, service.ErrPaymentMethodNotFound):
		status, msg = fiber.StatusNotFound, "Payment method not found"
	case errors.Is(err, service.ErrPaymentMethodRequired):
		status, msg = fiber.StatusBadRequest, "Add a payment method to start your free trial"
	case errors.Is(err, service.ErrPaymentMethodInUse):
		status, msg = fiber.StatusConflict, "This card is already saved to another account"
	case errors.Is(err, service.ErrAccountExists):
		status, msg = fiber.StatusConflict, "Username or email already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = fiber.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrNoPendingPayment):
		status, msg = fiber.StatusConflict, "Your subscription has no pending payment"
	case errors.Is(err, service.ErrInvalidWebhook):
		status, msg = fiber.StatusBadRequest, "Invalid webhook signature"
	default:
		return err
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// ErrorHandler is the app-wide fallback. Internal error text is never exposed.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
