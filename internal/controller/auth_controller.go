package controller

import (
	"github.com/gofiber/fiber/v2"

	"deluxe_backend/internal/model"
	"deluxe_backend/internal/service"
	"deluxe_backend/pkg/utils/jwt"
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3"`
}

type LoginInput struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthController struct {
	accounts *service.AccountService
	tokens   *jwt.Manager
}

func NewAuthController(accounts *service.AccountService, tokens *jwt.Manager) *AuthController {
	return &AuthController{accounts: accounts, tokens: tokens}
}

func (ctl *AuthController) Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if handled, err := parseBody(c, input); handled {
		return err
	}

	account, err := ctl.accounts.Register(c.UserContext(), service.RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	token, err := ctl.token(account)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful",
		"token":   token,
		"account": account.GetPublicProfile(),
	})
}

// Login accepts a username or an email.
func (ctl *AuthController) Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if handled, err := parseBody(c, input); handled {
		return err
	}

	account, err := ctl.accounts.Login(c.UserContext(), service.LoginInput{
		Login:    input.Login,
		Password: input.Password,
		Device:   c.Get(fiber.HeaderUserAgent),
		IP:       c.IP(),
	})
	if err != nil {
		return respondError(c, err)
	}

	token, err := ctl.token(account)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token":   token,
		"account": account.GetPublicProfile(),
	})
}

func (ctl *AuthController) token(account *model.Account) (string, error) {
	token, err := ctl.tokens.GenerateToken(account.ID, account.Username, account.Email)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Could not generate token")
	}
	return token, nil
}
