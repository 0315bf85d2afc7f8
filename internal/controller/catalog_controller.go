package controller

import (
	"github.com/gofiber/fiber/v2"

	"deluxe_backend/internal/service"
)

type CatalogController struct {
	catalog *service.CatalogService
}

func NewCatalogController(catalog *service.CatalogService) *CatalogController {
	return &CatalogController{catalog: catalog}
}

func (ctl *CatalogController) ListPlans(c *fiber.Ctx) error {
	plans, err := ctl.catalog.Plans(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch plans",
		})
	}
	return c.JSON(plans)
}

func (ctl *CatalogController) ListProducts(c *fiber.Ctx) error {
	products, err := ctl.catalog.Products(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch products",
		})
	}
	return c.JSON(products)
}
