package controller

import (
	"fbo-callrelay-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IOrderController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
}

type orderController struct {
	webhookService service.IWebhookService
}

func NewOrderController(webhookService service.IWebhookService) IOrderController {
	return &orderController{webhookService: webhookService}
}

func (c *orderController) RegisterRoutes(r fiber.Router) {
	r.Get("/orders", c.List)
	r.Post("/reset", c.Reset)
}

func (c *orderController) List(ctx *fiber.Ctx) error {
	return ctx.JSON(c.webhookService.ListOrders(ctx.UserContext()))
}

func (c *orderController) Reset(ctx *fiber.Ctx) error {
	c.webhookService.Reset(ctx.UserContext())
	return ctx.JSON(fiber.Map{"status": "reset"})
}
