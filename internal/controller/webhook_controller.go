package controller

import (
	"fbo-callrelay-be/internal/dto"
	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/internal/pkg/serverutils"
	"fbo-callrelay-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	HandleWebhook(ctx *fiber.Ctx) error
	HandleIncomingCall(ctx *fiber.Ctx) error
}

type webhookController struct {
	webhookService service.IWebhookService
	logger         logger.ILogger
}

func NewWebhookController(webhookService service.IWebhookService, log logger.ILogger) IWebhookController {
	return &webhookController{
		webhookService: webhookService,
		logger:         log,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	r.Post("/webhook", c.HandleWebhook)
	r.Post("/webhook/:orderId", c.HandleWebhook)
	r.Post("/voice/incoming", c.HandleIncomingCall)
}

// HandleWebhook always answers 200 so the call platform never retries; what
// happened to the event is only logged.
func (c *webhookController) HandleWebhook(ctx *fiber.Ctx) error {
	var req dto.WebhookPayload
	if err := ctx.BodyParser(&req); err != nil {
		c.logger.Warn("WebhookController", "Unparseable webhook body", map[string]interface{}{"error": err.Error()})
		return ctx.SendString(dto.AckOK)
	}

	res, err := c.webhookService.HandleWebhook(ctx.UserContext(), ctx.Params("orderId"), &req)
	if err != nil {
		c.logger.Warn("WebhookController", "Webhook event not fully applied", map[string]interface{}{
			"outcome":  res.Outcome,
			"order_id": res.OrderID,
			"error":    err.Error(),
		})
	}

	if res.AckJSON {
		return ctx.JSON(fiber.Map{"result": res.Ack})
	}
	return ctx.SendString(res.Ack)
}

// HandleIncomingCall receives the telephony call-setup form and answers with
// an empty voice response.
func (c *webhookController) HandleIncomingCall(ctx *fiber.Ctx) error {
	var req dto.CallSetupRequest
	if err := ctx.BodyParser(&req); err != nil {
		c.logger.Warn("WebhookController", "Unparseable call setup form", map[string]interface{}{"error": err.Error()})
	} else if err := serverutils.ValidateRequest(&req); err != nil {
		c.logger.Warn("WebhookController", "Call setup without caller", map[string]interface{}{"error": err.Error(), "call_sid": req.CallSid})
	} else if err := c.webhookService.HandleCallSetup(ctx.UserContext(), req.CallerPhone(), req.CallSid); err != nil {
		c.logger.Warn("WebhookController", "Call setup ignored", map[string]interface{}{"error": err.Error()})
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMETextXML)
	return ctx.SendString(dto.AckEmptyVoiceReponse)
}
