package serverutils

import (
	"errors"

	"fbo-callrelay-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ErrorResponse(code int, message string) Response {
	return Response{Code: code, Message: message}
}

// ErrorHandler is the fiber error handler: fiber errors keep their status,
// anything else is a 500.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}
