package server

import (
	"context"

	"fbo-callrelay-be/internal/bootstrap"
	"fbo-callrelay-be/internal/config"
	"fbo-callrelay-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	// Initialize Fiber App
	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024, // 1MB
		ErrorHandler:          serverutils.ErrorHandler(container.Logger),
		DisableStartupMessage: cfg.IsProduction(),
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.App.CorsAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) Run() error {
	s.container.Logger.Info("Server", "Server is running", map[string]interface{}{"addr": "http://localhost:" + s.cfg.App.Port})
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok", "clients": c.WebSocketHub.ClientCount()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	c.WebhookController.RegisterRoutes(app)
	c.OrderController.RegisterRoutes(app.Group("/api"))

	// Last: the stream also answers on "/".
	c.StreamHandler.RegisterRoutes(app)
}
