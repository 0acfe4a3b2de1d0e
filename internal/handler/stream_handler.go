package handler

import (
	"fbo-callrelay-be/internal/pkg/logger"
	internalWS "fbo-callrelay-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamHandler upgrades dashboard connections onto the event stream.
type StreamHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewStreamHandler(hub *internalWS.Hub, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		hub:    hub,
		logger: log,
	}
}

// RegisterRoutes mounts the stream on /ws and on the root path, where the
// dashboard connects by default.
func (h *StreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws", h.ServeWs)
	r.Get("/", h.ServeWs)
}

// ServeWs handles websocket requests from the peer.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("StreamHandler", "Dashboard connected", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		internalWS.ServeWs(h.hub, conn)
		h.logger.Info("StreamHandler", "Dashboard disconnected", map[string]interface{}{"remote": conn.RemoteAddr().String()})
	})(c)
}
