package websocket

import (
	"encoding/json"
	"sync"

	"fbo-callrelay-be/internal/dto"
	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/pkg/events"
	"fbo-callrelay-be/pkg/metrics"
)

// SnapshotFunc runs fn with the current orders while no event can be broadcast.
type SnapshotFunc func(fn func(orders []entity.Order))

// Hub fans dashboard events out to every connected client.
type Hub struct {
	clients map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex

	snapshot SnapshotFunc

	// Every event is also handed to forward, if set.
	forward events.Broadcaster

	metrics *metrics.Metrics
	logger  logger.ILogger
}

var _ events.Broadcaster = (*Hub)(nil)

func NewHub(forward events.Broadcaster, m *metrics.Metrics, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		forward:    forward,
		metrics:    m,
		logger:     log,
	}
}

// UseSnapshot sets the source of INITIAL_STATE. It must be called before Run.
func (h *Hub) UseSnapshot(snapshot SnapshotFunc) {
	h.snapshot = snapshot
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// addClient queues INITIAL_STATE and starts delivery in one step under the
// snapshot lock, so the client neither misses nor repeats an event.
func (h *Hub) addClient(client *Client) {
	attach := func(orders []entity.Order) {
		data, err := json.Marshal(events.Envelope(dto.InitialStateEvent(orders)))
		if err != nil {
			h.logger.Error("Hub", "Failed to marshal initial state", map[string]interface{}{"error": err.Error()})
			return
		}

		h.mu.Lock()
		client.Send <- data
		h.clients[client] = struct{}{}
		count := len(h.clients)
		h.mu.Unlock()

		h.metrics.ConnectedClients.Set(float64(count))
		h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.ID, "clients": count})
	}

	if h.snapshot == nil {
		attach(nil)
		return
	}
	h.snapshot(attach)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.Send)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectedClients.Set(float64(count))
	h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"client_id": client.ID, "clients": count})
}

// Broadcast sends an event to ALL connected clients. It never blocks: a client
// whose buffer is full misses the event and stays connected.
func (h *Hub) Broadcast(event events.Event) {
	data, err := json.Marshal(events.Envelope(event))
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
		return
	}

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping message", map[string]interface{}{
				"client_id": client.ID,
				"type":      event.EventType(),
			})
		}
	}
	h.mu.RUnlock()

	h.metrics.EventsBroadcast.WithLabelValues(event.EventType()).Inc()

	if h.forward != nil {
		h.forward.Broadcast(event)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
