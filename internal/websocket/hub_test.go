package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"fbo-callrelay-be/internal/dto"
	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/pkg/events"
	"fbo-callrelay-be/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forwardRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *forwardRecorder) Broadcast(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, event.EventType())
}

func newTestHub(forward events.Broadcaster) *Hub {
	return NewHub(forward, metrics.NewMetrics("test", prometheus.NewRegistry()), logger.NewNopLogger())
}

func newTestClient(h *Hub, buffer int) *Client {
	return &Client{ID: "client-" + string(rune('a'+len(h.clients))), Hub: h, Send: make(chan []byte, buffer)}
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHub_InitialStateFirst(t *testing.T) {
	h := newTestHub(nil)
	h.UseSnapshot(func(fn func(orders []entity.Order)) {
		fn([]entity.Order{{Id: "live-order-1", Status: entity.OrderStatusProcessing}})
	})

	c := newTestClient(h, 4)
	h.addClient(c)
	h.Broadcast(dto.ResetEvent())

	first := decode(t, <-c.Send)
	assert.Equal(t, events.TypeInitialState, first["type"])
	orders, ok := first["orders"].([]interface{})
	require.True(t, ok)
	require.Len(t, orders, 1)
	assert.Equal(t, "live-order-1", orders[0].(map[string]interface{})["id"])

	second := decode(t, <-c.Send)
	assert.Equal(t, events.TypeReset, second["type"])
}

func TestHub_InitialStateWithoutSnapshot(t *testing.T) {
	h := newTestHub(nil)
	c := newTestClient(h, 1)

	h.addClient(c)

	msg := decode(t, <-c.Send)
	assert.Equal(t, events.TypeInitialState, msg["type"])
	assert.Equal(t, []interface{}{}, msg["orders"])
}

func TestHub_BroadcastFlattensPayload(t *testing.T) {
	h := newTestHub(nil)
	c := newTestClient(h, 4)
	h.addClient(c)
	<-c.Send

	h.Broadcast(dto.TranscriptEvent("live-order-9", entity.TranscriptEntry{Role: entity.TranscriptRoleAgent, Content: "Fuel is on the way"}, []entity.TriggeredAgent{}))

	msg := decode(t, <-c.Send)
	assert.Equal(t, events.TypeTranscript, msg["type"])
	assert.Equal(t, "live-order-9", msg["orderId"])
	assert.Equal(t, "agent", msg["role"])
	assert.Equal(t, "Fuel is on the way", msg["message"])
	assert.Equal(t, []interface{}{}, msg["triggered_agents"])
}

func TestHub_SlowClientIsSkippedNotDropped(t *testing.T) {
	h := newTestHub(nil)
	slow := newTestClient(h, 1)
	fast := newTestClient(h, 8)
	h.addClient(slow)
	h.addClient(fast)
	<-fast.Send

	h.Broadcast(dto.ResetEvent())
	h.Broadcast(dto.ResetEvent())

	assert.Equal(t, 2, h.ClientCount())
	assert.Len(t, slow.Send, 1, "slow client still holds only its initial state")
	assert.Len(t, fast.Send, 2)
}

func TestHub_ForwardsEveryEvent(t *testing.T) {
	fwd := &forwardRecorder{}
	h := newTestHub(fwd)

	h.Broadcast(dto.ResetEvent())
	h.Broadcast(dto.NewOrderEvent(entity.Order{Id: "live-order-2"}))

	assert.Equal(t, []string{events.TypeReset, events.TypeNewOrder}, fwd.types)
}

func TestHub_RemoveClientClosesSend(t *testing.T) {
	h := newTestHub(nil)
	c := newTestClient(h, 1)
	h.addClient(c)
	<-c.Send

	h.removeClient(c)
	h.removeClient(c)

	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, h.ClientCount())
}
