package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fbo-callrelay-be/internal/dto"
	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/internal/repository/memory"
	"fbo-callrelay-be/pkg/aviation"
	"fbo-callrelay-be/pkg/classifier"
	"fbo-callrelay-be/pkg/events"
	"fbo-callrelay-be/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Broadcast(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func (r *recorder) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type classifyCall struct {
	role    classifier.Role
	message string
	context []classifier.ContextLine
}

// scriptedClassifier answers by exact message text.
type scriptedClassifier struct {
	mu      sync.Mutex
	intents map[string][]classifier.Intent
	errs    map[string]error
	calls   []classifyCall
	// during runs inside Classify, after the fragment was appended.
	during func()
}

func newScriptedClassifier() *scriptedClassifier {
	return &scriptedClassifier{
		intents: make(map[string][]classifier.Intent),
		errs:    make(map[string]error),
	}
}

func (s *scriptedClassifier) on(message string, intents ...classifier.Intent) *scriptedClassifier {
	s.intents[message] = intents
	return s
}

func (s *scriptedClassifier) Classify(ctx context.Context, role classifier.Role, message string, contextLines []classifier.ContextLine) ([]classifier.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, classifyCall{role: role, message: message, context: contextLines})
	if s.during != nil {
		s.during()
	}
	if err := s.errs[message]; err != nil {
		return nil, err
	}
	return s.intents[message], nil
}

type testEnv struct {
	svc       *webhookService
	repo      *memory.OrderRepository
	rec       *recorder
	clf       *scriptedClassifier
	scheduled []func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{rec: &recorder{}, clf: newScriptedClassifier()}
	directory := aviation.DefaultDirectory()
	env.repo = memory.NewOrderRepository(env.rec, directory, time.Minute)
	env.svc = NewWebhookService(
		env.repo,
		env.clf,
		directory,
		NewPhraseFarewellDetector(),
		5*time.Second,
		metrics.NewMetrics("test", prometheus.NewRegistry()),
		logger.NewNopLogger(),
	).(*webhookService)
	env.svc.afterFunc = func(d time.Duration, f func()) {
		env.scheduled = append(env.scheduled, f)
	}
	return env
}

func (e *testEnv) send(t *testing.T, payload dto.WebhookPayload) dto.WebhookResult {
	t.Helper()
	res, err := e.svc.HandleWebhook(context.Background(), "", &payload)
	require.NoError(t, err)
	return res
}

func (e *testEnv) onlyOrder(t *testing.T) entity.Order {
	t.Helper()
	orders := e.repo.ListOrders()
	require.Len(t, orders, 1)
	return orders[0]
}

func TestHandleWebhook_FuelScenario(t *testing.T) {
	env := newTestEnv(t)
	env.clf.
		on("I need fuel", classifier.Intent{Type: classifier.ServiceRefueling, Action: classifier.ActionSearch}).
		on("Fuel truck is scheduled for your arrival.", classifier.Intent{Type: classifier.ServiceRefueling, Action: classifier.ActionFinalize, Details: "Fuel truck scheduled"})

	res := env.send(t, dto.WebhookPayload{UserText: "I need fuel"})
	assert.Equal(t, dto.OutcomeProcessed, res.Outcome)
	assert.Equal(t, dto.AckTranscriptLogged, res.Ack)

	order := env.onlyOrder(t)
	assert.Equal(t, res.OrderID, order.Id)
	assert.Equal(t, []entity.TriggeredAgent{
		{Id: entity.AgentRefueling, Details: "Listening for refueling...", Action: entity.AgentActionSearch},
	}, order.TriggeredAgents)
	assert.Equal(t, []string{events.TypeNewOrder, events.TypeTranscript, events.TypeOrderUpdate}, env.rec.types())

	env.send(t, dto.WebhookPayload{AgentText: "Fuel truck is scheduled for your arrival."})
	order = env.onlyOrder(t)
	assert.Equal(t, []entity.TriggeredAgent{
		{Id: entity.AgentRefueling, Details: "Fuel truck scheduled", Action: entity.AgentActionFinalize},
	}, order.TriggeredAgents)

	env.send(t, dto.WebhookPayload{AgentText: "Thank you, goodbye!"})
	require.Len(t, env.scheduled, 1)
	assert.Equal(t, entity.OrderStatusProcessing, env.onlyOrder(t).Status)

	env.rec.clear()
	env.scheduled[0]()
	order = env.onlyOrder(t)
	assert.Equal(t, entity.OrderStatusCompleted, order.Status)
	assert.Equal(t, []string{events.TypeOrderUpdate}, env.rec.types())

	// The next fragment belongs to a new call.
	res = env.send(t, dto.WebhookPayload{UserText: "Hello again"})
	assert.NotEqual(t, order.Id, res.OrderID)
	assert.Len(t, env.repo.ListOrders(), 2)
	assert.Len(t, env.repo.ProcessingOrderIDs(), 1)
}

func TestHandleWebhook_DebouncesRepeatedPilotLine(t *testing.T) {
	env := newTestEnv(t)
	env.clf.on("I need fuel", classifier.Intent{Type: classifier.ServiceRefueling, Action: classifier.ActionSearch})

	env.send(t, dto.WebhookPayload{UserText: "I need fuel"})
	env.send(t, dto.WebhookPayload{UserTranscript: "I need fuel"})

	order := env.onlyOrder(t)
	assert.Len(t, order.Transcript, 1)
	assert.Len(t, env.clf.calls, 1)

	// Agent lines are never debounced.
	env.send(t, dto.WebhookPayload{AgentText: "Sure."})
	env.send(t, dto.WebhookPayload{AgentText: "Sure."})
	assert.Len(t, env.onlyOrder(t).Transcript, 3)
}

func TestHandleWebhook_TailNumberFromPilotText(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, dto.WebhookPayload{UserText: "This is November N123AJ inbound"})

	order := env.onlyOrder(t)
	assert.Equal(t, "N123AJ", order.Customer.PlaneNumber)
	assert.Equal(t, "Gulfstream G650", order.AircraftType)
	assert.Equal(t, []string{events.TypeNewOrder, events.TypeOrderUpdate, events.TypeTranscript}, env.rec.types())
}

func TestHandleWebhook_MultiIntentFanOut(t *testing.T) {
	env := newTestEnv(t)
	env.clf.on("I'd like a chicken sandwich and red wine",
		classifier.Intent{Type: classifier.ServiceCatering, Action: classifier.ActionSearch},
		classifier.Intent{Type: classifier.ServiceWine, Action: classifier.ActionSearch},
	)

	env.send(t, dto.WebhookPayload{UserText: "I'd like a chicken sandwich and red wine"})

	order := env.onlyOrder(t)
	require.Len(t, order.TriggeredAgents, 2)
	assert.Equal(t, entity.AgentCatering, order.TriggeredAgents[0].Id)
	assert.Equal(t, entity.AgentWine, order.TriggeredAgents[1].Id)
	assert.Equal(t, []string{events.TypeNewOrder, events.TypeTranscript, events.TypeOrderUpdate, events.TypeOrderUpdate}, env.rec.types())
}

func TestHandleWebhook_UrgentStopsBatch(t *testing.T) {
	env := newTestEnv(t)
	env.clf.
		on("I need fuel", classifier.Intent{Type: classifier.ServiceRefueling, Action: classifier.ActionSearch}).
		on("Mayday, smoke in the cabin", classifier.Intent{Type: classifier.ServiceUrgent, Action: classifier.ActionFinalize, Details: "smoke in the cabin"}, classifier.Intent{Type: classifier.ServiceWine, Action: classifier.ActionSearch}).
		on("Also some catering", classifier.Intent{Type: classifier.ServiceCatering, Action: classifier.ActionSearch})

	env.send(t, dto.WebhookPayload{UserText: "I need fuel"})
	env.send(t, dto.WebhookPayload{UserText: "Mayday, smoke in the cabin"})
	env.send(t, dto.WebhookPayload{UserText: "Also some catering"})

	assert.Equal(t, []entity.TriggeredAgent{
		{Id: entity.AgentUrgent, Details: "smoke in the cabin", Action: entity.AgentActionFinalize},
	}, env.onlyOrder(t).TriggeredAgents)
}

func TestHandleWebhook_CancelRemovesAgent(t *testing.T) {
	env := newTestEnv(t)
	env.clf.
		on("Fuel and wine please", classifier.Intent{Type: classifier.ServiceRefueling, Action: classifier.ActionSearch}, classifier.Intent{Type: classifier.ServiceWine, Action: classifier.ActionSearch}).
		on("Actually, no wine", classifier.Intent{Type: classifier.ServiceWine, Action: classifier.ActionCancel})

	env.send(t, dto.WebhookPayload{UserText: "Fuel and wine please"})
	env.send(t, dto.WebhookPayload{UserText: "Actually, no wine"})

	agents := env.onlyOrder(t).TriggeredAgents
	require.Len(t, agents, 1)
	assert.Equal(t, entity.AgentRefueling, agents[0].Id)
}

func TestHandleWebhook_ClassifierContext(t *testing.T) {
	env := newTestEnv(t)

	for _, line := range []string{"one", "two", "three", "four"} {
		env.send(t, dto.WebhookPayload{UserText: line})
	}
	env.send(t, dto.WebhookPayload{Text: "Agent: five"})

	require.Len(t, env.clf.calls, 5)
	last := env.clf.calls[4]
	assert.Equal(t, classifier.RoleAgent, last.role)
	assert.Equal(t, "five", last.message)
	assert.Equal(t, []classifier.ContextLine{
		{Role: classifier.RolePilot, Message: "two"},
		{Role: classifier.RolePilot, Message: "three"},
		{Role: classifier.RolePilot, Message: "four"},
	}, last.context)
	assert.Empty(t, env.clf.calls[0].context)
}

func TestHandleWebhook_PilotThenAgentInOneEvent(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, dto.WebhookPayload{UserText: "User: Need a car", AgentResponse: "Agent: Booking one now"})

	order := env.onlyOrder(t)
	require.Len(t, order.Transcript, 2)
	assert.Equal(t, entity.TranscriptRolePilot, order.Transcript[0].Role)
	assert.Equal(t, "Need a car", order.Transcript[0].Content)
	assert.Equal(t, entity.TranscriptRoleAgent, order.Transcript[1].Role)
	assert.Equal(t, "Booking one now", order.Transcript[1].Content)

	require.Len(t, env.clf.calls, 2)
	assert.Equal(t, classifier.RolePilot, env.clf.calls[0].role)
	assert.Equal(t, []classifier.ContextLine{{Role: classifier.RolePilot, Message: "Need a car"}}, env.clf.calls[1].context)
}

func TestHandleWebhook_ClassifierFailureLeavesAgentsAlone(t *testing.T) {
	env := newTestEnv(t)
	env.clf.errs["I need fuel"] = errors.New("model timeout")

	res, err := env.svc.HandleWebhook(context.Background(), "", &dto.WebhookPayload{UserText: "I need fuel"})
	assert.Error(t, err)
	assert.Equal(t, dto.OutcomeClassifierFailed, res.Outcome)
	assert.Equal(t, dto.AckTranscriptLogged, res.Ack)

	order := env.onlyOrder(t)
	assert.Len(t, order.Transcript, 1)
	assert.Empty(t, order.TriggeredAgents)
}

func TestHandleWebhook_OrderResetDuringClassification(t *testing.T) {
	env := newTestEnv(t)
	env.clf.on("I need fuel", classifier.Intent{Type: classifier.ServiceRefueling, Action: classifier.ActionSearch})
	env.clf.during = env.repo.Reset

	res, err := env.svc.HandleWebhook(context.Background(), "", &dto.WebhookPayload{UserText: "I need fuel", AgentText: "Fuel is on the way."})

	assert.Error(t, err)
	assert.Equal(t, dto.OutcomeUnknownOrder, res.Outcome)
	assert.Empty(t, env.repo.ListOrders())
	assert.Len(t, env.clf.calls, 1)
}

func TestHandleWebhook_EmptyPayload(t *testing.T) {
	env := newTestEnv(t)

	res := env.send(t, dto.WebhookPayload{Text: "   "})

	assert.Equal(t, dto.OutcomeIgnoredEmpty, res.Outcome)
	assert.Equal(t, dto.AckOK, res.Ack)
	assert.Empty(t, env.repo.ListOrders())
}

func TestHandleWebhook_ExplicitOrderID(t *testing.T) {
	env := newTestEnv(t)
	first := env.repo.GetOrCreateActiveOrder("")

	res, err := env.svc.HandleWebhook(context.Background(), first.Id, &dto.WebhookPayload{UserText: "Routed line"})
	require.NoError(t, err)
	assert.Equal(t, first.Id, res.OrderID)

	res, err = env.svc.HandleWebhook(context.Background(), "live-order-missing", &dto.WebhookPayload{UserText: "Lost line"})
	assert.Error(t, err)
	assert.Equal(t, dto.OutcomeUnknownOrder, res.Outcome)
	assert.Equal(t, dto.AckOK, res.Ack)
}

func TestHandleWebhook_CallerIdentity(t *testing.T) {
	t.Run("phone on the event", func(t *testing.T) {
		env := newTestEnv(t)

		env.send(t, dto.WebhookPayload{UserText: "Hi", CallerNumber: "+1 555 0101"})

		order := env.onlyOrder(t)
		assert.Equal(t, "Alice Johnson", order.Customer.Name)
		assert.Equal(t, "N123AJ", order.Customer.PlaneNumber)
		assert.False(t, order.IsIdentifying)
	})

	t.Run("call setup back-fills an order without a phone", func(t *testing.T) {
		env := newTestEnv(t)
		env.send(t, dto.WebhookPayload{UserText: "Hi"})
		env.rec.clear()

		require.NoError(t, env.svc.HandleCallSetup(context.Background(), "+15550199", "CA123"))

		order := env.onlyOrder(t)
		assert.Equal(t, "Robin Hood", order.Customer.Name)
		assert.Equal(t, "N555RH", order.Customer.PlaneNumber)
		assert.Equal(t, "Pilatus PC-12", order.AircraftType)
		assert.Equal(t, []string{events.TypeOrderUpdate}, env.rec.types())
		_, pending := env.repo.PendingCallerPhone()
		assert.False(t, pending)
	})

	t.Run("call setup before the first fragment", func(t *testing.T) {
		env := newTestEnv(t)

		require.NoError(t, env.svc.HandleCallSetup(context.Background(), "+15550102", "CA456"))
		env.send(t, dto.WebhookPayload{UserText: "Hi"})

		assert.Equal(t, "Bob Williams", env.onlyOrder(t).Customer.Name)
	})

	t.Run("call setup without a phone", func(t *testing.T) {
		env := newTestEnv(t)

		err := env.svc.HandleCallSetup(context.Background(), "", "CA789")
		assert.ErrorIs(t, err, ErrMalformedToolArguments)
	})
}

func TestHandleWebhook_ToolCalls(t *testing.T) {
	t.Run("add_service finalizes directly", func(t *testing.T) {
		env := newTestEnv(t)

		res := env.send(t, dto.WebhookPayload{
			Type:      "tool_call",
			Name:      "add_service",
			Arguments: []byte(`{"service_type": "car_rental", "details": "2025 BMW"}`),
		})

		assert.Equal(t, dto.AckServiceConfirmed, res.Ack)
		assert.True(t, res.AckJSON)
		assert.Equal(t, []entity.TriggeredAgent{
			{Id: entity.AgentCarRental, Details: "2025 BMW", Action: entity.AgentActionFinalize},
		}, env.onlyOrder(t).TriggeredAgents)
		assert.Empty(t, env.clf.calls)
	})

	t.Run("arguments as a JSON string inside tool_calls", func(t *testing.T) {
		env := newTestEnv(t)

		env.send(t, dto.WebhookPayload{
			ToolCalls: []dto.ToolCall{{
				Function: &dto.ToolCallFunction{
					Name:      "add_service",
					Arguments: []byte(`"{\"service_type\":\"refueling\"}"`),
				},
			}},
		})

		assert.Equal(t, []entity.TriggeredAgent{
			{Id: entity.AgentRefueling, Details: "refueling confirmed", Action: entity.AgentActionFinalize},
		}, env.onlyOrder(t).TriggeredAgents)
	})

	t.Run("malformed arguments change nothing", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.svc.HandleWebhook(context.Background(), "", &dto.WebhookPayload{
			Type:      "tool_call",
			Name:      "add_service",
			Arguments: []byte(`"{not json"`),
		})

		assert.ErrorIs(t, err, ErrMalformedToolArguments)
		assert.Equal(t, dto.OutcomeIgnoredMalformed, res.Outcome)
		assert.Empty(t, env.repo.ListOrders())
		assert.Empty(t, env.rec.types())
	})

	t.Run("unknown service type", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.HandleWebhook(context.Background(), "", &dto.WebhookPayload{
			Type:      "tool_call",
			Name:      "add_service",
			Arguments: []byte(`{"service_type": "dry_cleaning"}`),
		})

		assert.ErrorIs(t, err, ErrUnknownService)
		assert.Empty(t, env.repo.ListOrders())
	})

	t.Run("register_pilot sets the tail number", func(t *testing.T) {
		env := newTestEnv(t)

		res := env.send(t, dto.WebhookPayload{
			Type:      "tool_call",
			Name:      "register_pilot",
			Arguments: []byte(`{"tail_number": "n874i"}`),
		})

		assert.Equal(t, dto.AckToolProcessed, res.Ack)
		order := env.onlyOrder(t)
		assert.Equal(t, "N874I", order.Customer.PlaneNumber)
		assert.Equal(t, "Cessna Citation Latitude", order.AircraftType)
	})

	t.Run("other tools are acknowledged", func(t *testing.T) {
		env := newTestEnv(t)

		res := env.send(t, dto.WebhookPayload{Type: "tool_call", Name: "lookup_weather"})

		assert.Equal(t, dto.OutcomeProcessed, res.Outcome)
		assert.Equal(t, dto.AckToolProcessed, res.Ack)
		assert.Equal(t, env.onlyOrder(t).Id, res.OrderID)
		assert.Empty(t, env.clf.calls)
	})

	t.Run("other tools keep the order fresh", func(t *testing.T) {
		env := newTestEnv(t)
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		env.repo.WithClock(func() time.Time { return now })
		created := env.repo.GetOrCreateActiveOrder("")

		now = now.Add(4 * time.Minute)
		env.send(t, dto.WebhookPayload{Type: "tool_call", Name: "lookup_weather"})

		order := env.onlyOrder(t)
		assert.Equal(t, created.Id, order.Id)
		assert.Equal(t, now, order.UpdatedAt)
		assert.Equal(t, []string{events.TypeNewOrder}, env.rec.types())
	})

	t.Run("other tools on an unknown order", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.svc.HandleWebhook(context.Background(), "live-order-gone", &dto.WebhookPayload{Type: "tool_call", Name: "lookup_weather"})

		assert.Error(t, err)
		assert.Equal(t, dto.OutcomeUnknownOrder, res.Outcome)
		assert.Empty(t, env.repo.ListOrders())
	})
}

func TestHandleWebhook_FarewellCompletesOnlyOnce(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, dto.WebhookPayload{AgentText: "Goodbye!"})
	env.send(t, dto.WebhookPayload{AgentText: "Have a nice day."})
	require.Len(t, env.scheduled, 2)

	env.rec.clear()
	env.scheduled[0]()
	env.scheduled[1]()

	assert.Equal(t, entity.OrderStatusCompleted, env.onlyOrder(t).Status)
	assert.Equal(t, []string{events.TypeOrderUpdate}, env.rec.types())
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, dto.WebhookPayload{UserText: "Hi"})

	env.svc.Reset(context.Background())

	assert.Empty(t, env.svc.ListOrders(context.Background()))
	assert.Equal(t, events.TypeReset, env.rec.types()[len(env.rec.types())-1])
}
