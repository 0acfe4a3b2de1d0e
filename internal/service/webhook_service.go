package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fbo-callrelay-be/internal/dto"
	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/internal/pkg/serverutils"
	"fbo-callrelay-be/internal/repository/contract"
	"fbo-callrelay-be/pkg/aviation"
	"fbo-callrelay-be/pkg/classifier"
	"fbo-callrelay-be/pkg/metrics"
)

var (
	ErrMalformedToolArguments = errors.New("malformed tool arguments")
	ErrUnknownService         = errors.New("unknown service")
)

const (
	toolAddService    = "add_service"
	toolRegisterPilot = "register_pilot"
)

type IWebhookService interface {
	// HandleWebhook ingests one call-platform event. orderID routes the event to
	// a specific order; empty means the active one.
	HandleWebhook(ctx context.Context, orderID string, payload *dto.WebhookPayload) (dto.WebhookResult, error)
	HandleCallSetup(ctx context.Context, phone, callSid string) error
	ListOrders(ctx context.Context) []entity.Order
	Reset(ctx context.Context)
}

type webhookService struct {
	orders     contract.OrderRepository
	classifier classifier.Classifier
	directory  aviation.Directory
	farewell   FarewellDetector
	graceDelay time.Duration
	metrics    *metrics.Metrics
	logger     logger.ILogger

	afterFunc func(d time.Duration, f func())
}

func NewWebhookService(
	orders contract.OrderRepository,
	clf classifier.Classifier,
	directory aviation.Directory,
	farewell FarewellDetector,
	graceDelay time.Duration,
	m *metrics.Metrics,
	log logger.ILogger,
) IWebhookService {
	return &webhookService{
		orders:     orders,
		classifier: clf,
		directory:  directory,
		farewell:   farewell,
		graceDelay: graceDelay,
		metrics:    m,
		logger:     log,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// fragment is a transcript line that was appended and still awaits classification.
type fragment struct {
	role    classifier.Role
	message string
	context []classifier.ContextLine
}

func (s *webhookService) HandleWebhook(ctx context.Context, orderID string, payload *dto.WebhookPayload) (dto.WebhookResult, error) {
	var (
		result dto.WebhookResult
		err    error
	)
	if payload.IsToolCall() {
		result, err = s.handleToolCall(ctx, orderID, payload)
	} else {
		result, err = s.handleTranscript(ctx, orderID, payload)
	}

	s.metrics.WebhooksReceived.WithLabelValues(string(result.Outcome)).Inc()
	return result, err
}

func (s *webhookService) handleToolCall(ctx context.Context, orderID string, payload *dto.WebhookPayload) (dto.WebhookResult, error) {
	call := payload.ToolCall()
	name := call.ToolName()

	switch name {
	case toolAddService:
		var args dto.AddServiceArgs
		if err := s.decodeToolArgs(call, &args); err != nil {
			return s.malformed(name, err)
		}
		if _, ok := AgentID(classifier.ServiceType(args.ServiceType)); !ok {
			return s.malformed(name, fmt.Errorf("%w: %s", ErrUnknownService, args.ServiceType))
		}

		orderID = s.resolveOrderID(orderID, payload.CallerPhone())
		intent := classifier.Intent{
			Type:    classifier.ServiceType(args.ServiceType),
			Action:  classifier.ActionFinalize,
			Details: args.Details,
		}
		if err := s.applyIntents(orderID, []classifier.Intent{intent}); err != nil {
			return s.unknownOrder(orderID, err)
		}

		s.logger.Info("WebhookService", "Service confirmed manually", map[string]interface{}{
			"order_id":     orderID,
			"service_type": args.ServiceType,
		})
		return dto.WebhookResult{Outcome: dto.OutcomeProcessed, OrderID: orderID, Ack: dto.AckServiceConfirmed, AckJSON: true}, nil

	case toolRegisterPilot:
		var args dto.RegisterPilotArgs
		if err := s.decodeToolArgs(call, &args); err != nil {
			return s.malformed(name, err)
		}

		orderID = s.resolveOrderID(orderID, payload.CallerPhone())
		// The agent states the registration outright, so it is not limited to N-numbers.
		tail := strings.ToUpper(strings.TrimSpace(args.TailNumber))
		_, err := s.orders.Update(orderID, func(o *entity.Order, emit contract.Emitter) bool {
			if !o.SetPlaneNumber(tail) {
				return false
			}
			emit(dto.OrderUpdateEvent(o.Clone()))
			return true
		})
		if err != nil {
			return s.unknownOrder(orderID, err)
		}
		return dto.WebhookResult{Outcome: dto.OutcomeProcessed, OrderID: orderID, Ack: dto.AckToolProcessed, AckJSON: true}, nil

	default:
		// Tool traffic alone keeps the call alive against the reaper.
		orderID = s.resolveOrderID(orderID, payload.CallerPhone())
		if _, err := s.orders.Update(orderID, func(o *entity.Order, emit contract.Emitter) bool {
			return true
		}); err != nil {
			return s.unknownOrder(orderID, err)
		}
		s.logger.Debug("WebhookService", "Unhandled tool call acknowledged", map[string]interface{}{"tool": name, "order_id": orderID})
		return dto.WebhookResult{Outcome: dto.OutcomeProcessed, OrderID: orderID, Ack: dto.AckToolProcessed, AckJSON: true}, nil
	}
}

func (s *webhookService) decodeToolArgs(call dto.ToolCall, v interface{}) error {
	if err := call.DecodeArguments(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToolArguments, err)
	}
	if err := serverutils.ValidateRequest(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToolArguments, err)
	}
	return nil
}

func (s *webhookService) malformed(tool string, err error) (dto.WebhookResult, error) {
	s.logger.Warn("WebhookService", "Rejected tool call", map[string]interface{}{
		"tool":  tool,
		"error": err.Error(),
	})
	return dto.WebhookResult{Outcome: dto.OutcomeIgnoredMalformed, Ack: dto.AckOK}, err
}

func (s *webhookService) unknownOrder(orderID string, err error) (dto.WebhookResult, error) {
	s.logger.Warn("WebhookService", "Event for unknown order ignored", map[string]interface{}{
		"order_id": orderID,
		"error":    err.Error(),
	})
	return dto.WebhookResult{Outcome: dto.OutcomeUnknownOrder, OrderID: orderID, Ack: dto.AckOK}, err
}

// resolveOrderID returns orderID, or the active order's id (creating it with the
// caller's phone) when orderID is empty.
func (s *webhookService) resolveOrderID(orderID, callerPhone string) string {
	if orderID != "" {
		return orderID
	}
	return s.orders.GetOrCreateActiveOrder(callerPhone).Id
}

func (s *webhookService) handleTranscript(ctx context.Context, orderID string, payload *dto.WebhookPayload) (dto.WebhookResult, error) {
	userText, agentText := payload.Texts()
	if userText == "" && agentText == "" {
		return dto.WebhookResult{Outcome: dto.OutcomeIgnoredEmpty, OrderID: orderID, Ack: dto.AckOK}, nil
	}

	phone := payload.CallerPhone()
	orderID = s.resolveOrderID(orderID, phone)
	result := dto.WebhookResult{Outcome: dto.OutcomeProcessed, OrderID: orderID, Ack: dto.AckTranscriptLogged}

	var classifyErrs []error
	if userText != "" {
		frag, err := s.appendFragment(orderID, phone, entity.TranscriptRolePilot, userText)
		if err != nil {
			return s.unknownOrder(orderID, err)
		}
		if frag != nil {
			if err := s.classifyAndFold(ctx, orderID, *frag); errors.Is(err, contract.ErrOrderNotFound) {
				return s.unknownOrder(orderID, err)
			} else if err != nil {
				classifyErrs = append(classifyErrs, err)
			}
		}
	}

	if agentText != "" {
		frag, err := s.appendFragment(orderID, phone, entity.TranscriptRoleAgent, agentText)
		if err != nil {
			return s.unknownOrder(orderID, err)
		}
		if err := s.classifyAndFold(ctx, orderID, *frag); errors.Is(err, contract.ErrOrderNotFound) {
			return s.unknownOrder(orderID, err)
		} else if err != nil {
			classifyErrs = append(classifyErrs, err)
		}
		if s.farewell.IsFarewell(agentText) {
			s.scheduleCompletion(orderID)
		}
	}

	if len(classifyErrs) > 0 {
		result.Outcome = dto.OutcomeClassifierFailed
		return result, errors.Join(classifyErrs...)
	}
	return result, nil
}

// appendFragment runs one synchronous turn: caller identity, tail number
// (pilot only) and the transcript append. It returns nil when a repeated pilot
// line was debounced.
func (s *webhookService) appendFragment(orderID, phone string, role entity.TranscriptRole, text string) (*fragment, error) {
	usedPending := false
	if phone == "" {
		if pending, ok := s.orders.PendingCallerPhone(); ok {
			phone = pending
			usedPending = true
		}
	}

	var (
		frag     *fragment
		attached bool
	)
	_, err := s.orders.Update(orderID, func(o *entity.Order, emit contract.Emitter) bool {
		if o.Customer.Phone == "" && o.AttachCaller(phone, s.directory) {
			attached = true
			emit(dto.OrderUpdateEvent(o.Clone()))
		}

		if role == entity.TranscriptRolePilot {
			if tail, ok := aviation.ExtractTailNumber(text); ok && o.SetPlaneNumber(tail) {
				emit(dto.OrderUpdateEvent(o.Clone()))
			}
			if last, ok := o.LastTranscriptEntry(); ok && last.Role == entity.TranscriptRolePilot && last.Content == text {
				return true
			}
		}

		entry := entity.TranscriptEntry{Role: role, Content: text, Timestamp: time.Now()}
		o.Transcript = append(o.Transcript, entry)
		emit(dto.TranscriptEvent(o.Id, entry, entity.CloneAgents(o.TriggeredAgents)))

		frag = &fragment{
			role:    classifierRole(role),
			message: text,
			context: contextLines(o.RecentTranscript(len(o.Transcript)-1, classifier.MaxContextLines)),
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if attached && usedPending {
		s.orders.ClearPendingCallerPhone()
	}
	return frag, nil
}

func (s *webhookService) classifyAndFold(ctx context.Context, orderID string, frag fragment) error {
	start := time.Now()
	intents, err := s.classifier.Classify(ctx, frag.role, frag.message, frag.context)
	s.metrics.ClassifierLatency.WithLabelValues(string(frag.role)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ClassifierErrors.WithLabelValues(string(frag.role)).Inc()
		s.logger.Error("WebhookService", "Classification failed", map[string]interface{}{
			"order_id": orderID,
			"role":     frag.role,
			"error":    err.Error(),
		})
		return fmt.Errorf("classify %s fragment: %w", frag.role, err)
	}
	if len(intents) == 0 {
		return nil
	}

	s.logger.Debug("WebhookService", "Intents detected", map[string]interface{}{
		"order_id": orderID,
		"role":     frag.role,
		"intents":  intents,
	})
	return s.applyIntents(orderID, intents)
}

// applyIntents folds a batch against the order as it is now. Each change is
// broadcast as its own ORDER_UPDATE.
func (s *webhookService) applyIntents(orderID string, intents []classifier.Intent) error {
	_, err := s.orders.Update(orderID, func(o *entity.Order, emit contract.Emitter) bool {
		changed := false
		for _, intent := range intents {
			res := FoldIntent(o, intent)
			if res.Changed {
				changed = true
				s.metrics.IntentsApplied.WithLabelValues(res.AgentID, string(intent.Action)).Inc()
				emit(dto.OrderUpdateEvent(o.Clone()))
			}
			if res.Stop {
				break
			}
		}
		return changed
	})
	return err
}

func (s *webhookService) scheduleCompletion(orderID string) {
	s.logger.Info("WebhookService", "Farewell detected, completing order", map[string]interface{}{
		"order_id": orderID,
		"delay":    s.graceDelay.String(),
	})
	s.afterFunc(s.graceDelay, func() {
		s.completeOrder(orderID, "farewell")
	})
}

func (s *webhookService) completeOrder(orderID, reason string) {
	completed := false
	_, err := s.orders.Update(orderID, func(o *entity.Order, emit contract.Emitter) bool {
		if o.Status != entity.OrderStatusProcessing {
			return false
		}
		o.Status = entity.OrderStatusCompleted
		completed = true
		emit(dto.OrderUpdateEvent(o.Clone()))
		return true
	})
	if err != nil {
		s.logger.Warn("WebhookService", "Could not complete order", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return
	}
	if completed {
		s.metrics.OrdersCompleted.WithLabelValues(reason).Inc()
	}
}

func (s *webhookService) HandleCallSetup(ctx context.Context, phone, callSid string) error {
	phone = aviation.NormalizePhone(phone)
	if phone == "" {
		return fmt.Errorf("%w: missing caller phone", ErrMalformedToolArguments)
	}
	s.orders.SetPendingCallerPhone(phone)
	s.logger.Info("WebhookService", "Incoming call", map[string]interface{}{
		"phone":    phone,
		"call_sid": callSid,
	})

	ids := s.orders.ProcessingOrderIDs()
	if len(ids) == 0 {
		return nil
	}

	attached := false
	_, err := s.orders.Update(ids[0], func(o *entity.Order, emit contract.Emitter) bool {
		if !o.AttachCaller(phone, s.directory) {
			return false
		}
		attached = true
		emit(dto.OrderUpdateEvent(o.Clone()))
		return true
	})
	if err != nil {
		return err
	}
	if attached {
		s.orders.ClearPendingCallerPhone()
	}
	return nil
}

func (s *webhookService) ListOrders(ctx context.Context) []entity.Order {
	return s.orders.ListOrders()
}

func (s *webhookService) Reset(ctx context.Context) {
	s.orders.Reset()
	s.logger.Info("WebhookService", "All orders cleared", nil)
}

func classifierRole(role entity.TranscriptRole) classifier.Role {
	if role == entity.TranscriptRoleAgent {
		return classifier.RoleAgent
	}
	return classifier.RolePilot
}

func contextLines(entries []entity.TranscriptEntry) []classifier.ContextLine {
	out := make([]classifier.ContextLine, len(entries))
	for i, e := range entries {
		out[i] = classifier.ContextLine{Role: classifierRole(e.Role), Message: e.Content}
	}
	return out
}
