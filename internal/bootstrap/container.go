package bootstrap

import (
	"fbo-callrelay-be/internal/config"
	"fbo-callrelay-be/internal/controller"
	"fbo-callrelay-be/internal/handler"
	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/internal/repository/memory"
	"fbo-callrelay-be/internal/service"
	"fbo-callrelay-be/internal/websocket"
	"fbo-callrelay-be/pkg/aviation"
	"fbo-callrelay-be/pkg/classifier"
	"fbo-callrelay-be/pkg/events"
	"fbo-callrelay-be/pkg/llm/factory"
	"fbo-callrelay-be/pkg/metrics"

	pktNats "fbo-callrelay-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
)

type Container struct {
	// Controllers
	WebhookController controller.IWebhookController
	OrderController   controller.IOrderController
	StreamHandler     *handler.StreamHandler

	// Background Services (Exposed for main.go to run)
	WebSocketHub      *websocket.Hub
	ReaperService     service.IReaperService
	EventRelayService service.IEventRelayService // nil when the bus mirror is disabled

	Logger logger.ILogger

	closers []func()
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	streamLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	appMetrics := metrics.NewMetrics(cfg.App.MetricsNamespace, prometheus.DefaultRegisterer)
	directory := aviation.DefaultDirectory()

	c := &Container{Logger: sysLogger}

	// 2. Event Bus mirror
	var relay service.IEventRelayService
	if cfg.Bus.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.Bus.NatsURL, cfg.Bus.StreamName, cfg.Bus.SubjectPrefix)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher, bus mirror disabled", map[string]interface{}{"error": err.Error()})
		} else {
			pubSub := gochannel.NewGoChannel(
				gochannel.Config{
					OutputChannelBuffer:            256,
					BlockPublishUntilSubscriberAck: true,
				},
				watermill.NewStdLogger(false, false),
			)
			relay = service.NewEventRelayService(pubSub, cfg.Bus.RelayTopic, natsPub, sysLogger)
			c.closers = append(c.closers, func() { pubSub.Close() }, natsPub.Close)
		}
	}

	// 3. Broadcast Hub and Order Store
	var forward events.Broadcaster
	if relay != nil {
		forward = relay
	}
	wsHub := websocket.NewHub(forward, appMetrics, streamLogger)
	orderRepo := memory.NewOrderRepository(wsHub, directory, cfg.Call.PendingTTL)
	wsHub.UseSnapshot(orderRepo.Snapshot)

	// 4. Services
	webhookService := service.NewWebhookService(
		orderRepo,
		newClassifier(cfg, sysLogger),
		directory,
		service.NewPhraseFarewellDetector(),
		cfg.Call.FarewellGrace,
		appMetrics,
		sysLogger,
	)
	reaperService := service.NewReaperService(orderRepo, cfg.Call.ReaperInterval, cfg.Call.ReaperSilence, appMetrics, sysLogger)

	// 5. Controllers
	c.WebhookController = controller.NewWebhookController(webhookService, sysLogger)
	c.OrderController = controller.NewOrderController(webhookService)
	c.StreamHandler = handler.NewStreamHandler(wsHub, streamLogger)
	c.WebSocketHub = wsHub
	c.ReaperService = reaperService
	c.EventRelayService = relay
	c.closers = append(c.closers, func() {
		sysLogger.Sync()
		streamLogger.Sync()
	})

	return c
}

// newClassifier builds the model-backed classifier, falling back to the rule
// engine when rules are requested or no provider can be built.
func newClassifier(cfg *config.Config, log logger.ILogger) classifier.Classifier {
	if cfg.Ai.Classifier == "rules" {
		log.Info("Bootstrap", "Using rule classifier", nil)
		return classifier.NewRuleClassifier()
	}

	apiKey := cfg.Ai.OpenAIKey
	if cfg.Ai.LLMProvider == "huggingface" {
		apiKey = cfg.Ai.HuggingFaceToken
	}
	llmProvider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  cfg.Ai.LLMBaseURL,
		APIKey:   apiKey,
		Timeout:  cfg.Ai.Timeout,
	})
	if err != nil {
		log.Warn("Bootstrap", "Failed to initialize LLM Provider, using rule classifier", map[string]interface{}{"error": err.Error()})
		return classifier.NewRuleClassifier()
	}

	log.Info("Bootstrap", "Using LLM classifier", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})
	return classifier.NewLLMClassifier(llmProvider)
}

// Close releases the bus connections and flushes the loggers, in order.
func (c *Container) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
}
