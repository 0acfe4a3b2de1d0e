package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	WebhooksReceived  *prometheus.CounterVec
	ClassifierLatency *prometheus.HistogramVec
	ClassifierErrors  *prometheus.CounterVec
	IntentsApplied    *prometheus.CounterVec
	EventsBroadcast   *prometheus.CounterVec
	ConnectedClients  prometheus.Gauge
	OrdersCompleted   *prometheus.CounterVec
}

// NewMetrics registers the relay metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "The total number of webhook events by outcome",
		}, []string{"outcome"}),
		ClassifierLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_duration_seconds",
			Help:      "Time taken to classify one transcript fragment",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role"}),
		ClassifierErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_errors_total",
			Help:      "The total number of failed classifications",
		}, []string{"role"}),
		IntentsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_applied_total",
			Help:      "The total number of intents that changed an order",
		}, []string{"agent", "action"}),
		EventsBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_broadcast_total",
			Help:      "The total number of dashboard events broadcast",
		}, []string{"type"}),
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_clients",
			Help:      "Number of connected dashboard subscribers",
		}),
		OrdersCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_completed_total",
			Help:      "The total number of orders completed by reason",
		}, []string{"reason"}),
	}
}
