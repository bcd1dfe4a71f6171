package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the coordination core.
type Metrics struct {
	// Routing metrics
	MessagesRouted *prometheus.CounterVec
	RoutingLatency *prometheus.HistogramVec

	// Operation metrics
	OperationsStarted  *prometheus.CounterVec
	OperationsFinished *prometheus.CounterVec
	OperationsEvicted  prometheus.Counter
	ActiveOperations   prometheus.Gauge

	// Scheduler metrics
	TasksSubmitted prometheus.Counter
	TasksRejected  *prometheus.CounterVec
	TasksFinished  *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
	ActiveTasks    prometheus.Gauge

	// System metrics
	SystemHealth         prometheus.Gauge
	ComponentsRegistered prometheus.Gauge
	EventsDropped        prometheus.Gauge
}

// New creates and registers metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates and registers metrics on reg. Tests pass a fresh
// registry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_messages_routed_total",
				Help: "Total number of messages routed, by mode",
			},
			[]string{"mode"},
		),

		RoutingLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentmesh_routing_latency_seconds",
				Help:    "Observed routing latency, by mode",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),

		OperationsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_operations_started_total",
				Help: "Total number of operations started, by strategy",
			},
			[]string{"strategy"},
		),

		OperationsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_operations_finished_total",
				Help: "Total number of operations finished, by status",
			},
			[]string{"status"},
		),

		OperationsEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentmesh_operations_evicted_total",
				Help: "Total number of operations evicted past their deadline",
			},
		),

		ActiveOperations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_active_operations",
				Help: "Number of operations currently tracked as active",
			},
		),

		TasksSubmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentmesh_tasks_submitted_total",
				Help: "Total number of tasks admitted to the scheduler",
			},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_tasks_rejected_total",
				Help: "Total number of task submissions rejected, by reason",
			},
			[]string{"reason"},
		),

		TasksFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_tasks_finished_total",
				Help: "Total number of tasks finished, by status",
			},
			[]string{"status"},
		),

		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_scheduler_queue_depth",
				Help: "Number of tasks pending in the scheduler queue",
			},
		),

		ActiveTasks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_scheduler_active_tasks",
				Help: "Number of tasks currently active",
			},
		),

		SystemHealth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_system_health",
				Help: "Aggregate system health score (0-100)",
			},
		),

		ComponentsRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_components_registered",
				Help: "Number of registered components",
			},
		),

		EventsDropped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_events_dropped_total",
				Help: "Total number of bus events dropped on full subscriber buffers",
			},
		),
	}
}
