package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the execution core. MetricsHub
// updates ExecutionsTotal and ExecutionsInProgress from Hub events; the other
// instruments change only through ObserveExecution/ObserveNode or a caller
// setting them directly, since neither the Executor nor the WorkerPool
// reports to them. Scoped to execution concerns only: no HTTP, auth, or
// business metrics belong here, those are the embedding service's
// responsibility.
type Metrics struct {
	ExecutionsTotal      *prometheus.CounterVec
	ExecutionsCompleted  *prometheus.CounterVec
	ExecutionsFailed     *prometheus.CounterVec
	ExecutionDuration    *prometheus.HistogramVec
	ExecutionsInProgress *prometheus.GaugeVec

	NodeExecutionsTotal   *prometheus.CounterVec
	NodeExecutionDuration *prometheus.HistogramVec

	QueueDepth      *prometheus.GaugeVec
	WorkerPoolSize  *prometheus.GaugeVec
	CircuitBreakerState *prometheus.GaugeVec
}

// NewMetrics creates and registers the execution core's Prometheus
// instruments under namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of executions started",
			},
			[]string{"workflow_id", "trigger_mode"},
		),
		ExecutionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_completed_total",
				Help:      "Total number of executions that finished Success",
			},
			[]string{"workflow_id"},
		),
		ExecutionsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_failed_total",
				Help:      "Total number of executions that finished Error",
			},
			[]string{"workflow_id"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Execution wall-clock duration in seconds",
				Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"workflow_id"},
		),
		ExecutionsInProgress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "executions_in_progress",
				Help:      "Number of executions currently running",
			},
			[]string{"workflow_id"},
		),
		NodeExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_executions_total",
				Help:      "Total number of node executions by type and outcome",
			},
			[]string{"node_type", "status"},
		),
		NodeExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_execution_duration_seconds",
				Help:      "Node execution duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"node_type"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "task_queue_depth",
				Help:      "Number of tasks currently queued",
			},
			[]string{"queue"},
		),
		WorkerPoolSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_pool_size",
				Help:      "Worker pool size by worker status",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state per node type (0=closed, 1=open, 2=half-open)",
			},
			[]string{"node_type"},
		),
	}

	prometheus.MustRegister(
		m.ExecutionsTotal, m.ExecutionsCompleted, m.ExecutionsFailed,
		m.ExecutionDuration, m.ExecutionsInProgress,
		m.NodeExecutionsTotal, m.NodeExecutionDuration,
		m.QueueDepth, m.WorkerPoolSize, m.CircuitBreakerState,
	)

	return m
}

// ObserveExecution records a completed execution's terminal status and
// duration.
func (m *Metrics) ObserveExecution(workflowID string, success bool, duration time.Duration) {
	if success {
		m.ExecutionsCompleted.WithLabelValues(workflowID).Inc()
	} else {
		m.ExecutionsFailed.WithLabelValues(workflowID).Inc()
	}
	m.ExecutionDuration.WithLabelValues(workflowID).Observe(duration.Seconds())
}

// ObserveNode records a single node execution's outcome and duration.
func (m *Metrics) ObserveNode(nodeType, status string, duration time.Duration) {
	m.NodeExecutionsTotal.WithLabelValues(nodeType, status).Inc()
	m.NodeExecutionDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// MetricsHub wraps another Hub and also feeds execution lifecycle events
// into Metrics, so a caller gets both observability surfaces from one
// Executor option.
type MetricsHub struct {
	next    Hub
	metrics *Metrics
}

// NewMetricsHub wraps next (which may be nil) with Prometheus reporting.
func NewMetricsHub(next Hub, metrics *Metrics) *MetricsHub {
	return &MetricsHub{next: next, metrics: metrics}
}

func (h *MetricsHub) Publish(event Event) {
	switch event.Type {
	case EventExecutionStarted:
		h.metrics.ExecutionsTotal.WithLabelValues(event.WorkflowID, "").Inc()
		h.metrics.ExecutionsInProgress.WithLabelValues(event.WorkflowID).Inc()
	case EventExecutionCompleted:
		h.metrics.ExecutionsInProgress.WithLabelValues(event.WorkflowID).Dec()
	case EventExecutionFailed, EventExecutionCanceled:
		h.metrics.ExecutionsInProgress.WithLabelValues(event.WorkflowID).Dec()
	}
	if h.next != nil {
		h.next.Publish(event)
	}
}
