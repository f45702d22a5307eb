package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

// WorkflowMetrics tracks workflow stages and the upstream model calls
// behind them.
type WorkflowMetrics struct {
	service string

	stageTotal       *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

func NewWorkflowMetrics(registry prometheus.Registerer, service string) *WorkflowMetrics {
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "stage_total",
			Help:      "Total finished workflow stages by outcome.",
		},
		[]string{"service", "stage", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "stage_duration_seconds",
			Help:      "Workflow stage duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "stage", "outcome"},
	)
	upstreamTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total model endpoint calls by outcome.",
		},
		[]string{"service", "outcome"},
	)
	upstreamDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Model endpoint latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service"},
	)

	registry.MustRegister(stageTotal, stageDuration, upstreamTotal, upstreamDuration)

	return &WorkflowMetrics{
		service:          service,
		stageTotal:       stageTotal,
		stageDuration:    stageDuration,
		upstreamTotal:    upstreamTotal,
		upstreamDuration: upstreamDuration,
	}
}

func (m *WorkflowMetrics) ObserveStage(stage domain.Stage, outcome string, duration time.Duration) {
	m.stageTotal.WithLabelValues(m.service, string(stage), outcome).Inc()
	m.stageDuration.WithLabelValues(m.service, string(stage), outcome).Observe(duration.Seconds())
}

func (m *WorkflowMetrics) ObserveUpstream(outcome string, duration time.Duration) {
	m.upstreamTotal.WithLabelValues(m.service, outcome).Inc()
	m.upstreamDuration.WithLabelValues(m.service).Observe(duration.Seconds())
}
