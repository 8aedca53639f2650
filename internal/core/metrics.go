package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Operation outcome labels.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// PrometheusRecorder publishes operation counters and latency histograms.
type PrometheusRecorder struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the service metrics on reg. A nil reg uses
// the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbook_operations_total",
			Help: "Total store operations by operation and status",
		}, []string{"operation", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentbook_operation_duration_seconds",
			Help:    "Duration of store operations including persistence",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// Observe records one operation.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if r == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}
	r.Operations.WithLabelValues(operation, status).Inc()
	r.Duration.WithLabelValues(operation).Observe(duration.Seconds())
}
