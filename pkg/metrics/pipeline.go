package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records production pipeline activity.
type PipelineMetrics struct {
	transitions *prometheus.CounterVec
	leadTime    prometheus.Histogram
}

// NewPipelineMetrics registers the pipeline metrics on the provided
// registerer. A nil registerer yields a no-op recorder.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_transitions_total",
		Help: "Production stage transitions by target stage.",
	}, []string{"stage"})
	leadTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_production_duration_seconds",
		Help:    "Time from production start to shipment.",
		Buckets: prometheus.ExponentialBuckets(60, 4, 10),
	})
	reg.MustRegister(transitions, leadTime)
	return &PipelineMetrics{transitions: transitions, leadTime: leadTime}
}

func (m *PipelineMetrics) IncTransition(stage string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(stage).Inc()
}

func (m *PipelineMetrics) ObserveProductionDuration(d time.Duration) {
	if m == nil || m.leadTime == nil {
		return
	}
	m.leadTime.Observe(d.Seconds())
}
