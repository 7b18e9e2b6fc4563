// Package metrics provides the Prometheus collectors for the GeneNFT-Z
// record lifecycle.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics contains the metrics of record creation and verification.
// It implements workflow.Metrics.
type WorkflowMetrics struct {
	Creations            *prometheus.CounterVec
	CreationDuration     prometheus.Histogram
	Verifications        *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	VerificationsRunning prometheus.Gauge
	StateTransitions     *prometheus.CounterVec
}

// NewWorkflowMetrics creates and registers the workflow metrics.
func NewWorkflowMetrics(registry prometheus.Registerer) (*WorkflowMetrics, error) {
	m := &WorkflowMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register workflow metrics: %w", err)
	}
	return m, nil
}

func (m *WorkflowMetrics) initMetrics() {
	m.Creations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genenft_record_creations_total",
		Help: "Total number of record creation attempts by outcome",
	}, []string{"outcome"})

	m.CreationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "genenft_record_creation_duration_seconds",
		Help:    "Duration of record creation from request to finality",
		Buckets: durationBuckets,
	})

	m.Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genenft_verifications_total",
		Help: "Total number of verification runs by outcome",
	}, []string{"outcome"})

	m.VerificationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "genenft_verification_duration_seconds",
		Help:    "Duration of verification runs including retries",
		Buckets: durationBuckets,
	})

	m.VerificationsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "genenft_verifications_in_flight",
		Help: "Number of verification runs in progress",
	})

	m.StateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genenft_verification_state_transitions_total",
		Help: "Total number of verification state machine transitions",
	}, []string{"from", "to"})
}

// RecordCreation records one finished creation attempt
func (m *WorkflowMetrics) RecordCreation(outcome string, d time.Duration) {
	m.Creations.WithLabelValues(outcome).Inc()
	m.CreationDuration.Observe(d.Seconds())
}

// RecordVerification records one finished verification run
func (m *WorkflowMetrics) RecordVerification(outcome string, d time.Duration) {
	m.Verifications.WithLabelValues(outcome).Inc()
	m.VerificationDuration.Observe(d.Seconds())
}

func (m *WorkflowMetrics) VerificationStarted()  { m.VerificationsRunning.Inc() }
func (m *WorkflowMetrics) VerificationFinished() { m.VerificationsRunning.Dec() }

// RecordTransition counts a state change of one record's verification
func (m *WorkflowMetrics) RecordTransition(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *WorkflowMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Creations.Describe(ch)
	m.CreationDuration.Describe(ch)
	m.Verifications.Describe(ch)
	m.VerificationDuration.Describe(ch)
	m.VerificationsRunning.Describe(ch)
	m.StateTransitions.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *WorkflowMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Creations.Collect(ch)
	m.CreationDuration.Collect(ch)
	m.Verifications.Collect(ch)
	m.VerificationDuration.Collect(ch)
	m.VerificationsRunning.Collect(ch)
	m.StateTransitions.Collect(ch)
}
