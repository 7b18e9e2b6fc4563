package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks calls to a remote ledger node. It implements
// rpc.CallObserver.
type LedgerMetrics struct {
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewLedgerMetrics creates and registers the ledger metrics.
func NewLedgerMetrics(registry prometheus.Registerer) (*LedgerMetrics, error) {
	m := &LedgerMetrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genenft_ledger_calls_total",
			Help: "Total number of ledger RPC calls by method and result",
		}, []string{"method", "result"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "genenft_ledger_call_duration_seconds",
			Help:    "Duration of ledger RPC calls",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ledger metrics: %w", err)
	}
	return m, nil
}

// ObserveCall records one RPC call
func (m *LedgerMetrics) ObserveCall(method, result string, d time.Duration) {
	m.Calls.WithLabelValues(method, result).Inc()
	m.CallDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *LedgerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Calls.Describe(ch)
	m.CallDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *LedgerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Calls.Collect(ch)
	m.CallDuration.Collect(ch)
}
