package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordMetrics tracks the record normalizer. It implements records.Metrics.
type RecordMetrics struct {
	RecordsLoaded   prometheus.Gauge
	FetchFailures   prometheus.Counter
	Refreshes       *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
}

// NewRecordMetrics creates and registers the record metrics.
func NewRecordMetrics(registry prometheus.Registerer) (*RecordMetrics, error) {
	m := &RecordMetrics{
		RecordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genenft_records_loaded",
			Help: "Number of records in the current record set",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genenft_record_fetch_failures_total",
			Help: "Total number of record fetches skipped during a refresh",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genenft_record_refreshes_total",
			Help: "Total number of record set refreshes by result",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "genenft_record_refresh_duration_seconds",
			Help:    "Duration of record set refreshes",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register record metrics: %w", err)
	}
	return m, nil
}

func (m *RecordMetrics) SetRecordsLoaded(n int) { m.RecordsLoaded.Set(float64(n)) }
func (m *RecordMetrics) IncFetchFailures()      { m.FetchFailures.Inc() }

// ObserveRefresh records a finished refresh
func (m *RecordMetrics) ObserveRefresh(d time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.Refreshes.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *RecordMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.RecordsLoaded.Desc()
	ch <- m.FetchFailures.Desc()
	m.Refreshes.Describe(ch)
	ch <- m.RefreshDuration.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *RecordMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.RecordsLoaded
	ch <- m.FetchFailures
	m.Refreshes.Collect(ch)
	ch <- m.RefreshDuration
}
