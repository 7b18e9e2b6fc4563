package metrics

import "github.com/prometheus/client_golang/prometheus"

// Result label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// durationBuckets covers a finality wait of up to a few minutes
var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

var (
	_ prometheus.Collector = (*WorkflowMetrics)(nil)
	_ prometheus.Collector = (*RecordMetrics)(nil)
	_ prometheus.Collector = (*LedgerMetrics)(nil)
	_ prometheus.Collector = (*MQTTMetrics)(nil)
)
