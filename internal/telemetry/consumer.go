package telemetry

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
)

const (
	// DefaultRateLimitWindow and DefaultRateLimitMaxEvents bound Sentry traffic
	DefaultRateLimitWindow    = time.Minute
	DefaultRateLimitMaxEvents = 100
)

// ErrorConsumer forwards enhanced errors from the event bus to a reporter
type ErrorConsumer struct {
	reporter errors.TelemetryReporter
	limiter  *rate.Limiter
}

var _ events.ErrorConsumer = (*ErrorConsumer)(nil)

// NewErrorConsumer creates a consumer reporting through reporter
func NewErrorConsumer(reporter errors.TelemetryReporter) *ErrorConsumer {
	every := rate.Every(DefaultRateLimitWindow / DefaultRateLimitMaxEvents)
	return &ErrorConsumer{
		reporter: reporter,
		limiter:  rate.NewLimiter(every, DefaultRateLimitMaxEvents),
	}
}

// Name implements events.ErrorConsumer
func (c *ErrorConsumer) Name() string {
	return "telemetry"
}

// ProcessError implements events.ErrorConsumer. Events beyond the rate
// limit are dropped.
func (c *ErrorConsumer) ProcessError(event events.ErrorEvent) error {
	ee, ok := event.(*errors.EnhancedError)
	if !ok || ee.IsReported() || c.reporter == nil || !c.reporter.IsEnabled() {
		return nil
	}
	if !c.limiter.Allow() {
		return nil
	}
	c.reporter.ReportError(ee)
	return nil
}
