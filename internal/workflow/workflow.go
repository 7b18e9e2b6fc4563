// Package workflow drives record creation and verification against the
// ledger and the encryption services, publishing status notifications as
// each step progresses.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
	"github.com/adamidy7424/GeneNFT-Z/internal/records"
)

// DefaultFinalityTimeout bounds each wait for transaction finality
const DefaultFinalityTimeout = 2 * time.Minute

// Metrics receives workflow observations; observability.WorkflowMetrics implements it
type Metrics interface {
	RecordCreation(outcome string, d time.Duration)
	RecordVerification(outcome string, d time.Duration)
	VerificationStarted()
	VerificationFinished()
	RecordTransition(from, to string)
}

// Option configures a Creator or Verifier
type Option func(*base)

// base holds what both orchestrators share
type base struct {
	records         *records.Normalizer
	status          events.StatusPublisher
	metrics         Metrics
	logger          logger.Logger
	finalityTimeout time.Duration
	retry           RetryPolicy
	now             func() time.Time
}

func newBase(n *records.Normalizer, module string, opts []Option) base {
	b := base{
		records:         n,
		logger:          logger.NewDiscardLogger(),
		finalityTimeout: DefaultFinalityTimeout,
		retry:           DefaultRetryPolicy(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.Module(module)
	return b
}

// WithStatus sets where status notifications go
func WithStatus(p events.StatusPublisher) Option {
	return func(b *base) { b.status = p }
}

// WithMetrics installs workflow metrics
func WithMetrics(m Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// WithLogger sets the parent logger
func WithLogger(l logger.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithFinalityTimeout bounds each finality wait; zero or less keeps the default
func WithFinalityTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.finalityTimeout = d
		}
	}
}

// WithRetryPolicy sets the verification retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(b *base) { b.retry = p }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// startRun tags ctx with a fresh trace id
func (b *base) startRun(ctx context.Context) (context.Context, string, logger.Logger) {
	traceID := uuid.NewString()
	ctx = logger.WithTraceID(ctx, traceID)
	return ctx, traceID, b.logger.WithContext(ctx)
}

func (b *base) publish(traceID string, e events.StatusEvent) {
	if b.status != nil {
		b.status.PublishStatus(e.WithTrace(traceID))
	}
}

// reload refreshes the record set; a failure is logged and published by the
// normalizer, never returned
func (b *base) reload(ctx context.Context, log logger.Logger) *records.Set {
	if b.records == nil {
		return nil
	}
	set, err := b.records.Refresh(ctx)
	if err != nil {
		log.Warn("record refresh failed", logger.Error(err))
		return nil
	}
	return set
}

// reconcile refreshes even when ctx has already ended, so the record set
// catches up with a transaction whose outcome is unknown
func (b *base) reconcile(ctx context.Context, log logger.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.finalityTimeout)
	defer cancel()
	b.reload(rctx, log)
}
