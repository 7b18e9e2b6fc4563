package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/adamidy7424/GeneNFT-Z/internal/events"
)

// Provider delivers one notification
type Provider interface {
	Send(ctx context.Context, title, message string) error
}

// DefaultRate and DefaultBurst limit pushes to chat services
const (
	DefaultRate  = rate.Limit(1)
	DefaultBurst = 10
)

// StatusConsumer pushes error and success statuses. Pending statuses never
// leave the process. It implements events.StatusConsumer.
type StatusConsumer struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewStatusConsumer wraps provider with the default rate limit
func NewStatusConsumer(provider Provider) *StatusConsumer {
	return &StatusConsumer{
		provider: provider,
		limiter:  rate.NewLimiter(DefaultRate, DefaultBurst),
		timeout:  DefaultTimeout,
	}
}

func (c *StatusConsumer) Name() string { return "notification" }

// ProcessStatus sends terminal statuses; once the burst is spent further
// statuses are dropped with an error until the limiter refills.
func (c *StatusConsumer) ProcessStatus(event events.StatusEvent) error {
	if event.Status == events.StatusPending {
		return nil
	}
	if !c.limiter.Allow() {
		return fmt.Errorf("notification rate limit exceeded, dropping %s status", event.Operation)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.provider.Send(ctx, Title(event), Body(event))
}

// Title names the operation and its result
func Title(event events.StatusEvent) string {
	op := event.Operation
	if op != "" {
		op = strings.ToUpper(op[:1]) + op[1:]
	}
	switch event.Status {
	case events.StatusError:
		return "GeneNFT-Z: " + op + " failed"
	default:
		return "GeneNFT-Z: " + op + " " + string(event.Status)
	}
}

// Body is the status message followed by the record key when there is one
func Body(event events.StatusEvent) string {
	if event.RecordKey == "" {
		return event.Message
	}
	return event.Message + "\nRecord: " + event.RecordKey
}
