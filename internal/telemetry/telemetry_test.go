package telemetry

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
)

// mockTransport implements sentry.Transport for testing
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool              { return true }
func (t *mockTransport) FlushWithContext(context.Context) bool { return true }
func (t *mockTransport) Close()                                {}

func (t *mockTransport) all() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func initForTesting(t *testing.T) *mockTransport {
	t.Helper()
	transport := &mockTransport{}
	settings := &conf.Settings{Sentry: conf.SentrySettings{Enabled: true}}
	require.NoError(t, initSentry(settings, "test", transport))
	t.Cleanup(func() {
		errors.SetTelemetryReporter(nil)
		errors.SetPrivacyScrubber(nil)
		sentryInitialized.Store(false)
	})
	return transport
}

func TestInitSentryDisabled(t *testing.T) {
	require.NoError(t, InitSentry(&conf.Settings{}, "test"))
	assert.False(t, IsInitialized())
	assert.Nil(t, errors.GetTelemetryReporter())
	assert.True(t, Flush(time.Millisecond))
}

func TestReportedErrorsAreScrubbed(t *testing.T) {
	transport := initForTesting(t)
	assert.True(t, IsInitialized())

	handle := "0x" + strings.Repeat("ab", 32)
	ee := errors.New(errors.NewStd("submit failed for "+handle)).
		Component("workflow").
		Category(errors.CategoryLedger).
		Build()

	consumer := NewErrorConsumer(errors.GetTelemetryReporter())
	require.NoError(t, consumer.ProcessError(ee))
	assert.True(t, ee.IsReported())

	require.True(t, Flush(time.Second))
	got := transport.all()
	require.Len(t, got, 1)
	assert.NotContains(t, got[0].Message, handle)
	assert.Contains(t, got[0].Message, "[REDACTED]")
	assert.Equal(t, "ledger", got[0].Tags["category"])
	assert.Empty(t, got[0].ServerName)

	// Already reported errors are not sent twice
	require.NoError(t, consumer.ProcessError(ee))
	assert.Len(t, transport.all(), 1)
}

func TestUserRejectionIsNotReported(t *testing.T) {
	transport := initForTesting(t)

	ee := errors.New(errors.NewStd("user rejected transaction")).
		Category(errors.CategoryUserRejected).
		Build()
	require.NoError(t, NewErrorConsumer(errors.GetTelemetryReporter()).ProcessError(ee))
	assert.Empty(t, transport.all())
}

func TestConsumerWithDisabledReporter(t *testing.T) {
	c := NewErrorConsumer(errors.NewSentryReporter(false))
	assert.Equal(t, "telemetry", c.Name())

	ee := errors.New(errors.NewStd("boom")).Category(errors.CategoryService).Build()
	require.NoError(t, c.ProcessError(ee))
	assert.False(t, ee.IsReported())
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.ServerName = "host-1"
	event.User = sentry.User{ID: "u1"}
	event.Tags = map[string]string{"hostname": "host-1", "category": "ledger"}
	event.Extra = map[string]any{"component": "rpc", "account": "0xA11CE"}
	event.Contexts = map[string]sentry.Context{"os": {"name": "linux"}}

	out := applyPrivacyFilters(event)
	assert.Empty(t, out.ServerName)
	assert.Equal(t, sentry.User{}, out.User)
	assert.Equal(t, map[string]string{"category": "ledger"}, out.Tags)
	assert.Equal(t, map[string]any{"component": "rpc"}, out.Extra)
	assert.NotContains(t, out.Contexts, "os")
}
