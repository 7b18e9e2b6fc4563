package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe/fhetest"
)

const (
	testAccount  = "0xA11CE00000000000000000000000000000000001"
	testContract = "0x00000000000000000000000000000000000000C0"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type statusRecorder struct {
	mu     sync.Mutex
	events []events.StatusEvent
}

func (r *statusRecorder) PublishStatus(e events.StatusEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *statusRecorder) snapshot() []events.StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.StatusEvent(nil), r.events...)
}

func TestInitializeRequiresWallet(t *testing.T) {
	svc := fhetest.New()
	c := NewCoordinator(NewStaticWallet(""), svc, testContract, nil, nil)

	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotReady))
	assert.Zero(t, svc.Calls(fhetest.OpInitialize))
	assert.False(t, c.Ready())
}

func TestInitializeOnce(t *testing.T) {
	svc := fhetest.New()
	rec := &statusRecorder{}
	c := NewCoordinator(NewStaticWallet(testAccount), svc, testContract, rec, nil)

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, 1, svc.Calls(fhetest.OpInitialize))
	assert.True(t, c.Ready())

	sc := c.Context()
	assert.Equal(t, Context{Account: testAccount, Contract: testContract, Connected: true, Initialized: true}, sc)
	require.Len(t, rec.snapshot(), 1)
	assert.Equal(t, events.StatusSuccess, rec.snapshot()[0].Status)
}

func TestConcurrentInitializeSharesOneAttempt(t *testing.T) {
	svc := fhetest.New()
	svc.InitGate = make(chan struct{})
	c := NewCoordinator(NewStaticWallet(testAccount), svc, testContract, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Go(func() { errs[i] = c.Initialize(context.Background()) })
	}

	assert.Eventually(t, func() bool { return svc.Calls(fhetest.OpInitialize) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(svc.InitGate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, svc.Calls(fhetest.OpInitialize))
	assert.True(t, c.Ready())
}

func TestCanceledCallerDoesNotAbortSharedInitialize(t *testing.T) {
	svc := fhetest.New()
	svc.InitGate = make(chan struct{})
	c := NewCoordinator(NewStaticWallet(testAccount), svc, testContract, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- c.Initialize(ctx) }()
	assert.Eventually(t, func() bool { return svc.Calls(fhetest.OpInitialize) == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- c.Initialize(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-first
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.False(t, c.Ready())

	close(svc.InitGate)
	require.NoError(t, <-second, "the waiting caller still gets the shared result")
	assert.Equal(t, 1, svc.Calls(fhetest.OpInitialize))
	assert.True(t, c.Ready())
}

func TestInitializeFailure(t *testing.T) {
	svc := fhetest.New()
	svc.FailNext(fhetest.OpInitialize, errors.NewStd("relayer unreachable"))
	rec := &statusRecorder{}
	c := NewCoordinator(NewStaticWallet(testAccount), svc, testContract, rec, nil)

	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryService))
	assert.True(t, errors.IsRetriable(err))
	assert.False(t, c.Ready())

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "FHE initialization failed", got[0].Message)
	assert.Equal(t, events.ClassRetriable, got[0].Class)

	// A later attempt may succeed
	require.NoError(t, c.Initialize(context.Background()))
	assert.True(t, c.Ready())
}

func TestDisconnectResetsReadiness(t *testing.T) {
	w := NewStaticWallet(testAccount)
	svc := fhetest.New()
	c := NewCoordinator(w, svc, testContract, nil, nil)
	require.NoError(t, c.Initialize(context.Background()))

	w.SetConnected(false)
	assert.False(t, c.Ready(), "a disconnected wallet is never ready")
	c.WalletChanged(false)

	w.SetConnected(true)
	c.WalletChanged(true)
	assert.False(t, c.Ready(), "reconnecting requires a new initialization")

	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, 2, svc.Calls(fhetest.OpInitialize))
	assert.True(t, c.Ready())
}

func TestResetDuringInitialization(t *testing.T) {
	svc := fhetest.New()
	svc.InitGate = make(chan struct{})
	c := NewCoordinator(NewStaticWallet(testAccount), svc, testContract, nil, nil)

	done := make(chan error, 1)
	go func() { done <- c.Initialize(context.Background()) }()

	assert.Eventually(t, func() bool { return svc.Calls(fhetest.OpInitialize) == 1 }, time.Second, time.Millisecond)
	c.Close()
	close(svc.InitGate)

	err := <-done
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotReady))
	assert.False(t, c.Ready())
}

func TestContextReady(t *testing.T) {
	assert.False(t, Context{}.Ready())
	assert.False(t, Context{Account: testAccount, Connected: true}.Ready())
	assert.True(t, Context{Account: testAccount, Connected: true, Initialized: true}.Ready())
}
