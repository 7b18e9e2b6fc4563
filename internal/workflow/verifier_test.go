package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe/fhetest"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger/ledgertest"
	"github.com/adamidy7424/GeneNFT-Z/internal/session"
)

func createFor(t *testing.T, e *env, gene string, research int64) string {
	t.Helper()
	res, err := e.creator.Create(context.Background(), readySession, CreateRequest{Name: "rec", GeneValue: gene, ResearchScore: research})
	require.NoError(t, err)
	return res.Key
}

func TestCreateThenVerify(t *testing.T) {
	e := newEnv(t)
	key := createFor(t, e, "80", 5)

	res, err := e.verifier.Verify(context.Background(), readySession, key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	v, ok := res.Value.Value()
	require.True(t, ok)
	assert.Equal(t, int64(80), v)
	assert.True(t, res.Value.IsVerified())

	r, ok := e.records.Current().Get(key)
	require.True(t, ok)
	assert.True(t, r.IsVerified)
	assert.Equal(t, int64(80), r.VerifiedPlainValue)

	assert.Equal(t, StateVerified, e.verifier.State(key))
	assert.Equal(t, "Genetic data decrypted and verified successfully!", e.status.last().Message)
	assert.Equal(t, []string{
		"unverified>checking-ledger",
		"checking-ledger>requesting-decryption",
		"requesting-decryption>awaiting-proof",
		"awaiting-proof>submitting-proof",
		"submitting-proof>confirming",
		"confirming>verified",
	}, e.metrics.transitions)
	assert.Equal(t, []string{"verified"}, e.metrics.verifications)
	assert.Zero(t, e.metrics.inFlight)
}

func TestVerifyAlreadyVerifiedNeverSubmits(t *testing.T) {
	e := newEnv(t)
	e.ledger.Seed(ledgertest.Entry{Key: "genenft-1", Name: "x", Verified: true, Value: 42, Handle: "0x01"})

	for range 2 {
		res, err := e.verifier.Verify(context.Background(), readySession, "genenft-1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyVerified, res.Outcome)
		assert.Equal(t, genetic.VerifiedOf(42), res.Value)

		last := e.status.last()
		assert.Equal(t, "Data already verified on-chain", last.Message)
		assert.Equal(t, events.ClassCompleted, last.Class)
	}
	assert.Zero(t, e.ledger.Calls(ledgertest.OpSubmit))
	assert.Zero(t, e.fhe.Calls(fhetest.OpProve))
	assert.Equal(t, StateVerified, e.verifier.State("genenft-1"))
}

func TestVerifyRaceWithAnotherVerifier(t *testing.T) {
	e := newEnv(t)
	key := createFor(t, e, "80", 5)
	e.ledger.BeforeSubmit = func(k string) { e.ledger.MarkVerified(k, 77) }

	res, err := e.verifier.Verify(context.Background(), readySession, key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVerified, res.Outcome)
	assert.Equal(t, genetic.VerifiedOf(77), res.Value, "the ledger's value is authoritative")
	assert.Equal(t, "Data is already verified on-chain", e.status.last().Message)
	assert.Equal(t, 1, e.ledger.Calls(ledgertest.OpSubmit))
}

func TestVerifyRequiresReadySession(t *testing.T) {
	e := newEnv(t)
	_, err := e.verifier.Verify(context.Background(), session.Context{}, "genenft-1")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotReady))
	assert.Zero(t, e.ledger.Calls(ledgertest.OpGet))
	assert.Equal(t, "Please connect wallet first", e.status.last().Message)
}

func TestVerifyRejectsEmptyKey(t *testing.T) {
	e := newEnv(t)
	_, err := e.verifier.Verify(context.Background(), readySession, "")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, e.ledger.Calls(ledgertest.OpGet))

	last := e.status.last()
	assert.Equal(t, events.OperationVerify, last.Operation)
	assert.Equal(t, events.StatusError, last.Status)
	assert.Equal(t, events.ClassFailed, last.Class)
	assert.Equal(t, "Record key is required", last.Message)
	assert.NotEmpty(t, last.TraceID)
}

func TestVerifyRejectsConcurrentSameKey(t *testing.T) {
	e := newEnv(t)
	slow := createFor(t, e, "10", 1)
	other := createFor(t, e, "20", 2)

	entered := make(chan struct{})
	release := make(chan struct{})
	e.ledger.BeforeSubmit = func(k string) {
		if k == slow {
			close(entered)
			<-release
		}
	}

	var wg sync.WaitGroup
	var first *VerifyResult
	var firstErr error
	wg.Go(func() { first, firstErr = e.verifier.Verify(context.Background(), readySession, slow) })
	<-entered

	assert.True(t, e.verifier.InFlight(slow))
	assert.Equal(t, StateSubmittingProof, e.verifier.State(slow))

	_, err := e.verifier.Verify(context.Background(), readySession, slow)
	require.ErrorIs(t, err, ErrVerificationInFlight)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
	assert.False(t, errors.IsRetriable(err))

	res, err := e.verifier.Verify(context.Background(), readySession, other)
	require.NoError(t, err, "other records are independent")
	assert.Equal(t, OutcomeVerified, res.Outcome)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, genetic.VerifiedOf(10), first.Value)
	assert.False(t, e.verifier.InFlight(slow))
}

func TestVerifyRetriesTransientFailureFromLedgerCheck(t *testing.T) {
	e := newEnv(t)
	key := createFor(t, e, "33", 4)
	e.ledger.FailNext(ledgertest.OpHandle, errors.NewStd("node unavailable"))

	res, err := e.verifier.Verify(context.Background(), readySession, key)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, genetic.VerifiedOf(33), res.Value)
	assert.Equal(t, 2, e.ledger.Calls(ledgertest.OpHandle))
	assert.Contains(t, e.status.messages(), "Retrying verification...")
}

func TestVerifyRetriesAreBounded(t *testing.T) {
	e := newEnv(t)
	key := createFor(t, e, "33", 4)
	e.ledger.FailAlways(ledgertest.OpHandle, errors.NewStd("node unavailable"))

	res, err := e.verifier.Verify(context.Background(), readySession, key)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsCategory(err, errors.CategoryLedger))
	assert.Equal(t, 3, e.ledger.Calls(ledgertest.OpHandle))
	assert.Equal(t, StateFailed, e.verifier.State(key))

	last := e.status.last()
	assert.Equal(t, events.ClassRetriable, last.Class)
	assert.Contains(t, last.Message, "Decryption failed: ")
}

func TestVerifyUserRejectionIsNotRetried(t *testing.T) {
	e := newEnv(t)
	key := createFor(t, e, "33", 4)
	e.ledger.FailNext(ledgertest.OpSubmit, ledger.ErrUserRejected)

	_, err := e.verifier.Verify(context.Background(), readySession, key)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryUserRejected))
	assert.Equal(t, 1, e.ledger.Calls(ledgertest.OpSubmit))
	assert.Equal(t, events.ClassRejected, e.status.last().Class)
}

func TestVerifyProverFailureIsServiceFailure(t *testing.T) {
	e := newEnv(t, WithRetryPolicy(NoRetry()))
	key := createFor(t, e, "33", 4)
	e.fhe.FailNext(fhetest.OpProve, errors.NewStd("gateway timeout"))

	_, err := e.verifier.Verify(context.Background(), readySession, key)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryService))
	assert.Zero(t, e.ledger.Calls(ledgertest.OpSubmit))
}

func TestVerifyFinalityUnknownReturnsLocalEstimate(t *testing.T) {
	e := newEnv(t, WithRetryPolicy(NoRetry()))
	key := createFor(t, e, "61", 4)
	e.ledger.FailNext(ledgertest.OpFinality, errors.NewStd("receipt not available"))

	res, err := e.verifier.Verify(context.Background(), readySession, key)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFinality))
	require.NotNil(t, res)
	assert.Equal(t, OutcomeLocalOnly, res.Outcome)
	assert.Equal(t, genetic.EstimateOf(61), res.Value)
	assert.Equal(t, genetic.EstimateOf(61), e.estimates.Get(key))

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "await_finality", ee.GetContext()["operation"])
	assert.Contains(t, ee.GetContext(), "duration_ms")
}

func TestVerifyFinalityUnknownRetryTakesAlreadyVerifiedPath(t *testing.T) {
	e := newEnv(t)
	key := createFor(t, e, "61", 4)
	e.ledger.FailNext(ledgertest.OpFinality, errors.NewStd("receipt not available"))

	res, err := e.verifier.Verify(context.Background(), readySession, key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVerified, res.Outcome)
	assert.Equal(t, genetic.VerifiedOf(61), res.Value)
	assert.Equal(t, 1, e.ledger.Calls(ledgertest.OpSubmit), "a retry never resubmits")
}

func TestVerifyInvalidatesEstimate(t *testing.T) {
	e := newEnv(t)
	e.estimates.Put("genenft-404", 5)

	_, err := e.verifier.Verify(context.Background(), readySession, "genenft-404")
	require.ErrorIs(t, err, ledger.ErrRecordNotFound)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, genetic.Unknown, e.estimates.Get("genenft-404").Provenance())
	assert.Equal(t, 1, e.ledger.Calls(ledgertest.OpGet), "missing records are not retried")
}

func TestVerifyCanceledDuringBackoff(t *testing.T) {
	e := newEnv(t, WithRetryPolicy(RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}))
	key := createFor(t, e, "1", 1)
	e.ledger.FailAlways(ledgertest.OpHandle, errors.NewStd("node unavailable"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.verifier.Verify(ctx, readySession, key)
	require.Error(t, err)
	assert.Equal(t, 1, e.ledger.Calls(ledgertest.OpHandle))
	assert.False(t, e.verifier.InFlight(key))
}
