package workflow

import (
	"context"
	"math"
	"sync"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
	"github.com/adamidy7424/GeneNFT-Z/internal/records"
	"github.com/adamidy7424/GeneNFT-Z/internal/session"
)

// ErrVerificationInFlight rejects a second verification of the same record
var ErrVerificationInFlight = errors.NewStd("verification already in progress for this record")

// State is a record's position in the verification state machine
type State string

const (
	StateUnverified           State = "unverified"
	StateCheckingLedger       State = "checking-ledger"
	StateAlreadyVerified      State = "already-verified"
	StateRequestingDecryption State = "requesting-decryption"
	StateAwaitingProof        State = "awaiting-proof"
	StateSubmittingProof      State = "submitting-proof"
	StateConfirming           State = "confirming"
	StateVerified             State = "verified"
	StateFailed               State = "failed"
)

// Outcome says how a successful verification concluded
type Outcome string

const (
	OutcomeVerified        Outcome = "verified"
	OutcomeAlreadyVerified Outcome = "already-verified"
	OutcomeLocalOnly       Outcome = "local-only"
)

const (
	msgAlreadyVerified     = "Data already verified on-chain"
	msgAlreadyVerifiedRace = "Data is already verified on-chain"
	msgVerifying           = "Verifying decryption on-chain..."
	msgVerified            = "Genetic data decrypted and verified successfully!"
	msgDecryptionFailed    = "Decryption failed: "
	msgInFlight            = "Verification already in progress"
	msgRetrying            = "Retrying verification..."
	msgKeyRequired         = "Record key is required"
)

// VerifyResult carries the value and how it was obtained. Value is
// LocalEstimate only for OutcomeLocalOnly.
type VerifyResult struct {
	Key      string              `json:"key"`
	Value    genetic.RecordValue `json:"-"`
	Outcome  Outcome             `json:"outcome"`
	Tx       ledger.TxHandle     `json:"tx,omitempty"`
	TraceID  string              `json:"trace_id"`
	Attempts int                 `json:"attempts"`
}

// Verifier runs the check, prove, submit and confirm sequence
type Verifier struct {
	base
	ledger    ledger.Ledger
	prover    fhe.Prover
	estimates *records.EstimateCache

	mu       sync.Mutex
	inFlight map[string]struct{}
	states   map[string]State
}

// NewVerifier creates a verification orchestrator. estimates may be nil.
func NewVerifier(l ledger.Ledger, p fhe.Prover, n *records.Normalizer, estimates *records.EstimateCache, opts ...Option) *Verifier {
	return &Verifier{
		base:      newBase(n, "workflow.verify", opts),
		ledger:    l,
		prover:    p,
		estimates: estimates,
		inFlight:  make(map[string]struct{}),
		states:    make(map[string]State),
	}
}

// State returns the current verification state of key
func (v *Verifier) State(key string) State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.states[key]; ok {
		return s
	}
	return StateUnverified
}

// InFlight reports whether a verification of key is running
func (v *Verifier) InFlight(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.inFlight[key]
	return ok
}

func (v *Verifier) setState(key string, to State) {
	v.mu.Lock()
	from, ok := v.states[key]
	if !ok {
		from = StateUnverified
	}
	v.states[key] = to
	v.mu.Unlock()

	if v.metrics != nil && from != to {
		v.metrics.RecordTransition(string(from), string(to))
	}
}

func (v *Verifier) acquire(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, busy := v.inFlight[key]; busy {
		return false
	}
	v.inFlight[key] = struct{}{}
	return true
}

func (v *Verifier) release(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inFlight, key)
}

// Verify proves the stored value of key on the ledger. A record that is
// already verified returns its stored value without requesting a new
// decryption. Retriable failures are retried per the retry policy, each
// time starting from the ledger check. When finality cannot be confirmed
// the decrypted value is returned as a local estimate together with a
// finality-unknown error.
func (v *Verifier) Verify(ctx context.Context, sc session.Context, key string) (result *VerifyResult, err error) {
	ctx, traceID, log := v.startRun(ctx)
	log = log.With(logger.String("record_key", key))

	if !sc.Ready() {
		err := errors.New(errors.NewStd("session not ready")).
			Component("workflow").
			Category(errors.CategoryNotReady).
			RecordContext(key).
			Build()
		v.publish(traceID, events.Failure(events.OperationVerify, key, msgConnectWallet, err))
		return nil, err
	}
	if key == "" {
		err := errors.ValidationError("record key is required")
		v.publish(traceID, events.Failure(events.OperationVerify, "", msgKeyRequired, err))
		return nil, err
	}

	if !v.acquire(key) {
		err := errors.New(ErrVerificationInFlight).
			Component("workflow").
			Category(errors.CategoryConflict).
			RecordContext(key).
			Build()
		v.publish(traceID, events.Failure(events.OperationVerify, key, msgInFlight, err))
		return nil, err
	}
	defer v.release(key)

	start := v.now()
	if v.metrics != nil {
		v.metrics.VerificationStarted()
	}
	defer func() {
		if v.metrics != nil {
			v.metrics.VerificationFinished()
			outcome := string(events.ClassOf(err))
			if result != nil && err == nil {
				outcome = string(result.Outcome)
			}
			v.metrics.RecordVerification(outcome, v.now().Sub(start))
		}
	}()

	if v.estimates != nil {
		v.estimates.Invalidate(key)
	}

	for attempt := 0; ; attempt++ {
		res, err := v.attempt(ctx, sc, key, traceID, log)
		if res != nil {
			res.TraceID = traceID
			res.Attempts = attempt + 1
		}
		if err == nil {
			return res, nil
		}

		if !errors.IsRetriable(err) || attempt >= v.retry.MaxRetries || ctx.Err() != nil {
			v.setState(key, StateFailed)
			log.Warn("verification failed",
				logger.Int("attempts", attempt+1),
				logger.Error(err))
			v.publish(traceID, events.Failure(events.OperationVerify, key, msgDecryptionFailed+err.Error(), err))
			return res, err
		}

		log.Info("retrying verification",
			logger.Int("attempt", attempt+1),
			logger.Error(err))
		v.publish(traceID, events.Pending(events.OperationVerify, key, msgRetrying))
		if werr := v.retry.wait(ctx, attempt); werr != nil {
			v.setState(key, StateFailed)
			v.publish(traceID, events.Failure(events.OperationVerify, key, msgDecryptionFailed+err.Error(), err))
			return res, err
		}
	}
}

// attempt runs the state machine once from CheckingLedger
func (v *Verifier) attempt(ctx context.Context, sc session.Context, key, traceID string, log logger.Logger) (*VerifyResult, error) {
	v.setState(key, StateCheckingLedger)
	rec, err := v.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.IsVerified {
		return v.alreadyVerified(ctx, rec, traceID, msgAlreadyVerified, log), nil
	}

	v.setState(key, StateRequestingDecryption)
	handle, err := v.ledger.GetCiphertextHandle(ctx, key)
	if err != nil {
		return nil, ledger.Classify(err, "get_ciphertext_handle")
	}

	v.setState(key, StateAwaitingProof)
	var (
		tx        ledger.TxHandle
		submitErr error
	)
	submit := func(ctx context.Context, encoded, proof []byte) error {
		v.setState(key, StateSubmittingProof)
		tx, submitErr = v.ledger.SubmitVerification(ctx, key, encoded, proof)
		return submitErr
	}

	dec, err := v.prover.ProveDecryption(ctx, []fhe.Handle{handle}, sc.Contract, submit)
	if err != nil {
		switch {
		case ledger.IsAlreadyVerified(submitErr), submitErr == nil && ledger.IsAlreadyVerified(err):
			// Another path verified the record after the ledger check
			return v.verifiedElsewhere(ctx, key, traceID, log)
		case submitErr != nil:
			return nil, ledger.Classify(submitErr, "submit_verification")
		default:
			return nil, serviceError(err, "prove_decryption", key)
		}
	}

	v.setState(key, StateConfirming)
	v.publish(traceID, events.Pending(events.OperationVerify, key, msgVerifying))

	plain, ok := dec.Value(handle)
	if !ok || plain > math.MaxInt64 {
		return nil, serviceError(errors.NewStd("decryption result does not cover the record handle"), "prove_decryption", key)
	}
	value := int64(plain)
	if v.estimates != nil {
		v.estimates.Put(key, value)
	}

	waitStart := v.now()
	if err := v.awaitFinality(ctx, v.ledger, tx); err != nil {
		err = finalityError(err, key, tx, v.now().Sub(waitStart))
		v.reconcile(ctx, log)
		return &VerifyResult{Key: key, Value: genetic.EstimateOf(value), Outcome: OutcomeLocalOnly, Tx: tx}, err
	}

	v.reload(ctx, log)
	v.setState(key, StateVerified)
	log.Info("record verified", logger.String("tx", string(tx)))
	v.publish(traceID, events.Success(events.OperationVerify, key, msgVerified))
	return &VerifyResult{Key: key, Value: genetic.VerifiedOf(value), Outcome: OutcomeVerified, Tx: tx}, nil
}

func (v *Verifier) fetch(ctx context.Context, key string) (genetic.Record, error) {
	if v.records != nil {
		return v.records.Fetch(ctx, key)
	}
	raw, err := v.ledger.GetRecord(ctx, key)
	if err != nil {
		return genetic.Record{}, ledger.Classify(err, "get_record")
	}
	return records.Normalize(key, raw, v.now()), nil
}

// verifiedElsewhere handles a submission rejected because the record is
// already verified: the ledger's stored value is authoritative.
func (v *Verifier) verifiedElsewhere(ctx context.Context, key, traceID string, log logger.Logger) (*VerifyResult, error) {
	rec, err := v.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if !rec.IsVerified {
		return nil, errors.New(errors.NewStd("ledger reported already verified but record is unverified")).
			Component("workflow").
			Category(errors.CategoryLedger).
			RecordContext(key).
			Build()
	}
	return v.alreadyVerified(ctx, rec, traceID, msgAlreadyVerifiedRace, log), nil
}

func (v *Verifier) alreadyVerified(ctx context.Context, rec genetic.Record, traceID, message string, log logger.Logger) *VerifyResult {
	v.setState(rec.Key, StateAlreadyVerified)
	v.reload(ctx, log)
	v.setState(rec.Key, StateVerified)
	log.Info("record already verified")
	v.publish(traceID, events.Completed(events.OperationVerify, rec.Key, message))
	return &VerifyResult{
		Key:     rec.Key,
		Value:   genetic.VerifiedOf(rec.VerifiedPlainValue),
		Outcome: OutcomeAlreadyVerified,
	}
}
