package workflow

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
	"github.com/adamidy7424/GeneNFT-Z/internal/records"
	"github.com/adamidy7424/GeneNFT-Z/internal/session"
)

// Research score bounds
const (
	MinResearchScore = 1
	MaxResearchScore = 10
)

// Status messages
const (
	msgConnectWallet    = "Please connect wallet first"
	msgCreating         = "Creating Genetic NFT with FHE encryption..."
	msgAwaitingConfirm  = "Waiting for transaction confirmation..."
	msgCreated          = "Genetic NFT created successfully!"
	msgRejected         = "Transaction rejected by user"
	msgSubmissionFailed = "Submission failed: "
)

// CreateRequest is the user's input for a new record
type CreateRequest struct {
	Name          string `json:"name"`
	GeneValue     string `json:"gene_value"`
	ResearchScore int64  `json:"research_score"`
}

// CreateResult describes a submitted record. Record is nil when the
// follow-up refresh did not return it.
type CreateResult struct {
	Key     string          `json:"key"`
	Tx      ledger.TxHandle `json:"tx"`
	TraceID string          `json:"trace_id"`
	Record  *genetic.Record `json:"record,omitempty"`
}

// Creator runs the encrypt, submit and confirm sequence
type Creator struct {
	base
	encryptor fhe.Encryptor
	writer    ledger.Writer
	keys      *keyGenerator
}

// NewCreator creates a creation orchestrator
func NewCreator(enc fhe.Encryptor, w ledger.Writer, n *records.Normalizer, opts ...Option) *Creator {
	return &Creator{
		base:      newBase(n, "workflow.create", opts),
		encryptor: enc,
		writer:    w,
		keys:      processKeys,
	}
}

// ParseGeneValue keeps the digits of input and parses them. Empty or
// out-of-range input is a validation error.
func ParseGeneValue(input string) (int64, error) {
	digits := genetic.SanitizeDigits(input)
	if digits == "" {
		return 0, errors.ValidationError("gene value is required")
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, errors.ValidationError("gene value is out of range")
	}
	return v, nil
}

func (r CreateRequest) validate() (int64, error) {
	if strings.TrimSpace(r.Name) == "" {
		return 0, errors.ValidationError("name is required")
	}
	gene, err := ParseGeneValue(r.GeneValue)
	if err != nil {
		return 0, err
	}
	if r.ResearchScore < MinResearchScore || r.ResearchScore > MaxResearchScore {
		return 0, errors.ValidationError("research score must be between 1 and 10")
	}
	return gene, nil
}

// Create mints a record. It is never retried automatically because a
// retry would mint a second record. When finality cannot be confirmed the
// result is returned together with a finality-unknown error.
func (c *Creator) Create(ctx context.Context, sc session.Context, req CreateRequest) (result *CreateResult, err error) {
	ctx, traceID, log := c.startRun(ctx)
	start := c.now()
	defer func() {
		if c.metrics != nil {
			outcome := "created"
			if err != nil {
				outcome = string(events.ClassOf(err))
			}
			c.metrics.RecordCreation(outcome, c.now().Sub(start))
		}
	}()

	fail := func(message string, err error) error {
		log.Warn("record creation failed", logger.String("reason", message), logger.Error(err))
		c.publish(traceID, events.Failure(events.OperationCreate, "", message, err))
		return err
	}

	if !sc.Ready() {
		return nil, fail(msgConnectWallet, errors.New(errors.NewStd("session not ready")).
			Component("workflow").
			Category(errors.CategoryNotReady).
			Build())
	}

	gene, err := req.validate()
	if err != nil {
		return nil, fail(msgSubmissionFailed+err.Error(), err)
	}

	key := c.keys.Next()
	log = log.With(logger.String("record_key", key))
	c.publish(traceID, events.Pending(events.OperationCreate, key, msgCreating))

	input, err := c.encryptor.Encrypt(ctx, sc.Contract, sc.Account, uint64(gene))
	if err != nil {
		err = serviceError(err, "encrypt", key)
		return nil, fail(msgSubmissionFailed+err.Error(), err)
	}

	tx, err := c.writer.CreateRecord(ctx, ledger.CreateParams{
		Key:            key,
		Name:           strings.TrimSpace(req.Name),
		From:           sc.Account,
		EncryptedValue: input.Handle(),
		InputProof:     input.InputProof,
		PublicValue1:   uint64(req.ResearchScore),
		PublicValue2:   0,
		Description:    genetic.DataType,
	})
	if err != nil {
		err = ledger.Classify(err, "create_record")
		message := msgSubmissionFailed + err.Error()
		if errors.IsCategory(err, errors.CategoryUserRejected) {
			message = msgRejected
		}
		return nil, fail(message, err)
	}

	result = &CreateResult{Key: key, Tx: tx, TraceID: traceID}
	c.publish(traceID, events.Pending(events.OperationCreate, key, msgAwaitingConfirm))

	waitStart := c.now()
	if err := c.awaitFinality(ctx, c.writer, tx); err != nil {
		err = finalityError(err, key, tx, c.now().Sub(waitStart))
		c.reconcile(ctx, log)
		return result, fail(msgSubmissionFailed+err.Error(), err)
	}

	if set := c.reload(ctx, log); set != nil {
		if r, ok := set.Get(key); ok {
			result.Record = &r
		}
	}

	log.Info("record created", logger.String("tx", string(tx)))
	c.publish(traceID, events.Success(events.OperationCreate, key, msgCreated))
	return result, nil
}

func (b *base) awaitFinality(ctx context.Context, w ledger.Writer, tx ledger.TxHandle) error {
	fctx, cancel := context.WithTimeout(ctx, b.finalityTimeout)
	defer cancel()
	return w.AwaitFinality(fctx, tx)
}

// keyGenerator issues strictly increasing genenft-<unix millis> keys
type keyGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

var processKeys = &keyGenerator{now: time.Now}

func (g *keyGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return genetic.KeyPrefix + strconv.FormatInt(ms, 10)
}

func serviceError(err error, operation, key string) error {
	switch errors.CategoryOf(err) {
	case errors.CategoryNotReady, errors.CategoryValidation, errors.CategoryService:
		return err
	}
	return errors.New(err).
		Component("workflow").
		Category(errors.CategoryService).
		Context("operation", operation).
		RecordContext(key).
		Build()
}

func finalityError(err error, key string, tx ledger.TxHandle, waited time.Duration) error {
	if errors.Is(err, ledger.ErrTxFailed) {
		return ledger.Classify(err, "await_finality")
	}
	return errors.New(err).
		Component("workflow").
		Category(errors.CategoryFinality).
		Context("tx", string(tx)).
		RecordContext(key).
		Timing("await_finality", waited).
		Build()
}
