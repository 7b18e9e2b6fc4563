// Package ledgertest provides an in-memory ledger.Ledger for tests.
package ledgertest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
)

// Op names a Ledger method for failure injection and call counting
type Op string

const (
	OpList     Op = "list"
	OpGet      Op = "get"
	OpHandle   Op = "handle"
	OpCreate   Op = "create"
	OpSubmit   Op = "submit"
	OpFinality Op = "finality"
)

// DefaultAddress is the contract address of ledgers built by New
const DefaultAddress = "0x00000000000000000000000000000000000000C0"

// Entry is one stored record
type Entry struct {
	Key          string
	Name         string
	Description  string
	Creator      string
	Timestamp    int64
	PublicValue1 uint64
	PublicValue2 uint64
	Handle       fhe.Handle
	Verified     bool
	Value        uint64
}

// Ledger is safe for concurrent use
type Ledger struct {
	mu       sync.Mutex
	address  string
	keys     []string
	entries  map[string]*Entry
	txs      map[ledger.TxHandle]struct{}
	failures map[Op][]error
	always   map[Op]error
	keyFail  map[string]error
	calls    map[Op]int
	seq      int

	// Now stamps created records; defaults to time.Now
	Now func() time.Time

	// BeforeSubmit runs at the start of SubmitVerification, outside the lock
	BeforeSubmit func(key string)
}

var _ ledger.Ledger = (*Ledger)(nil)

// New creates an empty ledger at DefaultAddress
func New() *Ledger {
	return &Ledger{
		address:  DefaultAddress,
		entries:  make(map[string]*Entry),
		txs:      make(map[ledger.TxHandle]struct{}),
		failures: make(map[Op][]error),
		always:   make(map[Op]error),
		keyFail:  make(map[string]error),
		calls:    make(map[Op]int),
		Now:      time.Now,
	}
}

// Seed stores e directly, bypassing CreateRecord
func (l *Ledger) Seed(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[e.Key]; !ok {
		l.keys = append(l.keys, e.Key)
	}
	cp := e
	l.entries[e.Key] = &cp
}

// MarkVerified records value as verified for key, as another client would
func (l *Ledger) MarkVerified(key string, value uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		e.Verified = true
		e.Value = value
	}
}

// Entry returns a copy of the stored record
func (l *Ledger) Entry(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Keys returns the enumeration order
func (l *Ledger) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.keys)
}

// FailNext queues errors for the next calls of op, one per call
func (l *Ledger) FailNext(op Op, errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = append(l.failures[op], errs...)
}

// FailAlways makes every call of op fail with err; nil clears it
func (l *Ledger) FailAlways(op Op, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.always, op)
		return
	}
	l.always[op] = err
}

// FailKey makes GetRecord fail for key
func (l *Ledger) FailKey(key string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keyFail[key] = err
}

// Calls returns how many times op was invoked
func (l *Ledger) Calls(op Op) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// begin counts the call and returns an injected failure; l.mu must be held
func (l *Ledger) begin(op Op) error {
	l.calls[op]++
	if q := l.failures[op]; len(q) > 0 {
		l.failures[op] = q[1:]
		return q[0]
	}
	return l.always[op]
}

func (l *Ledger) Address() string {
	return l.address
}

func (l *Ledger) ListRecordKeys(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin(OpList); err != nil {
		return nil, err
	}
	return slices.Clone(l.keys), nil
}

func (l *Ledger) GetRecord(_ context.Context, key string) (*ledger.RawRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin(OpGet); err != nil {
		return nil, err
	}
	if err := l.keyFail[key]; err != nil {
		return nil, err
	}
	e, ok := l.entries[key]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	return &ledger.RawRecord{
		Name:           e.Name,
		Description:    e.Description,
		Creator:        e.Creator,
		Timestamp:      e.Timestamp,
		PublicValue1:   e.PublicValue1,
		PublicValue2:   e.PublicValue2,
		IsVerified:     e.Verified,
		DecryptedValue: e.Value,
	}, nil
}

func (l *Ledger) GetCiphertextHandle(_ context.Context, key string) (fhe.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin(OpHandle); err != nil {
		return "", err
	}
	e, ok := l.entries[key]
	if !ok {
		return "", ledger.ErrRecordNotFound
	}
	return e.Handle, nil
}

func (l *Ledger) CreateRecord(_ context.Context, p ledger.CreateParams) (ledger.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin(OpCreate); err != nil {
		return "", err
	}
	if _, ok := l.entries[p.Key]; ok {
		return "", ledger.ErrDuplicateKey
	}
	l.keys = append(l.keys, p.Key)
	l.entries[p.Key] = &Entry{
		Key:          p.Key,
		Name:         p.Name,
		Description:  p.Description,
		Creator:      p.From,
		Timestamp:    l.Now().Unix(),
		PublicValue1: p.PublicValue1,
		PublicValue2: p.PublicValue2,
		Handle:       p.EncryptedValue,
	}
	return l.newTx(), nil
}

func (l *Ledger) SubmitVerification(_ context.Context, key string, clearValuesEncoded, _ []byte) (ledger.TxHandle, error) {
	if hook := l.BeforeSubmit; hook != nil {
		hook(key)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin(OpSubmit); err != nil {
		return "", err
	}
	e, ok := l.entries[key]
	if !ok {
		return "", ledger.ErrRecordNotFound
	}
	if e.Verified {
		return "", ledger.ErrAlreadyVerified
	}
	values, err := fhe.DecodeClearValues(clearValuesEncoded)
	if err != nil || len(values) != 1 {
		return "", fmt.Errorf("%w: bad clear values", ledger.ErrInvalidProof)
	}
	e.Verified = true
	e.Value = values[0]
	return l.newTx(), nil
}

func (l *Ledger) AwaitFinality(ctx context.Context, tx ledger.TxHandle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.begin(OpFinality); err != nil {
		return err
	}
	if _, ok := l.txs[tx]; !ok {
		return fmt.Errorf("unknown transaction %s", tx)
	}
	return ctx.Err()
}

// newTx registers a transaction; l.mu must be held
func (l *Ledger) newTx() ledger.TxHandle {
	l.seq++
	tx := ledger.TxHandle(fmt.Sprintf("0x%064x", l.seq))
	l.txs[tx] = struct{}{}
	return tx
}
