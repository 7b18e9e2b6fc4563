// Package ledger declares the contract-facing interfaces for genetic records
// and the failure sentinels shared by every backend.
package ledger

import (
	"context"
	"strings"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
)

// Backend sentinels. Opaque backends are matched by message as a fallback.
var (
	ErrUserRejected    = errors.NewStd("user rejected the request")
	ErrAlreadyVerified = errors.NewStd("Data already verified")
	ErrRecordNotFound  = errors.NewStd("record not found")
	ErrDuplicateKey    = errors.NewStd("record key already exists")
	ErrInvalidProof    = errors.NewStd("invalid proof")
	ErrTxFailed        = errors.NewStd("transaction failed")
)

// TxHandle identifies a submitted transaction
type TxHandle string

// RawRecord is a record as the contract returns it. Numeric fields arrive
// in whatever shape the transport produced (int64, uint64, float64,
// json.Number, decimal or 0x-hex strings, *big.Int) or nil.
type RawRecord struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Creator        string `json:"creator"`
	Timestamp      any    `json:"timestamp"`
	PublicValue1   any    `json:"publicValue1"`
	PublicValue2   any    `json:"publicValue2"`
	IsVerified     any    `json:"isVerified"`
	DecryptedValue any    `json:"decryptedValue"`
}

// CreateParams are the arguments of a record creation
type CreateParams struct {
	Key            string
	Name           string
	From           string // signing account
	EncryptedValue fhe.Handle
	InputProof     []byte
	PublicValue1   uint64
	PublicValue2   uint64
	Description    string
}

// Reader is the read side of the contract
type Reader interface {
	Address() string
	ListRecordKeys(ctx context.Context) ([]string, error)
	GetRecord(ctx context.Context, key string) (*RawRecord, error)
	GetCiphertextHandle(ctx context.Context, key string) (fhe.Handle, error)
}

// Writer submits transactions and waits for them
type Writer interface {
	CreateRecord(ctx context.Context, params CreateParams) (TxHandle, error)
	SubmitVerification(ctx context.Context, key string, clearValuesEncoded, proof []byte) (TxHandle, error)
	AwaitFinality(ctx context.Context, tx TxHandle) error
}

// Ledger is a complete backend
type Ledger interface {
	Reader
	Writer
}

// IsUserRejected reports whether err is a declined signing prompt
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) || errors.IsCategory(err, errors.CategoryUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// IsAlreadyVerified reports whether err says the record was verified before
func IsAlreadyVerified(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAlreadyVerified) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already verified")
}

// Classify wraps a backend failure in the record lifecycle taxonomy:
// user-rejected for declined prompts, not-found for missing records and
// ledger otherwise.
func Classify(err error, operation string) error {
	if err == nil {
		return nil
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.Category != errors.CategoryGeneric {
		return err
	}

	category := errors.CategoryLedger
	switch {
	case IsUserRejected(err):
		category = errors.CategoryUserRejected
	case errors.Is(err, ErrRecordNotFound):
		category = errors.CategoryNotFound
	}
	return errors.New(err).
		Component("ledger").
		Category(category).
		Context("operation", operation).
		Build()
}
