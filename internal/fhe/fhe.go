// Package fhe declares the encryption and decryption-proof services the
// record workflows depend on, plus the clear-value wire encoding.
package fhe

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
)

// ErrNotInitialized is returned by services used before Initialize
var ErrNotInitialized = errors.NewStd("fhe: not initialized")

// Handle is an opaque on-chain reference to an encrypted value, hex encoded
// with a 0x prefix.
type Handle string

// HandleFromBytes encodes raw handle bytes
func HandleFromBytes(b []byte) Handle {
	return Handle("0x" + hex.EncodeToString(b))
}

// Bytes decodes the handle
func (h Handle) Bytes() ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(string(h), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid handle: %w", err)
	}
	return b, nil
}

// Normalize lowercases the hex so handles compare by value
func (h Handle) Normalize() Handle {
	return Handle(strings.ToLower(string(h)))
}

// EncryptedInput is the result of encrypting one value for a contract:
// one handle per encrypted value plus the proof the contract checks.
type EncryptedInput struct {
	Handles    []Handle
	InputProof []byte
}

// Handle returns the first handle, the one for a single-value input
func (e *EncryptedInput) Handle() Handle {
	if e == nil || len(e.Handles) == 0 {
		return ""
	}
	return e.Handles[0]
}

// SubmitFunc forwards an encoded decryption result and its proof to the
// ledger. Provers call it once per ProveDecryption.
type SubmitFunc func(ctx context.Context, clearValuesEncoded, proof []byte) error

// Decryption is the outcome of a successful ProveDecryption
type Decryption struct {
	ClearValues map[Handle]uint64 // keyed by normalized handle
	Encoded     []byte
	Proof       []byte
}

// Value returns the clear value for h
func (d *Decryption) Value(h Handle) (uint64, bool) {
	if d == nil {
		return 0, false
	}
	v, ok := d.ClearValues[h.Normalize()]
	return v, ok
}

// Encryptor encrypts plaintext for a contract on behalf of an account
type Encryptor interface {
	Encrypt(ctx context.Context, contract, account string, value uint64) (*EncryptedInput, error)
}

// Prover obtains a public decryption of handles with a proof and hands the
// result to submit before returning it.
type Prover interface {
	ProveDecryption(ctx context.Context, handles []Handle, contract string, submit SubmitFunc) (*Decryption, error)
}

// Initializer prepares the service for use
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Service is a complete encryption backend
type Service interface {
	Encryptor
	Prover
	Initializer
}
