// Package devnet is a local encryption gateway for development. It seals
// values with XChaCha20-Poly1305 under a key derived from a configured seed
// and authenticates proofs with keyed BLAKE2b. It gives no homomorphic or
// threshold guarantees.
package devnet

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
)

// MinSeedLength is the shortest accepted seed in bytes
const MinSeedLength = 16

const (
	domainInput   = "genenft/input-proof/v1"
	domainDecrypt = "genenft/decryption-proof/v1"
	domainMACKey  = "genenft/mac-key/v1"
)

// Gateway implements fhe.Service and the proof checks the devnet ledger runs
type Gateway struct {
	encKey      [32]byte
	macKey      [32]byte
	initialized atomic.Bool
}

var _ fhe.Service = (*Gateway)(nil)

// NewGateway derives the gateway keys from a hex seed
func NewGateway(seedHex string) (*Gateway, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, errors.New(fmt.Errorf("devnet fhe seed is not hex: %w", err)).
			Component("fhe.devnet").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if len(seed) < MinSeedLength {
		return nil, errors.Newf("devnet fhe seed must be at least %d bytes, got %d", MinSeedLength, len(seed)).
			Component("fhe.devnet").
			Category(errors.CategoryConfiguration).
			Build()
	}

	g := &Gateway{encKey: blake2b.Sum256(seed)}
	g.macKey = blake2b.Sum256(append(g.encKey[:], domainMACKey...))
	return g, nil
}

// Initialize checks that the gateway holds usable keys
func (g *Gateway) Initialize(_ context.Context) error {
	if _, err := chacha20poly1305.NewX(g.encKey[:]); err != nil {
		return errors.New(err).Component("fhe.devnet").Category(errors.CategoryService).Build()
	}
	g.initialized.Store(true)
	return nil
}

// Initialized reports whether Initialize has succeeded
func (g *Gateway) Initialized() bool {
	return g.initialized.Load()
}

// Encrypt seals value for contract. The handle is the nonce-prefixed
// ciphertext; the input proof binds it to contract and account.
func (g *Gateway) Encrypt(ctx context.Context, contract, account string, value uint64) (*fhe.EncryptedInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(g.encKey[:])
	if err != nil {
		return nil, g.serviceError(err, "encrypt")
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+8+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, g.serviceError(err, "encrypt")
	}

	var plain [8]byte
	binary.BigEndian.PutUint64(plain[:], value)
	ciphertext := aead.Seal(nonce, nonce, plain[:], additionalData(contract))

	return &fhe.EncryptedInput{
		Handles:    []fhe.Handle{fhe.HandleFromBytes(ciphertext)},
		InputProof: g.mac(domainInput, normalizeAddress(contract), normalizeAddress(account), string(ciphertext)),
	}, nil
}

// VerifyInputProof checks a proof produced by Encrypt
func (g *Gateway) VerifyInputProof(contract, account string, handle fhe.Handle, proof []byte) error {
	ciphertext, err := handle.Bytes()
	if err != nil {
		return err
	}
	expected := g.mac(domainInput, normalizeAddress(contract), normalizeAddress(account), string(ciphertext))
	if subtle.ConstantTimeCompare(expected, proof) != 1 {
		return fmt.Errorf("input proof does not match handle")
	}
	return nil
}

// ProveDecryption opens each handle, proves the encoded result and passes
// it to submit. A submit failure is returned wrapped and unclassified so the
// caller can inspect the ledger's reason.
func (g *Gateway) ProveDecryption(ctx context.Context, handles []fhe.Handle, contract string, submit fhe.SubmitFunc) (*fhe.Decryption, error) {
	if len(handles) == 0 {
		return nil, errors.ValidationError("no handles to decrypt")
	}

	aead, err := chacha20poly1305.NewX(g.encKey[:])
	if err != nil {
		return nil, g.serviceError(err, "decrypt")
	}

	values := make([]uint64, len(handles))
	for i, h := range handles {
		ciphertext, err := h.Bytes()
		if err != nil {
			return nil, g.serviceError(err, "decrypt")
		}
		if len(ciphertext) < aead.NonceSize() {
			return nil, g.serviceError(fmt.Errorf("handle %d too short", i), "decrypt")
		}
		nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
		plain, err := aead.Open(nil, nonce, sealed, additionalData(contract))
		if err != nil || len(plain) != 8 {
			return nil, g.serviceError(fmt.Errorf("handle %d does not decrypt for this contract", i), "decrypt")
		}
		values[i] = binary.BigEndian.Uint64(plain)
	}

	encoded := fhe.EncodeClearValues(values)
	proof := g.decryptionMAC(contract, handles, encoded)

	if submit != nil {
		if err := submit(ctx, encoded, proof); err != nil {
			return nil, fmt.Errorf("submit decryption: %w", err)
		}
	}

	clearValues, err := fhe.Zip(handles, values)
	if err != nil {
		return nil, g.serviceError(err, "decrypt")
	}
	return &fhe.Decryption{ClearValues: clearValues, Encoded: encoded, Proof: proof}, nil
}

// VerifyDecryptionProof checks a proof produced by ProveDecryption
func (g *Gateway) VerifyDecryptionProof(contract string, handles []fhe.Handle, encoded, proof []byte) error {
	if subtle.ConstantTimeCompare(g.decryptionMAC(contract, handles, encoded), proof) != 1 {
		return fmt.Errorf("decryption proof does not match")
	}
	return nil
}

func (g *Gateway) decryptionMAC(contract string, handles []fhe.Handle, encoded []byte) []byte {
	parts := make([]string, 0, len(handles)+2)
	parts = append(parts, normalizeAddress(contract))
	for _, h := range handles {
		parts = append(parts, string(h.Normalize()))
	}
	parts = append(parts, string(encoded))
	return g.mac(domainDecrypt, parts...)
}

// mac is keyed BLAKE2b-256 over length-prefixed parts
func (g *Gateway) mac(domain string, parts ...string) []byte {
	h, err := blake2b.New256(g.macKey[:])
	if err != nil {
		// Only reachable with a key longer than 64 bytes
		panic(err)
	}
	writePart(h, domain)
	for _, p := range parts {
		writePart(h, p)
	}
	return h.Sum(nil)
}

func writePart(h hash.Hash, part string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(part)))
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(part))
}

func (g *Gateway) serviceError(err error, operation string) error {
	return errors.New(err).
		Component("fhe.devnet").
		Category(errors.CategoryService).
		Context("operation", operation).
		Build()
}

func additionalData(contract string) []byte {
	return []byte(normalizeAddress(contract))
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
