// Package fhetest provides an in-memory fhe.Service for tests.
package fhetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
)

// Op names a Service method for failure injection
type Op string

const (
	OpInitialize Op = "initialize"
	OpEncrypt    Op = "encrypt"
	OpProve      Op = "prove"
)

// InputProof is the proof returned by every Encrypt
var InputProof = []byte("fhetest-input-proof")

// Service keeps plaintexts by handle. The zero value is not usable; call New.
type Service struct {
	mu       sync.Mutex
	values   map[fhe.Handle]uint64
	next     uint64
	failures map[Op][]error
	calls    map[Op]int

	// InitGate, when set, blocks Initialize until it is closed
	InitGate chan struct{}
}

var _ fhe.Service = (*Service)(nil)

// New creates an empty service
func New() *Service {
	return &Service{
		values:   make(map[fhe.Handle]uint64),
		failures: make(map[Op][]error),
		calls:    make(map[Op]int),
	}
}

// FailNext queues errors returned by the next calls of op, one per call
func (s *Service) FailNext(op Op, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

// Calls returns how many times op was invoked
func (s *Service) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Put registers a plaintext under handle, as if it had been encrypted here
func (s *Service) Put(handle fhe.Handle, value uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[handle.Normalize()] = value
}

func (s *Service) begin(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if q := s.failures[op]; len(q) > 0 {
		s.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

// Initialize honors InitGate and queued failures
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.begin(OpInitialize); err != nil {
		return err
	}
	if s.InitGate != nil {
		select {
		case <-s.InitGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Encrypt returns a fresh handle for value
func (s *Service) Encrypt(_ context.Context, _, _ string, value uint64) (*fhe.EncryptedInput, error) {
	if err := s.begin(OpEncrypt); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.next++
	h := fhe.Handle(fmt.Sprintf("0x%064x", s.next))
	s.values[h] = value
	s.mu.Unlock()

	return &fhe.EncryptedInput{Handles: []fhe.Handle{h}, InputProof: InputProof}, nil
}

// ProveDecryption looks up each handle and hands the encoded values to submit
func (s *Service) ProveDecryption(ctx context.Context, handles []fhe.Handle, _ string, submit fhe.SubmitFunc) (*fhe.Decryption, error) {
	if err := s.begin(OpProve); err != nil {
		return nil, err
	}

	values := make([]uint64, len(handles))
	s.mu.Lock()
	for i, h := range handles {
		v, ok := s.values[h.Normalize()]
		if !ok {
			s.mu.Unlock()
			return nil, errors.Newf("unknown handle %s", h).
				Component("fhe.test").
				Category(errors.CategoryService).
				Build()
		}
		values[i] = v
	}
	s.mu.Unlock()

	encoded := fhe.EncodeClearValues(values)
	proof := []byte("fhetest-decryption-proof")
	if submit != nil {
		if err := submit(ctx, encoded, proof); err != nil {
			return nil, fmt.Errorf("submit decryption: %w", err)
		}
	}

	clearValues, err := fhe.Zip(handles, values)
	if err != nil {
		return nil, err
	}
	return &fhe.Decryption{ClearValues: clearValues, Encoded: encoded, Proof: proof}, nil
}
