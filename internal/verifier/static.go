package verifier

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
)

// Static accepts only proof/input tuples that were registered in
// advance. It backs development deployments and tests where no trusted
// setup exists.
type Static struct {
	mu    sync.RWMutex
	valid map[[32]byte]bool
}

// NewStatic creates an empty static verifier. Until tuples are allowed,
// every proof is invalid.
func NewStatic() *Static {
	return &Static{valid: make(map[[32]byte]bool)}
}

// Allow registers a proof/input tuple as valid.
func (s *Static) Allow(proof *Proof, inputs PublicInputs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid[staticKey(proof, inputs)] = true
}

// Verify accepts the tuple only if it was previously allowed.
func (s *Static) Verify(ctx context.Context, proof *Proof, inputs PublicInputs) error {
	if proof == nil {
		return fmt.Errorf("%w: missing proof", zkerrors.ErrInvalidProof)
	}
	for i, el := range proof {
		if el == nil {
			return fmt.Errorf("%w: proof element %d missing", zkerrors.ErrInvalidProof, i)
		}
	}

	s.mu.RLock()
	ok := s.valid[staticKey(proof, inputs)]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: unknown proof", zkerrors.ErrInvalidProof)
	}
	return nil
}

func staticKey(proof *Proof, inputs PublicInputs) [32]byte {
	h := sha256.New()
	for _, el := range proof {
		h.Write(el.FillBytes(make([]byte, 32)))
	}
	h.Write(inputs.Root.Bytes())
	h.Write(inputs.NullifierHash.Bytes())
	h.Write(inputs.SignalHash.Bytes())
	h.Write(inputs.ExternalNullifier.Bytes())

	var key [32]byte
	h.Sum(key[:0])
	return key
}
