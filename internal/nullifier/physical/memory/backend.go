// Package memory provides an in-process nullifier backend. Consumption
// state does not survive a restart; intended for tests and ephemeral
// deployments.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zkdrop/zkdrop-node/internal/nullifier/physical"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

func init() {
	physical.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend.
func Defaults() map[string]string {
	return map[string]string{}
}

// NewFactory creates a new memory backend from a configuration map.
func NewFactory(_ context.Context, _ map[string]string) (physical.Backend, error) {
	return New(), nil
}

type pairKey struct {
	scope types.AirdropID
	hash  types.Hash
}

// pairState serializes consumption of a single (scope, hash) pair. The
// first goroutine to store the state owns the attempt; losers fail
// immediately with ErrConsumed, and the owner clears the entry again if
// its commit callback fails.
type pairState struct {
	mu       sync.Mutex
	consumed bool
}

// Backend is an in-memory implementation of physical.Backend.
type Backend struct {
	pairs  sync.Map // pairKey -> *pairState
	closed atomic.Bool
}

// New creates an empty memory backend.
func New() *Backend {
	return &Backend{}
}

// Consume implements physical.Backend. Distinct pairs use distinct states,
// so unrelated consumptions never contend.
func (b *Backend) Consume(_ context.Context, scope types.AirdropID, hash types.Hash, commit func() error) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	v, _ := b.pairs.LoadOrStore(pairKey{scope: scope, hash: hash}, &pairState{})
	st := v.(*pairState)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.consumed {
		return physical.ErrConsumed
	}
	if commit != nil {
		if err := commit(); err != nil {
			return err
		}
	}
	st.consumed = true
	return nil
}

// Consumed implements physical.Backend.
func (b *Backend) Consumed(_ context.Context, scope types.AirdropID, hash types.Hash) (bool, error) {
	if b.closed.Load() {
		return false, physical.ErrClosed
	}

	v, ok := b.pairs.Load(pairKey{scope: scope, hash: hash})
	if !ok {
		return false, nil
	}
	st := v.(*pairState)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.consumed, nil
}

// Close implements physical.Backend.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}
