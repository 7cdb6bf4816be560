// Package physical provides the physical storage backend interface for the
// nullifier registry.
package physical

import (
	"context"
	"errors"

	"github.com/zkdrop/zkdrop-node/pkg/types"
)

var (
	// ErrConsumed indicates the (scope, nullifier) pair has already been
	// consumed.
	ErrConsumed = errors.New("nullifier consumed")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("backend closed")
)

// Backend is the physical storage interface for nullifier bookkeeping.
// All implementations must be thread-safe.
//
// Consume is an atomic check-and-set: for a given (scope, hash) pair,
// exactly one call across all concurrent callers may succeed; every other
// call fails with ErrConsumed. The commit callback runs inside the same
// indivisible unit: if it returns an error, the consumption is not
// recorded and the pair remains available. Attempts on distinct pairs
// never block each other.
type Backend interface {
	Consume(ctx context.Context, scope types.AirdropID, hash types.Hash, commit func() error) error
	Consumed(ctx context.Context, scope types.AirdropID, hash types.Hash) (bool, error)
	Close() error
}
