// Package nullifier tracks which nullifier hashes have been consumed,
// scoped per airdrop, to block replay of a membership proof. A pair
// transitions unconsumed → consumed exactly once; there is no way back.
package nullifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zkdrop/zkdrop-node/internal/nullifier/physical"
	"github.com/zkdrop/zkdrop-node/internal/observability"
	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

// Registry wraps a physical backend with observability and maps backend
// errors onto the claim-rejection taxonomy.
type Registry struct {
	backend physical.Backend
	metrics *observability.Metrics
}

// New creates a Registry over the given backend.
func New(backend physical.Backend, metrics *observability.Metrics) *Registry {
	return &Registry{backend: backend, metrics: metrics}
}

// Consume atomically marks (scope, hash) consumed and runs commit inside
// the same indivisible unit. Exactly one concurrent caller per pair can
// succeed; the rest fail with ErrInvalidNullifier. A commit error aborts
// the consumption entirely.
func (r *Registry) Consume(ctx context.Context, scope types.AirdropID, hash types.Hash, commit func() error) (err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "nullifier.consume")
	defer func() { op.End(err) }()

	err = r.backend.Consume(ctx, scope, hash, commit)
	if errors.Is(err, physical.ErrConsumed) {
		err = fmt.Errorf("%w: airdrop %s", zkerrors.ErrInvalidNullifier, scope)
		return err
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "nullifier consumed", "airdrop", scope, "nullifier", hash)
	return nil
}

// Consumed reports whether the pair has been consumed.
func (r *Registry) Consumed(ctx context.Context, scope types.AirdropID, hash types.Hash) (bool, error) {
	return r.backend.Consumed(ctx, scope, hash)
}

// Close releases the underlying backend.
func (r *Registry) Close() error {
	return r.backend.Close()
}
