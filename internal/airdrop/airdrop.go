// Package airdrop manages the registry of airdrop records. Records are
// immutable once created and identified by sequential ids starting at 1.
package airdrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/zkdrop/zkdrop-node/internal/airdrop/physical"
	"github.com/zkdrop/zkdrop-node/internal/events"
	"github.com/zkdrop/zkdrop-node/internal/observability"
	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

// Record is an immutable airdrop definition. Amount is the fixed payout
// every successful claim receives; the registry does not track a
// remaining pool. Insufficient holder balance or allowance surfaces at
// claim time, not at creation.
type Record = physical.Record

// Registry validates and stores airdrop records.
type Registry struct {
	store   physical.Store
	bus     *events.Bus
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Registry over the given store. The bus may be nil, in
// which case no events are published.
func New(store physical.Store, bus *events.Bus, metrics *observability.Metrics, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, bus: bus, metrics: metrics, logger: logger}
}

// CreateParams are the caller-supplied fields of a new airdrop.
type CreateParams struct {
	GroupID types.GroupID
	Token   types.Address
	Manager types.Address
	Holder  types.Address
	Amount  *uint256.Int
}

// Create validates the parameters, assigns the next id, and stores the
// record. The holder's balance and allowance are not checked here.
func (r *Registry) Create(ctx context.Context, params CreateParams) (record *Record, err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "airdrop.create")
	defer func() { op.End(err) }()

	if err = validate(params); err != nil {
		return nil, err
	}

	record, err = r.store.Create(ctx, &physical.Record{
		GroupID: params.GroupID,
		Token:   params.Token,
		Manager: params.Manager,
		Holder:  params.Holder,
		Amount:  params.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("create airdrop: %w", err)
	}

	r.logger.InfoContext(ctx, "airdrop created",
		"airdrop", record.ID,
		"group", record.GroupID,
		"token", record.Token,
		"amount", record.Amount,
	)

	if r.bus != nil {
		r.bus.Publish(events.TypeAirdropCreated, events.AirdropCreated{
			AirdropID: record.ID,
			GroupID:   record.GroupID,
			Token:     record.Token,
			Manager:   record.Manager,
			Holder:    record.Holder,
			Amount:    new(uint256.Int).Set(record.Amount),
		})
	}

	return record, nil
}

// Get retrieves a record by id. Unknown ids yield ErrNotFound.
func (r *Registry) Get(ctx context.Context, id types.AirdropID) (*Record, error) {
	record, err := r.store.Get(ctx, id)
	if errors.Is(err, physical.ErrNotFound) {
		return nil, fmt.Errorf("%w: airdrop %s", zkerrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get airdrop: %w", err)
	}
	return record, nil
}

// Count returns the number of stored airdrops.
func (r *Registry) Count(ctx context.Context) (int64, error) {
	return r.store.Count(ctx)
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}

func validate(params CreateParams) error {
	if params.Amount == nil || params.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", zkerrors.ErrInvalidInput)
	}
	if params.Token.IsZero() {
		return fmt.Errorf("%w: token address required", zkerrors.ErrInvalidInput)
	}
	if params.Holder.IsZero() {
		return fmt.Errorf("%w: holder address required", zkerrors.ErrInvalidInput)
	}
	if params.Manager.IsZero() {
		return fmt.Errorf("%w: manager address required", zkerrors.ErrInvalidInput)
	}
	if params.GroupID == 0 {
		return fmt.Errorf("%w: group id required", zkerrors.ErrInvalidInput)
	}
	return nil
}
