// Package claims implements claim authorization and settlement. A claim
// is checked in a fixed order: the airdrop must exist, the membership
// root must be acceptable, the proof must verify, and the nullifier must
// be unconsumed. Consuming the nullifier and transferring the tokens
// form one indivisible unit.
package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/zkdrop/zkdrop-node/internal/airdrop"
	"github.com/zkdrop/zkdrop-node/internal/events"
	"github.com/zkdrop/zkdrop-node/internal/ledger"
	"github.com/zkdrop/zkdrop-node/internal/nullifier"
	"github.com/zkdrop/zkdrop-node/internal/observability"
	"github.com/zkdrop/zkdrop-node/internal/rootledger"
	"github.com/zkdrop/zkdrop-node/internal/verifier"
	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

// Request is a claim submission.
type Request struct {
	AirdropID     types.AirdropID
	Root          types.Hash
	NullifierHash types.Hash
	Receiver      types.Address
	Proof         *verifier.Proof
}

// Receipt describes a settled claim.
type Receipt struct {
	AirdropID     types.AirdropID
	NullifierHash types.Hash
	Receiver      types.Address
	Token         types.Address
	Amount        *uint256.Int
}

// Engine authorizes and settles claims.
type Engine struct {
	airdrops   *airdrop.Registry
	roots      *rootledger.Ledger
	verifier   verifier.Verifier
	nullifiers *nullifier.Registry
	tokens     ledger.TokenLedger
	bus        *events.Bus
	spender    types.Address
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Config assembles an Engine's dependencies. Spender is the address the
// engine transfers under; airdrop holders grant it their allowance.
type Config struct {
	Airdrops   *airdrop.Registry
	Roots      *rootledger.Ledger
	Verifier   verifier.Verifier
	Nullifiers *nullifier.Registry
	Tokens     ledger.TokenLedger
	Bus        *events.Bus
	Spender    types.Address
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// NewEngine creates a claim engine.
func NewEngine(cfg Config) (*Engine, error) {
	switch {
	case cfg.Airdrops == nil:
		return nil, errors.New("claims: airdrop registry required")
	case cfg.Roots == nil:
		return nil, errors.New("claims: root ledger required")
	case cfg.Verifier == nil:
		return nil, errors.New("claims: verifier required")
	case cfg.Nullifiers == nil:
		return nil, errors.New("claims: nullifier registry required")
	case cfg.Tokens == nil:
		return nil, errors.New("claims: token ledger required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		airdrops:   cfg.Airdrops,
		roots:      cfg.Roots,
		verifier:   cfg.Verifier,
		nullifiers: cfg.Nullifiers,
		tokens:     cfg.Tokens,
		bus:        cfg.Bus,
		spender:    cfg.Spender,
		metrics:    cfg.Metrics,
		logger:     logger,
	}, nil
}

// Claim authorizes and settles a claim. Checks run in a fixed order so
// callers can distinguish rejection causes, and so an invalid proof
// never consumes a nullifier. On success the nullifier is consumed, the
// tokens are transferred, and a claim-settled event is published.
func (e *Engine) Claim(ctx context.Context, req Request) (receipt *Receipt, err error) {
	op, ctx := observability.StartOperation(ctx, e.metrics, "claims.claim")
	defer func() { op.End(err) }()
	defer func() { e.countResult(err) }()

	record, err := e.airdrops.Get(ctx, req.AirdropID)
	if err != nil {
		return nil, err
	}

	if !e.roots.IsAcceptable(record.GroupID, req.Root, e.roots.Now()) {
		err = fmt.Errorf("%w: group %s root %s", zkerrors.ErrInvalidRoot, record.GroupID, req.Root)
		return nil, err
	}

	inputs := verifier.PublicInputs{
		Root:              req.Root,
		NullifierHash:     req.NullifierHash,
		SignalHash:        verifier.SignalHash(req.Receiver),
		ExternalNullifier: verifier.ExternalNullifier(req.AirdropID),
	}
	if err = e.verifier.Verify(ctx, req.Proof, inputs); err != nil {
		return nil, err
	}

	amount := new(uint256.Int).Set(record.Amount)
	err = e.nullifiers.Consume(ctx, req.AirdropID, req.NullifierHash, func() error {
		return e.tokens.TransferFrom(ctx, record.Token, record.Holder, req.Receiver, e.spender, amount)
	})
	if err != nil {
		return nil, err
	}

	receipt = &Receipt{
		AirdropID:     req.AirdropID,
		NullifierHash: req.NullifierHash,
		Receiver:      req.Receiver,
		Token:         record.Token,
		Amount:        amount,
	}

	e.logger.InfoContext(ctx, "claim settled",
		"airdrop", req.AirdropID,
		"receiver", req.Receiver,
		"token", record.Token,
		"amount", amount,
	)

	if e.bus != nil {
		e.bus.Publish(events.TypeClaimSettled, events.ClaimSettled{
			AirdropID:     receipt.AirdropID,
			NullifierHash: receipt.NullifierHash,
			Receiver:      receipt.Receiver,
			Token:         receipt.Token,
			Amount:        new(uint256.Int).Set(amount),
		})
	}

	return receipt, nil
}

func (e *Engine) countResult(err error) {
	if e.metrics == nil {
		return
	}
	result := "settled"
	switch {
	case err == nil:
	case errors.Is(err, zkerrors.ErrNotFound):
		result = "not_found"
	case errors.Is(err, zkerrors.ErrInvalidRoot):
		result = "invalid_root"
	case errors.Is(err, zkerrors.ErrInvalidProof):
		result = "invalid_proof"
	case errors.Is(err, zkerrors.ErrInvalidNullifier):
		result = "invalid_nullifier"
	case errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrInsufficientAllowance):
		result = "transfer_failed"
	default:
		result = "error"
	}
	e.metrics.ClaimsTotal.WithLabelValues(result).Inc()
}
