package claims

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zkdrop/zkdrop-node/internal/airdrop"
	airdropmem "github.com/zkdrop/zkdrop-node/internal/airdrop/physical/memory"
	"github.com/zkdrop/zkdrop-node/internal/events"
	"github.com/zkdrop/zkdrop-node/internal/ledger"
	"github.com/zkdrop/zkdrop-node/internal/membership"
	"github.com/zkdrop/zkdrop-node/internal/nullifier"
	nullifiermem "github.com/zkdrop/zkdrop-node/internal/nullifier/physical/memory"
	"github.com/zkdrop/zkdrop-node/internal/observability"
	"github.com/zkdrop/zkdrop-node/internal/rootledger"
	"github.com/zkdrop/zkdrop-node/internal/verifier"
	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

var (
	token    = types.BytesToAddress([]byte{0x01})
	manager  = types.BytesToAddress([]byte{0x02})
	holder   = types.BytesToAddress([]byte{0x03})
	receiver = types.BytesToAddress([]byte{0x04})
	spender  = types.BytesToAddress([]byte{0x05})
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine   *Engine
	airdrops *airdrop.Registry
	groups   *membership.Service
	tokens   *ledger.Memory
	static   *verifier.Static
	bus      *events.Bus
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	roots := rootledger.New(
		rootledger.WithClock(clock),
		rootledger.WithValidityWindow(time.Hour),
	)
	groups := membership.NewService(roots, nil, nil)
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	airdrops := airdrop.New(airdropmem.New(), bus, nil, nil)
	nullifiers := nullifier.New(nullifiermem.New(), nil)
	tokens := ledger.NewMemory()
	static := verifier.NewStatic()

	engine, err := NewEngine(Config{
		Airdrops:   airdrops,
		Roots:      roots,
		Verifier:   static,
		Nullifiers: nullifiers,
		Tokens:     tokens,
		Bus:        bus,
		Spender:    spender,
	})
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}

	return &fixture{
		engine:   engine,
		airdrops: airdrops,
		groups:   groups,
		tokens:   tokens,
		static:   static,
		bus:      bus,
		clock:    clock,
	}
}

// setup creates a funded airdrop over a one-member group and returns a
// claim request whose proof the static verifier accepts.
func (f *fixture) setup(t *testing.T, amount uint64) Request {
	t.Helper()
	ctx := context.Background()

	if _, err := f.groups.CreateGroup(ctx, 1, 4); err != nil {
		t.Fatalf("create group: %v", err)
	}
	root, err := f.groups.AddMember(ctx, 1, types.BytesToHash([]byte("member")))
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	record, err := f.airdrops.Create(ctx, airdrop.CreateParams{
		GroupID: 1,
		Token:   token,
		Manager: manager,
		Holder:  holder,
		Amount:  uint256.NewInt(amount),
	})
	if err != nil {
		t.Fatalf("create airdrop: %v", err)
	}

	f.tokens.Mint(token, holder, uint256.NewInt(10*amount))
	f.tokens.Approve(token, holder, spender, uint256.NewInt(10*amount))

	req := Request{
		AirdropID:     record.ID,
		Root:          root,
		NullifierHash: types.BytesToHash([]byte("nullifier-1")),
		Receiver:      receiver,
		Proof:         proofOf(1),
	}
	f.allow(req)
	return req
}

func (f *fixture) allow(req Request) {
	f.static.Allow(req.Proof, verifier.PublicInputs{
		Root:              req.Root,
		NullifierHash:     req.NullifierHash,
		SignalHash:        verifier.SignalHash(req.Receiver),
		ExternalNullifier: verifier.ExternalNullifier(req.AirdropID),
	})
}

func proofOf(seed int64) *verifier.Proof {
	var p verifier.Proof
	for i := range p {
		p[i] = big.NewInt(seed*100 + int64(i))
	}
	return &p
}

func balance(t *testing.T, tokens *ledger.Memory, account types.Address) *uint256.Int {
	t.Helper()
	bal, err := tokens.BalanceOf(context.Background(), token, account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func TestClaimSettles(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)

	settled, cancel := f.bus.Subscribe(events.TypeClaimSettled)
	defer cancel()

	receipt, err := f.engine.Claim(context.Background(), req)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if receipt.Amount.Cmp(uint256.NewInt(500)) != 0 {
		t.Errorf("receipt amount = %s, want 500", receipt.Amount)
	}
	if receipt.Token != token || receipt.Receiver != receiver {
		t.Errorf("receipt = %+v", receipt)
	}

	if got := balance(t, f.tokens, receiver); got.Cmp(uint256.NewInt(500)) != 0 {
		t.Errorf("receiver balance = %s, want 500", got)
	}
	if got := balance(t, f.tokens, holder); got.Cmp(uint256.NewInt(4500)) != 0 {
		t.Errorf("holder balance = %s, want 4500", got)
	}

	select {
	case ev := <-settled:
		payload := ev.Data.(events.ClaimSettled)
		if payload.AirdropID != req.AirdropID || payload.NullifierHash != req.NullifierHash {
			t.Errorf("event payload = %+v", payload)
		}
	default:
		t.Error("no claim-settled event")
	}
}

func TestSecondClaimRejected(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)
	ctx := context.Background()

	if _, err := f.engine.Claim(ctx, req); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	_, err := f.engine.Claim(ctx, req)
	if !errors.Is(err, zkerrors.ErrInvalidNullifier) {
		t.Fatalf("second claim = %v, want ErrInvalidNullifier", err)
	}

	// Exactly one payout.
	if got := balance(t, f.tokens, receiver); got.Cmp(uint256.NewInt(500)) != 0 {
		t.Errorf("receiver balance = %s, want 500", got)
	}
}

func TestUnknownAirdropCheckedFirst(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)
	req.AirdropID = 99

	_, err := f.engine.Claim(context.Background(), req)
	if !errors.Is(err, zkerrors.ErrNotFound) {
		t.Fatalf("claim = %v, want ErrNotFound", err)
	}
}

func TestUnknownRootCheckedBeforeProof(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)
	req.Root = types.BytesToHash([]byte("fabricated"))
	// Proof for the fabricated root is registered, so a verifier-first
	// engine would accept it.
	f.allow(req)

	_, err := f.engine.Claim(context.Background(), req)
	if !errors.Is(err, zkerrors.ErrInvalidRoot) {
		t.Fatalf("claim = %v, want ErrInvalidRoot", err)
	}
}

func TestSupersededRootInsideWindow(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)
	ctx := context.Background()

	// New member supersedes the proof's root.
	if _, err := f.groups.AddMember(ctx, 1, types.BytesToHash([]byte("member-2"))); err != nil {
		t.Fatalf("add member: %v", err)
	}

	f.clock.Advance(30 * time.Minute)
	if _, err := f.engine.Claim(ctx, req); err != nil {
		t.Fatalf("claim against superseded root inside window: %v", err)
	}
}

func TestSupersededRootPastWindow(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)
	ctx := context.Background()

	if _, err := f.groups.AddMember(ctx, 1, types.BytesToHash([]byte("member-2"))); err != nil {
		t.Fatalf("add member: %v", err)
	}

	f.clock.Advance(2 * time.Hour)
	_, err := f.engine.Claim(ctx, req)
	if !errors.Is(err, zkerrors.ErrInvalidRoot) {
		t.Fatalf("claim = %v, want ErrInvalidRoot", err)
	}
}

func TestInvalidProofDoesNotBurnNullifier(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)
	ctx := context.Background()

	forged := req
	forged.Proof = proofOf(9)

	_, err := f.engine.Claim(ctx, forged)
	if !errors.Is(err, zkerrors.ErrInvalidProof) {
		t.Fatalf("forged claim = %v, want ErrInvalidProof", err)
	}

	// The genuine proof with the same nullifier still settles.
	if _, err := f.engine.Claim(ctx, req); err != nil {
		t.Fatalf("genuine claim after forgery: %v", err)
	}
}

func TestWrongReceiverRejected(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)

	hijacked := req
	hijacked.Receiver = types.BytesToAddress([]byte{0x66})

	_, err := f.engine.Claim(context.Background(), hijacked)
	if !errors.Is(err, zkerrors.ErrInvalidProof) {
		t.Fatalf("hijacked claim = %v, want ErrInvalidProof", err)
	}
}

func TestTransferFailureLeavesNullifierUnconsumed(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)
	ctx := context.Background()

	// Revoke the engine's allowance so settlement fails.
	f.tokens.Approve(token, holder, spender, uint256.NewInt(0))

	_, err := f.engine.Claim(ctx, req)
	if !errors.Is(err, ledger.ErrInsufficientAllowance) {
		t.Fatalf("claim = %v, want ErrInsufficientAllowance", err)
	}
	if got := balance(t, f.tokens, receiver); !got.IsZero() {
		t.Errorf("receiver balance = %s, want 0", got)
	}

	// Restore the allowance; the same claim settles.
	f.tokens.Approve(token, holder, spender, uint256.NewInt(500))
	if _, err := f.engine.Claim(ctx, req); err != nil {
		t.Fatalf("retry after approval: %v", err)
	}
}

func TestClaimsPerAirdropIndependent(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)
	ctx := context.Background()

	// Second airdrop over the same group.
	record, err := f.airdrops.Create(ctx, airdrop.CreateParams{
		GroupID: 1,
		Token:   token,
		Manager: manager,
		Holder:  holder,
		Amount:  uint256.NewInt(200),
	})
	if err != nil {
		t.Fatalf("create second airdrop: %v", err)
	}

	if _, err := f.engine.Claim(ctx, req); err != nil {
		t.Fatalf("first airdrop claim: %v", err)
	}

	// Same member, same nullifier hash, different airdrop.
	second := req
	second.AirdropID = record.ID
	f.allow(second)

	if _, err := f.engine.Claim(ctx, second); err != nil {
		t.Fatalf("second airdrop claim: %v", err)
	}
	if got := balance(t, f.tokens, receiver); got.Cmp(uint256.NewInt(700)) != 0 {
		t.Errorf("receiver balance = %s, want 700", got)
	}
}

func TestConcurrentClaimsOneWinner(t *testing.T) {
	f := newFixture(t)
	req := f.setup(t, 500)

	const attempts = 16
	var (
		wins atomic.Int32
		wg   sync.WaitGroup
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.engine.Claim(context.Background(), req); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("settled claims = %d, want exactly 1", got)
	}
	if got := balance(t, f.tokens, receiver); got.Cmp(uint256.NewInt(500)) != 0 {
		t.Errorf("receiver balance = %s, want 500", got)
	}
}

func TestFailedClaimRecordsErrorMetrics(t *testing.T) {
	metrics := observability.NewMetrics()

	engine, err := NewEngine(Config{
		Airdrops:   airdrop.New(airdropmem.New(), nil, nil, nil),
		Roots:      rootledger.New(),
		Verifier:   verifier.NewStatic(),
		Nullifiers: nullifier.New(nullifiermem.New(), nil),
		Tokens:     ledger.NewMemory(),
		Spender:    spender,
		Metrics:    metrics,
	})
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}

	_, err = engine.Claim(context.Background(), Request{AirdropID: 42})
	if !errors.Is(err, zkerrors.ErrNotFound) {
		t.Fatalf("claim = %v, want ErrNotFound", err)
	}

	if got := testutil.ToFloat64(metrics.ClaimsTotal.WithLabelValues("not_found")); got != 1 {
		t.Errorf("claims_total{not_found} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.OperationTotal.WithLabelValues("claims.claim", "error")); got != 1 {
		t.Errorf("operation_total{claims.claim,error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.OperationTotal.WithLabelValues("claims.claim", "ok")); got != 0 {
		t.Errorf("operation_total{claims.claim,ok} = %v, want 0", got)
	}
}
