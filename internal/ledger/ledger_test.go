package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/zkdrop/zkdrop-node/pkg/types"
)

var (
	token    = types.BytesToAddress([]byte{0x01})
	holder   = types.BytesToAddress([]byte{0x02})
	receiver = types.BytesToAddress([]byte{0x03})
	spender  = types.BytesToAddress([]byte{0x04})
)

func TestTransferFrom(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Mint(token, holder, uint256.NewInt(1000))
	m.Approve(token, holder, spender, uint256.NewInt(600))

	if err := m.TransferFrom(ctx, token, holder, receiver, spender, uint256.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	checkBalance(t, m, holder, 600)
	checkBalance(t, m, receiver, 400)

	allowance, _ := m.Allowance(ctx, token, holder, spender)
	if allowance.Cmp(uint256.NewInt(200)) != 0 {
		t.Errorf("allowance = %s, want 200", allowance)
	}
}

func TestTransferFromInsufficientAllowance(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Mint(token, holder, uint256.NewInt(1000))
	m.Approve(token, holder, spender, uint256.NewInt(100))

	err := m.TransferFrom(ctx, token, holder, receiver, spender, uint256.NewInt(400))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("transfer = %v, want ErrInsufficientAllowance", err)
	}

	// Nothing moved.
	checkBalance(t, m, holder, 1000)
	checkBalance(t, m, receiver, 0)
}

func TestTransferFromInsufficientBalance(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Mint(token, holder, uint256.NewInt(100))
	m.Approve(token, holder, spender, uint256.NewInt(400))

	err := m.TransferFrom(ctx, token, holder, receiver, spender, uint256.NewInt(400))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("transfer = %v, want ErrInsufficientBalance", err)
	}

	checkBalance(t, m, holder, 100)
	allowance, _ := m.Allowance(ctx, token, holder, spender)
	if allowance.Cmp(uint256.NewInt(400)) != 0 {
		t.Errorf("allowance = %s, want 400 after aborted transfer", allowance)
	}
}

func TestNoApproval(t *testing.T) {
	m := NewMemory()
	m.Mint(token, holder, uint256.NewInt(1000))

	err := m.TransferFrom(context.Background(), token, holder, receiver, spender, uint256.NewInt(1))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("transfer without approval = %v, want ErrInsufficientAllowance", err)
	}
}

func TestTokensIndependent(t *testing.T) {
	m := NewMemory()
	other := types.BytesToAddress([]byte{0x09})

	m.Mint(token, holder, uint256.NewInt(100))
	m.Mint(other, holder, uint256.NewInt(7))

	checkBalance(t, m, holder, 100)

	bal, _ := m.BalanceOf(context.Background(), other, holder)
	if bal.Cmp(uint256.NewInt(7)) != 0 {
		t.Errorf("other token balance = %s, want 7", bal)
	}
}

func checkBalance(t *testing.T, m *Memory, account types.Address, want uint64) {
	t.Helper()
	bal, err := m.BalanceOf(context.Background(), token, account)
	if err != nil {
		t.Fatalf("balance of %s: %v", account, err)
	}
	if bal.Cmp(uint256.NewInt(want)) != 0 {
		t.Errorf("balance of %s = %s, want %d", account, bal, want)
	}
}
