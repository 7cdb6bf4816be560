// Package ledger abstracts the token balance and allowance accounting
// that claim settlement draws on. The in-memory implementation backs
// tests and single-node deployments.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/zkdrop/zkdrop-node/pkg/types"
)

var (
	// ErrInsufficientBalance indicates the holder's balance cannot cover
	// the transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance indicates the spender's allowance from the
	// holder cannot cover the transfer.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// TokenLedger provides balance and allowance accounting per token.
// TransferFrom moves amount from holder to receiver using the spender's
// allowance, or fails without any state change.
type TokenLedger interface {
	BalanceOf(ctx context.Context, token, account types.Address) (*uint256.Int, error)
	Allowance(ctx context.Context, token, holder, spender types.Address) (*uint256.Int, error)
	TransferFrom(ctx context.Context, token, holder, receiver, spender types.Address, amount *uint256.Int) error
}

type balanceKey struct {
	token   types.Address
	account types.Address
}

type allowanceKey struct {
	token   types.Address
	holder  types.Address
	spender types.Address
}

// Memory is an in-memory TokenLedger.
type Memory struct {
	mu         sync.Mutex
	balances   map[balanceKey]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		balances:   make(map[balanceKey]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

// Mint credits amount to the account's balance.
func (m *Memory) Mint(token, account types.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{token, account}
	bal, ok := m.balances[key]
	if !ok {
		bal = new(uint256.Int)
		m.balances[key] = bal
	}
	bal.Add(bal, amount)
}

// Approve sets the spender's allowance from the holder to amount.
func (m *Memory) Approve(token, holder, spender types.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allowances[allowanceKey{token, holder, spender}] = new(uint256.Int).Set(amount)
}

// BalanceOf returns the account's balance, zero if never credited.
func (m *Memory) BalanceOf(ctx context.Context, token, account types.Address) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bal, ok := m.balances[balanceKey{token, account}]; ok {
		return new(uint256.Int).Set(bal), nil
	}
	return new(uint256.Int), nil
}

// Allowance returns the spender's remaining allowance from the holder.
func (m *Memory) Allowance(ctx context.Context, token, holder, spender types.Address) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.allowances[allowanceKey{token, holder, spender}]; ok {
		return new(uint256.Int).Set(a), nil
	}
	return new(uint256.Int), nil
}

// TransferFrom moves amount from holder to receiver, decrementing the
// spender's allowance. On any failure no state changes.
func (m *Memory) TransferFrom(ctx context.Context, token, holder, receiver, spender types.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowance, ok := m.allowances[allowanceKey{token, holder, spender}]
	if !ok || allowance.Lt(amount) {
		return fmt.Errorf("%w: token %s holder %s spender %s", ErrInsufficientAllowance, token, holder, spender)
	}

	balance, ok := m.balances[balanceKey{token, holder}]
	if !ok || balance.Lt(amount) {
		return fmt.Errorf("%w: token %s holder %s", ErrInsufficientBalance, token, holder)
	}

	allowance.Sub(allowance, amount)
	balance.Sub(balance, amount)

	key := balanceKey{token, receiver}
	recv, ok := m.balances[key]
	if !ok {
		recv = new(uint256.Int)
		m.balances[key] = recv
	}
	recv.Add(recv, amount)

	return nil
}
