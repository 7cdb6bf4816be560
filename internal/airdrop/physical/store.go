// Package physical provides the physical storage interface for airdrop
// records.
package physical

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/zkdrop/zkdrop-node/pkg/types"
)

var (
	// ErrNotFound indicates the requested airdrop record was not found.
	ErrNotFound = errors.New("airdrop record not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")
)

// Record is a stored airdrop. Records are immutable once created; there is
// no update or delete path. Amount is the fixed payout per claim, not a
// pool that decrements.
type Record struct {
	ID      types.AirdropID
	GroupID types.GroupID
	Token   types.Address
	Manager types.Address
	Holder  types.Address
	Amount  *uint256.Int
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.Amount != nil {
		c.Amount = new(uint256.Int).Set(r.Amount)
	}
	return &c
}

// Store is the physical storage interface for airdrop records.
// All implementations must be thread-safe. Create assigns the next
// sequential id, starting at 1, and returns the stored record.
type Store interface {
	Create(ctx context.Context, record *Record) (*Record, error)
	Get(ctx context.Context, id types.AirdropID) (*Record, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}
