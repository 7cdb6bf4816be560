// Package memory provides an in-memory airdrop store for testing and
// development.
package memory

import (
	"context"
	"sync"

	"github.com/zkdrop/zkdrop-node/internal/airdrop/physical"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

func init() {
	physical.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory store.
func Defaults() map[string]string {
	return map[string]string{}
}

// Store is an in-memory airdrop store.
type Store struct {
	mu      sync.RWMutex
	records map[types.AirdropID]*physical.Record
	nextID  types.AirdropID
	closed  bool
}

// NewFactory creates a new in-memory airdrop store.
func NewFactory(_ context.Context, _ map[string]string) (physical.Store, error) {
	return New(), nil
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records: make(map[types.AirdropID]*physical.Record),
		nextID:  1,
	}
}

// Create stores the record under the next sequential id.
func (s *Store) Create(ctx context.Context, record *physical.Record) (*physical.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, physical.ErrClosed
	}

	stored := record.Clone()
	stored.ID = s.nextID
	s.records[stored.ID] = stored
	s.nextID++

	return stored.Clone(), nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id types.AirdropID) (*physical.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, physical.ErrClosed
	}

	record, ok := s.records[id]
	if !ok {
		return nil, physical.ErrNotFound
	}
	return record.Clone(), nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, physical.ErrClosed
	}
	return int64(len(s.records)), nil
}

// Close releases the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
