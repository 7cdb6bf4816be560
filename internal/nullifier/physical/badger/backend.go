// Package badger provides a BadgerDB-backed nullifier backend. Consumed
// pairs are durably recorded so replay protection survives restarts.
package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/zkdrop/zkdrop-node/internal/nullifier/physical"
	"github.com/zkdrop/zkdrop-node/internal/storage"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

const prefixNullifier = "n/"

const (
	KeyPath       = "path"
	KeySyncWrites = "sync_writes"
	KeyInMemory   = "in_memory"
)

func init() {
	physical.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:       "~/.zkdrop/nullifiers",
		KeySyncWrites: "true",
		KeyInMemory:   "false",
	}
}

// NewFactory creates a new BadgerDB backend from a configuration map.
func NewFactory(_ context.Context, config map[string]string) (physical.Backend, error) {
	inMemory, err := storage.GetBool(config, KeyInMemory, false)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("badger", KeyInMemory, config[KeyInMemory], err.Error())
	}

	if inMemory {
		opts := badger.DefaultOptions("").
			WithInMemory(true).
			WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			return nil, storage.NewConfigErrorWithCause("badger", KeyInMemory, "failed to open in-memory database", err)
		}
		slog.Info("badger nullifier store initialized (in-memory)")
		return NewWithDB(db), nil
	}

	path := storage.GetString(config, KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("badger", KeyPath, "cannot be empty")
	}
	path = storage.ExpandPath(path)

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to create directory", err)
	}

	// Consumption markers are the replay guard; losing one re-opens a
	// claim, so writes default to synced.
	syncWrites, err := storage.GetBool(config, KeySyncWrites, true)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("badger", KeySyncWrites, config[KeySyncWrites], err.Error())
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = syncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to open database", err)
	}

	slog.Info("badger nullifier store initialized", "path", path, "sync_writes", syncWrites)
	return NewWithDB(db), nil
}

// Backend is a BadgerDB implementation of physical.Backend.
//
// Durability comes from badger; the exactly-one-winner guarantee comes
// from a per-pair in-process lock, so the commit callback of a losing
// concurrent attempt never runs. The consumption marker is written and
// synced before the callback executes, and deleted again if the callback
// fails, keeping marker and callback a single unit from any observer's
// point of view.
type Backend struct {
	db     *badger.DB
	locks  sync.Map // string key -> *sync.Mutex
	closed atomic.Bool
}

// NewWithDB creates a new backend with an existing BadgerDB instance.
func NewWithDB(db *badger.DB) *Backend {
	return &Backend{db: db}
}

func pairKey(scope types.AirdropID, hash types.Hash) []byte {
	key := make([]byte, 0, len(prefixNullifier)+8+types.HashLength)
	key = append(key, prefixNullifier...)
	key = binary.BigEndian.AppendUint64(key, uint64(scope))
	key = append(key, hash[:]...)
	return key
}

// Consume implements physical.Backend.
func (b *Backend) Consume(_ context.Context, scope types.AirdropID, hash types.Hash, commit func() error) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	key := pairKey(scope, hash)
	v, _ := b.locks.LoadOrStore(string(key), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	consumed, err := b.has(key)
	if err != nil {
		return err
	}
	if consumed {
		return physical.ErrConsumed
	}

	// Record the marker first: the replay guard must be durable before
	// any funds move.
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, nil)
	}); err != nil {
		return fmt.Errorf("badger consume: %w", err)
	}

	if commit != nil {
		if err := commit(); err != nil {
			if delErr := b.db.Update(func(txn *badger.Txn) error {
				return txn.Delete(key)
			}); delErr != nil {
				// The pair is burned without a settled claim; surface
				// loudly, this needs operator attention.
				slog.Error("nullifier rollback failed",
					"scope", scope,
					"nullifier", hash,
					"commit_error", err,
					"rollback_error", delErr,
				)
				return fmt.Errorf("rollback nullifier after failed commit: %w", delErr)
			}
			return err
		}
	}
	return nil
}

// Consumed implements physical.Backend.
func (b *Backend) Consumed(_ context.Context, scope types.AirdropID, hash types.Hash) (bool, error) {
	if b.closed.Load() {
		return false, physical.ErrClosed
	}
	return b.has(pairKey(scope, hash))
}

func (b *Backend) has(key []byte) (bool, error) {
	var found bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger lookup: %w", err)
	}
	return found, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
