// Package sqlite provides a SQLite-backed airdrop store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"

	"github.com/zkdrop/zkdrop-node/internal/airdrop/physical"
	"github.com/zkdrop/zkdrop-node/internal/storage"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

func init() {
	physical.Register("sqlite", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SQLite store.
func Defaults() map[string]string {
	return map[string]string{
		"path":         "~/.zkdrop/airdrops.db",
		"journal_mode": "WAL",
		"busy_timeout": "5000",
		"cache_size":   "-2000",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS airdrops (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id   INTEGER NOT NULL,
	token      TEXT NOT NULL,
	manager    TEXT NOT NULL,
	holder     TEXT NOT NULL,
	amount     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_airdrops_group ON airdrops(group_id);
`

// Store is a SQLite-backed airdrop store. Records are append-only;
// sequential ids come from the AUTOINCREMENT column.
type Store struct {
	db *sql.DB
}

// NewFactory creates a SQLite-backed airdrop store from a configuration map.
func NewFactory(_ context.Context, config map[string]string) (physical.Store, error) {
	path := storage.ExpandPath(storage.GetString(config, "path", "~/.zkdrop/airdrops.db"))

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("sqlite", "path", "failed to create directory", err)
	}

	journalMode := storage.GetString(config, "journal_mode", "WAL")
	busyTimeout := storage.GetString(config, "busy_timeout", "5000")
	cacheSize := storage.GetString(config, "cache_size", "-2000")

	dsn := fmt.Sprintf("file:%s?_journal_mode=%s&_busy_timeout=%s&_cache_size=%s&_foreign_keys=on",
		path, journalMode, busyTimeout, cacheSize)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc.org/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent load.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	slog.Info("sqlite airdrop store initialized", "path", path)

	return &Store{db: db}, nil
}

// Create inserts the record and returns it with the assigned id.
func (s *Store) Create(ctx context.Context, record *physical.Record) (*physical.Record, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO airdrops (group_id, token, manager, holder, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uint64(record.GroupID),
		record.Token.Hex(),
		record.Manager.Hex(),
		record.Holder.Hex(),
		record.Amount.Dec(),
		time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert airdrop: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read assigned id: %w", err)
	}

	stored := record.Clone()
	stored.ID = types.AirdropID(id)
	return stored, nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id types.AirdropID) (*physical.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT group_id, token, manager, holder, amount FROM airdrops WHERE id = ?`,
		uint64(id),
	)

	var (
		groupID                        uint64
		token, manager, holder, amount string
	)
	if err := row.Scan(&groupID, &token, &manager, &holder, &amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, physical.ErrNotFound
		}
		return nil, fmt.Errorf("query airdrop: %w", err)
	}

	amt, err := uint256.FromDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("parse stored amount: %w", err)
	}

	record := &physical.Record{
		ID:      id,
		GroupID: types.GroupID(groupID),
		Amount:  amt,
	}
	if record.Token, err = types.HexToAddress(token); err != nil {
		return nil, fmt.Errorf("parse stored token: %w", err)
	}
	if record.Manager, err = types.HexToAddress(manager); err != nil {
		return nil, fmt.Errorf("parse stored manager: %w", err)
	}
	if record.Holder, err = types.HexToAddress(holder); err != nil {
		return nil, fmt.Errorf("parse stored holder: %w", err)
	}
	return record, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM airdrops`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count airdrops: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
