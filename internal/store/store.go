// Package store persists executed trades and processing-run records in
// SQLite. The order book itself is in-memory only; the store exists so
// trade history survives restarts of the shell around the engine.
package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the database at path and applies
// the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		trade_id TEXT PRIMARY KEY,
		pair TEXT NOT NULL,
		buy_order_id TEXT NOT NULL,
		sell_order_id TEXT NOT NULL,
		buyer_account_id TEXT NOT NULL,
		seller_account_id TEXT NOT NULL,
		price TEXT NOT NULL,   -- decimal string
		amount TEXT NOT NULL,  -- decimal string
		executed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		orders_seen INTEGER NOT NULL,
		trades_made INTEGER NOT NULL,
		records_rejected INTEGER NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_pair ON trades(pair);
	CREATE INDEX IF NOT EXISTS idx_trades_executed ON trades(executed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}
