package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"orodex/internal/match"
)

// SaveTrades inserts a batch of trades in one transaction. Trade ids
// are unique, so replaying an already-saved trade is an error.
func (s *Store) SaveTrades(trades []match.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trades (trade_id, pair, buy_order_id, sell_order_id, buyer_account_id, seller_account_id, price, amount, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		_, err := stmt.Exec(t.ID, t.Pair, t.BuyOrderID, t.SellOrderID,
			t.BuyerAccountID, t.SellerAccountID, t.Price.String(), t.Amount.String(), t.Timestamp)
		if err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// RecentTrades returns the most recent trades in execution order,
// oldest first. limit <= 0 means no limit.
func (s *Store) RecentTrades(limit int) ([]match.Trade, error) {
	query := `
		SELECT trade_id, pair, buy_order_id, sell_order_id, buyer_account_id, seller_account_id, price, amount, executed_at
		FROM (
			SELECT *, rowid AS rid FROM trades ORDER BY executed_at DESC, rowid DESC LIMIT ?
		) ORDER BY executed_at ASC, rid ASC
	`
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unbounded
	}

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []match.Trade
	for rows.Next() {
		var t match.Trade
		var price, amount string
		if err := rows.Scan(&t.ID, &t.Pair, &t.BuyOrderID, &t.SellOrderID,
			&t.BuyerAccountID, &t.SellerAccountID, &price, &amount, &t.Timestamp); err != nil {
			return nil, err
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("trade %s has bad price %q: %w", t.ID, price, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("trade %s has bad amount %q: %w", t.ID, amount, err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *Store) TradeCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&n)
	return n, err
}

// RunRecord is one bulk processing pass over an order file.
type RunRecord struct {
	ID              int64
	Source          string
	OrdersSeen      int
	TradesMade      int
	RecordsRejected int
	FinishedAt      time.Time
}

// RecordRun logs a completed bulk processing pass.
func (s *Store) RecordRun(r RunRecord) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (source, orders_seen, trades_made, records_rejected, finished_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.Source, r.OrdersSeen, r.TradesMade, r.RecordsRejected, r.FinishedAt)
	return err
}

// Runs returns all recorded processing passes, newest first.
func (s *Store) Runs() ([]RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, source, orders_seen, trades_made, records_rejected, finished_at
		FROM runs ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Source, &r.OrdersSeen, &r.TradesMade, &r.RecordsRejected, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
