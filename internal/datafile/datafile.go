// Package datafile reads bulk order files and writes the order book /
// trade output files. File formats are JSON; everything else about
// persistence is the store's business.
package datafile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"orodex/internal/match"
	"orodex/internal/orderbook"
)

// TradeCollection is the shape of the trades output file.
type TradeCollection struct {
	Trades []match.Trade `json:"trades"`
}

// ReadOrders loads a JSON array of raw order records.
func ReadOrders(path string) ([]orderbook.RawOrderRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read orders file: %w", err)
	}
	var records []orderbook.RawOrderRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse orders file %s: %w", path, err)
	}
	return records, nil
}

// WriteOrderBook writes a book snapshot as indented JSON, creating the
// parent directory if needed.
func WriteOrderBook(snap orderbook.BookSnapshot, path string) error {
	return writeJSON(snap, path)
}

// WriteTrades writes the full trade list as {"trades": [...]}.
func WriteTrades(trades []match.Trade, path string) error {
	if trades == nil {
		trades = []match.Trade{}
	}
	return writeJSON(TradeCollection{Trades: trades}, path)
}

func writeJSON(v any, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
