package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"orodex/internal/match"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTrade(id string, ts time.Time) match.Trade {
	return match.Trade{
		ID: id, Pair: "BTC/USDC",
		BuyOrderID: "buy-" + id, SellOrderID: "sell-" + id,
		BuyerAccountID: "bob", SellerAccountID: "alice",
		Price:     decimal.RequireFromString("50000.25"),
		Amount:    decimal.RequireFromString("0.5"),
		Timestamp: ts,
	}
}

func TestSaveAndRecentTrades(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	trades := []match.Trade{
		testTrade("t-1", base),
		testTrade("t-2", base.Add(time.Second)),
		testTrade("t-3", base.Add(2*time.Second)),
	}
	if err := s.SaveTrades(trades); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.RecentTrades(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	// Oldest of the returned window first.
	if got[0].ID != "t-2" || got[1].ID != "t-3" {
		t.Errorf("unexpected window: %s %s", got[0].ID, got[1].ID)
	}
	if !got[0].Price.Equal(decimal.RequireFromString("50000.25")) {
		t.Errorf("price lost precision on round trip: %s", got[0].Price)
	}

	all, err := s.RecentTrades(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("limit 0 should return everything, got %d", len(all))
	}

	n, err := s.TradeCount()
	if err != nil || n != 3 {
		t.Errorf("expected count 3, got %d (%v)", n, err)
	}
}

func TestSaveTradesEmptyBatch(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveTrades(nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}

func TestDuplicateTradeIDRejected(t *testing.T) {
	s := newTestStore(t)

	trade := testTrade("t-1", time.Now())
	if err := s.SaveTrades([]match.Trade{trade}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTrades([]match.Trade{trade}); err == nil {
		t.Error("expected primary key violation on replayed trade")
	}

	// The failed batch must not have partially applied.
	n, _ := s.TradeCount()
	if n != 1 {
		t.Errorf("expected 1 trade after failed replay, got %d", n)
	}
}

func TestRecordRun(t *testing.T) {
	s := newTestStore(t)

	if err := s.RecordRun(RunRecord{Source: "data/orders.json", OrdersSeen: 10, TradesMade: 4, RecordsRejected: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RecordRun(RunRecord{Source: "data/orders.json", OrdersSeen: 12, TradesMade: 6}); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Newest first.
	if runs[0].OrdersSeen != 12 || runs[1].RecordsRejected != 1 {
		t.Errorf("unexpected runs: %+v", runs)
	}
	if runs[0].FinishedAt.IsZero() {
		t.Errorf("expected finished_at to be filled in")
	}
}
