package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
)

func limit(id, account string, side Side, price, amount string) NormalizedOrder {
	return NormalizedOrder{
		Op:         OpCreate,
		OrderID:    id,
		AccountID:  account,
		Pair:       "BTC/USDC",
		Side:       side,
		LimitPrice: decimal.RequireFromString(price),
		Amount:     decimal.RequireFromString(amount),
	}
}

func TestInsertCreatesLevel(t *testing.T) {
	book := New("BTC/USDC")

	book.Insert(limit("order1", "acct1", Buy, "100", "1.5"))

	bids := book.Levels(Buy)
	if len(bids) != 1 {
		t.Fatalf("expected 1 bid level, got %d", len(bids))
	}
	if !bids[0].Price.Equal(decimal.RequireFromString("100")) {
		t.Errorf("expected level price 100, got %s", bids[0].Price)
	}
	if len(bids[0].Orders) != 1 || bids[0].Orders[0].OrderID != "order1" {
		t.Errorf("expected order1 resting at the level")
	}
}

func TestInsertSamePriceGoesToBack(t *testing.T) {
	book := New("BTC/USDC")

	book.Insert(limit("first", "acct1", Sell, "100", "1"))
	book.Insert(limit("second", "acct2", Sell, "100", "1"))

	asks := book.Levels(Sell)
	if len(asks) != 1 {
		t.Fatalf("expected 1 ask level, got %d", len(asks))
	}
	if asks[0].Orders[0].OrderID != "first" || asks[0].Orders[1].OrderID != "second" {
		t.Errorf("expected FIFO queue [first second], got [%s %s]",
			asks[0].Orders[0].OrderID, asks[0].Orders[1].OrderID)
	}
}

func TestLadderOrdering(t *testing.T) {
	book := New("BTC/USDC")

	// Arrival order deliberately scrambled on both sides.
	book.Insert(limit("b1", "a", Buy, "99", "1"))
	book.Insert(limit("b2", "a", Buy, "101", "1"))
	book.Insert(limit("b3", "a", Buy, "100", "1"))
	book.Insert(limit("s1", "a", Sell, "103", "1"))
	book.Insert(limit("s2", "a", Sell, "102", "1"))
	book.Insert(limit("s3", "a", Sell, "104", "1"))

	bids := book.Levels(Buy)
	for i := 1; i < len(bids); i++ {
		if bids[i-1].Price.Cmp(bids[i].Price) <= 0 {
			t.Errorf("bids not strictly descending: %s before %s", bids[i-1].Price, bids[i].Price)
		}
	}
	asks := book.Levels(Sell)
	for i := 1; i < len(asks); i++ {
		if asks[i-1].Price.Cmp(asks[i].Price) >= 0 {
			t.Errorf("asks not strictly ascending: %s before %s", asks[i-1].Price, asks[i].Price)
		}
	}

	if best, _ := book.BestBid(); !best.Equal(decimal.RequireFromString("101")) {
		t.Errorf("expected best bid 101, got %s", best)
	}
	if best, _ := book.BestAsk(); !best.Equal(decimal.RequireFromString("102")) {
		t.Errorf("expected best ask 102, got %s", best)
	}
}

func TestRemoveByID(t *testing.T) {
	book := New("BTC/USDC")

	book.Insert(limit("keep", "a", Buy, "100", "1"))
	book.Insert(limit("drop", "a", Buy, "99", "1"))

	if !book.RemoveByID("drop") {
		t.Fatal("expected removal of resting order")
	}
	if len(book.Levels(Buy)) != 1 {
		t.Errorf("expected emptied level to be dropped from the ladder")
	}
	if _, _, _, ok := book.FindByID("drop"); ok {
		t.Errorf("removed order still findable")
	}

	// Removing again, or removing an id that never existed, is a no-op.
	if book.RemoveByID("drop") {
		t.Errorf("second removal should report nothing removed")
	}
	if book.RemoveByID("never-existed") {
		t.Errorf("unknown id removal should report nothing removed")
	}
	if len(book.Levels(Buy)) != 1 {
		t.Errorf("no-op removals must leave the book unchanged")
	}
}

func TestInsertDeleteOpCancels(t *testing.T) {
	book := New("BTC/USDC")

	book.Insert(limit("order1", "acct1", Sell, "100", "1"))
	book.Insert(NormalizedOrder{Op: OpDelete, OrderID: "order1"})

	if len(book.Levels(Sell)) != 0 {
		t.Errorf("expected DELETE record to cancel the resting order")
	}
}

func TestFindByID(t *testing.T) {
	book := New("BTC/USDC")
	book.Insert(limit("order1", "acct1", Sell, "250.5", "0.75"))

	ro, side, price, ok := book.FindByID("order1")
	if !ok {
		t.Fatal("expected to find resting order")
	}
	if side != Sell {
		t.Errorf("expected side SELL, got %s", side)
	}
	if !price.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("expected level price 250.5, got %s", price)
	}
	if ro.AccountID != "acct1" || !ro.Amount.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("unexpected resting order: %+v", ro)
	}

	if _, _, _, ok := book.FindByID("missing"); ok {
		t.Errorf("expected not-found for unknown id")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	book := New("BTC/USDC")
	book.Insert(limit("order1", "acct1", Buy, "100", "2"))

	clone := book.Clone()
	clone.RemoveByID("order1")
	clone.Insert(limit("order2", "acct2", Sell, "105", "1"))

	if _, _, _, ok := book.FindByID("order1"); !ok {
		t.Errorf("mutating the clone removed an order from the original")
	}
	if len(book.Levels(Sell)) != 0 {
		t.Errorf("mutating the clone inserted into the original")
	}

	// Resting orders must be copies, not shared pointers.
	ro, _, _, _ := book.FindByID("order1")
	cro, _, _, ok := book.Clone().FindByID("order1")
	if !ok {
		t.Fatal("clone lost order1")
	}
	cro.Amount = decimal.Zero
	if ro.Amount.IsZero() {
		t.Errorf("clone shares resting order storage with the original")
	}
}

func TestSnapshotShape(t *testing.T) {
	book := New("BTC/USDC")
	book.Insert(limit("order1", "acct1", Buy, "100", "0.5"))

	snap := book.Snapshot()
	if snap.Pair != "BTC/USDC" {
		t.Errorf("expected pair on snapshot, got %q", snap.Pair)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 0 {
		t.Fatalf("expected 1 bid level and 0 ask levels, got %d/%d", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Price != "100" {
		t.Errorf("expected price \"100\", got %q", snap.Bids[0].Price)
	}
	o := snap.Bids[0].Orders[0]
	if o.OrderID != "order1" || o.AccountID != "acct1" || o.Amount != "0.5" {
		t.Errorf("unexpected order snapshot: %+v", o)
	}
}

func TestNormalize(t *testing.T) {
	valid := RawOrderRecord{
		TypeOp: "CREATE", AccountID: "acct1", Amount: "0.5",
		OrderID: "order1", Pair: "BTC/USDC", LimitPrice: "50000", Side: "BUY",
	}

	o, err := Normalize(valid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Op != OpCreate || o.Side != Buy {
		t.Errorf("unexpected normalized enums: %+v", o)
	}
	if !o.Amount.Equal(decimal.RequireFromString("0.5")) || !o.LimitPrice.Equal(decimal.RequireFromString("50000")) {
		t.Errorf("unexpected normalized numerics: %+v", o)
	}

	broken := []struct {
		name   string
		mutate func(*RawOrderRecord)
		field  string
	}{
		{"missing op", func(r *RawOrderRecord) { r.TypeOp = "" }, "type_op"},
		{"bad op", func(r *RawOrderRecord) { r.TypeOp = "UPSERT" }, "type_op"},
		{"missing order id", func(r *RawOrderRecord) { r.OrderID = "" }, "order_id"},
		{"missing account", func(r *RawOrderRecord) { r.AccountID = "" }, "account_id"},
		{"bad side", func(r *RawOrderRecord) { r.Side = "HOLD" }, "side"},
		{"non-numeric amount", func(r *RawOrderRecord) { r.Amount = "lots" }, "amount"},
		{"zero amount", func(r *RawOrderRecord) { r.Amount = "0" }, "amount"},
		{"negative price", func(r *RawOrderRecord) { r.LimitPrice = "-1" }, "limit_price"},
	}
	for _, tc := range broken {
		rec := valid
		tc.mutate(&rec)
		_, err := Normalize(rec)
		verr, ok := err.(*ValidationError)
		if !ok {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
			continue
		}
		if verr.Field != tc.field {
			t.Errorf("%s: expected fault on %s, got %s", tc.name, tc.field, verr.Field)
		}
	}
}

func TestNormalizeDeleteNeedsOnlyID(t *testing.T) {
	o, err := Normalize(RawOrderRecord{TypeOp: "DELETE", OrderID: "order1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Op != OpDelete || o.OrderID != "order1" {
		t.Errorf("unexpected normalized delete: %+v", o)
	}
}
