package orderbook

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RestingOrder is the slice of an order that stays on the book once it
// rests: its identity plus whatever amount is still unfilled. Amount is
// reduced in place as later incoming orders trade against it.
type RestingOrder struct {
	OrderID   string
	AccountID string
	Amount    decimal.Decimal
}

// PriceLevel holds all resting orders at one price, queued in arrival
// order. The front of the queue has time priority.
type PriceLevel struct {
	Price  decimal.Decimal
	Orders []*RestingOrder
}

// TotalAmount sums the unfilled amount resting at this level.
func (pl *PriceLevel) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, ro := range pl.Orders {
		total = total.Add(ro.Amount)
	}
	return total
}

// levelRef locates an order's level so RemoveByID doesn't have to scan
// both ladders.
type levelRef struct {
	side  Side
	price decimal.Decimal
}

// OrderBook is the in-memory book for a single pair: two price ladders
// of FIFO order queues, bids sorted descending (best bid first) and
// asks ascending (best ask first). It has no internal locking; callers
// are expected to apply one order at a time, taking a Clone when they
// need a working copy they can throw away.
type OrderBook struct {
	Pair string

	bids  []*PriceLevel
	asks  []*PriceLevel
	index map[string]levelRef
}

func New(pair string) *OrderBook {
	return &OrderBook{
		Pair:  pair,
		bids:  make([]*PriceLevel, 0),
		asks:  make([]*PriceLevel, 0),
		index: make(map[string]levelRef),
	}
}

func (b *OrderBook) ladder(s Side) *[]*PriceLevel {
	if s == Buy {
		return &b.bids
	}
	return &b.asks
}

// Insert places an order on its own side of the book. A DELETE record
// is a cancellation, so it delegates to RemoveByID. New orders join the
// back of their price level's queue; a price with no level yet gets a
// fresh level, after which the ladder is re-sorted so bids stay
// price-descending and asks price-ascending.
func (b *OrderBook) Insert(o NormalizedOrder) {
	if o.Op == OpDelete {
		b.RemoveByID(o.OrderID)
		return
	}

	ro := &RestingOrder{OrderID: o.OrderID, AccountID: o.AccountID, Amount: o.Amount}
	ladder := b.ladder(o.Side)

	for _, level := range *ladder {
		if level.Price.Equal(o.LimitPrice) {
			level.Orders = append(level.Orders, ro)
			b.index[o.OrderID] = levelRef{side: o.Side, price: level.Price}
			return
		}
	}

	*ladder = append(*ladder, &PriceLevel{Price: o.LimitPrice, Orders: []*RestingOrder{ro}})
	b.sortLadder(o.Side)
	b.index[o.OrderID] = levelRef{side: o.Side, price: o.LimitPrice}
}

func (b *OrderBook) sortLadder(s Side) {
	ladder := *b.ladder(s)
	if s == Buy {
		sort.Slice(ladder, func(i, j int) bool { return ladder[i].Price.Cmp(ladder[j].Price) > 0 })
	} else {
		sort.Slice(ladder, func(i, j int) bool { return ladder[i].Price.Cmp(ladder[j].Price) < 0 })
	}
}

// RemoveByID takes an order off the book, dropping its level if the
// queue is left empty. Removing an id that isn't resting (already
// filled, already cancelled, never existed) is a no-op, not an error;
// the return value reports whether anything was removed.
func (b *OrderBook) RemoveByID(orderID string) bool {
	ref, ok := b.index[orderID]
	if !ok {
		return false
	}

	ladder := b.ladder(ref.side)
	for i, level := range *ladder {
		if !level.Price.Equal(ref.price) {
			continue
		}
		for j, ro := range level.Orders {
			if ro.OrderID == orderID {
				level.Orders = append(level.Orders[:j], level.Orders[j+1:]...)
				break
			}
		}
		if len(level.Orders) == 0 {
			*ladder = append((*ladder)[:i], (*ladder)[i+1:]...)
		}
		break
	}

	delete(b.index, orderID)
	return true
}

// FindByID looks up a resting order without touching it. Returns the
// order, its side and its level price, or ok=false.
func (b *OrderBook) FindByID(orderID string) (ro *RestingOrder, side Side, price decimal.Decimal, ok bool) {
	ref, found := b.index[orderID]
	if !found {
		return nil, "", decimal.Zero, false
	}
	for _, level := range *b.ladder(ref.side) {
		if !level.Price.Equal(ref.price) {
			continue
		}
		for _, o := range level.Orders {
			if o.OrderID == orderID {
				return o, ref.side, level.Price, true
			}
		}
	}
	return nil, "", decimal.Zero, false
}

// Levels returns one side's ladder in priority order. The returned
// slice is the book's own; callers that mutate the book while walking
// it must iterate over their own copy.
func (b *OrderBook) Levels(s Side) []*PriceLevel {
	return *b.ladder(s)
}

// Clone deep-copies the book, levels and resting orders included, so a
// match pass can work on a throwaway copy and the caller can swap it in
// only once the pass has finished.
func (b *OrderBook) Clone() *OrderBook {
	c := New(b.Pair)
	c.bids = cloneLadder(b.bids)
	c.asks = cloneLadder(b.asks)
	for id, ref := range b.index {
		c.index[id] = ref
	}
	return c
}

func cloneLadder(ladder []*PriceLevel) []*PriceLevel {
	out := make([]*PriceLevel, len(ladder))
	for i, level := range ladder {
		orders := make([]*RestingOrder, len(level.Orders))
		for j, ro := range level.Orders {
			cp := *ro
			orders[j] = &cp
		}
		out[i] = &PriceLevel{Price: level.Price, Orders: orders}
	}
	return out
}

// BestBid returns the highest bid price; ok is false on an empty side.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.bids) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].Price, true
}

// BestAsk returns the lowest ask price; ok is false on an empty side.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].Price, true
}

// BookSnapshot is the serializable view of the book. Decimals are
// rendered as strings to survive JSON without precision loss.
type BookSnapshot struct {
	Pair string          `json:"pair"`
	Bids []LevelSnapshot `json:"bids"`
	Asks []LevelSnapshot `json:"asks"`
}

type LevelSnapshot struct {
	Price  string          `json:"price"`
	Orders []OrderSnapshot `json:"orders"`
}

type OrderSnapshot struct {
	OrderID   string `json:"orderId"`
	AccountID string `json:"accountId"`
	Amount    string `json:"amount"`
}

func (b *OrderBook) Snapshot() BookSnapshot {
	return BookSnapshot{
		Pair: b.Pair,
		Bids: snapshotLadder(b.bids),
		Asks: snapshotLadder(b.asks),
	}
}

func snapshotLadder(ladder []*PriceLevel) []LevelSnapshot {
	out := make([]LevelSnapshot, len(ladder))
	for i, level := range ladder {
		orders := make([]OrderSnapshot, len(level.Orders))
		for j, ro := range level.Orders {
			orders[j] = OrderSnapshot{
				OrderID:   ro.OrderID,
				AccountID: ro.AccountID,
				Amount:    ro.Amount.String(),
			}
		}
		out[i] = LevelSnapshot{Price: level.Price.String(), Orders: orders}
	}
	return out
}
