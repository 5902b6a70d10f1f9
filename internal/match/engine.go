// Package match implements price-time priority matching of incoming
// limit orders against an order book, and the batch driver that folds
// a whole order file through the engine.
package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orodex/internal/orderbook"
)

// Trade is one execution between an incoming order and a resting one.
// The price is always the resting level's price; price improvement goes
// to the taker. Immutable once emitted.
type Trade struct {
	ID              string          `json:"tradeId"`
	Pair            string          `json:"pair"`
	BuyOrderID      string          `json:"buyOrderId"`
	SellOrderID     string          `json:"sellOrderId"`
	BuyerAccountID  string          `json:"buyerAccountId"`
	SellerAccountID string          `json:"sellerAccountId"`
	Price           decimal.Decimal `json:"price"`
	Amount          decimal.Decimal `json:"amount"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Result is the outcome of matching one order: the trades it produced
// in priority order, the updated book, and the unfilled remainder now
// resting on the book (nil when fully filled or on DELETE).
type Result struct {
	Trades    []Trade
	Book      *orderbook.OrderBook
	Remainder *orderbook.NormalizedOrder
}

// Engine matches one order at a time. It never mutates the book it is
// given; every pass works on a clone that the Result carries back, so
// the caller decides when the new state becomes current.
type Engine struct {
	// NewTradeID mints ids for emitted trades. Swappable so tests can
	// supply deterministic ids.
	NewTradeID func() string
}

func NewEngine() *Engine {
	return &Engine{
		NewTradeID: func() string { return uuid.New().String() },
	}
}

// Match runs one order through the book under price-time priority.
//
// The walk goes down the opposite ladder best price first. A level the
// order's limit doesn't cross is skipped rather than breaking the walk;
// with sorted ladders the two are equivalent today, but skipping stays
// correct if that monotonicity ever goes away. Within a level the queue
// is consumed front first. Resting orders from the same account are
// skipped silently and matching continues past them. Whatever amount
// survives the walk is inserted on the order's own side.
//
// Match never fails on normalized input: an unfilled remainder is a
// normal outcome, and a DELETE for an unknown id is a no-op.
func (e *Engine) Match(o orderbook.NormalizedOrder, book *orderbook.OrderBook) Result {
	working := book.Clone()

	if o.Op == orderbook.OpDelete {
		working.RemoveByID(o.OrderID)
		return Result{Book: working}
	}

	var trades []Trade
	remaining := o.Amount

	// Walk copies of the ladder and queues: removing a filled maker
	// mutates the working book mid-walk.
	levels := append([]*orderbook.PriceLevel(nil), working.Levels(o.Side.Opposite())...)
	for _, level := range levels {
		if !remaining.IsPositive() {
			break
		}
		if !o.Crosses(level.Price) {
			continue
		}

		queue := append([]*orderbook.RestingOrder(nil), level.Orders...)
		for _, maker := range queue {
			if maker.AccountID == o.AccountID {
				continue
			}

			matched := decimal.Min(remaining, maker.Amount)
			if !matched.IsPositive() {
				continue
			}

			trades = append(trades, e.newTrade(o, maker, level.Price, matched))

			maker.Amount = maker.Amount.Sub(matched)
			remaining = remaining.Sub(matched)

			if !maker.Amount.IsPositive() {
				working.RemoveByID(maker.OrderID)
			}
			if !remaining.IsPositive() {
				break
			}
		}
	}

	res := Result{Trades: trades, Book: working}
	if remaining.IsPositive() {
		rest := o
		rest.Amount = remaining
		working.Insert(rest)
		res.Remainder = &rest
	}
	return res
}

func (e *Engine) newTrade(taker orderbook.NormalizedOrder, maker *orderbook.RestingOrder, price, amount decimal.Decimal) Trade {
	t := Trade{
		ID:        e.NewTradeID(),
		Pair:      taker.Pair,
		Price:     price,
		Amount:    amount,
		Timestamp: time.Now(),
	}
	if taker.Side == orderbook.Buy {
		t.BuyOrderID, t.SellOrderID = taker.OrderID, maker.OrderID
		t.BuyerAccountID, t.SellerAccountID = taker.AccountID, maker.AccountID
	} else {
		t.BuyOrderID, t.SellOrderID = maker.OrderID, taker.OrderID
		t.BuyerAccountID, t.SellerAccountID = maker.AccountID, taker.AccountID
	}
	return t
}

// RejectedRecord is a malformed input record that normalization threw
// out. The book is untouched by it.
type RejectedRecord struct {
	Index  int
	Record orderbook.RawOrderRecord
	Err    error
}

// ProcessAll folds an ordered sequence of raw records through the
// engine, starting from an empty book. DELETE records cancel by id and
// never produce trades. Malformed records are collected and skipped;
// each record is accepted or rejected atomically.
func (e *Engine) ProcessAll(pair string, records []orderbook.RawOrderRecord) (*orderbook.OrderBook, []Trade, []RejectedRecord) {
	book := orderbook.New(pair)
	var trades []Trade
	var rejects []RejectedRecord

	for i, rec := range records {
		o, err := orderbook.Normalize(rec)
		if err != nil {
			rejects = append(rejects, RejectedRecord{Index: i, Record: rec, Err: err})
			continue
		}

		if o.Op == orderbook.OpDelete {
			book.RemoveByID(o.OrderID)
			continue
		}

		res := e.Match(o, book)
		trades = append(trades, res.Trades...)
		book = res.Book
	}

	return book, trades, rejects
}
