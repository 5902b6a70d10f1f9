package orderbook

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OpType is the operation carried by an incoming record: CREATE places
// a new limit order, DELETE cancels a resting one by id.
type OpType string

const (
	OpCreate OpType = "CREATE"
	OpDelete OpType = "DELETE"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// RawOrderRecord is one order record exactly as it arrives from the
// outside world (bulk order file or request body). All fields are
// strings; nothing is trusted until Normalize has seen it.
type RawOrderRecord struct {
	TypeOp     string `json:"type_op"`
	AccountID  string `json:"account_id"`
	Amount     string `json:"amount"`
	OrderID    string `json:"order_id"`
	Pair       string `json:"pair"`
	LimitPrice string `json:"limit_price"`
	Side       string `json:"side"`
}

// NormalizedOrder is a validated record with its numeric fields parsed.
// Amount shrinks as the order matches; it is never negative.
type NormalizedOrder struct {
	Op         OpType
	AccountID  string
	Amount     decimal.Decimal
	OrderID    string
	Pair       string
	LimitPrice decimal.Decimal
	Side       Side
}

// ValidationError reports a malformed field on an incoming record. The
// record it describes must not have touched the book.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s %s", e.Field, e.Reason)
}

// Normalize converts a raw record into a NormalizedOrder, rejecting
// anything malformed before it can reach the book. A DELETE targets an
// existing order id, so it only needs type_op and order_id; the rest of
// the record is carried through as-is.
func Normalize(rec RawOrderRecord) (NormalizedOrder, error) {
	var o NormalizedOrder

	switch OpType(rec.TypeOp) {
	case OpCreate, OpDelete:
		o.Op = OpType(rec.TypeOp)
	case "":
		return o, &ValidationError{Field: "type_op", Reason: "is required"}
	default:
		return o, &ValidationError{Field: "type_op", Reason: fmt.Sprintf("must be CREATE or DELETE, got %q", rec.TypeOp)}
	}

	if rec.OrderID == "" {
		return o, &ValidationError{Field: "order_id", Reason: "is required"}
	}
	o.OrderID = rec.OrderID
	o.AccountID = rec.AccountID
	o.Pair = rec.Pair

	if o.Op == OpDelete {
		return o, nil
	}

	if rec.AccountID == "" {
		return o, &ValidationError{Field: "account_id", Reason: "is required"}
	}

	switch Side(rec.Side) {
	case Buy, Sell:
		o.Side = Side(rec.Side)
	case "":
		return o, &ValidationError{Field: "side", Reason: "is required"}
	default:
		return o, &ValidationError{Field: "side", Reason: fmt.Sprintf("must be BUY or SELL, got %q", rec.Side)}
	}

	amount, err := decimal.NewFromString(rec.Amount)
	if err != nil {
		return o, &ValidationError{Field: "amount", Reason: fmt.Sprintf("is not a number: %q", rec.Amount)}
	}
	if !amount.IsPositive() {
		return o, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	o.Amount = amount

	price, err := decimal.NewFromString(rec.LimitPrice)
	if err != nil {
		return o, &ValidationError{Field: "limit_price", Reason: fmt.Sprintf("is not a number: %q", rec.LimitPrice)}
	}
	if !price.IsPositive() {
		return o, &ValidationError{Field: "limit_price", Reason: "must be positive"}
	}
	o.LimitPrice = price

	return o, nil
}

// Crosses reports whether the order's limit reaches a resting level at
// the given price: a BUY covers levels at or below its limit, a SELL
// covers levels at or above it.
func (o NormalizedOrder) Crosses(levelPrice decimal.Decimal) bool {
	if o.Side == Buy {
		return o.LimitPrice.Cmp(levelPrice) >= 0
	}
	return o.LimitPrice.Cmp(levelPrice) <= 0
}
