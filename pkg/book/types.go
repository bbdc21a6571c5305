package book

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Side of an order.
type Side int

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// RestingOrder is the aggregated unmatched interest of one wallet at one
// price. Orders from the same wallet at the same price on the same side are
// summed into a single entry rather than kept separately.
type RestingOrder struct {
	Wallet   string          `json:"wallet"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Change is emitted once per quantity movement: a resting order reduced or
// closed by a crossing counter-order, or the submitter's own net fill.
// Diff is always the matched quantity, never the unmatched remainder.
type Change struct {
	Side   Side            `json:"side"`
	Wallet string          `json:"wallet"`
	Price  decimal.Decimal `json:"price"`
	Diff   decimal.Decimal `json:"diff"`
}

var (
	ErrNoWallet    = errors.New("book: empty wallet key")
	ErrBadSide     = errors.New("book: invalid side")
	ErrBadPrice    = errors.New("book: price must be positive")
	ErrBadQuantity = errors.New("book: quantity must be positive")
)
