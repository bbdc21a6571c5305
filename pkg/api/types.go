package api

import (
	"github.com/shopspring/decimal"

	"github.com/avykov/simex/pkg/book"
)

// MarketInfo is the REST view of one market.
type MarketInfo struct {
	Symbol      string          `json:"symbol"`
	Supply      decimal.Decimal `json:"supply"`
	Circulating decimal.Decimal `json:"circulating"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   int64           `json:"createdAt"`
}

// BookSnapshot is a point-in-time copy of both sides of a book.
type BookSnapshot struct {
	Symbol    string              `json:"symbol"`
	Bids      []book.RestingOrder `json:"bids"`
	Asks      []book.RestingOrder `json:"asks"`
	Timestamp int64               `json:"timestamp"`
}

// TraderInfo is the REST view of one account.
type TraderInfo struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

// ChangeUpdate is the WebSocket frame for one book change.
type ChangeUpdate struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Wallet    string          `json:"wallet"`
	Price     decimal.Decimal `json:"price"`
	Diff      decimal.Decimal `json:"diff"`
	Timestamp int64           `json:"timestamp"`
}

// WSSubscribeRequest is a client's channel subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// ErrorResponse is the REST error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
