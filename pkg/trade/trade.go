package trade

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/avykov/simex/pkg/book"
)

var (
	ErrUnknownVenue = errors.New("trade: unknown venue")
	ErrDuplicate    = errors.New("trade: venue already registered")
)

// Receipt describes the outcome of one submitted offer.
type Receipt struct {
	Wallet   string          `json:"wallet"`
	Side     book.Side       `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Matched  decimal.Decimal `json:"matched"`
	Changes  []book.Change   `json:"changes"`
	Time     int64           `json:"time"`
}

// TradeAPI is the surface an agent trades against. Implementations may be
// the in-process platform or a remote venue behind a client.
type TradeAPI interface {
	Buy(ctx context.Context, wallet string, price, quantity decimal.Decimal) (*Receipt, error)
	Sell(ctx context.Context, wallet string, price, quantity decimal.Decimal) (*Receipt, error)
	Balance(ctx context.Context, wallet string) (decimal.Decimal, error)
	Orders(ctx context.Context, wallet string) ([]book.RestingOrder, error)
}

// Registry maps venue names to TradeAPI implementations. It is built at
// startup and handed to whoever needs a venue; there is no package-level
// instance.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]TradeAPI
}

func NewRegistry() *Registry {
	return &Registry{venues: make(map[string]TradeAPI)}
}

func (r *Registry) Register(name string, api TradeAPI) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.venues[name]; ok {
		return ErrDuplicate
	}
	r.venues[name] = api
	return nil
}

func (r *Registry) Lookup(name string) (TradeAPI, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	api, ok := r.venues[name]
	if !ok {
		return nil, ErrUnknownVenue
	}
	return api, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.venues))
	for name := range r.venues {
		out = append(out, name)
	}
	return out
}
