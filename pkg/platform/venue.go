package platform

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/avykov/simex/pkg/book"
	"github.com/avykov/simex/pkg/trade"
)

// venue exposes one market as a trade.TradeAPI.
type venue struct {
	p      *Platform
	symbol string
	book   *book.Book
}

// Venue returns the trading surface for a market, suitable for a
// trade.Registry.
func (p *Platform) Venue(symbol string) (trade.TradeAPI, error) {
	b, err := p.Book(symbol)
	if err != nil {
		return nil, err
	}
	return &venue{p: p, symbol: symbol, book: b}, nil
}

func (v *venue) submit(side book.Side, wallet string, price, quantity decimal.Decimal) (*trade.Receipt, error) {
	changes, err := v.book.Submit(wallet, side, price, quantity)
	if err != nil {
		return nil, err
	}
	matched := decimal.Zero
	for _, c := range changes {
		if c.Wallet == wallet && c.Side == side {
			matched = matched.Add(c.Diff)
		}
	}
	return &trade.Receipt{
		Wallet:   wallet,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Matched:  matched,
		Changes:  changes,
		Time:     v.p.clock.Now().UnixMilli(),
	}, nil
}

func (v *venue) Buy(_ context.Context, wallet string, price, quantity decimal.Decimal) (*trade.Receipt, error) {
	return v.submit(book.Buy, wallet, price, quantity)
}

func (v *venue) Sell(_ context.Context, wallet string, price, quantity decimal.Decimal) (*trade.Receipt, error) {
	return v.submit(book.Sell, wallet, price, quantity)
}

func (v *venue) Balance(_ context.Context, wallet string) (decimal.Decimal, error) {
	return v.p.Balance(wallet)
}

func (v *venue) Orders(_ context.Context, wallet string) ([]book.RestingOrder, error) {
	buys, sells := v.book.OrdersFor(wallet)
	return append(buys, sells...), nil
}
