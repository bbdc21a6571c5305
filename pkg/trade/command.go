package trade

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avykov/simex/pkg/book"
)

// OfferCommand wraps a single buy or sell intent so the scheduler can run
// it. DeclineIf, when set, is consulted at execution time; a declined offer
// completes without error and without touching the venue.
type OfferCommand struct {
	API       TradeAPI
	Side      book.Side
	Wallet    string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	DeclineIf func() bool
	OnReceipt func(*Receipt)
}

func (c *OfferCommand) Execute(ctx context.Context) error {
	if c.DeclineIf != nil && c.DeclineIf() {
		return nil
	}
	var (
		rcpt *Receipt
		err  error
	)
	switch c.Side {
	case book.Buy:
		rcpt, err = c.API.Buy(ctx, c.Wallet, c.Price, c.Quantity)
	case book.Sell:
		rcpt, err = c.API.Sell(ctx, c.Wallet, c.Price, c.Quantity)
	default:
		return fmt.Errorf("offer: %w", book.ErrBadSide)
	}
	if err != nil {
		return err
	}
	if c.OnReceipt != nil {
		c.OnReceipt(rcpt)
	}
	return nil
}
