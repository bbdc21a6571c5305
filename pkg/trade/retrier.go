package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avykov/simex/pkg/book"
	"github.com/avykov/simex/pkg/util"
)

const (
	DefaultAttempts   = 3
	DefaultBackoff    = 200 * time.Millisecond
	DefaultTryTimeout = 2 * time.Second
)

// Retrier decorates a TradeAPI with bounded retries. Every attempt runs
// under its own timeout; attempts are separated by a fixed backoff.
type Retrier struct {
	next       TradeAPI
	attempts   int
	backoff    time.Duration
	tryTimeout time.Duration
	clock      util.Clock
}

func NewRetrier(next TradeAPI, attempts int, backoff, tryTimeout time.Duration) *Retrier {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if tryTimeout <= 0 {
		tryTimeout = DefaultTryTimeout
	}
	return &Retrier{
		next:       next,
		attempts:   attempts,
		backoff:    backoff,
		tryTimeout: tryTimeout,
		clock:      util.RealClock{},
	}
}

// SetClock replaces the backoff clock. Test hook.
func (r *Retrier) SetClock(c util.Clock) { r.clock = c }

func (r *Retrier) do(ctx context.Context, call func(context.Context) error) error {
	var last error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			select {
			case <-r.clock.After(r.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		tryCtx, cancel := context.WithTimeout(ctx, r.tryTimeout)
		last = call(tryCtx)
		cancel()
		if last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("after %d attempts: %w", r.attempts, last)
}

func (r *Retrier) Buy(ctx context.Context, wallet string, price, quantity decimal.Decimal) (*Receipt, error) {
	var rcpt *Receipt
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		rcpt, err = r.next.Buy(ctx, wallet, price, quantity)
		return err
	})
	return rcpt, err
}

func (r *Retrier) Sell(ctx context.Context, wallet string, price, quantity decimal.Decimal) (*Receipt, error) {
	var rcpt *Receipt
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		rcpt, err = r.next.Sell(ctx, wallet, price, quantity)
		return err
	})
	return rcpt, err
}

func (r *Retrier) Balance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		bal, err = r.next.Balance(ctx, wallet)
		return err
	})
	return bal, err
}

func (r *Retrier) Orders(ctx context.Context, wallet string) ([]book.RestingOrder, error) {
	var orders []book.RestingOrder
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		orders, err = r.next.Orders(ctx, wallet)
		return err
	})
	return orders, err
}
