package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestSubmitValidation(t *testing.T) {
	b := New()

	tests := []struct {
		name    string
		wallet  string
		side    Side
		price   int64
		qty     int64
		wantErr error
	}{
		{name: "empty wallet", wallet: "", side: Buy, price: 10, qty: 1, wantErr: ErrNoWallet},
		{name: "zero price", wallet: "W1", side: Buy, price: 0, qty: 1, wantErr: ErrBadPrice},
		{name: "negative price", wallet: "W1", side: Sell, price: -5, qty: 1, wantErr: ErrBadPrice},
		{name: "zero quantity", wallet: "W1", side: Buy, price: 10, qty: 0, wantErr: ErrBadQuantity},
		{name: "negative quantity", wallet: "W1", side: Sell, price: 10, qty: -3, wantErr: ErrBadQuantity},
		{name: "bad side", wallet: "W1", side: Side(9), price: 10, qty: 1, wantErr: ErrBadSide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Submit(tt.wallet, tt.side, dec(tt.price), dec(tt.qty))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejected orders must not have been partially applied.
	require.Empty(t, b.Bids())
	require.Empty(t, b.Asks())
}

func TestAggregationSameWalletSamePrice(t *testing.T) {
	b := New()

	_, err := b.AddBuy("W1", dec(10), dec(5))
	require.NoError(t, err)
	_, err = b.AddBuy("W1", dec(10), dec(7))
	require.NoError(t, err)

	bids := b.Bids()
	require.Len(t, bids, 1)
	require.True(t, bids[0].Quantity.Equal(dec(12)), "got %s", bids[0].Quantity)
}

func TestNoSelfTrade(t *testing.T) {
	b := New()

	changes, err := b.AddSell("W1", dec(10), dec(5))
	require.NoError(t, err)
	require.Empty(t, changes)

	changes, err = b.AddBuy("W1", dec(10), dec(5))
	require.NoError(t, err)
	require.Empty(t, changes, "same wallet must never cross itself")

	require.Len(t, b.Bids(), 1)
	require.Len(t, b.Asks(), 1)
}

func TestNoPriceImprovement(t *testing.T) {
	b := New()

	_, err := b.AddSell("W1", dec(10), dec(5))
	require.NoError(t, err)

	// A buy at 12 does not cross a resting sell at 10: crossing happens only
	// at exactly equal price in this simplified market.
	changes, err := b.AddBuy("W2", dec(12), dec(5))
	require.NoError(t, err)
	require.Empty(t, changes)
	require.Len(t, b.Asks(), 1)
	require.Len(t, b.Bids(), 1)
}

// The example scenario from the system's trade flow: W1 sells 100@10, W2 buys
// 60@10 then 40@10, fully closing W1's resting order.
func TestCrossingScenario(t *testing.T) {
	b := New()

	_, err := b.AddSell("W1", dec(10), dec(100))
	require.NoError(t, err)

	changes, err := b.AddBuy("W2", dec(10), dec(60))
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Equal(t, Change{Side: Sell, Wallet: "W1", Price: dec(10), Diff: dec(60)}, norm(changes[0]))
	require.Equal(t, Change{Side: Buy, Wallet: "W2", Price: dec(10), Diff: dec(60)}, norm(changes[1]))

	asks := b.Asks()
	require.Len(t, asks, 1)
	require.True(t, asks[0].Quantity.Equal(dec(40)))
	require.Empty(t, b.Bids(), "fully matched buy must not rest")

	changes, err = b.AddBuy("W2", dec(10), dec(40))
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Equal(t, Change{Side: Sell, Wallet: "W1", Price: dec(10), Diff: dec(40)}, norm(changes[0]))
	require.Equal(t, Change{Side: Buy, Wallet: "W2", Price: dec(10), Diff: dec(40)}, norm(changes[1]))
	require.Empty(t, b.Asks())
}

func TestPartialFillRests(t *testing.T) {
	b := New()

	_, err := b.AddSell("W1", dec(10), dec(30))
	require.NoError(t, err)

	// Buy 50: 30 match, 20 keep resting on the buy side.
	changes, err := b.AddBuy("W2", dec(10), dec(50))
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.True(t, changes[1].Diff.Equal(dec(30)), "submitter diff is the matched amount, not the remainder")

	bids := b.Bids()
	require.Len(t, bids, 1)
	require.True(t, bids[0].Quantity.Equal(dec(20)))
	require.Empty(t, b.Asks())
}

func TestCrossingWalksArrivalOrder(t *testing.T) {
	b := New()

	_, err := b.AddSell("W1", dec(10), dec(5))
	require.NoError(t, err)
	_, err = b.AddSell("W2", dec(10), dec(5))
	require.NoError(t, err)

	changes, err := b.AddBuy("W3", dec(10), dec(7))
	require.NoError(t, err)
	require.Len(t, changes, 3)

	// W1 arrived first and is consumed fully; W2 is reduced by the rest.
	require.Equal(t, "W1", changes[0].Wallet)
	require.True(t, changes[0].Diff.Equal(dec(5)))
	require.Equal(t, "W2", changes[1].Wallet)
	require.True(t, changes[1].Diff.Equal(dec(2)))
	require.True(t, changes[2].Diff.Equal(dec(7)))

	asks := b.Asks()
	require.Len(t, asks, 1)
	require.Equal(t, "W2", asks[0].Wallet)
	require.True(t, asks[0].Quantity.Equal(dec(3)))
}

func TestQuantityConservation(t *testing.T) {
	b := New()

	_, err := b.AddSell("W1", dec(10), dec(40))
	require.NoError(t, err)
	_, err = b.AddSell("W2", dec(10), dec(40))
	require.NoError(t, err)

	changes, err := b.AddBuy("W3", dec(10), dec(100))
	require.NoError(t, err)

	consumed := decimal.Zero
	var taker decimal.Decimal
	for _, c := range changes {
		if c.Side == Sell {
			consumed = consumed.Add(c.Diff)
		} else {
			taker = c.Diff
		}
	}
	require.True(t, consumed.Equal(dec(80)), "consumed side total")
	require.True(t, taker.Equal(dec(80)), "taker diff equals consumed total exactly once")

	// 20 unmatched rest on the buy side.
	bids := b.Bids()
	require.Len(t, bids, 1)
	require.True(t, bids[0].Quantity.Equal(dec(20)))
}

func TestBestBidAskAndPrice(t *testing.T) {
	b := New()

	require.True(t, b.Price().Equal(dec(-1)), "empty book price sentinel")
	_, ok := b.BestBid()
	require.False(t, ok)

	mustSubmit(t, b, "W1", Sell, 12, 1)
	mustSubmit(t, b, "W2", Sell, 10, 1)
	mustSubmit(t, b, "W3", Buy, 8, 1)
	mustSubmit(t, b, "W4", Buy, 9, 1)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	require.True(t, ask.Price.Equal(dec(10)), "best ask is the lowest sell")

	bid, ok := b.BestBid()
	require.True(t, ok)
	require.True(t, bid.Price.Equal(dec(9)), "best bid is the highest buy")

	require.True(t, b.Price().Equal(dec(10)))
}

func TestSnapshotsAreCopies(t *testing.T) {
	b := New()
	mustSubmit(t, b, "W1", Buy, 10, 5)

	bids := b.Bids()
	bids[0].Quantity = dec(999)

	fresh := b.Bids()
	require.True(t, fresh[0].Quantity.Equal(dec(5)), "mutating a snapshot must not touch the book")
}

func TestOrdersFor(t *testing.T) {
	b := New()
	mustSubmit(t, b, "W1", Buy, 10, 5)
	mustSubmit(t, b, "W1", Sell, 12, 3)
	mustSubmit(t, b, "W2", Sell, 12, 7)

	buys, sells := b.OrdersFor("W1")
	require.Len(t, buys, 1)
	require.Len(t, sells, 1)
	require.True(t, sells[0].Quantity.Equal(dec(3)))

	buys, sells = b.OrdersFor("W3")
	require.Empty(t, buys)
	require.Empty(t, sells)
}

func TestFeedDeliversChanges(t *testing.T) {
	b := New()
	ch, cancel := b.Feed().Subscribe(16)
	defer cancel()

	mustSubmit(t, b, "W1", Sell, 10, 5)
	mustSubmit(t, b, "W2", Buy, 10, 5)

	first := <-ch
	second := <-ch
	require.Equal(t, Sell, first.Side)
	require.Equal(t, "W1", first.Wallet)
	require.Equal(t, Buy, second.Side)
	require.Equal(t, "W2", second.Wallet)

	cancel()
	_, open := <-ch
	require.False(t, open)
}

func TestFeedSlowSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	_, cancel := b.Feed().Subscribe(1)
	defer cancel()

	// Nobody reads ch; the matching path must still complete.
	for i := 0; i < 10; i++ {
		mustSubmit(t, b, "W1", Sell, 10, 1)
		mustSubmit(t, b, "W2", Buy, 10, 1)
	}
	require.Empty(t, b.Asks())
}

func mustSubmit(t *testing.T, b *Book, wallet string, side Side, price, qty int64) {
	t.Helper()
	_, err := b.Submit(wallet, side, dec(price), dec(qty))
	require.NoError(t, err)
}

// norm strips decimal internals so require.Equal compares by value.
func norm(c Change) Change {
	return Change{
		Side:   c.Side,
		Wallet: c.Wallet,
		Price:  decimal.NewFromInt(c.Price.IntPart()),
		Diff:   decimal.NewFromInt(c.Diff.IntPart()),
	}
}
