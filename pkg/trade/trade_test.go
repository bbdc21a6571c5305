package trade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/avykov/simex/pkg/book"
)

type fakeVenue struct {
	buys, sells int
	failFirst   int
}

func (f *fakeVenue) offer(wallet string, side book.Side, price, qty decimal.Decimal) (*Receipt, error) {
	if f.failFirst > 0 {
		f.failFirst--
		return nil, errors.New("venue unavailable")
	}
	return &Receipt{Wallet: wallet, Side: side, Price: price, Quantity: qty, Matched: qty}, nil
}

func (f *fakeVenue) Buy(_ context.Context, wallet string, price, qty decimal.Decimal) (*Receipt, error) {
	f.buys++
	return f.offer(wallet, book.Buy, price, qty)
}

func (f *fakeVenue) Sell(_ context.Context, wallet string, price, qty decimal.Decimal) (*Receipt, error) {
	f.sells++
	return f.offer(wallet, book.Sell, price, qty)
}

func (f *fakeVenue) Balance(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(100), nil
}

func (f *fakeVenue) Orders(context.Context, string) ([]book.RestingOrder, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	venue := &fakeVenue{}

	require.NoError(t, r.Register("sim", venue))
	require.ErrorIs(t, r.Register("sim", venue), ErrDuplicate)

	got, err := r.Lookup("sim")
	require.NoError(t, err)
	require.Equal(t, TradeAPI(venue), got)

	_, err = r.Lookup("nope")
	require.ErrorIs(t, err, ErrUnknownVenue)

	require.Equal(t, []string{"sim"}, r.Names())
}

func TestOfferCommandExecutes(t *testing.T) {
	venue := &fakeVenue{}
	var got *Receipt
	cmd := &OfferCommand{
		API:       venue,
		Side:      book.Buy,
		Wallet:    "0x1",
		Price:     decimal.NewFromInt(10),
		Quantity:  decimal.NewFromInt(5),
		OnReceipt: func(r *Receipt) { got = r },
	}
	require.NoError(t, cmd.Execute(context.Background()))
	require.Equal(t, 1, venue.buys)
	require.NotNil(t, got)
	require.True(t, got.Matched.Equal(decimal.NewFromInt(5)))
}

func TestOfferCommandDeclined(t *testing.T) {
	venue := &fakeVenue{}
	cmd := &OfferCommand{
		API:       venue,
		Side:      book.Sell,
		Wallet:    "0x1",
		Price:     decimal.NewFromInt(10),
		Quantity:  decimal.NewFromInt(5),
		DeclineIf: func() bool { return true },
	}
	require.NoError(t, cmd.Execute(context.Background()))
	require.Zero(t, venue.sells)
}

func TestOfferCommandBadSide(t *testing.T) {
	cmd := &OfferCommand{API: &fakeVenue{}, Wallet: "0x1"}
	require.ErrorIs(t, cmd.Execute(context.Background()), book.ErrBadSide)
}

func TestRetrierRecovers(t *testing.T) {
	venue := &fakeVenue{failFirst: 2}
	r := NewRetrier(venue, 3, time.Millisecond, time.Second)

	rcpt, err := r.Buy(context.Background(), "0x1", decimal.NewFromInt(10), decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NotNil(t, rcpt)
	require.Equal(t, 3, venue.buys)
}

func TestRetrierExhausted(t *testing.T) {
	venue := &fakeVenue{failFirst: 10}
	r := NewRetrier(venue, 2, time.Millisecond, time.Second)

	_, err := r.Sell(context.Background(), "0x1", decimal.NewFromInt(10), decimal.NewFromInt(1))
	require.Error(t, err)
	require.Equal(t, 2, venue.sells)
}

func TestRetrierHonorsContext(t *testing.T) {
	venue := &fakeVenue{failFirst: 10}
	r := NewRetrier(venue, 5, 50*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Buy(ctx, "0x1", decimal.NewFromInt(10), decimal.NewFromInt(1))
	require.ErrorIs(t, err, context.Canceled)
}
