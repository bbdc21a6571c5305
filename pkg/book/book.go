package book

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Book is a simplified continuous double auction for a single asset: resting
// interest is aggregated per (wallet, price), and an incoming order crosses
// resting opposite-side interest at exactly the same price, in arrival order.
// There is no price improvement and no self-trading.
//
// Mutations are serialized by an internal mutex; Submit is safe to call from
// concurrent tasks.
type Book struct {
	mu    sync.RWMutex
	buys  []*RestingOrder // arrival order
	sells []*RestingOrder

	feed *Feed
}

func New() *Book {
	return &Book{feed: NewFeed()}
}

// Feed returns the change-event feed of this book. Settlement collaborators
// subscribe here; the book itself never touches balances or persistence.
func (b *Book) Feed() *Feed { return b.feed }

// AddBuy submits buy interest. See Submit.
func (b *Book) AddBuy(wallet string, price, quantity decimal.Decimal) ([]Change, error) {
	return b.Submit(wallet, Buy, price, quantity)
}

// AddSell submits sell interest. See Submit.
func (b *Book) AddSell(wallet string, price, quantity decimal.Decimal) ([]Change, error) {
	return b.Submit(wallet, Sell, price, quantity)
}

// Submit aggregates the order into its side of the book, crosses it against
// resting opposite-side interest at the same price from other wallets, and
// returns the changes in emission order. The same changes are published on
// the feed. Validation failures reject the whole order; nothing is applied.
func (b *Book) Submit(wallet string, side Side, price, quantity decimal.Decimal) ([]Change, error) {
	if wallet == "" {
		return nil, ErrNoWallet
	}
	if side != Buy && side != Sell {
		return nil, ErrBadSide
	}
	if price.Sign() <= 0 {
		return nil, ErrBadPrice
	}
	if quantity.Sign() <= 0 {
		return nil, ErrBadQuantity
	}

	b.mu.Lock()
	changes := b.process(wallet, side, price, quantity)
	b.mu.Unlock()

	b.feed.Publish(changes)
	return changes, nil
}

// process runs the crossing walk under the lock.
func (b *Book) process(wallet string, side Side, price, quantity decimal.Decimal) []Change {
	own, opp := b.sides(side)

	// Aggregate into the submitting side first: any unmatched remainder is
	// already resting when the walk ends.
	entry := findEntry(*own, wallet, price)
	if entry == nil {
		entry = &RestingOrder{Wallet: wallet, Price: price, Quantity: quantity}
		*own = append(*own, entry)
	} else {
		entry.Quantity = entry.Quantity.Add(quantity)
	}

	var changes []Change
	remaining := quantity

	// Walk counter-party candidates in arrival order: same price, different
	// wallet. Self-trades are never crossed.
	for i := 0; i < len(*opp) && remaining.Sign() > 0; {
		cand := (*opp)[i]
		if !cand.Price.Equal(price) || cand.Wallet == wallet {
			i++
			continue
		}
		if cand.Quantity.LessThanOrEqual(remaining) {
			// Candidate fully consumed: remove it from its side.
			remaining = remaining.Sub(cand.Quantity)
			changes = append(changes, Change{Side: side.Opposite(), Wallet: cand.Wallet, Price: price, Diff: cand.Quantity})
			*opp = append((*opp)[:i], (*opp)[i+1:]...)
			continue
		}
		// Candidate partially consumed: the walk ends here.
		consumed := remaining
		cand.Quantity = cand.Quantity.Sub(consumed)
		changes = append(changes, Change{Side: side.Opposite(), Wallet: cand.Wallet, Price: price, Diff: consumed})
		remaining = decimal.Zero
	}

	// The submitter's aggregate gives up exactly the matched amount; a
	// zero-quantity entry is pruned immediately.
	matched := quantity.Sub(remaining)
	if matched.Sign() > 0 {
		entry.Quantity = entry.Quantity.Sub(matched)
		if entry.Quantity.Sign() == 0 {
			*own = removeEntry(*own, entry)
		}
		changes = append(changes, Change{Side: side, Wallet: wallet, Price: price, Diff: matched})
	}
	return changes
}

func (b *Book) sides(side Side) (own, opp *[]*RestingOrder) {
	if side == Buy {
		return &b.buys, &b.sells
	}
	return &b.sells, &b.buys
}

func findEntry(orders []*RestingOrder, wallet string, price decimal.Decimal) *RestingOrder {
	for _, o := range orders {
		if o.Wallet == wallet && o.Price.Equal(price) {
			return o
		}
	}
	return nil
}

func removeEntry(orders []*RestingOrder, target *RestingOrder) []*RestingOrder {
	for i, o := range orders {
		if o == target {
			return append(orders[:i], orders[i+1:]...)
		}
	}
	return orders
}

// BestBid returns the resting buy with the highest price.
func (b *Book) BestBid() (RestingOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return extremum(b.buys, func(a, c decimal.Decimal) bool { return a.GreaterThan(c) })
}

// BestAsk returns the resting sell with the lowest price.
func (b *Book) BestAsk() (RestingOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return extremum(b.sells, func(a, c decimal.Decimal) bool { return a.LessThan(c) })
}

func extremum(orders []*RestingOrder, better func(a, c decimal.Decimal) bool) (RestingOrder, bool) {
	if len(orders) == 0 {
		return RestingOrder{}, false
	}
	best := orders[0]
	for _, o := range orders[1:] {
		if better(o.Price, best.Price) {
			best = o
		}
	}
	return *best, true
}

// Price returns the best ask price, or -1 when no asks rest.
func (b *Book) Price() decimal.Decimal {
	if ask, ok := b.BestAsk(); ok {
		return ask.Price
	}
	return decimal.NewFromInt(-1)
}

// Bids returns a copy of the resting buy side, not a live view.
func (b *Book) Bids() []RestingOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return snapshot(b.buys)
}

// Asks returns a copy of the resting sell side, not a live view.
func (b *Book) Asks() []RestingOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return snapshot(b.sells)
}

func snapshot(orders []*RestingOrder) []RestingOrder {
	out := make([]RestingOrder, len(orders))
	for i, o := range orders {
		out[i] = *o
	}
	return out
}

// OrdersFor returns the wallet's resting interest on both sides.
func (b *Book) OrdersFor(wallet string) (buys, sells []RestingOrder) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.buys {
		if o.Wallet == wallet {
			buys = append(buys, *o)
		}
	}
	for _, o := range b.sells {
		if o.Wallet == wallet {
			sells = append(sells, *o)
		}
	}
	return buys, sells
}
