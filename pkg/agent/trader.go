package agent

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/avykov/simex/pkg/book"
	"github.com/avykov/simex/pkg/sched"
	"github.com/avykov/simex/pkg/trade"
	"github.com/avykov/simex/pkg/wallet"
)

// Trader is one autonomous participant. Each cycle it enqueues a buy and
// chains the matching sell behind it, jittering both prices around the
// current market price.
type Trader struct {
	wallet *wallet.Wallet
	api    trade.TradeAPI
	sched  *sched.Scheduler
	price  func() decimal.Decimal
	log    *zap.SugaredLogger
	rng    *rand.Rand

	minQty, maxQty int64
}

func NewTrader(w *wallet.Wallet, api trade.TradeAPI, s *sched.Scheduler, price func() decimal.Decimal, minQty, maxQty int64, log *zap.SugaredLogger) *Trader {
	if minQty <= 0 {
		minQty = 1
	}
	if maxQty < minQty {
		maxQty = minQty
	}
	return &Trader{
		wallet: w,
		api:    api,
		sched:  s,
		price:  price,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		minQty: minQty,
		maxQty: maxQty,
	}
}

func (t *Trader) Wallet() string { return t.wallet.Address }

// jitter nudges the reference price by up to ±5%, staying positive.
func (t *Trader) jitter(ref decimal.Decimal) decimal.Decimal {
	bump := decimal.NewFromFloat((t.rng.Float64() - 0.5) / 10)
	p := ref.Add(ref.Mul(bump)).Round(2)
	if !p.IsPositive() {
		return ref
	}
	return p
}

// Cycle enqueues one buy task and one sell task that runs only after the
// buy completed. Returns the two task ids.
func (t *Trader) Cycle() (buyID, sellID string, err error) {
	ref := t.price()
	if !ref.IsPositive() {
		// No asks yet: seed the book at an arbitrary level.
		ref = decimal.NewFromInt(10)
	}
	qty := decimal.NewFromInt(t.minQty + t.rng.Int63n(t.maxQty-t.minQty+1))

	buyID = t.sched.GenID()
	err = t.sched.Enqueue(sched.Task{
		ID: buyID,
		Command: &trade.OfferCommand{
			API:      t.api,
			Side:     book.Buy,
			Wallet:   t.wallet.Address,
			Price:    t.jitter(ref),
			Quantity: qty,
		},
	})
	if err != nil {
		return "", "", err
	}

	sellID = t.sched.GenID()
	err = t.sched.Enqueue(sched.Task{
		ID:    sellID,
		After: buyID,
		Command: &trade.OfferCommand{
			API:      t.api,
			Side:     book.Sell,
			Wallet:   t.wallet.Address,
			Price:    t.jitter(ref),
			Quantity: qty,
		},
	})
	if err != nil {
		return "", "", err
	}

	t.log.Debugw("cycle_enqueued", "wallet", t.wallet.Address, "buy", buyID, "sell", sellID, "quantity", qty)
	return buyID, sellID, nil
}
