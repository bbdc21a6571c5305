package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/avykov/simex/pkg/book"
	"github.com/avykov/simex/pkg/sched"
	"github.com/avykov/simex/pkg/trade"
	"github.com/avykov/simex/pkg/wallet"
)

// Exchange is the slice of the platform the foreman needs.
type Exchange interface {
	CreateTrader(fund decimal.Decimal) (*wallet.Wallet, error)
	Book(symbol string) (*book.Book, error)
}

// ForemanConfig sizes the swarm.
type ForemanConfig struct {
	Symbol   string
	Count    int
	Interval time.Duration
	Fund     decimal.Decimal
	MinQty   int64
	MaxQty   int64
}

// Foreman spawns a swarm of traders against one market and keeps them
// cycling until its context ends.
type Foreman struct {
	cfg      ForemanConfig
	ex       Exchange
	registry *trade.Registry
	sched    *sched.Scheduler
	log      *zap.SugaredLogger
	traders  []*Trader
}

func NewForeman(cfg ForemanConfig, ex Exchange, registry *trade.Registry, s *sched.Scheduler, log *zap.SugaredLogger) *Foreman {
	return &Foreman{cfg: cfg, ex: ex, registry: registry, sched: s, log: log}
}

// Spawn creates the trader accounts. Safe to call once before Run.
func (f *Foreman) Spawn() error {
	v, err := f.registry.Lookup(f.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("foreman: %w", err)
	}
	api := trade.NewRetrier(v, trade.DefaultAttempts, trade.DefaultBackoff, trade.DefaultTryTimeout)

	b, err := f.ex.Book(f.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("foreman: %w", err)
	}
	price := func() decimal.Decimal { return b.Price() }

	for i := 0; i < f.cfg.Count; i++ {
		w, err := f.ex.CreateTrader(f.cfg.Fund)
		if err != nil {
			return fmt.Errorf("foreman: spawn trader %d: %w", i, err)
		}
		f.traders = append(f.traders, NewTrader(w, api, f.sched, price, f.cfg.MinQty, f.cfg.MaxQty, f.log))
	}
	f.log.Infow("swarm_spawned", "symbol", f.cfg.Symbol, "traders", len(f.traders))
	return nil
}

// Run cycles every trader on the configured interval and logs scheduler
// metrics once in a while. Blocks until ctx is done.
func (f *Foreman) Run(ctx context.Context) {
	tick := time.NewTicker(f.cfg.Interval)
	defer tick.Stop()
	report := time.NewTicker(10 * f.cfg.Interval)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			for _, tr := range f.traders {
				if _, _, err := tr.Cycle(); err != nil {
					f.log.Warnw("cycle_failed", "wallet", tr.Wallet(), "err", err)
				}
			}
		case <-report.C:
			m := f.sched.Metrics()
			f.log.Infow("swarm_progress",
				"processed", m.ProcessedTasks,
				"outstanding", m.TotalTasks,
				"active", m.ActiveTasks,
				"awaiting", m.AwaitingTasks,
				"errors", m.Errors,
				"avg_exec", m.AvgExecTime)
		}
	}
}

// Traders exposes the spawned traders.
func (f *Foreman) Traders() []*Trader { return f.traders }
