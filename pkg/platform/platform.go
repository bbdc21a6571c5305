package platform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/avykov/simex/pkg/book"
	"github.com/avykov/simex/pkg/ledger"
	"github.com/avykov/simex/pkg/util"
	"github.com/avykov/simex/pkg/wallet"
)

var (
	ErrUnknownMarket  = errors.New("platform: unknown market")
	ErrMarketExists   = errors.New("platform: market already exists")
	ErrUnknownAccount = errors.New("platform: unknown account")
)

const feedBuffer = 256

// Platform ties books to the ledger. Each market gets its own book; a
// settlement goroutine subscribes to the book's feed and turns every fill
// into a balance move, a circulating-supply bump and a trade record.
type Platform struct {
	mu      sync.RWMutex
	log     *zap.SugaredLogger
	store   *ledger.Store
	clock   util.Clock
	markets map[string]*market
	wg      sync.WaitGroup
}

type market struct {
	symbol string
	book   *book.Book
}

func New(store *ledger.Store, log *zap.SugaredLogger) *Platform {
	return &Platform{
		log:     log,
		store:   store,
		clock:   util.RealClock{},
		markets: make(map[string]*market),
	}
}

// SetClock replaces the settlement clock. Test hook.
func (p *Platform) SetClock(c util.Clock) { p.clock = c }

// CreateMarket registers a new asset with a fixed total supply and starts
// settling its fills.
func (p *Platform) CreateMarket(symbol string, supply decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.markets[symbol]; ok {
		return ErrMarketExists
	}
	if err := p.store.SaveMarket(&ledger.Market{
		Symbol:    symbol,
		Supply:    supply,
		CreatedAt: p.clock.Now().Unix(),
	}); err != nil {
		return fmt.Errorf("create market %s: %w", symbol, err)
	}

	b := book.New()
	ch, _ := b.Feed().Subscribe(feedBuffer)
	p.markets[symbol] = &market{symbol: symbol, book: b}

	p.wg.Add(1)
	go p.settle(symbol, ch)

	p.log.Infow("market_created", "symbol", symbol, "supply", supply)
	return nil
}

// settle consumes fills for one market until its feed subscription ends.
func (p *Platform) settle(symbol string, ch <-chan book.Change) {
	defer p.wg.Done()
	for c := range ch {
		value := c.Diff.Mul(c.Price)
		delta := value
		if c.Side == book.Buy {
			delta = value.Neg()
		}
		if _, err := p.store.AddBalance(c.Wallet, delta); err != nil {
			p.log.Errorw("settle_balance_failed", "symbol", symbol, "wallet", c.Wallet, "err", err)
			continue
		}
		if c.Side == book.Buy {
			if _, err := p.store.AddCirculating(symbol, c.Diff); err != nil {
				p.log.Errorw("settle_supply_failed", "symbol", symbol, "err", err)
			}
		}
		rec := &ledger.Trade{
			ID:       uuid.NewString(),
			Symbol:   symbol,
			Wallet:   c.Wallet,
			Side:     c.Side.String(),
			Price:    c.Price,
			Quantity: c.Diff,
			Time:     p.clock.Now().UnixMilli(),
		}
		if err := p.store.AppendTrade(rec); err != nil {
			p.log.Errorw("settle_record_failed", "symbol", symbol, "err", err)
			continue
		}
		p.log.Debugw("settled",
			"symbol", symbol, "wallet", c.Wallet, "side", c.Side.String(),
			"price", c.Price, "quantity", c.Diff)
	}
}

// CreateTrader generates a fresh wallet and opens its account with the
// given starting balance.
func (p *Platform) CreateTrader(fund decimal.Decimal) (*wallet.Wallet, error) {
	w, err := wallet.Generate()
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveAccount(&ledger.Account{
		Address: w.Address,
		Balance: fund,
	}); err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}
	p.log.Infow("trader_created", "wallet", w.Address, "fund", fund)
	return w, nil
}

// Book returns the live book for a market.
func (p *Platform) Book(symbol string) (*book.Book, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.markets[symbol]
	if !ok {
		return nil, ErrUnknownMarket
	}
	return m.book, nil
}

// Symbols lists registered markets.
func (p *Platform) Symbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.markets))
	for s := range p.markets {
		out = append(out, s)
	}
	return out
}

// Market returns the persisted supply record.
func (p *Platform) Market(symbol string) (*ledger.Market, error) {
	m, err := p.store.LoadMarket(symbol)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrUnknownMarket
	}
	return m, nil
}

// Balance returns a trader's settled cash balance.
func (p *Platform) Balance(addr string) (decimal.Decimal, error) {
	acc, err := p.store.LoadAccount(addr)
	if err != nil {
		return decimal.Zero, err
	}
	if acc == nil {
		return decimal.Zero, ErrUnknownAccount
	}
	return acc.Balance, nil
}

// Traders counts opened accounts.
func (p *Platform) Traders() (int, error) {
	accs, err := p.store.Accounts()
	if err != nil {
		return 0, err
	}
	return len(accs), nil
}

// RecentTrades returns the newest settled trades for a market.
func (p *Platform) RecentTrades(symbol string, limit int) ([]*ledger.Trade, error) {
	return p.store.RecentTrades(symbol, limit)
}

// Close ends every market's settlement stream and waits for in-flight
// fills to be settled.
func (p *Platform) Close() {
	p.mu.Lock()
	for _, m := range p.markets {
		m.book.Feed().Close()
	}
	p.mu.Unlock()
	p.wg.Wait()
}
