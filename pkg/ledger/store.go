package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"
)

// Store persists trader balances, market supply counters and the trade
// ledger in Pebble. Balance updates are read-modify-write and serialized by
// an internal mutex; the matching path never calls in here directly — the
// platform's settlement subscriber does.
type Store struct {
	mu sync.Mutex
	db *pebble.DB
}

// Account is a trader's settled cash balance.
type Account struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

// Market is the per-asset supply record.
type Market struct {
	Symbol      string          `json:"symbol"`
	Supply      decimal.Decimal `json:"supply"`
	Circulating decimal.Decimal `json:"circulating"`
	CreatedAt   int64           `json:"createdAt"`
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// keys: a:<address>, m:<symbol>, t:<symbol>:<ts>:<id>, th:<symbol>
func accountKey(addr string) []byte    { return []byte("a:" + addr) }
func marketKey(symbol string) []byte   { return []byte("m:" + symbol) }
func tradeHeadKey(symbol string) []byte { return []byte("th:" + symbol) }
func tradePrefix(symbol string) []byte { return []byte("t:" + symbol + ":") }
func tradeKey(symbol string, seq uint64) []byte {
	return []byte(fmt.Sprintf("t:%s:%020d", symbol, seq))
}

func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// SaveAccount creates or replaces an account record.
func (s *Store) SaveAccount(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	if err := s.db.Set(accountKey(acc.Address), data, pebble.Sync); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// LoadAccount returns nil when the account does not exist.
func (s *Store) LoadAccount(addr string) (*Account, error) {
	data, closer, err := s.db.Get(accountKey(addr))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	defer closer.Close()

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &acc, nil
}

// AddBalance applies a signed delta to the account's balance and returns the
// new balance. Missing accounts start from zero.
func (s *Store) AddBalance(addr string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.LoadAccount(addr)
	if err != nil {
		return decimal.Zero, err
	}
	if acc == nil {
		acc = &Account{Address: addr}
	}
	acc.Balance = acc.Balance.Add(delta)
	if err := s.SaveAccount(acc); err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// Accounts returns every stored account.
func (s *Store) Accounts() ([]*Account, error) {
	prefix := []byte("a:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Account
	for iter.First(); iter.Valid(); iter.Next() {
		var acc Account
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			continue
		}
		out = append(out, &acc)
	}
	return out, nil
}

// SaveMarket creates or replaces a market record.
func (s *Store) SaveMarket(m *Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal market: %w", err)
	}
	if err := s.db.Set(marketKey(m.Symbol), data, pebble.Sync); err != nil {
		return fmt.Errorf("save market: %w", err)
	}
	return nil
}

// LoadMarket returns nil when the market does not exist.
func (s *Store) LoadMarket(symbol string) (*Market, error) {
	data, closer, err := s.db.Get(marketKey(symbol))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}
	defer closer.Close()

	var m Market
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal market: %w", err)
	}
	return &m, nil
}

// Markets returns every stored market.
func (s *Store) Markets() ([]*Market, error) {
	prefix := []byte("m:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Market
	for iter.First(); iter.Valid(); iter.Next() {
		var m Market
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}

// AddCirculating bumps the market's circulating-supply counter by diff and
// returns the updated record.
func (s *Store) AddCirculating(symbol string, diff decimal.Decimal) (*Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.LoadMarket(symbol)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("market %s not found", symbol)
	}
	m.Circulating = m.Circulating.Add(diff)
	if err := s.SaveMarket(m); err != nil {
		return nil, err
	}
	return m, nil
}
