package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Trade is one settled fill. Each record carries the keccak hash of its
// predecessor so the per-market ledger forms a verifiable chain. Seq is the
// record's position in that chain; records are keyed by Seq, not by Time,
// so key order always matches append order even when several fills settle
// within the same millisecond.
type Trade struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	Wallet   string          `json:"wallet"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Time     int64           `json:"time"`
	Seq      uint64          `json:"seq"`
	PrevHash string          `json:"prevHash"`
	Hash     string          `json:"hash"`
}

// chainHead is the per-market chain tip stored under the head key.
type chainHead struct {
	Hash string `json:"hash"`
	Seq  uint64 `json:"seq"`
}

func (t *Trade) digest() string {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%d|%d|%s",
		t.ID, t.Symbol, t.Wallet, t.Side,
		t.Price.String(), t.Quantity.String(), t.Time, t.Seq, t.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

// AppendTrade chains the record onto the market's ledger. Seq, PrevHash and
// Hash are filled in here; callers supply the rest.
func (s *Store) AppendTrade(t *Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var head chainHead
	data, closer, err := s.db.Get(tradeHeadKey(t.Symbol))
	switch {
	case err == pebble.ErrNotFound:
	case err != nil:
		return fmt.Errorf("get trade head: %w", err)
	default:
		uerr := json.Unmarshal(data, &head)
		closer.Close()
		if uerr != nil {
			return fmt.Errorf("unmarshal trade head: %w", uerr)
		}
	}
	t.Seq = head.Seq + 1
	t.PrevHash = head.Hash
	t.Hash = t.digest()

	rec, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	newHead, err := json.Marshal(chainHead{Hash: t.Hash, Seq: t.Seq})
	if err != nil {
		return fmt.Errorf("marshal trade head: %w", err)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(tradeKey(t.Symbol, t.Seq), rec, nil); err != nil {
		return err
	}
	if err := batch.Set(tradeHeadKey(t.Symbol), newHead, nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("commit trade: %w", err)
	}
	return nil
}

// RecentTrades returns up to limit trades for the market, newest first.
func (s *Store) RecentTrades(symbol string, limit int) ([]*Trade, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Trade
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		var t Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

// VerifyChain walks the market's trades in sequence order and recomputes
// each hash, reporting the first record that breaks the chain.
func (s *Store) VerifyChain(symbol string) error {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	prev := ""
	var seq uint64
	for iter.First(); iter.Valid(); iter.Next() {
		var t Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return fmt.Errorf("corrupt trade record %q: %w", iter.Key(), err)
		}
		seq++
		if t.Seq != seq {
			return fmt.Errorf("trade %s: sequence gap", t.ID)
		}
		if t.PrevHash != prev {
			return fmt.Errorf("trade %s: broken chain link", t.ID)
		}
		if t.digest() != t.Hash {
			return fmt.Errorf("trade %s: hash mismatch", t.ID)
		}
		prev = t.Hash
	}
	return nil
}
