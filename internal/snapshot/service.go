// Package snapshot assembles everything needed to display one ticker: the
// live quote, the derived position metrics and a year of daily history.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stockview/internal/market"
	"stockview/internal/metrics"
	"stockview/internal/store"
)

// ErrInvalidTicker is returned for an empty symbol, before any network call.
var ErrInvalidTicker = errors.New("invalid ticker")

// ErrInvalidShares is returned for a non-numeric or negative share count,
// before any network call.
var ErrInvalidShares = errors.New("invalid shares")

// Snapshot is the full bundle produced for one request. It is built fresh
// per call; only the quote/history pair behind it is cached.
type Snapshot struct {
	Ticker  string
	Shares  decimal.Decimal
	Quote   market.Quote
	Metrics metrics.Derived
	History []market.Bar
}

type cacheEntry struct {
	quote    market.Quote
	history  []market.Bar
	storedAt time.Time
}

// Service orchestrates the quote and history fetches behind a single
// GetSnapshot call. It owns the TTL cache and is its only writer; entries
// are immutable once stored, so concurrent readers share them safely.
type Service struct {
	provider    market.Provider
	ttl         time.Duration
	historyDays int
	store       *store.Store

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewService(provider market.Provider, ttl time.Duration, historyDays int, st *store.Store) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if historyDays <= 0 {
		historyDays = 365
	}
	return &Service{
		provider:    provider,
		ttl:         ttl,
		historyDays: historyDays,
		store:       st,
		cache:       make(map[string]cacheEntry),
	}
}

// GetSnapshot validates the raw inputs, then serves from cache or fetches
// the quote and history concurrently. A quote failure fails the request; a
// history failure degrades to an empty series, since the chart is secondary
// to the price itself.
func (s *Service) GetSnapshot(ctx context.Context, ticker, shares string) (Snapshot, error) {
	sym := strings.ToUpper(strings.TrimSpace(ticker))
	if sym == "" {
		return Snapshot{}, fmt.Errorf("%w: empty symbol", ErrInvalidTicker)
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(shares))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %q is not a number", ErrInvalidShares, shares)
	}
	if qty.IsNegative() {
		return Snapshot{}, fmt.Errorf("%w: %q is negative", ErrInvalidShares, shares)
	}

	s.mu.Lock()
	if ent, ok := s.cache[sym]; ok && time.Since(ent.storedAt) < s.ttl {
		s.mu.Unlock()
		return s.build(sym, qty, ent), nil
	}
	s.mu.Unlock()

	if s.provider == nil {
		return Snapshot{}, fmt.Errorf("market provider not configured")
	}

	end := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	start := end.AddDate(0, 0, -s.historyDays)

	// Independent reads, so total latency is the slower of the two rather
	// than their sum.
	var (
		wg      sync.WaitGroup
		quote   market.Quote
		history []market.Bar
		qErr    error
		hErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		quote, qErr = s.provider.FetchQuote(ctx, sym)
	}()
	go func() {
		defer wg.Done()
		history, hErr = s.provider.FetchHistory(ctx, sym, start, end)
	}()
	wg.Wait()

	if qErr != nil {
		return Snapshot{}, fmt.Errorf("quote %s: %w", sym, qErr)
	}
	if hErr != nil {
		log.Printf("history fetch degraded for %s: %v", sym, hErr)
		history = []market.Bar{}
	}
	if history == nil {
		history = []market.Bar{}
	}

	s.record(quote)

	ent := cacheEntry{quote: quote, history: history, storedAt: time.Now()}
	s.mu.Lock()
	s.cache[sym] = ent
	s.mu.Unlock()

	return s.build(sym, qty, ent), nil
}

func (s *Service) build(sym string, qty decimal.Decimal, ent cacheEntry) Snapshot {
	return Snapshot{
		Ticker:  sym,
		Shares:  qty,
		Quote:   ent.quote,
		Metrics: metrics.Compute(ent.quote, qty),
		History: ent.history,
	}
}

func (s *Service) record(q market.Quote) {
	if s.store == nil {
		return
	}
	err := s.store.InsertQuote(store.QuoteRecord{
		Symbol:        q.Symbol,
		Price:         q.Price,
		PrevClose:     q.PrevClose,
		AnalystTarget: q.AnalystTarget,
		FetchedAt:     q.FetchedAt.Unix(),
	})
	if err != nil {
		log.Printf("record quote for %s: %v", q.Symbol, err)
	}
}
