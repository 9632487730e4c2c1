package arbitrage

import (
	"sort"
	"sync"

	"arbwatch/internal/model"
)

// instrumentBook holds the latest quote per exchange for one instrument.
type instrumentBook struct {
	mu     sync.RWMutex
	order  []string
	quotes map[string]model.PriceQuote
}

func (b *instrumentBook) put(q model.PriceQuote) {
	if _, ok := b.quotes[q.Exchange]; !ok {
		b.order = append(b.order, q.Exchange)
	}
	b.quotes[q.Exchange] = q
}

func (b *instrumentBook) list() []model.PriceQuote {
	out := make([]model.PriceQuote, 0, len(b.order))
	for _, ex := range b.order {
		out = append(out, b.quotes[ex])
	}
	return out
}

// PriceStore keeps only the latest quote per (instrument, exchange).
// Each instrument has its own lock, so different instruments are updated in parallel.
type PriceStore struct {
	mu    sync.RWMutex
	books map[string]*instrumentBook
}

// NewPriceStore creates an empty PriceStore.
func NewPriceStore() *PriceStore {
	return &PriceStore{books: make(map[string]*instrumentBook)}
}

func (s *PriceStore) book(instrument string, create bool) *instrumentBook {
	s.mu.RLock()
	b := s.books[instrument]
	s.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b = s.books[instrument]; b == nil {
		b = &instrumentBook{quotes: make(map[string]model.PriceQuote)}
		s.books[instrument] = b
	}
	return b
}

// Put replaces the stored quote for (q.Instrument, q.Exchange).
func (s *PriceStore) Put(q model.PriceQuote) {
	s.PutAndScan(q, nil)
}

// PutAndScan stores q and, while still holding the instrument's exclusive
// lock, passes every known quote for that instrument to scan. No other
// update to the same instrument can land between the write and the scan.
func (s *PriceStore) PutAndScan(q model.PriceQuote, scan func(quotes []model.PriceQuote)) {
	b := s.book(q.Instrument, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.put(q)
	if scan != nil {
		scan(b.list())
	}
}

// Quotes returns all known quotes for an instrument, in first-reported order.
func (s *PriceStore) Quotes(instrument string) []model.PriceQuote {
	b := s.book(instrument, false)
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.list()
}

// Quote returns the quote for one (instrument, exchange) pair.
func (s *PriceStore) Quote(instrument, exchange string) (model.PriceQuote, bool) {
	b := s.book(instrument, false)
	if b == nil {
		return model.PriceQuote{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[exchange]
	return q, ok
}

// Price returns the latest price of instrument on exchange.
func (s *PriceStore) Price(exchange, instrument string) (float64, bool) {
	q, ok := s.Quote(instrument, exchange)
	return q.Price, ok
}

// Instruments returns the sorted list of instruments with at least one quote.
func (s *PriceStore) Instruments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.books))
	for k := range s.books {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns every known quote grouped by instrument.
func (s *PriceStore) Snapshot() map[string][]model.PriceQuote {
	out := make(map[string][]model.PriceQuote)
	for _, inst := range s.Instruments() {
		if quotes := s.Quotes(inst); len(quotes) > 0 {
			out[inst] = quotes
		}
	}
	return out
}
