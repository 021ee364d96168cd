package domain

import (
	"errors"
	"sync"
)

var ErrOrderBookNotFound = errors.New("order book not found")

// BookStorage owns the last materialized book per instrument for one
// subscription session. Access per instrument is linearizable: Apply runs
// its read-modify-write under a per-entry lock, so two merges for the same
// instrument can never interleave, while different instruments proceed
// fully in parallel.
type BookStorage struct {
	mu      sync.RWMutex
	entries map[string]*bookEntry
}

type bookEntry struct {
	mu   sync.Mutex
	book *OrderBook
}

func NewBookStorage() *BookStorage {
	return &BookStorage{
		entries: make(map[string]*bookEntry),
	}
}

// Apply atomically replaces the stored book for the symbol with the result
// of fn, which receives the previous book (nil on first use) and returns
// the next one. The next book is returned to the caller.
func (s *BookStorage) Apply(symbol *MarketSymbol, fn func(prev *OrderBook) *OrderBook) *OrderBook {
	entry := s.entry(symbol)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.book = fn(entry.book)
	return entry.book
}

func (s *BookStorage) Get(symbol *MarketSymbol) (*OrderBook, error) {
	s.mu.RLock()
	entry, ok := s.entries[symbol.String()]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrOrderBookNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.book == nil {
		return nil, ErrOrderBookNotFound
	}
	return entry.book, nil
}

func (s *BookStorage) Put(symbol *MarketSymbol, book *OrderBook) {
	entry := s.entry(symbol)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.book = book
}

// Drop discards the instrument's entry. Called on subscription teardown;
// the next update after a Drop bootstraps a fresh baseline.
func (s *BookStorage) Drop(symbol *MarketSymbol) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, symbol.String())
}

func (s *BookStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

func (s *BookStorage) entry(symbol *MarketSymbol) *bookEntry {
	key := symbol.String()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		return entry
	}

	entry = &bookEntry{}
	s.entries[key] = entry
	return entry
}
