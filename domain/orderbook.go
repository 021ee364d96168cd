package domain

import (
	"fmt"
	"time"
)

// OrderBook is the fully materialized state of an instrument's book at a
// point in time: bids sorted descending, asks ascending, no duplicate price
// within a side. Instances are immutable once built by the merge engine.
type OrderBook struct {
	ID        string
	Provider  string
	Symbol    *MarketSymbol
	Timestamp time.Time
	Bids      []BookLevel
	Asks      []BookLevel
}

// BookID derives the deterministic identifier of a materialized book, so
// that the same update always produces the same id downstream.
func BookID(symbol *MarketSymbol, ts time.Time) string {
	return fmt.Sprintf("%s%d", symbol.String(), ts.UnixMilli())
}

// Top returns a copy of the book trimmed to at most limit levels per side.
// A non-positive limit returns the full depth.
func (ob *OrderBook) Top(limit int) *OrderBook {
	bids := make([]BookLevel, len(ob.Bids))
	asks := make([]BookLevel, len(ob.Asks))
	copy(bids, ob.Bids)
	copy(asks, ob.Asks)

	return &OrderBook{
		ID:        ob.ID,
		Provider:  ob.Provider,
		Symbol:    ob.Symbol,
		Timestamp: ob.Timestamp,
		Bids:      limitDepth(bids, limit),
		Asks:      limitDepth(asks, limit),
	}
}

func limitDepth(levels []BookLevel, limit int) []BookLevel {
	if limit > 0 && len(levels) > limit {
		return levels[:limit]
	}

	return levels
}
