package domain

import "time"

type UpdateKind string

const (
	// UpdateKind_Snapshot fully replaces the book for its instrument.
	UpdateKind_Snapshot UpdateKind = "Snapshot"
	// UpdateKind_Incremental is a set of per-price deltas layered onto the
	// previous materialized book.
	UpdateKind_Incremental UpdateKind = "Incremental"
)

// BookUpdate is the decoded, vendor-agnostic form of a depth event. Levels
// with non-positive quantity are removal signals, they never survive into a
// materialized book.
type BookUpdate struct {
	Symbol    *MarketSymbol
	Timestamp time.Time
	Kind      UpdateKind
	Bids      []BookLevel
	Asks      []BookLevel
}

func NewBookUpdate(symbol *MarketSymbol, ts time.Time, kind UpdateKind, bids, asks []BookLevel) *BookUpdate {
	return &BookUpdate{
		Symbol:    symbol,
		Timestamp: ts,
		Kind:      kind,
		Bids:      bids,
		Asks:      asks,
	}
}
