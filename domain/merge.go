package domain

// MergeBookUpdate computes the next materialized book from the previous one
// and a decoded update. It is a pure function: the previous book is never
// mutated, all state handoff goes through the BookStorage.
//
// A Snapshot update, or any update for an instrument without previous state,
// rebuilds the book from the update's levels alone. An Incremental update is
// layered per side: existing price + non-positive quantity removes the
// level, existing price + positive quantity replaces quantity and order
// count wholesale, absent price + positive quantity inserts. Removing an
// absent price is a no-op, not an error.
func MergeBookUpdate(provider string, prev *OrderBook, upd *BookUpdate) *OrderBook {
	if prev == nil || upd.Kind == UpdateKind_Snapshot {
		return &OrderBook{
			ID:        BookID(upd.Symbol, upd.Timestamp),
			Provider:  provider,
			Symbol:    upd.Symbol,
			Timestamp: upd.Timestamp,
			Bids:      rebuildSide(upd.Bids, sortBids),
			Asks:      rebuildSide(upd.Asks, sortAsks),
		}
	}

	return &OrderBook{
		ID:        BookID(upd.Symbol, upd.Timestamp),
		Provider:  provider,
		Symbol:    upd.Symbol,
		Timestamp: upd.Timestamp,
		Bids:      applyDeltas(prev.Bids, upd.Bids, sortBids),
		Asks:      applyDeltas(prev.Asks, upd.Asks, sortAsks),
	}
}

// rebuildSide materializes one side from snapshot levels: duplicates of a
// price collapse to the last occurrence, non-positive quantities are
// dropped.
func rebuildSide(levels []BookLevel, sortSide func([]BookLevel)) []BookLevel {
	byPrice := make(map[string]BookLevel, len(levels))
	for _, level := range levels {
		if level.Quantity.Sign() <= 0 {
			delete(byPrice, level.PriceKey())
			continue
		}
		byPrice[level.PriceKey()] = level
	}

	return collectSide(byPrice, sortSide)
}

func applyDeltas(prev []BookLevel, deltas []BookLevel, sortSide func([]BookLevel)) []BookLevel {
	byPrice := make(map[string]BookLevel, len(prev)+len(deltas))
	for _, level := range prev {
		byPrice[level.PriceKey()] = level
	}

	for _, delta := range deltas {
		key := delta.PriceKey()
		if delta.Quantity.Sign() <= 0 {
			delete(byPrice, key)
			continue
		}
		byPrice[key] = delta
	}

	return collectSide(byPrice, sortSide)
}

func collectSide(byPrice map[string]BookLevel, sortSide func([]BookLevel)) []BookLevel {
	side := make([]BookLevel, 0, len(byPrice))
	for _, level := range byPrice {
		side = append(side, level)
	}
	sortSide(side)

	return side
}
