package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func mustSymbol(t *testing.T) *MarketSymbol {
	t.Helper()
	symbol, err := NewMarketSymbol("BTC", "USDT")
	if err != nil {
		t.Fatal(err)
	}
	return symbol
}

func level(price, qty string) BookLevel {
	return BookLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func TestMergeSnapshotRebuildsBook(t *testing.T) {
	symbol := mustSymbol(t)
	ts := time.UnixMilli(1700000000000)

	upd := NewBookUpdate(symbol, ts, UpdateKind_Snapshot,
		[]BookLevel{level("9900", "2"), level("10000", "1")},
		[]BookLevel{level("10200", "2.5"), level("10100", "1.5")},
	)

	book := MergeBookUpdate("okex", nil, upd)

	assert.Equal(t, "okex", book.Provider)
	assert.Equal(t, "btc_usdt1700000000000", book.ID)
	assert.Equal(t, []BookLevel{level("10000", "1"), level("9900", "2")}, book.Bids, "bids should be sorted descending")
	assert.Equal(t, []BookLevel{level("10100", "1.5"), level("10200", "2.5")}, book.Asks, "asks should be sorted ascending")
}

func TestMergeSnapshotIsIdempotent(t *testing.T) {
	symbol := mustSymbol(t)
	ts := time.UnixMilli(1700000000000)

	upd := NewBookUpdate(symbol, ts, UpdateKind_Snapshot,
		[]BookLevel{level("10000", "1"), level("9900", "2")},
		[]BookLevel{level("10100", "1.5")},
	)

	first := MergeBookUpdate("okex", nil, upd)
	second := MergeBookUpdate("okex", first, upd)

	assert.Equal(t, first, second, "merging the same snapshot twice should yield identical books")
}

func TestMergeSnapshotDuplicatePriceLastWriteWins(t *testing.T) {
	symbol := mustSymbol(t)

	upd := NewBookUpdate(symbol, time.Now(), UpdateKind_Snapshot,
		[]BookLevel{level("10000", "1"), level("10000.00", "7")},
		nil,
	)

	book := MergeBookUpdate("okex", nil, upd)

	assert.Len(t, book.Bids, 1, "numerically equal prices should collapse to one level")
	assert.True(t, book.Bids[0].Quantity.Equal(decimal.RequireFromString("7")))
}

func TestMergeIncrementalRemoval(t *testing.T) {
	symbol := mustSymbol(t)

	prev := MergeBookUpdate("okex", nil, NewBookUpdate(symbol, time.Now(), UpdateKind_Snapshot,
		[]BookLevel{level("100", "5"), level("99", "1")},
		nil,
	))

	next := MergeBookUpdate("okex", prev, NewBookUpdate(symbol, time.Now(), UpdateKind_Incremental,
		[]BookLevel{level("100", "0")},
		nil,
	))

	assert.Equal(t, []BookLevel{level("99", "1")}, next.Bids, "zero quantity should remove the price level")
}

func TestMergeIncrementalRemovalIgnoresVendorFormatting(t *testing.T) {
	symbol := mustSymbol(t)

	prev := MergeBookUpdate("okex", nil, NewBookUpdate(symbol, time.Now(), UpdateKind_Snapshot,
		[]BookLevel{level("100.50", "5")},
		nil,
	))

	next := MergeBookUpdate("okex", prev, NewBookUpdate(symbol, time.Now(), UpdateKind_Incremental,
		[]BookLevel{level("100.5000", "0")},
		nil,
	))

	assert.Empty(t, next.Bids, "trailing zeros must not split price levels")
}

func TestMergeIncrementalInsertion(t *testing.T) {
	symbol := mustSymbol(t)

	prev := MergeBookUpdate("okex", nil, NewBookUpdate(symbol, time.Now(), UpdateKind_Snapshot,
		nil,
		[]BookLevel{level("150", "1"), level("250", "2")},
	))

	next := MergeBookUpdate("okex", prev, NewBookUpdate(symbol, time.Now(), UpdateKind_Incremental,
		nil,
		[]BookLevel{level("200", "3")},
	))

	assert.Equal(t, []BookLevel{level("150", "1"), level("200", "3"), level("250", "2")}, next.Asks,
		"inserted ask should be positioned by sort order")
}

func TestMergeIncrementalReplacesQuantityAndOrderCount(t *testing.T) {
	symbol := mustSymbol(t)

	withCount := level("100", "5")
	withCount.OrderCount = 3

	prev := MergeBookUpdate("okex", nil, NewBookUpdate(symbol, time.Now(), UpdateKind_Snapshot,
		[]BookLevel{withCount},
		nil,
	))

	replacement := level("100", "9")
	replacement.OrderCount = 8

	next := MergeBookUpdate("okex", prev, NewBookUpdate(symbol, time.Now(), UpdateKind_Incremental,
		[]BookLevel{replacement},
		nil,
	))

	assert.Equal(t, []BookLevel{replacement}, next.Bids, "quantity and order count should be replaced together")
}

func TestMergeNoopRemoval(t *testing.T) {
	symbol := mustSymbol(t)

	prev := MergeBookUpdate("okex", nil, NewBookUpdate(symbol, time.Now(), UpdateKind_Snapshot,
		[]BookLevel{level("100", "5"), level("99", "1")},
		[]BookLevel{level("101", "2")},
	))

	next := MergeBookUpdate("okex", prev, NewBookUpdate(symbol, time.Now(), UpdateKind_Incremental,
		[]BookLevel{level("999", "0")},
		nil,
	))

	assert.Equal(t, prev.Bids, next.Bids, "removing an absent price should leave the side unchanged")
	assert.Equal(t, prev.Asks, next.Asks)
}

func TestMergeBootstrapTreatsIncrementalAsSnapshot(t *testing.T) {
	symbol := mustSymbol(t)

	book := MergeBookUpdate("okex", nil, NewBookUpdate(symbol, time.Now(), UpdateKind_Incremental,
		[]BookLevel{level("100", "1")},
		[]BookLevel{level("200", "2")},
	))

	assert.Equal(t, []BookLevel{level("100", "1")}, book.Bids)
	assert.Equal(t, []BookLevel{level("200", "2")}, book.Asks)
}

func TestMergeSortInvariant(t *testing.T) {
	symbol := mustSymbol(t)

	book := MergeBookUpdate("okex", nil, NewBookUpdate(symbol, time.Now(), UpdateKind_Snapshot,
		[]BookLevel{level("1", "1"), level("3", "1"), level("2", "1")},
		[]BookLevel{level("9", "1"), level("7", "1"), level("8", "1")},
	))

	book = MergeBookUpdate("okex", book, NewBookUpdate(symbol, time.Now(), UpdateKind_Incremental,
		[]BookLevel{level("2.5", "1"), level("3", "0")},
		[]BookLevel{level("7.5", "1")},
	))

	for i := 1; i < len(book.Bids); i++ {
		assert.True(t, book.Bids[i-1].Price.GreaterThan(book.Bids[i].Price), "bids must be strictly descending")
	}
	for i := 1; i < len(book.Asks); i++ {
		assert.True(t, book.Asks[i-1].Price.LessThan(book.Asks[i].Price), "asks must be strictly ascending")
	}
}
