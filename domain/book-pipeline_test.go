package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestUpdateStream(topic string) (*Subscription[*BookUpdate], chan *BookUpdate) {
	in := make(chan *BookUpdate)
	return &Subscription[*BookUpdate]{
		Stream:      in,
		Topic:       topic,
		Unsubscribe: func() {},
	}, in
}

func TestBookPipelineEmitsOneBookPerUpdate(t *testing.T) {
	symbol := mustSymbol(t)
	storage := NewBookStorage()
	updates, in := newTestUpdateStream("depth:btc_usdt")

	pipeline := NewBookPipeline("huobi", symbol, storage, updates)
	books := pipeline.Run()
	defer pipeline.Stop()

	go func() {
		in <- NewBookUpdate(symbol, time.UnixMilli(1), UpdateKind_Snapshot,
			[]BookLevel{level("100", "1")}, []BookLevel{level("101", "1")})
		in <- NewBookUpdate(symbol, time.UnixMilli(2), UpdateKind_Incremental,
			[]BookLevel{level("99", "2")}, nil)
		// net effect is empty, a book must still be emitted
		in <- NewBookUpdate(symbol, time.UnixMilli(3), UpdateKind_Incremental,
			[]BookLevel{level("999", "0")}, nil)
	}()

	first := <-books.Stream
	assert.Equal(t, []BookLevel{level("100", "1")}, first.Bids)

	second := <-books.Stream
	assert.Equal(t, []BookLevel{level("100", "1"), level("99", "2")}, second.Bids)

	third := <-books.Stream
	assert.Equal(t, second.Bids, third.Bids, "no-op update should re-emit the same levels")
	assert.Equal(t, time.UnixMilli(3), third.Timestamp)
}

func TestBookPipelineStopClosesStreamAndDropsState(t *testing.T) {
	symbol := mustSymbol(t)
	storage := NewBookStorage()
	updates, in := newTestUpdateStream("depth:btc_usdt")

	pipeline := NewBookPipeline("huobi", symbol, storage, updates)
	books := pipeline.Run()

	in <- NewBookUpdate(symbol, time.UnixMilli(1), UpdateKind_Snapshot,
		[]BookLevel{level("100", "1")}, nil)
	<-books.Stream

	_, err := storage.Get(symbol)
	assert.NoError(t, err)

	pipeline.Stop()

	_, ok := <-books.Stream
	assert.False(t, ok, "book stream should be closed after Stop")

	_, err = storage.Get(symbol)
	assert.Equal(t, ErrOrderBookNotFound, err, "storage entry should be dropped on teardown")
}

func TestBookPipelineStopsWhenUpstreamCloses(t *testing.T) {
	symbol := mustSymbol(t)
	storage := NewBookStorage()
	updates, in := newTestUpdateStream("depth:btc_usdt")

	pipeline := NewBookPipeline("huobi", symbol, storage, updates)
	books := pipeline.Run()

	close(in)

	_, ok := <-books.Stream
	assert.False(t, ok, "book stream should end when upstream ends")
}
