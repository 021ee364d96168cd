package usecase_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/spooky-finn/go-marketfeed/domain"
	"github.com/spooky-finn/go-marketfeed/usecase"
)

type fakeStreamAPI struct {
	depth  map[string]chan *domain.BookUpdate
	trades map[string]chan *domain.TickData
}

func newFakeStreamAPI() *fakeStreamAPI {
	return &fakeStreamAPI{
		depth:  make(map[string]chan *domain.BookUpdate),
		trades: make(map[string]chan *domain.TickData),
	}
}

func (f *fakeStreamAPI) DepthStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.BookUpdate], error) {
	ch := make(chan *domain.BookUpdate, 16)
	f.depth[symbol.String()] = ch
	return &domain.Subscription[*domain.BookUpdate]{
		Stream:      ch,
		Topic:       symbol.String() + "@depth",
		Unsubscribe: func() { close(ch) },
	}, nil
}

func (f *fakeStreamAPI) TradeStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.TickData], error) {
	ch := make(chan *domain.TickData, 16)
	f.trades[symbol.String()] = ch
	return &domain.Subscription[*domain.TickData]{
		Stream:      ch,
		Topic:       symbol.String() + "@trade",
		Unsubscribe: func() { close(ch) },
	}, nil
}

type fakeConnManager struct {
	streamAPI domain.ProviderStreamAPI
}

func (f *fakeConnManager) StreamAPI(provider string) (domain.ProviderStreamAPI, error) {
	if f.streamAPI == nil {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	return f.streamAPI, nil
}

func (f *fakeConnManager) SyncAPI(provider string) (domain.ProviderSyncAPI, error) {
	return nil, fmt.Errorf("unknown provider: %s", provider)
}

func level(price, qty string) domain.BookLevel {
	return domain.BookLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func TestStreamOrderBookEmitsOneBookPerUpdate(t *testing.T) {
	api := newFakeStreamAPI()
	uc := usecase.NewStreamOrderBookUseCase(&fakeConnManager{streamAPI: api})

	symbol, _ := domain.NewMarketSymbol("BTC", "USDT")
	sub, err := uc.StreamOrderBook("fake", []*domain.MarketSymbol{symbol})
	assert.NoError(t, err)
	defer sub.Unsubscribe()

	ch := api.depth[symbol.String()]
	ts := time.UnixMilli(1700000000000)
	ch <- domain.NewBookUpdate(symbol, ts, domain.UpdateKind_Snapshot,
		[]domain.BookLevel{level("100", "1")},
		[]domain.BookLevel{level("101", "2")},
	)
	ch <- domain.NewBookUpdate(symbol, ts.Add(time.Second), domain.UpdateKind_Incremental,
		[]domain.BookLevel{level("100", "0")}, nil,
	)

	first := <-sub.Stream
	assert.Len(t, first.Bids, 1)
	assert.Len(t, first.Asks, 1)

	second := <-sub.Stream
	assert.Empty(t, second.Bids)
	assert.Len(t, second.Asks, 1)
}

func TestStreamOrderBookMultiplexesSymbols(t *testing.T) {
	api := newFakeStreamAPI()
	uc := usecase.NewStreamOrderBookUseCase(&fakeConnManager{streamAPI: api})

	btc, _ := domain.NewMarketSymbol("BTC", "USDT")
	eth, _ := domain.NewMarketSymbol("ETH", "USDT")
	sub, err := uc.StreamOrderBook("fake", []*domain.MarketSymbol{btc, eth})
	assert.NoError(t, err)
	defer sub.Unsubscribe()

	ts := time.UnixMilli(1700000000000)
	api.depth[btc.String()] <- domain.NewBookUpdate(btc, ts, domain.UpdateKind_Snapshot,
		[]domain.BookLevel{level("100", "1")}, nil)
	api.depth[eth.String()] <- domain.NewBookUpdate(eth, ts, domain.UpdateKind_Snapshot,
		[]domain.BookLevel{level("2000", "1")}, nil)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		book := <-sub.Stream
		seen[book.Symbol.String()] = true
	}
	assert.True(t, seen[btc.String()])
	assert.True(t, seen[eth.String()])
}

func TestStreamOrderBookClosesAfterUnsubscribe(t *testing.T) {
	api := newFakeStreamAPI()
	uc := usecase.NewStreamOrderBookUseCase(&fakeConnManager{streamAPI: api})

	symbol, _ := domain.NewMarketSymbol("BTC", "USDT")
	sub, err := uc.StreamOrderBook("fake", []*domain.MarketSymbol{symbol})
	assert.NoError(t, err)

	sub.Unsubscribe()

	select {
	case _, ok := <-sub.Stream:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream did not close after unsubscribe")
	}
}

func TestStreamOrderBookUnknownProvider(t *testing.T) {
	uc := usecase.NewStreamOrderBookUseCase(&fakeConnManager{})

	symbol, _ := domain.NewMarketSymbol("BTC", "USDT")
	_, err := uc.StreamOrderBook("nope", []*domain.MarketSymbol{symbol})
	assert.Error(t, err)
}
