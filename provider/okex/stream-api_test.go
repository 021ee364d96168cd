package okex

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-marketfeed/domain"
	"github.com/stretchr/testify/assert"
)

func TestDepthToBookUpdate(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	assert.NoError(t, err)

	raw := []byte(`{
		"instrument_id": "BTC-USDT",
		"timestamp": "2023-11-14T22:13:20.123Z",
		"bids": [["10000.50", "1.2", "4"]],
		"asks": [["10001.00", "0", "0"]]
	}`)

	update, err := depthToBookUpdate(symbol, domain.UpdateKind_Incremental, json.RawMessage(raw))
	assert.NoError(t, err)

	assert.Equal(t, domain.UpdateKind_Incremental, update.Kind)
	assert.Len(t, update.Bids, 1)
	assert.True(t, update.Bids[0].Price.Equal(decimal.RequireFromString("10000.5")))
	assert.Equal(t, int64(4), update.Bids[0].OrderCount)
	assert.True(t, update.Asks[0].Quantity.IsZero())
}

func TestDepthToBookUpdateRejectsMalformedTimestamp(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	assert.NoError(t, err)

	raw := []byte(`{"instrument_id": "BTC-USDT", "timestamp": "garbage", "bids": [], "asks": []}`)

	_, err = depthToBookUpdate(symbol, domain.UpdateKind_Snapshot, json.RawMessage(raw))
	assert.Error(t, err)
}

func TestTradeToTickData(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	assert.NoError(t, err)

	raw := []byte(`{
		"instrument_id": "BTC-USDT",
		"trade_id": "961",
		"price": "10000.5",
		"size": "0.25",
		"side": "buy",
		"timestamp": "2023-11-14T22:13:20.123Z"
	}`)

	tick, err := tradeToTickData(symbol, json.RawMessage(raw))
	assert.NoError(t, err)

	assert.Equal(t, "961", tick.ID)
	assert.Equal(t, "okex", tick.Provider)
	assert.True(t, tick.Price.Equal(decimal.RequireFromString("10000.5")))
	assert.True(t, tick.Quantity.Equal(decimal.RequireFromString("0.25")))
}

func TestInstrumentId(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	assert.NoError(t, err)

	assert.Equal(t, "BTC-USDT", instrumentId(symbol))
}
