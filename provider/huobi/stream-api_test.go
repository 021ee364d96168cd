package huobi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-marketfeed/domain"
	"github.com/stretchr/testify/assert"
)

func TestDepthToBookUpdate(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	assert.NoError(t, err)

	raw := []byte(`{
		"ch": "market.btcusdt.depth.step0",
		"ts": 1700000000123,
		"tick": {
			"bids": [[10000.5, 1.2], [9999.0, 2]],
			"asks": [[10001.0, 0.5]]
		}
	}`)

	var message depthMessage
	assert.NoError(t, json.Unmarshal(raw, &message))

	update := depthToBookUpdate(symbol, &message)

	assert.Equal(t, domain.UpdateKind_Snapshot, update.Kind, "every huobi depth event restates the book")
	assert.Equal(t, time.UnixMilli(1700000000123), update.Timestamp)
	assert.Len(t, update.Bids, 2)
	assert.True(t, update.Bids[0].Price.Equal(decimal.RequireFromString("10000.5")))
	assert.True(t, update.Asks[0].Quantity.Equal(decimal.RequireFromString("0.5")))
}

func TestExpandTradesPreservesVendorOrder(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	assert.NoError(t, err)

	raw := []byte(`{
		"ch": "market.btcusdt.trade.detail",
		"ts": 1700000000123,
		"tick": {
			"data": [
				{"id": 100110001000, "ts": 1700000000100, "amount": 0.1, "price": 10000.5, "direction": "buy"},
				{"id": 100110001001, "ts": 1700000000105, "amount": 0.2, "price": 10000.6, "direction": "sell"},
				{"id": 100110001002, "ts": 1700000000110, "amount": 0.3, "price": 10000.7, "direction": "buy"}
			]
		}
	}`)

	var message tradeMessage
	assert.NoError(t, json.Unmarshal(raw, &message))

	ticks := expandTrades(symbol, &message)

	assert.Len(t, ticks, 3)
	assert.Equal(t, "100110001000", ticks[0].ID)
	assert.Equal(t, "100110001001", ticks[1].ID)
	assert.Equal(t, "100110001002", ticks[2].ID)

	assert.Equal(t, time.UnixMilli(1700000000105), ticks[1].Timestamp)
	assert.True(t, ticks[1].Price.Equal(decimal.RequireFromString("10000.6")))
	assert.True(t, ticks[1].Quantity.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, "huobi", ticks[1].Provider)
}

func TestExpandTradesEmptyBatch(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("BTC", "USDT")
	assert.NoError(t, err)

	ticks := expandTrades(symbol, &tradeMessage{})
	assert.Empty(t, ticks)
}
