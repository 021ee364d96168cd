package okex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-marketfeed/domain"
)

type OkexStreamAPI struct {
	streamClient *OkexStreamClient
}

type depthData struct {
	InstrumentId string     `json:"instrument_id"`
	Timestamp    string     `json:"timestamp"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

type tradeData struct {
	InstrumentId string `json:"instrument_id"`
	TradeId      string `json:"trade_id"`
	Price        string `json:"price"`
	Size         string `json:"size"`
	Side         string `json:"side"`
	Timestamp    string `json:"timestamp"`
}

func NewOkexStreamAPI(client *OkexStreamClient) *OkexStreamAPI {
	return &OkexStreamAPI{streamClient: client}
}

// DepthStream maps the spot/depth channel: the initial "partial" message is
// a Snapshot, every "update" after it is Incremental. No REST bootstrap is
// needed.
func (s *OkexStreamAPI) DepthStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.BookUpdate], error) {
	topic := fmt.Sprintf("spot/depth:%s", instrumentId(symbol))
	sub, err := s.streamClient.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.BookUpdate)

	go func() {
		defer close(out)

		for msg := range sub.Stream {
			var envelope messageEnvelope
			if err := json.Unmarshal(msg, &envelope); err != nil {
				logger.WithError(err).Error("failed to decode depth message")
				continue
			}

			kind := domain.UpdateKind_Incremental
			if envelope.Action == "partial" {
				kind = domain.UpdateKind_Snapshot
			}

			for _, item := range envelope.Data {
				update, err := depthToBookUpdate(symbol, kind, item)
				if err != nil {
					logger.WithError(err).Errorf("malformed depth update for %s", symbol)
					continue
				}
				out <- update
			}
		}
	}()

	return &domain.Subscription[*domain.BookUpdate]{
		Stream:      out,
		Topic:       topic,
		Unsubscribe: sub.Unsubscribe,
	}, nil
}

// TradeStream expands each spot/trade message into its individual trades,
// preserving vendor order.
func (s *OkexStreamAPI) TradeStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.TickData], error) {
	topic := fmt.Sprintf("spot/trade:%s", instrumentId(symbol))
	sub, err := s.streamClient.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.TickData)

	go func() {
		defer close(out)

		for msg := range sub.Stream {
			var envelope messageEnvelope
			if err := json.Unmarshal(msg, &envelope); err != nil {
				logger.WithError(err).Error("failed to decode trade message")
				continue
			}

			for _, item := range envelope.Data {
				tick, err := tradeToTickData(symbol, item)
				if err != nil {
					logger.WithError(err).Errorf("malformed trade for %s", symbol)
					continue
				}
				out <- tick
			}
		}
	}()

	return &domain.Subscription[*domain.TickData]{
		Stream:      out,
		Topic:       topic,
		Unsubscribe: sub.Unsubscribe,
	}, nil
}

func depthToBookUpdate(symbol *domain.MarketSymbol, kind domain.UpdateKind, raw json.RawMessage) (*domain.BookUpdate, error) {
	var data depthData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, data.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("malformed timestamp %q: %w", data.Timestamp, err)
	}

	bids, err := parseDepthLevels(data.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseDepthLevels(data.Asks)
	if err != nil {
		return nil, err
	}

	return domain.NewBookUpdate(symbol, ts, kind, bids, asks), nil
}

// depth levels arrive as [price, size, order_count] triples
func parseDepthLevels(raw [][]string) ([]domain.BookLevel, error) {
	levels, err := domain.ParseRawLevels(raw)
	if err != nil {
		return nil, err
	}

	for i, entry := range raw {
		if len(entry) < 3 {
			continue
		}
		count, err := strconv.ParseInt(entry[len(entry)-1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed order count %q: %w", entry[len(entry)-1], err)
		}
		levels[i].OrderCount = count
	}

	return levels, nil
}

func tradeToTickData(symbol *domain.MarketSymbol, raw json.RawMessage) (*domain.TickData, error) {
	var data tradeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, data.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("malformed timestamp %q: %w", data.Timestamp, err)
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return nil, fmt.Errorf("malformed price %q: %w", data.Price, err)
	}
	size, err := decimal.NewFromString(data.Size)
	if err != nil {
		return nil, fmt.Errorf("malformed size %q: %w", data.Size, err)
	}

	return domain.NewTickData(data.TradeId, ts, price, size, symbol, "okex"), nil
}

func instrumentId(symbol *domain.MarketSymbol) string {
	return strings.ToUpper(symbol.Join("-"))
}
