package huobi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-marketfeed/domain"
)

type HuobiStreamAPI struct {
	streamClient *HuobiStreamClient
}

type depthMessage struct {
	Ch   string `json:"ch"`
	Ts   int64  `json:"ts"`
	Tick struct {
		Bids [][]decimal.Decimal `json:"bids"`
		Asks [][]decimal.Decimal `json:"asks"`
	} `json:"tick"`
}

type tradeMessage struct {
	Ch   string `json:"ch"`
	Ts   int64  `json:"ts"`
	Tick struct {
		Data []tradeItem `json:"data"`
	} `json:"tick"`
}

type tradeItem struct {
	Id        decimal.Decimal `json:"id"`
	Ts        int64           `json:"ts"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Direction string          `json:"direction"`
}

func NewHuobiStreamAPI(client *HuobiStreamClient) *HuobiStreamAPI {
	return &HuobiStreamAPI{streamClient: client}
}

// DepthStream maps market.X.depth.step0: every event restates the whole
// book, so each one is a Snapshot update.
func (s *HuobiStreamAPI) DepthStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.BookUpdate], error) {
	topic := fmt.Sprintf("market.%s.depth.step0", symbol.Join(""))
	sub, err := s.streamClient.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.BookUpdate)

	go func() {
		defer close(out)

		for msg := range sub.Stream {
			var message depthMessage
			if err := json.Unmarshal(msg, &message); err != nil {
				logger.WithError(err).Error("failed to decode depth message")
				continue
			}

			out <- depthToBookUpdate(symbol, &message)
		}
	}()

	return &domain.Subscription[*domain.BookUpdate]{
		Stream:      out,
		Topic:       topic,
		Unsubscribe: sub.Unsubscribe,
	}, nil
}

// TradeStream expands each market.X.trade.detail batch into individual
// ticks, preserving vendor order.
func (s *HuobiStreamAPI) TradeStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.TickData], error) {
	topic := fmt.Sprintf("market.%s.trade.detail", symbol.Join(""))
	sub, err := s.streamClient.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.TickData)

	go func() {
		defer close(out)

		for msg := range sub.Stream {
			var message tradeMessage
			if err := json.Unmarshal(msg, &message); err != nil {
				logger.WithError(err).Error("failed to decode trade message")
				continue
			}

			for _, tick := range expandTrades(symbol, &message) {
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

func depthToBookUpdate(symbol *domain.MarketSymbol, message *depthMessage) *domain.BookUpdate {
	return domain.NewBookUpdate(
		symbol,
		time.UnixMilli(message.Ts),
		domain.UpdateKind_Snapshot,
		pairsToLevels(message.Tick.Bids),
		pairsToLevels(message.Tick.Asks),
	)
}

func pairsToLevels(pairs [][]decimal.Decimal) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		levels = append(levels, domain.NewBookLevel(pair[0], pair[1]))
	}

	return levels
}

func expandTrades(symbol *domain.MarketSymbol, message *tradeMessage) []*domain.TickData {
	ticks := make([]*domain.TickData, 0, len(message.Tick.Data))
	for _, item := range message.Tick.Data {
		ticks = append(ticks, domain.NewTickData(
			item.Id.String(),
			time.UnixMilli(item.Ts),
			item.Price,
			item.Amount,
			symbol,
			"huobi",
		))
	}

	return ticks
}
